package simdevice

import "github.com/san-kum/touchy/internal/integrators"

// effector is the point-mass end-effector. State is [px py pz vx vy vz],
// control is the total external force [fx fy fz].
type effector struct {
	mass    float64
	damping float64
}

func (e *effector) StateDim() int { return 6 }

func (e *effector) Derive(x integrators.State, u integrators.Control, t float64) integrators.State {
	dx := make(integrators.State, 6)
	for i := 0; i < 3; i++ {
		dx[i] = x[3+i]
		f := 0.0
		if i < len(u) {
			f = u[i]
		}
		dx[3+i] = (f - e.damping*x[3+i]) / e.mass
	}
	return dx
}
