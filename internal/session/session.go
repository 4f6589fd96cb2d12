package session

import (
	"context"
	"errors"
	"log/slog"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/force"
	"github.com/san-kum/touchy/internal/servo"
	"gonum.org/v1/gonum/spatial/r3"
)

type Options struct {
	Servo servo.Options
	// Stiffness overrides each model's default gain when non-zero.
	Stiffness float64
	// ScaleToCenter selects the depth-scaled ToCenter law.
	ScaleToCenter bool
}

func DefaultOptions() Options {
	return Options{Servo: servo.DefaultOptions()}
}

type Session struct {
	sched *servo.Scheduler
	opts  Options
	log   *slog.Logger
}

func New(drv device.Driver, opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		sched: servo.New(drv, opts.Servo, logger),
		opts:  opts,
		log:   logger.With("component", "session"),
	}
}

func (s *Session) Init() error {
	return s.sched.Init()
}

func (s *Session) StartIdle() error {
	return s.sched.ScheduleIdle()
}

// StartToCenter pulls the cursor toward the center while it is inside the sphere.
func (s *Session) StartToCenter(radius, x, y, z float64) error {
	return s.Start(force.ToCenter, force.Sphere{Center: r3.Vec{X: x, Y: y, Z: z}, Radius: radius})
}

// StartSphere renders a frictionless sphere surface.
func (s *Session) StartSphere(radius, x, y, z float64) error {
	return s.Start(force.FrictionlessRepel, force.Sphere{Center: r3.Vec{X: x, Y: y, Z: z}, Radius: radius})
}

// StartConstrained pushes up along Z only. The sphere is centered on the Z axis.
func (s *Session) StartConstrained(radius, z float64) error {
	return s.Start(force.ConstrainedRepel, force.Sphere{Center: r3.Vec{Z: z}, Radius: radius})
}

// Start installs kind with the given sphere, replacing any running model.
func (s *Session) Start(kind force.Kind, sphere force.Sphere) error {
	if kind == force.Idle {
		return s.StartIdle()
	}
	return s.sched.ScheduleForceModel(s.model(kind), sphere)
}

// StartModel is Start with an explicit stiffness. Zero keeps the default.
func (s *Session) StartModel(kind force.Kind, stiffness float64, sphere force.Sphere) error {
	if kind == force.Idle {
		return s.StartIdle()
	}
	m := s.model(kind)
	if stiffness > 0 {
		m.Stiffness = stiffness
	}
	return s.sched.ScheduleForceModel(m, sphere)
}

func (s *Session) model(kind force.Kind) force.Model {
	m := force.New(kind)
	if s.opts.Stiffness > 0 {
		m.Stiffness = s.opts.Stiffness
	}
	m.ScaleToCenter = s.opts.ScaleToCenter
	return m
}

// Stop removes the running model. It succeeds when nothing is running.
func (s *Session) Stop() error {
	return s.StopContext(context.Background())
}

func (s *Session) StopContext(ctx context.Context) error {
	return s.sched.Stop(ctx)
}

func (s *Session) Shutdown() error {
	return s.sched.Shutdown()
}

func (s *Session) SetSphereRadius(r float64) { s.sched.SetSphereRadius(r) }
func (s *Session) SphereRadius() float64     { return s.sched.SphereRadius() }

func (s *Session) SetSphereCenter(x, y, z float64) {
	s.sched.SetSphereCenter(r3.Vec{X: x, Y: y, Z: z})
}

func (s *Session) SphereCenter() [3]float64 {
	c := s.sched.Sphere().Center
	return [3]float64{c.X, c.Y, c.Z}
}

func (s *Session) Sphere() force.Sphere { return s.sched.Sphere() }

// EndEffectorPosition copies the last published position into out as x, y, z.
func (s *Session) EndEffectorPosition(out *[3]float64) error {
	if out == nil {
		return &device.Error{Op: "end effector position", Info: device.ErrorInfo{Code: device.InvalidValue}}
	}
	p := s.sched.Snapshot().Position
	out[0], out[1], out[2] = p.X, p.Y, p.Z
	return nil
}

func (s *Session) ButtonPrimary() bool   { return s.sched.Snapshot().Primary }
func (s *Session) ButtonSecondary() bool { return s.sched.Snapshot().Secondary }

// Snapshot returns the whole last published frame.
func (s *Session) Snapshot() servo.Reading { return s.sched.Snapshot() }

// Active reports the running model, if any.
func (s *Session) Active() (force.Kind, bool) { return s.sched.Active() }

// LastError is the driver code of the most recent device error, 0 if none.
func (s *Session) LastError() int {
	return int(s.sched.LastError().Code)
}

func (s *Session) ClearError() { s.sched.ClearError() }

// StatusCode maps an error returned by a Session method to its integer
// status: 0 for nil, the driver code plus teardown offset for device errors,
// and CodeUnknown for anything else.
func StatusCode(err error) int {
	if err == nil {
		return 0
	}
	var de *device.Error
	if errors.As(err, &de) {
		return de.Status()
	}
	return int(device.CodeUnknown)
}
