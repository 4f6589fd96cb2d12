package metrics

import "github.com/san-kum/touchy/internal/simdevice"

// Metric accumulates one scalar over a run.
type Metric interface {
	Name() string
	Observe(s simdevice.Sample)
	Value() float64
	Reset()
}

// Standard returns the metrics recorded with every run.
func Standard(mass float64) []Metric {
	return []Metric{
		NewForceEffort(),
		NewPeakForce(),
		NewContactRatio(),
		NewButtonPresses(),
		NewEnergy(mass),
		NewStability(DefaultSpeedLimit),
	}
}

// Values collects each metric's current value by name.
func Values(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
