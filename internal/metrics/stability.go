package metrics

import (
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

// DefaultSpeedLimit is the effector speed (m/s) above which a frame counts
// as unstable. Stiff walls at low servo rates buzz well past it.
const DefaultSpeedLimit = 1.0

// Stability is the fraction of frames whose effector speed stayed under
// the threshold.
type Stability struct {
	name       string
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{
		name:      "stability",
		threshold: threshold,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample simdevice.Sample) {
	s.samples++
	if r3.Norm(sample.Velocity) > s.threshold {
		s.violations++
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
