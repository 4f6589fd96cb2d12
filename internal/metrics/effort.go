package metrics

import (
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

// ForceEffort is the mean commanded force magnitude.
type ForceEffort struct {
	name    string
	sum     float64
	samples int
}

func NewForceEffort() *ForceEffort {
	return &ForceEffort{
		name: "force_effort",
	}
}

func (f *ForceEffort) Name() string {
	return f.name
}

func (f *ForceEffort) Observe(s simdevice.Sample) {
	f.sum += r3.Norm(s.Force)
	f.samples++
}

func (f *ForceEffort) Value() float64 {
	if f.samples == 0 {
		return 0
	}
	return f.sum / float64(f.samples)
}

func (f *ForceEffort) Reset() {
	f.sum = 0
	f.samples = 0
}

type PeakForce struct {
	name string
	peak float64
}

func NewPeakForce() *PeakForce {
	return &PeakForce{name: "peak_force"}
}

func (p *PeakForce) Name() string { return p.name }

func (p *PeakForce) Observe(s simdevice.Sample) {
	if n := r3.Norm(s.Force); n > p.peak {
		p.peak = n
	}
}

func (p *PeakForce) Value() float64 { return p.peak }

func (p *PeakForce) Reset() { p.peak = 0 }
