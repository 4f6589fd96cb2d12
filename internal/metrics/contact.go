package metrics

import (
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
)

// ContactRatio is the fraction of frames that commanded a force.
type ContactRatio struct {
	name     string
	contacts int
	samples  int
}

func NewContactRatio() *ContactRatio {
	return &ContactRatio{name: "contact_ratio"}
}

func (c *ContactRatio) Name() string { return c.name }

func (c *ContactRatio) Observe(s simdevice.Sample) {
	c.samples++
	if s.Force != (r3.Vec{}) {
		c.contacts++
	}
}

func (c *ContactRatio) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return float64(c.contacts) / float64(c.samples)
}

func (c *ContactRatio) Reset() {
	c.contacts = 0
	c.samples = 0
}

// ButtonPresses counts rising edges of the primary button.
type ButtonPresses struct {
	name    string
	presses int
	down    bool
}

func NewButtonPresses() *ButtonPresses {
	return &ButtonPresses{name: "button_presses"}
}

func (b *ButtonPresses) Name() string { return b.name }

func (b *ButtonPresses) Observe(s simdevice.Sample) {
	down := s.Buttons.Primary()
	if down && !b.down {
		b.presses++
	}
	b.down = down
}

func (b *ButtonPresses) Value() float64 { return float64(b.presses) }

func (b *ButtonPresses) Reset() {
	b.presses = 0
	b.down = false
}
