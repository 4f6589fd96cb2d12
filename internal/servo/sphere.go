package servo

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/san-kum/touchy/internal/force"
	"gonum.org/v1/gonum/spatial/r3"
)

// maxSphereRetries bounds how long the servo thread chases a concurrent
// writer before accepting a possibly torn read.
const maxSphereRetries = 16

// SphereCell stores the target sphere. Writers serialize on a mutex; the
// reader never locks.
type SphereCell struct {
	mu     sync.Mutex
	seq    atomic.Uint64
	radius atomic.Uint64
	center [3]atomic.Uint64
}

func (c *SphereCell) Store(s force.Sphere) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq.Add(1)
	c.radius.Store(math.Float64bits(s.Radius))
	storeVec(&c.center, s.Center)
	c.seq.Add(1)
}

func (c *SphereCell) SetRadius(r float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq.Add(1)
	c.radius.Store(math.Float64bits(r))
	c.seq.Add(1)
}

func (c *SphereCell) SetCenter(center r3.Vec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq.Add(1)
	storeVec(&c.center, center)
	c.seq.Add(1)
}

func (c *SphereCell) Radius() float64 {
	return math.Float64frombits(c.radius.Load())
}

func (c *SphereCell) Center() r3.Vec {
	return c.Load().Center
}

// Load returns the sphere, consistent unless a writer kept it busy for
// maxSphereRetries attempts.
func (c *SphereCell) Load() force.Sphere {
	var s force.Sphere
	for i := 0; i < maxSphereRetries; i++ {
		before := c.seq.Load()
		s.Radius = math.Float64frombits(c.radius.Load())
		s.Center = loadVec(&c.center)
		if before&1 == 0 && c.seq.Load() == before {
			return s
		}
	}
	return s
}
