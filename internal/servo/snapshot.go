package servo

import (
	"math"
	"runtime"
	"sync/atomic"

	"github.com/san-kum/touchy/internal/device"
	"gonum.org/v1/gonum/spatial/r3"
)

// Reading is one committed frame as seen by a reader.
type Reading struct {
	Position  r3.Vec
	Force     r3.Vec
	Buttons   device.Buttons
	Primary   bool
	Secondary bool
	Err       device.ErrorInfo
	Frame     uint64
}

// Snapshot holds the most recent frame. It has a single writer (the servo
// callback) and any number of readers.
type Snapshot struct {
	seq     atomic.Uint64
	pos     [3]atomic.Uint64
	force   [3]atomic.Uint64
	buttons atomic.Int64
	err     errorCell
	frame   atomic.Uint64
}

// Write commits one frame. It does not allocate or block.
func (s *Snapshot) Write(pos, force r3.Vec, buttons device.Buttons, info device.ErrorInfo) {
	s.seq.Add(1)
	storeVec(&s.pos, pos)
	storeVec(&s.force, force)
	s.buttons.Store(int64(buttons))
	s.err.Store(info)
	s.frame.Add(1)
	s.seq.Add(1)
}

// Read returns the latest fully written frame.
func (s *Snapshot) Read() Reading {
	for {
		before := s.seq.Load()
		if before&1 == 1 {
			runtime.Gosched()
			continue
		}
		b := device.Buttons(s.buttons.Load())
		r := Reading{
			Position:  loadVec(&s.pos),
			Force:     loadVec(&s.force),
			Buttons:   b,
			Primary:   b.Primary(),
			Secondary: b.Secondary(),
			Err:       s.err.Load(),
			Frame:     s.frame.Load(),
		}
		if s.seq.Load() == before {
			return r
		}
	}
}

// Reset zeroes the snapshot. Only call it while no callback is scheduled.
func (s *Snapshot) Reset() {
	s.seq.Add(1)
	storeVec(&s.pos, r3.Vec{})
	storeVec(&s.force, r3.Vec{})
	s.buttons.Store(0)
	s.err.Store(device.ErrorInfo{})
	s.frame.Store(0)
	s.seq.Add(1)
}

// errorCell packs an ErrorInfo into one atomic word.
type errorCell struct {
	v atomic.Uint64
}

func (c *errorCell) Store(info device.ErrorInfo) {
	c.v.Store(uint64(uint32(int32(info.Code)))<<32 | uint64(uint32(int32(info.Internal))))
}

func (c *errorCell) Load() device.ErrorInfo {
	v := c.v.Load()
	return device.ErrorInfo{
		Code:     device.ErrorCode(int32(uint32(v >> 32))),
		Internal: int(int32(uint32(v))),
	}
}

func storeVec(dst *[3]atomic.Uint64, v r3.Vec) {
	dst[0].Store(math.Float64bits(v.X))
	dst[1].Store(math.Float64bits(v.Y))
	dst[2].Store(math.Float64bits(v.Z))
}

func loadVec(src *[3]atomic.Uint64) r3.Vec {
	return r3.Vec{
		X: math.Float64frombits(src[0].Load()),
		Y: math.Float64frombits(src[1].Load()),
		Z: math.Float64frombits(src[2].Load()),
	}
}
