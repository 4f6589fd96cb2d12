package servo

import (
	"sync/atomic"

	"github.com/san-kum/touchy/internal/device"
	"github.com/san-kum/touchy/internal/force"
	"gonum.org/v1/gonum/spatial/r3"
)

// frame is the installed servo callback. One Tick is one device frame.
type frame struct {
	drv     device.Driver
	dev     device.DeviceHandle
	model   force.Model
	snap    *Snapshot
	sphere  *SphereCell
	lastErr *errorCell

	// inFrame is raised before stopping is checked so that Stop and Tick
	// cannot both miss each other.
	stopping atomic.Bool
	inFrame  atomic.Bool
	finished atomic.Bool
}

func (f *frame) Tick() device.CallbackCode {
	f.inFrame.Store(true)
	if f.stopping.Load() {
		f.inFrame.Store(false)
		f.finished.Store(true)
		return device.CallbackDone
	}

	f.drv.BeginFrame(f.dev)
	buttons := f.drv.Buttons()
	pos := f.drv.Position()

	out, ok := f.model.Force(pos, f.sphere.Load())
	if ok {
		f.drv.SetForce(out)
	} else {
		out = r3.Vec{}
	}
	f.drv.EndFrame(f.dev)

	info := f.drv.GetError()
	f.snap.Write(pos, out, buttons, info)

	code := device.CallbackContinue
	if info.IsError() {
		f.lastErr.Store(info)
		if info.Code == device.SchedulerFull {
			code = device.CallbackDone
			f.finished.Store(true)
		}
	}
	f.inFrame.Store(false)
	return code
}
