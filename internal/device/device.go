package device

import "gonum.org/v1/gonum/spatial/r3"

// Handle identifies a scheduled callback.
type Handle uint64

// InvalidHandle is returned when a callback could not be scheduled.
const InvalidHandle Handle = 0

// DeviceHandle identifies an opened device.
type DeviceHandle uint32

// InvalidDevice is returned when no device could be opened.
const InvalidDevice DeviceHandle = 0xFFFFFFFF

// CallbackCode tells the scheduler whether to run a callback again.
type CallbackCode int

const (
	CallbackDone CallbackCode = iota
	CallbackContinue
)

func (c CallbackCode) String() string {
	if c == CallbackContinue {
		return "continue"
	}
	return "done"
}

// Callback is one servo tick. It runs on the scheduler thread and must not block.
type Callback func() CallbackCode

// Priority orders callbacks within a scheduler tick; higher runs first.
type Priority uint16

const (
	PriorityMin     Priority = 0
	PriorityMax     Priority = 0xFFFF
	PriorityDefault Priority = (PriorityMax + PriorityMin) / 2
)

// WaitMode selects how WaitForCompletion behaves.
type WaitMode int

const (
	// WaitCheckStatus returns immediately.
	WaitCheckStatus WaitMode = iota
	// WaitInfinite blocks until the callback is no longer scheduled.
	WaitInfinite
)

// Button bits of the bitmask reported by Driver.Buttons.
const (
	Button1 Buttons = 1 << 0
	Button2 Buttons = 1 << 1
	Button3 Buttons = 1 << 2
	Button4 Buttons = 1 << 3
)

// Buttons is the raw button bitmask of one frame.
type Buttons int

func (b Buttons) Primary() bool   { return b&Button1 != 0 }
func (b Buttons) Secondary() bool { return b&Button2 != 0 }

// Driver is the device layer the servo loop is written against.
//
// Every call may push an error that GetError later reports; callers check
// GetError after each operation whose failure matters to them.
type Driver interface {
	OpenDefaultDevice() DeviceHandle
	DisableDevice(h DeviceHandle)
	EnableForceOutput()

	BeginFrame(h DeviceHandle)
	EndFrame(h DeviceHandle)
	Buttons() Buttons
	Position() r3.Vec
	SetForce(f r3.Vec)

	// GetError pops the most recent error, or returns a Success record.
	GetError() ErrorInfo

	StartScheduler()
	StopScheduler()
	ScheduleAsynchronous(cb Callback, p Priority) Handle
	Unschedule(h Handle)
	// WaitForCompletion reports whether h is still scheduled.
	WaitForCompletion(h Handle, mode WaitMode) bool
}
