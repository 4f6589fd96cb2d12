package device

import (
	"errors"
	"fmt"
)

// ErrorCode is a driver error code. Zero means success.
type ErrorCode int

const (
	Success ErrorCode = 0x0000

	InvalidEnum        ErrorCode = 0x0100
	InvalidValue       ErrorCode = 0x0101
	InvalidOperation   ErrorCode = 0x0102
	InvalidInputType   ErrorCode = 0x0103
	BadHandle          ErrorCode = 0x0104
	WarmMotors         ErrorCode = 0x0200
	ExceededMaxForce   ErrorCode = 0x0201
	ExceededMaxImpulse ErrorCode = 0x0202
	ExceededMaxVel     ErrorCode = 0x0203
	ForceError         ErrorCode = 0x0204
	DeviceFault        ErrorCode = 0x0300
	AlreadyInitiated   ErrorCode = 0x0301
	CommError          ErrorCode = 0x0302
	CommConfigError    ErrorCode = 0x0303
	TimerError         ErrorCode = 0x0304
	IllegalBegin       ErrorCode = 0x0400
	IllegalEnd         ErrorCode = 0x0401
	FrameError         ErrorCode = 0x0402
	InvalidPriority    ErrorCode = 0x0500
	SchedulerFull      ErrorCode = 0x0501
	InvalidLicense     ErrorCode = 0x0600
)

// Codes raised by this module rather than the driver.
const (
	CodeStopTimeout    ErrorCode = 0x1001
	CodeNotInitialized ErrorCode = 0x1002
	CodeUnknown        ErrorCode = 0x1FFF
)

// Status offsets that tag which teardown phase failed.
const (
	OffsetStopScheduler = 2000
	OffsetDisableDevice = 4000
)

var codeNames = map[ErrorCode]string{
	Success:            "success",
	InvalidEnum:        "invalid enum",
	InvalidValue:       "invalid value",
	InvalidOperation:   "invalid operation",
	InvalidInputType:   "invalid input type",
	BadHandle:          "bad handle",
	WarmMotors:         "warm motors",
	ExceededMaxForce:   "exceeded max force",
	ExceededMaxImpulse: "exceeded max force impulse",
	ExceededMaxVel:     "exceeded max velocity",
	ForceError:         "force error",
	DeviceFault:        "device fault",
	AlreadyInitiated:   "device already initiated",
	CommError:          "communication error",
	CommConfigError:    "communication config error",
	TimerError:         "timer error",
	IllegalBegin:       "illegal begin frame",
	IllegalEnd:         "illegal end frame",
	FrameError:         "frame error",
	InvalidPriority:    "invalid priority",
	SchedulerFull:      "scheduler full",
	InvalidLicense:     "invalid license",
	CodeStopTimeout:    "stop timed out",
	CodeNotInitialized: "device not initialized",
	CodeUnknown:        "unknown error",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error 0x%04x", int(c))
}

// ErrorInfo is the driver's record of one failure.
type ErrorInfo struct {
	Code     ErrorCode
	Internal int
}

// IsError reports whether the record describes a failure.
func (e ErrorInfo) IsError() bool { return e.Code != Success }

func (e ErrorInfo) String() string {
	if e.Internal != 0 {
		return fmt.Sprintf("%s (internal %d)", e.Code, e.Internal)
	}
	return e.Code.String()
}

var (
	// ErrStopTimeout indicates the active callback did not finish its frame in time.
	ErrStopTimeout = errors.New("device: callback did not complete before stop timeout")

	// ErrNotInitialized indicates an operation that needs an opened device.
	ErrNotInitialized = errors.New("device: not initialized")
)

// Error attaches a driver error to the operation that observed it.
type Error struct {
	Op      string
	Info    ErrorInfo
	Offset  int
	Wrapped error
}

func (e *Error) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Info)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

// Status is the integer code reported to callers: the driver code plus any
// phase offset.
func (e *Error) Status() int {
	return int(e.Info.Code) + e.Offset
}

// Check wraps info into an *Error when it describes a failure.
func Check(op string, info ErrorInfo) error {
	if !info.IsError() {
		return nil
	}
	return &Error{Op: op, Info: info}
}

// CodeOf extracts the driver code from err, or CodeUnknown.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Info.Code
	}
	return CodeUnknown
}
