// Package device defines the narrow driver surface the servo loop consumes.
//
// A haptic driver is anything that can bracket a servo tick, report the
// end-effector pose and button bitmask, accept an output force, and run
// callbacks on its own high-rate scheduler:
//
//   - [Driver]: frame, pose, force, error and scheduler operations
//   - [Callback]: one servo tick, returning [CallbackContinue] or [CallbackDone]
//   - [ErrorInfo]: the driver's error record (code + internal detail)
//   - [Error]: an [ErrorInfo] attached to the operation that raised it
//
// Error codes follow the vendor numbering so status codes surfaced to
// callers match what existing tooling expects.
package device
