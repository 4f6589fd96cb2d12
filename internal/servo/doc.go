// Package servo runs force models on the driver's real-time scheduler.
//
// The package owns the state shared between the servo thread and control
// callers:
//
//   - [Snapshot]: last committed device observation, one write per frame
//   - [SphereCell]: target sphere parameters written by control callers
//   - [Scheduler]: init/schedule/stop/shutdown over a [device.Driver]
//
// # Thread Safety
//
// The servo callback never takes a lock. Snapshot and sphere use sequence
// guards over atomic words; readers retry instead of blocking the writer.
// Scheduler control methods are serialized internally, so concurrent
// Schedule*/Stop calls are safe but take effect one at a time.
package servo
