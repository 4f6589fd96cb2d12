// Package simdevice is an in-process haptic device implementing
// [device.Driver].
//
// The end-effector is a damped point mass driven by the commanded force
// plus a spring toward a movable "hand" target, which stands in for the
// user's grip. Callbacks run in priority order once per tick, either on a
// ticker goroutine (Rate > 0) or when the caller invokes [Device.Step].
//
// Failures can be injected per operation with [Device.FailNext] to exercise
// error paths that real hardware produces rarely.
package simdevice
