// Package session is the control surface of one haptic device.
//
// A Session owns the servo scheduler for a single device and exposes the
// operations a host application calls: lifecycle (Init, Shutdown), model
// selection (StartIdle, StartToCenter, StartSphere, StartConstrained, Stop),
// sphere parameters, and snapshot queries. Every method is safe to call from
// any goroutine. StatusCode turns a returned error into the integer status
// a foreign caller expects.
package session
