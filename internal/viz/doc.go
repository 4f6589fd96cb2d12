// Package viz provides the live terminal monitor for a haptic session.
//
// The monitor is a Bubble Tea program that polls the session at 30 Hz and
// never touches the servo thread directly:
//
//   - [Monitor]: the tea.Model, rendering snapshot, sphere, force and errors
//   - [Canvas]: Braille-based pixel canvas for the top-down workspace view
//   - Theme selection with 3 built-in color schemes
//
// # Key Bindings
//
//	1-4       - Start idle / center / sphere / constrained
//	S         - Stop the running model
//	+ / -     - Grow or shrink the sphere radius by 10%
//	Arrows    - Move the simulated hand in X/Y
//	U / D     - Move the simulated hand up or down in Z
//	T         - Cycle color themes
//	?         - Show help overlay
//	Q         - Quit
package viz
