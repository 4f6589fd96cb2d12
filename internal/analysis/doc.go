// Package analysis inspects recorded servo runs.
//
// The main concern is buzz: a stiff virtual wall rendered at too low a
// servo rate makes the end-effector chatter against the surface, which shows
// up as a sharp peak in the force spectrum.
//
//   - [PowerSpectrum]: magnitude spectrum of a real signal
//   - [Dominant]: strongest non-DC frequency of a sampled signal
//   - [Summarize]: per-run contact statistics
//
// # Buzz Detection
//
//	peak := analysis.Dominant(forceMagnitudes, 1000)
//	if peak.Frequency > 30 && peak.Share > 0.2 {
//	    // wall is chattering
//	}
package analysis
