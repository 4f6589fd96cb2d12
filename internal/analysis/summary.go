package analysis

import (
	"github.com/san-kum/touchy/internal/simdevice"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the contact behaviour of a recorded run.
type Summary struct {
	Frames    int
	Contacts  int
	MeanForce float64
	StdForce  float64
	MaxForce  float64
	// Episodes counts separate contact intervals.
	Episodes int
	Buzz     Peak
}

// ForceMagnitudes extracts |F| per frame.
func ForceMagnitudes(frames []simdevice.Sample) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = r3.Norm(f.Force)
	}
	return out
}

// Summarize computes contact statistics; rate is the frame rate of the
// recording, not necessarily the servo rate.
func Summarize(frames []simdevice.Sample, rate float64) Summary {
	s := Summary{Frames: len(frames)}
	if len(frames) == 0 {
		return s
	}

	mags := ForceMagnitudes(frames)
	touching := false
	for _, m := range mags {
		if m > 0 {
			s.Contacts++
			if !touching {
				s.Episodes++
			}
		}
		touching = m > 0
		if m > s.MaxForce {
			s.MaxForce = m
		}
	}
	s.MeanForce, s.StdForce = stat.MeanStdDev(mags, nil)
	if len(mags) == 1 {
		s.StdForce = 0
	}
	s.Buzz = Dominant(mags, rate)
	return s
}
