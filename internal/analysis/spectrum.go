package analysis

import (
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"
)

// PowerSpectrum returns |X(k)| for k = 0..n/2 of the mean-removed signal.
func PowerSpectrum(data []float64) []float64 {
	if len(data) < 2 {
		return nil
	}
	mean := stat.Mean(data, nil)
	centered := make([]float64, len(data))
	for i, v := range data {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(len(centered))
	coeff := fft.Coefficients(nil, centered)
	ps := make([]float64, len(coeff))
	for i, c := range coeff {
		ps[i] = cmplx.Abs(c)
	}
	return ps
}

// Peak is the strongest spectral line of a signal.
type Peak struct {
	Frequency float64
	Power     float64
	// Share is Power over the summed non-DC power.
	Share float64
}

// Dominant finds the strongest non-DC frequency of data sampled at rate Hz.
func Dominant(data []float64, rate float64) Peak {
	ps := PowerSpectrum(data)
	if len(ps) < 2 {
		return Peak{}
	}

	var peak Peak
	total := 0.0
	idx := 0
	for i := 1; i < len(ps); i++ {
		total += ps[i]
		if ps[i] > peak.Power {
			peak.Power = ps[i]
			idx = i
		}
	}
	if idx == 0 {
		return Peak{}
	}
	peak.Frequency = float64(idx) * rate / float64(len(data))
	if total > 0 {
		peak.Share = peak.Power / total
	}
	return peak
}
