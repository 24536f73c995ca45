package dsp

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats summarises a trace for thresholding and diagnostics.
type Stats struct {
	Mean   float64
	StdDev float64
	Peak   float64 // largest absolute value
}

// TraceStats computes mean, sample standard deviation, and absolute peak of
// a signal. An empty signal yields the zero Stats.
func TraceStats(signal []float64) Stats {
	if len(signal) == 0 {
		return Stats{}
	}
	s := Stats{
		Mean:   stat.Mean(signal, nil),
		StdDev: stat.StdDev(signal, nil),
	}
	if len(signal) == 1 {
		s.StdDev = 0
	}
	for _, v := range signal {
		if a := math.Abs(v); a > s.Peak {
			s.Peak = a
		}
	}
	return s
}

// PeakAbs returns the index and value of the sample with the largest
// absolute value. ok is false for an empty signal.
func PeakAbs(signal []float64) (idx int, val float64, ok bool) {
	if len(signal) == 0 {
		return 0, 0, false
	}
	best := math.Abs(signal[0])
	for i := 1; i < len(signal); i++ {
		if a := math.Abs(signal[i]); a > best {
			best = a
			idx = i
		}
	}
	return idx, best, true
}
