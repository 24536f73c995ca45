package dsp

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidArgument reports a null, zero-length, or otherwise degenerate
// input. No partial output is produced alongside it.
var ErrInvalidArgument = errors.New("invalid argument")

// Chirp generates a linear-FM transmit pulse with a Hann envelope.
//
// The instantaneous phase is 2π(f0·t + 0.5·k·t²) with chirp rate
// k = (f1−f0)/duration and duration = length/sampleRate. The same inputs
// always produce a bit-identical waveform.
func Chirp(length int, sampleRate, f0, f1 float64) ([]float64, error) {
	if length < 2 {
		return nil, fmt.Errorf("chirp length %d: %w", length, ErrInvalidArgument)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("chirp sample rate %g: %w", sampleRate, ErrInvalidArgument)
	}

	duration := float64(length) / sampleRate
	rate := (f1 - f0) / duration

	out := make([]float64, length)
	for i := range out {
		t := float64(i) / sampleRate
		phase := 2 * math.Pi * (f0*t + 0.5*rate*t*t)
		out[i] = math.Cos(phase)
	}
	ApplyWindow(out, Hann(length))
	return out, nil
}

// MatchedFilter returns the pulse-compression kernel for a transmit
// waveform: its time reversal.
func MatchedFilter(waveform []float64) []float64 {
	kernel := make([]float64, len(waveform))
	for i, v := range waveform {
		kernel[len(waveform)-1-i] = v
	}
	return kernel
}
