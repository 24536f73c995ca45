package dsp

import "math"

// Hann returns a Hann window of length n.
// If n is zero or negative, an empty slice is returned.
func Hann(n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	win := make([]float64, n)
	if n == 1 {
		win[0] = 0
		return win
	}
	for i := 0; i < n; i++ {
		win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return win
}

// ApplyWindow multiplies the input samples with the provided window in place.
// The window length must match the input length; mismatched inputs are left
// untouched.
func ApplyWindow(samples, window []float64) {
	if len(samples) != len(window) {
		return
	}
	for i := range samples {
		samples[i] *= window[i]
	}
}
