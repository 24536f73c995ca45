package dsp

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// SpectralMagnitudes computes the magnitude spectrum of a real signal.
// It returns one magnitude per non-negative frequency bin together with the
// bin centre frequencies in Hz.
func SpectralMagnitudes(signal []float64, sampleRate float64) (mags, freqs []float64, err error) {
	if len(signal) == 0 {
		return nil, nil, fmt.Errorf("spectrum: empty input: %w", ErrInvalidArgument)
	}
	if sampleRate <= 0 {
		return nil, nil, fmt.Errorf("spectrum: sample rate %g: %w", sampleRate, ErrInvalidArgument)
	}

	fft := fourier.NewFFT(len(signal))
	coeffs := fft.Coefficients(nil, signal)

	mags = make([]float64, len(coeffs))
	freqs = make([]float64, len(coeffs))
	for i, c := range coeffs {
		mags[i] = cmplx.Abs(c)
		freqs[i] = fft.Freq(i) * sampleRate
	}
	return mags, freqs, nil
}

// BandEnergyFraction reports the fraction of total spectral energy falling
// inside [lo, hi] Hz. Used to sanity-check transmit waveforms.
func BandEnergyFraction(signal []float64, sampleRate, lo, hi float64) (float64, error) {
	mags, freqs, err := SpectralMagnitudes(signal, sampleRate)
	if err != nil {
		return 0, err
	}

	var band, total float64
	for i, m := range mags {
		e := m * m
		total += e
		if freqs[i] >= lo && freqs[i] <= hi {
			band += e
		}
	}
	if total == 0 {
		return 0, nil
	}
	return band / total, nil
}
