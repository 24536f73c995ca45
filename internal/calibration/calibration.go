// Package calibration holds the per-microphone corrections and the
// temperature-dependent speed of sound used by the detection pipeline.
package calibration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/strigiform/skeeterhawk/internal/dsp"
	"github.com/strigiform/skeeterhawk/internal/sonar"
)

// Speed of sound in air as a function of temperature:
// c = 331.3 + 0.606·T m/s.
const (
	speedOfSoundBase  = 331.3
	speedOfSoundCoeff = 0.606
)

// ReferenceTemperatureC is the temperature assumed before a measurement is
// available.
const ReferenceTemperatureC = 20.0

// SpeedOfSound returns the speed of sound in m/s at the given air
// temperature in °C.
func SpeedOfSound(temperatureC float64) float64 {
	return speedOfSoundBase + speedOfSoundCoeff*temperatureC
}

// MicCalibration carries the per-channel corrections applied to raw
// samples. Phase offsets are stored but not applied sample-wise; phase
// alignment happens in beamforming.
type MicCalibration struct {
	Gain        [sonar.NumMics]float64
	PhaseOffset [sonar.NumMics]float64
	DCOffset    [sonar.NumMics]float64
	Calibrated  bool
}

// System is the full calibration state: microphone corrections plus the
// acoustic environment.
type System struct {
	Mic          MicCalibration
	SpeedOfSound float64 // m/s
	Temperature  float64 // °C
	TxPower      float64 // normalised transmit power
}

// New returns calibration state with unity gains, zero offsets, and the
// speed of sound at the reference temperature.
func New() *System {
	s := &System{
		SpeedOfSound: SpeedOfSound(ReferenceTemperatureC),
		Temperature:  ReferenceTemperatureC,
		TxPower:      1.0,
	}
	for i := range s.Mic.Gain {
		s.Mic.Gain[i] = 1.0
	}
	return s
}

// SetTemperature records a temperature measurement and recomputes the speed
// of sound.
func (s *System) SetTemperature(temperatureC float64) {
	s.Temperature = temperatureC
	s.SpeedOfSound = SpeedOfSound(temperatureC)
}

// CalibrateMics derives per-channel corrections from a reference capture.
//
// TODO: derive gain and DC offset from the reference capture instead of
// assuming unity; needs a known-distance reflector rig.
func (s *System) CalibrateMics(reference []float64) error {
	if len(reference) == 0 {
		return fmt.Errorf("calibrate mics: empty reference: %w", dsp.ErrInvalidArgument)
	}
	for i := range s.Mic.Gain {
		s.Mic.Gain[i] = 1.0
		s.Mic.PhaseOffset[i] = 0
		s.Mic.DCOffset[i] = 0
	}
	s.Mic.Calibrated = true
	return nil
}

// Apply writes corrected samples for every channel: (raw − dcOffset) · gain.
// Before CalibrateMics has run, samples pass through unchanged. Each output
// slice must match its input's length.
func (s *System) Apply(raw, corrected [sonar.NumMics][]float64) error {
	for i := 0; i < sonar.NumMics; i++ {
		if len(corrected[i]) != len(raw[i]) {
			return fmt.Errorf("apply calibration: channel %d length %d, want %d: %w",
				i, len(corrected[i]), len(raw[i]), dsp.ErrInvalidArgument)
		}
	}

	if !s.Mic.Calibrated {
		for i := 0; i < sonar.NumMics; i++ {
			copy(corrected[i], raw[i])
		}
		return nil
	}

	for i := 0; i < sonar.NumMics; i++ {
		gain := s.Mic.Gain[i]
		dc := s.Mic.DCOffset[i]
		for j, v := range raw[i] {
			corrected[i][j] = (v - dc) * gain
		}
	}
	return nil
}

// Diagnostics is a per-channel health snapshot of one receive capture.
type Diagnostics struct {
	SignalPower [sonar.NumMics]float64 // mean square over the full capture
	NoiseFloor  [sonar.NumMics]float64 // mean square over the leading 10%
	SNRdB       [sonar.NumMics]float64
	SampleCount int
	Valid       bool
}

// RunDiagnostics measures signal power, noise floor, and SNR per channel.
// The noise floor comes from the leading tenth of each capture, before any
// echo can arrive.
func RunDiagnostics(rx [sonar.NumMics][]float64) (Diagnostics, error) {
	n := len(rx[0])
	if n == 0 {
		return Diagnostics{}, fmt.Errorf("diagnostics: empty capture: %w", dsp.ErrInvalidArgument)
	}
	for i := 1; i < sonar.NumMics; i++ {
		if len(rx[i]) != n {
			return Diagnostics{}, fmt.Errorf("diagnostics: channel %d length %d, want %d: %w",
				i, len(rx[i]), n, dsp.ErrInvalidArgument)
		}
	}

	var d Diagnostics
	for i := 0; i < sonar.NumMics; i++ {
		d.SignalPower[i] = floats.Dot(rx[i], rx[i]) / float64(n)

		noiseSamples := n / 10
		if noiseSamples > 0 {
			head := rx[i][:noiseSamples]
			d.NoiseFloor[i] = floats.Dot(head, head) / float64(noiseSamples)
		} else {
			d.NoiseFloor[i] = d.SignalPower[i]
		}

		if d.NoiseFloor[i] > 0 {
			d.SNRdB[i] = 10 * math.Log10(d.SignalPower[i]/d.NoiseFloor[i])
		}
	}
	d.SampleCount = n
	d.Valid = true
	return d, nil
}
