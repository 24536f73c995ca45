package sonar

import (
	"errors"
	"fmt"
)

// ErrNoDetection reports that a search completed without any hypothesis
// clearing the detection threshold. It is a valid negative result, not a
// processing failure.
var ErrNoDetection = errors.New("no detection")

// ErrOutOfRange reports that the threshold was cleared but the computed
// range fell outside the configured bounds. It unwraps to ErrNoDetection so
// callers that only care about "did we find something usable" can test a
// single sentinel.
var ErrOutOfRange = fmt.Errorf("detection outside configured range bounds: %w", ErrNoDetection)

// TargetInfo is the single-target detection result for one sonar cycle.
// Valid is set only when the peak power cleared the detection threshold and
// the computed range lies inside the configured bounds. Each cycle produces
// a fresh TargetInfo that unconditionally replaces the previous one; results
// are never merged across cycles.
type TargetInfo struct {
	RangeCM      float64
	AzimuthRad   float64
	ElevationRad float64
	Confidence   float64 // in [0, 1]
	Valid        bool
}

// rangeForIndex converts a trace sample index to a round-trip range in cm.
func rangeForIndex(idx int, sampleRate, speedOfSound float64) float64 {
	tof := float64(idx) / sampleRate
	return tof * speedOfSound * 100 / 2
}
