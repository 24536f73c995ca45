// Package sonar implements the active-sonar detection pipeline: matched
// filtering of the four microphone channels, delay-and-sum beamforming, an
// exhaustive angle-grid search for the strongest echo, and a secondary
// multi-target detector over a single beamformed trace.
package sonar

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// NumMics is the number of microphones in the receive array.
const NumMics = 4

// SpeedOfSound is the default propagation speed in m/s at 20°C.
const SpeedOfSound = 343.0

// ArrayGeometry holds the fixed 3D position of each microphone in metres.
// Positions are set once and never change; all TDOA math derives from them.
type ArrayGeometry [NumMics]r3.Vec

// DefaultArray returns the 2×2 square array of the reference hardware:
// 1 cm spacing centred on the origin, all microphones in the z=0 plane.
func DefaultArray() ArrayGeometry {
	const half = 0.005
	return ArrayGeometry{
		{X: -half, Y: -half}, // bottom-left
		{X: half, Y: -half},  // bottom-right
		{X: -half, Y: half},  // top-left
		{X: half, Y: half},   // top-right
	}
}

// SteeringVector converts an azimuth/elevation pair (radians) to a unit
// direction vector. Azimuth rotates in the x-y plane, elevation out of it.
func SteeringVector(azimuth, elevation float64) r3.Vec {
	return r3.Vec{
		X: math.Cos(elevation) * math.Cos(azimuth),
		Y: math.Cos(elevation) * math.Sin(azimuth),
		Z: math.Sin(elevation),
	}
}

// Delays computes the per-microphone propagation delay in seconds for a
// steering direction, normalised so the delay of microphone 0 is zero. Only
// relative (TDOA) delays matter for delay-and-sum alignment.
func (g ArrayGeometry) Delays(dir r3.Vec, speedOfSound float64) [NumMics]float64 {
	var delays [NumMics]float64
	for i, pos := range g {
		delays[i] = r3.Dot(pos, dir) / speedOfSound
	}
	ref := delays[0]
	for i := range delays {
		delays[i] -= ref
	}
	return delays
}
