package sonar

// beamformInto delay-and-sums the filtered channels for one steering
// direction. dst is fully overwritten before accumulation — this is part of
// the beamformer's contract, not caller discipline, because the same scratch
// buffer is reused across every angle hypothesis of a cycle.
//
// Per-mic delays are truncated toward zero to whole samples; shifted samples
// that fall outside the trace contribute nothing (no wraparound). The sum is
// divided by the microphone count.
func (p *Processor) beamformInto(dst []float64, azimuth, elevation float64) {
	delays := p.cfg.Geometry.Delays(SteeringVector(azimuth, elevation), p.cfg.SpeedOfSound)

	for j := range dst {
		dst[j] = 0
	}

	n := len(dst)
	for m := 0; m < NumMics; m++ {
		shift := int(delays[m] * p.cfg.SampleRate)
		src := p.filtered[m]
		for j := 0; j < n; j++ {
			k := j - shift
			if k >= 0 && k < n {
				dst[j] += src[k]
			}
		}
	}

	const scale = 1.0 / NumMics
	for j := range dst {
		dst[j] *= scale
	}
}

// Beamform steers the array at one direction and returns the combined
// trace. The returned slice is the processor's scratch buffer: it is valid
// until the next beamforming call and must not be retained.
func (p *Processor) Beamform(azimuth, elevation float64) []float64 {
	p.beamformInto(p.trace, azimuth, elevation)
	return p.trace
}
