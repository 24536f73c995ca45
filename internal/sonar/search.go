package sonar

import (
	"math"
	"runtime"

	"github.com/strigiform/skeeterhawk/internal/dsp"
)

// Angle-grid extent of the detection search. The step is span/steps, so the
// sweep starts at the minimum and stops one step short of the maximum.
const (
	azimuthSteps   = 20
	elevationSteps = 20
	azimuthMin     = -math.Pi / 2
	azimuthMax     = math.Pi / 2
	elevationMin   = -math.Pi / 4
	elevationMax   = math.Pi / 4
)

// GridHypotheses is the number of steering directions evaluated per cycle.
const GridHypotheses = azimuthSteps * elevationSteps

func gridAngles(ordinal int) (azimuth, elevation float64) {
	const azStep = (azimuthMax - azimuthMin) / azimuthSteps
	const elStep = (elevationMax - elevationMin) / elevationSteps
	azimuth = azimuthMin + float64(ordinal/elevationSteps)*azStep
	elevation = elevationMin + float64(ordinal%elevationSteps)*elStep
	return azimuth, elevation
}

// hypothesisResult is one grid point's strongest sample.
type hypothesisResult struct {
	ordinal int
	peakIdx int
	power   float64
}

// better reports whether h wins against cur under the sequential sweep's
// tie-break: strictly greater power, or equal power at an earlier grid
// ordinal. The ordinal order is azimuth-major ascending, elevation ascending.
func (h hypothesisResult) better(cur hypothesisResult) bool {
	if h.power != cur.power {
		return h.power > cur.power
	}
	return h.ordinal < cur.ordinal
}

// finishDetection converts the winning hypothesis into a TargetInfo,
// applying the threshold and range gates. The stored target is overwritten
// unconditionally: a failed cycle clears it.
func (p *Processor) finishDetection(best hypothesisResult) (TargetInfo, error) {
	p.target = TargetInfo{}

	if best.power < p.cfg.DetectionThreshold {
		return TargetInfo{}, ErrNoDetection
	}

	rangeCM := rangeForIndex(best.peakIdx, p.cfg.SampleRate, p.cfg.SpeedOfSound)
	if rangeCM < p.cfg.MinRangeCM || rangeCM > p.cfg.MaxRangeCM {
		return TargetInfo{}, ErrOutOfRange
	}

	azimuth, elevation := gridAngles(best.ordinal)
	p.target = TargetInfo{
		RangeCM:      rangeCM,
		AzimuthRad:   azimuth,
		ElevationRad: elevation,
		Confidence:   math.Min(best.power/(p.cfg.DetectionThreshold*10), 1),
		Valid:        true,
	}
	return p.target, nil
}

// DetectTarget runs one full detection cycle over the loaded receive
// buffers: matched filtering on every channel, then the exhaustive
// 20×20 angle sweep, each hypothesis beamformed into the shared scratch
// trace. The first hypothesis encountered at the maximum power wins.
func (p *Processor) DetectTarget() (TargetInfo, error) {
	if err := p.matchedFilterAll(); err != nil {
		p.target = TargetInfo{}
		return TargetInfo{}, err
	}
	return p.finishDetection(p.sweepSequential())
}

func (p *Processor) sweepSequential() hypothesisResult {
	best := hypothesisResult{ordinal: -1}
	for ord := 0; ord < GridHypotheses; ord++ {
		azimuth, elevation := gridAngles(ord)
		p.beamformInto(p.trace, azimuth, elevation)
		idx, power, ok := dsp.PeakAbs(p.trace)
		if !ok {
			continue
		}
		h := hypothesisResult{ordinal: ord, peakIdx: idx, power: power}
		if best.ordinal < 0 || h.better(best) {
			best = h
		}
	}
	return best
}

// DetectTargetParallel is DetectTarget with the angle grid fanned out over a
// bounded worker pool. Each worker owns a private trace buffer, so no
// hypothesis shares scratch, and the reduction compares (power, ordinal) to
// reproduce the sequential sweep's first-encountered tie-break exactly.
// workers <= 0 selects one worker per CPU.
func (p *Processor) DetectTargetParallel(workers int) (TargetInfo, error) {
	if err := p.matchedFilterAll(); err != nil {
		p.target = TargetInfo{}
		return TargetInfo{}, err
	}
	return p.finishDetection(p.sweepParallel(workers))
}

func (p *Processor) sweepParallel(workers int) hypothesisResult {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > GridHypotheses {
		workers = GridHypotheses
	}

	// Per-worker scratch persists across cycles; it only grows when the
	// worker count does.
	for len(p.workerTraces) < workers {
		p.workerTraces = append(p.workerTraces, make([]float64, p.sampleCount))
	}

	jobs := make(chan int)
	results := make(chan hypothesisResult, workers)

	for w := 0; w < workers; w++ {
		go func(trace []float64) {
			for ord := range jobs {
				azimuth, elevation := gridAngles(ord)
				p.beamformInto(trace, azimuth, elevation)
				idx, power, ok := dsp.PeakAbs(trace)
				if !ok {
					results <- hypothesisResult{ordinal: -1}
					continue
				}
				results <- hypothesisResult{ordinal: ord, peakIdx: idx, power: power}
			}
		}(p.workerTraces[w])
	}

	go func() {
		for ord := 0; ord < GridHypotheses; ord++ {
			jobs <- ord
		}
		close(jobs)
	}()

	best := hypothesisResult{ordinal: -1}
	for i := 0; i < GridHypotheses; i++ {
		h := <-results
		if h.ordinal < 0 {
			continue
		}
		if best.ordinal < 0 || h.better(best) {
			best = h
		}
	}
	return best
}
