package sonar

import (
	"fmt"
	"math"

	"github.com/strigiform/skeeterhawk/internal/dsp"
)

const (
	// MaxTargets bounds the number of clusters reported per invocation.
	MaxTargets = 5

	// adaptiveThresholdFactor is the K in mean + K·stddev.
	adaptiveThresholdFactor = 3.0

	// minTargetSeparationCM is the merge distance for clustering. Peaks
	// within this distance of a cluster's running centroid join it.
	minTargetSeparationCM = 20.0
)

// TargetCluster is one merged group of nearby echo peaks. Azimuth and
// elevation stay zero: the detector works on a single beamformed trace and
// carries no angle information.
type TargetCluster struct {
	RangeCM      float64
	AzimuthRad   float64
	ElevationRad float64
	Power        float64
	SampleCount  int // number of merged peaks
}

// MultiTargetResult is produced fresh on every invocation. Valid is false
// when no peak cleared the adaptive threshold; that is a negative result,
// not an error.
type MultiTargetResult struct {
	Targets []TargetCluster
	Valid   bool
}

// AdaptiveThreshold computes mean + K·stddev over a trace with K fixed at 3.
func AdaptiveThreshold(trace []float64) (float64, error) {
	if len(trace) == 0 {
		return 0, fmt.Errorf("adaptive threshold: empty trace: %w", dsp.ErrInvalidArgument)
	}
	s := dsp.TraceStats(trace)
	return s.Mean + adaptiveThresholdFactor*s.StdDev, nil
}

// FindPeaks scans the interior of a trace for strict local maxima of
// absolute value above the threshold. Scanning stops once maxPeaks indices
// are collected, so when more candidates exist than the cap the result is
// biased toward earlier (shorter-range) peaks.
func FindPeaks(trace []float64, threshold float64, maxPeaks int) []int {
	var peaks []int
	for i := 1; i < len(trace)-1 && len(peaks) < maxPeaks; i++ {
		v := math.Abs(trace[i])
		if v > threshold && v > math.Abs(trace[i-1]) && v > math.Abs(trace[i+1]) {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// ClusterPeaks greedily groups peaks by range. Peaks are visited in
// ascending index (range) order; each unprocessed peak seeds a cluster, and
// every later unprocessed peak within minTargetSeparationCM of the cluster's
// running centroid merges into it. The centroid is the running average of
// merged ranges and the power the running maximum. Because merges test
// against the moving centroid, a chain of close peaks can span more than the
// separation distance; that greedy behaviour is intentional.
func ClusterPeaks(peaks []int, trace []float64, sampleRate, speedOfSound float64, maxClusters int) []TargetCluster {
	if len(peaks) == 0 {
		return nil
	}

	processed := make([]bool, len(peaks))
	clusters := make([]TargetCluster, 0, maxClusters)

	for i := range peaks {
		if len(clusters) >= maxClusters {
			break
		}
		if processed[i] {
			continue
		}
		c := TargetCluster{
			RangeCM:     rangeForIndex(peaks[i], sampleRate, speedOfSound),
			Power:       math.Abs(trace[peaks[i]]),
			SampleCount: 1,
		}
		processed[i] = true

		for j := i + 1; j < len(peaks); j++ {
			if processed[j] {
				continue
			}
			rangeJ := rangeForIndex(peaks[j], sampleRate, speedOfSound)
			if math.Abs(rangeJ-c.RangeCM) < minTargetSeparationCM {
				c.RangeCM = (c.RangeCM*float64(c.SampleCount) + rangeJ) / float64(c.SampleCount+1)
				c.Power = math.Max(c.Power, math.Abs(trace[peaks[j]]))
				c.SampleCount++
				processed[j] = true
			}
		}
		clusters = append(clusters, c)
	}
	return clusters
}

// DetectMultiTarget runs the secondary detector over one beamformed trace:
// adaptive threshold, capped peak finding, then greedy clustering. It is
// independent of the angle-grid search and reports ranges only.
func DetectMultiTarget(trace []float64, sampleRate, speedOfSound float64) (MultiTargetResult, error) {
	if len(trace) == 0 {
		return MultiTargetResult{}, fmt.Errorf("multi-target: empty trace: %w", dsp.ErrInvalidArgument)
	}
	if sampleRate <= 0 {
		return MultiTargetResult{}, fmt.Errorf("multi-target: sample rate %g: %w", sampleRate, dsp.ErrInvalidArgument)
	}

	threshold, err := AdaptiveThreshold(trace)
	if err != nil {
		return MultiTargetResult{}, err
	}

	peaks := FindPeaks(trace, threshold, MaxTargets*2)
	if len(peaks) == 0 {
		return MultiTargetResult{}, nil
	}

	clusters := ClusterPeaks(peaks, trace, sampleRate, speedOfSound, MaxTargets)
	return MultiTargetResult{Targets: clusters, Valid: len(clusters) > 0}, nil
}

// MultiTarget beamforms the broadside direction over the current filtered
// buffers and runs the multi-target detector on the result. It expects the
// matched filter to have run this cycle, which DetectTarget and
// DetectTargetParallel both do.
func (p *Processor) MultiTarget() (MultiTargetResult, error) {
	p.beamformInto(p.trace, 0, 0)
	return DetectMultiTarget(p.trace, p.cfg.SampleRate, p.cfg.SpeedOfSound)
}
