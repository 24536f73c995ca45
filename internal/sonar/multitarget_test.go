package sonar

import (
	"errors"
	"math"
	"testing"

	"github.com/strigiform/skeeterhawk/internal/dsp"
)

func TestAdaptiveThresholdConstantTrace(t *testing.T) {
	// Zero spread collapses the threshold to the mean.
	got, err := AdaptiveThreshold([]float64{2, 2, 2, 2})
	if err != nil {
		t.Fatalf("AdaptiveThreshold: %v", err)
	}
	if got != 2 {
		t.Errorf("threshold = %g, want 2", got)
	}
}

func TestAdaptiveThresholdEmptyTrace(t *testing.T) {
	if _, err := AdaptiveThreshold(nil); !errors.Is(err, dsp.ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestFindPeaks(t *testing.T) {
	trace := []float64{0, 3, 0, -5, 0, 2, 0}

	got := FindPeaks(trace, 1, 10)
	want := []int{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("peaks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("peaks = %v, want %v", got, want)
		}
	}

	// The negative excursion is the only one above 4 in magnitude.
	if got := FindPeaks(trace, 4, 10); len(got) != 1 || got[0] != 3 {
		t.Errorf("peaks above 4 = %v, want [3]", got)
	}

	// A plateau is not a strict local maximum.
	if got := FindPeaks([]float64{0, 2, 2, 0}, 1, 10); len(got) != 0 {
		t.Errorf("plateau peaks = %v, want none", got)
	}
}

func TestFindPeaksCapKeepsEarliest(t *testing.T) {
	trace := []float64{0, 3, 0, 5, 0, 4, 0, 6, 0}
	got := FindPeaks(trace, 1, 2)
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Errorf("capped peaks = %v, want [1 3]", got)
	}
}

func TestClusterPeaksMergeAndSeparate(t *testing.T) {
	// At 200 kHz and 343 m/s one sample is 0.08575 cm of range. Samples
	// 1000 and 1100 are 8.6 cm apart and merge; 1500 is 38 cm from the
	// merged centroid and seeds its own cluster.
	trace := make([]float64, 2000)
	trace[1000] = 5
	trace[1100] = 3
	trace[1500] = 4

	clusters := ClusterPeaks([]int{1000, 1100, 1500}, trace, 200e3, 343, MaxTargets)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want 2", len(clusters))
	}

	first := clusters[0]
	if math.Abs(first.RangeCM-90.0375) > 1e-6 {
		t.Errorf("merged centroid = %g cm, want 90.0375", first.RangeCM)
	}
	if first.Power != 5 || first.SampleCount != 2 {
		t.Errorf("merged cluster power %g count %d, want 5 and 2", first.Power, first.SampleCount)
	}

	second := clusters[1]
	if math.Abs(second.RangeCM-128.625) > 1e-6 {
		t.Errorf("second cluster range = %g cm, want 128.625", second.RangeCM)
	}
	if second.Power != 4 || second.SampleCount != 1 {
		t.Errorf("second cluster power %g count %d, want 4 and 1", second.Power, second.SampleCount)
	}
}

func TestClusterPeaksChainsPastSeparation(t *testing.T) {
	// Three peaks 10 cm apart each stay within 20 cm of the running
	// centroid and merge into one cluster spanning 20 cm.
	trace := make([]float64, 500)
	peaks := []int{100, 217, 334}
	for _, p := range peaks {
		trace[p] = 2
	}

	clusters := ClusterPeaks(peaks, trace, 200e3, 343, MaxTargets)
	if len(clusters) != 1 {
		t.Fatalf("got %d clusters, want 1 chained cluster", len(clusters))
	}
	if clusters[0].SampleCount != 3 {
		t.Errorf("chained cluster merged %d peaks, want 3", clusters[0].SampleCount)
	}
	if math.Abs(clusters[0].RangeCM-18.60775) > 1e-6 {
		t.Errorf("chained centroid = %g cm, want 18.60775", clusters[0].RangeCM)
	}
}

func TestClusterPeaksHonoursCap(t *testing.T) {
	trace := make([]float64, 1500)
	peaks := []int{100, 400, 700, 1000, 1300} // all > 25 cm apart
	for _, p := range peaks {
		trace[p] = 1
	}

	clusters := ClusterPeaks(peaks, trace, 200e3, 343, 2)
	if len(clusters) != 2 {
		t.Fatalf("got %d clusters, want cap of 2", len(clusters))
	}
	if math.Abs(clusters[0].RangeCM-8.575) > 1e-6 || math.Abs(clusters[1].RangeCM-34.3) > 1e-6 {
		t.Errorf("capped clusters at %g and %g cm, want nearest two", clusters[0].RangeCM, clusters[1].RangeCM)
	}
}

func TestDetectMultiTargetQuietTrace(t *testing.T) {
	res, err := DetectMultiTarget(make([]float64, 1000), 200e3, 343)
	if err != nil {
		t.Fatalf("DetectMultiTarget: %v", err)
	}
	if res.Valid || len(res.Targets) != 0 {
		t.Errorf("result = %+v, want invalid with no targets", res)
	}
}

func TestDetectMultiTargetInvalidInput(t *testing.T) {
	if _, err := DetectMultiTarget(nil, 200e3, 343); !errors.Is(err, dsp.ErrInvalidArgument) {
		t.Errorf("empty trace err = %v, want ErrInvalidArgument", err)
	}
	if _, err := DetectMultiTarget(make([]float64, 10), 0, 343); !errors.Is(err, dsp.ErrInvalidArgument) {
		t.Errorf("zero sample rate err = %v, want ErrInvalidArgument", err)
	}
}

func TestDetectMultiTargetTwoEchoes(t *testing.T) {
	trace := make([]float64, 4000)
	trace[1000] = 10
	trace[3000] = 8

	res, err := DetectMultiTarget(trace, 200e3, 343)
	if err != nil {
		t.Fatalf("DetectMultiTarget: %v", err)
	}
	if !res.Valid || len(res.Targets) != 2 {
		t.Fatalf("result = %+v, want two targets", res)
	}
	if math.Abs(res.Targets[0].RangeCM-85.75) > 0.1 || math.Abs(res.Targets[1].RangeCM-257.25) > 0.1 {
		t.Errorf("ranges = %g, %g cm, want ~85.75 and ~257.25",
			res.Targets[0].RangeCM, res.Targets[1].RangeCM)
	}
	if res.Targets[0].Power != 10 || res.Targets[1].Power != 8 {
		t.Errorf("powers = %g, %g, want 10 and 8", res.Targets[0].Power, res.Targets[1].Power)
	}
}

func TestProcessorMultiTarget(t *testing.T) {
	p := newTestProcessor(t)

	// Two aligned echoes on every channel: the broadside average keeps
	// both at full amplitude.
	for m := 0; m < NumMics; m++ {
		buf := p.filtered[m]
		for j := range buf {
			buf[j] = 0
		}
		buf[1000] = 6
		buf[3000] = 5
	}

	res, err := p.MultiTarget()
	if err != nil {
		t.Fatalf("MultiTarget: %v", err)
	}
	if !res.Valid || len(res.Targets) != 2 {
		t.Fatalf("result = %+v, want two targets", res)
	}
	if math.Abs(res.Targets[0].RangeCM-85.75) > 0.1 || math.Abs(res.Targets[1].RangeCM-257.25) > 0.1 {
		t.Errorf("ranges = %g, %g cm, want ~85.75 and ~257.25",
			res.Targets[0].RangeCM, res.Targets[1].RangeCM)
	}
	for _, tc := range res.Targets {
		if tc.AzimuthRad != 0 || tc.ElevationRad != 0 {
			t.Errorf("cluster carries angles %g, %g, want zero", tc.AzimuthRad, tc.ElevationRad)
		}
	}
}
