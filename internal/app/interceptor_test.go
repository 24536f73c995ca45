package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/strigiform/skeeterhawk/internal/acquisition"
	"github.com/strigiform/skeeterhawk/internal/dsp"
	"github.com/strigiform/skeeterhawk/internal/guidance"
	"github.com/strigiform/skeeterhawk/internal/logging"
	"github.com/strigiform/skeeterhawk/internal/recorder"
	"github.com/strigiform/skeeterhawk/internal/sonar"
	"github.com/strigiform/skeeterhawk/internal/telemetry"
)

type capturingReporter struct {
	samples []telemetry.Sample
}

func (r *capturingReporter) Report(s telemetry.Sample) {
	r.samples = append(r.samples, s)
}

type recordingLogger struct {
	debugs []string
	warns  []string
}

func (l *recordingLogger) Debug(msg string, _ ...logging.Field) { l.debugs = append(l.debugs, msg) }
func (l *recordingLogger) Info(string, ...logging.Field)        {}
func (l *recordingLogger) Warn(msg string, _ ...logging.Field)  { l.warns = append(l.warns, msg) }
func (l *recordingLogger) Error(string, ...logging.Field)       {}
func (l *recordingLogger) With(...logging.Field) logging.Logger { return l }

// Mics on the y-z plane so a broadside target is equidistant from all four
// and wins the (0, 0) grid cell without quantisation ties.
func testGeometry() sonar.ArrayGeometry {
	return sonar.ArrayGeometry{
		r3.Vec{X: 0, Y: -0.1, Z: -0.1},
		r3.Vec{X: 0, Y: 0.1, Z: -0.1},
		r3.Vec{X: 0, Y: -0.1, Z: 0.1},
		r3.Vec{X: 0, Y: 0.1, Z: 0.1},
	}
}

func testConfig() Config {
	return Config{
		Sonar: sonar.Config{
			SampleRate:         200e3,
			ChirpSamples:       200,
			ChirpF0:            38e3,
			ChirpF1:            42e3,
			DetectionThreshold: 2,
			MinRangeCM:         10,
			MaxRangeCM:         400,
			Geometry:           testGeometry(),
		},
		TemperatureC: 20,
		CyclePeriod:  time.Millisecond,
		MaxCycles:    3,
	}
}

func TestInterceptorDetectsSimTarget(t *testing.T) {
	source := acquisition.NewSim(acquisition.SimTarget{RangeM: 1.5, RCS: 1})
	reporter := &capturingReporter{}
	ring := recorder.NewRing(100)
	ic := NewInterceptor(source, reporter, ring, nil, nil, testConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if ic.Cycles() != 3 {
		t.Fatalf("cycles = %d, want 3", ic.Cycles())
	}
	if len(reporter.samples) != 3 {
		t.Fatalf("reported %d samples, want 3", len(reporter.samples))
	}

	last := ic.LastSample()
	if !last.Valid {
		t.Fatalf("expected a valid detection")
	}
	// Matched-filter peak sits one chirp length past the echo onset, so the
	// reported range carries that fixed offset: (1747+199) samples at
	// 0.08586 cm/sample is about 167.1 cm.
	if math.Abs(last.RangeCM-167.1) > 0.5 {
		t.Errorf("range = %.2f cm, want about 167.1", last.RangeCM)
	}
	if last.AzimuthRad != 0 || last.ElevationRad != 0 {
		t.Errorf("angles = (%.3f, %.3f), want broadside", last.AzimuthRad, last.ElevationRad)
	}
	// Stationary vehicle, zero LOS rate: no steering, hover thrust.
	for i, m := range last.Motors {
		if math.Abs(m-0.5) > 1e-12 {
			t.Errorf("motor %d = %.3f, want 0.5", i, m)
		}
	}
	if last.Intercept {
		t.Errorf("unexpected intercept at %.1f cm", last.RangeCM)
	}

	entries := ring.Entries()
	if len(entries) != 6 {
		t.Fatalf("recorded %d entries, want 6", len(entries))
	}
	if entries[0].Kind() != "detection" || entries[1].Kind() != "guidance" {
		t.Errorf("entry kinds = %q, %q; want detection, guidance", entries[0].Kind(), entries[1].Kind())
	}
}

func TestInterceptorQuietSceneReportsInvalid(t *testing.T) {
	source := acquisition.NewSim()
	reporter := &capturingReporter{}
	ring := recorder.NewRing(100)
	cfg := testConfig()
	cfg.MaxCycles = 2
	ic := NewInterceptor(source, reporter, ring, nil, nil, cfg)

	ctx := context.Background()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for _, s := range reporter.samples {
		if s.Valid {
			t.Errorf("cycle %d reported valid with an empty scene", s.Cycle)
		}
	}
	entries := ring.Entries()
	if len(entries) != 2 {
		t.Fatalf("recorded %d entries, want 2", len(entries))
	}
	ce, ok := entries[0].(recorder.CycleEntry)
	if !ok {
		t.Fatalf("entry kind = %q, want cycle", entries[0].Kind())
	}
	if ce.Detail != "no detection" {
		t.Errorf("detail = %q", ce.Detail)
	}
}

func TestInterceptorMultiTargetCount(t *testing.T) {
	source := acquisition.NewSim(
		acquisition.SimTarget{RangeM: 0.8, RCS: 1},
		acquisition.SimTarget{RangeM: 2.0, RCS: 1},
	)
	cfg := testConfig()
	cfg.MaxCycles = 1
	cfg.MultiTarget = true
	lg := &recordingLogger{}
	ic := NewInterceptor(source, nil, nil, nil, lg, cfg)

	ctx := context.Background()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	last := ic.LastSample()
	if !last.Valid {
		t.Fatalf("expected a valid detection")
	}
	// The nearer echo is much stronger and wins the single-target search.
	if math.Abs(last.RangeCM-97.0) > 0.5 {
		t.Errorf("range = %.2f cm, want about 97.0", last.RangeCM)
	}
	if last.TargetCount < 1 {
		t.Errorf("target count = %d", last.TargetCount)
	}
	// A healthy secondary detector raises no warnings.
	if len(lg.warns) != 0 {
		t.Errorf("unexpected warnings: %v", lg.warns)
	}
}

func TestInterceptorDiagnosticsLogged(t *testing.T) {
	source := acquisition.NewSim(acquisition.SimTarget{RangeM: 1.5, RCS: 1})
	cfg := testConfig()
	cfg.MaxCycles = 1
	cfg.Diagnostics = true
	lg := &recordingLogger{}
	ic := NewInterceptor(source, nil, nil, nil, lg, cfg)

	ctx := context.Background()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	found := false
	for _, msg := range lg.debugs {
		if msg == "capture diagnostics" {
			found = true
		}
	}
	if !found {
		t.Fatalf("no diagnostics entry logged; debug messages: %v", lg.debugs)
	}
	if len(lg.warns) != 0 {
		t.Errorf("unexpected warnings: %v", lg.warns)
	}
}

func TestInterceptorInitRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Sonar.SampleRate = 0
	ic := NewInterceptor(acquisition.NewSim(), nil, nil, nil, nil, cfg)
	if err := ic.Init(context.Background()); !errors.Is(err, dsp.ErrInvalidArgument) {
		t.Fatalf("init err = %v, want ErrInvalidArgument", err)
	}
}

func TestInterceptorStopsOnContext(t *testing.T) {
	cfg := testConfig()
	cfg.MaxCycles = 0
	ic := NewInterceptor(acquisition.NewSim(), nil, nil, nil, nil, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("run err = %v, want deadline exceeded", err)
	}
}

func TestInterceptorWarmupDiscardsCaptures(t *testing.T) {
	source := acquisition.NewSim(acquisition.SimTarget{RangeM: 1.5, RCS: 1})
	reporter := &capturingReporter{}
	cfg := testConfig()
	cfg.WarmupCycles = 2
	cfg.MaxCycles = 1
	ic := NewInterceptor(source, reporter, nil, nil, nil, cfg)

	ctx := context.Background()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if len(reporter.samples) != 1 {
		t.Fatalf("reported %d samples, want 1 after warmup", len(reporter.samples))
	}
}

func TestStaticStateFeedsGuidance(t *testing.T) {
	// Vehicle already within the intercept radius of the detected target.
	state := StaticState(guidance.VehicleState{Position: r3.Vec{X: 1.63, Y: 0, Z: 0}})
	source := acquisition.NewSim(acquisition.SimTarget{RangeM: 1.5, RCS: 1})
	cfg := testConfig()
	cfg.MaxCycles = 1
	ic := NewInterceptor(source, nil, nil, state, nil, cfg)

	ctx := context.Background()
	if err := ic.Init(ctx); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := ic.Run(ctx); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	last := ic.LastSample()
	if !last.Valid {
		t.Fatalf("expected a valid detection")
	}
	if !last.Intercept {
		t.Fatalf("expected intercept: vehicle at 163 cm, target reported at %.1f cm", last.RangeCM)
	}
	if last.AccelX != 0 || last.AccelY != 0 || last.AccelZ != 0 {
		t.Errorf("intercept command carries acceleration (%g, %g, %g)", last.AccelX, last.AccelY, last.AccelZ)
	}
}
