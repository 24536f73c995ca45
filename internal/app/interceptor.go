// Package app wires acquisition, calibration, detection, and guidance into
// the interception cycle loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/strigiform/skeeterhawk/internal/acquisition"
	"github.com/strigiform/skeeterhawk/internal/calibration"
	"github.com/strigiform/skeeterhawk/internal/guidance"
	"github.com/strigiform/skeeterhawk/internal/logging"
	"github.com/strigiform/skeeterhawk/internal/recorder"
	"github.com/strigiform/skeeterhawk/internal/sonar"
	"github.com/strigiform/skeeterhawk/internal/telemetry"
)

// Config captures application level configuration.
type Config struct {
	Sonar        sonar.Config
	Guidance     guidance.Config
	TemperatureC float64 // ambient temperature, sets the speed of sound

	Workers      int           // grid-search workers; 0 uses GOMAXPROCS
	CyclePeriod  time.Duration // time between ping cycles
	WarmupCycles int           // discarded cycles before reporting starts
	MultiTarget  bool          // run the multi-target detector each cycle
	Diagnostics  bool          // log per-capture signal diagnostics
	MaxCycles    int           // stop after this many cycles; 0 runs forever
}

// StateProvider supplies the vehicle state read once per cycle. The flight
// controller owns it; a zero-value provider pins the vehicle at the origin.
type StateProvider interface {
	VehicleState() guidance.VehicleState
}

// StaticState is a StateProvider returning a fixed state.
type StaticState guidance.VehicleState

func (s StaticState) VehicleState() guidance.VehicleState {
	return guidance.VehicleState(s)
}

// Interceptor runs the ping-detect-steer loop: transmit the chirp, capture
// the four-channel echo, detect, compute the navigation command, and mix
// motor thrusts, publishing each cycle to telemetry and the recorder.
type Interceptor struct {
	source   acquisition.Source
	reporter telemetry.Reporter
	rec      recorder.Recorder
	state    StateProvider
	logger   logging.Logger
	cfg      Config

	cal  *calibration.System
	proc *sonar.Processor
	law  *guidance.Law

	corrected [sonar.NumMics][]float64
	cycles    uint64
	last      telemetry.Sample
}

func NewInterceptor(source acquisition.Source, reporter telemetry.Reporter, rec recorder.Recorder, state StateProvider, logger logging.Logger, cfg Config) *Interceptor {
	if logger == nil {
		logger = logging.Nop()
	}
	if state == nil {
		state = StaticState{}
	}
	return &Interceptor{
		source:   source,
		reporter: reporter,
		rec:      rec,
		state:    state,
		logger:   logger,
		cfg:      cfg,
	}
}

// Init builds the signal chain and configures the acquisition source.
func (t *Interceptor) Init(ctx context.Context) error {
	if t.cfg.CyclePeriod == 0 {
		t.cfg.CyclePeriod = 50 * time.Millisecond
	}
	if t.cfg.TemperatureC == 0 {
		t.cfg.TemperatureC = calibration.ReferenceTemperatureC
	}

	t.cal = calibration.New()
	t.cal.SetTemperature(t.cfg.TemperatureC)
	if t.cfg.Sonar.SpeedOfSound == 0 {
		t.cfg.Sonar.SpeedOfSound = t.cal.SpeedOfSound
	}

	proc, err := sonar.NewProcessor(t.cfg.Sonar)
	if err != nil {
		return fmt.Errorf("init processor: %w", err)
	}
	t.proc = proc

	law, err := guidance.NewLaw(t.cfg.Guidance)
	if err != nil {
		return fmt.Errorf("init guidance: %w", err)
	}
	t.law = law

	for m := 0; m < sonar.NumMics; m++ {
		t.corrected[m] = make([]float64, proc.SampleCount())
	}

	if err := t.source.Init(ctx, acquisition.Config{
		SampleRate:   t.cfg.Sonar.SampleRate,
		SampleCount:  proc.SampleCount(),
		Geometry:     proc.Config().Geometry,
		SpeedOfSound: t.cfg.Sonar.SpeedOfSound,
	}); err != nil {
		return fmt.Errorf("init source: %w", err)
	}
	return nil
}

// Run executes ping cycles until the context is cancelled or, when
// MaxCycles is set, until that many cycles have completed.
func (t *Interceptor) Run(ctx context.Context) error {
	if err := t.warmup(ctx); err != nil {
		return fmt.Errorf("warmup: %w", err)
	}

	ticker := time.NewTicker(t.cfg.CyclePeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		cycleStart := time.Now()
		sample, err := t.runCycle(ctx)
		if err != nil {
			return fmt.Errorf("cycle %d: %w", t.cycles, err)
		}

		t.last = sample
		if t.reporter != nil {
			t.reporter.Report(sample)
		}
		t.record(sample)
		t.logger.Debug("cycle complete",
			logging.F("cycle", sample.Cycle),
			logging.F("valid", sample.Valid),
			logging.F("elapsed_ms", time.Since(cycleStart).Seconds()*1000))

		t.cycles++
		if t.cfg.MaxCycles > 0 && t.cycles >= uint64(t.cfg.MaxCycles) {
			return nil
		}
	}
}

// runCycle performs one full ping: transmit, capture, calibrate, detect,
// and steer. A cycle with no detection is a valid outcome, not an error.
func (t *Interceptor) runCycle(ctx context.Context) (telemetry.Sample, error) {
	sample := telemetry.Sample{
		Timestamp: time.Now(),
		Cycle:     t.cycles,
	}

	if err := t.source.Transmit(ctx, t.proc.Chirp()); err != nil {
		return sample, fmt.Errorf("transmit: %w", err)
	}
	rx, err := t.source.Receive(ctx)
	if err != nil {
		return sample, fmt.Errorf("receive: %w", err)
	}

	if t.cfg.Diagnostics {
		if diag, err := calibration.RunDiagnostics(rx); err != nil {
			t.logger.Warn("capture diagnostics", logging.F("cycle", sample.Cycle), logging.F("error", err.Error()))
		} else {
			t.logger.Debug("capture diagnostics",
				logging.F("cycle", sample.Cycle),
				logging.F("power", diag.SignalPower),
				logging.F("noise", diag.NoiseFloor),
				logging.F("snr_db", diag.SNRdB))
		}
	}

	if err := t.cal.Apply(rx, t.corrected); err != nil {
		return sample, fmt.Errorf("apply calibration: %w", err)
	}
	for m := 0; m < sonar.NumMics; m++ {
		if err := t.proc.LoadReceive(m, t.corrected[m]); err != nil {
			return sample, fmt.Errorf("load mic %d: %w", m, err)
		}
	}

	target, err := t.proc.DetectTargetParallel(t.cfg.Workers)
	if err != nil {
		if errors.Is(err, sonar.ErrNoDetection) {
			t.logger.Debug("no detection", logging.F("cycle", sample.Cycle))
			return sample, nil
		}
		return sample, fmt.Errorf("detect: %w", err)
	}

	sample.Valid = true
	sample.RangeCM = target.RangeCM
	sample.AzimuthRad = target.AzimuthRad
	sample.ElevationRad = target.ElevationRad
	sample.Confidence = target.Confidence
	sample.TargetCount = 1

	if t.cfg.MultiTarget {
		mt, err := t.proc.MultiTarget()
		switch {
		case err != nil:
			t.logger.Warn("multi-target detect", logging.F("cycle", sample.Cycle), logging.F("error", err.Error()))
		case mt.Valid:
			sample.TargetCount = len(mt.Targets)
		}
	}

	cmd, err := t.law.Compute(t.state.VehicleState(), target)
	if err != nil {
		return sample, fmt.Errorf("guidance: %w", err)
	}
	motors := guidance.MixMotors(cmd)

	sample.AccelX = cmd.Accel.X
	sample.AccelY = cmd.Accel.Y
	sample.AccelZ = cmd.Accel.Z
	sample.Intercept = cmd.Intercept
	sample.Motors = motors
	return sample, nil
}

// record persists the cycle. Recorder failures are logged, not fatal; the
// loop keeps flying without its black box.
func (t *Interceptor) record(sample telemetry.Sample) {
	if t.rec == nil {
		return
	}
	var err error
	if sample.Valid {
		err = t.rec.Record(recorder.DetectionEntry{
			Cycle:        sample.Cycle,
			Timestamp:    sample.Timestamp,
			RangeCM:      sample.RangeCM,
			AzimuthRad:   sample.AzimuthRad,
			ElevationRad: sample.ElevationRad,
			Confidence:   sample.Confidence,
			TargetCount:  sample.TargetCount,
		})
		if err == nil {
			err = t.rec.Record(recorder.GuidanceEntry{
				Cycle:     sample.Cycle,
				Timestamp: sample.Timestamp,
				AccelX:    sample.AccelX,
				AccelY:    sample.AccelY,
				AccelZ:    sample.AccelZ,
				Intercept: sample.Intercept,
				Motors:    sample.Motors,
			})
		}
	} else {
		err = t.rec.Record(recorder.CycleEntry{
			Cycle:     sample.Cycle,
			Timestamp: sample.Timestamp,
			Detail:    "no detection",
		})
	}
	if err != nil {
		t.logger.Warn("record cycle", logging.F("cycle", sample.Cycle), logging.F("error", err.Error()))
	}
}

func (t *Interceptor) warmup(ctx context.Context) error {
	for i := 0; i < t.cfg.WarmupCycles; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := t.source.Transmit(ctx, t.proc.Chirp()); err != nil {
			return fmt.Errorf("warmup transmit %d: %w", i, err)
		}
		if _, err := t.source.Receive(ctx); err != nil {
			return fmt.Errorf("warmup receive %d: %w", i, err)
		}
		t.logger.Debug("warmup capture discarded", logging.F("index", i))
	}
	return nil
}

// Cycles reports the number of completed cycles.
func (t *Interceptor) Cycles() uint64 { return t.cycles }

// LastSample returns the most recent cycle sample.
func (t *Interceptor) LastSample() telemetry.Sample { return t.last }
