package acquisition

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/strigiform/skeeterhawk/internal/dsp"
	"github.com/strigiform/skeeterhawk/internal/sonar"
)

// SimTarget is one simulated reflector.
type SimTarget struct {
	RangeM       float64
	AzimuthRad   float64
	ElevationRad float64
	RCS          float64 // reflectivity; echo amplitude is sqrt(RCS)/range²
}

// SimSource synthesizes receive captures for a set of point targets: each
// echo is the transmitted chirp delayed by the round-trip time of flight,
// attenuated by the inverse square law, shifted per microphone by the
// truncated TDOA, and buried in Gaussian noise. Targets can be swapped at
// runtime to fly scripted engagements.
type SimSource struct {
	mu      sync.RWMutex
	cfg     Config
	chirp   []float64
	targets []SimTarget
	noise   *noiseSpec
	rng     *rand.Rand
	rx      [sonar.NumMics][]float64
}

type noiseSpec struct {
	power float64
	seed  int64
}

func NewSim(targets ...SimTarget) *SimSource {
	return &SimSource{targets: targets}
}

func (s *SimSource) Init(_ context.Context, cfg Config) error {
	if cfg.SampleRate <= 0 || cfg.SampleCount <= 0 {
		return fmt.Errorf("sim source: sample rate %g, count %d: %w",
			cfg.SampleRate, cfg.SampleCount, dsp.ErrInvalidArgument)
	}
	if cfg.SpeedOfSound == 0 {
		cfg.SpeedOfSound = sonar.SpeedOfSound
	}
	zero := sonar.ArrayGeometry{}
	if cfg.Geometry == zero {
		cfg.Geometry = sonar.DefaultArray()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	if s.noise != nil {
		s.cfg.NoisePower = s.noise.power
		s.cfg.Seed = s.noise.seed
	}
	s.rng = rand.New(rand.NewSource(s.cfg.Seed))
	for i := range s.rx {
		s.rx[i] = make([]float64, cfg.SampleCount)
	}
	return nil
}

func (s *SimSource) Close() error { return nil }

// Transmit records the chirp used to build subsequent echoes.
func (s *SimSource) Transmit(_ context.Context, chirp []float64) error {
	if len(chirp) == 0 {
		return fmt.Errorf("sim source: empty chirp: %w", dsp.ErrInvalidArgument)
	}
	s.mu.Lock()
	s.chirp = append(s.chirp[:0], chirp...)
	s.mu.Unlock()
	return nil
}

// SetNoise overrides the configured noise power and seed. The override
// survives Init, so callers that do not control the Init configuration can
// still set the noise floor.
func (s *SimSource) SetNoise(power float64, seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noise = &noiseSpec{power: power, seed: seed}
	if s.rng != nil {
		s.cfg.NoisePower = power
		s.cfg.Seed = seed
		s.rng = rand.New(rand.NewSource(seed))
	}
}

// SetTargets replaces the simulated scene for the next cycle.
func (s *SimSource) SetTargets(targets ...SimTarget) {
	s.mu.Lock()
	s.targets = append(s.targets[:0], targets...)
	s.mu.Unlock()
}

// Receive synthesizes one capture. Without a transmitted chirp the capture
// is noise only.
func (s *SimSource) Receive(ctx context.Context) ([sonar.NumMics][]float64, error) {
	if err := ctx.Err(); err != nil {
		return [sonar.NumMics][]float64{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rng == nil {
		return [sonar.NumMics][]float64{}, fmt.Errorf("sim source: not initialised: %w", dsp.ErrInvalidArgument)
	}

	for m := range s.rx {
		buf := s.rx[m]
		for j := range buf {
			buf[j] = 0
		}
	}

	for _, tgt := range s.targets {
		s.addEcho(tgt)
	}

	if s.cfg.NoisePower > 0 {
		sigma := math.Sqrt(s.cfg.NoisePower)
		for m := range s.rx {
			buf := s.rx[m]
			for j := range buf {
				buf[j] += s.rng.NormFloat64() * sigma
			}
		}
	}
	return s.rx, nil
}

func (s *SimSource) addEcho(tgt SimTarget) {
	if len(s.chirp) == 0 || tgt.RangeM <= 0 {
		return
	}
	c := s.cfg.SpeedOfSound
	start := int(2 * tgt.RangeM / c * s.cfg.SampleRate)
	amp := math.Sqrt(tgt.RCS) / (tgt.RangeM * tgt.RangeM)

	targetPos := r3.Scale(tgt.RangeM, sonar.SteeringVector(tgt.AzimuthRad, tgt.ElevationRad))
	refDist := r3.Norm(r3.Sub(targetPos, s.cfg.Geometry[0]))

	for m := 0; m < sonar.NumMics; m++ {
		tdoa := (r3.Norm(r3.Sub(targetPos, s.cfg.Geometry[m])) - refDist) / c
		shift := int(tdoa * s.cfg.SampleRate)
		buf := s.rx[m]
		for k, v := range s.chirp {
			j := start + shift + k
			if j >= 0 && j < len(buf) {
				buf[j] += amp * v
			}
		}
	}
}
