// Package acquisition supplies the per-cycle receive captures consumed by
// the detection pipeline, either synthesized (SimSource) or read from the
// microphone front end over UDP (UDPSource).
package acquisition

import (
	"context"

	"github.com/strigiform/skeeterhawk/internal/sonar"
)

// Config carries the parameters a source needs to produce captures.
type Config struct {
	SampleRate   float64 // Hz
	SampleCount  int     // samples per channel per cycle
	Geometry     sonar.ArrayGeometry
	SpeedOfSound float64 // m/s
	NoisePower   float64 // additive Gaussian noise variance (SimSource)
	Seed         int64   // noise seed; captures are deterministic per seed
}

// Source captures the minimal acquisition operations required by the
// interceptor loop. Transmit hands the chirp to the front end; Receive
// blocks until one full four-channel capture is available. The returned
// slices are owned by the source and valid until the next Receive.
type Source interface {
	Init(ctx context.Context, cfg Config) error
	Transmit(ctx context.Context, chirp []float64) error
	Receive(ctx context.Context) ([sonar.NumMics][]float64, error)
	Close() error
}
