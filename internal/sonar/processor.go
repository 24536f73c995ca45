package sonar

import (
	"fmt"
	"sync"

	"github.com/strigiform/skeeterhawk/internal/dsp"
)

// Config carries the signal-chain parameters of a Processor.
type Config struct {
	SampleRate         float64 // Hz
	ChirpSamples       int
	ChirpF0            float64 // Hz
	ChirpF1            float64 // Hz
	DetectionThreshold float64
	MinRangeCM         float64
	MaxRangeCM         float64
	SpeedOfSound       float64 // m/s; zero selects the 20°C default
	Geometry           ArrayGeometry
}

func (c *Config) applyDefaults() {
	if c.SpeedOfSound == 0 {
		c.SpeedOfSound = SpeedOfSound
	}
	zero := ArrayGeometry{}
	if c.Geometry == zero {
		c.Geometry = DefaultArray()
	}
}

// SampleCount reports the receive buffer length implied by the maximum
// range: the number of samples covering the round-trip time of flight.
func (c Config) SampleCount() int {
	sos := c.SpeedOfSound
	if sos == 0 {
		sos = SpeedOfSound
	}
	return int(c.SampleRate * c.MaxRangeCM * 2 / (sos * 100))
}

// Processor owns every buffer the per-cycle hot path touches: the transmit
// chirp, the matched-filter kernel, the per-microphone receive and filtered
// buffers, and the beamforming scratch trace. Everything is allocated once
// in NewProcessor and reused; no allocation happens during a cycle.
//
// A Processor is not safe for concurrent use. One cycle runs at a time; the
// internal angle-grid workers of DetectTargetParallel use disjoint
// per-worker scratch and never share the trace buffer.
type Processor struct {
	cfg         Config
	sampleCount int

	chirp    []float64
	kernel   []float64
	rx       [NumMics][]float64
	filtered [NumMics][]float64
	trace    []float64 // beamforming scratch, overwritten per hypothesis

	workerTraces [][]float64 // disjoint scratch for the parallel sweep

	target TargetInfo
}

// NewProcessor validates the configuration and allocates all per-cycle
// buffers. Failure leaves no partially initialised state behind.
func NewProcessor(cfg Config) (*Processor, error) {
	cfg.applyDefaults()

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %g: %w", cfg.SampleRate, dsp.ErrInvalidArgument)
	}
	if cfg.ChirpSamples < 2 {
		return nil, fmt.Errorf("chirp length %d: %w", cfg.ChirpSamples, dsp.ErrInvalidArgument)
	}
	if cfg.MinRangeCM >= cfg.MaxRangeCM {
		return nil, fmt.Errorf("range bounds [%g, %g): %w", cfg.MinRangeCM, cfg.MaxRangeCM, dsp.ErrInvalidArgument)
	}
	sampleCount := cfg.SampleCount()
	if sampleCount <= 0 {
		return nil, fmt.Errorf("derived sample count %d: %w", sampleCount, dsp.ErrInvalidArgument)
	}

	chirp, err := dsp.Chirp(cfg.ChirpSamples, cfg.SampleRate, cfg.ChirpF0, cfg.ChirpF1)
	if err != nil {
		return nil, fmt.Errorf("generate chirp: %w", err)
	}

	p := &Processor{
		cfg:         cfg,
		sampleCount: sampleCount,
		chirp:       chirp,
		kernel:      dsp.MatchedFilter(chirp),
		trace:       make([]float64, sampleCount),
	}
	filteredLen := dsp.CorrelateLen(sampleCount, cfg.ChirpSamples)
	for i := 0; i < NumMics; i++ {
		p.rx[i] = make([]float64, sampleCount)
		p.filtered[i] = make([]float64, filteredLen)
	}
	return p, nil
}

// Config returns the processor configuration with defaults applied.
func (p *Processor) Config() Config { return p.cfg }

// SampleCount reports the per-microphone receive buffer length.
func (p *Processor) SampleCount() int { return p.sampleCount }

// Chirp exposes the transmit waveform for the transmit collaborator. The
// returned slice is the processor's own buffer and must be treated as
// read-only.
func (p *Processor) Chirp() []float64 { return p.chirp }

// LoadReceive copies one microphone's normalised samples into the
// processor's receive buffer. The input must be exactly SampleCount long.
func (p *Processor) LoadReceive(mic int, samples []float64) error {
	if mic < 0 || mic >= NumMics {
		return fmt.Errorf("microphone index %d: %w", mic, dsp.ErrInvalidArgument)
	}
	if len(samples) != p.sampleCount {
		return fmt.Errorf("receive buffer length %d, want %d: %w", len(samples), p.sampleCount, dsp.ErrInvalidArgument)
	}
	copy(p.rx[mic], samples)
	return nil
}

// matchedFilterAll cross-correlates every channel against the kernel. The
// four channels are independent, so they run concurrently.
func (p *Processor) matchedFilterAll() error {
	var wg sync.WaitGroup
	var errs [NumMics]error
	for i := 0; i < NumMics; i++ {
		wg.Add(1)
		go func(mic int) {
			defer wg.Done()
			errs[mic] = dsp.CorrelateInto(p.filtered[mic], p.rx[mic], p.kernel)
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("matched filter mic %d: %w", i, err)
		}
	}
	return nil
}

// Target returns the most recent detection. The flag mirrors
// TargetInfo.Valid.
func (p *Processor) Target() (TargetInfo, bool) {
	return p.target, p.target.Valid
}
