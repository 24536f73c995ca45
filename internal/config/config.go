// Package config loads and validates the interceptor's runtime
// configuration. Validation rejects bad values outright rather than
// clamping: a failed load leaves whatever configuration the caller already
// holds untouched.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/strigiform/skeeterhawk/internal/guidance"
	"github.com/strigiform/skeeterhawk/internal/sonar"
)

// ErrInvalid marks every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Version identifies the configuration schema.
const Version = 1

// Sonar holds the detection pipeline parameters.
type Sonar struct {
	SampleRate         float64 `yaml:"sample_rate"`         // Hz
	ChirpDurationMS    float64 `yaml:"chirp_duration_ms"`   // (0, 10]
	ChirpF0            float64 `yaml:"chirp_f0"`            // Hz
	ChirpF1            float64 `yaml:"chirp_f1"`            // Hz
	DetectionThreshold float64 `yaml:"detection_threshold"` // matched-filter power
	MinRangeCM         float64 `yaml:"min_range_cm"`
	MaxRangeCM         float64 `yaml:"max_range_cm"`
	TemperatureC       float64 `yaml:"temperature_c"` // sets the speed of sound
}

// Guidance holds the navigation law parameters.
type Guidance struct {
	NavigationConstant  float64 `yaml:"navigation_constant"`    // [1, 10]
	MaxAcceleration     float64 `yaml:"max_acceleration"`       // m/s², > 0
	MinInterceptRangeCM float64 `yaml:"min_intercept_range_cm"` // >= 0
}

// Logging selects the log output.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn, error, off
	Format string `yaml:"format"` // text or json
}

// Telemetry configures the reporting surface.
type Telemetry struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // HTTP listen address
	MDNS    bool   `yaml:"mdns"` // advertise the endpoint via mDNS
}

// Recorder configures cycle recording.
type Recorder struct {
	Path     string `yaml:"path"`     // sqlite database path; empty disables
	Capacity int    `yaml:"capacity"` // in-memory ring size
}

// Config is the root of the configuration file.
type Config struct {
	Version   int       `yaml:"version"`
	Sonar     Sonar     `yaml:"sonar"`
	Guidance  Guidance  `yaml:"guidance"`
	Logging   Logging   `yaml:"logging"`
	Telemetry Telemetry `yaml:"telemetry"`
	Recorder  Recorder  `yaml:"recorder"`
}

// Default returns the reference configuration: a 1 ms 38–42 kHz chirp at
// 200 kHz, detection between 10 and 500 cm, and the stock navigation law.
func Default() Config {
	return Config{
		Version: Version,
		Sonar: Sonar{
			SampleRate:         200e3,
			ChirpDurationMS:    1,
			ChirpF0:            38e3,
			ChirpF1:            42e3,
			DetectionThreshold: 1000,
			MinRangeCM:         10,
			MaxRangeCM:         500,
			TemperatureC:       20,
		},
		Guidance: Guidance{
			NavigationConstant:  3,
			MaxAcceleration:     9.81,
			MinInterceptRangeCM: 5,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Telemetry: Telemetry{
			Addr: ":8880",
		},
		Recorder: Recorder{
			Capacity: 256,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result. Fields
// absent from the file keep their default values, so partial configs are
// safe.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every bound. The first violation is reported.
func (c Config) Validate() error {
	s := c.Sonar
	if s.SampleRate < 100e3 || s.SampleRate > 500e3 {
		return fmt.Errorf("%w: sample rate %g Hz outside [100 kHz, 500 kHz]", ErrInvalid, s.SampleRate)
	}
	if s.ChirpDurationMS <= 0 || s.ChirpDurationMS > 10 {
		return fmt.Errorf("%w: chirp duration %g ms outside (0, 10]", ErrInvalid, s.ChirpDurationMS)
	}
	if s.ChirpF0 >= s.ChirpF1 {
		return fmt.Errorf("%w: chirp band [%g, %g] Hz not ascending", ErrInvalid, s.ChirpF0, s.ChirpF1)
	}
	if s.MinRangeCM >= s.MaxRangeCM {
		return fmt.Errorf("%w: range bounds [%g, %g] cm not ascending", ErrInvalid, s.MinRangeCM, s.MaxRangeCM)
	}

	g := c.Guidance
	if g.NavigationConstant < 1 || g.NavigationConstant > 10 {
		return fmt.Errorf("%w: navigation constant %g outside [1, 10]", ErrInvalid, g.NavigationConstant)
	}
	if g.MaxAcceleration <= 0 {
		return fmt.Errorf("%w: max acceleration %g m/s²", ErrInvalid, g.MaxAcceleration)
	}
	if g.MinInterceptRangeCM < 0 {
		return fmt.Errorf("%w: min intercept range %g cm", ErrInvalid, g.MinInterceptRangeCM)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalid, c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q", ErrInvalid, c.Logging.Format)
	}

	if c.Recorder.Capacity < 0 {
		return fmt.Errorf("%w: recorder capacity %d", ErrInvalid, c.Recorder.Capacity)
	}
	return nil
}

// ChirpSamples derives the transmit pulse length in samples.
func (s Sonar) ChirpSamples() int {
	return int(s.SampleRate * s.ChirpDurationMS / 1000)
}

// SonarConfig builds the detection pipeline configuration. The speed of
// sound comes from the configured temperature.
func (c Config) SonarConfig(speedOfSound float64) sonar.Config {
	return sonar.Config{
		SampleRate:         c.Sonar.SampleRate,
		ChirpSamples:       c.Sonar.ChirpSamples(),
		ChirpF0:            c.Sonar.ChirpF0,
		ChirpF1:            c.Sonar.ChirpF1,
		DetectionThreshold: c.Sonar.DetectionThreshold,
		MinRangeCM:         c.Sonar.MinRangeCM,
		MaxRangeCM:         c.Sonar.MaxRangeCM,
		SpeedOfSound:       speedOfSound,
	}
}

// GuidanceConfig builds the navigation law configuration.
func (c Config) GuidanceConfig() guidance.Config {
	return guidance.Config{
		NavigationConstant:  c.Guidance.NavigationConstant,
		MaxAccelMS2:         c.Guidance.MaxAcceleration,
		MinInterceptRangeCM: c.Guidance.MinInterceptRangeCM,
	}
}
