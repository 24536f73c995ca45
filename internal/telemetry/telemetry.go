// Package telemetry publishes per-cycle detection and guidance samples to
// log output and to an HTTP surface with history, live streaming, and
// health endpoints.
package telemetry

import (
	"time"

	"github.com/strigiform/skeeterhawk/internal/guidance"
	"github.com/strigiform/skeeterhawk/internal/logging"
)

// Sample is one cycle's externally visible summary.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Cycle     uint64    `json:"cycle"`

	Valid        bool    `json:"valid"`
	RangeCM      float64 `json:"rangeCm"`
	AzimuthRad   float64 `json:"azimuthRad"`
	ElevationRad float64 `json:"elevationRad"`
	Confidence   float64 `json:"confidence"`
	TargetCount  int     `json:"targetCount"` // multi-target clusters this cycle

	AccelX    float64                     `json:"accelX"`
	AccelY    float64                     `json:"accelY"`
	AccelZ    float64                     `json:"accelZ"`
	Intercept bool                        `json:"intercept"`
	Motors    [guidance.NumMotors]float64 `json:"motors"`
}

// Reporter consumes cycle samples.
type Reporter interface {
	Report(sample Sample)
}

// MultiReporter fans a sample out to several destinations.
type MultiReporter []Reporter

func (m MultiReporter) Report(sample Sample) {
	for _, r := range m {
		if r != nil {
			r.Report(sample)
		}
	}
}

// LogReporter writes samples to the structured log.
type LogReporter struct {
	logger logging.Logger
}

// NewLogReporter builds a reporter over the provided logger.
func NewLogReporter(logger logging.Logger) LogReporter {
	if logger == nil {
		logger = logging.Nop()
	}
	return LogReporter{logger: logger.With(logging.F("subsystem", "telemetry"))}
}

func (r LogReporter) Report(s Sample) {
	if !s.Valid {
		r.logger.Debug("cycle", logging.F("cycle", s.Cycle), logging.F("valid", false))
		return
	}
	fields := []logging.Field{
		logging.F("cycle", s.Cycle),
		logging.F("range_cm", s.RangeCM),
		logging.F("azimuth_rad", s.AzimuthRad),
		logging.F("elevation_rad", s.ElevationRad),
		logging.F("confidence", s.Confidence),
	}
	if s.TargetCount > 1 {
		fields = append(fields, logging.F("target_count", s.TargetCount))
	}
	if s.Intercept {
		fields = append(fields, logging.F("intercept", true))
	}
	r.logger.Info("cycle sample", fields...)
}
