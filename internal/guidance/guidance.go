// Package guidance implements the proportional-navigation law that turns a
// sonar detection into a bounded acceleration command, and the fixed
// X-configuration mix that turns that command into four motor thrusts.
package guidance

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/strigiform/skeeterhawk/internal/dsp"
	"github.com/strigiform/skeeterhawk/internal/sonar"
)

// ErrNoTarget reports that guidance was invoked without a valid detection.
// No command is produced; the cycle simply emits nothing to actuation.
var ErrNoTarget = errors.New("no valid target")

// VehicleState is the flight controller's view of the vehicle, in metres
// and metres per second. It is owned and updated outside this package and
// read once per cycle.
type VehicleState struct {
	Position r3.Vec
	Velocity r3.Vec
}

// Command is one cycle's guidance output. When Intercept is set the
// acceleration is zero and the engagement is over; the law never produces
// both a non-zero acceleration and the intercept flag.
type Command struct {
	Accel     r3.Vec // m/s²
	Intercept bool
}

// Config carries the tunable parameters of the navigation law. Zero values
// select the reference defaults.
type Config struct {
	NavigationConstant  float64 // dimensionless N, in [1, 10]
	MaxAccelMS2         float64 // acceleration saturation bound, > 0
	MinInterceptRangeCM float64 // declare intercept inside this range
}

const (
	defaultNavigationConstant  = 3.0
	defaultMaxAccelMS2         = 9.81
	defaultMinInterceptRangeCM = 5.0
)

func (c *Config) applyDefaults() {
	if c.NavigationConstant == 0 {
		c.NavigationConstant = defaultNavigationConstant
	}
	if c.MaxAccelMS2 == 0 {
		c.MaxAccelMS2 = defaultMaxAccelMS2
	}
	if c.MinInterceptRangeCM == 0 {
		c.MinInterceptRangeCM = defaultMinInterceptRangeCM
	}
}

// Law is the stateless proportional-navigation computation with its
// parameters bound. One Law serves every cycle.
type Law struct {
	cfg Config
}

// NewLaw validates the configuration and returns a ready law.
func NewLaw(cfg Config) (*Law, error) {
	cfg.applyDefaults()
	if cfg.NavigationConstant < 1 || cfg.NavigationConstant > 10 {
		return nil, fmt.Errorf("navigation constant %g outside [1, 10]: %w", cfg.NavigationConstant, dsp.ErrInvalidArgument)
	}
	if cfg.MaxAccelMS2 <= 0 {
		return nil, fmt.Errorf("max acceleration %g: %w", cfg.MaxAccelMS2, dsp.ErrInvalidArgument)
	}
	if cfg.MinInterceptRangeCM < 0 {
		return nil, fmt.Errorf("min intercept range %g: %w", cfg.MinInterceptRangeCM, dsp.ErrInvalidArgument)
	}
	return &Law{cfg: cfg}, nil
}

// Config returns the law parameters with defaults applied.
func (l *Law) Config() Config { return l.cfg }

// Compute runs one proportional-navigation step against a stationary
// target: a = N · Vc · ω, where ω is the line-of-sight rotation rate and Vc
// the projection of relative velocity onto the line of sight. The command
// saturates uniformly at the configured bound, preserving direction.
//
// Vc keeps the plain dot(LOS, relativeVelocity) sign, so it is negative
// while closing on the target. The command is linear in Vc, making this
// choice observable downstream; it matches the deployed controller and is
// kept deliberately.
func (l *Law) Compute(state VehicleState, target sonar.TargetInfo) (Command, error) {
	if !target.Valid {
		return Command{}, ErrNoTarget
	}

	targetPos := r3.Scale(target.RangeCM/100, sonar.SteeringVector(target.AzimuthRad, target.ElevationRad))
	rel := r3.Sub(targetPos, state.Position)
	rng := r3.Norm(rel)

	if rng < l.cfg.MinInterceptRangeCM/100 {
		return Command{Intercept: true}, nil
	}

	los := r3.Scale(1/rng, rel)
	relVel := r3.Scale(-1, state.Velocity)

	closing := r3.Dot(los, relVel)
	losRate := r3.Scale(1/rng, r3.Sub(relVel, r3.Scale(closing, los)))

	accel := r3.Scale(l.cfg.NavigationConstant*closing, losRate)
	if mag := r3.Norm(accel); mag > l.cfg.MaxAccelMS2 {
		accel = r3.Scale(l.cfg.MaxAccelMS2/mag, accel)
	}
	return Command{Accel: accel}, nil
}
