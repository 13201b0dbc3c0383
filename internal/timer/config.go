package timer

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks construction-time configuration failures. These
// are fatal and never retried.
var ErrInvalidConfig = errors.New("timer: invalid configuration")

const (
	DefaultGrowthFactor      = 1.2
	DefaultBackoffFactor     = 0.5
	DefaultAggressiveBackoff = 0.25
	DefaultMaxCFL            = 0.9
	DefaultGrowthCooldown    = 1
	DefaultMaxRejects        = 20
	DefaultMildCFLRatio      = 1.0
	DefaultSevereCFLRatio    = 2.0
)

// Config is the immutable step-size policy. All durations are in seconds.
type Config struct {
	MinStep     float64
	MaxStep     float64
	InitialStep float64

	MaxCFL float64

	GrowthFactor            float64
	BackoffFactor           float64
	AggressiveBackoffFactor float64

	// GrowthCooldown is the number of consecutive accepted steps required
	// before the step size is grown again.
	GrowthCooldown int

	// Smoothing blends a grown step size against the previous one:
	// next = (1-s)*grown + s*previous. Zero disables smoothing.
	Smoothing float64

	MaxConsecutiveRejects int

	// CFL-ratio thresholds separating accept, mild and severe outcomes.
	// Kept configurable rather than hardcoded.
	MildCFLRatio   float64
	SevereCFLRatio float64
}

// DefaultConfig mirrors the step policy used by the bundled scenarios.
func DefaultConfig(initial, min, max float64) Config {
	return Config{
		MinStep:                 min,
		MaxStep:                 max,
		InitialStep:             initial,
		MaxCFL:                  DefaultMaxCFL,
		GrowthFactor:            DefaultGrowthFactor,
		BackoffFactor:           DefaultBackoffFactor,
		AggressiveBackoffFactor: DefaultAggressiveBackoff,
		GrowthCooldown:          DefaultGrowthCooldown,
		MaxConsecutiveRejects:   DefaultMaxRejects,
		MildCFLRatio:            DefaultMildCFLRatio,
		SevereCFLRatio:          DefaultSevereCFLRatio,
	}
}

func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	if c.MinStep <= 0 {
		return fail("min step must be positive, got %g", c.MinStep)
	}
	if c.MinStep > c.InitialStep || c.InitialStep > c.MaxStep {
		return fail("need min <= initial <= max, got %g <= %g <= %g", c.MinStep, c.InitialStep, c.MaxStep)
	}
	if c.MaxCFL <= 0 {
		return fail("max CFL must be positive, got %g", c.MaxCFL)
	}
	if c.GrowthFactor < 1 {
		return fail("growth factor must be at least 1, got %g", c.GrowthFactor)
	}
	if c.BackoffFactor <= 0 || c.BackoffFactor >= 1 {
		return fail("backoff factor must be in (0,1), got %g", c.BackoffFactor)
	}
	if c.AggressiveBackoffFactor <= 0 || c.AggressiveBackoffFactor > c.BackoffFactor {
		return fail("aggressive backoff must be in (0, backoff], got %g", c.AggressiveBackoffFactor)
	}
	if c.GrowthCooldown < 1 {
		return fail("growth cooldown must be at least 1, got %d", c.GrowthCooldown)
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		return fail("smoothing must be in [0,1), got %g", c.Smoothing)
	}
	if c.MaxConsecutiveRejects < 1 {
		return fail("max consecutive rejects must be at least 1, got %d", c.MaxConsecutiveRejects)
	}
	if c.MildCFLRatio <= 0 || c.SevereCFLRatio <= c.MildCFLRatio {
		return fail("need 0 < mild CFL ratio < severe CFL ratio, got %g, %g", c.MildCFLRatio, c.SevereCFLRatio)
	}
	return nil
}
