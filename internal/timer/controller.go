package timer

import (
	"errors"
	"fmt"
	"math"
)

// Phase tracks where the controller is in its propose/record cycle.
type Phase int

const (
	Proposing Phase = iota
	Solving
	Exhausted
)

func (p Phase) String() string {
	switch p {
	case Proposing:
		return "proposing"
	case Solving:
		return "solving"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

var errOutOfPhase = errors.New("timer: propose/record called out of phase")

// Proposal is one candidate step handed to the evolution engine.
type Proposal struct {
	Dt     float64
	Target float64 // simulated time the step would advance to
}

// ExhaustedError is the terminal failure raised when the controller can no
// longer make progress. It carries enough state to diagnose the run without
// re-running it.
type ExhaustedError struct {
	LastStep           float64
	ConsecutiveRejects int
	TotalRejects       int
	AtFloor            bool
	History            []Class
}

func (e *ExhaustedError) Error() string {
	floor := ""
	if e.AtFloor {
		floor = " at the minimum step size"
	}
	return fmt.Sprintf("timer: simulation exhausted%s after %d consecutive rejects (%d total, last dt %g)",
		floor, e.ConsecutiveRejects, e.TotalRejects, e.LastStep)
}

// Controller owns the adaptive step-size state machine. It is the sole
// writer of its state; one Propose/Record pair runs per attempted step and
// nothing reads the state concurrently.
type Controller struct {
	cfg Config

	phase         Phase
	stepSize      float64
	proposed      bool
	successStreak int
	consecRejects int
	totalRejects  int
	lastCFL       float64
	history       []Class
}

func NewController(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg, stepSize: cfg.InitialStep}, nil
}

// Propose returns the next candidate step starting from simulated time now.
// The very first proposal is the configured initial step.
func (c *Controller) Propose(now float64) (Proposal, error) {
	switch c.phase {
	case Exhausted:
		return Proposal{}, c.exhausted()
	case Solving:
		return Proposal{}, errOutOfPhase
	}
	c.phase = Solving
	c.proposed = true
	return Proposal{Dt: c.stepSize, Target: now + c.stepSize}, nil
}

// Record feeds the classified outcome of the last proposal back into the
// controller. On Fatal it transitions to Exhausted and returns the
// terminal error.
func (c *Controller) Record(class Class, realizedCFL float64) error {
	if c.phase != Solving {
		return errOutOfPhase
	}
	c.lastCFL = realizedCFL

	switch class {
	case Accept:
		c.successStreak++
		c.consecRejects = 0
		if c.successStreak >= c.cfg.GrowthCooldown {
			c.grow()
			c.successStreak = 0
		}
	case RetryMild:
		c.reject(class, c.cfg.BackoffFactor)
	case RetrySevere:
		c.reject(class, c.cfg.AggressiveBackoffFactor)
	case Fatal:
		c.reject(class, c.cfg.AggressiveBackoffFactor)
		c.phase = Exhausted
		return c.exhausted()
	}

	if c.consecRejects >= c.cfg.MaxConsecutiveRejects {
		c.phase = Exhausted
		return c.exhausted()
	}
	c.phase = Proposing
	return nil
}

// grow multiplies, clamps, then smooths. Smoothing blends two in-range
// values, so the result needs no second clamp.
func (c *Controller) grow() {
	grown := c.clamp(c.stepSize * c.cfg.GrowthFactor)
	if s := c.cfg.Smoothing; s > 0 {
		grown = (1-s)*grown + s*c.stepSize
	}
	c.stepSize = grown
}

func (c *Controller) reject(class Class, factor float64) {
	c.successStreak = 0
	c.consecRejects++
	c.totalRejects++
	c.history = append(c.history, class)
	c.stepSize = c.clamp(c.stepSize * factor)
}

func (c *Controller) clamp(dt float64) float64 {
	return math.Min(c.cfg.MaxStep, math.Max(c.cfg.MinStep, dt))
}

func (c *Controller) exhausted() *ExhaustedError {
	return &ExhaustedError{
		LastStep:           c.stepSize,
		ConsecutiveRejects: c.consecRejects,
		TotalRejects:       c.totalRejects,
		AtFloor:            c.AtFloor(),
		History:            append([]Class(nil), c.history...),
	}
}

// AtFloor reports whether the current step size sits at the configured
// minimum, i.e. there is no smaller step left to try.
func (c *Controller) AtFloor() bool {
	return c.stepSize <= c.cfg.MinStep*(1+1e-12)
}

// LastChance reports whether the next reject would exhaust the run. The
// classifier uses it to escalate retries to Fatal.
func (c *Controller) LastChance() bool {
	return c.consecRejects+1 >= c.cfg.MaxConsecutiveRejects
}

func (c *Controller) Phase() Phase            { return c.phase }
func (c *Controller) StepSize() float64       { return c.stepSize }
func (c *Controller) ConsecutiveRejects() int { return c.consecRejects }
func (c *Controller) TotalRejects() int       { return c.totalRejects }
func (c *Controller) LastCFL() float64        { return c.lastCFL }
func (c *Controller) Config() Config          { return c.cfg }
