package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/porosim/internal/grid"
	"github.com/san-kum/porosim/internal/linsys"
	"github.com/san-kum/porosim/internal/precond"
	"github.com/san-kum/porosim/internal/solver"
	"github.com/san-kum/porosim/internal/timer"
)

// LinearSystemProvider assembles the implicit pressure system for one
// candidate step. It must be deterministic for identical inputs and must
// not retain references into the state.
type LinearSystemProvider interface {
	Assemble(s *grid.State, dt float64) (*linsys.System, error)
}

// SaturationUpdater produces the explicit saturation update from a solved
// pressure field. It must not clamp saturations itself; validation is the
// engine's job. A hard failure (arithmetic domain error and the like) is
// reported as an error and classified severely.
type SaturationUpdater interface {
	Apply(s *grid.State, pressure []float64, dt float64) (*grid.State, grid.Fluxes, error)
}

// Status tags the result of one attempted step.
type Status int

const (
	Accepted Status = iota
	Rejected
)

func (s Status) String() string {
	if s == Accepted {
		return "accepted"
	}
	return "rejected"
}

// Outcome is the full record of one attempted step, consumed by the
// failure classifier and then by the step controller.
type Outcome struct {
	Status     Status
	State      *grid.State // only set when Accepted
	CFL        float64     // realized CFL number
	SolverName string      // chain entry that converged, if any
	Iterations int
	Reason     error // only set when Rejected
	Attempt    timer.Attempt
}

// Engine advances a state by one candidate step: assemble the implicit
// system, solve it through the fallback chain, apply the explicit
// saturation update, then validate the result. The input state is never
// mutated; rejection leaves no partial results behind.
type Engine struct {
	provider LinearSystemProvider
	updater  SaturationUpdater
	chain    solver.Chain
	pcf      precond.Factory

	maxCFL    float64
	mildRatio float64
	satTol    float64

	logger *slog.Logger
	lastPC precond.Preconditioner
}

// Params collects the engine's construction inputs.
type Params struct {
	Provider       LinearSystemProvider
	Updater        SaturationUpdater
	Chain          solver.Chain
	Preconditioner precond.Factory // nil disables preconditioning
	MaxCFL         float64

	// MildCFLRatio is the accept boundary on realized CFL over MaxCFL.
	// It must match the classifier's mild threshold, or a step could be
	// rejected here yet classified acceptable. Defaults to 1.
	MildCFLRatio float64

	SaturationTol float64 // tolerance on bounds and the saturation sum
	Logger        *slog.Logger
}

func New(p Params) (*Engine, error) {
	if p.Provider == nil || p.Updater == nil {
		return nil, fmt.Errorf("engine: provider and updater are required")
	}
	if len(p.Chain) == 0 {
		return nil, fmt.Errorf("engine: solver chain is empty")
	}
	if p.MaxCFL <= 0 {
		return nil, fmt.Errorf("engine: max CFL must be positive, got %g", p.MaxCFL)
	}
	if p.MildCFLRatio <= 0 {
		p.MildCFLRatio = 1
	}
	if p.SaturationTol <= 0 {
		p.SaturationTol = 1e-6
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	return &Engine{
		provider:  p.Provider,
		updater:   p.Updater,
		chain:     p.Chain,
		pcf:       p.Preconditioner,
		maxCFL:    p.MaxCFL,
		mildRatio: p.MildCFLRatio,
		satTol:    p.SaturationTol,
		logger:    p.Logger,
	}, nil
}

// Advance attempts one step of size dt from state.
func (e *Engine) Advance(state *grid.State, dt float64) Outcome {
	sys, err := e.provider.Assemble(state, dt)
	if err != nil {
		// A collaborator that cannot even assemble gets the severe path.
		return Outcome{
			Status:  Rejected,
			Reason:  fmt.Errorf("assemble system: %w", err),
			Attempt: timer.Attempt{UpdaterFailed: true},
		}
	}

	pc := e.buildPreconditioner(sys.A)

	res, name, solveErr := e.solveChain(sys, state.Pressure, pc)
	if solveErr != nil {
		return Outcome{
			Status:  Rejected,
			Reason:  solveErr,
			Attempt: timer.Attempt{Converged: false},
		}
	}

	newState, fluxes, err := e.updater.Apply(state, res.X, dt)
	if err != nil {
		return Outcome{
			Status:     Rejected,
			SolverName: name,
			Iterations: res.Iterations,
			Reason:     fmt.Errorf("saturation update: %w", err),
			Attempt:    timer.Attempt{Converged: true, UpdaterFailed: true},
		}
	}

	cfl := fluxes.MaxThroughput * dt
	ratio := cfl / e.maxCFL

	if verr := e.validate(newState); verr != nil {
		return Outcome{
			Status:     Rejected,
			CFL:        cfl,
			SolverName: name,
			Iterations: res.Iterations,
			Reason:     verr,
			Attempt:    timer.Attempt{Converged: true, CFLRatio: ratio, BoundsViolated: true},
		}
	}

	if ratio > e.mildRatio {
		return Outcome{
			Status:     Rejected,
			CFL:        cfl,
			SolverName: name,
			Iterations: res.Iterations,
			Reason:     &StabilityError{Kind: "cfl", Value: cfl, Limit: e.maxCFL, Cell: -1},
			Attempt:    timer.Attempt{Converged: true, CFLRatio: ratio},
		}
	}

	newState.Step = state.Step + 1
	newState.StepSize = dt
	newState.Time = state.Time + dt

	return Outcome{
		Status:     Accepted,
		State:      newState,
		CFL:        cfl,
		SolverName: name,
		Iterations: res.Iterations,
		Attempt:    timer.Attempt{Converged: true, CFLRatio: ratio},
	}
}

// buildPreconditioner builds (or fetches from cache) the configured
// preconditioner. A build failure forces a cache rebuild and one retry;
// if that also fails the chain runs unpreconditioned, which merely trades
// speed for robustness on this attempt.
func (e *Engine) buildPreconditioner(a *linsys.Matrix) precond.Preconditioner {
	if e.pcf == nil {
		return nil
	}
	pc, err := e.pcf.Build(a, e.lastPC)
	if err != nil {
		e.logger.Warn("preconditioner build failed",
			"preconditioner", e.pcf.Name(), "err", err)
		if cached, ok := e.pcf.(*precond.CachedFactory); ok {
			cached.Invalidate()
			if pc, err = e.pcf.Build(a, nil); err == nil {
				e.lastPC = pc
				return pc
			}
		}
		e.lastPC = nil
		return nil
	}
	e.lastPC = pc
	return pc
}

// solveChain tries each configured solver strictly in order and stops at
// the first convergence. The initial guess is the current pressure field.
func (e *Engine) solveChain(sys *linsys.System, x0 []float64, pc precond.Preconditioner) (solver.Result, string, error) {
	for _, s := range e.chain {
		res, err := s.Solve(sys.A, sys.RHS, x0, pc)
		if err == nil && res.Converged {
			return res, s.Name(), nil
		}
		e.logger.Debug("solver did not converge, falling back",
			"solver", s.Name(), "iterations", res.Iterations, "residual", res.Residual)
	}
	return solver.Result{}, "", ErrChainExhausted
}

func (e *Engine) validate(s *grid.State) error {
	tol := e.satTol
	for i := range s.Pressure {
		p := s.Pressure[i]
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return &StabilityError{Kind: "pressure", Value: p, Limit: 0, Cell: i}
		}

		sw, so, sg := s.Sw[i], s.So[i], s.Sg[i]
		for _, sat := range [3]float64{sw, so, sg} {
			if sat < -tol || sat > 1+tol || math.IsNaN(sat) {
				return &StabilityError{Kind: "saturation-bounds", Value: sat, Limit: 1, Cell: i}
			}
		}
		if sum := sw + so + sg; math.Abs(sum-1) > tol {
			return &StabilityError{Kind: "saturation-sum", Value: sum, Limit: 1, Cell: i}
		}
	}
	return nil
}
