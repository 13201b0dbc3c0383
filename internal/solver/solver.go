package solver

import (
	"errors"

	"github.com/san-kum/porosim/internal/linsys"
	"github.com/san-kum/porosim/internal/precond"
)

// ErrNonConvergence reports that a single solver gave up within its
// iteration cap. The chain tries the next entry before anything surfaces.
var ErrNonConvergence = errors.New("solver: did not converge within iteration cap")

// Options tune one solver instance. MaxIterations is an algorithmic cap,
// not a wall-clock timeout.
type Options struct {
	Tolerance     float64
	MaxIterations int
}

func DefaultOptions() Options {
	return Options{Tolerance: 1e-8, MaxIterations: 500}
}

// Result carries the solution and convergence report of one solve attempt.
type Result struct {
	X          []float64
	Iterations int
	Residual   float64
	Converged  bool
}

// Solver solves A x = b starting from x0, optionally preconditioned.
// Implementations must not modify a, b, or x0.
type Solver interface {
	Name() string
	Solve(a *linsys.Matrix, b, x0 []float64, pc precond.Preconditioner) (Result, error)
}
