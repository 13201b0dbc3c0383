package solver

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/porosim/internal/linsys"
	"github.com/san-kum/porosim/internal/precond"
)

// Direct expands the system and solves it with gonum's dense LU. Intended
// for small grids and as the last entry of a fallback chain; a singular or
// near-singular factorization is reported as non-convergence so the chain
// and step controller keep their usual retry path.
type Direct struct {
	opts Options
}

func NewDirect(opts Options) *Direct { return &Direct{opts: opts} }

func (s *Direct) Name() string { return "direct" }

func (s *Direct) Solve(a *linsys.Matrix, b, x0 []float64, pc precond.Preconditioner) (Result, error) {
	n := a.Dim()

	var lu mat.LU
	lu.Factorize(a.Dense())
	if lu.Cond() > 1e15 {
		return Result{X: append([]float64(nil), x0...)}, ErrNonConvergence
	}

	rhs := mat.NewVecDense(n, append([]float64(nil), b...))
	var sol mat.VecDense
	if err := lu.SolveVecTo(&sol, false, rhs); err != nil {
		return Result{X: append([]float64(nil), x0...)}, ErrNonConvergence
	}

	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = sol.AtVec(i)
	}

	res := make([]float64, n)
	a.MulVec(res, x)
	for i := range res {
		res[i] -= b[i]
	}
	bnorm := linsys.Norm2(b)
	if bnorm == 0 {
		bnorm = 1
	}
	return Result{X: x, Iterations: 1, Residual: linsys.Norm2(res) / bnorm, Converged: true}, nil
}
