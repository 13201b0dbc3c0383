package solver

import (
	"math"

	"github.com/san-kum/porosim/internal/linsys"
	"github.com/san-kum/porosim/internal/precond"
)

// CG is the preconditioned conjugate gradient method. It expects a
// symmetric positive definite system, which the implicit pressure equation
// delivers for compressible single-pressure formulations.
type CG struct {
	opts Options
}

func NewCG(opts Options) *CG { return &CG{opts: opts} }

func (s *CG) Name() string { return "cg" }

func (s *CG) Solve(a *linsys.Matrix, b, x0 []float64, pc precond.Preconditioner) (Result, error) {
	n := a.Dim()
	x := append([]float64(nil), x0...)
	r := make([]float64, n)
	z := make([]float64, n)
	p := make([]float64, n)
	ap := make([]float64, n)

	a.MulVec(r, x)
	for i := range r {
		r[i] = b[i] - r[i]
	}

	bnorm := linsys.Norm2(b)
	if bnorm == 0 {
		bnorm = 1
	}
	resid := linsys.Norm2(r) / bnorm
	if resid <= s.opts.Tolerance {
		return Result{X: x, Residual: resid, Converged: true}, nil
	}

	applyPC(pc, z, r)
	copy(p, z)
	rz := linsys.Dot(r, z)

	for it := 1; it <= s.opts.MaxIterations; it++ {
		a.MulVec(ap, p)
		denom := linsys.Dot(p, ap)
		if denom == 0 || math.IsNaN(denom) {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}
		alpha := rz / denom
		for i := range x {
			x[i] += alpha * p[i]
			r[i] -= alpha * ap[i]
		}

		resid = linsys.Norm2(r) / bnorm
		if resid <= s.opts.Tolerance {
			return Result{X: x, Iterations: it, Residual: resid, Converged: true}, nil
		}
		if math.IsNaN(resid) || math.IsInf(resid, 0) {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}

		applyPC(pc, z, r)
		rzNew := linsys.Dot(r, z)
		beta := rzNew / rz
		rz = rzNew
		for i := range p {
			p[i] = z[i] + beta*p[i]
		}
	}

	return Result{X: x, Iterations: s.opts.MaxIterations, Residual: resid}, ErrNonConvergence
}

func applyPC(pc precond.Preconditioner, dst, r []float64) {
	if pc == nil {
		copy(dst, r)
		return
	}
	pc.Apply(dst, r)
}
