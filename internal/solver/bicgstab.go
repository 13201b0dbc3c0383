package solver

import (
	"math"

	"github.com/san-kum/porosim/internal/linsys"
	"github.com/san-kum/porosim/internal/precond"
)

// BiCGStab handles nonsymmetric systems, which show up once upstream
// weighting or well coupling breaks the symmetry of the pressure matrix.
type BiCGStab struct {
	opts Options
}

func NewBiCGStab(opts Options) *BiCGStab { return &BiCGStab{opts: opts} }

func (s *BiCGStab) Name() string { return "bicgstab" }

func (s *BiCGStab) Solve(a *linsys.Matrix, b, x0 []float64, pc precond.Preconditioner) (Result, error) {
	n := a.Dim()
	x := append([]float64(nil), x0...)
	r := make([]float64, n)
	rhat := make([]float64, n)
	p := make([]float64, n)
	phat := make([]float64, n)
	v := make([]float64, n)
	shat := make([]float64, n)
	t := make([]float64, n)
	sv := make([]float64, n)

	a.MulVec(r, x)
	for i := range r {
		r[i] = b[i] - r[i]
	}
	copy(rhat, r)

	bnorm := linsys.Norm2(b)
	if bnorm == 0 {
		bnorm = 1
	}
	resid := linsys.Norm2(r) / bnorm
	if resid <= s.opts.Tolerance {
		return Result{X: x, Residual: resid, Converged: true}, nil
	}

	rho, alpha, omega := 1.0, 1.0, 1.0

	for it := 1; it <= s.opts.MaxIterations; it++ {
		rhoNew := linsys.Dot(rhat, r)
		if rhoNew == 0 || math.IsNaN(rhoNew) {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}
		if it == 1 {
			copy(p, r)
		} else {
			beta := (rhoNew / rho) * (alpha / omega)
			for i := range p {
				p[i] = r[i] + beta*(p[i]-omega*v[i])
			}
		}
		rho = rhoNew

		applyPC(pc, phat, p)
		a.MulVec(v, phat)
		denom := linsys.Dot(rhat, v)
		if denom == 0 || math.IsNaN(denom) {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}
		alpha = rho / denom

		for i := range sv {
			sv[i] = r[i] - alpha*v[i]
		}
		if sn := linsys.Norm2(sv) / bnorm; sn <= s.opts.Tolerance {
			for i := range x {
				x[i] += alpha * phat[i]
			}
			return Result{X: x, Iterations: it, Residual: sn, Converged: true}, nil
		}

		applyPC(pc, shat, sv)
		a.MulVec(t, shat)
		tt := linsys.Dot(t, t)
		if tt == 0 || math.IsNaN(tt) {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}
		omega = linsys.Dot(t, sv) / tt
		if omega == 0 {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}

		for i := range x {
			x[i] += alpha*phat[i] + omega*shat[i]
			r[i] = sv[i] - omega*t[i]
		}

		resid = linsys.Norm2(r) / bnorm
		if resid <= s.opts.Tolerance {
			return Result{X: x, Iterations: it, Residual: resid, Converged: true}, nil
		}
		if math.IsNaN(resid) || math.IsInf(resid, 0) {
			return Result{X: x, Iterations: it, Residual: resid}, ErrNonConvergence
		}
	}

	return Result{X: x, Iterations: s.opts.MaxIterations, Residual: resid}, ErrNonConvergence
}
