package precond

import (
	"fmt"
	"math"

	"github.com/san-kum/porosim/internal/linsys"
)

// Preconditioner approximately applies A⁻¹: dst = M⁻¹ r.
type Preconditioner interface {
	Apply(dst, r []float64)
}

// Factory builds a preconditioner for a freshly assembled matrix. prev is
// the instance built on an earlier step, or nil; factories may use it to
// reuse allocations but must not assume the matrix is unchanged.
type Factory interface {
	Name() string
	Build(a *linsys.Matrix, prev Preconditioner) (Preconditioner, error)
}

// Registry maps preconditioner names to factories. It is built once at
// startup and passed by reference; there is no package-level state.
type Registry struct {
	factories map[string]func() Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]func() Factory)}
	r.factories["none"] = func() Factory { return identityFactory{} }
	r.factories["jacobi"] = func() Factory { return jacobiFactory{} }
	r.factories["ilu0"] = func() Factory { return ilu0Factory{} }
	return r
}

func (r *Registry) Register(name string, fn func() Factory) {
	r.factories[name] = fn
}

func (r *Registry) Get(name string) (Factory, error) {
	fn, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown preconditioner: %s", name)
	}
	return fn(), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// identity leaves the residual untouched.

type identityFactory struct{}

func (identityFactory) Name() string { return "none" }

func (identityFactory) Build(a *linsys.Matrix, prev Preconditioner) (Preconditioner, error) {
	return identity{}, nil
}

type identity struct{}

func (identity) Apply(dst, r []float64) { copy(dst, r) }

// jacobi scales by the inverse diagonal.

type jacobiFactory struct{}

func (jacobiFactory) Name() string { return "jacobi" }

func (jacobiFactory) Build(a *linsys.Matrix, prev Preconditioner) (Preconditioner, error) {
	j, _ := prev.(*jacobi)
	if j == nil || len(j.invDiag) != a.Dim() {
		j = &jacobi{invDiag: make([]float64, a.Dim())}
	}
	a.Diagonal(j.invDiag)
	for i, d := range j.invDiag {
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("jacobi: unusable diagonal %g at row %d", d, i)
		}
		j.invDiag[i] = 1 / d
	}
	return j, nil
}

type jacobi struct {
	invDiag []float64
}

func (j *jacobi) Apply(dst, r []float64) {
	for i := range r {
		dst[i] = r[i] * j.invDiag[i]
	}
}
