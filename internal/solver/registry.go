package solver

import "fmt"

// Registry maps solver names to factories. Built once at startup and passed
// into the engine by reference; chains are resolved once per run, never per
// step.
type Registry struct {
	factories map[string]func(Options) Solver
}

func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]func(Options) Solver)}
	r.factories["cg"] = func(o Options) Solver { return NewCG(o) }
	r.factories["bicgstab"] = func(o Options) Solver { return NewBiCGStab(o) }
	r.factories["direct"] = func(o Options) Solver { return NewDirect(o) }
	return r
}

func (r *Registry) Register(name string, fn func(Options) Solver) {
	r.factories[name] = fn
}

func (r *Registry) Get(name string, opts Options) (Solver, error) {
	fn, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown solver: %s", name)
	}
	return fn(opts), nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}

// Chain is an ordered list of resolved solvers tried strictly in sequence.
type Chain []Solver

// Resolve turns configured names into a Chain. An unknown name fails the
// whole resolution; that is a configuration error, not a retryable one.
func (r *Registry) Resolve(names []string, opts Options) (Chain, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("solver chain is empty")
	}
	chain := make(Chain, 0, len(names))
	for _, name := range names {
		s, err := r.Get(name, opts)
		if err != nil {
			return nil, err
		}
		chain = append(chain, s)
	}
	return chain, nil
}
