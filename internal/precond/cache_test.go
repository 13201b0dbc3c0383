package precond

import (
	"testing"

	"github.com/san-kum/porosim/internal/linsys"
)

// countingFactory records how many times the wrapped build actually ran.
type countingFactory struct {
	builds int
}

func (c *countingFactory) Name() string { return "counting" }

func (c *countingFactory) Build(a *linsys.Matrix, prev Preconditioner) (Preconditioner, error) {
	c.builds++
	return identity{}, nil
}

func TestCacheAgeBound(t *testing.T) {
	inner := &countingFactory{}
	cf := NewCachedFactory(inner, 10, 0.3)

	// Priming build on the first system.
	if _, err := cf.Build(tridiag(4, 1.0), nil); err != nil {
		t.Fatalf("initial build: %v", err)
	}
	if inner.builds != 1 || cf.Rebuilds() != 0 {
		t.Fatalf("expected one initial build, got builds=%d rebuilds=%d", inner.builds, cf.Rebuilds())
	}

	// Ten more steps whose fingerprint drift stays below the threshold:
	// only the tenth may rebuild, via the age bound.
	for step := 1; step <= 10; step++ {
		scale := 1.0 + 0.01*float64(step) // max drift 10%, well under 0.3
		if _, err := cf.Build(tridiag(4, scale), nil); err != nil {
			t.Fatalf("step %d build: %v", step, err)
		}
		wantRebuilds := 0
		if step == 10 {
			wantRebuilds = 1
		}
		if cf.Rebuilds() != wantRebuilds {
			t.Fatalf("step %d: rebuilds = %d, want %d", step, cf.Rebuilds(), wantRebuilds)
		}
	}
	if inner.builds != 2 {
		t.Errorf("inner factory ran %d times, want 2", inner.builds)
	}
}

func TestCacheDriftBound(t *testing.T) {
	inner := &countingFactory{}
	cf := NewCachedFactory(inner, 1000, 0.3)

	if _, err := cf.Build(tridiag(4, 1.0), nil); err != nil {
		t.Fatal(err)
	}

	// A couple of quiet steps first.
	for i := 0; i < 3; i++ {
		if _, err := cf.Build(tridiag(4, 1.05), nil); err != nil {
			t.Fatal(err)
		}
	}
	if cf.Rebuilds() != 0 {
		t.Fatalf("quiet steps should not rebuild, got %d", cf.Rebuilds())
	}

	// A single step with >=30% drift rebuilds immediately regardless of age.
	if _, err := cf.Build(tridiag(4, 1.5), nil); err != nil {
		t.Fatal(err)
	}
	if cf.Rebuilds() != 1 {
		t.Errorf("drift past threshold should rebuild exactly once, got %d", cf.Rebuilds())
	}
}

func TestCacheReturnsSameObjectWhileFresh(t *testing.T) {
	cf := NewCachedFactory(&countingFactory{}, 10, 0.3)

	a := tridiag(4, 1.0)
	first, _ := cf.Build(a, nil)
	second, _ := cf.Build(a, nil)
	if first != second {
		t.Error("fresh cache should hand back the identical preconditioner")
	}
	if cf.Age() != 1 {
		t.Errorf("age = %d, want 1", cf.Age())
	}
}

func TestCacheInvalidate(t *testing.T) {
	inner := &countingFactory{}
	cf := NewCachedFactory(inner, 1000, 10.0)

	a := tridiag(4, 1.0)
	if _, err := cf.Build(a, nil); err != nil {
		t.Fatal(err)
	}
	cf.Invalidate()
	if cf.Age() != -1 {
		t.Error("invalidated cache should report cold age")
	}
	if _, err := cf.Build(a, nil); err != nil {
		t.Fatal(err)
	}
	if inner.builds != 2 {
		t.Errorf("invalidate must force a rebuild, inner builds = %d", inner.builds)
	}
}
