package timer

import (
	"errors"
	"math"
	"testing"
)

func mustController(t *testing.T, cfg Config) *Controller {
	t.Helper()
	c, err := NewController(cfg)
	if err != nil {
		t.Fatalf("controller construction failed: %v", err)
	}
	return c
}

func propose(t *testing.T, c *Controller, now float64) Proposal {
	t.Helper()
	p, err := c.Propose(now)
	if err != nil {
		t.Fatalf("propose failed: %v", err)
	}
	return p
}

func TestFirstProposalIsInitialStep(t *testing.T) {
	c := mustController(t, validConfig())
	p := propose(t, c, 0)
	if p.Dt != 1.0 {
		t.Errorf("first dt = %g, want initial step 1.0", p.Dt)
	}
	if p.Target != 1.0 {
		t.Errorf("target = %g, want 1.0", p.Target)
	}
}

func TestGrowthSequence(t *testing.T) {
	cfg := validConfig()
	cfg.GrowthFactor = 1.3
	cfg.GrowthCooldown = 1
	c := mustController(t, cfg)

	want := []float64{1, 1.3, 1.69, 2.197, 2.8561}
	now := 0.0
	for i, w := range want {
		p := propose(t, c, now)
		if math.Abs(p.Dt-w) > 1e-12 {
			t.Fatalf("step %d: dt = %g, want %g", i, p.Dt, w)
		}
		if err := c.Record(Accept, 0.5); err != nil {
			t.Fatalf("record failed: %v", err)
		}
		now = p.Target
	}
}

func TestGrowthClampsAtMaxStep(t *testing.T) {
	cfg := validConfig()
	cfg.GrowthFactor = 5.0
	c := mustController(t, cfg)

	for i := 0; i < 4; i++ {
		p := propose(t, c, 0)
		if p.Dt > cfg.MaxStep {
			t.Fatalf("dt %g exceeds max step %g", p.Dt, cfg.MaxStep)
		}
		if err := c.Record(Accept, 0.1); err != nil {
			t.Fatal(err)
		}
	}
	if c.StepSize() != cfg.MaxStep {
		t.Errorf("step size = %g, want clamped %g", c.StepSize(), cfg.MaxStep)
	}
}

func TestGrowthCooldown(t *testing.T) {
	cfg := validConfig()
	cfg.GrowthCooldown = 3
	cfg.GrowthFactor = 2.0
	c := mustController(t, cfg)

	// Two accepts: still cooling down, no growth.
	for i := 0; i < 2; i++ {
		propose(t, c, 0)
		if err := c.Record(Accept, 0.5); err != nil {
			t.Fatal(err)
		}
		if c.StepSize() != 1.0 {
			t.Fatalf("step grew during cooldown after %d accepts", i+1)
		}
	}

	// Third accept completes the streak.
	propose(t, c, 0)
	if err := c.Record(Accept, 0.5); err != nil {
		t.Fatal(err)
	}
	if c.StepSize() != 2.0 {
		t.Errorf("step size = %g, want 2.0 after cooldown", c.StepSize())
	}
}

func TestMildBackoff(t *testing.T) {
	cfg := validConfig()
	cfg.InitialStep = 5.0
	cfg.BackoffFactor = 0.5
	c := mustController(t, cfg)

	propose(t, c, 0)
	if err := c.Record(RetryMild, 1.5*cfg.MaxCFL); err != nil {
		t.Fatal(err)
	}
	p := propose(t, c, 0)
	if p.Dt != 2.5 {
		t.Errorf("dt after mild reject = %g, want 2.5", p.Dt)
	}
}

func TestSevereBackoff(t *testing.T) {
	cfg := validConfig()
	cfg.InitialStep = 5.0
	cfg.AggressiveBackoffFactor = 0.25
	c := mustController(t, cfg)

	propose(t, c, 0)
	if err := c.Record(RetrySevere, 3.0*cfg.MaxCFL); err != nil {
		t.Fatal(err)
	}
	p := propose(t, c, 0)
	if p.Dt != 1.25 {
		t.Errorf("dt after severe reject = %g, want 1.25", p.Dt)
	}
}

func TestBackoffClampsAtMinStep(t *testing.T) {
	cfg := validConfig()
	cfg.InitialStep = 0.15
	c := mustController(t, cfg)

	propose(t, c, 0)
	if err := c.Record(RetrySevere, 5); err != nil {
		t.Fatal(err)
	}
	if c.StepSize() != cfg.MinStep {
		t.Errorf("step size = %g, want floor %g", c.StepSize(), cfg.MinStep)
	}
	if !c.AtFloor() {
		t.Error("controller should report floor")
	}
}

func TestRejectStreakResetsOnAccept(t *testing.T) {
	c := mustController(t, validConfig())

	propose(t, c, 0)
	if err := c.Record(RetryMild, 2); err != nil {
		t.Fatal(err)
	}
	if c.ConsecutiveRejects() != 1 {
		t.Fatalf("consecutive rejects = %d, want 1", c.ConsecutiveRejects())
	}

	propose(t, c, 0)
	if err := c.Record(Accept, 0.5); err != nil {
		t.Fatal(err)
	}
	if c.ConsecutiveRejects() != 0 {
		t.Errorf("consecutive rejects = %d, want 0 after accept", c.ConsecutiveRejects())
	}
	if c.TotalRejects() != 1 {
		t.Errorf("total rejects = %d, want 1", c.TotalRejects())
	}
}

func TestExhaustionAfterExactlyRRejects(t *testing.T) {
	const r = 7
	cfg := validConfig()
	cfg.InitialStep = cfg.MinStep // always failing at the floor
	cfg.MaxConsecutiveRejects = r
	c := mustController(t, cfg)

	for i := 1; i <= r; i++ {
		if _, err := c.Propose(0); err != nil {
			t.Fatalf("propose %d failed early: %v", i, err)
		}
		err := c.Record(RetryMild, 2)
		if i < r {
			if err != nil {
				t.Fatalf("run exhausted after %d rejects, want %d", i, r)
			}
			continue
		}

		var ex *ExhaustedError
		if !errors.As(err, &ex) {
			t.Fatalf("reject %d: expected ExhaustedError, got %v", i, err)
		}
		if ex.ConsecutiveRejects != r || ex.TotalRejects != r {
			t.Errorf("exhausted with %d/%d rejects, want %d", ex.ConsecutiveRejects, ex.TotalRejects, r)
		}
		if !ex.AtFloor {
			t.Error("exhaustion at the floor should be flagged")
		}
		if len(ex.History) != r {
			t.Errorf("history has %d entries, want %d", len(ex.History), r)
		}
	}

	if c.Phase() != Exhausted {
		t.Fatal("controller should be terminal")
	}
	if _, err := c.Propose(0); err == nil {
		t.Error("proposing after exhaustion must fail")
	}
}

func TestFatalClassTerminatesImmediately(t *testing.T) {
	c := mustController(t, validConfig())
	propose(t, c, 0)

	var ex *ExhaustedError
	if err := c.Record(Fatal, 5); !errors.As(err, &ex) {
		t.Fatalf("expected ExhaustedError, got %v", err)
	}
	if c.Phase() != Exhausted {
		t.Error("controller should be terminal after Fatal")
	}
}

func TestSmoothingBlendsGrowth(t *testing.T) {
	cfg := validConfig()
	cfg.GrowthFactor = 2.0
	cfg.Smoothing = 0.5
	c := mustController(t, cfg)

	propose(t, c, 0)
	if err := c.Record(Accept, 0.5); err != nil {
		t.Fatal(err)
	}
	// (1-0.5)*2.0 + 0.5*1.0 = 1.5
	if math.Abs(c.StepSize()-1.5) > 1e-12 {
		t.Errorf("smoothed step = %g, want 1.5", c.StepSize())
	}
}

// Clamping happens before smoothing, so a growth spurt past the maximum
// blends from the maximum, not from the unclamped product.
func TestSmoothingBlendsFromClampedGrowth(t *testing.T) {
	cfg := validConfig()
	cfg.GrowthFactor = 50.0
	cfg.Smoothing = 0.5
	c := mustController(t, cfg)

	propose(t, c, 0)
	if err := c.Record(Accept, 0.5); err != nil {
		t.Fatal(err)
	}
	// clamp(1*50) = MaxStep, then (1-0.5)*MaxStep + 0.5*1.
	want := 0.5*cfg.MaxStep + 0.5*cfg.InitialStep
	if math.Abs(c.StepSize()-want) > 1e-12 {
		t.Errorf("smoothed step = %g, want %g", c.StepSize(), want)
	}
}

func TestProposalBoundaryLaw(t *testing.T) {
	cfg := validConfig()
	cfg.GrowthFactor = 3
	c := mustController(t, cfg)

	classes := []Class{Accept, Accept, RetrySevere, Accept, RetryMild, Accept, Accept, Accept}
	for _, class := range classes {
		p := propose(t, c, 0)
		if p.Dt < cfg.MinStep || p.Dt > cfg.MaxStep {
			t.Fatalf("proposal %g outside [%g, %g]", p.Dt, cfg.MinStep, cfg.MaxStep)
		}
		if err := c.Record(class, 0.5); err != nil {
			t.Fatal(err)
		}
	}
}

// Two controllers fed the same classification sequence must propose the
// same step sizes: there is no hidden wall-clock or random state.
func TestDeterminism(t *testing.T) {
	run := func() []float64 {
		c := mustController(t, validConfig())
		classes := []Class{Accept, RetryMild, Accept, Accept, RetrySevere, Accept}
		var sizes []float64
		for _, class := range classes {
			p := propose(t, c, 0)
			sizes = append(sizes, p.Dt)
			if err := c.Record(class, 0.5); err != nil {
				t.Fatal(err)
			}
		}
		return sizes
	}

	a, b := run(), run()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("step %d differs between identical runs: %g vs %g", i, a[i], b[i])
		}
	}
}

func TestProposeRecordPhaseDiscipline(t *testing.T) {
	c := mustController(t, validConfig())

	if err := c.Record(Accept, 0); err == nil {
		t.Error("record before propose must fail")
	}
	propose(t, c, 0)
	if _, err := c.Propose(0); err == nil {
		t.Error("double propose must fail")
	}
}
