package timer

import "testing"

func TestClassify(t *testing.T) {
	cl := NewClassifier(validConfig()) // mild 1.0, severe 2.0

	tests := []struct {
		name       string
		attempt    Attempt
		lastChance bool
		want       Class
	}{
		{"clean accept", Attempt{Converged: true, CFLRatio: 0.5}, false, Accept},
		{"cfl exactly at limit", Attempt{Converged: true, CFLRatio: 1.0}, false, Accept},
		{"mild cfl overshoot", Attempt{Converged: true, CFLRatio: 1.5}, false, RetryMild},
		{"cfl at severe boundary", Attempt{Converged: true, CFLRatio: 2.0}, false, RetryMild},
		{"severe cfl overshoot", Attempt{Converged: true, CFLRatio: 3.0}, false, RetrySevere},
		{"chain exhausted", Attempt{Converged: false}, false, RetryMild},
		{"bounds violated", Attempt{Converged: true, CFLRatio: 0.5, BoundsViolated: true}, false, RetrySevere},
		{"updater hard failure", Attempt{Converged: true, UpdaterFailed: true}, false, RetrySevere},
		{"mild at last chance", Attempt{Converged: true, CFLRatio: 1.5}, true, Fatal},
		{"severe at last chance", Attempt{Converged: true, CFLRatio: 3.0}, true, Fatal},
		{"non-convergence at last chance", Attempt{Converged: false}, true, Fatal},
		{"accept ignores last chance", Attempt{Converged: true, CFLRatio: 0.5}, true, Accept},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cl.Classify(tt.attempt, tt.lastChance); got != tt.want {
				t.Errorf("Classify(%+v, %v) = %v, want %v", tt.attempt, tt.lastChance, got, tt.want)
			}
		})
	}
}

func TestClassifierConfigurableThresholds(t *testing.T) {
	cfg := validConfig()
	cfg.MildCFLRatio = 1.1
	cfg.SevereCFLRatio = 4.0
	cl := NewClassifier(cfg)

	if got := cl.Classify(Attempt{Converged: true, CFLRatio: 1.05}, false); got != Accept {
		t.Errorf("ratio within widened mild limit should accept, got %v", got)
	}
	if got := cl.Classify(Attempt{Converged: true, CFLRatio: 3.0}, false); got != RetryMild {
		t.Errorf("ratio within widened severe limit should be mild, got %v", got)
	}
}
