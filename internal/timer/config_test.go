package timer

import (
	"errors"
	"testing"
)

func validConfig() Config {
	return DefaultConfig(1.0, 0.1, 10.0)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(c *Config) {}, true},
		{"zero min", func(c *Config) { c.MinStep = 0 }, false},
		{"negative min", func(c *Config) { c.MinStep = -1 }, false},
		{"initial below min", func(c *Config) { c.InitialStep = 0.01 }, false},
		{"initial above max", func(c *Config) { c.InitialStep = 20 }, false},
		{"zero cfl", func(c *Config) { c.MaxCFL = 0 }, false},
		{"shrinking growth", func(c *Config) { c.GrowthFactor = 0.8 }, false},
		{"backoff of one", func(c *Config) { c.BackoffFactor = 1.0 }, false},
		{"aggressive above backoff", func(c *Config) { c.AggressiveBackoffFactor = 0.9 }, false},
		{"zero cooldown", func(c *Config) { c.GrowthCooldown = 0 }, false},
		{"smoothing of one", func(c *Config) { c.Smoothing = 1.0 }, false},
		{"zero reject budget", func(c *Config) { c.MaxConsecutiveRejects = 0 }, false},
		{"severe below mild", func(c *Config) { c.SevereCFLRatio = 0.5 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.Is(err, ErrInvalidConfig) {
					t.Errorf("error should wrap ErrInvalidConfig: %v", err)
				}
			}
		})
	}
}

func TestNewControllerRejectsBadConfig(t *testing.T) {
	cfg := validConfig()
	cfg.MinStep = 5 // above initial
	if _, err := NewController(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
