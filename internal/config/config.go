package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/porosim/internal/grid"
	"github.com/san-kum/porosim/internal/timer"
)

const (
	DefaultHorizon        = 86400.0 // one day
	DefaultInitialStep    = 60.0
	DefaultMinStep        = 1.0
	DefaultMaxStep        = 3600.0
	DefaultPressure       = 2e7
	DefaultWaterSat       = 0.2
	DefaultPorosity       = 0.2
	DefaultPermeability   = 1e-13
	DefaultWaterViscosity = 1e-3
	DefaultOilViscosity   = 5e-3
	DefaultCompress       = 1e-9
	DefaultTolerance      = 1e-8
	DefaultMaxIterations  = 500
	DefaultCacheFrequency = 10
	DefaultCacheThreshold = 0.3
)

type Config struct {
	Scenario string     `yaml:"scenario"`
	Horizon  float64    `yaml:"horizon"`
	Grid     GridConfig `yaml:"grid"`

	Rock    RockConfig   `yaml:"rock"`
	Fluid   FluidConfig  `yaml:"fluid"`
	Wells   []WellConfig `yaml:"wells"`
	Initial InitConfig   `yaml:"initial"`

	Solver SolverConfig `yaml:"solver"`
	Timer  TimerConfig  `yaml:"timer"`
	Output OutputConfig `yaml:"output"`
}

type GridConfig struct {
	Nx int     `yaml:"nx"`
	Ny int     `yaml:"ny"`
	Nz int     `yaml:"nz"`
	Dx float64 `yaml:"dx"`
	Dy float64 `yaml:"dy"`
	Dz float64 `yaml:"dz"`
}

type RockConfig struct {
	Porosity     float64 `yaml:"porosity"`
	Permeability float64 `yaml:"permeability"`
}

type FluidConfig struct {
	WaterViscosity  float64 `yaml:"water_viscosity"`
	OilViscosity    float64 `yaml:"oil_viscosity"`
	Compressibility float64 `yaml:"compressibility"`
}

type WellConfig struct {
	Name string  `yaml:"name"`
	Kind string  `yaml:"kind"` // injector or producer
	I    int     `yaml:"i"`
	J    int     `yaml:"j"`
	K    int     `yaml:"k"`
	Rate float64 `yaml:"rate"`
}

type InitConfig struct {
	Pressure float64 `yaml:"pressure"`
	WaterSat float64 `yaml:"water_sat"`
}

type SolverConfig struct {
	Chain          []string    `yaml:"chain"`
	Preconditioner string      `yaml:"preconditioner"`
	Cache          CacheConfig `yaml:"cache"`
	Tolerance      float64     `yaml:"tolerance"`
	MaxIterations  int         `yaml:"max_iterations"`
	SaturationTol  float64     `yaml:"saturation_tol"`
}

type CacheConfig struct {
	Enabled            bool    `yaml:"enabled"`
	UpdateFrequency    int     `yaml:"update_frequency"`
	RecomputeThreshold float64 `yaml:"recompute_threshold"`
}

type TimerConfig struct {
	InitialStep             float64 `yaml:"initial_step"`
	MinStep                 float64 `yaml:"min_step"`
	MaxStep                 float64 `yaml:"max_step"`
	MaxCFL                  float64 `yaml:"max_cfl"`
	GrowthFactor            float64 `yaml:"growth_factor"`
	BackoffFactor           float64 `yaml:"backoff_factor"`
	AggressiveBackoffFactor float64 `yaml:"aggressive_backoff_factor"`
	GrowthCooldown          int     `yaml:"growth_cooldown"`
	Smoothing               float64 `yaml:"smoothing"`
	MaxConsecutiveRejects   int     `yaml:"max_consecutive_rejects"`
	MildCFLRatio            float64 `yaml:"mild_cfl_ratio"`
	SevereCFLRatio          float64 `yaml:"severe_cfl_ratio"`
}

type OutputConfig struct {
	Dir          string `yaml:"dir"`
	BackgroundIO bool   `yaml:"background_io"`
	Buffer       int    `yaml:"buffer"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario: "waterflood",
		Horizon:  DefaultHorizon,
		Grid:     GridConfig{Nx: 20, Ny: 20, Nz: 1, Dx: 10, Dy: 10, Dz: 2},
		Rock:     RockConfig{Porosity: DefaultPorosity, Permeability: DefaultPermeability},
		Fluid: FluidConfig{
			WaterViscosity:  DefaultWaterViscosity,
			OilViscosity:    DefaultOilViscosity,
			Compressibility: DefaultCompress,
		},
		Wells: []WellConfig{
			{Name: "inj-1", Kind: "injector", I: 0, J: 0, K: 0, Rate: 1e-4},
			{Name: "prod-1", Kind: "producer", I: 19, J: 19, K: 0, Rate: 1e-4},
		},
		Initial: InitConfig{Pressure: DefaultPressure, WaterSat: DefaultWaterSat},
		Solver: SolverConfig{
			Chain:          []string{"cg", "bicgstab", "direct"},
			Preconditioner: "ilu0",
			Cache: CacheConfig{
				Enabled:            true,
				UpdateFrequency:    DefaultCacheFrequency,
				RecomputeThreshold: DefaultCacheThreshold,
			},
			Tolerance:     DefaultTolerance,
			MaxIterations: DefaultMaxIterations,
			SaturationTol: 1e-6,
		},
		Timer: TimerConfig{
			InitialStep:             DefaultInitialStep,
			MinStep:                 DefaultMinStep,
			MaxStep:                 DefaultMaxStep,
			MaxCFL:                  timer.DefaultMaxCFL,
			GrowthFactor:            timer.DefaultGrowthFactor,
			BackoffFactor:           timer.DefaultBackoffFactor,
			AggressiveBackoffFactor: timer.DefaultAggressiveBackoff,
			GrowthCooldown:          timer.DefaultGrowthCooldown,
			MaxConsecutiveRejects:   timer.DefaultMaxRejects,
			MildCFLRatio:            timer.DefaultMildCFLRatio,
			SevereCFLRatio:          timer.DefaultSevereCFLRatio,
		},
		Output: OutputConfig{Dir: "runs", BackgroundIO: true, Buffer: 16},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Geometry converts the grid section.
func (c *Config) Geometry() grid.Geometry {
	return grid.Geometry{Nx: c.Grid.Nx, Ny: c.Grid.Ny, Nz: c.Grid.Nz, Dx: c.Grid.Dx, Dy: c.Grid.Dy, Dz: c.Grid.Dz}
}

// TimerConfig converts the timer section into the controller's config.
func (c *Config) TimerConfig() timer.Config {
	t := c.Timer
	return timer.Config{
		MinStep:                 t.MinStep,
		MaxStep:                 t.MaxStep,
		InitialStep:             t.InitialStep,
		MaxCFL:                  t.MaxCFL,
		GrowthFactor:            t.GrowthFactor,
		BackoffFactor:           t.BackoffFactor,
		AggressiveBackoffFactor: t.AggressiveBackoffFactor,
		GrowthCooldown:          t.GrowthCooldown,
		Smoothing:               t.Smoothing,
		MaxConsecutiveRejects:   t.MaxConsecutiveRejects,
		MildCFLRatio:            t.MildCFLRatio,
		SevereCFLRatio:          t.SevereCFLRatio,
	}
}

// Validate checks everything the conversion helpers cannot express. The
// timer section is validated through the controller config it produces.
func (c *Config) Validate() error {
	if c.Scenario == "" {
		return fmt.Errorf("config: scenario name is empty")
	}
	if c.Horizon <= 0 {
		return fmt.Errorf("config: horizon must be positive, got %g", c.Horizon)
	}
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	if len(c.Solver.Chain) == 0 {
		return fmt.Errorf("config: solver chain is empty")
	}
	if c.Solver.Tolerance <= 0 || c.Solver.MaxIterations < 1 {
		return fmt.Errorf("config: bad solver tolerance/iterations: %g / %d",
			c.Solver.Tolerance, c.Solver.MaxIterations)
	}
	if c.Solver.Cache.Enabled {
		if c.Solver.Cache.UpdateFrequency < 1 {
			return fmt.Errorf("config: cache update frequency must be at least 1, got %d",
				c.Solver.Cache.UpdateFrequency)
		}
		if c.Solver.Cache.RecomputeThreshold <= 0 {
			return fmt.Errorf("config: cache recompute threshold must be positive, got %g",
				c.Solver.Cache.RecomputeThreshold)
		}
	}
	if c.Initial.WaterSat < 0 || c.Initial.WaterSat > 1 {
		return fmt.Errorf("config: initial water saturation %g outside [0,1]", c.Initial.WaterSat)
	}
	if c.Initial.Pressure <= 0 {
		return fmt.Errorf("config: initial pressure must be positive, got %g", c.Initial.Pressure)
	}
	g := c.Geometry()
	for _, w := range c.Wells {
		if w.Kind != "injector" && w.Kind != "producer" {
			return fmt.Errorf("config: well %q has unknown kind %q", w.Name, w.Kind)
		}
		if w.I < 0 || w.I >= g.Nx || w.J < 0 || w.J >= g.Ny || w.K < 0 || w.K >= g.Nz {
			return fmt.Errorf("config: well %q at (%d,%d,%d) outside %dx%dx%d grid",
				w.Name, w.I, w.J, w.K, g.Nx, g.Ny, g.Nz)
		}
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("config: output dir is empty")
	}
	return c.TimerConfig().Validate()
}
