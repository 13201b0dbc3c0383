package config

// presets are built on top of DefaultConfig so every scenario carries a
// complete solver and timer section.
var presets = map[string]func(*Config){
	"waterflood": func(c *Config) {},
	"quarter-five-spot": func(c *Config) {
		c.Scenario = "quarter-five-spot"
		c.Grid = GridConfig{Nx: 30, Ny: 30, Nz: 1, Dx: 5, Dy: 5, Dz: 2}
		c.Wells = []WellConfig{
			{Name: "inj-1", Kind: "injector", I: 0, J: 0, K: 0, Rate: 2e-4},
			{Name: "prod-1", Kind: "producer", I: 29, J: 29, K: 0, Rate: 2e-4},
		}
	},
	"line-drive": func(c *Config) {
		c.Scenario = "line-drive"
		c.Grid = GridConfig{Nx: 40, Ny: 10, Nz: 1, Dx: 5, Dy: 5, Dz: 2}
		c.Wells = []WellConfig{
			{Name: "inj-1", Kind: "injector", I: 0, J: 2, K: 0, Rate: 1e-4},
			{Name: "inj-2", Kind: "injector", I: 0, J: 7, K: 0, Rate: 1e-4},
			{Name: "prod-1", Kind: "producer", I: 39, J: 4, K: 0, Rate: 2e-4},
		}
	},
	"tight": func(c *Config) {
		c.Scenario = "tight"
		c.Rock.Permeability = 1e-15
		c.Timer.InitialStep = 10.0
		c.Timer.MaxStep = 600.0
		c.Solver.Preconditioner = "ilu0"
	},
}

// GetPreset returns a fresh config for a named scenario, or nil when the
// scenario is unknown.
func GetPreset(name string) *Config {
	apply, ok := presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	return names
}
