package reservoir

import "fmt"

// Rock holds per-cell porosity and isotropic permeability.
type Rock struct {
	Porosity     []float64 // fraction of bulk volume
	Permeability []float64 // m^2
}

// UniformRock fills n cells with the same porosity and permeability.
func UniformRock(n int, porosity, permeability float64) Rock {
	phi := make([]float64, n)
	k := make([]float64, n)
	for i := range phi {
		phi[i] = porosity
		k[i] = permeability
	}
	return Rock{Porosity: phi, Permeability: k}
}

func (r Rock) Validate(cells int) error {
	if len(r.Porosity) != cells || len(r.Permeability) != cells {
		return fmt.Errorf("reservoir: rock arrays sized %d/%d, grid has %d cells",
			len(r.Porosity), len(r.Permeability), cells)
	}
	for i := range r.Porosity {
		if r.Porosity[i] <= 0 || r.Porosity[i] > 1 {
			return fmt.Errorf("reservoir: porosity %g at cell %d outside (0,1]", r.Porosity[i], i)
		}
		if r.Permeability[i] <= 0 {
			return fmt.Errorf("reservoir: permeability %g at cell %d not positive", r.Permeability[i], i)
		}
	}
	return nil
}

// Fluid holds the two-phase fluid description. Compressibility is the
// small total system compressibility that keeps the pressure matrix
// non-singular for rate-controlled scenarios.
type Fluid struct {
	WaterViscosity  float64 // Pa·s
	OilViscosity    float64 // Pa·s
	Compressibility float64 // 1/Pa
}

func (f Fluid) Validate() error {
	if f.WaterViscosity <= 0 || f.OilViscosity <= 0 {
		return fmt.Errorf("reservoir: viscosities must be positive, got %g / %g",
			f.WaterViscosity, f.OilViscosity)
	}
	if f.Compressibility <= 0 {
		return fmt.Errorf("reservoir: compressibility must be positive, got %g", f.Compressibility)
	}
	return nil
}

// Mobilities returns the water and oil phase mobilities at saturation sw
// using quadratic Corey relative permeabilities.
func (f Fluid) Mobilities(sw float64) (lw, lo float64) {
	if sw < 0 {
		sw = 0
	} else if sw > 1 {
		sw = 1
	}
	krw := sw * sw
	kro := (1 - sw) * (1 - sw)
	return krw / f.WaterViscosity, kro / f.OilViscosity
}
