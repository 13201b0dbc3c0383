package grid

import "fmt"

// Geometry describes a structured 3D cell grid with uniform spacing.
type Geometry struct {
	Nx, Ny, Nz int
	Dx, Dy, Dz float64
}

func (g Geometry) Cells() int { return g.Nx * g.Ny * g.Nz }

// Index maps (i,j,k) cell coordinates to a flat cell index, x fastest.
func (g Geometry) Index(i, j, k int) int {
	return i + g.Nx*(j+g.Ny*k)
}

func (g Geometry) CellVolume() float64 { return g.Dx * g.Dy * g.Dz }

func (g Geometry) Validate() error {
	if g.Nx < 1 || g.Ny < 1 || g.Nz < 1 {
		return fmt.Errorf("grid: dimensions must be at least 1, got %dx%dx%d", g.Nx, g.Ny, g.Nz)
	}
	if g.Dx <= 0 || g.Dy <= 0 || g.Dz <= 0 {
		return fmt.Errorf("grid: cell sizes must be positive, got %g x %g x %g", g.Dx, g.Dy, g.Dz)
	}
	return nil
}

// Field is a scalar quantity defined on every cell of a grid.
type Field []float64

func (f Field) Clone() Field {
	c := make(Field, len(f))
	copy(c, f)
	return c
}

// State is a snapshot of the simulated quantities at one point in time.
// It is treated as immutable once accepted: a step produces a fresh State
// and never writes back into its input.
type State struct {
	Step     int
	StepSize float64
	Time     float64

	Geom     Geometry
	Pressure Field
	Sw       Field // water saturation
	So       Field // oil saturation
	Sg       Field // gas saturation
}

// NewState allocates a state with all fields sized for geom.
func NewState(geom Geometry) *State {
	n := geom.Cells()
	return &State{
		Geom:     geom,
		Pressure: make(Field, n),
		Sw:       make(Field, n),
		So:       make(Field, n),
		Sg:       make(Field, n),
	}
}

func (s *State) Clone() *State {
	return &State{
		Step:     s.Step,
		StepSize: s.StepSize,
		Time:     s.Time,
		Geom:     s.Geom,
		Pressure: s.Pressure.Clone(),
		Sw:       s.Sw.Clone(),
		So:       s.So.Clone(),
		Sg:       s.Sg.Clone(),
	}
}

// CheckShape verifies that every field matches the geometry.
func (s *State) CheckShape() error {
	n := s.Geom.Cells()
	for name, f := range map[string]Field{
		"pressure": s.Pressure,
		"sw":       s.Sw,
		"so":       s.So,
		"sg":       s.Sg,
	} {
		if len(f) != n {
			return fmt.Errorf("grid: %s field has %d cells, geometry expects %d", name, len(f), n)
		}
	}
	return nil
}

// Fluxes summarizes the inter-cell throughput realized by an explicit
// saturation update. MaxThroughput is the largest per-cell volumetric rate
// divided by that cell's pore volume (1/s); multiplied by the step size it
// gives the realized CFL number.
type Fluxes struct {
	MaxThroughput float64
}
