package reservoir

import (
	"fmt"
	"math"

	"github.com/san-kum/porosim/internal/grid"
	"github.com/san-kum/porosim/internal/linsys"
)

// face is one interior cell-to-cell connection. t is the geometric
// transmissibility (area times harmonic permeability over center distance);
// multiplying by a mobility gives volumetric rate per unit pressure drop.
type face struct {
	a, b int
	t    float64
}

// Model is a two-phase (water/oil) reservoir on a structured grid solved
// with the implicit-pressure, explicit-saturation split: Assemble produces
// the pressure system for a candidate step and Apply transports water
// through the solved pressure field. Gas is not modelled; Sg stays zero.
type Model struct {
	geom  grid.Geometry
	rock  Rock
	fluid Fluid
	wells []Well

	faces []face
	poreV []float64 // per-cell pore volume
}

func NewModel(geom grid.Geometry, rock Rock, fluid Fluid, wells []Well) (*Model, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	n := geom.Cells()
	if err := rock.Validate(n); err != nil {
		return nil, err
	}
	if err := fluid.Validate(); err != nil {
		return nil, err
	}
	for _, w := range wells {
		if err := w.Validate(n); err != nil {
			return nil, err
		}
	}

	m := &Model{geom: geom, rock: rock, fluid: fluid, wells: wells}
	m.buildFaces()

	m.poreV = make([]float64, n)
	vol := geom.CellVolume()
	for i := range m.poreV {
		m.poreV[i] = rock.Porosity[i] * vol
	}
	return m, nil
}

// buildFaces enumerates the +x, +y and +z connections of every cell in a
// fixed order so assembly is deterministic.
func (m *Model) buildFaces() {
	g := m.geom
	harmonic := func(a, b int) float64 {
		ka, kb := m.rock.Permeability[a], m.rock.Permeability[b]
		return 2 * ka * kb / (ka + kb)
	}
	for k := 0; k < g.Nz; k++ {
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				c := g.Index(i, j, k)
				if i+1 < g.Nx {
					nb := g.Index(i+1, j, k)
					m.faces = append(m.faces, face{a: c, b: nb, t: g.Dy * g.Dz * harmonic(c, nb) / g.Dx})
				}
				if j+1 < g.Ny {
					nb := g.Index(i, j+1, k)
					m.faces = append(m.faces, face{a: c, b: nb, t: g.Dx * g.Dz * harmonic(c, nb) / g.Dy})
				}
				if k+1 < g.Nz {
					nb := g.Index(i, j, k+1)
					m.faces = append(m.faces, face{a: c, b: nb, t: g.Dx * g.Dy * harmonic(c, nb) / g.Dz})
				}
			}
		}
	}
}

// totalMobility averages the total mobilities of the two face cells. The
// same value is used in Assemble and Apply so the explicit transport sees
// exactly the fluxes the pressure solve implied.
func (m *Model) totalMobility(s *grid.State, f face) float64 {
	lwa, loa := m.fluid.Mobilities(s.Sw[f.a])
	lwb, lob := m.fluid.Mobilities(s.Sw[f.b])
	return ((lwa + loa) + (lwb + lob)) / 2
}

// Assemble builds the implicit pressure system for a step of size dt. The
// accumulation term from the slight total compressibility keeps the matrix
// strictly diagonally dominant, hence solvable, even for all-rate wells.
func (m *Model) Assemble(s *grid.State, dt float64) (*linsys.System, error) {
	if dt <= 0 {
		return nil, fmt.Errorf("reservoir: step size %g not positive", dt)
	}
	if err := s.CheckShape(); err != nil {
		return nil, err
	}

	n := m.geom.Cells()
	b := linsys.NewBuilder(n)
	rhs := make([]float64, n)

	for i := 0; i < n; i++ {
		acc := m.poreV[i] * m.fluid.Compressibility / dt
		b.Add(i, i, acc)
		rhs[i] = acc * s.Pressure[i]
	}

	for _, f := range m.faces {
		tm := f.t * m.totalMobility(s, f)
		b.Add(f.a, f.a, tm)
		b.Add(f.b, f.b, tm)
		b.Add(f.a, f.b, -tm)
		b.Add(f.b, f.a, -tm)
	}

	for _, w := range m.wells {
		rhs[w.Cell] += w.signedRate()
	}

	return &linsys.System{A: b.Build(), RHS: rhs}, nil
}

// Apply transports water explicitly through the solved pressure field and
// reports the realized per-cell throughput for the CFL check. Saturations
// are not clamped here; out-of-bounds results are the caller's signal that
// the step was too large.
func (m *Model) Apply(s *grid.State, pressure []float64, dt float64) (*grid.State, grid.Fluxes, error) {
	if dt <= 0 {
		return nil, grid.Fluxes{}, fmt.Errorf("reservoir: step size %g not positive", dt)
	}
	if len(pressure) != m.geom.Cells() {
		return nil, grid.Fluxes{}, fmt.Errorf("reservoir: pressure has %d cells, grid has %d",
			len(pressure), m.geom.Cells())
	}

	n := m.geom.Cells()
	waterNet := make([]float64, n) // net water inflow, m^3/s
	totalAbs := make([]float64, n) // gross volumetric throughput, m^3/s

	for _, f := range m.faces {
		q := f.t * m.totalMobility(s, f) * (pressure[f.a] - pressure[f.b])

		// Upwind fractional flow: water travels with the cell the total
		// flux leaves from.
		up := f.a
		if q < 0 {
			up = f.b
		}
		lw, lo := m.fluid.Mobilities(s.Sw[up])
		fw := lw / (lw + lo)
		if math.IsNaN(fw) {
			return nil, grid.Fluxes{}, fmt.Errorf("reservoir: degenerate mobilities at cell %d (sw=%g)", up, s.Sw[up])
		}

		qw := fw * q
		waterNet[f.a] -= qw
		waterNet[f.b] += qw
		totalAbs[f.a] += math.Abs(q)
		totalAbs[f.b] += math.Abs(q)
	}

	for _, w := range m.wells {
		q := w.signedRate()
		totalAbs[w.Cell] += math.Abs(q)
		if w.Kind == Injector {
			waterNet[w.Cell] += q
			continue
		}
		// Producers drain both phases at the cell's fractional flow.
		lw, lo := m.fluid.Mobilities(s.Sw[w.Cell])
		waterNet[w.Cell] += q * lw / (lw + lo)
	}

	ns := s.Clone()
	copy(ns.Pressure, pressure)

	maxThroughput := 0.0
	for i := 0; i < n; i++ {
		ns.Sw[i] = s.Sw[i] + dt*waterNet[i]/m.poreV[i]
		ns.So[i] = 1 - ns.Sw[i]
		if tp := totalAbs[i] / m.poreV[i]; tp > maxThroughput {
			maxThroughput = tp
		}
	}

	return ns, grid.Fluxes{MaxThroughput: maxThroughput}, nil
}

// Geometry exposes the model's grid for collaborators that size buffers.
func (m *Model) Geometry() grid.Geometry { return m.geom }

// Wells exposes the configured wells in declaration order.
func (m *Model) Wells() []Well { return m.wells }
