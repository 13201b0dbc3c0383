package grid

import "testing"

func TestGeometryIndex(t *testing.T) {
	g := Geometry{Nx: 4, Ny: 3, Nz: 2, Dx: 1, Dy: 1, Dz: 1}

	if g.Cells() != 24 {
		t.Fatalf("expected 24 cells, got %d", g.Cells())
	}

	seen := make(map[int]bool)
	for k := 0; k < g.Nz; k++ {
		for j := 0; j < g.Ny; j++ {
			for i := 0; i < g.Nx; i++ {
				idx := g.Index(i, j, k)
				if idx < 0 || idx >= g.Cells() {
					t.Fatalf("index out of range: (%d,%d,%d) -> %d", i, j, k, idx)
				}
				if seen[idx] {
					t.Fatalf("duplicate index %d at (%d,%d,%d)", idx, i, j, k)
				}
				seen[idx] = true
			}
		}
	}

	if g.Index(1, 0, 0) != g.Index(0, 0, 0)+1 {
		t.Error("x should be the fastest axis")
	}
}

func TestGeometryValidate(t *testing.T) {
	tests := []struct {
		name string
		geom Geometry
		ok   bool
	}{
		{"valid", Geometry{Nx: 2, Ny: 2, Nz: 2, Dx: 10, Dy: 10, Dz: 5}, true},
		{"zero nx", Geometry{Nx: 0, Ny: 2, Nz: 2, Dx: 10, Dy: 10, Dz: 5}, false},
		{"negative dz", Geometry{Nx: 2, Ny: 2, Nz: 2, Dx: 10, Dy: 10, Dz: -1}, false},
		{"zero dx", Geometry{Nx: 2, Ny: 2, Nz: 2, Dx: 0, Dy: 10, Dz: 5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.geom.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestStateCloneIsIndependent(t *testing.T) {
	g := Geometry{Nx: 2, Ny: 2, Nz: 1, Dx: 1, Dy: 1, Dz: 1}
	s := NewState(g)
	s.Pressure[0] = 3000
	s.Sw[0] = 0.2

	c := s.Clone()
	c.Pressure[0] = 100
	c.Sw[0] = 0.9

	if s.Pressure[0] != 3000 || s.Sw[0] != 0.2 {
		t.Error("clone mutated original state")
	}
}

func TestStateCheckShape(t *testing.T) {
	g := Geometry{Nx: 2, Ny: 2, Nz: 1, Dx: 1, Dy: 1, Dz: 1}
	s := NewState(g)
	if err := s.CheckShape(); err != nil {
		t.Fatalf("unexpected shape error: %v", err)
	}

	s.Sw = s.Sw[:2]
	if err := s.CheckShape(); err == nil {
		t.Error("expected shape error for truncated saturation field")
	}
}
