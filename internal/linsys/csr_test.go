package linsys

import (
	"math"
	"testing"
)

func buildTestMatrix() *Matrix {
	// [ 4 -1  0]
	// [-1  4 -1]
	// [ 0 -1  4]
	b := NewBuilder(3)
	b.Add(0, 0, 4)
	b.Add(0, 1, -1)
	b.Add(1, 0, -1)
	b.Add(1, 1, 4)
	b.Add(1, 2, -1)
	b.Add(2, 1, -1)
	b.Add(2, 2, 4)
	return b.Build()
}

func TestMulVec(t *testing.T) {
	m := buildTestMatrix()
	x := []float64{1, 2, 3}
	dst := make([]float64, 3)
	m.MulVec(dst, x)

	want := []float64{2, 4, 10}
	for i := range want {
		if math.Abs(dst[i]-want[i]) > 1e-14 {
			t.Errorf("dst[%d] = %g, want %g", i, dst[i], want[i])
		}
	}
}

func TestBuilderAccumulates(t *testing.T) {
	b := NewBuilder(2)
	b.Add(0, 0, 1.5)
	b.Add(0, 0, 2.5)
	b.Add(1, 1, 1)
	m := b.Build()

	diag := make([]float64, 2)
	m.Diagonal(diag)
	if diag[0] != 4.0 {
		t.Errorf("expected accumulated 4.0 on diagonal, got %g", diag[0])
	}
}

func TestDiagonal(t *testing.T) {
	m := buildTestMatrix()
	diag := make([]float64, 3)
	m.Diagonal(diag)
	for i, d := range diag {
		if d != 4 {
			t.Errorf("diag[%d] = %g, want 4", i, d)
		}
	}
}

func TestDenseMatchesSparse(t *testing.T) {
	m := buildTestMatrix()
	d := m.Dense()
	for i := 0; i < 3; i++ {
		cols, vals := m.Row(i)
		for p, j := range cols {
			if d.At(i, j) != vals[p] {
				t.Errorf("dense (%d,%d) = %g, sparse %g", i, j, d.At(i, j), vals[p])
			}
		}
	}
	if d.At(0, 2) != 0 {
		t.Error("unstamped entry should be zero in dense form")
	}
}

func TestFingerprintTracksScale(t *testing.T) {
	m := buildTestMatrix()
	fp1 := m.Fingerprint()

	b := NewBuilder(3)
	b.Add(0, 0, 8)
	b.Add(0, 1, -2)
	b.Add(1, 0, -2)
	b.Add(1, 1, 8)
	b.Add(1, 2, -2)
	b.Add(2, 1, -2)
	b.Add(2, 2, 8)
	fp2 := b.Build().Fingerprint()

	if fp1 <= 0 || fp2 <= 0 {
		t.Fatal("fingerprints should be positive for nonzero matrices")
	}
	if math.Abs(fp2-2*fp1) > 1e-12 {
		t.Errorf("doubling all coefficients should double the fingerprint: %g vs %g", fp1, fp2)
	}
}

func TestNorm2AndDot(t *testing.T) {
	v := []float64{3, 4}
	if math.Abs(Norm2(v)-5) > 1e-14 {
		t.Errorf("Norm2 = %g, want 5", Norm2(v))
	}
	if Dot([]float64{1, 2, 3}, []float64{4, 5, 6}) != 32 {
		t.Error("Dot product mismatch")
	}
}
