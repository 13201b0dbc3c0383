package precond

import (
	"fmt"
	"math"

	"github.com/san-kum/porosim/internal/linsys"
)

// ilu0 is a zero-fill incomplete LU factorization: the factors share the
// sparsity pattern of A. Apply performs the usual forward then backward
// triangular solve.

type ilu0Factory struct{}

func (ilu0Factory) Name() string { return "ilu0" }

func (ilu0Factory) Build(a *linsys.Matrix, prev Preconditioner) (Preconditioner, error) {
	n := a.Dim()

	// Copy the pattern and values row by row; factorize in place.
	rows := make([][]int, n)
	vals := make([][]float64, n)
	diagPos := make([]int, n)
	for i := 0; i < n; i++ {
		cols, v := a.Row(i)
		rows[i] = cols
		vals[i] = append([]float64(nil), v...)
		diagPos[i] = -1
		for p, j := range cols {
			if j == i {
				diagPos[i] = p
			}
		}
		if diagPos[i] < 0 {
			return nil, fmt.Errorf("ilu0: missing diagonal at row %d", i)
		}
	}

	// IKJ variant restricted to the existing pattern.
	colPos := make(map[int]int, 8)
	for i := 1; i < n; i++ {
		clear(colPos)
		for p, j := range rows[i] {
			colPos[j] = p
		}
		for p, k := range rows[i] {
			if k >= i {
				break
			}
			pivot := vals[k][diagPos[k]]
			if pivot == 0 || math.IsNaN(pivot) {
				return nil, fmt.Errorf("ilu0: zero pivot at row %d", k)
			}
			factor := vals[i][p] / pivot
			vals[i][p] = factor
			for q := diagPos[k] + 1; q < len(rows[k]); q++ {
				if tp, ok := colPos[rows[k][q]]; ok {
					vals[i][tp] -= factor * vals[k][q]
				}
			}
		}
		if d := vals[i][diagPos[i]]; d == 0 || math.IsNaN(d) {
			return nil, fmt.Errorf("ilu0: zero pivot at row %d", i)
		}
	}

	return &ilu0{rows: rows, vals: vals, diagPos: diagPos, work: make([]float64, n)}, nil
}

type ilu0 struct {
	rows    [][]int
	vals    [][]float64
	diagPos []int
	work    []float64
}

func (m *ilu0) Apply(dst, r []float64) {
	n := len(m.rows)
	y := m.work

	// Ly = r with unit lower triangle.
	for i := 0; i < n; i++ {
		sum := r[i]
		for p := 0; p < m.diagPos[i]; p++ {
			sum -= m.vals[i][p] * y[m.rows[i][p]]
		}
		y[i] = sum
	}

	// U dst = y.
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for p := m.diagPos[i] + 1; p < len(m.rows[i]); p++ {
			sum -= m.vals[i][p] * dst[m.rows[i][p]]
		}
		dst[i] = sum / m.vals[i][m.diagPos[i]]
	}
}
