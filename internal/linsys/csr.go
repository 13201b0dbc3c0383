package linsys

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a square sparse matrix in compressed sparse row form.
// Rows are stored with ascending column indices.
type Matrix struct {
	n      int
	rowPtr []int
	colIdx []int
	vals   []float64
}

func (m *Matrix) Dim() int { return m.n }

// Row returns the column indices and values of row i.
func (m *Matrix) Row(i int) ([]int, []float64) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	return m.colIdx[lo:hi], m.vals[lo:hi]
}

// MulVec computes dst = A*x. dst and x must both have length Dim.
func (m *Matrix) MulVec(dst, x []float64) {
	for i := 0; i < m.n; i++ {
		sum := 0.0
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			sum += m.vals[p] * x[m.colIdx[p]]
		}
		dst[i] = sum
	}
}

// Diagonal copies the main diagonal into dst. Missing entries are zero.
func (m *Matrix) Diagonal(dst []float64) {
	for i := 0; i < m.n; i++ {
		dst[i] = 0
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			if m.colIdx[p] == i {
				dst[i] = m.vals[p]
				break
			}
		}
	}
}

// Fingerprint is a cheap summary of the matrix used to detect how much the
// assembled system changed between steps without comparing all coefficients.
// It combines the scaled absolute element sum with the scaled diagonal sum,
// so both magnitude shifts and structure-preserving rescalings register.
func (m *Matrix) Fingerprint() float64 {
	var total, diag float64
	for i := 0; i < m.n; i++ {
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			total += math.Abs(m.vals[p])
			if m.colIdx[p] == i {
				diag += math.Abs(m.vals[p])
			}
		}
	}
	nnz := float64(len(m.vals))
	if nnz == 0 {
		return 0
	}
	return total/nnz + diag/float64(m.n)
}

// Dense expands the matrix for gonum's dense factorizations.
func (m *Matrix) Dense() *mat.Dense {
	d := mat.NewDense(m.n, m.n, nil)
	for i := 0; i < m.n; i++ {
		for p := m.rowPtr[i]; p < m.rowPtr[i+1]; p++ {
			d.Set(i, m.colIdx[p], m.vals[p])
		}
	}
	return d
}

// Builder accumulates coefficient stamps and produces a Matrix. Stamping the
// same (i,j) twice adds the contributions, matching how finite-volume
// assembly scatters cell and face terms.
type Builder struct {
	n       int
	entries map[int64]float64
}

func NewBuilder(n int) *Builder {
	return &Builder{n: n, entries: make(map[int64]float64)}
}

func (b *Builder) Add(i, j int, v float64) {
	if i < 0 || i >= b.n || j < 0 || j >= b.n {
		panic(fmt.Sprintf("linsys: stamp (%d,%d) outside %dx%d matrix", i, j, b.n, b.n))
	}
	b.entries[int64(i)*int64(b.n)+int64(j)] += v
}

func (b *Builder) Build() *Matrix {
	type entry struct {
		i, j int
		v    float64
	}
	list := make([]entry, 0, len(b.entries))
	for key, v := range b.entries {
		list = append(list, entry{i: int(key / int64(b.n)), j: int(key % int64(b.n)), v: v})
	}
	sort.Slice(list, func(a, c int) bool {
		if list[a].i != list[c].i {
			return list[a].i < list[c].i
		}
		return list[a].j < list[c].j
	})

	m := &Matrix{
		n:      b.n,
		rowPtr: make([]int, b.n+1),
		colIdx: make([]int, 0, len(list)),
		vals:   make([]float64, 0, len(list)),
	}
	row := 0
	for _, e := range list {
		for row < e.i {
			row++
			m.rowPtr[row] = len(m.vals)
		}
		m.colIdx = append(m.colIdx, e.j)
		m.vals = append(m.vals, e.v)
	}
	for row < b.n {
		row++
		m.rowPtr[row] = len(m.vals)
	}
	return m
}

// System is one assembled implicit pressure system: A x = RHS.
type System struct {
	A   *Matrix
	RHS []float64
}

// Norm2 returns the euclidean norm of v.
func Norm2(v []float64) float64 {
	sum := 0.0
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// Dot returns the inner product of a and b.
func Dot(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
