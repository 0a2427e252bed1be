// Package sparse provides the compressed sparse matrix used by the
// assignment solver. Matrices are accumulated as (row, col, value) triplets
// and frozen into a compressed form carrying both column-major (CSC) and
// row-major (CSR) index arrays, since the solver scans both ways.
package sparse

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Builder accumulates triplets for a rows×cols matrix. Append order is
// irrelevant; Build sorts by (row, col) before compressing, so concurrent
// producers that merge their triplet lists get identical matrices.
type Builder struct {
	rows, cols int
	rowIdx     []int
	colIdx     []int
	values     []float64
}

// NewBuilder returns a Builder for a rows×cols matrix with capacity for
// sizeHint triplets.
func NewBuilder(rows, cols, sizeHint int) *Builder {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Builder{
		rows:   rows,
		cols:   cols,
		rowIdx: make([]int, 0, sizeHint),
		colIdx: make([]int, 0, sizeHint),
		values: make([]float64, 0, sizeHint),
	}
}

// Append records the entry (i, j) = v. Bounds are checked at Build time.
func (b *Builder) Append(i, j int, v float64) {
	b.rowIdx = append(b.rowIdx, i)
	b.colIdx = append(b.colIdx, j)
	b.values = append(b.values, v)
}

// Len returns the number of triplets appended so far.
func (b *Builder) Len() int { return len(b.values) }

// Build sorts the triplets by (row, col) and compresses them into a Matrix.
// Out-of-range indices and duplicate coordinates are errors.
func (b *Builder) Build() (*Matrix, error) {
	if b.rows < 0 || b.cols < 0 {
		return nil, fmt.Errorf("sparse: negative dimensions %dx%d", b.rows, b.cols)
	}
	nnz := len(b.values)
	order := make([]int, nnz)
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, c int) bool {
		ka, kc := order[a], order[c]
		if b.rowIdx[ka] != b.rowIdx[kc] {
			return b.rowIdx[ka] < b.rowIdx[kc]
		}
		return b.colIdx[ka] < b.colIdx[kc]
	})

	m := &Matrix{
		rows:   b.rows,
		cols:   b.cols,
		rowPtr: make([]int, b.rows+1),
		colIdx: make([]int, nnz),
		rowVal: make([]float64, nnz),
		colPtr: make([]int, b.cols+1),
		rowIdx: make([]int, nnz),
		colVal: make([]float64, nnz),
	}

	// CSR pass over the sorted triplets.
	prevRow, prevCol := -1, -1
	for n, k := range order {
		i, j, v := b.rowIdx[k], b.colIdx[k], b.values[k]
		if i < 0 || i >= b.rows || j < 0 || j >= b.cols {
			return nil, fmt.Errorf("sparse: entry (%d,%d) out of range for %dx%d matrix", i, j, b.rows, b.cols)
		}
		if i == prevRow && j == prevCol {
			return nil, fmt.Errorf("sparse: duplicate entry at (%d,%d)", i, j)
		}
		prevRow, prevCol = i, j
		m.rowPtr[i+1]++
		m.colIdx[n] = j
		m.rowVal[n] = v
	}
	for i := 0; i < b.rows; i++ {
		m.rowPtr[i+1] += m.rowPtr[i]
	}

	// CSC companion: count, prefix-sum, scatter. The scatter preserves the
	// (row, col) sort order, so rows within each column come out ascending.
	for n := 0; n < nnz; n++ {
		m.colPtr[m.colIdx[n]+1]++
	}
	for j := 0; j < b.cols; j++ {
		m.colPtr[j+1] += m.colPtr[j]
	}
	next := make([]int, b.cols)
	copy(next, m.colPtr[:b.cols])
	for i := 0; i < b.rows; i++ {
		for n := m.rowPtr[i]; n < m.rowPtr[i+1]; n++ {
			j := m.colIdx[n]
			p := next[j]
			next[j]++
			m.rowIdx[p] = i
			m.colVal[p] = m.rowVal[n]
		}
	}
	return m, nil
}

// Matrix is an immutable sparse matrix in compressed form. Unstored entries
// are semantically +Inf (forbidden) for the assignment solver.
type Matrix struct {
	rows, cols int

	// CSR view: entries of row i are rowVal[rowPtr[i]:rowPtr[i+1]] at
	// columns colIdx[...], ascending.
	rowPtr []int
	colIdx []int
	rowVal []float64

	// CSC view: entries of column j are colVal[colPtr[j]:colPtr[j+1]] at
	// rows rowIdx[...], ascending.
	colPtr []int
	rowIdx []int
	colVal []float64
}

// Dims returns the matrix dimensions.
func (m *Matrix) Dims() (rows, cols int) { return m.rows, m.cols }

// NNZ returns the number of stored entries.
func (m *Matrix) NNZ() int { return len(m.rowVal) }

// At returns the stored value at (i, j) and whether the entry exists.
func (m *Matrix) At(i, j int) (float64, bool) {
	lo, hi := m.rowPtr[i], m.rowPtr[i+1]
	k := lo + sort.SearchInts(m.colIdx[lo:hi], j)
	if k < hi && m.colIdx[k] == j {
		return m.rowVal[k], true
	}
	return 0, false
}

// Row returns the stored column indices and values of row i. The returned
// slices alias the matrix and must not be modified.
func (m *Matrix) Row(i int) (cols []int, vals []float64) {
	return m.colIdx[m.rowPtr[i]:m.rowPtr[i+1]], m.rowVal[m.rowPtr[i]:m.rowPtr[i+1]]
}

// Col returns the stored row indices and values of column j. The returned
// slices alias the matrix and must not be modified.
func (m *Matrix) Col(j int) (rows []int, vals []float64) {
	return m.rowIdx[m.colPtr[j]:m.colPtr[j+1]], m.colVal[m.colPtr[j]:m.colPtr[j+1]]
}

// ToDense expands the matrix into a gonum dense matrix with unstored entries
// as zero. Intended for debug output and tests, not for solving.
func (m *Matrix) ToDense() *mat.Dense {
	d := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		for k := m.rowPtr[i]; k < m.rowPtr[i+1]; k++ {
			d.Set(i, m.colIdx[k], m.rowVal[k])
		}
	}
	return d
}
