// Package lap solves the linear assignment problem on sparse cost matrices
// with the Jonker-Volgenant algorithm (Computing 38, 325-340, 1987), adapted
// so every scan touches stored entries only. Unstored entries are forbidden
// assignments.
package lap

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/trajectory.report/internal/sparse"
)

var (
	// ErrInfeasible reports that no perfect matching exists over the stored
	// entries. Well-formed tracking cost matrices always carry a feasible
	// birth/death diagonal, so hitting this indicates a logic error upstream.
	ErrInfeasible = errors.New("lap: no feasible assignment")

	// ErrMalformed reports a non-square input matrix.
	ErrMalformed = errors.New("lap: malformed cost matrix")
)

// Solution holds a minimum-cost perfect assignment together with its dual
// potentials. X[i] is the column assigned to row i, Y[j] the row assigned to
// column j, and U, V the row and column duals.
type Solution struct {
	X []int
	Y []int
	U []float64
	V []float64
}

// Solve computes a minimum-cost perfect assignment for the square sparse
// cost matrix c. Phases follow Jonker-Volgenant: column reduction, reduction
// transfer, two augmenting row reduction sweeps, then shortest augmenting
// paths for the remaining free rows.
func Solve(c *sparse.Matrix) (*Solution, error) {
	rows, cols := c.Dims()
	if rows != cols {
		return nil, fmt.Errorf("%w: %dx%d", ErrMalformed, rows, cols)
	}
	n := rows
	sol := &Solution{
		X: make([]int, n),
		Y: make([]int, n),
		U: make([]float64, n),
		V: make([]float64, n),
	}
	if n == 0 {
		return sol, nil
	}
	x, y, v := sol.X, sol.Y, sol.V
	for i := range x {
		x[i] = -1
		y[i] = -1
	}

	// A row or column with no stored entries can never be matched.
	for i := 0; i < n; i++ {
		if rc, _ := c.Row(i); len(rc) == 0 {
			return nil, fmt.Errorf("%w: row %d has no entries", ErrInfeasible, i)
		}
		if cr, _ := c.Col(i); len(cr) == 0 {
			return nil, fmt.Errorf("%w: column %d has no entries", ErrInfeasible, i)
		}
	}

	// Column reduction. Scanning columns high to low, v[j] becomes the
	// column minimum and the argmin row tentatively claims j if still free.
	matches := make([]int, n)
	for j := n - 1; j >= 0; j-- {
		rowsJ, valsJ := c.Col(j)
		imin, min := rowsJ[0], valsJ[0]
		for k := 1; k < len(valsJ); k++ {
			if valsJ[k] < min {
				min = valsJ[k]
				imin = rowsJ[k]
			}
		}
		v[j] = min
		matches[imin]++
		if matches[imin] == 1 {
			x[imin] = j
			y[j] = imin
		}
	}

	// Reduction transfer for rows assigned exactly once: shift slack from
	// the assigned column so the row's second-best reduced cost becomes zero.
	free := make([]int, 0, n)
	for i := 0; i < n; i++ {
		switch {
		case matches[i] == 0:
			free = append(free, i)
		case matches[i] == 1:
			j1 := x[i]
			min := math.Inf(1)
			colsI, valsI := c.Row(i)
			for k, j := range colsI {
				if j != j1 && valsI[k]-v[j] < min {
					min = valsI[k] - v[j]
				}
			}
			if !math.IsInf(min, 1) {
				v[j1] -= min
			}
		}
	}

	// Augmenting row reduction, two sweeps. Each free row claims the column
	// at its minimum reduced cost (its second-best column when the minimum is
	// tied and already owned) and displaces the previous owner. A row
	// displaced after a unique minimum is retried in the same sweep, any
	// other displaced row in the next one.
	f := len(free)
	free = free[:cap(free)]
	for sweep := 0; sweep < 2 && f > 0; sweep++ {
		k := 0
		f0 := f
		f = 0
		for k < f0 {
			i := free[k]
			k++
			u1, u2 := math.Inf(1), math.Inf(1)
			j1, j2 := -1, -1
			colsI, valsI := c.Row(i)
			for kk, j := range colsI {
				h := valsI[kk] - v[j]
				if h < u2 {
					if h < u1 {
						u2, j2 = u1, j1
						u1, j1 = h, j
					} else {
						u2, j2 = h, j
					}
				}
			}
			// A row with a single stored entry has no second minimum; leave
			// the dual alone and push any displaced row to the next sweep.
			uniqueMin := u1 < u2 && !math.IsInf(u2, 1)
			if uniqueMin {
				v[j1] -= u2 - u1
			} else if u1 == u2 && y[j1] >= 0 && j2 >= 0 {
				j1 = j2
			}
			if i0 := y[j1]; i0 >= 0 {
				if uniqueMin {
					k--
					free[k] = i0
				} else {
					free[f] = i0
					f++
				}
			}
			x[i] = j1
			y[j1] = i
		}
	}
	free = free[:f]

	// Shortest augmenting path for each remaining free row.
	d := make([]float64, n)
	pred := make([]int, n)
	scanned := make([]bool, n)
	scanOrder := make([]int, 0, n)
	for _, i1 := range free {
		for j := 0; j < n; j++ {
			d[j] = math.Inf(1)
			pred[j] = -1
			scanned[j] = false
		}
		colsI, valsI := c.Row(i1)
		for k, j := range colsI {
			d[j] = valsI[k] - v[j]
			pred[j] = i1
		}
		scanOrder = scanOrder[:0]
		sink := -1
		var min float64
		for sink < 0 {
			jmin, best := -1, math.Inf(1)
			for j := 0; j < n; j++ {
				if !scanned[j] && d[j] < best {
					best = d[j]
					jmin = j
				}
			}
			if jmin < 0 {
				return nil, fmt.Errorf("%w: augmentation from row %d exhausted", ErrInfeasible, i1)
			}
			min = best
			if y[jmin] < 0 {
				sink = jmin
				break
			}
			scanned[jmin] = true
			scanOrder = append(scanOrder, jmin)
			i := y[jmin]
			cij, ok := c.At(i, jmin)
			if !ok {
				return nil, fmt.Errorf("%w: matched entry (%d,%d) vanished", ErrInfeasible, i, jmin)
			}
			u1 := cij - v[jmin] - min
			rowCols, rowVals := c.Row(i)
			for k, j := range rowCols {
				if scanned[j] {
					continue
				}
				if h := rowVals[k] - v[j] - u1; h < d[j] {
					d[j] = h
					pred[j] = i
				}
			}
		}
		// Dual update clipped at the sink distance, then flip the
		// alternating path back to the originating row.
		for _, j := range scanOrder {
			v[j] += d[j] - min
		}
		for j := sink; ; {
			i := pred[j]
			y[j] = i
			j, x[i] = x[i], j
			if i == i1 {
				break
			}
		}
	}

	for i := 0; i < n; i++ {
		cij, ok := c.At(i, x[i])
		if !ok {
			return nil, fmt.Errorf("%w: row %d assigned to unstored column %d", ErrInfeasible, i, x[i])
		}
		sol.U[i] = cij - v[x[i]]
	}
	return sol, nil
}

// ComputeCost returns the per-row cost vector C[i, x[i]] of an assignment.
// Rows assigned to unstored entries contribute +Inf.
func ComputeCost(c *sparse.Matrix, x []int) []float64 {
	costs := make([]float64, len(x))
	for i, j := range x {
		if val, ok := c.At(i, j); ok {
			costs[i] = val
		} else {
			costs[i] = math.Inf(1)
		}
	}
	return costs
}
