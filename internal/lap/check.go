package lap

import (
	"math"

	"github.com/banshee-data/trajectory.report/internal/sparse"
)

// checkTolerance bounds the accumulated rounding error accepted when
// verifying duals. Scaled from the float64 machine epsilon rather than a
// hardcoded literal so a float32 build of the pipeline could derive its own.
var checkTolerance = 1024 * (math.Nextafter(1, 2) - 1)

// CheckSolution verifies that sol is a consistent optimal certificate for c:
// X and Y are inverse permutations over stored entries, the duals are
// feasible (u[i]+v[j] <= C[i,j] for every stored entry), and complementary
// slackness holds on the assigned entries.
func CheckSolution(c *sparse.Matrix, sol *Solution) bool {
	n, cols := c.Dims()
	if n != cols || len(sol.X) != n || len(sol.Y) != n {
		return false
	}
	for i, j := range sol.X {
		if j < 0 || j >= n || sol.Y[j] != i {
			return false
		}
	}
	scale := 1.0
	for i := 0; i < n; i++ {
		rowCols, rowVals := c.Row(i)
		for k := range rowCols {
			if a := math.Abs(rowVals[k]); a > scale {
				scale = a
			}
		}
	}
	tol := checkTolerance * scale
	for i := 0; i < n; i++ {
		rowCols, rowVals := c.Row(i)
		for k, j := range rowCols {
			if sol.U[i]+sol.V[j] > rowVals[k]+tol {
				return false
			}
		}
		cij, ok := c.At(i, sol.X[i])
		if !ok || math.Abs(sol.U[i]+sol.V[sol.X[i]]-cij) > tol {
			return false
		}
	}
	return true
}

// CheckCosts reports whether every stored entry is finite and not NaN.
// The solver assumes costs live in [minCost, +Inf); infinities belong to
// the unstored (forbidden) entries instead.
func CheckCosts(c *sparse.Matrix) bool {
	rows, _ := c.Dims()
	for i := 0; i < rows; i++ {
		_, vals := c.Row(i)
		for _, v := range vals {
			if math.IsInf(v, 0) || math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}
