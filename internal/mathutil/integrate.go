package mathutil

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate/quad"
)

// gaussPoints per segment. The integrands here are piecewise polynomials of
// low degree between parameter breakpoints, so a fixed Legendre rule per
// segment is exact to machine precision.
const gaussPoints = 12

// SegmentIntegrate integrates f over [a, b], splitting the interval at the
// supplied breakpoints and applying a fixed Gauss-Legendre rule per segment.
func SegmentIntegrate(f func(float64) float64, a, b float64, breakpoints []float64) float64 {
	if b <= a {
		return 0
	}
	cuts := make([]float64, 0, len(breakpoints)+2)
	cuts = append(cuts, a)
	for _, t := range breakpoints {
		if t > a && t < b {
			cuts = append(cuts, t)
		}
	}
	cuts = append(cuts, b)
	sort.Float64s(cuts)

	sum := 0.0
	for i := 0; i+1 < len(cuts); i++ {
		lo, hi := cuts[i], cuts[i+1]
		if hi-lo < 1e-14 {
			continue
		}
		sum += quad.Fixed(f, lo, hi, gaussPoints, quad.Legendre{}, 0)
	}
	return sum
}

// MergeBreakpoints collects, sorts and deduplicates breakpoints from several grids.
func MergeBreakpoints(lists ...[]float64) []float64 {
	var out []float64
	for _, l := range lists {
		out = append(out, l...)
	}
	sort.Float64s(out)
	dedup := out[:0]
	for _, t := range out {
		if len(dedup) == 0 || t-dedup[len(dedup)-1] > 1e-14 {
			dedup = append(dedup, t)
		}
	}
	return dedup
}

// CloseEnough reports whether two floats agree within tol in absolute terms.
func CloseEnough(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
