package mathutil

import (
	"fmt"
	"math"
	"sort"
)

// PiecewiseConstant is a right-continuous step function on [0, inf).
// times holds the n interior breakpoints (strictly increasing, positive);
// values holds n+1 segment values, values[i] applying on [times[i-1], times[i])
// with times[-1] = 0 and times[n] = +inf.
type PiecewiseConstant struct {
	times  []float64
	values []float64
}

// NewPiecewiseConstant validates the breakpoint grid and returns the step function.
func NewPiecewiseConstant(times, values []float64) (*PiecewiseConstant, error) {
	if len(values) != len(times)+1 {
		return nil, fmt.Errorf("piecewise constant: need %d values for %d times, got %d",
			len(times)+1, len(times), len(values))
	}
	prev := 0.0
	for i, t := range times {
		if t <= prev {
			return nil, fmt.Errorf("piecewise constant: times must be positive and strictly increasing, times[%d]=%v", i, t)
		}
		prev = t
	}
	return &PiecewiseConstant{
		times:  append([]float64(nil), times...),
		values: append([]float64(nil), values...),
	}, nil
}

// NewConstant returns a step function with a single segment.
func NewConstant(value float64) *PiecewiseConstant {
	return &PiecewiseConstant{values: []float64{value}}
}

// Value evaluates the step function at t. Negative t clamps to the first segment.
func (p *PiecewiseConstant) Value(t float64) float64 {
	i := sort.SearchFloat64s(p.times, t)
	if i < len(p.times) && p.times[i] == t {
		i++
	}
	return p.values[i]
}

// Times returns the interior breakpoints.
func (p *PiecewiseConstant) Times() []float64 {
	return p.times
}

// Values returns the segment values. The slice is live: callers mutating it
// change the function, which is how calibration updates parameters in place.
func (p *PiecewiseConstant) Values() []float64 {
	return p.values
}

// SetValue replaces the i-th segment value.
func (p *PiecewiseConstant) SetValue(i int, v float64) {
	p.values[i] = v
}

// SetAll replaces every segment value with v.
func (p *PiecewiseConstant) SetAll(v float64) {
	for i := range p.values {
		p.values[i] = v
	}
}

// NumSegments returns the number of constant segments.
func (p *PiecewiseConstant) NumSegments() int {
	return len(p.values)
}

// segment returns [lo, hi) bounds of segment i, hi = +inf for the last one.
func (p *PiecewiseConstant) segment(i int) (float64, float64) {
	lo := 0.0
	if i > 0 {
		lo = p.times[i-1]
	}
	hi := math.Inf(1)
	if i < len(p.times) {
		hi = p.times[i]
	}
	return lo, hi
}

// Integral computes the exact integral of the step function over [a, b].
func (p *PiecewiseConstant) Integral(a, b float64) float64 {
	return p.integrate(a, b, func(v float64) float64 { return v })
}

// SquareIntegral computes the exact integral of the squared step function over [a, b].
func (p *PiecewiseConstant) SquareIntegral(a, b float64) float64 {
	return p.integrate(a, b, func(v float64) float64 { return v * v })
}

func (p *PiecewiseConstant) integrate(a, b float64, g func(float64) float64) float64 {
	if b <= a {
		return 0
	}
	sum := 0.0
	for i := range p.values {
		lo, hi := p.segment(i)
		l := math.Max(lo, a)
		h := math.Min(hi, b)
		if h > l {
			sum += g(p.values[i]) * (h - l)
		}
	}
	return sum
}
