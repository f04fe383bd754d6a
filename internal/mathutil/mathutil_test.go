package mathutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPiecewiseConstantValue(t *testing.T) {
	p, err := NewPiecewiseConstant([]float64{1, 3, 5}, []float64{0.1, 0.2, 0.3, 0.4})
	require.NoError(t, err)

	assert.Equal(t, 0.1, p.Value(0))
	assert.Equal(t, 0.1, p.Value(0.999))
	assert.Equal(t, 0.2, p.Value(1)) // right-continuous at breakpoints
	assert.Equal(t, 0.3, p.Value(4))
	assert.Equal(t, 0.4, p.Value(100))
	assert.Equal(t, 0.1, p.Value(-1))
}

func TestPiecewiseConstantValidation(t *testing.T) {
	_, err := NewPiecewiseConstant([]float64{1, 1}, []float64{1, 2, 3})
	assert.Error(t, err)

	_, err = NewPiecewiseConstant([]float64{-1, 2}, []float64{1, 2, 3})
	assert.Error(t, err)

	_, err = NewPiecewiseConstant([]float64{1}, []float64{1})
	assert.Error(t, err)
}

func TestPiecewiseConstantIntegrals(t *testing.T) {
	p, err := NewPiecewiseConstant([]float64{2, 4}, []float64{1, 2, 3})
	require.NoError(t, err)

	assert.InDelta(t, 2.0, p.Integral(0, 2), 1e-14)
	assert.InDelta(t, 1*2+2*2+3*1, p.Integral(0, 5), 1e-14)
	assert.InDelta(t, 2*1.5, p.Integral(2.5, 4), 1e-14)
	assert.InDelta(t, 0.0, p.Integral(3, 3), 1e-14)

	assert.InDelta(t, 1*2+4*2+9*1, p.SquareIntegral(0, 5), 1e-14)
}

func TestSegmentIntegratePolynomial(t *testing.T) {
	// Gauss-Legendre is exact for polynomials well beyond degree 3.
	f := func(u float64) float64 { return 3*u*u - 2*u + 1 }
	got := SegmentIntegrate(f, 0, 2, []float64{0.5, 1.5})
	want := 8.0 - 4.0 + 2.0 // u^3 - u^2 + u on [0,2]
	assert.InDelta(t, want, got, 1e-12)
}

func TestSegmentIntegrateDiscontinuous(t *testing.T) {
	step := func(u float64) float64 {
		if u < 1 {
			return 1
		}
		return 5
	}
	// Without the breakpoint the quadrature misses the jump.
	got := SegmentIntegrate(step, 0, 2, []float64{1})
	assert.InDelta(t, 6.0, got, 1e-12)
}

func TestMergeBreakpoints(t *testing.T) {
	got := MergeBreakpoints([]float64{1, 3}, []float64{2, 3}, nil, []float64{0.5})
	assert.Equal(t, []float64{0.5, 1, 2, 3}, got)
}

func TestBrent(t *testing.T) {
	root, err := Brent(func(x float64) float64 { return x*x - 2 }, 0, 2, 1e-14, 100)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt2, root, 1e-12)

	root, err = Brent(math.Cos, 1, 2, 1e-14, 100)
	require.NoError(t, err)
	assert.InDelta(t, math.Pi/2, root, 1e-12)

	_, err = Brent(func(x float64) float64 { return x*x + 1 }, -1, 1, 1e-14, 100)
	assert.Error(t, err)
}

func TestExpandBracket(t *testing.T) {
	f := func(x float64) float64 { return x - 10 }
	a, b, err := ExpandBracket(f, 0, 1, 60)
	require.NoError(t, err)
	assert.True(t, f(a)*f(b) <= 0)

	_, _, err = ExpandBracket(func(x float64) float64 { return 1.0 }, 0, 1, 10)
	assert.Error(t, err)
}
