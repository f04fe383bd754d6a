package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
)

func flatCurveHandle(rate float64) *market.Handle[market.YieldCurve] {
	return market.NewHandle[market.YieldCurve](market.NewFlatForwardRate(rate))
}

func constIr(t *testing.T, ccy string, alpha, kappa, rate float64) *IrLgm1f {
	t.Helper()
	p, err := NewIrLgm1f(ccy, mathutil.NewConstant(alpha), mathutil.NewConstant(kappa), flatCurveHandle(rate))
	require.NoError(t, err)
	return p
}

func TestIrLgm1fConstantKappa(t *testing.T) {
	kappa := 0.05
	p := constIr(t, "EUR", 0.01, kappa, 0.02)

	// H(t) = (1 - exp(-kappa t)) / kappa, H'(t) = exp(-kappa t)
	for _, tm := range []float64{0, 0.5, 1, 5, 20} {
		assert.InDelta(t, (1-math.Exp(-kappa*tm))/kappa, p.H(tm), 1e-12, "H(%v)", tm)
		assert.InDelta(t, math.Exp(-kappa*tm), p.Hprime(tm), 1e-12, "H'(%v)", tm)
	}

	assert.InDelta(t, 0.01*0.01*7, p.Zeta(7), 1e-15)
}

func TestIrLgm1fZeroKappa(t *testing.T) {
	p := constIr(t, "EUR", 0.01, 0, 0.02)
	assert.InDelta(t, 3.0, p.H(3), 1e-14)
	assert.InDelta(t, 1.0, p.Hprime(3), 1e-14)
}

func TestIrLgm1fPiecewiseKappa(t *testing.T) {
	kappa, err := mathutil.NewPiecewiseConstant([]float64{2}, []float64{0.0, 0.1})
	require.NoError(t, err)
	p, err := NewIrLgm1f("EUR", mathutil.NewConstant(0.01), kappa, flatCurveHandle(0.02))
	require.NoError(t, err)

	// On [0,2] kappa=0 so H(t)=t; beyond, H(2+s) = 2 + (1-exp(-0.1 s))/0.1.
	assert.InDelta(t, 1.5, p.H(1.5), 1e-12)
	assert.InDelta(t, 2+(1-math.Exp(-0.1*3))/0.1, p.H(5), 1e-12)
	assert.InDelta(t, math.Exp(-0.1*3), p.Hprime(5), 1e-12)
}

func TestIrLgm1fShiftScalingInvariants(t *testing.T) {
	p := constIr(t, "EUR", 0.01, 0.03, 0.02)
	tm, T := 2.0, 7.0

	dHAlpha := (p.H(T) - p.H(tm)) * p.Alpha(1.0)
	dHZeta := (p.H(T) - p.H(tm)) * math.Sqrt(p.Zeta(tm))

	// Prices depend on (H(T)-H(t))*alpha and (H(T)-H(t))*sqrt(zeta) only;
	// both are preserved by any (shift, scaling) pair.
	require.NoError(t, p.SetScaling(2.5))
	p.SetShift(0.3)

	assert.InDelta(t, dHAlpha, (p.H(T)-p.H(tm))*p.Alpha(1.0), 1e-14)
	assert.InDelta(t, dHZeta, (p.H(T)-p.H(tm))*math.Sqrt(p.Zeta(tm)), 1e-14)

	assert.Error(t, p.SetScaling(0))
}

func TestFxBsParametrization(t *testing.T) {
	sigma, err := mathutil.NewPiecewiseConstant([]float64{1}, []float64{0.2, 0.3})
	require.NoError(t, err)
	p, err := NewFxBs("USD", sigma, market.NewQuote(0.9))
	require.NoError(t, err)

	assert.Equal(t, "USD", p.Currency())
	assert.InDelta(t, 0.2, p.Sigma(0.5), 1e-15)
	assert.InDelta(t, 0.3, p.Sigma(2), 1e-15)
	assert.InDelta(t, 0.04*1+0.09*1, p.Variance(0, 2), 1e-15)

	_, err = NewFxBs("", sigma, market.NewQuote(0.9))
	assert.Error(t, err)
}

func TestDkParametrization(t *testing.T) {
	curve := market.NewHandle[market.InflationCurve](market.NewFlatZeroInflation(100, market.NewQuote(0.02)))
	p, err := NewInfDk("CPI", "EUR", mathutil.NewConstant(0.005), mathutil.NewConstant(0.04), curve)
	require.NoError(t, err)

	assert.InDelta(t, (1-math.Exp(-0.04*3))/0.04, p.H(3), 1e-12)
	assert.InDelta(t, 0.005*0.005*3, p.Zeta(3), 1e-15)

	_, err = NewInfDk("CPI", "", mathutil.NewConstant(0.005), mathutil.NewConstant(0.04), curve)
	assert.Error(t, err)
}
