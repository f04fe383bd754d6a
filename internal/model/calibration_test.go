package model

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/optimize"
)

// totalVolInstrument is a synthetic helper whose model value is the total
// accumulated volatility sqrt(zeta) of one IR factor up to expiry. It lets
// the bootstrap and global machinery be exercised without pricing engines.
type totalVolInstrument struct {
	m      *CrossAssetModel
	i      int
	expiry float64
	target float64
}

func (s *totalVolInstrument) Expiry() float64               { return s.expiry }
func (s *totalVolInstrument) MarketValue() (float64, error) { return s.target, nil }
func (s *totalVolInstrument) ModelValue() (float64, error) {
	return math.Sqrt(s.m.Ir(s.i).Zeta(s.expiry)), nil
}

// fxVolInstrument targets the accumulated Black-Scholes variance of the FX factor.
type fxVolInstrument struct {
	m      *CrossAssetModel
	expiry float64
	target float64
}

func (s *fxVolInstrument) Expiry() float64               { return s.expiry }
func (s *fxVolInstrument) MarketValue() (float64, error) { return s.target, nil }
func (s *fxVolInstrument) ModelValue() (float64, error) {
	return math.Sqrt(s.m.Fx(0).Variance(0, s.expiry)), nil
}

// reversionInstrument targets the reversion primitive H of an inflation block.
type reversionInstrument struct {
	m      *CrossAssetModel
	expiry float64
	target float64
}

func (s *reversionInstrument) Expiry() float64               { return s.expiry }
func (s *reversionInstrument) MarketValue() (float64, error) { return s.target, nil }
func (s *reversionInstrument) ModelValue() (float64, error) {
	return s.m.Inf(0).H(s.expiry), nil
}

// calibrationFixture builds a two currency model whose USD alpha curve has
// one segment per basket expiry, seeded away from the true values.
func calibrationFixture(t *testing.T) *CrossAssetModel {
	t.Helper()

	eurAlpha := mathutil.NewConstant(0.01)
	eurKappa := mathutil.NewConstant(0.01)
	usdAlpha, err := mathutil.NewPiecewiseConstant([]float64{1, 2}, []float64{0.01, 0.01, 0.01})
	require.NoError(t, err)
	usdKappa := mathutil.NewConstant(0.03)

	eur, err := NewIrLgm1f("EUR", eurAlpha, eurKappa, flatCurveHandle(0.02))
	require.NoError(t, err)
	usd, err := NewIrLgm1f("USD", usdAlpha, usdKappa, flatCurveHandle(0.05))
	require.NoError(t, err)
	fxSigma, err := mathutil.NewPiecewiseConstant([]float64{1, 2}, []float64{0.15, 0.15, 0.15})
	require.NoError(t, err)
	fx, err := NewFxBs("USD", fxSigma, market.NewQuote(0.9))
	require.NoError(t, err)

	b := NewCorrelationBuilder()
	corr, err := b.Matrix([]FactorID{{IR, "EUR"}, {IR, "USD"}, {FX, "USD"}})
	require.NoError(t, err)

	m, err := NewCrossAssetModel([]*IrLgm1f{eur, usd}, []*FxBs{fx}, nil, nil, nil, corr, SalvageNone)
	require.NoError(t, err)
	return m
}

// zetaTargets accumulates sqrt(sum alpha_j^2 dt_j) for the step profile
// defined over unit year segments.
func zetaTargets(alphas []float64) []float64 {
	out := make([]float64, len(alphas))
	acc := 0.0
	for i, a := range alphas {
		acc += a * a
		out[i] = math.Sqrt(acc)
	}
	return out
}

func TestBootstrapIrVolatilities(t *testing.T) {
	m := calibrationFixture(t)
	truth := []float64{0.011, 0.0125, 0.008}
	targets := zetaTargets(truth)

	basket := []CalibrationInstrument{
		&totalVolInstrument{m: m, i: 1, expiry: 1, target: targets[0]},
		&totalVolInstrument{m: m, i: 1, expiry: 2, target: targets[1]},
		&totalVolInstrument{m: m, i: 1, expiry: 3, target: targets[2]},
	}

	gen := m.Generation()
	errs, err := m.CalibrateIrLgm1fVolatilitiesIterative(1, basket)
	require.NoError(t, err)
	require.Len(t, errs, 3)
	assert.Greater(t, m.Generation(), gen)

	got := m.Ir(1).AlphaCurve().Values()
	for i, want := range truth {
		assert.InDelta(t, want, got[i], 1e-9, "segment %d", i)
	}
	for i, e := range errs {
		assert.InDelta(t, 0, e.Residual, 1e-12, "instrument %d", i)
		assert.Equal(t, basket[i].(*totalVolInstrument).expiry, e.Expiry)
	}

	// Re-running from the solved state must leave the curve in place.
	before := append([]float64(nil), got...)
	_, err = m.CalibrateIrLgm1fVolatilitiesIterative(1, basket)
	require.NoError(t, err)
	for i := range before {
		assert.InDelta(t, before[i], m.Ir(1).AlphaCurve().Values()[i], 1e-9)
	}
}

func TestBootstrapFxVolatilities(t *testing.T) {
	m := calibrationFixture(t)
	truth := []float64{0.20, 0.17, 0.22}
	targets := zetaTargets(truth)

	basket := []CalibrationInstrument{
		&fxVolInstrument{m: m, expiry: 1, target: targets[0]},
		&fxVolInstrument{m: m, expiry: 2, target: targets[1]},
		&fxVolInstrument{m: m, expiry: 3, target: targets[2]},
	}

	errs, err := m.CalibrateBsVolatilitiesIterative(FX, 0, basket)
	require.NoError(t, err)
	got := m.Fx(0).SigmaCurve().Values()
	for i, want := range truth {
		assert.InDelta(t, want, got[i], 1e-9, "segment %d", i)
	}
	for _, e := range errs {
		assert.InDelta(t, 0, e.Residual, 1e-12)
	}

	_, err = m.CalibrateBsVolatilitiesIterative(IR, 0, basket)
	assert.Error(t, err, "IR is not a Black-Scholes factor class")
}

func TestBootstrapReversions(t *testing.T) {
	m := calibrationFixture(t)

	infKappa, err := mathutil.NewPiecewiseConstant([]float64{2}, []float64{0.01, 0.01})
	require.NoError(t, err)
	curve := market.NewHandle[market.InflationCurve](market.NewFlatZeroInflation(100, market.NewQuote(0.02)))
	inf, err := NewInfDk("EUCPI", "EUR", mathutil.NewConstant(0.005), infKappa, curve)
	require.NoError(t, err)

	b := NewCorrelationBuilder()
	corr, err := b.Matrix([]FactorID{{IR, "EUR"}, {IR, "USD"}, {FX, "USD"}, {INF, "EUCPI"}})
	require.NoError(t, err)
	m2, err := NewCrossAssetModel([]*IrLgm1f{m.Ir(0), m.Ir(1)}, []*FxBs{m.Fx(0)}, nil, []*InfDk{inf}, nil, corr, SalvageNone)
	require.NoError(t, err)

	// Targets computed from a known reversion profile.
	truth := []float64{0.05, -0.02}
	ref, err := NewInfDk("REF", "EUR", mathutil.NewConstant(0.005),
		mustPiecewise(t, []float64{2}, truth), curve)
	require.NoError(t, err)

	basket := []CalibrationInstrument{
		&reversionInstrument{m: m2, expiry: 2, target: ref.H(2)},
		&reversionInstrument{m: m2, expiry: 4, target: ref.H(4)},
	}

	_, err = m2.CalibrateInfDkReversionsIterative(0, basket)
	require.NoError(t, err)
	got := m2.Inf(0).KappaCurve().Values()
	for i, want := range truth {
		assert.InDelta(t, want, got[i], 1e-8, "segment %d", i)
	}
}

func mustPiecewise(t *testing.T, times, values []float64) *mathutil.PiecewiseConstant {
	t.Helper()
	p, err := mathutil.NewPiecewiseConstant(times, values)
	require.NoError(t, err)
	return p
}

func TestBootstrapPreconditions(t *testing.T) {
	m := calibrationFixture(t)

	var pv *PreconditionViolation

	_, err := m.CalibrateIrLgm1fVolatilitiesIterative(1, nil)
	require.Error(t, err, "empty basket")
	assert.True(t, errors.As(err, &pv))

	short := []CalibrationInstrument{
		&totalVolInstrument{m: m, i: 1, expiry: 1, target: 0.01},
	}
	_, err = m.CalibrateIrLgm1fVolatilitiesIterative(1, short)
	require.Error(t, err, "segment count mismatch")
	require.True(t, errors.As(err, &pv))
	assert.Contains(t, pv.Reason, "3 curve segments for 1 instruments")

	unordered := []CalibrationInstrument{
		&totalVolInstrument{m: m, i: 1, expiry: 2, target: 0.014},
		&totalVolInstrument{m: m, i: 1, expiry: 1, target: 0.01},
		&totalVolInstrument{m: m, i: 1, expiry: 3, target: 0.017},
	}
	_, err = m.CalibrateIrLgm1fVolatilitiesIterative(1, unordered)
	require.Error(t, err, "expiries not increasing")
	assert.True(t, errors.As(err, &pv))
}

func TestGlobalIrVolatilityFit(t *testing.T) {
	m := calibrationFixture(t)
	truth := []float64{0.011, 0.0125, 0.008}
	targets := zetaTargets(truth)

	basket := []CalibrationInstrument{
		&totalVolInstrument{m: m, i: 1, expiry: 1, target: targets[0]},
		&totalVolInstrument{m: m, i: 1, expiry: 2, target: targets[1]},
		&totalVolInstrument{m: m, i: 1, expiry: 3, target: targets[2]},
	}

	result, errs, err := m.CalibrateIrLgm1fVolatilitiesGlobal(1, basket, optimize.DefaultOptions())
	require.NoError(t, err)
	assert.True(t, result.Converged)
	assert.Less(t, result.ResidualNorm, 1e-8)

	got := m.Ir(1).AlphaCurve().Values()
	for i, want := range truth {
		assert.InDelta(t, want, got[i], 1e-5, "segment %d", i)
	}
	for _, e := range errs {
		assert.InDelta(t, 0, e.Residual, 1e-7)
	}
}

func TestGlobalFitInconsistentTargets(t *testing.T) {
	// Overdetermined and inconsistent: one effective parameter per segment
	// cannot hit two different targets at the same expiry. The optimizer
	// still returns the least squares point, residuals tell the story.
	eur, err := NewIrLgm1f("EUR", mathutil.NewConstant(0.01), mathutil.NewConstant(0), flatCurveHandle(0.02))
	require.NoError(t, err)
	b := NewCorrelationBuilder()
	corr, err := b.Matrix([]FactorID{{IR, "EUR"}})
	require.NoError(t, err)
	m1, err := NewCrossAssetModel([]*IrLgm1f{eur}, nil, nil, nil, nil, corr, SalvageNone)
	require.NoError(t, err)

	basket := []CalibrationInstrument{
		&totalVolInstrument{m: m1, i: 0, expiry: 4, target: 0.020},
		&totalVolInstrument{m: m1, i: 0, expiry: 4, target: 0.024},
	}

	result, errs, err := m1.CalibrateIrLgm1fVolatilitiesGlobal(0, basket, optimize.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, errs, 2)
	// The fit splits the difference, leaving opposite-signed residuals.
	assert.Less(t, errs[0].Residual*errs[1].Residual, 0.0)
	assert.Greater(t, result.ResidualNorm, 0.0)
}
