package engines

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/model"
)

// inflationModel builds a single currency model with one Dodgson-Kainth
// inflation block at 2% zero inflation.
func inflationModel(t *testing.T, irAlpha, infAlpha, infKappa, rhoInfIr float64) *model.CrossAssetModel {
	t.Helper()
	ir, err := model.NewIrLgm1f("EUR", mathutil.NewConstant(irAlpha), mathutil.NewConstant(0.01), flatYC(0.02))
	require.NoError(t, err)
	curve := market.NewHandle[market.InflationCurve](market.NewFlatZeroInflation(100, market.NewQuote(0.02)))
	inf, err := model.NewInfDk("EUCPI", "EUR", mathutil.NewConstant(infAlpha), mathutil.NewConstant(infKappa), curve)
	require.NoError(t, err)

	b := model.NewCorrelationBuilder()
	if rhoInfIr != 0 {
		require.NoError(t, b.SetValue(
			model.FactorID{Class: model.INF, Name: "EUCPI"},
			model.FactorID{Class: model.IR, Name: "EUR"}, rhoInfIr))
	}
	corr, err := b.Matrix([]model.FactorID{
		{Class: model.IR, Name: "EUR"}, {Class: model.INF, Name: "EUCPI"},
	})
	require.NoError(t, err)
	m, err := model.NewCrossAssetModel([]*model.IrLgm1f{ir}, nil, nil, []*model.InfDk{inf}, nil, corr, model.SalvageNone)
	require.NoError(t, err)
	return m
}

func TestCpiCapDeterministicLimit(t *testing.T) {
	m := inflationModel(t, 0, 0, 0.02, 0)
	T := 5.0

	cap, err := NewCpiCapFloor(m, 0, Cap, T, 0.01, market.NewQuote(0))
	require.NoError(t, err)
	v, err := cap.ModelValue()
	require.NoError(t, err)

	// Everything deterministic: the cap pays (G(T) - K) discounted.
	want := math.Exp(-0.02*T) * (math.Pow(1.02, T) - math.Pow(1.01, T))
	assert.InDelta(t, want, v, 1e-12)

	otm, err := NewCpiCapFloor(m, 0, Cap, T, 0.03, market.NewQuote(0))
	require.NoError(t, err)
	v, err = otm.ModelValue()
	require.NoError(t, err)
	assert.InDelta(t, 0, v, 1e-14)
}

func TestCpiIndexedZeroBondConsistency(t *testing.T) {
	// The priced discounted index ratio must collapse to the curve product
	// P(0,T) G(T) for any parameters, correlated rates included.
	for _, rho := range []float64{0, 0.4, -0.35} {
		m := inflationModel(t, 0.008, 0.006, 0.03, rho)
		T := 7.0
		inst, err := NewCpiCapFloor(m, 0, Cap, T, 0.02, market.NewQuote(0))
		require.NoError(t, err)

		want := math.Exp(-0.02*T) * math.Pow(1.02, T)
		assert.InDelta(t, want, inst.IndexedZeroBond(), want*1e-9, "rho %v", rho)
	}
}

func TestCpiCapFloorParity(t *testing.T) {
	m := inflationModel(t, 0.01, 0.005, 0.03, 0.3)
	T, rate := 5.0, 0.02

	cap, err := NewCpiCapFloor(m, 0, Cap, T, rate, market.NewQuote(0))
	require.NoError(t, err)
	floor, err := NewCpiCapFloor(m, 0, Floor, T, rate, market.NewQuote(0))
	require.NoError(t, err)

	cv, err := cap.ModelValue()
	require.NoError(t, err)
	fv, err := floor.ModelValue()
	require.NoError(t, err)
	assert.Greater(t, cv, 0.0)
	assert.Greater(t, fv, 0.0)

	// cap - floor = discounted indexed bond minus K times the nominal bond.
	want := cap.IndexedZeroBond() - cap.Strike()*math.Exp(-0.02*T)
	assert.InDelta(t, want, cv-fv, 1e-10)
}

func TestCpiCapMonotoneInStrike(t *testing.T) {
	m := inflationModel(t, 0.005, 0.004, 0.03, 0)
	prev := math.Inf(1)
	for _, rate := range []float64{0.00, 0.01, 0.02, 0.03, 0.04} {
		cap, err := NewCpiCapFloor(m, 0, Cap, 5, rate, market.NewQuote(0))
		require.NoError(t, err)
		v, err := cap.ModelValue()
		require.NoError(t, err)
		assert.Less(t, v, prev)
		prev = v
	}
}

func TestCpiCapBootstrapCalibration(t *testing.T) {
	// Generate target premiums from a reference parameter profile, then ask
	// the bootstrap to recover it on a fresh model.
	ref := inflationModel(t, 0.005, 0.006, 0.03, 0.2)
	expiries := []float64{2, 4, 6}
	premiums := make([]float64, len(expiries))
	for i, T := range expiries {
		cap, err := NewCpiCapFloor(ref, 0, Cap, T, 0.02, market.NewQuote(0))
		require.NoError(t, err)
		premiums[i], err = cap.ModelValue()
		require.NoError(t, err)
	}

	// Fresh model with one alpha segment per basket expiry, seeded low.
	ir, err := model.NewIrLgm1f("EUR", mathutil.NewConstant(0.005), mathutil.NewConstant(0.01), flatYC(0.02))
	require.NoError(t, err)
	alpha, err := mathutil.NewPiecewiseConstant([]float64{2, 4}, []float64{0.004, 0.004, 0.004})
	require.NoError(t, err)
	curve := market.NewHandle[market.InflationCurve](market.NewFlatZeroInflation(100, market.NewQuote(0.02)))
	inf, err := model.NewInfDk("EUCPI", "EUR", alpha, mathutil.NewConstant(0.03), curve)
	require.NoError(t, err)
	cb := model.NewCorrelationBuilder()
	require.NoError(t, cb.SetValue(
		model.FactorID{Class: model.INF, Name: "EUCPI"},
		model.FactorID{Class: model.IR, Name: "EUR"}, 0.2))
	corr, err := cb.Matrix([]model.FactorID{
		{Class: model.IR, Name: "EUR"}, {Class: model.INF, Name: "EUCPI"},
	})
	require.NoError(t, err)
	m, err := model.NewCrossAssetModel([]*model.IrLgm1f{ir}, nil, nil, []*model.InfDk{inf}, nil, corr, model.SalvageNone)
	require.NoError(t, err)

	basket := make([]model.CalibrationInstrument, len(expiries))
	for i, T := range expiries {
		cap, err := NewCpiCapFloor(m, 0, Cap, T, 0.02, market.NewQuote(premiums[i]))
		require.NoError(t, err)
		basket[i] = cap
	}

	errs, err := m.CalibrateInfDkVolatilitiesIterative(0, basket)
	require.NoError(t, err)
	for i, e := range errs {
		assert.InDelta(t, 0, e.Residual, 1e-12, "instrument %d", i)
	}
	for i, v := range m.Inf(0).AlphaCurve().Values() {
		assert.InDelta(t, 0.006, v, 1e-7, "segment %d", i)
	}
}

func TestCpiCapFloorValidation(t *testing.T) {
	m := inflationModel(t, 0.005, 0.004, 0.03, 0)
	q := market.NewQuote(0.01)

	_, err := NewCpiCapFloor(nil, 0, Cap, 1, 0.02, q)
	assert.Error(t, err)
	_, err = NewCpiCapFloor(m, 1, Cap, 1, 0.02, q)
	assert.Error(t, err)
	_, err = NewCpiCapFloor(m, 0, Cap, 0, 0.02, q)
	assert.Error(t, err)
	_, err = NewCpiCapFloor(m, 0, Cap, 1, -1.5, q)
	assert.Error(t, err)
	_, err = NewCpiCapFloor(m, 0, Cap, 1, 0.02, nil)
	assert.Error(t, err)
}
