package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
)

func TestExactStepMatchesMoments(t *testing.T) {
	opt := defaultFixtureOptions()
	opt.withEq, opt.withInf, opt.withCr = true, true, true
	opt.corrs = func(b *CorrelationBuilder) {
		require.NoError(t, b.SetValue(FactorID{IR, "EUR"}, FactorID{IR, "USD"}, 0.3))
		require.NoError(t, b.SetValue(FactorID{FX, "USD"}, FactorID{IR, "EUR"}, -0.2))
		require.NoError(t, b.SetValue(FactorID{EQ, "SPX"}, FactorID{IR, "USD"}, 0.25))
	}
	m := newFixtureModel(t, opt)

	sp, err := m.StateProcess(Exact)
	require.NoError(t, err)
	assert.Equal(t, m.StateDim(), sp.Dimension())
	assert.Equal(t, m.StateDim(), sp.NormalDim())

	t0, dt := 0.5, 2.0
	step, err := sp.PrepareStep(t0, dt)
	require.NoError(t, err)

	x0 := sp.InitialState()
	x0[m.StateIndex(IR, 0)] = 0.003
	x0[m.StateIndex(IR, 1)] = -0.001

	// With zero draws the step lands on the conditional expectation.
	got := step.Apply(x0, make([]float64, sp.NormalDim()))
	want := m.Expectation(t0, x0, dt)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12, "state %d", i)
	}

	// The noise factor reproduces the transition covariance.
	var prod mat.Dense
	prod.Mul(step.noise, step.noise.T())
	cov := m.Covariance(t0, dt)
	n := m.StateDim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, cov.At(i, j), prod.At(i, j), 1e-12)
		}
	}
}

func TestEulerStepSmallInterval(t *testing.T) {
	opt := defaultFixtureOptions()
	opt.withInf = true
	opt.corrs = func(b *CorrelationBuilder) {
		require.NoError(t, b.SetValue(FactorID{IR, "EUR"}, FactorID{IR, "USD"}, 0.4))
		require.NoError(t, b.SetValue(FactorID{FX, "USD"}, FactorID{IR, "USD"}, -0.3))
		require.NoError(t, b.SetValue(FactorID{INF, "EUCPI"}, FactorID{IR, "EUR"}, 0.2))
	}
	m := newFixtureModel(t, opt)

	spEuler, err := m.StateProcess(Euler)
	require.NoError(t, err)
	assert.Equal(t, m.BrownianDim(), spEuler.NormalDim())

	t0, dt := 0.5, 1e-4
	eu, err := spEuler.PrepareStep(t0, dt)
	require.NoError(t, err)

	x0 := spEuler.InitialState()
	x0[m.StateIndex(IR, 0)] = 0.002

	got := eu.Apply(x0, make([]float64, spEuler.NormalDim()))
	want := m.Expectation(t0, x0, dt)
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-9, "state %d", i)
	}

	var prod mat.Dense
	prod.Mul(eu.noise, eu.noise.T())
	cov := m.Covariance(t0, dt)
	n := m.StateDim()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			assert.InDelta(t, cov.At(i, j), prod.At(i, j), 1e-9)
		}
	}
}

func TestExactStateProcessMatchesLgm(t *testing.T) {
	alpha, kappa, rate := 0.0125, 0.02, 0.03
	p := constIr(t, "EUR", alpha, kappa, rate)
	lgm := NewLgm(p)

	corr := mat.NewSymDense(1, []float64{1})
	m, err := NewCrossAssetModel([]*IrLgm1f{p}, nil, nil, nil, nil, corr, SalvageNone)
	require.NoError(t, err)

	sp, err := m.StateProcess(Exact)
	require.NoError(t, err)

	draws := []float64{0.3, -1.7, 0.05, 2.1}
	zCam := 0.0
	zLgm := 0.0
	t0 := 0.0
	for _, n := range draws {
		next, err := sp.Evolve(t0, []float64{zCam}, 0.5, []float64{n})
		require.NoError(t, err)
		zCam = next[0]
		zLgm = lgm.Evolve(t0, zLgm, 0.5, n)
		t0 += 0.5
		require.InDelta(t, zLgm, zCam, 1e-14)
	}

	// Both views price the same bond off the shared parametrization.
	assert.InDelta(t, lgm.DiscountBond(t0, t0+5, zCam), m.DiscountBond(0, t0, t0+5, zCam), 1e-13)
	assert.InDelta(t, lgm.Numeraire(t0, zCam), m.Numeraire(t0, zCam), 1e-13)
}

func TestInitialState(t *testing.T) {
	opt := defaultFixtureOptions()
	opt.withEq = true
	m := newFixtureModel(t, opt)

	sp, err := m.StateProcess(Exact)
	require.NoError(t, err)

	x0 := sp.InitialState()
	assert.Equal(t, 0.0, x0[m.StateIndex(IR, 0)])
	assert.InDelta(t, math.Log(0.90), x0[m.StateIndex(FX, 0)], 1e-15)
	assert.InDelta(t, math.Log(4000.0), x0[m.StateIndex(EQ, 0)], 1e-15)
}

func TestPrepareStepRejectsNonPositiveDt(t *testing.T) {
	m := newFixtureModel(t, defaultFixtureOptions())
	sp, err := m.StateProcess(Exact)
	require.NoError(t, err)
	_, err = sp.PrepareStep(0, 0)
	assert.Error(t, err)
	_, err = sp.PrepareStep(0, -1)
	assert.Error(t, err)
}

func nonPsdThreeFactorModel(t *testing.T, salvage SalvageMode) *CrossAssetModel {
	t.Helper()
	eur := constIr(t, "EUR", 0.01, 0.01, 0.02)
	usd := constIr(t, "USD", 0.01, 0.02, 0.05)
	fx, err := NewFxBs("USD", mathutil.NewConstant(0.2), market.NewQuote(0.9))
	require.NoError(t, err)

	// Pairwise -0.9 on three factors has eigenvalue 1 - 1.8 < 0.
	corr := mat.NewSymDense(3, []float64{
		1, -0.9, -0.9,
		-0.9, 1, -0.9,
		-0.9, -0.9, 1,
	})
	m, err := NewCrossAssetModel([]*IrLgm1f{eur, usd}, []*FxBs{fx}, nil, nil, nil, corr, salvage)
	require.NoError(t, err)
	return m
}

func TestSalvageNoneRejectsNonPsdCorrelation(t *testing.T) {
	m := nonPsdThreeFactorModel(t, SalvageNone)
	_, err := m.StateProcess(Exact)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive semi-definite")
}

func TestSalvageEigenRepairsCorrelation(t *testing.T) {
	m := nonPsdThreeFactorModel(t, SalvageEigen)
	gen := m.Generation()

	sp, err := m.StateProcess(Exact)
	require.NoError(t, err)
	assert.Greater(t, m.Generation(), gen)

	fixed := m.CorrelationMatrix()
	var eig mat.EigenSym
	require.True(t, eig.Factorize(fixed, false))
	for _, v := range eig.Values(nil) {
		assert.GreaterOrEqual(t, v, -1e-12)
	}
	for i := 0; i < 3; i++ {
		assert.InDelta(t, 1.0, fixed.At(i, i), 1e-12)
	}

	// The repaired matrix factors cleanly.
	_, err = sp.PrepareStep(0, 1)
	assert.NoError(t, err)
}
