package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/model"
)

func TestEffectiveMode(t *testing.T) {
	pw, err := mathutil.NewPiecewiseConstant([]float64{1, 2}, []float64{0.01, 0.01, 0.01})
	require.NoError(t, err)

	mode, fellBack := effectiveMode(CalibrationBootstrap, pw, 3)
	assert.Equal(t, CalibrationBootstrap, mode)
	assert.False(t, fellBack)

	mode, fellBack = effectiveMode(CalibrationBootstrap, mathutil.NewConstant(0.01), 3)
	assert.Equal(t, CalibrationGlobal, mode)
	assert.True(t, fellBack)

	mode, fellBack = effectiveMode(CalibrationGlobal, mathutil.NewConstant(0.01), 3)
	assert.Equal(t, CalibrationGlobal, mode)
	assert.False(t, fellBack)
}

func TestParamCurve(t *testing.T) {
	c, err := paramCurve(ParamConstant, []float64{1, 2, 3}, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 1, c.NumSegments())

	p, err := paramCurve(ParamPiecewise, []float64{1, 2, 3}, 0.01)
	require.NoError(t, err)
	assert.Equal(t, 3, p.NumSegments())
	assert.Equal(t, 0.01, p.Value(0.5))
	assert.Equal(t, 0.01, p.Value(10))

	single, err := paramCurve(ParamPiecewise, []float64{5}, 0.02)
	require.NoError(t, err)
	assert.Equal(t, 1, single.NumSegments())
}

func TestCheckTolerance(t *testing.T) {
	errs := []model.CalibrationError{
		{Expiry: 1, Residual: 1e-12},
		{Expiry: 2, Residual: -3e-9},
	}
	require.NoError(t, checkTolerance("ir", "IR:EUR", errs, 1e-8))

	err := checkTolerance("ir", "IR:EUR", errs, 1e-10)
	require.Error(t, err)
	var tolErr *CalibrationToleranceExceeded
	require.ErrorAs(t, err, &tolErr)
	assert.Equal(t, "IR:EUR", tolErr.Factor)
	assert.Equal(t, 3e-9, tolErr.Residual)
}

func TestRegistryOrderAndStaleness(t *testing.T) {
	r := NewRegistry()
	a := &stubBuilder{key: "IR:EUR"}
	b := &stubBuilder{key: "FX:USD", stale: true}
	r.Add(a)
	r.Add(b)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "IR:EUR", all[0].Key())
	assert.Equal(t, "FX:USD", all[1].Key())

	got, ok := r.Get("FX:USD")
	require.True(t, ok)
	assert.Same(t, b, got)

	assert.Equal(t, []string{"FX:USD"}, r.Stale())

	// Re-adding keeps the position.
	a2 := &stubBuilder{key: "IR:EUR", stale: true}
	r.Add(a2)
	all = r.All()
	require.Len(t, all, 2)
	assert.Same(t, a2, all[0])
}

type stubBuilder struct {
	key   string
	stale bool
}

func (s *stubBuilder) Key() string                                { return s.key }
func (s *stubBuilder) RequiresRecalibration() bool                { return s.stale }
func (s *stubBuilder) Refresh()                                   { s.stale = false }
func (s *stubBuilder) CalibrationErrors() []model.CalibrationError { return nil }
