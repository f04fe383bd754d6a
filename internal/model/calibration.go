package model

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/optimize"
)

// CalibrationInstrument is the contract a calibration basket entry must
// satisfy: a market value, a model value computed against this model through
// an attached pricing engine, and an expiry for bootstrap ordering.
type CalibrationInstrument interface {
	Expiry() float64
	MarketValue() (float64, error)
	ModelValue() (float64, error)
}

// CalibrationError records one basket instrument's post-calibration residual.
type CalibrationError struct {
	Expiry      float64 `json:"expiry"`
	MarketValue float64 `json:"market_value"`
	ModelValue  float64 `json:"model_value"`
	Residual    float64 `json:"residual"`
}

// BasketErrors prices the basket and returns per-instrument residuals.
func BasketErrors(basket []CalibrationInstrument) ([]CalibrationError, error) {
	out := make([]CalibrationError, len(basket))
	for i, inst := range basket {
		mkt, err := inst.MarketValue()
		if err != nil {
			return nil, fmt.Errorf("basket instrument %d market value: %w", i, err)
		}
		mdl, err := inst.ModelValue()
		if err != nil {
			return nil, fmt.Errorf("basket instrument %d model value: %w", i, err)
		}
		out[i] = CalibrationError{Expiry: inst.Expiry(), MarketValue: mkt, ModelValue: mdl, Residual: mdl - mkt}
	}
	return out, nil
}

// PreconditionViolation reports a bootstrap contract breach: an empty
// basket, a segment count mismatch, or out of order expiries. Indicates a
// configuration or programming error upstream, never a market problem.
type PreconditionViolation struct {
	Reason string
}

func (e *PreconditionViolation) Error() string {
	return "precondition violation: " + e.Reason
}

func preconditionf(format string, args ...interface{}) error {
	return &PreconditionViolation{Reason: fmt.Sprintf(format, args...)}
}

// checkBootstrapPreconditions enforces the bootstrap contract: one curve
// segment per instrument and strictly increasing expiries.
func checkBootstrapPreconditions(curve *mathutil.PiecewiseConstant, basket []CalibrationInstrument) error {
	if len(basket) == 0 {
		return preconditionf("bootstrap calibration: empty basket")
	}
	if curve.NumSegments() != len(basket) {
		return preconditionf("bootstrap calibration: %d curve segments for %d instruments",
			curve.NumSegments(), len(basket))
	}
	prev := math.Inf(-1)
	for i, inst := range basket {
		e := inst.Expiry()
		if e <= prev {
			return preconditionf("bootstrap calibration: basket not in increasing expiry order at instrument %d", i)
		}
		prev = e
	}
	return nil
}

// calibrateIterative bootstraps one parameter curve: for each instrument in
// expiry order, the matching curve segment is solved so the instrument's
// model value equals its market value. positive restricts the search to
// positive parameter values (volatilities).
func (m *CrossAssetModel) calibrateIterative(curve *mathutil.PiecewiseConstant, basket []CalibrationInstrument, positive bool) ([]CalibrationError, error) {
	if err := checkBootstrapPreconditions(curve, basket); err != nil {
		return nil, err
	}

	for k, inst := range basket {
		mkt, err := inst.MarketValue()
		if err != nil {
			return nil, fmt.Errorf("bootstrap calibration: instrument %d market value: %w", k, err)
		}

		var evalErr error
		f := func(v float64) float64 {
			curve.SetValue(k, v)
			mdl, err := inst.ModelValue()
			if err != nil && evalErr == nil {
				evalErr = err
			}
			return mdl - mkt
		}

		var a, b float64
		if positive {
			a, b, err = bracketPositive(f, curve.Values()[k])
		} else {
			g := curve.Values()[k]
			a, b, err = mathutil.ExpandBracket(f, g-0.5, g+0.5, 60)
		}
		if err != nil {
			return nil, fmt.Errorf("bootstrap calibration: instrument %d (expiry %v): %w", k, inst.Expiry(), err)
		}
		if evalErr != nil {
			return nil, fmt.Errorf("bootstrap calibration: instrument %d model value: %w", k, evalErr)
		}

		root, err := mathutil.Brent(f, a, b, 1e-14, 200)
		if err != nil {
			return nil, fmt.Errorf("bootstrap calibration: instrument %d (expiry %v): %w", k, inst.Expiry(), err)
		}
		curve.SetValue(k, root)
	}

	m.Update()
	return BasketErrors(basket)
}

// bracketPositive finds a sign-changing interval for a positive parameter,
// doubling the upper end from the seeded guess.
func bracketPositive(f func(float64) float64, guess float64) (float64, float64, error) {
	lo := 1e-10
	hi := math.Max(2*math.Abs(guess), 0.05)
	flo := f(lo)
	for i := 0; i < 40; i++ {
		if flo*f(hi) <= 0 {
			return lo, hi, nil
		}
		hi *= 2
	}
	return 0, 0, fmt.Errorf("no bracket for positive parameter from guess %v", guess)
}

// GlobalCalibrationTarget couples one parameter curve with the transform
// mapping optimizer space to parameter space.
type GlobalCalibrationTarget struct {
	Curve *mathutil.PiecewiseConstant
	// Positive maps the optimizer variable x to the parameter x*x, keeping
	// volatilities nonnegative. When false the parameter is used as is.
	Positive bool
}

// calibrateGlobal jointly fits all target curves to the basket by
// least squares using Levenberg-Marquardt. Non-convergence is not an error:
// the reached parameters stay installed and the residuals are returned for
// the caller to judge.
func (m *CrossAssetModel) calibrateGlobal(targets []GlobalCalibrationTarget, basket []CalibrationInstrument, opts optimize.Options) (optimize.Result, []CalibrationError, error) {
	if len(targets) == 0 || len(basket) == 0 {
		return optimize.Result{}, nil, fmt.Errorf("global calibration: empty targets or basket")
	}

	markets := make([]float64, len(basket))
	for i, inst := range basket {
		mkt, err := inst.MarketValue()
		if err != nil {
			return optimize.Result{}, nil, fmt.Errorf("global calibration: instrument %d market value: %w", i, err)
		}
		markets[i] = mkt
	}

	var x0 []float64
	for _, t := range targets {
		for _, v := range t.Curve.Values() {
			if t.Positive {
				x0 = append(x0, math.Sqrt(math.Abs(v)))
			} else {
				x0 = append(x0, v)
			}
		}
	}

	install := func(x []float64) {
		off := 0
		for _, t := range targets {
			vals := t.Curve.Values()
			for i := range vals {
				v := x[off]
				if t.Positive {
					v = v * v
				}
				t.Curve.SetValue(i, v)
				off++
			}
		}
	}

	var evalErr error
	problem := optimize.Problem{F: func(x []float64) []float64 {
		install(x)
		r := make([]float64, len(basket))
		for i, inst := range basket {
			mdl, err := inst.ModelValue()
			if err != nil {
				if evalErr == nil {
					evalErr = err
				}
				r[i] = 1e8
				continue
			}
			r[i] = mdl - markets[i]
		}
		return r
	}}

	result, err := optimize.LevenbergMarquardt(problem, x0, opts)
	if err != nil {
		return optimize.Result{}, nil, fmt.Errorf("global calibration: %w", err)
	}
	if evalErr != nil {
		return optimize.Result{}, nil, fmt.Errorf("global calibration: model value: %w", evalErr)
	}
	install(result.X)
	m.Update()

	errs, err := BasketErrors(basket)
	if err != nil {
		return optimize.Result{}, nil, err
	}
	return result, errs, nil
}

// CalibrateIrLgm1fVolatilitiesIterative bootstraps currency i's LGM
// volatility curve against the basket.
func (m *CrossAssetModel) CalibrateIrLgm1fVolatilitiesIterative(i int, basket []CalibrationInstrument) ([]CalibrationError, error) {
	return m.calibrateIterative(m.irs[i].AlphaCurve(), basket, true)
}

// CalibrateIrLgm1fVolatilitiesGlobal jointly fits currency i's LGM volatility
// curve against the basket.
func (m *CrossAssetModel) CalibrateIrLgm1fVolatilitiesGlobal(i int, basket []CalibrationInstrument, opts optimize.Options) (optimize.Result, []CalibrationError, error) {
	targets := []GlobalCalibrationTarget{{Curve: m.irs[i].AlphaCurve(), Positive: true}}
	return m.calibrateGlobal(targets, basket, opts)
}

// bsSigmaCurve resolves the Black-Scholes volatility curve of an FX or EQ factor.
func (m *CrossAssetModel) bsSigmaCurve(class AssetClass, i int) (*mathutil.PiecewiseConstant, error) {
	switch class {
	case FX:
		return m.fxs[i].SigmaCurve(), nil
	case EQ:
		return m.eqs[i].SigmaCurve(), nil
	default:
		return nil, fmt.Errorf("calibration: %s is not a Black-Scholes factor class", class)
	}
}

// CalibrateBsVolatilitiesIterative bootstraps the volatility curve of FX or
// EQ factor i against the basket.
func (m *CrossAssetModel) CalibrateBsVolatilitiesIterative(class AssetClass, i int, basket []CalibrationInstrument) ([]CalibrationError, error) {
	curve, err := m.bsSigmaCurve(class, i)
	if err != nil {
		return nil, err
	}
	return m.calibrateIterative(curve, basket, true)
}

// CalibrateBsVolatilitiesGlobal jointly fits the volatility curve of FX or EQ
// factor i against the basket.
func (m *CrossAssetModel) CalibrateBsVolatilitiesGlobal(class AssetClass, i int, basket []CalibrationInstrument, opts optimize.Options) (optimize.Result, []CalibrationError, error) {
	curve, err := m.bsSigmaCurve(class, i)
	if err != nil {
		return optimize.Result{}, nil, err
	}
	return m.calibrateGlobal([]GlobalCalibrationTarget{{Curve: curve, Positive: true}}, basket, opts)
}

// CalibrateInfDkVolatilitiesIterative bootstraps inflation block i's alpha
// curve against the basket.
func (m *CrossAssetModel) CalibrateInfDkVolatilitiesIterative(i int, basket []CalibrationInstrument) ([]CalibrationError, error) {
	return m.calibrateIterative(m.infs[i].AlphaCurve(), basket, true)
}

// CalibrateInfDkVolatilitiesGlobal jointly fits inflation block i's alpha
// curve against the basket.
func (m *CrossAssetModel) CalibrateInfDkVolatilitiesGlobal(i int, basket []CalibrationInstrument, opts optimize.Options) (optimize.Result, []CalibrationError, error) {
	targets := []GlobalCalibrationTarget{{Curve: m.infs[i].AlphaCurve(), Positive: true}}
	return m.calibrateGlobal(targets, basket, opts)
}

// CalibrateInfDkReversionsIterative bootstraps inflation block i's reversion
// curve against the basket. Reversions may take either sign.
func (m *CrossAssetModel) CalibrateInfDkReversionsIterative(i int, basket []CalibrationInstrument) ([]CalibrationError, error) {
	return m.calibrateIterative(m.infs[i].KappaCurve(), basket, false)
}

// CalibrateInfDkReversionsGlobal jointly fits inflation block i's reversion
// curve against the basket.
func (m *CrossAssetModel) CalibrateInfDkReversionsGlobal(i int, basket []CalibrationInstrument, opts optimize.Options) (optimize.Result, []CalibrationError, error) {
	targets := []GlobalCalibrationTarget{{Curve: m.infs[i].KappaCurve(), Positive: false}}
	return m.calibrateGlobal(targets, basket, opts)
}

// CalibrateInfDkJoint fits inflation block i's alpha and reversion curves in
// one optimizer call.
func (m *CrossAssetModel) CalibrateInfDkJoint(i int, basket []CalibrationInstrument, opts optimize.Options) (optimize.Result, []CalibrationError, error) {
	targets := []GlobalCalibrationTarget{
		{Curve: m.infs[i].AlphaCurve(), Positive: true},
		{Curve: m.infs[i].KappaCurve(), Positive: false},
	}
	return m.calibrateGlobal(targets, basket, opts)
}
