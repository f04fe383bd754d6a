package builder

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/model"
)

// SubBuilder is the capability set shared by the per-asset-class builders,
// used by the registry and the orchestrator's staleness check.
type SubBuilder interface {
	// Key identifies the factor, formatted CLASS:NAME.
	Key() string
	// RequiresRecalibration reports whether any watched market observable
	// changed since the last successful build.
	RequiresRecalibration() bool
	// Refresh records the current versions of the watched observables as
	// the built state. The orchestrator calls it once per build, after the
	// final relink, so stage relinks do not count as staleness.
	Refresh()
	// CalibrationErrors returns the residuals of the last calibration pass.
	CalibrationErrors() []model.CalibrationError
}

// stageOutcome carries one factor's calibration result into the report.
type stageOutcome struct {
	Mode         CalibrationType
	Errors       []model.CalibrationError
	ResidualNorm float64
	Converged    bool
}

// maxAbsResidual returns the largest absolute basket residual.
func maxAbsResidual(errs []model.CalibrationError) float64 {
	m := 0.0
	for _, e := range errs {
		if r := math.Abs(e.Residual); r > m {
			m = r
		}
	}
	return m
}

// effectiveMode resolves the requested calibration type against the
// bootstrap preconditions: bootstrap needs a piecewise curve with one
// segment per basket instrument, otherwise the stage falls back to a global
// fit. The fallback is reported to the caller for logging.
func effectiveMode(requested CalibrationType, curve *mathutil.PiecewiseConstant, basketSize int) (CalibrationType, bool) {
	if requested != CalibrationBootstrap {
		return requested, false
	}
	if curve.NumSegments() != basketSize {
		return CalibrationGlobal, true
	}
	return CalibrationBootstrap, false
}

// paramCurve builds the initial parameter curve: piecewise with breakpoints
// at all but the last basket expiry, or a single constant segment.
func paramCurve(pt ParamType, expiries []float64, initial float64) (*mathutil.PiecewiseConstant, error) {
	if pt != ParamPiecewise || len(expiries) < 2 {
		return mathutil.NewConstant(initial), nil
	}
	times := expiries[:len(expiries)-1]
	values := make([]float64, len(expiries))
	for i := range values {
		values[i] = initial
	}
	p, err := mathutil.NewPiecewiseConstant(times, values)
	if err != nil {
		return nil, configErrorf("parameter curve: %v", err)
	}
	return p, nil
}

// checkTolerance enforces the bootstrap contract that every instrument is
// matched essentially exactly.
func checkTolerance(stage, factor string, errs []model.CalibrationError, tolerance float64) error {
	if r := maxAbsResidual(errs); r > tolerance {
		return &CalibrationToleranceExceeded{Stage: stage, Factor: factor, Residual: r, Tolerance: tolerance}
	}
	return nil
}

func factorKey(class model.AssetClass, name string) string {
	return fmt.Sprintf("%s:%s", class, name)
}
