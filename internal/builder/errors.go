// Package builder assembles and calibrates the cross asset model: one
// sub-builder per asset class factor, a correlation matrix from configured
// pairwise entries, and an orchestrator that runs the staged IR, FX, EQ, INF
// calibration with per-stage discount curve relinking.
package builder

import (
	"fmt"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
)

// ConfigurationError reports a structural mismatch in the model
// configuration: currency count mismatches, unknown factor references,
// out of range values. Always fatal.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

func configErrorf(format string, args ...interface{}) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// MissingMarketDataError reports a curve or quote absent from the market for
// the requested configuration. Fatal at build time.
type MissingMarketDataError struct {
	Err *market.NotFoundError
}

func (e *MissingMarketDataError) Error() string {
	return "missing market data: " + e.Err.Error()
}

func (e *MissingMarketDataError) Unwrap() error { return e.Err }

// wrapMarketErr converts a market lookup failure into the builder taxonomy.
func wrapMarketErr(err error) error {
	if err == nil {
		return nil
	}
	if nf, ok := err.(*market.NotFoundError); ok {
		return &MissingMarketDataError{Err: nf}
	}
	return err
}

// CalibrationToleranceExceeded reports a bootstrap residual above the
// configured tolerance. Fatal: it signals inconsistent market inputs, not a
// recoverable numerical problem.
type CalibrationToleranceExceeded struct {
	Stage     string
	Factor    string
	Residual  float64
	Tolerance float64
}

func (e *CalibrationToleranceExceeded) Error() string {
	return fmt.Sprintf("calibration tolerance exceeded: stage %s factor %s residual %g tolerance %g",
		e.Stage, e.Factor, e.Residual, e.Tolerance)
}

// PreconditionViolation is the model layer's bootstrap contract error,
// re-exported so callers can match the full taxonomy from one package.
type PreconditionViolation = model.PreconditionViolation
