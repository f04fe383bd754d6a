package builder

import (
	"fmt"

	"github.com/wonny/crossasset/internal/engines"
	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/internal/optimize"
	"github.com/wonny/crossasset/pkg/logger"
)

// EqBuilder builds one equity Black-Scholes parametrization, calibrated by
// the orchestrator against the joint model.
type EqBuilder struct {
	cfg      EqConfig
	mkt      *market.Market
	log      *logger.Logger
	param    *model.EqBs
	dividend *market.Handle[market.YieldCurve]
	vol      *market.Handle[market.VolCurve]
	errs     []model.CalibrationError
	watch    watchList
}

// NewEqBuilder seeds the parametrization from the market equity spot and
// dividend curve.
func NewEqBuilder(mkt *market.Market, cfg EqConfig, log *logger.Logger) (*EqBuilder, error) {
	spot, err := mkt.EquitySpot(cfg.Name, "")
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	div, err := mkt.DividendCurve(cfg.Name, "")
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	sigma, err := paramCurve(cfg.ParamType, cfg.OptionExpiries, cfg.InitialSigma)
	if err != nil {
		return nil, err
	}
	dividend := market.NewHandle[market.YieldCurve](div)
	param, err := model.NewEqBs(cfg.Name, cfg.Currency, sigma, spot, dividend)
	if err != nil {
		return nil, configErrorf("eq %s: %v", cfg.Name, err)
	}

	b := &EqBuilder{cfg: cfg, mkt: mkt, log: log, param: param, dividend: dividend}
	b.watch.watch(spot)
	b.watch.watch(dividend)

	if cfg.Calibration != CalibrationNone {
		ev, err := mkt.EquityVol(cfg.Name, "")
		if err != nil {
			return nil, wrapMarketErr(err)
		}
		b.vol = market.NewHandle[market.VolCurve](ev)
		b.watch.watch(b.vol)
	}
	return b, nil
}

// Key identifies the factor.
func (b *EqBuilder) Key() string { return factorKey(model.EQ, b.cfg.Name) }

// Parametrization returns the equity parametrization.
func (b *EqBuilder) Parametrization() *model.EqBs { return b.param }

// RequiresRecalibration reports market data staleness.
func (b *EqBuilder) RequiresRecalibration() bool { return b.watch.stale() }

// Refresh records the current watched versions as the built state.
func (b *EqBuilder) Refresh() { b.watch.snapshot() }

// CalibrationErrors returns the last basket residuals.
func (b *EqBuilder) CalibrationErrors() []model.CalibrationError { return b.errs }

// basket builds at the money forward equity options against the joint model.
func (b *EqBuilder) basket(m *model.CrossAssetModel, idx int) ([]model.CalibrationInstrument, error) {
	basket := make([]model.CalibrationInstrument, 0, len(b.cfg.OptionExpiries))
	for _, expiry := range b.cfg.OptionExpiries {
		probe, err := engines.NewEqOption(m, idx, engines.Call, expiry, 1, b.vol)
		if err != nil {
			return nil, configErrorf("eq %s: %v", b.Key(), err)
		}
		opt, err := engines.NewEqOption(m, idx, engines.Call, expiry, probe.Forward(), b.vol)
		if err != nil {
			return nil, configErrorf("eq %s: %v", b.Key(), err)
		}
		basket = append(basket, opt)
	}
	return basket, nil
}

// Calibrate fits the equity sigma curve against the joint model.
func (b *EqBuilder) Calibrate(m *model.CrossAssetModel, idx int, tolerance float64) (stageOutcome, error) {
	if b.cfg.Calibration == CalibrationNone {
		return stageOutcome{Mode: CalibrationNone, Converged: true}, nil
	}

	basket, err := b.basket(m, idx)
	if err != nil {
		return stageOutcome{}, err
	}

	mode, fellBack := effectiveMode(b.cfg.Calibration, b.param.SigmaCurve(), len(basket))
	if fellBack {
		b.log.WithField("factor", b.Key()).
			Warn("bootstrap calibration requested for a constant parameter curve, using global fit")
	}

	out := stageOutcome{Mode: mode, Converged: true}
	switch mode {
	case CalibrationBootstrap:
		errs, err := m.CalibrateBsVolatilitiesIterative(model.EQ, idx, basket)
		if err != nil {
			return stageOutcome{}, fmt.Errorf("eq %s calibration: %w", b.Key(), err)
		}
		if err := checkTolerance("eq", b.Key(), errs, tolerance); err != nil {
			return stageOutcome{}, err
		}
		out.Errors = errs
		out.ResidualNorm = maxAbsResidual(errs)
	case CalibrationGlobal:
		result, errs, err := m.CalibrateBsVolatilitiesGlobal(model.EQ, idx, basket, optimize.DefaultOptions())
		if err != nil {
			return stageOutcome{}, fmt.Errorf("eq %s calibration: %w", b.Key(), err)
		}
		if !result.Converged {
			b.log.WithField("factor", b.Key()).
				WithField("residual", result.ResidualNorm).
				Warn("global calibration stopped without convergence, keeping reached parameters")
		}
		out.Errors = errs
		out.ResidualNorm = result.ResidualNorm
		out.Converged = result.Converged
	}

	b.errs = out.Errors
	return out, nil
}
