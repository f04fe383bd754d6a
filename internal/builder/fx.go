package builder

import (
	"fmt"

	"github.com/wonny/crossasset/internal/engines"
	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/internal/optimize"
	"github.com/wonny/crossasset/pkg/logger"
)

// FxBuilder builds one FX Black-Scholes parametrization. Unlike the IR
// builder it does not self-calibrate: FX option values depend on the already
// calibrated interest rate legs, so the orchestrator calibrates it against
// the joint model.
type FxBuilder struct {
	cfg      FxConfig
	domestic string
	mkt      *market.Market
	log      *logger.Logger
	param    *model.FxBs
	vol      *market.Handle[market.VolCurve]
	errs     []model.CalibrationError
	watch    watchList
}

// NewFxBuilder seeds the parametrization from the market FX spot and
// configuration. The spot is keyed "<FOREIGN><DOMESTIC>".
func NewFxBuilder(mkt *market.Market, cfg FxConfig, domestic string, log *logger.Logger) (*FxBuilder, error) {
	pair := cfg.ForeignCurrency + domestic
	spot, err := mkt.FxSpot(pair, "")
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	sigma, err := paramCurve(cfg.ParamType, cfg.OptionExpiries, cfg.InitialSigma)
	if err != nil {
		return nil, err
	}
	param, err := model.NewFxBs(cfg.ForeignCurrency, sigma, spot)
	if err != nil {
		return nil, configErrorf("fx %s: %v", pair, err)
	}

	b := &FxBuilder{cfg: cfg, domestic: domestic, mkt: mkt, log: log, param: param}
	b.watch.watch(spot)

	if cfg.Calibration != CalibrationNone {
		fv, err := mkt.FxVol(pair, "")
		if err != nil {
			return nil, wrapMarketErr(err)
		}
		b.vol = market.NewHandle[market.VolCurve](fv)
		b.watch.watch(b.vol)
	}
	return b, nil
}

// Key identifies the factor.
func (b *FxBuilder) Key() string { return factorKey(model.FX, b.cfg.ForeignCurrency) }

// Parametrization returns the FX parametrization.
func (b *FxBuilder) Parametrization() *model.FxBs { return b.param }

// RequiresRecalibration reports market data staleness.
func (b *FxBuilder) RequiresRecalibration() bool { return b.watch.stale() }

// Refresh records the current watched versions as the built state.
func (b *FxBuilder) Refresh() { b.watch.snapshot() }

// CalibrationErrors returns the last basket residuals.
func (b *FxBuilder) CalibrationErrors() []model.CalibrationError { return b.errs }

// basket builds at the money forward FX options against the joint model.
func (b *FxBuilder) basket(m *model.CrossAssetModel, idx int) ([]model.CalibrationInstrument, error) {
	basket := make([]model.CalibrationInstrument, 0, len(b.cfg.OptionExpiries))
	for _, expiry := range b.cfg.OptionExpiries {
		probe, err := engines.NewFxOption(m, idx, engines.Call, expiry, 1, b.vol)
		if err != nil {
			return nil, configErrorf("fx %s: %v", b.Key(), err)
		}
		opt, err := engines.NewFxOption(m, idx, engines.Call, expiry, probe.Forward(), b.vol)
		if err != nil {
			return nil, configErrorf("fx %s: %v", b.Key(), err)
		}
		basket = append(basket, opt)
	}
	return basket, nil
}

// Calibrate fits the FX sigma curve against the joint model, which already
// carries calibrated interest rate factors.
func (b *FxBuilder) Calibrate(m *model.CrossAssetModel, idx int, tolerance float64) (stageOutcome, error) {
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
		errs, err := m.CalibrateBsVolatilitiesIterative(model.FX, idx, basket)
		if err != nil {
			return stageOutcome{}, fmt.Errorf("fx %s calibration: %w", b.Key(), err)
		}
		if err := checkTolerance("fx", b.Key(), errs, tolerance); err != nil {
			return stageOutcome{}, err
		}
		out.Errors = errs
		out.ResidualNorm = maxAbsResidual(errs)
	case CalibrationGlobal:
		result, errs, err := m.CalibrateBsVolatilitiesGlobal(model.FX, idx, basket, optimize.DefaultOptions())
		if err != nil {
			return stageOutcome{}, fmt.Errorf("fx %s calibration: %w", b.Key(), err)
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
