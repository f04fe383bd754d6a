package builder

import (
	"fmt"

	"github.com/wonny/crossasset/internal/engines"
	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/internal/optimize"
	"github.com/wonny/crossasset/pkg/logger"
)

// IrBuilder builds and self-calibrates one currency's LGM parametrization.
// Interest rate calibration only depends on the currency's own factor, so it
// runs against a throwaway single currency model sharing the parametrization,
// before the joint model exists.
type IrBuilder struct {
	cfg   IrConfig
	mkt   *market.Market
	log   *logger.Logger
	param *model.IrLgm1f
	curve *market.Handle[market.YieldCurve]
	vol   *market.Handle[market.VolCurve]
	errs  []model.CalibrationError
	watch watchList
}

// NewIrBuilder seeds the parametrization from configuration and resolves the
// market data the factor watches.
func NewIrBuilder(mkt *market.Market, cfg IrConfig, log *logger.Logger) (*IrBuilder, error) {
	discount, err := mkt.DiscountCurve(cfg.Currency, "")
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	alpha, err := paramCurve(cfg.ParamType, cfg.SwaptionExpiries, cfg.InitialAlpha)
	if err != nil {
		return nil, err
	}
	param, err := model.NewIrLgm1f(cfg.Currency, alpha, mathutil.NewConstant(cfg.Reversion),
		market.NewHandle[market.YieldCurve](discount))
	if err != nil {
		return nil, configErrorf("ir %s: %v", cfg.Currency, err)
	}

	b := &IrBuilder{cfg: cfg, mkt: mkt, log: log, param: param, curve: param.TermStructure()}
	b.watch.watch(b.curve)

	if cfg.Calibration != CalibrationNone {
		sv, err := mkt.SwaptionVol(cfg.Currency, "")
		if err != nil {
			return nil, wrapMarketErr(err)
		}
		b.vol = market.NewHandle[market.VolCurve](sv)
		b.watch.watch(b.vol)
	}
	return b, nil
}

// Key identifies the factor.
func (b *IrBuilder) Key() string { return factorKey(model.IR, b.cfg.Currency) }

// Parametrization returns the (possibly calibrated) LGM parametrization.
func (b *IrBuilder) Parametrization() *model.IrLgm1f { return b.param }

// CurveHandle returns the relinkable discount curve handle shared with the
// parametrization and every engine priced against it.
func (b *IrBuilder) CurveHandle() *market.Handle[market.YieldCurve] { return b.curve }

// Relink points the discount curve handle at the curve registered for the
// given market configuration.
func (b *IrBuilder) Relink(config string) error {
	c, err := b.mkt.DiscountCurve(b.cfg.Currency, config)
	if err != nil {
		return wrapMarketErr(err)
	}
	b.curve.LinkTo(c)
	return nil
}

// RequiresRecalibration reports market data staleness.
func (b *IrBuilder) RequiresRecalibration() bool { return b.watch.stale() }

// Refresh records the current watched versions as the built state.
func (b *IrBuilder) Refresh() { b.watch.snapshot() }

// CalibrationErrors returns the last basket residuals.
func (b *IrBuilder) CalibrationErrors() []model.CalibrationError { return b.errs }

// basket builds at the money swaptions on the given model for each
// configured expiry.
func (b *IrBuilder) basket(m *model.CrossAssetModel, idx int) ([]model.CalibrationInstrument, error) {
	basket := make([]model.CalibrationInstrument, 0, len(b.cfg.SwaptionExpiries))
	for _, expiry := range b.cfg.SwaptionExpiries {
		payTimes := make([]float64, b.cfg.SwaptionTenor)
		for i := range payTimes {
			payTimes[i] = expiry + float64(i+1)
		}
		probe, err := engines.NewSwaption(m, idx, engines.Payer, expiry, expiry, payTimes, 1, b.vol)
		if err != nil {
			return nil, configErrorf("ir %s: %v", b.cfg.Currency, err)
		}
		s, err := engines.NewSwaption(m, idx, engines.Payer, expiry, expiry, payTimes, probe.FairRate(), b.vol)
		if err != nil {
			return nil, configErrorf("ir %s: %v", b.cfg.Currency, err)
		}
		basket = append(basket, s)
	}
	return basket, nil
}

// Calibrate fits the LGM volatility curve to the swaption basket on a
// single currency model sharing this parametrization.
func (b *IrBuilder) Calibrate(tolerance float64) (stageOutcome, error) {
	if b.cfg.Calibration == CalibrationNone {
		return stageOutcome{Mode: CalibrationNone, Converged: true}, nil
	}

	cb := model.NewCorrelationBuilder()
	corr, err := cb.Matrix([]model.FactorID{{Class: model.IR, Name: b.cfg.Currency}})
	if err != nil {
		return stageOutcome{}, configErrorf("ir %s: %v", b.cfg.Currency, err)
	}
	tmp, err := model.NewCrossAssetModel([]*model.IrLgm1f{b.param}, nil, nil, nil, nil, corr, model.SalvageNone)
	if err != nil {
		return stageOutcome{}, configErrorf("ir %s: %v", b.cfg.Currency, err)
	}

	basket, err := b.basket(tmp, 0)
	if err != nil {
		return stageOutcome{}, err
	}

	mode, fellBack := effectiveMode(b.cfg.Calibration, b.param.AlphaCurve(), len(basket))
	if fellBack {
		b.log.WithField("factor", b.Key()).
			Warn("bootstrap calibration requested for a constant parameter curve, using global fit")
	}

	out := stageOutcome{Mode: mode, Converged: true}
	switch mode {
	case CalibrationBootstrap:
		errs, err := tmp.CalibrateIrLgm1fVolatilitiesIterative(0, basket)
		if err != nil {
			return stageOutcome{}, fmt.Errorf("ir %s calibration: %w", b.cfg.Currency, err)
		}
		if err := checkTolerance("ir", b.Key(), errs, tolerance); err != nil {
			return stageOutcome{}, err
		}
		out.Errors = errs
		out.ResidualNorm = maxAbsResidual(errs)
	case CalibrationGlobal:
		result, errs, err := tmp.CalibrateIrLgm1fVolatilitiesGlobal(0, basket, optimize.DefaultOptions())
		if err != nil {
			return stageOutcome{}, fmt.Errorf("ir %s calibration: %w", b.cfg.Currency, err)
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
