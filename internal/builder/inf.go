package builder

import (
	"fmt"
	"sort"

	"github.com/wonny/crossasset/internal/engines"
	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/internal/optimize"
	"github.com/wonny/crossasset/pkg/logger"
)

// InfBuilder builds one Dodgson-Kainth inflation parametrization. Four
// calibration sub-modes exist depending on which parameters the
// configuration flags: alpha only, kappa only, both jointly, or none.
type InfBuilder struct {
	cfg      InfConfig
	mkt      *market.Market
	log      *logger.Logger
	param    *model.InfDk
	curve    *market.Handle[market.InflationCurve]
	premiums map[float64]*market.Quote
	errs     []model.CalibrationError
	watch    watchList
}

// NewInfBuilder seeds the parametrization from configuration and resolves
// the zero inflation curve and cap/floor premium quotes.
func NewInfBuilder(mkt *market.Market, cfg InfConfig, log *logger.Logger) (*InfBuilder, error) {
	ic, err := mkt.InflationCurve(cfg.Index, "")
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	alpha, err := paramCurve(cfg.AlphaType, cfg.CapFloorExpiries, cfg.InitialAlpha)
	if err != nil {
		return nil, err
	}
	kappa, err := paramCurve(cfg.KappaType, cfg.CapFloorExpiries, cfg.InitialKappa)
	if err != nil {
		return nil, err
	}
	curve := market.NewHandle[market.InflationCurve](ic)
	param, err := model.NewInfDk(cfg.Index, cfg.Currency, alpha, kappa, curve)
	if err != nil {
		return nil, configErrorf("inf %s: %v", cfg.Index, err)
	}

	b := &InfBuilder{cfg: cfg, mkt: mkt, log: log, param: param, curve: curve}
	b.watch.watch(curve)

	if cfg.Calibration != CalibrationNone {
		prem, err := mkt.CpiVol(cfg.Index, "")
		if err != nil {
			return nil, wrapMarketErr(err)
		}
		b.premiums = prem
		expiries := make([]float64, 0, len(prem))
		for e := range prem {
			expiries = append(expiries, e)
		}
		sort.Float64s(expiries)
		for _, e := range expiries {
			b.watch.watch(prem[e])
		}
	}
	return b, nil
}

// Key identifies the factor.
func (b *InfBuilder) Key() string { return factorKey(model.INF, b.cfg.Index) }

// Parametrization returns the inflation parametrization.
func (b *InfBuilder) Parametrization() *model.InfDk { return b.param }

// RequiresRecalibration reports market data staleness.
func (b *InfBuilder) RequiresRecalibration() bool { return b.watch.stale() }

// Refresh records the current watched versions as the built state.
func (b *InfBuilder) Refresh() { b.watch.snapshot() }

// CalibrationErrors returns the last basket residuals.
func (b *InfBuilder) CalibrationErrors() []model.CalibrationError { return b.errs }

// basket builds CPI caps at the configured strike rate for each expiry with
// a quoted premium.
func (b *InfBuilder) basket(m *model.CrossAssetModel, idx int) ([]model.CalibrationInstrument, error) {
	basket := make([]model.CalibrationInstrument, 0, len(b.cfg.CapFloorExpiries))
	for _, expiry := range b.cfg.CapFloorExpiries {
		premium, ok := b.premiums[expiry]
		if !ok {
			return nil, &MissingMarketDataError{Err: &market.NotFoundError{
				Kind: market.KindCpiVol, Name: fmt.Sprintf("%s@%v", b.cfg.Index, expiry), Config: market.DefaultConfiguration}}
		}
		inst, err := engines.NewCpiCapFloor(m, idx, engines.Cap, expiry, b.cfg.StrikeRate, premium)
		if err != nil {
			return nil, configErrorf("inf %s: %v", b.Key(), err)
		}
		basket = append(basket, inst)
	}
	return basket, nil
}

// Calibrate fits the requested inflation parameters against the joint model.
func (b *InfBuilder) Calibrate(m *model.CrossAssetModel, idx int, tolerance float64) (stageOutcome, error) {
	if b.cfg.Calibration == CalibrationNone || (!b.cfg.CalibrateAlpha && !b.cfg.CalibrateKappa) {
		return stageOutcome{Mode: CalibrationNone, Converged: true}, nil
	}

	basket, err := b.basket(m, idx)
	if err != nil {
		return stageOutcome{}, err
	}

	// Joint alpha+kappa calibration is always a single global fit.
	if b.cfg.CalibrateAlpha && b.cfg.CalibrateKappa {
		result, errs, err := m.CalibrateInfDkJoint(idx, basket, optimize.DefaultOptions())
		if err != nil {
			return stageOutcome{}, fmt.Errorf("inf %s calibration: %w", b.Key(), err)
		}
		if !result.Converged {
			b.log.WithField("factor", b.Key()).
				WithField("residual", result.ResidualNorm).
				Warn("global calibration stopped without convergence, keeping reached parameters")
		}
		b.errs = errs
		return stageOutcome{Mode: CalibrationGlobal, Errors: errs,
			ResidualNorm: result.ResidualNorm, Converged: result.Converged}, nil
	}

	curve := b.param.AlphaCurve()
	if b.cfg.CalibrateKappa {
		curve = b.param.KappaCurve()
	}
	mode, fellBack := effectiveMode(b.cfg.Calibration, curve, len(basket))
	if fellBack {
		b.log.WithField("factor", b.Key()).
			Warn("bootstrap calibration requested for a constant parameter curve, using global fit")
	}

	out := stageOutcome{Mode: mode, Converged: true}
	switch mode {
	case CalibrationBootstrap:
		var errs []model.CalibrationError
		if b.cfg.CalibrateAlpha {
			errs, err = m.CalibrateInfDkVolatilitiesIterative(idx, basket)
		} else {
			errs, err = m.CalibrateInfDkReversionsIterative(idx, basket)
		}
		if err != nil {
			return stageOutcome{}, fmt.Errorf("inf %s calibration: %w", b.Key(), err)
		}
		if err := checkTolerance("inf", b.Key(), errs, tolerance); err != nil {
			return stageOutcome{}, err
		}
		out.Errors = errs
		out.ResidualNorm = maxAbsResidual(errs)
	case CalibrationGlobal:
		var result optimize.Result
		var errs []model.CalibrationError
		if b.cfg.CalibrateAlpha {
			result, errs, err = m.CalibrateInfDkVolatilitiesGlobal(idx, basket, optimize.DefaultOptions())
		} else {
			result, errs, err = m.CalibrateInfDkReversionsGlobal(idx, basket, optimize.DefaultOptions())
		}
		if err != nil {
			return stageOutcome{}, fmt.Errorf("inf %s calibration: %w", b.Key(), err)
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
