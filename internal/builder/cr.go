package builder

import (
	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/pkg/logger"
)

// CrBuilder builds one credit parametrization. Credit parameters are taken
// from configuration as-is, there is no quoted instrument basket to fit.
type CrBuilder struct {
	cfg   CrConfig
	param *model.CrLgm1f
	curve *market.Handle[market.DefaultCurve]
	watch watchList
}

// NewCrBuilder seeds the parametrization and resolves the default curve.
func NewCrBuilder(mkt *market.Market, cfg CrConfig, log *logger.Logger) (*CrBuilder, error) {
	dc, err := mkt.DefaultCurve(cfg.Name, "")
	if err != nil {
		return nil, wrapMarketErr(err)
	}
	curve := market.NewHandle[market.DefaultCurve](dc)
	param, err := model.NewCrLgm1f(cfg.Name, cfg.Currency,
		mathutil.NewConstant(cfg.InitialAlpha), mathutil.NewConstant(cfg.InitialKappa), curve)
	if err != nil {
		return nil, configErrorf("cr %s: %v", cfg.Name, err)
	}
	b := &CrBuilder{cfg: cfg, param: param, curve: curve}
	b.watch.watch(curve)
	return b, nil
}

// Key identifies the factor.
func (b *CrBuilder) Key() string { return factorKey(model.CR, b.cfg.Name) }

// Parametrization returns the credit parametrization.
func (b *CrBuilder) Parametrization() *model.CrLgm1f { return b.param }

// RequiresRecalibration reports default curve staleness. A fresh curve
// changes model values even though no parameter is refitted.
func (b *CrBuilder) RequiresRecalibration() bool { return b.watch.stale() }

// CalibrationErrors always returns nil for credit.
func (b *CrBuilder) CalibrationErrors() []model.CalibrationError { return nil }

// Refresh acknowledges the current market data versions.
func (b *CrBuilder) Refresh() { b.watch.snapshot() }
