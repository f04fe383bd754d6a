package builder

import (
	"fmt"
	"sync"
	"time"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
	"github.com/wonny/crossasset/pkg/logger"
)

// Builder assembles and calibrates a cross asset model from a configuration
// and a market. Model is lazy: the first call builds, later calls return the
// cached model until a watched market observable changes. A failed rebuild
// keeps the previous model in place.
type Builder struct {
	cfg *ModelConfig
	mkt *market.Market
	log *logger.Logger

	mu       sync.Mutex
	registry *Registry
	model    *model.CrossAssetModel
	report   *CalibrationReport
	rebuilds uint64
	force    bool
}

// NewBuilder wires a builder. Nothing is calibrated until Model is called.
func NewBuilder(cfg *ModelConfig, mkt *market.Market, log *logger.Logger) (*Builder, error) {
	if cfg == nil {
		return nil, configErrorf("nil model config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mkt == nil {
		return nil, configErrorf("nil market")
	}
	return &Builder{cfg: cfg, mkt: mkt, log: log}, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() *ModelConfig { return b.cfg }

// Model returns the calibrated model, rebuilding it first when no build has
// happened yet, a rebuild was forced, or watched market data changed.
func (b *Builder) Model() (*model.CrossAssetModel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.model != nil && !b.force {
		stale := b.registry.Stale()
		if len(stale) == 0 {
			return b.model, nil
		}
		b.log.WithField("factors", stale).Info("market data changed, recalibrating")
	}
	if err := b.build(); err != nil {
		if b.model != nil {
			b.log.WithError(err).Error("model rebuild failed, keeping previous model")
		}
		return b.model, err
	}
	return b.model, nil
}

// ForceRecalculate makes the next Model call rebuild regardless of
// staleness.
func (b *Builder) ForceRecalculate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.force = true
}

// Report returns the calibration report of the last successful build, or nil
// before the first one.
func (b *Builder) Report() *CalibrationReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report
}

// StaleFactors lists the factors whose watched market data changed since the
// last build. Empty before the first build and right after a rebuild.
func (b *Builder) StaleFactors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registry == nil {
		return nil
	}
	return b.registry.Stale()
}

// Rebuilds counts successful builds.
func (b *Builder) Rebuilds() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rebuilds
}

// CalibrationErrors returns the last basket residuals for one factor, keyed
// CLASS:NAME, or nil when the factor is unknown or never calibrated.
func (b *Builder) CalibrationErrors(class model.AssetClass, name string) []model.CalibrationError {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.registry == nil {
		return nil
	}
	sb, ok := b.registry.Get(factorKey(class, name))
	if !ok {
		return nil
	}
	return sb.CalibrationErrors()
}

// build runs the staged calibration. State is swapped in only when every
// stage succeeds.
func (b *Builder) build() error {
	report := newCalibrationReport(b.cfg.Hash())
	registry := NewRegistry()

	irs := make([]*IrBuilder, len(b.cfg.Ir))
	for i, cfg := range b.cfg.Ir {
		ib, err := NewIrBuilder(b.mkt, cfg, b.log)
		if err != nil {
			return err
		}
		irs[i] = ib
		registry.Add(ib)
	}
	fxs := make([]*FxBuilder, len(b.cfg.Fx))
	for i, cfg := range b.cfg.Fx {
		fb, err := NewFxBuilder(b.mkt, cfg, b.cfg.Ir[0].Currency, b.log)
		if err != nil {
			return err
		}
		fxs[i] = fb
		registry.Add(fb)
	}
	eqs := make([]*EqBuilder, len(b.cfg.Eq))
	for i, cfg := range b.cfg.Eq {
		eb, err := NewEqBuilder(b.mkt, cfg, b.log)
		if err != nil {
			return err
		}
		eqs[i] = eb
		registry.Add(eb)
	}
	infs := make([]*InfBuilder, len(b.cfg.Inf))
	for i, cfg := range b.cfg.Inf {
		nb, err := NewInfBuilder(b.mkt, cfg, b.log)
		if err != nil {
			return err
		}
		infs[i] = nb
		registry.Add(nb)
	}
	crs := make([]*CrBuilder, len(b.cfg.Cr))
	for i, cfg := range b.cfg.Cr {
		cb, err := NewCrBuilder(b.mkt, cfg, b.log)
		if err != nil {
			return err
		}
		crs[i] = cb
		registry.Add(cb)
	}

	// Interest rates self-calibrate before the joint model exists.
	if err := b.relink(irs, b.cfg.Configurations.IrCalibration); err != nil {
		return err
	}
	for _, ib := range irs {
		started := time.Now()
		out, err := ib.Calibrate(b.cfg.BootstrapTolerance)
		if err != nil {
			return err
		}
		report.add("ir", ib.Key(), out, started)
	}

	m, err := b.assemble(irs, fxs, eqs, infs, crs)
	if err != nil {
		return err
	}

	if err := b.relink(irs, b.cfg.Configurations.FxCalibration); err != nil {
		return err
	}
	for i, fb := range fxs {
		started := time.Now()
		out, err := fb.Calibrate(m, i, b.cfg.BootstrapTolerance)
		if err != nil {
			return err
		}
		report.add("fx", fb.Key(), out, started)
	}

	if err := b.relink(irs, b.cfg.Configurations.EqCalibration); err != nil {
		return err
	}
	for i, eb := range eqs {
		started := time.Now()
		out, err := eb.Calibrate(m, i, b.cfg.BootstrapTolerance)
		if err != nil {
			return err
		}
		report.add("eq", eb.Key(), out, started)
	}

	if err := b.relink(irs, b.cfg.Configurations.Final); err != nil {
		return err
	}
	for i, nb := range infs {
		started := time.Now()
		out, err := nb.Calibrate(m, i, b.cfg.BootstrapTolerance)
		if err != nil {
			return err
		}
		report.add("inf", nb.Key(), out, started)
	}
	for _, cb := range crs {
		report.add("cr", cb.Key(), stageOutcome{Mode: CalibrationNone, Converged: true}, time.Now())
	}

	m.Update()
	for _, sb := range registry.All() {
		sb.Refresh()
	}
	report.finish()

	b.model = m
	b.registry = registry
	b.report = report
	b.rebuilds++
	b.force = false
	b.log.WithField("run_id", report.RunID.String()).
		WithField("stages", len(report.Stages)).
		Info("model calibrated")
	return nil
}

// relink points every currency's discount curve handle at the curves of the
// given market configuration. Parametrizations and engines sharing the
// handles pick the change up immediately.
func (b *Builder) relink(irs []*IrBuilder, config string) error {
	for _, ib := range irs {
		if err := ib.Relink(config); err != nil {
			return err
		}
	}
	return nil
}

// assemble builds the correlation matrix and the joint model over all
// configured factors.
func (b *Builder) assemble(irs []*IrBuilder, fxs []*FxBuilder, eqs []*EqBuilder,
	infs []*InfBuilder, crs []*CrBuilder) (*model.CrossAssetModel, error) {

	order := make([]model.FactorID, 0, len(irs)+len(fxs)+len(eqs)+len(infs)+len(crs))
	for _, ib := range irs {
		order = append(order, model.FactorID{Class: model.IR, Name: ib.cfg.Currency})
	}
	for _, fb := range fxs {
		order = append(order, model.FactorID{Class: model.FX, Name: fb.cfg.ForeignCurrency})
	}
	for _, eb := range eqs {
		order = append(order, model.FactorID{Class: model.EQ, Name: eb.cfg.Name})
	}
	for _, nb := range infs {
		order = append(order, model.FactorID{Class: model.INF, Name: nb.cfg.Index})
	}
	for _, cb := range crs {
		order = append(order, model.FactorID{Class: model.CR, Name: cb.cfg.Name})
	}

	cb := model.NewCorrelationBuilder()
	for _, c := range b.cfg.Correlations {
		f1, err := parseFactor(c.Factor1)
		if err != nil {
			return nil, configErrorf("correlation: %v", err)
		}
		f2, err := parseFactor(c.Factor2)
		if err != nil {
			return nil, configErrorf("correlation: %v", err)
		}
		if err := cb.SetValue(f1, f2, c.Value); err != nil {
			return nil, configErrorf("correlation: %v", err)
		}
	}
	corr, err := cb.Matrix(order)
	if err != nil {
		return nil, configErrorf("correlation: %v", err)
	}

	irParams := make([]*model.IrLgm1f, len(irs))
	for i, ib := range irs {
		irParams[i] = ib.Parametrization()
	}
	fxParams := make([]*model.FxBs, len(fxs))
	for i, fb := range fxs {
		fxParams[i] = fb.Parametrization()
	}
	eqParams := make([]*model.EqBs, len(eqs))
	for i, eb := range eqs {
		eqParams[i] = eb.Parametrization()
	}
	infParams := make([]*model.InfDk, len(infs))
	for i, nb := range infs {
		infParams[i] = nb.Parametrization()
	}
	crParams := make([]*model.CrLgm1f, len(crs))
	for i, cb := range crs {
		crParams[i] = cb.Parametrization()
	}

	m, err := model.NewCrossAssetModel(irParams, fxParams, eqParams, infParams, crParams,
		corr, b.cfg.SalvageMode())
	if err != nil {
		return nil, fmt.Errorf("assemble model: %w", err)
	}
	return m, nil
}
