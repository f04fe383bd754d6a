package engines

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
)

// FxOption is a European option on one of the model's FX rates, quoted and
// settled in the domestic currency. The market side is Garman-Kohlhagen, the
// model side replaces the Black variance with the model's terminal log spot
// variance, which picks up the interest rate contributions.
type FxOption struct {
	m      *model.CrossAssetModel
	fx     int
	typ    OptionType
	expiry float64
	strike float64
	vol    *market.Handle[market.VolCurve]
}

// NewFxOption builds an FX option instrument on FX factor fx.
func NewFxOption(m *model.CrossAssetModel, fx int, typ OptionType, expiry, strike float64,
	vol *market.Handle[market.VolCurve]) (*FxOption, error) {
	if m == nil {
		return nil, fmt.Errorf("fx option: model required")
	}
	if fx < 0 || fx >= m.NumCurrencies()-1 {
		return nil, fmt.Errorf("fx option: factor index %d out of range", fx)
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("fx option: expiry must be positive, got %v", expiry)
	}
	if strike <= 0 {
		return nil, fmt.Errorf("fx option: strike must be positive, got %v", strike)
	}
	if vol == nil {
		return nil, fmt.Errorf("fx option: volatility handle required")
	}
	return &FxOption{m: m, fx: fx, typ: typ, expiry: expiry, strike: strike, vol: vol}, nil
}

// Expiry returns the option expiry.
func (o *FxOption) Expiry() float64 { return o.expiry }

// Forward returns today's FX forward for the option expiry.
func (o *FxOption) Forward() float64 {
	dom := o.m.Ir(0).TermStructure().CurrentLink()
	forn := o.m.Ir(o.fx + 1).TermStructure().CurrentLink()
	spot := o.m.Fx(o.fx).FxSpot().Value()
	return spot * forn.Discount(o.expiry) / dom.Discount(o.expiry)
}

// MarketValue prices the option with Garman-Kohlhagen off the quoted
// volatility.
func (o *FxOption) MarketValue() (float64, error) {
	if !o.vol.Linked() {
		return 0, fmt.Errorf("fx option: volatility handle not linked")
	}
	sigma := o.vol.CurrentLink().Vol(o.expiry)
	if sigma < 0 {
		return 0, fmt.Errorf("fx option: negative market volatility %v at expiry %v", sigma, o.expiry)
	}
	return o.discountedBlack(sigma * math.Sqrt(o.expiry)), nil
}

// ModelValue prices the option off the model's terminal log spot variance.
func (o *FxOption) ModelValue() (float64, error) {
	idx := o.m.StateIndex(model.FX, o.fx)
	variance := o.m.Covariance(0, o.expiry).At(idx, idx)
	if variance < 0 {
		return 0, fmt.Errorf("fx option: negative model variance %v at expiry %v", variance, o.expiry)
	}
	return o.discountedBlack(math.Sqrt(variance)), nil
}

func (o *FxOption) discountedBlack(stdDev float64) float64 {
	dom := o.m.Ir(0).TermStructure().CurrentLink()
	df := dom.Discount(o.expiry)
	if o.typ == Call {
		return df * BlackCall(o.Forward(), o.strike, stdDev)
	}
	return df * BlackPut(o.Forward(), o.strike, stdDev)
}
