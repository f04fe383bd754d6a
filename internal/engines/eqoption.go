package engines

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
)

// EqOption is a European equity option, quoted and settled in the equity's
// own currency.
type EqOption struct {
	m      *model.CrossAssetModel
	eq     int
	typ    OptionType
	expiry float64
	strike float64
	vol    *market.Handle[market.VolCurve]
}

// NewEqOption builds an equity option instrument on equity factor eq.
func NewEqOption(m *model.CrossAssetModel, eq int, typ OptionType, expiry, strike float64,
	vol *market.Handle[market.VolCurve]) (*EqOption, error) {
	if m == nil {
		return nil, fmt.Errorf("eq option: model required")
	}
	if eq < 0 || eq >= m.NumEq() {
		return nil, fmt.Errorf("eq option: factor index %d out of range", eq)
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("eq option: expiry must be positive, got %v", expiry)
	}
	if strike <= 0 {
		return nil, fmt.Errorf("eq option: strike must be positive, got %v", strike)
	}
	if vol == nil {
		return nil, fmt.Errorf("eq option: volatility handle required")
	}
	return &EqOption{m: m, eq: eq, typ: typ, expiry: expiry, strike: strike, vol: vol}, nil
}

// Expiry returns the option expiry.
func (o *EqOption) Expiry() float64 { return o.expiry }

// ccyCurve returns the discount curve of the equity's currency.
func (o *EqOption) ccyCurve() market.YieldCurve {
	p := o.m.Eq(o.eq)
	idx, _ := o.m.CurrencyIndex(p.Currency())
	return o.m.Ir(idx).TermStructure().CurrentLink()
}

// Forward returns today's dividend adjusted equity forward.
func (o *EqOption) Forward() float64 {
	p := o.m.Eq(o.eq)
	return p.Spot().Value() * p.Dividend().CurrentLink().Discount(o.expiry) / o.ccyCurve().Discount(o.expiry)
}

// MarketValue prices the option with Black-Scholes off the quoted volatility.
func (o *EqOption) MarketValue() (float64, error) {
	if !o.vol.Linked() {
		return 0, fmt.Errorf("eq option: volatility handle not linked")
	}
	sigma := o.vol.CurrentLink().Vol(o.expiry)
	if sigma < 0 {
		return 0, fmt.Errorf("eq option: negative market volatility %v at expiry %v", sigma, o.expiry)
	}
	return o.discountedBlack(sigma * math.Sqrt(o.expiry)), nil
}

// ModelValue prices the option off the model's terminal log spot variance.
func (o *EqOption) ModelValue() (float64, error) {
	idx := o.m.StateIndex(model.EQ, o.eq)
	variance := o.m.Covariance(0, o.expiry).At(idx, idx)
	if variance < 0 {
		return 0, fmt.Errorf("eq option: negative model variance %v at expiry %v", variance, o.expiry)
	}
	return o.discountedBlack(math.Sqrt(variance)), nil
}

func (o *EqOption) discountedBlack(stdDev float64) float64 {
	df := o.ccyCurve().Discount(o.expiry)
	if o.typ == Call {
		return df * BlackCall(o.Forward(), o.strike, stdDev)
	}
	return df * BlackPut(o.Forward(), o.strike, stdDev)
}
