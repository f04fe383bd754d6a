package model

import (
	"fmt"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
)

// FxBs is the Black-Scholes parametrization of one FX factor: the log spot of
// one unit of foreign currency in domestic units, with piecewise constant
// volatility.
type FxBs struct {
	foreignCurrency string
	sigma           *mathutil.PiecewiseConstant
	fxSpot          *market.Quote
}

// NewFxBs builds the FX parametrization for the given foreign currency.
func NewFxBs(foreignCurrency string, sigma *mathutil.PiecewiseConstant, fxSpot *market.Quote) (*FxBs, error) {
	if foreignCurrency == "" {
		return nil, fmt.Errorf("fx parametrization: empty foreign currency")
	}
	if sigma == nil {
		return nil, fmt.Errorf("fx parametrization: sigma required")
	}
	if fxSpot == nil {
		return nil, fmt.Errorf("fx parametrization: spot quote required")
	}
	return &FxBs{foreignCurrency: foreignCurrency, sigma: sigma, fxSpot: fxSpot}, nil
}

// Currency returns the foreign currency of the FX factor.
func (p *FxBs) Currency() string { return p.foreignCurrency }

// SigmaCurve returns the raw volatility curve, the calibration target.
func (p *FxBs) SigmaCurve() *mathutil.PiecewiseConstant { return p.sigma }

// Sigma returns the volatility at t.
func (p *FxBs) Sigma(t float64) float64 { return p.sigma.Value(t) }

// Variance returns the integral of sigma^2 over [a, b].
func (p *FxBs) Variance(a, b float64) float64 { return p.sigma.SquareIntegral(a, b) }

// FxSpot returns the spot quote (units of domestic per unit of foreign).
func (p *FxBs) FxSpot() *market.Quote { return p.fxSpot }

// Breakpoints returns the volatility grid.
func (p *FxBs) Breakpoints() []float64 { return p.sigma.Times() }
