package model

import (
	"fmt"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
)

// EqBs is the Black-Scholes parametrization of one equity factor: the log
// spot of the equity in its own currency, with piecewise constant volatility
// and a deterministic dividend yield curve.
type EqBs struct {
	name     string
	currency string
	sigma    *mathutil.PiecewiseConstant
	spot     *market.Quote
	dividend *market.Handle[market.YieldCurve]
}

// NewEqBs builds the equity parametrization.
func NewEqBs(name, currency string, sigma *mathutil.PiecewiseConstant, spot *market.Quote, dividend *market.Handle[market.YieldCurve]) (*EqBs, error) {
	if name == "" || currency == "" {
		return nil, fmt.Errorf("eq parametrization: name and currency required")
	}
	if sigma == nil || spot == nil || dividend == nil {
		return nil, fmt.Errorf("eq parametrization: sigma, spot and dividend curve required")
	}
	return &EqBs{name: name, currency: currency, sigma: sigma, spot: spot, dividend: dividend}, nil
}

// Name returns the equity name.
func (p *EqBs) Name() string { return p.name }

// Currency returns the equity's denomination currency.
func (p *EqBs) Currency() string { return p.currency }

// SigmaCurve returns the raw volatility curve, the calibration target.
func (p *EqBs) SigmaCurve() *mathutil.PiecewiseConstant { return p.sigma }

// Sigma returns the volatility at t.
func (p *EqBs) Sigma(t float64) float64 { return p.sigma.Value(t) }

// Variance returns the integral of sigma^2 over [a, b].
func (p *EqBs) Variance(a, b float64) float64 { return p.sigma.SquareIntegral(a, b) }

// Spot returns the equity spot quote.
func (p *EqBs) Spot() *market.Quote { return p.spot }

// Dividend returns the dividend yield curve handle.
func (p *EqBs) Dividend() *market.Handle[market.YieldCurve] { return p.dividend }

// Breakpoints returns the volatility grid.
func (p *EqBs) Breakpoints() []float64 { return p.sigma.Times() }
