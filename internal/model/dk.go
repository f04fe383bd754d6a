package model

import (
	"fmt"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
)

// dkParametrization is the shared Dodgson-Kainth style two-state block used
// by both inflation and credit: a primary Gaussian factor z with piecewise
// constant volatility alpha and reversion kappa, plus the auxiliary state
// y(t) = int_0^t H dz driven by the same Brownian.
type dkParametrization struct {
	name     string
	currency string
	alpha    *mathutil.PiecewiseConstant
	kappa    *mathutil.PiecewiseConstant
}

func newDkParametrization(name, currency string, alpha, kappa *mathutil.PiecewiseConstant) (dkParametrization, error) {
	if name == "" || currency == "" {
		return dkParametrization{}, fmt.Errorf("dk parametrization: name and currency required")
	}
	if alpha == nil || kappa == nil {
		return dkParametrization{}, fmt.Errorf("dk parametrization: alpha and kappa required")
	}
	return dkParametrization{name: name, currency: currency, alpha: alpha, kappa: kappa}, nil
}

// Name returns the index or credit name.
func (p *dkParametrization) Name() string { return p.name }

// Currency returns the currency whose IR factor the block couples to.
func (p *dkParametrization) Currency() string { return p.currency }

// AlphaCurve returns the raw volatility curve, the calibration target.
func (p *dkParametrization) AlphaCurve() *mathutil.PiecewiseConstant { return p.alpha }

// KappaCurve returns the raw reversion curve.
func (p *dkParametrization) KappaCurve() *mathutil.PiecewiseConstant { return p.kappa }

// Alpha returns the volatility at t.
func (p *dkParametrization) Alpha(t float64) float64 { return p.alpha.Value(t) }

// Zeta returns the integral of alpha^2 over [0, t].
func (p *dkParametrization) Zeta(t float64) float64 { return p.alpha.SquareIntegral(0, t) }

// H returns the reversion primitive at t.
func (p *dkParametrization) H(t float64) float64 { return hRaw(p.kappa, t) }

// Hprime returns dH/dt at t.
func (p *dkParametrization) Hprime(t float64) float64 { return hPrimeRaw(p.kappa, t) }

// Breakpoints returns the union of the parameter grids.
func (p *dkParametrization) Breakpoints() []float64 {
	return mathutil.MergeBreakpoints(p.alpha.Times(), p.kappa.Times())
}

// InfDk is the Dodgson-Kainth inflation parametrization for one price index.
type InfDk struct {
	dkParametrization
	curve *market.Handle[market.InflationCurve]
}

// NewInfDk builds the inflation parametrization.
func NewInfDk(name, currency string, alpha, kappa *mathutil.PiecewiseConstant, curve *market.Handle[market.InflationCurve]) (*InfDk, error) {
	base, err := newDkParametrization(name, currency, alpha, kappa)
	if err != nil {
		return nil, err
	}
	if curve == nil {
		return nil, fmt.Errorf("inf parametrization: inflation curve handle required")
	}
	return &InfDk{dkParametrization: base, curve: curve}, nil
}

// Curve returns the zero inflation curve handle.
func (p *InfDk) Curve() *market.Handle[market.InflationCurve] { return p.curve }

// CrLgm1f is the LGM-style credit parametrization for one credit name.
type CrLgm1f struct {
	dkParametrization
	curve *market.Handle[market.DefaultCurve]
}

// NewCrLgm1f builds the credit parametrization.
func NewCrLgm1f(name, currency string, alpha, kappa *mathutil.PiecewiseConstant, curve *market.Handle[market.DefaultCurve]) (*CrLgm1f, error) {
	base, err := newDkParametrization(name, currency, alpha, kappa)
	if err != nil {
		return nil, err
	}
	if curve == nil {
		return nil, fmt.Errorf("cr parametrization: default curve handle required")
	}
	return &CrLgm1f{dkParametrization: base, curve: curve}, nil
}

// Curve returns the default curve handle.
func (p *CrLgm1f) Curve() *market.Handle[market.DefaultCurve] { return p.curve }
