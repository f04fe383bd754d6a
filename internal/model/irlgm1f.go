package model

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
)

// IrLgm1f is the one-factor Linear Gauss-Markov interest rate parametrization
// for a single currency. It carries a piecewise constant volatility alpha, a
// piecewise constant reversion kappa from which H is built, and a
// (shift, scaling) pair. The effective functions are
//
//	H(t)     = scaling * Hraw(t) + shift
//	alpha(t) = alphaRaw(t) / scaling
//
// which leaves the products (H(T)-H(t))*alpha and (H(T)-H(t))*sqrt(zeta)
// entering every price unchanged under reparametrization.
type IrLgm1f struct {
	currency string
	alpha    *mathutil.PiecewiseConstant
	kappa    *mathutil.PiecewiseConstant
	shift    float64
	scaling  float64

	termStructure *market.Handle[market.YieldCurve]
}

// NewIrLgm1f builds the parametrization with shift 0 and scaling 1.
func NewIrLgm1f(currency string, alpha, kappa *mathutil.PiecewiseConstant, ts *market.Handle[market.YieldCurve]) (*IrLgm1f, error) {
	if currency == "" {
		return nil, fmt.Errorf("ir parametrization: empty currency")
	}
	if alpha == nil || kappa == nil {
		return nil, fmt.Errorf("ir parametrization: alpha and kappa required")
	}
	if ts == nil {
		return nil, fmt.Errorf("ir parametrization: term structure handle required")
	}
	return &IrLgm1f{
		currency:      currency,
		alpha:         alpha,
		kappa:         kappa,
		shift:         0,
		scaling:       1,
		termStructure: ts,
	}, nil
}

// Currency returns the parametrization's currency.
func (p *IrLgm1f) Currency() string { return p.currency }

// TermStructure returns the relinkable discount curve handle.
func (p *IrLgm1f) TermStructure() *market.Handle[market.YieldCurve] {
	return p.termStructure
}

// AlphaCurve returns the raw volatility curve, the calibration target.
func (p *IrLgm1f) AlphaCurve() *mathutil.PiecewiseConstant { return p.alpha }

// KappaCurve returns the raw reversion curve.
func (p *IrLgm1f) KappaCurve() *mathutil.PiecewiseConstant { return p.kappa }

// SetShift sets the additive reparametrization constant.
func (p *IrLgm1f) SetShift(shift float64) { p.shift = shift }

// SetScaling sets the multiplicative reparametrization constant.
func (p *IrLgm1f) SetScaling(scaling float64) error {
	if scaling == 0 {
		return fmt.Errorf("ir parametrization: scaling must be nonzero")
	}
	p.scaling = scaling
	return nil
}

// Shift returns the additive reparametrization constant.
func (p *IrLgm1f) Shift() float64 { return p.shift }

// Scaling returns the multiplicative reparametrization constant.
func (p *IrLgm1f) Scaling() float64 { return p.scaling }

// Alpha returns the effective volatility at t.
func (p *IrLgm1f) Alpha(t float64) float64 {
	return p.alpha.Value(t) / p.scaling
}

// Zeta returns the accumulated variance integral of alpha^2 over [0, t].
func (p *IrLgm1f) Zeta(t float64) float64 {
	return p.alpha.SquareIntegral(0, t) / (p.scaling * p.scaling)
}

// H returns the effective reversion primitive at t.
func (p *IrLgm1f) H(t float64) float64 {
	return p.scaling*hRaw(p.kappa, t) + p.shift
}

// Hprime returns dH/dt at t.
func (p *IrLgm1f) Hprime(t float64) float64 {
	return p.scaling * hPrimeRaw(p.kappa, t)
}

// Breakpoints returns the union of the parameter grids, for exact
// integration of piecewise integrands.
func (p *IrLgm1f) Breakpoints() []float64 {
	return mathutil.MergeBreakpoints(p.alpha.Times(), p.kappa.Times())
}

// hRaw computes H(t) = int_0^t exp(-int_0^s kappa(u) du) ds segment by
// segment in closed form for a piecewise constant kappa.
func hRaw(kappa *mathutil.PiecewiseConstant, t float64) float64 {
	if t <= 0 {
		return 0
	}
	times := kappa.Times()
	values := kappa.Values()

	h := 0.0
	e := 1.0 // exp(-int_0^lo kappa)
	lo := 0.0
	for i := 0; i <= len(times); i++ {
		hi := t
		if i < len(times) && times[i] < t {
			hi = times[i]
		}
		if hi > lo {
			k := values[i]
			dt := hi - lo
			if k == 0 {
				h += e * dt
			} else {
				h += e * (1 - math.Exp(-k*dt)) / k
				e *= math.Exp(-k * dt)
			}
			lo = hi
		}
		if lo >= t {
			break
		}
	}
	return h
}

// hPrimeRaw computes H'(t) = exp(-int_0^t kappa(u) du).
func hPrimeRaw(kappa *mathutil.PiecewiseConstant, t float64) float64 {
	if t <= 0 {
		return 1
	}
	times := kappa.Times()
	values := kappa.Values()

	e := 1.0
	lo := 0.0
	for i := 0; i <= len(times); i++ {
		hi := t
		if i < len(times) && times[i] < t {
			hi = times[i]
		}
		if hi > lo {
			e *= math.Exp(-values[i] * (hi - lo))
			lo = hi
		}
		if lo >= t {
			break
		}
	}
	return e
}
