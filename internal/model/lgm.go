package model

import "math"

// Lgm is a standalone single-currency view on an LGM parametrization. It is
// the one-factor reference model the cross-asset machinery must agree with
// pathwise when only one currency is present.
type Lgm struct {
	p *IrLgm1f
}

// NewLgm wraps a single IR parametrization.
func NewLgm(p *IrLgm1f) *Lgm {
	return &Lgm{p: p}
}

// Parametrization returns the wrapped parametrization.
func (l *Lgm) Parametrization() *IrLgm1f { return l.p }

// Numeraire returns N(t) given the state z.
func (l *Lgm) Numeraire(t, z float64) float64 {
	h := l.p.H(t)
	pt := l.p.TermStructure().CurrentLink().Discount(t)
	return math.Exp(h*z+0.5*h*h*l.p.Zeta(t)) / pt
}

// DiscountBond returns P(t, T) given the state z.
func (l *Lgm) DiscountBond(t, T, z float64) float64 {
	curve := l.p.TermStructure().CurrentLink()
	ht := l.p.H(t)
	hT := l.p.H(T)
	return curve.Discount(T) / curve.Discount(t) *
		math.Exp(-(hT-ht)*z-0.5*(hT*hT-ht*ht)*l.p.Zeta(t))
}

// Evolve advances the state exactly over [t0, t0+dt] given one standard
// normal draw: the LGM state is a driftless Gaussian in its own measure.
func (l *Lgm) Evolve(t0, z0, dt, n float64) float64 {
	v := l.p.Zeta(t0+dt) - l.p.Zeta(t0)
	return z0 + math.Sqrt(v)*n
}
