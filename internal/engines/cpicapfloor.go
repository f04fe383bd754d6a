package engines

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/model"
)

// CapFloorType distinguishes caps from floors.
type CapFloorType int

const (
	Cap CapFloorType = iota
	Floor
)

// CpiCapFloor is a zero coupon CPI cap or floor paying, at T,
//
//	(I(T)/I(0) - (1+k)^T)^+    for a cap
//
// in domestic currency. Under Dodgson-Kainth dynamics the log index ratio
// and the log numeraire are jointly Gaussian, so the price is a two-moment
// closed form. Market values are quoted directly as premiums.
type CpiCapFloor struct {
	m       *model.CrossAssetModel
	inf     int
	typ     CapFloorType
	expiry  float64
	rate    float64
	premium *market.Quote
}

// NewCpiCapFloor builds a CPI cap/floor instrument on inflation block inf
// with the strike quoted as an annual inflation rate.
func NewCpiCapFloor(m *model.CrossAssetModel, inf int, typ CapFloorType, expiry, rate float64,
	premium *market.Quote) (*CpiCapFloor, error) {
	if m == nil {
		return nil, fmt.Errorf("cpi capfloor: model required")
	}
	if inf < 0 || inf >= m.NumInf() {
		return nil, fmt.Errorf("cpi capfloor: inflation index %d out of range", inf)
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("cpi capfloor: expiry must be positive, got %v", expiry)
	}
	if rate <= -1 {
		return nil, fmt.Errorf("cpi capfloor: strike rate must exceed -1, got %v", rate)
	}
	if premium == nil {
		return nil, fmt.Errorf("cpi capfloor: premium quote required")
	}
	return &CpiCapFloor{m: m, inf: inf, typ: typ, expiry: expiry, rate: rate, premium: premium}, nil
}

// Expiry returns the option expiry.
func (o *CpiCapFloor) Expiry() float64 { return o.expiry }

// Strike returns the effective index ratio strike (1+k)^T.
func (o *CpiCapFloor) Strike() float64 {
	return math.Pow(1+o.rate, o.expiry)
}

// MarketValue returns the quoted premium.
func (o *CpiCapFloor) MarketValue() (float64, error) {
	return o.premium.Value(), nil
}

// ModelValue prices the cap/floor in closed form. With j the log realized
// index ratio and n the log numeraire at expiry, both affine in the Gaussian
// state, the price is E[exp(-n) (exp(j) - K)^+].
func (o *CpiCapFloor) ModelValue() (float64, error) {
	m := o.m
	T := o.expiry
	p := m.Inf(o.inf)
	ir0 := m.Ir(0)

	// Constant parts of j and n read off the model at zero state.
	real0, _ := m.InfDkI(o.inf, T, T, 0, 0)
	cj := math.Log(real0)
	cn := math.Log(m.Numeraire(T, 0))

	hk := p.H(T)
	h0 := ir0.H(T)

	e := m.Expectation(0, make([]float64, m.StateDim()), T)
	cov := m.Covariance(0, T)

	z0 := m.StateIndex(model.IR, 0)
	zk := m.StateIndex(model.INF, o.inf)
	yk := zk + 1

	muJ := cj + hk*e[zk] - e[yk]
	muN := cn + h0*e[z0]
	varJ := hk*hk*cov.At(zk, zk) - 2*hk*cov.At(zk, yk) + cov.At(yk, yk)
	varN := h0 * h0 * cov.At(z0, z0)
	covJN := h0 * (hk*cov.At(z0, zk) - cov.At(z0, yk))

	k := o.Strike()
	df := math.Exp(-muN + 0.5*varN)

	if varJ <= 0 {
		fwd := math.Exp(muJ - covJN)
		if o.typ == Cap {
			return df * math.Max(fwd-k, 0), nil
		}
		return df * math.Max(k-fwd, 0), nil
	}

	sigJ := math.Sqrt(varJ)
	d1 := (muJ - covJN - math.Log(k) + varJ) / sigJ
	d2 := d1 - sigJ
	fwd := math.Exp(muJ + 0.5*varJ - covJN)
	if o.typ == Cap {
		return df * (fwd*stdNormal.CDF(d1) - k*stdNormal.CDF(d2)), nil
	}
	return df * (k*stdNormal.CDF(-d2) - fwd*stdNormal.CDF(-d1)), nil
}

// IndexedZeroBond returns the model price of the inflation protected zero
// coupon bond paying I(T)/I(0) at T, a consistency anchor for the cap/floor
// closed form: it must equal the curve product P(0,T) G(T).
func (o *CpiCapFloor) IndexedZeroBond() float64 {
	m := o.m
	T := o.expiry
	p := m.Inf(o.inf)
	ir0 := m.Ir(0)

	real0, _ := m.InfDkI(o.inf, T, T, 0, 0)
	cj := math.Log(real0)
	cn := math.Log(m.Numeraire(T, 0))

	hk := p.H(T)
	h0 := ir0.H(T)

	e := m.Expectation(0, make([]float64, m.StateDim()), T)
	cov := m.Covariance(0, T)
	z0 := m.StateIndex(model.IR, 0)
	zk := m.StateIndex(model.INF, o.inf)
	yk := zk + 1

	muJ := cj + hk*e[zk] - e[yk]
	muN := cn + h0*e[z0]
	varJ := hk*hk*cov.At(zk, zk) - 2*hk*cov.At(zk, yk) + cov.At(yk, yk)
	varN := h0 * h0 * cov.At(z0, z0)
	covJN := h0 * (hk*cov.At(z0, zk) - cov.At(z0, yk))

	return math.Exp(muJ-muN+0.5*(varJ+varN)-covJN)
}
