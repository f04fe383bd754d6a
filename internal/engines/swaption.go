package engines

import (
	"fmt"
	"math"

	"github.com/wonny/crossasset/internal/market"
	"github.com/wonny/crossasset/internal/mathutil"
	"github.com/wonny/crossasset/internal/model"
)

// SwapType distinguishes the option to pay fixed from the option to receive.
type SwapType int

const (
	Payer SwapType = iota
	Receiver
)

// Swaption is a European swaption on a fixed versus float swap in one of the
// model currencies. The market value comes from a Black volatility surface,
// the model value from the LGM closed form, so the instrument can sit in a
// calibration basket.
type Swaption struct {
	m        *model.CrossAssetModel
	ccy      int
	typ      SwapType
	expiry   float64
	start    float64
	payTimes []float64
	strike   float64
	vol      *market.Handle[market.VolCurve]
}

// NewSwaption builds a swaption instrument. payTimes are the fixed leg
// payment times, strictly increasing and after the swap start.
func NewSwaption(m *model.CrossAssetModel, ccy int, typ SwapType, expiry, start float64,
	payTimes []float64, strike float64, vol *market.Handle[market.VolCurve]) (*Swaption, error) {
	if m == nil {
		return nil, fmt.Errorf("swaption: model required")
	}
	if ccy < 0 || ccy >= m.NumCurrencies() {
		return nil, fmt.Errorf("swaption: currency index %d out of range", ccy)
	}
	if expiry <= 0 || start < expiry {
		return nil, fmt.Errorf("swaption: need 0 < expiry <= start, got expiry %v start %v", expiry, start)
	}
	if len(payTimes) == 0 {
		return nil, fmt.Errorf("swaption: fixed leg payment times required")
	}
	prev := start
	for i, pt := range payTimes {
		if pt <= prev {
			return nil, fmt.Errorf("swaption: payment times not increasing at index %d", i)
		}
		prev = pt
	}
	if strike <= 0 {
		return nil, fmt.Errorf("swaption: strike must be positive, got %v", strike)
	}
	if vol == nil {
		return nil, fmt.Errorf("swaption: volatility handle required")
	}
	return &Swaption{m: m, ccy: ccy, typ: typ, expiry: expiry, start: start,
		payTimes: payTimes, strike: strike, vol: vol}, nil
}

// Expiry returns the option expiry, the bootstrap ordering key.
func (s *Swaption) Expiry() float64 { return s.expiry }

// annuity returns the fixed leg annuity off today's curve.
func (s *Swaption) annuity() float64 {
	ts := s.m.Ir(s.ccy).TermStructure().CurrentLink()
	a := 0.0
	prev := s.start
	for _, pt := range s.payTimes {
		a += (pt - prev) * ts.Discount(pt)
		prev = pt
	}
	return a
}

// FairRate returns today's forward swap rate of the underlying.
func (s *Swaption) FairRate() float64 {
	ts := s.m.Ir(s.ccy).TermStructure().CurrentLink()
	last := s.payTimes[len(s.payTimes)-1]
	return (ts.Discount(s.start) - ts.Discount(last)) / s.annuity()
}

// MarketValue prices the swaption with the Black formula off the quoted
// volatility surface.
func (s *Swaption) MarketValue() (float64, error) {
	if !s.vol.Linked() {
		return 0, fmt.Errorf("swaption: volatility handle not linked")
	}
	sigma := s.vol.CurrentLink().Vol(s.expiry)
	if sigma < 0 {
		return 0, fmt.Errorf("swaption: negative market volatility %v at expiry %v", sigma, s.expiry)
	}
	stdDev := sigma * math.Sqrt(s.expiry)
	annuity := s.annuity()
	forward := s.FairRate()
	if s.typ == Payer {
		return annuity * BlackCall(forward, s.strike, stdDev), nil
	}
	return annuity * BlackPut(forward, s.strike, stdDev), nil
}

// coefficients expands the exercise value into flows a_j at times T_j: the
// swaption payoff is (sum_j a_j P(Te, T_j))^+ for a payer.
func (s *Swaption) coefficients() ([]float64, []float64) {
	n := len(s.payTimes)
	times := make([]float64, 0, n+1)
	a := make([]float64, 0, n+1)
	times = append(times, s.start)
	a = append(a, 1)
	prev := s.start
	for _, pt := range s.payTimes {
		times = append(times, pt)
		a = append(a, -s.strike*(pt-prev))
		prev = pt
	}
	a[n] -= 1
	return times, a
}

// ModelValue prices the swaption in closed form under the currency's LGM
// parametrization.
func (s *Swaption) ModelValue() (float64, error) {
	ir := s.m.Ir(s.ccy)
	ts := ir.TermStructure().CurrentLink()
	zeta := ir.Zeta(s.expiry)
	times, a := s.coefficients()

	disc := make([]float64, len(times))
	h := make([]float64, len(times))
	for j, tj := range times {
		disc[j] = ts.Discount(tj)
		h[j] = ir.H(tj)
	}

	intrinsic := 0.0
	for j := range a {
		intrinsic += a[j] * disc[j]
	}
	if zeta <= 0 {
		if s.typ == Payer {
			return math.Max(intrinsic, 0), nil
		}
		return math.Max(-intrinsic, 0), nil
	}

	sq := math.Sqrt(zeta)
	g := func(x float64) float64 {
		v := 0.0
		for j := range a {
			v += a[j] * disc[j] * math.Exp(-h[j]*sq*x-0.5*h[j]*h[j]*zeta)
		}
		return v
	}

	lo, hi, err := mathutil.ExpandBracket(g, -1, 1, 60)
	if err != nil {
		return 0, fmt.Errorf("swaption: exercise boundary: %w", err)
	}
	xStar, err := mathutil.Brent(g, lo, hi, 1e-12, 200)
	if err != nil {
		return 0, fmt.Errorf("swaption: exercise boundary: %w", err)
	}

	// The exercise region follows the direction of H: under a negative
	// scaling H decreases and the payer exercises below the boundary.
	sign := 1.0
	if h[len(h)-1] < h[0] {
		sign = -1.0
	}

	v := 0.0
	if s.typ == Payer {
		for j := range a {
			v += a[j] * disc[j] * stdNormal.CDF(sign*(-xStar-h[j]*sq))
		}
	} else {
		for j := range a {
			v -= a[j] * disc[j] * stdNormal.CDF(sign*(xStar+h[j]*sq))
		}
	}
	return v, nil
}
