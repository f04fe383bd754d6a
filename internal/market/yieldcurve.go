package market

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// YieldCurve provides discount factors and instantaneous forward rates.
type YieldCurve interface {
	Versioned
	// Discount returns P(0, t), the price of a zero coupon bond maturing at t.
	Discount(t float64) float64
	// Forward returns the instantaneous forward rate f(0, t).
	Forward(t float64) float64
}

// FlatForward is a yield curve with a single continuously compounded rate,
// observed through a quote.
type FlatForward struct {
	rate *Quote
}

// NewFlatForward builds a flat curve on the given rate quote.
func NewFlatForward(rate *Quote) *FlatForward {
	return &FlatForward{rate: rate}
}

// NewFlatForwardRate builds a flat curve on a fresh quote at the given rate.
func NewFlatForwardRate(rate float64) *FlatForward {
	return &FlatForward{rate: NewQuote(rate)}
}

// Rate exposes the underlying quote, e.g. for bumping in tests.
func (c *FlatForward) Rate() *Quote { return c.rate }

// Discount returns exp(-r*t).
func (c *FlatForward) Discount(t float64) float64 {
	return math.Exp(-c.rate.Value() * t)
}

// Forward returns the flat rate.
func (c *FlatForward) Forward(t float64) float64 {
	return c.rate.Value()
}

// Version returns the rate quote's version.
func (c *FlatForward) Version() uint64 {
	return c.rate.Version()
}

// DiscountCurve interpolates discount factors log-linearly between nodes,
// with constant-forward extrapolation beyond the last node.
type DiscountCurve struct {
	mu      sync.RWMutex
	times   []float64
	logDfs  []float64
	version uint64
}

// NewDiscountCurve builds a curve from node times (strictly increasing,
// positive) and discount factors. P(0,0)=1 is implicit.
func NewDiscountCurve(times, dfs []float64) (*DiscountCurve, error) {
	if len(times) == 0 || len(times) != len(dfs) {
		return nil, fmt.Errorf("discount curve: need matching nonempty times and discounts")
	}
	prev := 0.0
	for i, t := range times {
		if t <= prev {
			return nil, fmt.Errorf("discount curve: times must be positive and strictly increasing, times[%d]=%v", i, t)
		}
		if dfs[i] <= 0 {
			return nil, fmt.Errorf("discount curve: discount factors must be positive, dfs[%d]=%v", i, dfs[i])
		}
		prev = t
	}
	logDfs := make([]float64, len(dfs))
	for i, d := range dfs {
		logDfs[i] = math.Log(d)
	}
	return &DiscountCurve{
		times:   append([]float64(nil), times...),
		logDfs:  logDfs,
		version: 1,
	}, nil
}

// Discount returns the log-linearly interpolated discount factor.
func (c *DiscountCurve) Discount(t float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return math.Exp(c.logDiscount(t))
}

func (c *DiscountCurve) logDiscount(t float64) float64 {
	if t <= 0 {
		return 0
	}
	n := len(c.times)
	i := sort.SearchFloat64s(c.times, t)
	switch {
	case i == 0:
		return c.logDfs[0] * t / c.times[0]
	case i >= n:
		// Flat forward beyond the last node.
		fwd := c.segmentForward(n - 1)
		return c.logDfs[n-1] - fwd*(t-c.times[n-1])
	default:
		w := (t - c.times[i-1]) / (c.times[i] - c.times[i-1])
		return c.logDfs[i-1]*(1-w) + c.logDfs[i]*w
	}
}

// segmentForward returns the constant forward on segment ending at node i.
func (c *DiscountCurve) segmentForward(i int) float64 {
	if i == 0 {
		return -c.logDfs[0] / c.times[0]
	}
	return (c.logDfs[i-1] - c.logDfs[i]) / (c.times[i] - c.times[i-1])
}

// Forward returns the piecewise constant instantaneous forward rate.
func (c *DiscountCurve) Forward(t float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.times)
	i := sort.SearchFloat64s(c.times, t)
	if i >= n {
		i = n - 1
	}
	return c.segmentForward(i)
}

// Times returns the node grid.
func (c *DiscountCurve) Times() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.times
}

// SetDiscount updates node i and bumps the curve version.
func (c *DiscountCurve) SetDiscount(i int, df float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logDfs[i] = math.Log(df)
	c.version++
}

// Version returns the curve's change counter.
func (c *DiscountCurve) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
