package market

import (
	"fmt"
	"sort"
	"sync"
)

// VolCurve provides Black volatilities by expiry.
type VolCurve interface {
	Versioned
	// Vol returns the Black volatility for the given expiry.
	Vol(expiry float64) float64
}

// FlatVol is a single-quote volatility.
type FlatVol struct {
	vol *Quote
}

// NewFlatVol builds a flat volatility on the given quote.
func NewFlatVol(vol *Quote) *FlatVol {
	return &FlatVol{vol: vol}
}

// NewFlatVolValue builds a flat volatility on a fresh quote.
func NewFlatVolValue(v float64) *FlatVol {
	return &FlatVol{vol: NewQuote(v)}
}

// Vol returns the flat volatility.
func (c *FlatVol) Vol(expiry float64) float64 {
	return c.vol.Value()
}

// Quote exposes the underlying quote.
func (c *FlatVol) Quote() *Quote { return c.vol }

// Version returns the quote's version.
func (c *FlatVol) Version() uint64 {
	return c.vol.Version()
}

// InterpolatedVol interpolates volatilities linearly in expiry, flat beyond
// the ends.
type InterpolatedVol struct {
	mu      sync.RWMutex
	times   []float64
	vols    []float64
	version uint64
}

// NewInterpolatedVol builds an expiry-interpolated volatility curve.
func NewInterpolatedVol(times, vols []float64) (*InterpolatedVol, error) {
	if len(times) == 0 || len(times) != len(vols) {
		return nil, fmt.Errorf("vol curve: need matching nonempty times and vols")
	}
	prev := 0.0
	for i, t := range times {
		if t <= prev {
			return nil, fmt.Errorf("vol curve: times must be positive and strictly increasing, times[%d]=%v", i, t)
		}
		if vols[i] < 0 {
			return nil, fmt.Errorf("vol curve: vols must be nonnegative, vols[%d]=%v", i, vols[i])
		}
		prev = t
	}
	return &InterpolatedVol{
		times:   append([]float64(nil), times...),
		vols:    append([]float64(nil), vols...),
		version: 1,
	}, nil
}

// Vol returns the interpolated volatility.
func (c *InterpolatedVol) Vol(expiry float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.times)
	i := sort.SearchFloat64s(c.times, expiry)
	switch {
	case i == 0:
		return c.vols[0]
	case i >= n:
		return c.vols[n-1]
	default:
		w := (expiry - c.times[i-1]) / (c.times[i] - c.times[i-1])
		return c.vols[i-1]*(1-w) + c.vols[i]*w
	}
}

// SetVol updates node i and bumps the curve version.
func (c *InterpolatedVol) SetVol(i int, v float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vols[i] = v
	c.version++
}

// Version returns the curve's change counter.
func (c *InterpolatedVol) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
