package market

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// InflationCurve provides the expected growth of a price index relative to
// its base fixing.
type InflationCurve interface {
	Versioned
	// GrowthFactor returns E[I(t)] / I(0) implied by market zero rates.
	GrowthFactor(t float64) float64
	// BaseCPI returns the base index fixing I(0).
	BaseCPI() float64
}

// FlatZeroInflation compounds a single annual zero inflation rate.
type FlatZeroInflation struct {
	base float64
	zero *Quote
}

// NewFlatZeroInflation builds a flat inflation curve.
func NewFlatZeroInflation(baseCPI float64, zero *Quote) *FlatZeroInflation {
	return &FlatZeroInflation{base: baseCPI, zero: zero}
}

// GrowthFactor returns (1+z)^t.
func (c *FlatZeroInflation) GrowthFactor(t float64) float64 {
	return math.Pow(1+c.zero.Value(), t)
}

// BaseCPI returns the base index fixing.
func (c *FlatZeroInflation) BaseCPI() float64 { return c.base }

// Zero exposes the underlying quote.
func (c *FlatZeroInflation) Zero() *Quote { return c.zero }

// Version returns the zero quote's version.
func (c *FlatZeroInflation) Version() uint64 {
	return c.zero.Version()
}

// ZeroInflationCurve interpolates annual zero inflation rates linearly
// between nodes, flat beyond the ends.
type ZeroInflationCurve struct {
	mu      sync.RWMutex
	base    float64
	times   []float64
	zeros   []float64
	version uint64
}

// NewZeroInflationCurve builds an interpolated inflation curve.
func NewZeroInflationCurve(baseCPI float64, times, zeros []float64) (*ZeroInflationCurve, error) {
	if baseCPI <= 0 {
		return nil, fmt.Errorf("inflation curve: base CPI must be positive, got %v", baseCPI)
	}
	if len(times) == 0 || len(times) != len(zeros) {
		return nil, fmt.Errorf("inflation curve: need matching nonempty times and zeros")
	}
	prev := 0.0
	for i, t := range times {
		if t <= prev {
			return nil, fmt.Errorf("inflation curve: times must be positive and strictly increasing, times[%d]=%v", i, t)
		}
		prev = t
	}
	return &ZeroInflationCurve{
		base:    baseCPI,
		times:   append([]float64(nil), times...),
		zeros:   append([]float64(nil), zeros...),
		version: 1,
	}, nil
}

// GrowthFactor returns (1+z(t))^t with z linearly interpolated.
func (c *ZeroInflationCurve) GrowthFactor(t float64) float64 {
	if t <= 0 {
		return 1
	}
	return math.Pow(1+c.zeroRate(t), t)
}

func (c *ZeroInflationCurve) zeroRate(t float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := len(c.times)
	i := sort.SearchFloat64s(c.times, t)
	switch {
	case i == 0:
		return c.zeros[0]
	case i >= n:
		return c.zeros[n-1]
	default:
		w := (t - c.times[i-1]) / (c.times[i] - c.times[i-1])
		return c.zeros[i-1]*(1-w) + c.zeros[i]*w
	}
}

// BaseCPI returns the base index fixing.
func (c *ZeroInflationCurve) BaseCPI() float64 { return c.base }

// SetZero updates node i and bumps the curve version.
func (c *ZeroInflationCurve) SetZero(i int, z float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zeros[i] = z
	c.version++
}

// Version returns the curve's change counter.
func (c *ZeroInflationCurve) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
