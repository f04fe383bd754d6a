package market

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// DefaultCurve provides risk-neutral survival probabilities for a credit name.
type DefaultCurve interface {
	Versioned
	// Survival returns S(0, t), the probability of no default before t.
	Survival(t float64) float64
}

// FlatHazard is a default curve with a single hazard rate quote.
type FlatHazard struct {
	hazard *Quote
}

// NewFlatHazard builds a flat default curve on the given hazard rate quote.
func NewFlatHazard(hazard *Quote) *FlatHazard {
	return &FlatHazard{hazard: hazard}
}

// NewFlatHazardRate builds a flat default curve on a fresh quote.
func NewFlatHazardRate(h float64) *FlatHazard {
	return &FlatHazard{hazard: NewQuote(h)}
}

// Hazard exposes the underlying quote.
func (c *FlatHazard) Hazard() *Quote { return c.hazard }

// Survival returns exp(-h*t).
func (c *FlatHazard) Survival(t float64) float64 {
	return math.Exp(-c.hazard.Value() * t)
}

// Version returns the hazard quote's version.
func (c *FlatHazard) Version() uint64 {
	return c.hazard.Version()
}

// SurvivalCurve interpolates survival probabilities log-linearly between
// nodes, with constant-hazard extrapolation beyond the last node.
type SurvivalCurve struct {
	mu      sync.RWMutex
	times   []float64
	logSurv []float64
	version uint64
}

// NewSurvivalCurve builds a curve from node times and survival probabilities.
func NewSurvivalCurve(times, survivals []float64) (*SurvivalCurve, error) {
	if len(times) == 0 || len(times) != len(survivals) {
		return nil, fmt.Errorf("survival curve: need matching nonempty times and survivals")
	}
	prev := 0.0
	for i, t := range times {
		if t <= prev {
			return nil, fmt.Errorf("survival curve: times must be positive and strictly increasing, times[%d]=%v", i, t)
		}
		if survivals[i] <= 0 || survivals[i] > 1 {
			return nil, fmt.Errorf("survival curve: survivals must be in (0, 1], survivals[%d]=%v", i, survivals[i])
		}
		prev = t
	}
	logSurv := make([]float64, len(survivals))
	for i, s := range survivals {
		logSurv[i] = math.Log(s)
	}
	return &SurvivalCurve{
		times:   append([]float64(nil), times...),
		logSurv: logSurv,
		version: 1,
	}, nil
}

// Survival returns the log-linearly interpolated survival probability.
func (c *SurvivalCurve) Survival(t float64) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if t <= 0 {
		return 1
	}
	n := len(c.times)
	i := sort.SearchFloat64s(c.times, t)
	switch {
	case i == 0:
		return math.Exp(c.logSurv[0] * t / c.times[0])
	case i >= n:
		var h float64
		if n == 1 {
			h = -c.logSurv[0] / c.times[0]
		} else {
			h = (c.logSurv[n-2] - c.logSurv[n-1]) / (c.times[n-1] - c.times[n-2])
		}
		return math.Exp(c.logSurv[n-1] - h*(t-c.times[n-1]))
	default:
		w := (t - c.times[i-1]) / (c.times[i] - c.times[i-1])
		return math.Exp(c.logSurv[i-1]*(1-w) + c.logSurv[i]*w)
	}
}

// Version returns the curve's change counter.
func (c *SurvivalCurve) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}
