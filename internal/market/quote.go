// Package market holds the in-memory market data layer: versioned quotes,
// term structures, relinkable handles and the registry the builders read
// from. Every observable carries a monotonically increasing version so the
// model builder can detect staleness without observer graphs.
package market

import "sync"

// Versioned is anything whose state changes can be detected by comparing
// version counters. Versions only ever increase.
type Versioned interface {
	Version() uint64
}

// Quote is a single observable market value.
type Quote struct {
	mu      sync.RWMutex
	value   float64
	version uint64
}

// NewQuote returns a quote at the given initial value with version 1.
func NewQuote(value float64) *Quote {
	return &Quote{value: value, version: 1}
}

// Value returns the current quote value.
func (q *Quote) Value() float64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.value
}

// SetValue updates the quote and bumps its version.
func (q *Quote) SetValue(v float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.value = v
	q.version++
}

// Version returns the quote's change counter.
func (q *Quote) Version() uint64 {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.version
}
