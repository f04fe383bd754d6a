package builder

import "sync"

// Registry tracks the per-factor sub-builders of one model build so
// staleness can be probed per factor.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	builders map[string]SubBuilder
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]SubBuilder)}
}

// Add registers a sub-builder under its key. Re-adding a key replaces the
// previous entry but keeps its position.
func (r *Registry) Add(b SubBuilder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := b.Key()
	if _, ok := r.builders[key]; !ok {
		r.order = append(r.order, key)
	}
	r.builders[key] = b
}

// Get looks up a sub-builder by its CLASS:NAME key.
func (r *Registry) Get(key string) (SubBuilder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[key]
	return b, ok
}

// All returns the sub-builders in registration order.
func (r *Registry) All() []SubBuilder {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SubBuilder, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.builders[key])
	}
	return out
}

// Stale returns the keys of all sub-builders whose watched market data
// changed since their last calibration.
func (r *Registry) Stale() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stale []string
	for _, key := range r.order {
		if r.builders[key].RequiresRecalibration() {
			stale = append(stale, key)
		}
	}
	return stale
}
