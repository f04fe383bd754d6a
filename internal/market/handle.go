package market

import (
	"sync"
)

// Handle is a relinkable indirection to a versioned target. Calibration
// stages point engines at different curves by relinking a shared handle
// instead of rebuilding them. The handle's version advances both when it is
// relinked and when the linked target changes, so consumers see every change
// through a single counter.
type Handle[T Versioned] struct {
	mu      sync.RWMutex
	target  T
	linked  bool
	relinks uint64
}

// NewHandle returns a handle linked to the given target.
func NewHandle[T Versioned](target T) *Handle[T] {
	return &Handle[T]{target: target, linked: true, relinks: 1}
}

// NewEmptyHandle returns an unlinked handle. CurrentLink panics until the
// first LinkTo, matching the fail-fast behaviour expected from builders that
// forgot to attach a curve.
func NewEmptyHandle[T Versioned]() *Handle[T] {
	return &Handle[T]{}
}

// LinkTo points the handle at a new target.
func (h *Handle[T]) LinkTo(target T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = target
	h.linked = true
	h.relinks++
}

// CurrentLink returns the linked target.
func (h *Handle[T]) CurrentLink() T {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.linked {
		panic("market: handle is not linked")
	}
	return h.target
}

// Linked reports whether a target is attached.
func (h *Handle[T]) Linked() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.linked
}

// Version combines the relink counter with the target's version. Both
// counters are monotone, so the sum is monotone as well.
func (h *Handle[T]) Version() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.linked {
		return 0
	}
	return h.relinks + h.target.Version()
}
