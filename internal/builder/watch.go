package builder

import "github.com/wonny/crossasset/internal/market"

// watchList tracks versioned market observables for staleness detection: a
// sub-builder snapshots the versions after a successful build and reports
// stale when any current version differs.
type watchList struct {
	items []market.Versioned
	seen  []uint64
}

func (w *watchList) watch(v market.Versioned) {
	w.items = append(w.items, v)
	w.seen = append(w.seen, 0)
}

// snapshot records the current versions as the last built state.
func (w *watchList) snapshot() {
	for i, it := range w.items {
		w.seen[i] = it.Version()
	}
}

// stale reports whether any watched observable changed since the snapshot.
func (w *watchList) stale() bool {
	for i, it := range w.items {
		if it.Version() != w.seen[i] {
			return true
		}
	}
	return false
}
