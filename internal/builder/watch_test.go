package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/crossasset/internal/market"
)

func TestWatchListTracksQuoteVersions(t *testing.T) {
	q := market.NewQuote(0.9)
	var w watchList
	w.watch(q)

	assert.True(t, w.stale(), "never snapshotted")

	w.snapshot()
	assert.False(t, w.stale())

	q.SetValue(0.92)
	assert.True(t, w.stale())

	w.snapshot()
	assert.False(t, w.stale())
}

func TestWatchListSeesRelinks(t *testing.T) {
	h := market.NewHandle[market.YieldCurve](market.NewFlatForwardRate(0.02))
	var w watchList
	w.watch(h)
	w.snapshot()
	require.False(t, w.stale())

	h.LinkTo(market.NewFlatForwardRate(0.03))
	assert.True(t, w.stale())
}

func TestWatchListMultipleObservables(t *testing.T) {
	q1 := market.NewQuote(1)
	q2 := market.NewQuote(2)
	var w watchList
	w.watch(q1)
	w.watch(q2)
	w.snapshot()

	q2.SetValue(3)
	assert.True(t, w.stale())
}
