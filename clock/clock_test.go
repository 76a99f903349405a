package clock_test

import (
	"testing"

	"github.com/Polqt/automerge-go/clock"
	"github.com/Polqt/automerge-go/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockCoversRoot(t *testing.T) {
	c := clock.New()
	assert.True(t, c.Covers(op.Root), "the root object is always covered")
}

func TestClockObserveAndCovers(t *testing.T) {
	c := clock.New()
	c.Observe(1, 3, 10)

	assert.True(t, c.Covers(op.OpId{Counter: 5, Actor: 1}))
	assert.True(t, c.Covers(op.OpId{Counter: 10, Actor: 1}))
	assert.False(t, c.Covers(op.OpId{Counter: 11, Actor: 1}))
	assert.False(t, c.Covers(op.OpId{Counter: 1, Actor: 2}), "unseen actor covers nothing")
}

func TestClockObserveTakesMax(t *testing.T) {
	c := clock.New()
	c.Observe(1, 5, 10)
	c.Observe(1, 2, 20) // lower seq, higher counter
	assert.Equal(t, uint64(5), c.MaxSeq(1))
	assert.Equal(t, uint64(20), c.MaxCounter(1))
}

func TestClockClone(t *testing.T) {
	c := clock.New()
	c.Observe(1, 1, 1)
	cp := c.Clone()
	cp.Observe(1, 2, 2)

	assert.Equal(t, uint64(1), c.MaxCounter(1), "mutating the clone must not affect the original")
	assert.Equal(t, uint64(2), cp.MaxCounter(1))
}

func TestClockMerge(t *testing.T) {
	a := clock.New()
	a.Observe(1, 1, 5)
	b := clock.New()
	b.Observe(1, 2, 3)
	b.Observe(2, 1, 7)

	merged := a.Merge(b)
	assert.Equal(t, uint64(2), merged.MaxSeq(1), "merge takes the pointwise max")
	assert.Equal(t, uint64(5), merged.MaxCounter(1))
	assert.Equal(t, uint64(7), merged.MaxCounter(2))

	// original clocks are untouched
	assert.Equal(t, uint64(5), a.MaxCounter(1))
	assert.Equal(t, uint64(0), a.MaxCounter(2))
}

func TestClockCompare(t *testing.T) {
	a := clock.New()
	a.Observe(1, 1, 5)
	b := clock.New()
	b.Observe(1, 1, 5)
	assert.Equal(t, clock.Equal, clock.Compare(a, b))

	c := clock.New()
	c.Observe(1, 1, 10)
	assert.Equal(t, clock.Less, clock.Compare(a, c))
	assert.Equal(t, clock.Greater, clock.Compare(c, a))

	d := clock.New()
	d.Observe(1, 1, 1)
	d.Observe(2, 1, 99)
	assert.Equal(t, clock.Concurrent, clock.Compare(a, d), "a ahead on actor 1, d ahead on actor 2")
}

func TestCacheGetPutPurge(t *testing.T) {
	cache := clock.NewCache(4)
	_, ok := cache.Get("heads-1")
	assert.False(t, ok)

	clk := clock.New()
	clk.Observe(1, 1, 1)
	cache.Put("heads-1", clk)

	got, ok := cache.Get("heads-1")
	require.True(t, ok)
	assert.Same(t, clk, got)

	cache.Purge()
	_, ok = cache.Get("heads-1")
	assert.False(t, ok, "purge drops every cached entry")
}

func TestNilCacheIsSafe(t *testing.T) {
	var cache *clock.Cache
	assert.NotPanics(t, func() {
		cache.Put("x", clock.New())
		_, ok := cache.Get("x")
		assert.False(t, ok)
		cache.Purge()
	})
}
