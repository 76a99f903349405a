package clock

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache memoizes the clock built from a given head set, so repeated
// "as of heads" queries against the same frontier do not re-walk the
// change graph's ancestors each time (a pattern borrowed from
// AKJUS-bsc-erigon's hashicorp/golang-lru/v2 usage for hot caches; see
// SPEC_FULL.md "Ambient Stack").
type Cache struct {
	lru *lru.Cache[string, *Clock]
}

// NewCache creates a clock cache holding up to size entries.
func NewCache(size int) *Cache {
	c, _ := lru.New[string, *Clock](size)
	return &Cache{lru: c}
}

// Get returns the cached clock for key, if present.
func (c *Cache) Get(key string) (*Clock, bool) {
	if c == nil || c.lru == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

// Put stores clk under key.
func (c *Cache) Put(key string, clk *Clock) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(key, clk)
}

// Purge drops every cached entry (called when the graph gains a change,
// since new changes invalidate clocks built from heads that no longer
// exist once a descendant is applied).
func (c *Cache) Purge() {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Purge()
}
