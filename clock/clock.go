// Package clock implements per-actor vector clocks (C6 in SPEC_FULL.md):
// the mechanism every query uses to answer "is this op visible as of these
// heads?".
package clock

import "github.com/Polqt/automerge-go/op"

// Clock maps actor_index -> the highest counter and seq observed for that
// actor. Missing entries are treated as 0 (spec.md §4.6).
type Clock struct {
	entries map[int]entry
}

type entry struct {
	maxCounter uint64
	maxSeq     uint64
}

// New returns an empty clock (covers nothing).
func New() *Clock {
	return &Clock{entries: make(map[int]entry)}
}

// Clone returns an independent copy.
func (c *Clock) Clone() *Clock {
	cp := &Clock{entries: make(map[int]entry, len(c.entries))}
	for k, v := range c.entries {
		cp.entries[k] = v
	}
	return cp
}

// Observe records that actor has applied a change up to (seq, maxCounter),
// taking the max with any existing entry.
func (c *Clock) Observe(actor int, seq, maxCounter uint64) {
	e := c.entries[actor]
	if seq > e.maxSeq {
		e.maxSeq = seq
	}
	if maxCounter > e.maxCounter {
		e.maxCounter = maxCounter
	}
	c.entries[actor] = e
}

// Covers reports whether id's counter has been observed for its actor.
func (c *Clock) Covers(id op.OpId) bool {
	if id.IsRoot() {
		return true
	}
	return c.entries[id.Actor].maxCounter >= id.Counter
}

// MaxCounter returns the highest counter observed for actor (0 if none).
func (c *Clock) MaxCounter(actor int) uint64 { return c.entries[actor].maxCounter }

// MaxSeq returns the highest seq observed for actor (0 if none).
func (c *Clock) MaxSeq(actor int) uint64 { return c.entries[actor].maxSeq }

// Merge returns the pointwise maximum of c and other.
func (c *Clock) Merge(other *Clock) *Clock {
	out := c.Clone()
	for k, v := range other.entries {
		e := out.entries[k]
		if v.maxCounter > e.maxCounter {
			e.maxCounter = v.maxCounter
		}
		if v.maxSeq > e.maxSeq {
			e.maxSeq = v.maxSeq
		}
		out.entries[k] = e
	}
	return out
}

// Ordering is the result of comparing two clocks.
type Ordering int

const (
	Equal Ordering = iota
	Less
	Greater
	Concurrent
)

// Compare determines whether c < other, c > other, c == other, or they are
// concurrent, treating missing entries as 0 (spec.md §4.6).
func Compare(a, b *Clock) Ordering {
	actors := make(map[int]struct{})
	for k := range a.entries {
		actors[k] = struct{}{}
	}
	for k := range b.entries {
		actors[k] = struct{}{}
	}
	lessSeen, greaterSeen := false, false
	for actor := range actors {
		av := a.entries[actor].maxCounter
		bv := b.entries[actor].maxCounter
		switch {
		case av < bv:
			lessSeen = true
		case av > bv:
			greaterSeen = true
		}
	}
	switch {
	case lessSeen && greaterSeen:
		return Concurrent
	case lessSeen:
		return Less
	case greaterSeen:
		return Greater
	default:
		return Equal
	}
}
