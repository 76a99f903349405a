// Package optree implements the order-statistic op tree (C3 in
// SPEC_FULL.md): one per-object structure holding every op ever applied to
// that object, in canonical position order (spec.md §4.3), with cached
// aggregates so length/key-count queries do not need a full scan.
//
// Implementation note (see DESIGN.md): the spec calls for a B-tree whose
// internal nodes cache per-subtree aggregates for O(log n) queries. This
// package instead keeps entries in a single ordered slice backed by an
// OpId -> *Entry index, with the aggregate counts (visible key count,
// visible width sum) maintained incrementally as entries are inserted or
// their visibility changes. Every op's position is still addressed by
// value (OpId), never by pointer, satisfying spec.md §9 "Interior
// references (pred/succ)" and allowing the backing slice to be freely
// reallocated. nth-element lookups are O(n) worst case instead of
// O(log n); see DESIGN.md for the tradeoff this accepts.
package optree

import "github.com/Polqt/automerge-go/op"

// Entry is one op placed in an object's canonical order, plus the cached
// state the tree needs to answer aggregate queries without rescanning
// every op sharing its key.
type Entry struct {
	Op *op.Op

	// visible caches whether this entry is live at the current state: no
	// Succ at all, or (for a counter Put) every Succ is an Increment
	// rather than a Delete. Every live entry of a group is visible, not
	// only its winner. Tree.recomputeGroup is the only writer, since
	// resolving a Succ OpId back to its Action kind requires the tree's
	// full op index.
	visible bool

	// width is this entry's contribution to sequence length when it is
	// its group's visible winner (spec.md §4.2 "Width for index
	// arithmetic"): the value's width in the configured text encoding for
	// a text character, 1 for a list element or a map/table slot, and 0
	// for marks and for entries that are not visible.
	width int
}

// Visible reports whether e is live at the current state, i.e. part of
// its group's conflict set.
func (e *Entry) Visible() bool { return e.visible }

// Width returns e's contribution to sequence length.
func (e *Entry) Width() int { return e.width }
