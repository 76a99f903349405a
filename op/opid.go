// Package op defines the core operation record (C2 in SPEC_FULL.md): OpId,
// ObjectId, Key, Action and the scalar value variants, plus the comparisons
// used throughout the rest of the module.
package op

import "fmt"

// OpId names an operation by (counter, actor_index). (0, 0) is reserved for
// the root object and never minted for a real op.
type OpId struct {
	Counter uint64
	Actor   int // dense actor_index, NOT sorted_index
}

// Root is the distinguished OpId naming the document root object.
var Root = OpId{Counter: 0, Actor: 0}

// IsRoot reports whether id names the root object.
func (id OpId) IsRoot() bool { return id.Counter == 0 && id.Actor == 0 }

func (id OpId) String() string { return fmt.Sprintf("%d@%d", id.Counter, id.Actor) }

// SortedIndexer maps a dense actor_index to its position in lexicographic
// order over actor bytes. actor.Table implements this.
type SortedIndexer interface {
	SortedIndex(actorIndex int) int
}

// Less implements the Lamport order: compare by counter, then by
// sorted-actor-index. Ties on both fields only occur when a = b, since
// OpIds are never reused (spec.md §3 "OpId: ... never reused").
func Less(a, b OpId, idx SortedIndexer) bool {
	if a.Counter != b.Counter {
		return a.Counter < b.Counter
	}
	return idx.SortedIndex(a.Actor) < idx.SortedIndex(b.Actor)
}

// Equal reports whether two OpIds name the same operation.
func Equal(a, b OpId) bool { return a.Counter == b.Counter && a.Actor == b.Actor }

// Compare returns -1, 0, 1 for a<b, a==b, a>b under Lamport order.
func Compare(a, b OpId, idx SortedIndexer) int {
	if Equal(a, b) {
		return 0
	}
	if Less(a, b, idx) {
		return -1
	}
	return 1
}

// SortIds sorts a slice of OpId in-place under Lamport order.
func SortIds(ids []OpId, idx SortedIndexer) {
	// Insertion sort: pred/succ sets are small (bounded by concurrent
	// actors touching one key), so this stays cheap and allocation-free.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && Less(ids[j], ids[j-1], idx); j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
}
