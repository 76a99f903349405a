// Package actor interns actor identities and property names (C1 in
// SPEC_FULL.md) and exposes the total order over actor identities used
// everywhere else in the module as the Lamport tie-break.
package actor

import (
	"bytes"

	"github.com/tidwall/btree"
)

// ID is an opaque actor identity, typically 16 bytes.
type ID []byte

// String renders an ID as lowercase hex, for logging and demo output.
func (a ID) String() string {
	const hex = "0123456789abcdef"
	out := make([]byte, len(a)*2)
	for i, b := range a {
		out[i*2] = hex[b>>4]
		out[i*2+1] = hex[b&0xf]
	}
	return string(out)
}

// Equal reports whether two actor ids are byte-identical.
func (a ID) Equal(b ID) bool { return bytes.Equal(a, b) }

// Table interns actor byte strings in first-seen order and derives the
// sorted (lexicographic) permutation used for Lamport tie-breaks.
//
// The sorted view is backed by github.com/tidwall/btree, which is a fine
// fit here: this index is a plain sorted set with no augmentation
// requirement, unlike the order-statistic op tree (optree.Tree), which
// needs per-subtree aggregate caches no off-the-shelf B-tree in the
// retrieved pack exposes (see DESIGN.md).
type Table struct {
	byIndex []ID           // actor_index -> bytes, first-seen order
	index   map[string]int // bytes -> actor_index
	sorted  *btree.BTreeG[sortedEntry]
	order   []int // sorted_index -> actor_index, rebuilt lazily
	dirty   bool
}

type sortedEntry struct {
	bytes string
	index int
}

func sortedLess(a, b sortedEntry) bool { return a.bytes < b.bytes }

// NewTable creates an empty actor table.
func NewTable() *Table {
	return &Table{
		index:  make(map[string]int),
		sorted: btree.NewBTreeG(sortedLess),
	}
}

// Intern returns the dense actor_index for id, assigning a new one in
// first-seen order if id has not been seen before.
func (t *Table) Intern(id ID) int {
	key := string(id)
	if idx, ok := t.index[key]; ok {
		return idx
	}
	idx := len(t.byIndex)
	cp := make(ID, len(id))
	copy(cp, id)
	t.byIndex = append(t.byIndex, cp)
	t.index[key] = idx
	t.sorted.Set(sortedEntry{bytes: key, index: idx})
	t.dirty = true
	return idx
}

// Lookup returns the actor_index for id, if interned.
func (t *Table) Lookup(id ID) (int, bool) {
	idx, ok := t.index[string(id)]
	return idx, ok
}

// Bytes returns the actor id bytes for a dense index.
func (t *Table) Bytes(index int) ID { return t.byIndex[index] }

// Len returns the number of interned actors.
func (t *Table) Len() int { return len(t.byIndex) }

// rebuild recomputes the sorted_index -> actor_index permutation.
func (t *Table) rebuild() {
	if !t.dirty {
		return
	}
	t.order = t.order[:0]
	t.sorted.Scan(func(e sortedEntry) bool {
		t.order = append(t.order, e.index)
		return true
	})
	t.dirty = false
}

// SortedIndex returns the position of actor_index in lexicographic order
// over all interned actor bytes. Used as the Lamport tie-break.
func (t *Table) SortedIndex(actorIndex int) int {
	t.rebuild()
	// t.order is small (one entry per actor in a document); linear scan is
	// fine and keeps this independent of the btree's internal node layout.
	for pos, idx := range t.order {
		if idx == actorIndex {
			return pos
		}
	}
	return -1
}

// SortedActors returns actor_index values in lexicographic order of their
// bytes, used by the columnar encoder to list "other-actors" deterministically.
func (t *Table) SortedActors() []int {
	t.rebuild()
	out := make([]int, len(t.order))
	copy(out, t.order)
	return out
}

// Less reports whether actor index a sorts before actor index b, i.e. the
// comparison used in every Lamport tie-break.
func (t *Table) Less(a, b int) bool {
	return t.SortedIndex(a) < t.SortedIndex(b)
}

// PropTable interns map/table property names (strings) into small integer
// indices and exposes their sorted (canonical key) order.
type PropTable struct {
	byIndex []string
	index   map[string]int
	sorted  *btree.BTreeG[string]
}

// NewPropTable creates an empty property-name table.
func NewPropTable() *PropTable {
	return &PropTable{
		index:  make(map[string]int),
		sorted: btree.NewBTreeG(func(a, b string) bool { return a < b }),
	}
}

// Intern returns the dense index for prop, assigning one if new.
func (p *PropTable) Intern(prop string) int {
	if idx, ok := p.index[prop]; ok {
		return idx
	}
	idx := len(p.byIndex)
	p.byIndex = append(p.byIndex, prop)
	p.index[prop] = idx
	p.sorted.Set(prop)
	return idx
}

// Lookup returns the dense index for prop, if interned.
func (p *PropTable) Lookup(prop string) (int, bool) {
	idx, ok := p.index[prop]
	return idx, ok
}

// Name returns the property string for a dense index.
func (p *PropTable) Name(index int) string { return p.byIndex[index] }

// SortedKeys returns all interned property names in canonical (lexicographic)
// order, the order map/table keys() must honor.
func (p *PropTable) SortedKeys() []string {
	out := make([]string, 0, p.sorted.Len())
	p.sorted.Scan(func(s string) bool {
		out = append(out, s)
		return true
	})
	return out
}

// Compare is a convenience for sort.Strings-style comparisons against
// property names pulled from two different ops.
func Compare(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
