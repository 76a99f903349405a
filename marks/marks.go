// Package marks implements the range-annotation state machine (C11 in
// SPEC_FULL.md): given a text object's op tree, compute the set of named
// mark ranges active over it (spec.md §4.11).
package marks

import (
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/optree"
)

// Range is one resolved mark: a name/value pair active over the half-open
// position range [Start, End) of a text object, as of the tree's current
// visible state.
type Range struct {
	Name  string
	Value op.Value
	Start int
	End   int

	// beginID is the MarkBegin op's id, kept for the Lamport tie-break
	// between overlapping same-named marks (spec.md §4.11 "later-created
	// marks override earlier marks with the same name").
	beginID op.OpId
}

type openMark struct {
	name   string
	value  op.Value
	start  int
	expand op.MarkExpand
}

// Compute walks tree's canonical order once, tracking text position, and
// pairs each MarkBegin with the MarkEnd whose id is one greater (same
// actor, consecutive counter, spec.md §4.11), emitting a Range per closed
// pair. MarkBegin ops with no matching MarkEnd yet applied are omitted.
func Compute(tree *optree.Tree) []Range {
	active := make(map[op.OpId]*openMark)
	var out []Range
	pos := 0

	for _, e := range tree.VisibleInOrder() {
		switch e.Op.Action.Kind {
		case op.ActionMarkBegin:
			active[e.Op.Id] = &openMark{
				name:   e.Op.Action.MarkName,
				value:  e.Op.Action.MarkValue,
				start:  pos,
				expand: e.Op.Action.MarkExpand,
			}
		case op.ActionMarkEnd:
			beginID := op.OpId{Counter: e.Op.Id.Counter - 1, Actor: e.Op.Id.Actor}
			if om, ok := active[beginID]; ok {
				out = append(out, Range{
					Name:    om.name,
					Value:   om.value,
					Start:   om.start,
					End:     pos,
					beginID: beginID,
				})
				delete(active, beginID)
			}
		default:
			pos += e.Width()
		}
	}
	return out
}

// ActiveAt returns the name/value pairs active at position pos, resolving
// overlapping same-named ranges to the one whose MarkBegin has the
// greatest Lamport id (spec.md §4.11).
func ActiveAt(ranges []Range, idx op.SortedIndexer, pos int) map[string]op.Value {
	winners := make(map[string]Range)
	for _, r := range ranges {
		if pos < r.Start || pos >= r.End {
			continue
		}
		cur, ok := winners[r.Name]
		if !ok || op.Less(cur.beginID, r.beginID, idx) {
			winners[r.Name] = r
		}
	}
	out := make(map[string]op.Value, len(winners))
	for name, r := range winners {
		out[name] = r.Value
	}
	return out
}
