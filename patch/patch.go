// Package patch implements the patch log (C10 in SPEC_FULL.md): records of
// the observable effects of applying ops, in document order, so consumers
// can build incremental view updates without re-diffing the whole
// document (spec.md §4.10).
package patch

import (
	"github.com/Polqt/automerge-go/objects"
	"github.com/Polqt/automerge-go/op"
)

// Kind tags the variant held by a Patch.
type Kind int

const (
	KindPutMap Kind = iota
	KindPutSeq
	KindInsert
	KindSpliceText
	KindDeleteMap
	KindDeleteSeq
	KindIncrement
	KindMark
	KindConflict
)

// Patch is one entry in the log. Only the fields relevant to Kind are
// meaningful; Path is root-first and always present (empty for an edit at
// the document root).
type Patch struct {
	Kind Kind
	Path []objects.PathSegment
	Obj  op.ObjectId

	Prop  string // map key, for KindPutMap/KindDeleteMap/KindConflict
	Index int    // sequence index, for KindPutSeq/KindInsert/KindSpliceText/KindDeleteSeq/KindIncrement/KindMark

	Value op.Value // KindPutMap/KindPutSeq/single-element KindInsert

	// Values holds every inserted value for a multi-insert run (KindInsert
	// after coalescing) or every code unit's worth of text for
	// KindSpliceText (Text holds the concatenated string instead).
	Values []op.Value
	Text   string

	// DeleteCount is the run length for KindDeleteSeq.
	DeleteCount int

	IncrementBy int64

	MarkName  string
	MarkValue op.Value

	// lastOpID is the id of the op that produced this entry's last
	// element, used only to test whether a following Insert is
	// contiguous under the coalescing rule (spec.md §4.10).
	lastOpID op.OpId
}

// Sink receives patches as they are produced. Document.Observe registers
// one or more sinks; each applied change's patches are delivered to every
// registered sink in emission order.
type Sink interface {
	OnPatch(p Patch)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(Patch)

func (f SinkFunc) OnPatch(p Patch) { f(p) }

// Log accumulates patches for one change application, coalescing adjacent
// entries per spec.md §4.10 before handing them to registered sinks.
type Log struct {
	entries []Patch
}

// NewLog returns an empty patch log.
func NewLog() *Log { return &Log{} }

// Entries returns the accumulated, already-coalesced patches.
func (l *Log) Entries() []Patch { return l.entries }

// PutMap records a map/table key assignment.
func (l *Log) PutMap(path []objects.PathSegment, obj op.ObjectId, prop string, v op.Value) {
	l.entries = append(l.entries, Patch{Kind: KindPutMap, Path: path, Obj: obj, Prop: prop, Value: v})
}

// DeleteMap records a map/table key removal.
func (l *Log) DeleteMap(path []objects.PathSegment, obj op.ObjectId, prop string) {
	l.entries = append(l.entries, Patch{Kind: KindDeleteMap, Path: path, Obj: obj, Prop: prop})
}

// Increment records a counter delta.
func (l *Log) Increment(path []objects.PathSegment, obj op.ObjectId, prop string, index int, by int64) {
	l.entries = append(l.entries, Patch{Kind: KindIncrement, Path: path, Obj: obj, Prop: prop, Index: index, IncrementBy: by})
}

// PutSeq records a list/text element overwrite (a new conflicting value at
// an already-occupied position, not an insertion).
func (l *Log) PutSeq(path []objects.PathSegment, obj op.ObjectId, index int, v op.Value) {
	l.entries = append(l.entries, Patch{Kind: KindPutSeq, Path: path, Obj: obj, Index: index, Value: v})
}

// Conflict records that a key now has more than one visible value.
func (l *Log) Conflict(path []objects.PathSegment, obj op.ObjectId, prop string) {
	l.entries = append(l.entries, Patch{Kind: KindConflict, Path: path, Obj: obj, Prop: prop})
}

// Mark records a newly applied mark range.
func (l *Log) Mark(path []objects.PathSegment, obj op.ObjectId, start, end int, name string, v op.Value) {
	l.entries = append(l.entries, Patch{Kind: KindMark, Path: path, Obj: obj, Index: start, DeleteCount: end - start, MarkName: name, MarkValue: v})
}

// Insert records a single-element sequence insert at index, coalescing
// into the previous entry when it is a contiguous KindInsert on the same
// object whose last op id is opID minus one (spec.md §4.10 coalescing
// rule #1).
func (l *Log) Insert(path []objects.PathSegment, obj op.ObjectId, index int, v op.Value, opID op.OpId) {
	if n := len(l.entries); n > 0 {
		last := &l.entries[n-1]
		if last.Kind == KindInsert && last.Obj == obj && last.Index+len(last.Values) == index &&
			opID.Actor == last.lastOpID.Actor && opID.Counter == last.lastOpID.Counter+1 {
			last.Values = append(last.Values, v)
			last.lastOpID = opID
			return
		}
	}
	l.entries = append(l.entries, Patch{
		Kind: KindInsert, Path: path, Obj: obj, Index: index,
		Value: v, Values: []op.Value{v}, lastOpID: opID,
	})
}

// SpliceText records a text insertion, coalescing into the previous entry
// when it is a contiguous KindSpliceText on the same object (spec.md
// §4.10 coalescing rule #3: consecutive text inserts with an unchanged
// mark set).
func (l *Log) SpliceText(path []objects.PathSegment, obj op.ObjectId, index int, text string) {
	if n := len(l.entries); n > 0 {
		last := &l.entries[n-1]
		if last.Kind == KindSpliceText && last.Obj == obj && last.Index+len([]rune(last.Text)) == index {
			last.Text += text
			return
		}
	}
	l.entries = append(l.entries, Patch{Kind: KindSpliceText, Path: path, Obj: obj, Index: index, Text: text})
}

// DeleteSeq records a sequence deletion run, coalescing adjacent deletes
// at the same index (spec.md §4.10 coalescing rule #2: repeated deletion
// at a fixed index, since each delete shifts later elements left).
func (l *Log) DeleteSeq(path []objects.PathSegment, obj op.ObjectId, index int) {
	if n := len(l.entries); n > 0 {
		last := &l.entries[n-1]
		if last.Kind == KindDeleteSeq && last.Obj == obj && last.Index == index {
			last.DeleteCount++
			return
		}
	}
	l.entries = append(l.entries, Patch{Kind: KindDeleteSeq, Path: path, Obj: obj, Index: index, DeleteCount: 1})
}

// Dispatch sends every entry in l, in order, to every sink.
func (l *Log) Dispatch(sinks []Sink) {
	for _, p := range l.entries {
		for _, s := range sinks {
			s.OnPatch(p)
		}
	}
}
