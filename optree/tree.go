package optree

import (
	"sort"

	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/clock"
	"github.com/Polqt/automerge-go/op"
)

// group is the set of ops sharing one key: a map property, or a list/text
// element id. For sequence objects a group also occupies one slot in the
// tree's canonical position order; for map/table objects position is
// irrelevant and groups are only ever looked up by key.
type group struct {
	key Key

	// insertedAfter is the reference element the group's defining
	// (Insert) op named; only meaningful for sequence objects, used to
	// replay the RGA tie-break when a later concurrent insert targets
	// the same reference.
	insertedAfter op.ElemId

	// entries holds every op filed under this key, in the order they
	// were applied. The visible winner is whichever entry has no Succ
	// (or, for a counter, no Succ that is a Delete), preferring the
	// highest OpId under Lamport order among ties (spec.md §4.2
	// "deterministic conflict winner").
	entries []*Entry

	winner *Entry
}

// Key re-exports op.Key so callers working with a Tree do not need a
// separate import for the common case.
type Key = op.Key

// Tree is the canonical-order op store for one object.
type Tree struct {
	ObjId   op.ObjectId
	ObjType op.ObjType

	idx     op.SortedIndexer
	textEnc op.TextEncoding

	// order holds one group per canonical position, for sequence objects
	// only (IsSequence() == false leaves this nil).
	order []*group

	groups map[op.Key]*group
	byId   map[op.OpId]*Entry

	visibleLen int
}

// New creates an empty tree for an object of kind objType. idx resolves
// actor sort order for Lamport comparisons; textEnc selects the width rule
// used when objType is Text (spec.md §4.2).
func New(objId op.ObjectId, objType op.ObjType, idx op.SortedIndexer, textEnc op.TextEncoding) *Tree {
	return &Tree{
		ObjId:   objId,
		ObjType: objType,
		idx:     idx,
		textEnc: textEnc,
		groups:  make(map[op.Key]*group),
		byId:    make(map[op.OpId]*Entry),
	}
}

// Lookup resolves id to the Entry holding the op, if the tree has seen it.
func (t *Tree) Lookup(id op.OpId) (*Entry, bool) {
	e, ok := t.byId[id]
	return e, ok
}

// Len returns the current visible sequence length (list/text) or visible
// key count (map/table), in O(1).
func (t *Tree) Len() int { return t.visibleLen }

// InsertNew places a brand-new op o into the tree. For a sequence object
// with o.Insert set, this creates a new group at the RGA-ordered position;
// otherwise o is filed into the existing group named by o.Key (a later
// Put/Delete/Increment/MarkBegin/MarkEnd targeting an already-created
// element or map slot).
func (t *Tree) InsertNew(o *op.Op) error {
	if _, exists := t.byId[o.Id]; exists {
		return amerr.Wrap(amerr.ErrDuplicateChange, "op already present in object tree")
	}

	e := &Entry{Op: o}

	var g *group
	if o.Insert {
		ownKey := op.ElemKey(op.ElemFromId(o.Id))
		g = &group{key: ownKey, insertedAfter: o.Key.Elem}
		g.entries = append(g.entries, e)
		pos, err := t.insertionIndex(o.Key.Elem, o.Id)
		if err != nil {
			return err
		}
		t.order = append(t.order, nil)
		copy(t.order[pos+1:], t.order[pos:])
		t.order[pos] = g
		t.groups[ownKey] = g
	} else {
		var ok bool
		g, ok = t.groups[o.Key]
		if !ok {
			// Map/table keys have no prior Insert to create their group (a
			// sequence element's group is always created by the Insert
			// that made the element, so a missing group there really is
			// an unknown element); the first Put/Make/Delete/Increment
			// against a given map key creates it.
			if !o.Key.IsMap {
				return amerr.Wrap(amerr.ErrUnknownObject, "op targets a key with no existing group")
			}
			g = &group{key: o.Key}
			t.groups[o.Key] = g
		}
		g.entries = append(g.entries, e)
	}

	t.byId[o.Id] = e
	t.recomputeGroup(g)
	return nil
}

// ApplySuccessor records that succ (a Delete, Increment, or overwriting
// Put/MarkBegin/MarkEnd already filed via InsertNew) supersedes target,
// and recomputes the owning group's visible winner. Callers resolve
// conflicting Pred sets one id at a time.
func (t *Tree) ApplySuccessor(target op.OpId, succ *op.Op) error {
	te, ok := t.byId[target]
	if !ok {
		return amerr.Wrap(amerr.ErrUnknownObject, "successor targets an unknown op")
	}
	te.Op.AddSuccessor(succ.Id, t.idx)

	g := t.groupOf(te)
	if g == nil {
		return amerr.Wrap(amerr.ErrUnknownObject, "op entry has no owning group")
	}
	t.recomputeGroup(g)
	return nil
}

func (t *Tree) groupOf(e *Entry) *group {
	key := e.Op.Key
	if e.Op.Insert {
		key = op.ElemKey(op.ElemFromId(e.Op.Id))
	}
	return t.groups[key]
}

// recomputeGroup recomputes g's conflict set (every entry with no covering
// successor, spec.md §4.9 get_all) and its Lamport-greatest winner, then
// adjusts the tree's cached visible length by the winner's width delta.
// Every live entry stays marked visible, not just the winner: get_all must
// see the whole conflict set (S1's "get_all returns both values"), while
// length()/nth-element/text() walk g.winner alone so concurrent puts on one
// key never get double-counted.
func (t *Tree) recomputeGroup(g *group) {
	before := 0
	if g.winner != nil {
		before = g.winner.width
	}

	var best *Entry
	for _, e := range g.entries {
		if !t.entryVisible(e) {
			e.visible = false
			e.width = 0
			continue
		}
		e.visible = true
		e.width = t.widthOf(e.Op)
		if best == nil || op.Less(best.Op.Id, e.Op.Id, t.idx) {
			best = e
		}
	}
	g.winner = best

	after := 0
	if best != nil {
		after = best.width
	}
	t.visibleLen += after - before
}

func (t *Tree) widthOf(o *op.Op) int {
	if o.Action.Kind == op.ActionMarkBegin || o.Action.Kind == op.ActionMarkEnd {
		// Marks are zero-width anchors: they occupy a position in
		// canonical order but never contribute to length() or text().
		return 0
	}
	switch t.ObjType {
	case op.ObjTypeText:
		return o.Action.Value.Width(t.textEnc)
	case op.ObjTypeList:
		return 1
	default:
		return 1 // map/table slot counts as one key
	}
}

// entryVisible decides whether e's op is still "live": no successor, or
// (for a counter Put) every successor is an Increment rather than a
// Delete.
func (t *Tree) entryVisible(e *Entry) bool {
	if e.Op.Action.Kind == op.ActionDelete || e.Op.Action.Kind == op.ActionIncrement {
		return false
	}
	if len(e.Op.Succ) == 0 {
		return true
	}
	if e.Op.Action.Kind == op.ActionPut && e.Op.Action.Value.IsCounter() {
		for _, sid := range e.Op.Succ {
			se, ok := t.byId[sid]
			if !ok {
				continue
			}
			if se.Op.Action.Kind == op.ActionDelete {
				return false
			}
		}
		return true
	}
	return false
}

// CounterValue sums a counter Put's stored value with every Increment
// filed against it, as of the current (no-clock) state.
func (t *Tree) CounterValue(e *Entry) int64 {
	total := e.Op.Action.Value.Counter
	for _, sid := range e.Op.Succ {
		se, ok := t.byId[sid]
		if !ok || se.Op.Action.Kind != op.ActionIncrement {
			continue
		}
		total += se.Op.Action.IncrementBy
	}
	return total
}

// positionOfElem returns the order index of the group whose own identity
// is ref (i.e. ref.Id is that group's defining Insert op).
func (t *Tree) positionOfElem(ref op.ElemId) (int, bool) {
	for i, g := range t.order {
		if op.ElemEqual(g.key.Elem, ref) {
			return i, true
		}
	}
	return 0, false
}

// insertionIndex implements the RGA tie-break rule (spec.md §4.3): a new
// element is placed immediately after its reference, but after any other
// element that some other op already inserted at the same reference with a
// higher OpId (and after anything transitively inserted into that
// element's own subtree), so concurrent inserts at one location converge
// on the same order everywhere.
func (t *Tree) insertionIndex(ref op.ElemId, newId op.OpId) (int, error) {
	if ref.IsHead() {
		return t.skipForward(0, op.HeadElem, newId), nil
	}
	pos, ok := t.positionOfElem(ref)
	if !ok {
		return 0, amerr.Wrap(amerr.ErrUnknownObject, "insert references an unknown element")
	}
	return t.skipForward(pos+1, ref, newId), nil
}

func (t *Tree) skipForward(pos int, parent op.ElemId, newId op.OpId) int {
	for pos < len(t.order) {
		g := t.order[pos]
		if !op.ElemEqual(g.insertedAfter, parent) {
			break
		}
		childId := g.key.Elem.Id
		if op.Compare(childId, newId, t.idx) > 0 {
			pos = t.skipForward(pos+1, g.key.Elem, newId)
			continue
		}
		break
	}
	return pos
}

// VisibleInOrder returns every group's visible winner, in canonical
// position order (sequence objects only).
func (t *Tree) VisibleInOrder() []*Entry {
	out := make([]*Entry, 0, len(t.order))
	for _, g := range t.order {
		if g.winner != nil {
			out = append(out, g.winner)
		}
	}
	return out
}

// NthVisible returns the n'th visible element (0-indexed) by sequence
// position, honoring text width so n counts code units/graphemes rather
// than ops when ObjType is Text.
func (t *Tree) NthVisible(n int) (*Entry, bool) {
	if n < 0 {
		return nil, false
	}
	remaining := n
	for _, g := range t.order {
		if g.winner == nil {
			continue
		}
		if remaining < g.winner.width {
			return g.winner, true
		}
		remaining -= g.winner.width
	}
	return nil, false
}

// ElemAt returns the ElemId naming position n, for get_cursor.
func (t *Tree) ElemAt(n int) (op.ElemId, bool) {
	e, ok := t.NthVisible(n)
	if !ok {
		return op.ElemId{}, false
	}
	return op.ElemId{Id: e.Op.Id}, true
}

// PositionOf returns the current sequence index of elem, or -1 if elem no
// longer has a visible winner (get_cursor's "resolve back to an index").
func (t *Tree) PositionOf(elem op.ElemId) int {
	idx := 0
	for _, g := range t.order {
		if g.winner == nil {
			continue
		}
		if op.ElemEqual(g.key.Elem, elem) {
			return idx
		}
		idx += g.winner.width
	}
	return -1
}

// MapEntry returns the winning (possibly nil) and all conflicting entries
// for a map/table property.
func (t *Tree) MapEntry(prop string) (winner *Entry, all []*Entry) {
	g, ok := t.groups[op.MapKey(prop)]
	if !ok {
		return nil, nil
	}
	return g.winner, visibleEntries(g.entries)
}

// Conflicts returns every currently-visible entry sharing elem's group.
// Concurrent Puts that overwrite the same element leave several entries
// visible, so the result can be longer than one (the sequence counterpart
// of MapEntry/get_all).
func (t *Tree) Conflicts(elem op.ElemId) []*Entry {
	g, ok := t.groups[op.ElemKey(elem)]
	if !ok {
		return nil
	}
	return visibleEntries(g.entries)
}

func visibleEntries(entries []*Entry) []*Entry {
	out := make([]*Entry, 0, 1)
	for _, e := range entries {
		if e.visible {
			out = append(out, e)
		}
	}
	return out
}

// MapKeys returns every visible map/table property, sorted lexicographically
// (spec.md §4.9 "keys/map_range return properties in sorted order").
func (t *Tree) MapKeys() []string {
	keys := make([]string, 0, len(t.groups))
	for k, g := range t.groups {
		if k.IsMap && g.winner != nil {
			keys = append(keys, k.Prop)
		}
	}
	sort.Strings(keys)
	return keys
}

// Text renders the visible text run as a string, in canonical order.
func (t *Tree) Text() string {
	var b []byte
	for _, g := range t.order {
		if g.winner == nil {
			continue
		}
		if g.winner.Op.Action.Value.Kind == op.KindString {
			b = append(b, g.winner.Op.Action.Value.Str...)
		}
	}
	return string(b)
}

// SpanElementCount returns how many visible elements cover the half-open
// index range [startIndex, startIndex+units). Callers that receive a
// deletion length in index units (splice_text's del parameter) use this
// to find how many element-granular Delete ops to produce. Assumes the
// range lands on element boundaries, true for any span produced by this
// library's own inserts; a units value that ends mid-element is rounded
// up to include that whole element.
func (t *Tree) SpanElementCount(startIndex, units int) int {
	if units <= 0 {
		return 0
	}
	pos := 0
	count := 0
	counting := false
	remaining := units
	for _, g := range t.order {
		if g.winner == nil {
			continue
		}
		w := g.winner.width
		if !counting {
			if pos+w > startIndex {
				counting = true
			} else {
				pos += w
				continue
			}
		}
		count++
		remaining -= w
		pos += w
		if remaining <= 0 {
			break
		}
	}
	return count
}

// entryVisibleAsOf recomputes e's visibility against a historical clock
// instead of current state (spec.md §4.6 "as of heads"): an op outside
// clk's coverage is treated as if it had never been applied, including as
// a successor of some other op.
func (t *Tree) entryVisibleAsOf(e *Entry, clk *clock.Clock) bool {
	if !clk.Covers(e.Op.Id) {
		return false
	}
	if e.Op.Action.Kind == op.ActionDelete || e.Op.Action.Kind == op.ActionIncrement {
		return false
	}
	var covered succs
	for _, sid := range e.Op.Succ {
		if !clk.Covers(sid) {
			continue
		}
		covered = append(covered, sid)
	}
	if len(covered) == 0 {
		return true
	}
	if e.Op.Action.Kind == op.ActionPut && e.Op.Action.Value.IsCounter() {
		for _, sid := range covered {
			if se, ok := t.byId[sid]; ok && se.Op.Action.Kind == op.ActionDelete {
				return false
			}
		}
		return true
	}
	return false
}

type succs []op.OpId

// winnerAsOf returns g's visible winner as of clk, or nil.
func (t *Tree) winnerAsOf(g *group, clk *clock.Clock) *Entry {
	var best *Entry
	for _, e := range g.entries {
		if !t.entryVisibleAsOf(e, clk) {
			continue
		}
		if best == nil || op.Less(best.Op.Id, e.Op.Id, t.idx) {
			best = e
		}
	}
	return best
}

// VisibleInOrderAsOf returns every group's visible winner as of clk, in
// canonical position order.
func (t *Tree) VisibleInOrderAsOf(clk *clock.Clock) []*Entry {
	out := make([]*Entry, 0, len(t.order))
	for _, g := range t.order {
		if g.elemNotYetCreated(clk) {
			continue
		}
		if w := t.winnerAsOf(g, clk); w != nil {
			out = append(out, w)
		}
	}
	return out
}

// elemNotYetCreated reports whether g's own defining Insert op is
// itself outside clk's coverage (the element did not exist yet as of clk).
func (g *group) elemNotYetCreated(clk *clock.Clock) bool {
	if len(g.entries) == 0 {
		return true
	}
	return !clk.Covers(g.key.Elem.Id)
}

// NthVisibleAsOf returns the n'th visible element as of clk.
func (t *Tree) NthVisibleAsOf(clk *clock.Clock, n int) (*Entry, bool) {
	if n < 0 {
		return nil, false
	}
	remaining := n
	for _, e := range t.VisibleInOrderAsOf(clk) {
		w := t.widthOf(e.Op)
		if remaining < w {
			return e, true
		}
		remaining -= w
	}
	return nil, false
}

// LenAsOf returns the visible length/key-count as of clk.
func (t *Tree) LenAsOf(clk *clock.Clock) int {
	if t.ObjType.IsSequence() {
		n := 0
		for _, e := range t.VisibleInOrderAsOf(clk) {
			n += t.widthOf(e.Op)
		}
		return n
	}
	n := 0
	for _, g := range t.groups {
		if g.key.IsMap && t.winnerAsOf(g, clk) != nil {
			n++
		}
	}
	return n
}

// TextAsOf renders the visible text run as of clk.
func (t *Tree) TextAsOf(clk *clock.Clock) string {
	var b []byte
	for _, e := range t.VisibleInOrderAsOf(clk) {
		if e.Op.Action.Value.Kind == op.KindString {
			b = append(b, e.Op.Action.Value.Str...)
		}
	}
	return string(b)
}

// MapEntryAsOf returns the winning (possibly nil) and all visible entries
// for a map/table property as of clk.
func (t *Tree) MapEntryAsOf(clk *clock.Clock, prop string) (winner *Entry, all []*Entry) {
	g, ok := t.groups[op.MapKey(prop)]
	if !ok {
		return nil, nil
	}
	for _, e := range g.entries {
		if t.entryVisibleAsOf(e, clk) {
			all = append(all, e)
		}
	}
	return t.winnerAsOf(g, clk), all
}

// MapKeysAsOf returns every visible map/table property as of clk, sorted.
func (t *Tree) MapKeysAsOf(clk *clock.Clock) []string {
	keys := make([]string, 0, len(t.groups))
	for k, g := range t.groups {
		if k.IsMap && t.winnerAsOf(g, clk) != nil {
			keys = append(keys, k.Prop)
		}
	}
	sort.Strings(keys)
	return keys
}

// Remove deletes an op entirely from the tree, for transaction rollback
// (spec.md §4.8 "Cancellation"). Callers must first strip id from every
// predecessor's Succ set; Remove only detaches id's own entry from its
// group (and, for an Insert, from the canonical position order) and
// recomputes the group's winner.
func (t *Tree) Remove(id op.OpId) {
	e, ok := t.byId[id]
	if !ok {
		return
	}
	g := t.groupOf(e)
	delete(t.byId, id)

	if g == nil {
		return
	}
	for i, ge := range g.entries {
		if ge == e {
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			break
		}
	}

	if e.Op.Insert {
		delete(t.groups, g.key)
		for i, og := range t.order {
			if og == g {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
		if g.winner != nil {
			t.visibleLen -= g.winner.width
		}
		return
	}

	t.recomputeGroup(g)
}

// AllOps returns every op ever filed in the tree, visible or not, in no
// particular order.
func (t *Tree) AllOps() []*op.Op {
	var out []*op.Op
	for _, e := range t.byId {
		out = append(out, e.Op)
	}
	return out
}
