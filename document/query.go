package document

import (
	"sort"

	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/clock"
	"github.com/Polqt/automerge-go/marks"
	"github.com/Polqt/automerge-go/objects"
	"github.com/Polqt/automerge-go/op"
)

// clockFor builds the vector clock implied by a set of heads (spec.md §4.6
// "as of heads"), cached by change.Graph so repeated queries against the
// same frontier do not re-walk ancestors each time.
func (d *Doc) clockFor(asOfHeads []op.Hash) *clock.Clock {
	return d.graph.ClockAt(asOfHeads)
}

func (d *Doc) resolveObj(obj op.ObjectId) (*objects.Object, error) {
	return d.objs.MustGet(obj)
}

// Get returns the winning visible value at a map/table property or list/
// text index (spec.md §4.9 "get"). ok is false if the key/index has no
// visible value.
func (d *Doc) Get(obj op.ObjectId, key op.Key) (op.Value, bool, error) {
	if key.IsMap {
		return d.GetMap(obj, key.Prop)
	}
	o, err := d.resolveObj(obj)
	if err != nil {
		return op.Value{}, false, err
	}
	idx := o.Tree.PositionOf(key.Elem)
	if idx < 0 {
		return op.Value{}, false, nil
	}
	return d.GetByIndex(obj, idx)
}

// GetByIndex returns the visible value at a list/text index.
func (d *Doc) GetByIndex(obj op.ObjectId, index int) (op.Value, bool, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return op.Value{}, false, err
	}
	e, ok := o.Tree.NthVisible(index)
	if !ok {
		return op.Value{}, false, nil
	}
	if e.Op.Action.Kind == op.ActionPut && e.Op.Action.Value.IsCounter() {
		return op.CounterValue(o.Tree.CounterValue(e)), true, nil
	}
	return e.Op.Action.Value, true, nil
}

// GetMap returns the visible value for a map/table property.
func (d *Doc) GetMap(obj op.ObjectId, prop string) (op.Value, bool, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return op.Value{}, false, err
	}
	w, _ := o.Tree.MapEntry(prop)
	if w == nil {
		return op.Value{}, false, nil
	}
	if w.Op.Action.Kind == op.ActionPut && w.Op.Action.Value.IsCounter() {
		return op.CounterValue(o.Tree.CounterValue(w)), true, nil
	}
	return w.Op.Action.Value, true, nil
}

// GetAll returns every currently-visible (conflicting) value at a map/
// table property, in Lamport order (spec.md §4.9 "get_all").
func (d *Doc) GetAll(obj op.ObjectId, prop string) ([]op.Value, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return nil, err
	}
	_, all := o.Tree.MapEntry(prop)
	sort.Slice(all, func(i, j int) bool { return op.Less(all[i].Op.Id, all[j].Op.Id, d.actors) })
	out := make([]op.Value, len(all))
	for i, e := range all {
		if e.Op.Action.Kind == op.ActionPut && e.Op.Action.Value.IsCounter() {
			out[i] = op.CounterValue(o.Tree.CounterValue(e))
			continue
		}
		out[i] = e.Op.Action.Value
	}
	return out, nil
}

// Keys returns every visible map/table property, sorted (spec.md §4.9).
func (d *Doc) Keys(obj op.ObjectId) ([]string, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return nil, err
	}
	return o.Tree.MapKeys(), nil
}

// KeysAsOf returns every visible map/table property as of heads.
func (d *Doc) KeysAsOf(obj op.ObjectId, heads []op.Hash) ([]string, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return nil, err
	}
	return o.Tree.MapKeysAsOf(d.clockFor(heads)), nil
}

// Length returns the current visible length of a list/text object, or key
// count of a map/table object (spec.md §4.9 "length").
func (d *Doc) Length(obj op.ObjectId) (int, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return 0, err
	}
	return o.Tree.Len(), nil
}

// LengthAsOf returns the visible length/key-count as of heads.
func (d *Doc) LengthAsOf(obj op.ObjectId, heads []op.Hash) (int, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return 0, err
	}
	return o.Tree.LenAsOf(d.clockFor(heads)), nil
}

// Text returns a Text object's current visible contents.
func (d *Doc) Text(obj op.ObjectId) (string, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return "", err
	}
	return o.Tree.Text(), nil
}

// TextAsOf returns a Text object's visible contents as of heads.
func (d *Doc) TextAsOf(obj op.ObjectId, heads []op.Hash) (string, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return "", err
	}
	return o.Tree.TextAsOf(d.clockFor(heads)), nil
}

// Marks returns the named mark ranges currently active over a Text object
// (spec.md §4.11).
func (d *Doc) Marks(obj op.ObjectId) ([]marks.Range, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return nil, err
	}
	return marks.Compute(o.Tree), nil
}

// ListRange returns every visible element's value, in order, over
// [start, end) of a list/text object (spec.md §4.9 "list_range").
func (d *Doc) ListRange(obj op.ObjectId, start, end int) ([]op.Value, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return nil, err
	}
	var out []op.Value
	for i := start; i < end; i++ {
		e, ok := o.Tree.NthVisible(i)
		if !ok {
			break
		}
		if e.Op.Action.Kind == op.ActionPut && e.Op.Action.Value.IsCounter() {
			out = append(out, op.CounterValue(o.Tree.CounterValue(e)))
			continue
		}
		out = append(out, e.Op.Action.Value)
	}
	return out, nil
}

// MapRange returns every visible (key, value) pair in a map/table object,
// keyed by property (spec.md §4.9 "map_range"). The result is a Go map, so
// it carries no order; Keys gives the properties in sorted order.
func (d *Doc) MapRange(obj op.ObjectId) (map[string]op.Value, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return nil, err
	}
	keys := o.Tree.MapKeys()
	out := make(map[string]op.Value, len(keys))
	for _, k := range keys {
		v, _, _ := d.GetMap(obj, k)
		out[k] = v
	}
	return out, nil
}

// Parents returns the chain of ancestor object ids from obj's parent up to
// the root (spec.md §4.9 "parents").
func (d *Doc) Parents(obj op.ObjectId) []op.ObjectId {
	return d.objs.Parents(obj)
}

// PathToObject returns the root-first path of (object, key) hops down to
// obj (spec.md §4.9 "path_to_object").
func (d *Doc) PathToObject(obj op.ObjectId) ([]objects.PathSegment, error) {
	return d.objs.PathToObject(obj)
}

// ObjectType returns the type of obj.
func (d *Doc) ObjectType(obj op.ObjectId) (op.ObjType, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return 0, err
	}
	return o.Type, nil
}

// GetCursor returns a stable reference to the element currently at index
// in a list/text object (spec.md §4.9 "get_cursor"): the element's own
// OpId, independent of later inserts/deletes shifting its position.
func (d *Doc) GetCursor(obj op.ObjectId, index int) (Cursor, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return Cursor{}, err
	}
	elem, ok := o.Tree.ElemAt(index)
	if !ok {
		return Cursor{}, amerr.ErrInvalidCursor
	}
	return Cursor{Obj: obj, Elem: elem, actors: d.actors}, nil
}

// CursorToIndex resolves a cursor back to its element's current index, or
// ErrInvalidCursor if the element has since been deleted.
func (d *Doc) CursorToIndex(obj op.ObjectId, c Cursor) (int, error) {
	o, err := d.resolveObj(obj)
	if err != nil {
		return 0, err
	}
	pos := o.Tree.PositionOf(c.Elem)
	if pos < 0 {
		return 0, amerr.ErrInvalidCursor
	}
	return pos, nil
}
