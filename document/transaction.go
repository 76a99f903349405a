package document

import (
	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/change"
	"github.com/Polqt/automerge-go/objects"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/optree"
	"github.com/Polqt/automerge-go/patch"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Transaction borrows the document exclusively (spec.md §4.8): it applies
// each mutation immediately (so later reads within the same transaction
// observe earlier writes) while buffering the ops so Rollback can undo
// them and Commit can package them into one change.
type Transaction struct {
	doc *Doc

	// id correlates this transaction's log lines (spec.md §9 ambient
	// logging) across Begin/Commit/Rollback; it is never placed on the
	// wire, since committed changes are identified by their content hash.
	id uuid.UUID

	preHeads []op.Hash
	preMaxOp uint64

	startOp     uint64
	nextCounter uint64

	ops          []*op.Op
	log          *patch.Log
	pendingMarks map[op.OpId]pendingMarkInfo

	message string
	live    bool
}

// maxOpValue returns the highest op counter ever minted in this document.
func (d *Doc) maxOpValue() uint64 {
	heads := d.graph.Heads()
	var max uint64
	for _, h := range heads {
		if n, ok := d.graph.Get(h); ok && n.MaxOp > max {
			max = n.MaxOp
		}
	}
	return max
}

// Begin starts a new transaction. Only one transaction may be live on a
// document at a time (spec.md §5 "single-threaded... owned by exactly one
// holder").
func (d *Doc) Begin() *Transaction {
	maxOp := d.maxOpValue()
	tx := &Transaction{
		doc:          d,
		id:           uuid.New(),
		preHeads:     d.GetHeads(),
		preMaxOp:     maxOp,
		startOp:      maxOp + 1,
		nextCounter:  maxOp + 1,
		log:          patch.NewLog(),
		pendingMarks: make(map[op.OpId]pendingMarkInfo),
		live:         true,
	}
	d.log.Debug("transaction started", zap.Stringer("tx", tx.id), zap.Uint64("start_op", tx.startOp))
	return tx
}

func (tx *Transaction) mint() op.OpId {
	id := op.OpId{Counter: tx.nextCounter, Actor: tx.doc.actorIdx}
	tx.nextCounter++
	return id
}

func (tx *Transaction) apply(o *op.Op) error {
	if err := tx.doc.applyOp(o, tx.log, tx.pendingMarks); err != nil {
		return err
	}
	tx.ops = append(tx.ops, o)
	return nil
}

func (tx *Transaction) resolveObj(obj op.ObjectId) (*objects.Object, error) {
	return tx.doc.objs.MustGet(obj)
}

func visibleIdsAt(obj *objects.Object, key op.Key, idx op.SortedIndexer) []op.OpId {
	var entries []*optree.Entry
	if key.IsMap {
		_, all := obj.Tree.MapEntry(key.Prop)
		entries = all
	} else {
		entries = obj.Tree.Conflicts(key.Elem)
	}
	ids := make([]op.OpId, len(entries))
	for i, e := range entries {
		ids[i] = e.Op.Id
	}
	op.SortIds(ids, idx)
	return ids
}

// Put assigns a scalar value to a map/table property.
func (tx *Transaction) Put(obj op.ObjectId, prop string, v op.Value) error {
	if prop == "" {
		return amerr.ErrEmptyMapKey
	}
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	pred := visibleIdsAt(o, op.MapKey(prop), tx.doc.actors)
	return tx.apply(&op.Op{Id: tx.mint(), Obj: obj, Key: op.MapKey(prop), Action: op.PutAction(v), Pred: pred})
}

// PutObject creates a nested object at a map/table property.
func (tx *Transaction) PutObject(obj op.ObjectId, prop string, t op.ObjType) (op.ObjectId, error) {
	if prop == "" {
		return op.ObjectId{}, amerr.ErrEmptyMapKey
	}
	o, err := tx.resolveObj(obj)
	if err != nil {
		return op.ObjectId{}, err
	}
	pred := visibleIdsAt(o, op.MapKey(prop), tx.doc.actors)
	id := tx.mint()
	if err := tx.apply(&op.Op{Id: id, Obj: obj, Key: op.MapKey(prop), Action: op.MakeAction(t), Pred: pred}); err != nil {
		return op.ObjectId{}, err
	}
	return id, nil
}

// Delete removes a map/table property.
func (tx *Transaction) Delete(obj op.ObjectId, prop string) error {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	pred := visibleIdsAt(o, op.MapKey(prop), tx.doc.actors)
	if len(pred) == 0 {
		return nil
	}
	return tx.apply(&op.Op{Id: tx.mint(), Obj: obj, Key: op.MapKey(prop), Action: op.DeleteAction(), Pred: pred})
}

// Increment adds n to a counter-valued map/table property.
func (tx *Transaction) Increment(obj op.ObjectId, prop string, n int64) error {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	pred := visibleIdsAt(o, op.MapKey(prop), tx.doc.actors)
	return tx.apply(&op.Op{Id: tx.mint(), Obj: obj, Key: op.MapKey(prop), Action: op.IncrementAction(n), Pred: pred})
}

func anchorForIndex(o *objects.Object, index int) (op.ElemId, error) {
	if index <= 0 {
		return op.HeadElem, nil
	}
	e, ok := o.Tree.ElemAt(index - 1)
	if !ok {
		return op.ElemId{}, amerr.Wrap(amerr.ErrUnknownObject, "insert index out of range")
	}
	return e, nil
}

// Insert places a scalar value at a list/text index.
func (tx *Transaction) Insert(obj op.ObjectId, index int, v op.Value) error {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	anchor, err := anchorForIndex(o, index)
	if err != nil {
		return err
	}
	return tx.apply(&op.Op{Id: tx.mint(), Obj: obj, Key: op.ElemKey(anchor), Insert: true, Action: op.PutAction(v)})
}

// InsertObject places a nested object at a list/text index.
func (tx *Transaction) InsertObject(obj op.ObjectId, index int, t op.ObjType) (op.ObjectId, error) {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return op.ObjectId{}, err
	}
	anchor, err := anchorForIndex(o, index)
	if err != nil {
		return op.ObjectId{}, err
	}
	id := tx.mint()
	if err := tx.apply(&op.Op{Id: id, Obj: obj, Key: op.ElemKey(anchor), Insert: true, Action: op.MakeAction(t)}); err != nil {
		return op.ObjectId{}, err
	}
	return id, nil
}

// DeleteAt removes the list/text element at index.
func (tx *Transaction) DeleteAt(obj op.ObjectId, index int) error {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	elem, ok := o.Tree.ElemAt(index)
	if !ok {
		return amerr.Wrap(amerr.ErrUnknownObject, "delete index out of range")
	}
	pred := visibleIdsAt(o, op.ElemKey(elem), tx.doc.actors)
	return tx.apply(&op.Op{Id: tx.mint(), Obj: obj, Key: op.ElemKey(elem), Action: op.DeleteAction(), Pred: pred})
}

// IncrementAt adds n to a counter-valued list element.
func (tx *Transaction) IncrementAt(obj op.ObjectId, index int, n int64) error {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	elem, ok := o.Tree.ElemAt(index)
	if !ok {
		return amerr.Wrap(amerr.ErrUnknownObject, "increment index out of range")
	}
	pred := visibleIdsAt(o, op.ElemKey(elem), tx.doc.actors)
	return tx.apply(&op.Op{Id: tx.mint(), Obj: obj, Key: op.ElemKey(elem), Action: op.IncrementAction(n), Pred: pred})
}

// Splice deletes del elements starting at pos and inserts vals in their
// place (spec.md §4.8).
func (tx *Transaction) Splice(obj op.ObjectId, pos, del int, vals []op.Value) error {
	for i := 0; i < del; i++ {
		if err := tx.DeleteAt(obj, pos); err != nil {
			return err
		}
	}
	for i, v := range vals {
		if err := tx.Insert(obj, pos+i, v); err != nil {
			return err
		}
	}
	return nil
}

// SpliceText deletes del index-units starting at pos and inserts text,
// one Put op per rune (spec.md §4.8).
func (tx *Transaction) SpliceText(obj op.ObjectId, pos, del int, text string) error {
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	elemDel := o.Tree.SpanElementCount(pos, del)
	for i := 0; i < elemDel; i++ {
		if err := tx.DeleteAt(obj, pos); err != nil {
			return err
		}
	}
	i := 0
	for _, r := range text {
		if err := tx.Insert(obj, pos+i, op.StringValue(string(r))); err != nil {
			return err
		}
		if o.Type == op.ObjTypeText {
			i += tx.doc.cfg.TextEncoding.Width(string(r))
		} else {
			i++
		}
	}
	return nil
}

// Mark applies a named range annotation over [start, end) of a text
// object (spec.md §4.8, §4.11).
func (tx *Transaction) Mark(obj op.ObjectId, start, end int, name string, v op.Value, expand op.MarkExpand) error {
	if v.Kind == op.KindUnknown {
		return amerr.ErrInvalidMarkValue
	}
	o, err := tx.resolveObj(obj)
	if err != nil {
		return err
	}
	beginAnchor, err := anchorForIndex(o, start)
	if err != nil {
		return err
	}
	beginID := tx.mint()
	if err := tx.apply(&op.Op{Id: beginID, Obj: obj, Key: op.ElemKey(beginAnchor), Insert: true,
		Action: op.MarkBeginAction(expand, name, v)}); err != nil {
		return err
	}
	endAnchor, err := anchorForIndex(o, end)
	if err != nil {
		return err
	}
	endID := tx.mint()
	return tx.apply(&op.Op{Id: endID, Obj: obj, Key: op.ElemKey(endAnchor), Insert: true,
		Action: op.MarkEndAction(expand)})
}

// Commit packages every buffered op into one change, computes its hash,
// and appends it to the change graph (spec.md §4.8). An empty buffer
// commits nothing and returns the zero hash.
func (tx *Transaction) Commit(message string, timeMillis int64) (op.Hash, error) {
	if !tx.live {
		return op.Hash{}, amerr.Wrap(amerr.ErrUnknownObject, "transaction already finished")
	}
	tx.live = false
	if len(tx.ops) == 0 {
		return op.Hash{}, nil
	}

	c := &op.Change{
		Actor:   tx.doc.ActorID(),
		Seq:     tx.doc.graph.LastSeq(tx.doc.actorIdx) + 1,
		StartOp: tx.startOp,
		Time:    timeMillis,
		Message: message,
		Deps:    tx.preHeads,
		Ops:     tx.ops,
	}

	hash, _, err := change.ComputeHash(c, tx.doc.actors)
	if err != nil {
		return op.Hash{}, err
	}
	tx.doc.graph.Add(c, hash, tx.doc.actorIdx, c.MaxOp())
	tx.log.Dispatch(tx.doc.sinks)
	tx.doc.log.Debug("transaction committed", zap.Stringer("tx", tx.id), zap.Stringer("hash", hashList{hash}), zap.Int("ops", len(tx.ops)))
	return hash, nil
}

// Rollback undoes every buffered op in reverse order: each op's id is
// stripped from its predecessors' succ sets and the op itself is removed
// from its op tree (spec.md §4.8, §5 "Cancellation").
func (tx *Transaction) Rollback() {
	if !tx.live {
		return
	}
	tx.live = false
	for i := len(tx.ops) - 1; i >= 0; i-- {
		o := tx.ops[i]
		obj, err := tx.doc.objs.MustGet(o.Obj)
		if err != nil {
			continue
		}
		for _, p := range o.Pred {
			if pe, ok := obj.Tree.Lookup(p); ok {
				pe.Op.RemoveSuccessor(o.Id)
			}
		}
		obj.Tree.Remove(o.Id)
	}
	tx.doc.log.Debug("transaction rolled back", zap.Stringer("tx", tx.id), zap.Int("ops", len(tx.ops)))
	tx.ops = nil
}
