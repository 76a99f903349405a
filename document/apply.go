package document

import (
	"strconv"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/change"
	"github.com/Polqt/automerge-go/objects"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/patch"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func actorIDOf(c *op.Change) actor.ID { return actor.ID(c.Actor) }

// ApplyChanges applies a batch of changes, returning the patches produced
// by every change that actually applied (spec.md §6 sync surface
// "apply_changes"). Changes whose deps are not yet satisfied are queued
// and drained automatically once satisfied, including by other changes
// later in the same batch.
//
// A change that fails to apply (bad predecessor, non-counter increment,
// out-of-order seq) does not abort the rest of the batch: sync peers
// legitimately send batches mixing good changes with ones this replica
// has already seen or cannot yet place, and the caller needs to know
// about every failure, not just the first. Errors are combined with
// multierr so errors.Is/As still sees each underlying sentinel.
func (d *Doc) ApplyChanges(changes []*op.Change) ([]patch.Patch, error) {
	var all []patch.Patch
	var errs error
	for _, c := range changes {
		ps, err := d.applyOne(c)
		if err != nil {
			errs = multierr.Append(errs, d.wrapErr(err, "change "+shortHash(c)))
			continue
		}
		all = append(all, ps...)
	}
	return all, errs
}

func shortHash(c *op.Change) string {
	return actorIDOf(c).String() + "/" + strconv.FormatUint(c.Seq, 10)
}

// applyOne implements spec.md §4.7's seven-step algorithm for one change,
// then drains the pending queue for anything that was waiting on it.
func (d *Doc) applyOne(c *op.Change) ([]patch.Patch, error) {
	hash, _, err := change.ComputeHash(c, d.actors)
	if err != nil {
		return nil, d.wrapErr(err, "computing change hash")
	}

	// Step 1: reject duplicates.
	if d.graph.Has(hash) {
		return nil, nil
	}

	// Step 2: causal readiness.
	var missing []op.Hash
	for _, dep := range c.Deps {
		if !d.graph.Has(dep) {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		d.pending.add(hash, missing, c)
		d.log.Debug("change queued, missing deps", zap.Stringer("missing", hashList(missing)))
		return nil, nil
	}

	// Step 3: per-actor contiguity.
	actorIdx := d.actors.Intern(actorIDOf(c))
	expected := d.graph.LastSeq(actorIdx) + 1
	if c.Seq != expected {
		return nil, &amerr.OutOfOrder{Actor: actorIDOf(c).String(), Expected: expected, Actual: c.Seq}
	}

	// Step 4: intern actor bytes (done above) and map keys.
	for _, o := range c.Ops {
		if o.Key.IsMap {
			d.props.Intern(o.Key.Prop)
		}
	}

	// Step 5: apply each op in order.
	log := patch.NewLog()
	pendingMarks := make(map[op.OpId]pendingMarkInfo)
	for _, o := range c.Ops {
		if err := d.applyOp(o, log, pendingMarks); err != nil {
			// Atomicity (spec.md §5 "Cancellation"): a mid-apply failure
			// aborts this change only. Because ops were applied directly
			// into live op trees as we went, a partial failure here would
			// leave those trees mutated; callers are expected to only
			// ever apply changes that passed validation upstream (a
			// locally authored transaction, or a change whose hash has
			// already been verified against a trusted source). Making
			// this fully transactional would require snapshotting every
			// touched tree before step 5, which SPEC_FULL.md's
			// application engine does not currently do; see DESIGN.md.
			return nil, d.wrapErr(err, "applying op "+o.Id.String())
		}
	}

	// Step 6: append to change graph, recompute heads, advance max_op.
	d.graph.Add(c, hash, actorIdx, c.MaxOp())

	entries := log.Entries()
	log.Dispatch(d.sinks)

	// Step 7: drain anything waiting on this change.
	for _, waiting := range d.pending.drain(hash) {
		more, err := d.applyOne(waiting)
		if err != nil {
			return entries, err
		}
		entries = append(entries, more...)
	}

	return entries, nil
}

type pendingMarkInfo struct {
	name     string
	value    op.Value
	startPos int
}

// applyOp places one op into its target object's tree, wires up its
// pred/succ links, creates a new object for Make, validates Increment
// targets, and emits the corresponding patch log entries.
func (d *Doc) applyOp(o *op.Op, log *patch.Log, pendingMarks map[op.OpId]pendingMarkInfo) error {
	obj, err := d.objs.MustGet(o.Obj)
	if err != nil {
		return err
	}
	path, _ := d.objs.PathToObject(o.Obj)

	if o.Action.Kind == op.ActionIncrement {
		for _, p := range o.Pred {
			pe, ok := obj.Tree.Lookup(p)
			if !ok || pe.Op.Action.Kind != op.ActionPut || !pe.Op.Action.Value.IsCounter() {
				return amerr.ErrNonNumericIncrement
			}
		}
	}

	var posBefore int
	if obj.Type.IsSequence() && !o.Key.IsMap {
		posBefore = obj.Tree.PositionOf(o.Key.Elem)
	}

	for _, p := range o.Pred {
		if p.Counter >= o.Id.Counter {
			return amerr.ErrInvalidPredecessor
		}
		if _, ok := obj.Tree.Lookup(p); !ok {
			return amerr.ErrInvalidPredecessor
		}
	}

	if err := obj.Tree.InsertNew(o); err != nil {
		return err
	}
	for _, p := range o.Pred {
		if err := obj.Tree.ApplySuccessor(p, o); err != nil {
			return err
		}
	}

	switch o.Action.Kind {
	case op.ActionMake:
		d.objs.Create(o.Id, o.Action.MakeType, o.Obj, o.Key)
		emitValuePatch(log, path, obj, o, posBefore)

	case op.ActionPut:
		emitValuePatch(log, path, obj, o, posBefore)
		if len(o.Pred) > 0 {
			if obj.Type.IsSequence() {
				// no Conflict patch is emitted for a sequence element;
				// only map/table properties report conflicts here.
			} else {
				if _, all := obj.Tree.MapEntry(o.Key.Prop); len(all) > 1 {
					log.Conflict(path, o.Obj, o.Key.Prop)
				}
			}
		}

	case op.ActionDelete:
		if obj.Type.IsSequence() {
			log.DeleteSeq(path, o.Obj, posBefore)
		} else {
			log.DeleteMap(path, o.Obj, o.Key.Prop)
		}

	case op.ActionIncrement:
		idx := posBefore
		log.Increment(path, o.Obj, o.Key.Prop, idx, o.Action.IncrementBy)

	case op.ActionMarkBegin:
		if o.Action.MarkValue.Kind == op.KindUnknown {
			return amerr.ErrInvalidMarkValue
		}
		startPos := obj.Tree.PositionOf(op.ElemFromId(o.Id))
		pendingMarks[o.Id] = pendingMarkInfo{name: o.Action.MarkName, value: o.Action.MarkValue, startPos: startPos}

	case op.ActionMarkEnd:
		beginID := op.OpId{Counter: o.Id.Counter - 1, Actor: o.Id.Actor}
		if info, ok := pendingMarks[beginID]; ok {
			endPos := obj.Tree.PositionOf(op.ElemFromId(o.Id))
			log.Mark(path, o.Obj, info.startPos, endPos, info.name, info.value)
			delete(pendingMarks, beginID)
		}
	}

	return nil
}

// emitValuePatch records an Insert (new sequence element), PutSeq
// (sequence overwrite), or PutMap entry for a Make/Put op.
func emitValuePatch(log *patch.Log, path []objects.PathSegment, obj *objects.Object, o *op.Op, posBefore int) {
	v := o.Action.Value
	if o.Insert {
		if obj.Type.IsSequence() {
			pos := obj.Tree.PositionOf(op.ElemFromId(o.Id))
			log.Insert(path, o.Obj, pos, v, o.Id)
		}
		return
	}
	if obj.Type.IsSequence() {
		log.PutSeq(path, o.Obj, posBefore, v)
		return
	}
	log.PutMap(path, o.Obj, o.Key.Prop, v)
}

type hashList []op.Hash

func (h hashList) String() string {
	s := ""
	for i, x := range h {
		if i > 0 {
			s += ","
		}
		s += x.String()
	}
	return s
}
