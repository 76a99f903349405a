package optree_test

import (
	"testing"

	"github.com/Polqt/automerge-go/clock"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/optree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedIndex struct{}

func (fixedIndex) SortedIndex(actorIndex int) int { return actorIndex }

func insertOp(id op.OpId, after op.ElemId, v op.Value) *op.Op {
	return &op.Op{Id: id, Insert: true, Key: op.Key{Elem: after}, Action: op.PutAction(v)}
}

func putOp(id op.OpId, target op.ElemId, v op.Value, pred ...op.OpId) *op.Op {
	return &op.Op{Id: id, Key: op.ElemKey(target), Action: op.PutAction(v), Pred: pred}
}

func deleteOp(id op.OpId, target op.ElemId, pred ...op.OpId) *op.Op {
	return &op.Op{Id: id, Key: op.ElemKey(target), Action: op.DeleteAction(), Pred: pred}
}

func applySuccessors(t *testing.T, tr *optree.Tree, o *op.Op) {
	t.Helper()
	require.NoError(t, tr.InsertNew(o))
	for _, p := range o.Pred {
		require.NoError(t, tr.ApplySuccessor(p, o))
	}
}

func TestTreeInsertAndVisibleOrder(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)

	a := op.OpId{Counter: 1, Actor: 0}
	b := op.OpId{Counter: 2, Actor: 0}
	c := op.OpId{Counter: 3, Actor: 0}

	applySuccessors(t, tr, insertOp(a, op.HeadElem, op.IntValue(1)))
	applySuccessors(t, tr, insertOp(b, op.ElemFromId(a), op.IntValue(2)))
	applySuccessors(t, tr, insertOp(c, op.ElemFromId(b), op.IntValue(3)))

	require.Equal(t, 3, tr.Len())
	vis := tr.VisibleInOrder()
	require.Len(t, vis, 3)
	assert.Equal(t, int64(1), vis[0].Op.Action.Value.Int)
	assert.Equal(t, int64(2), vis[1].Op.Action.Value.Int)
	assert.Equal(t, int64(3), vis[2].Op.Action.Value.Int)
}

func TestTreeConcurrentInsertAtSameReferenceOrdersByOpId(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)

	base := op.OpId{Counter: 1, Actor: 0}
	applySuccessors(t, tr, insertOp(base, op.HeadElem, op.IntValue(0)))

	// Two concurrent inserts both referencing `base` as their predecessor.
	low := op.OpId{Counter: 2, Actor: 0}
	high := op.OpId{Counter: 2, Actor: 1}
	applySuccessors(t, tr, insertOp(low, op.ElemFromId(base), op.IntValue(10)))
	applySuccessors(t, tr, insertOp(high, op.ElemFromId(base), op.IntValue(20)))

	vis := tr.VisibleInOrder()
	require.Len(t, vis, 3)
	// RGA tie-break: the higher OpId among concurrent inserts at the same
	// reference sorts first (closer to the reference).
	assert.Equal(t, int64(0), vis[0].Op.Action.Value.Int)
	assert.Equal(t, int64(20), vis[1].Op.Action.Value.Int, "higher opid wins placement closest to the shared reference")
	assert.Equal(t, int64(10), vis[2].Op.Action.Value.Int)
}

func TestTreeDeleteRemovesFromVisibleLength(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)
	a := op.OpId{Counter: 1, Actor: 0}
	applySuccessors(t, tr, insertOp(a, op.HeadElem, op.IntValue(1)))
	require.Equal(t, 1, tr.Len())

	del := deleteOp(op.OpId{Counter: 2, Actor: 0}, op.ElemFromId(a), a)
	applySuccessors(t, tr, del)

	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, tr.VisibleInOrder())
}

func TestTreeOverwritePutReplacesWinner(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)
	a := op.OpId{Counter: 1, Actor: 0}
	applySuccessors(t, tr, insertOp(a, op.HeadElem, op.IntValue(1)))

	overwrite := putOp(op.OpId{Counter: 2, Actor: 0}, op.ElemFromId(a), op.IntValue(99), a)
	applySuccessors(t, tr, overwrite)

	require.Equal(t, 1, tr.Len())
	vis := tr.VisibleInOrder()
	require.Len(t, vis, 1)
	assert.Equal(t, int64(99), vis[0].Op.Action.Value.Int)
}

func TestTreeMapEntryConflicts(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeMap, fixedIndex{}, op.EncodingUTF8)
	low := &op.Op{Id: op.OpId{Counter: 1, Actor: 0}, Key: op.MapKey("x"), Action: op.PutAction(op.IntValue(1))}
	high := &op.Op{Id: op.OpId{Counter: 1, Actor: 1}, Key: op.MapKey("x"), Action: op.PutAction(op.IntValue(2))}

	require.NoError(t, tr.InsertNew(low))
	require.NoError(t, tr.InsertNew(high))

	winner, all := tr.MapEntry("x")
	require.NotNil(t, winner)
	assert.Equal(t, int64(2), winner.Op.Action.Value.Int, "higher actor wins the concurrent-put tie")
	assert.Len(t, all, 2, "both concurrent puts remain visible as conflicts")
	assert.Equal(t, 1, tr.Len(), "one visible key regardless of conflict count")
}

func TestTreeCounterIncrement(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeMap, fixedIndex{}, op.EncodingUTF8)
	cnt := &op.Op{Id: op.OpId{Counter: 1, Actor: 0}, Key: op.MapKey("n"), Action: op.PutAction(op.CounterValue(5))}
	require.NoError(t, tr.InsertNew(cnt))

	inc := &op.Op{Id: op.OpId{Counter: 2, Actor: 0}, Key: op.MapKey("n"), Action: op.IncrementAction(3), Pred: []op.OpId{cnt.Id}}
	applySuccessors(t, tr, inc)

	winner, _ := tr.MapEntry("n")
	require.NotNil(t, winner, "a counter stays visible through an increment")
	assert.Equal(t, int64(8), tr.CounterValue(winner))
}

func TestTreeTextWidthAndRendering(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeText, fixedIndex{}, op.EncodingUTF8)
	h := op.OpId{Counter: 1, Actor: 0}
	e := op.OpId{Counter: 2, Actor: 0}
	applySuccessors(t, tr, insertOp(h, op.HeadElem, op.StringValue("h")))
	applySuccessors(t, tr, insertOp(e, op.ElemFromId(h), op.StringValue("e")))

	assert.Equal(t, "he", tr.Text())
	assert.Equal(t, 2, tr.Len())
}

func TestTreePositionOfAndElemAt(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)
	a := op.OpId{Counter: 1, Actor: 0}
	b := op.OpId{Counter: 2, Actor: 0}
	applySuccessors(t, tr, insertOp(a, op.HeadElem, op.IntValue(1)))
	applySuccessors(t, tr, insertOp(b, op.ElemFromId(a), op.IntValue(2)))

	elem, ok := tr.ElemAt(1)
	require.True(t, ok)
	assert.Equal(t, b, elem.Id)
	assert.Equal(t, 1, tr.PositionOf(elem))

	_, ok = tr.ElemAt(5)
	assert.False(t, ok)
}

func TestTreeAsOfHonorsHistoricalClock(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)
	a := op.OpId{Counter: 1, Actor: 0}
	b := op.OpId{Counter: 2, Actor: 0}
	applySuccessors(t, tr, insertOp(a, op.HeadElem, op.IntValue(1)))
	applySuccessors(t, tr, insertOp(b, op.ElemFromId(a), op.IntValue(2)))
	del := deleteOp(op.OpId{Counter: 3, Actor: 0}, op.ElemFromId(a), a)
	applySuccessors(t, tr, del)

	// clock covering only op 1 (before b was inserted and before the delete)
	early := clock.New()
	early.Observe(0, 1, 1)
	assert.Equal(t, 1, tr.LenAsOf(early))
	aEntry, ok := tr.Lookup(a)
	require.True(t, ok)
	assert.Equal(t, []*optree.Entry{aEntry}, tr.VisibleInOrderAsOf(early.Clone()))

	// clock covering everything sees the delete and b, current state differs
	full := clock.New()
	full.Observe(0, 1, 3)
	assert.Equal(t, 1, tr.LenAsOf(full), "a is deleted, only b remains")
	assert.Equal(t, 1, tr.Len(), "current state agrees since full covers everything applied")
}

func TestTreeRemoveUndoesInsert(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeList, fixedIndex{}, op.EncodingUTF8)
	a := op.OpId{Counter: 1, Actor: 0}
	applySuccessors(t, tr, insertOp(a, op.HeadElem, op.IntValue(1)))
	require.Equal(t, 1, tr.Len())

	tr.Remove(a)
	assert.Equal(t, 0, tr.Len())
	_, ok := tr.Lookup(a)
	assert.False(t, ok)
	assert.Empty(t, tr.VisibleInOrder())
}

func TestTreeMapKeysSorted(t *testing.T) {
	tr := optree.New(op.OpId{Counter: 1}, op.ObjTypeMap, fixedIndex{}, op.EncodingUTF8)
	for i, k := range []string{"zeta", "alpha", "mu"} {
		o := &op.Op{Id: op.OpId{Counter: uint64(i + 1), Actor: 0}, Key: op.MapKey(k), Action: op.PutAction(op.IntValue(int64(i)))}
		require.NoError(t, tr.InsertNew(o))
	}
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, tr.MapKeys())
}
