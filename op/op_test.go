package op_test

import (
	"testing"

	"github.com/Polqt/automerge-go/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedIndex maps actor_index directly to itself, so tests can reason about
// Lamport order purely in terms of the actor indices they choose.
type fixedIndex struct{}

func (fixedIndex) SortedIndex(actorIndex int) int { return actorIndex }

func TestOpIdLess(t *testing.T) {
	idx := fixedIndex{}
	a := op.OpId{Counter: 1, Actor: 5}
	b := op.OpId{Counter: 2, Actor: 0}
	assert.True(t, op.Less(a, b, idx), "lower counter sorts first regardless of actor")

	c := op.OpId{Counter: 3, Actor: 0}
	d := op.OpId{Counter: 3, Actor: 1}
	assert.True(t, op.Less(c, d, idx), "equal counter breaks tie on actor order")
	assert.False(t, op.Less(d, c, idx))
}

func TestOpIdCompareAndEqual(t *testing.T) {
	idx := fixedIndex{}
	a := op.OpId{Counter: 4, Actor: 1}
	b := a
	require.True(t, op.Equal(a, b))
	assert.Equal(t, 0, op.Compare(a, b, idx))

	c := op.OpId{Counter: 5, Actor: 1}
	assert.Equal(t, -1, op.Compare(a, c, idx))
	assert.Equal(t, 1, op.Compare(c, a, idx))
}

func TestSortIds(t *testing.T) {
	idx := fixedIndex{}
	ids := []op.OpId{
		{Counter: 3, Actor: 1},
		{Counter: 1, Actor: 2},
		{Counter: 2, Actor: 0},
		{Counter: 1, Actor: 0},
	}
	op.SortIds(ids, idx)
	want := []op.OpId{
		{Counter: 1, Actor: 0},
		{Counter: 1, Actor: 2},
		{Counter: 2, Actor: 0},
		{Counter: 3, Actor: 1},
	}
	assert.Equal(t, want, ids)
}

func TestElemLessHeadIsSmallest(t *testing.T) {
	idx := fixedIndex{}
	assert.True(t, op.ElemLess(op.HeadElem, op.ElemFromId(op.OpId{Counter: 1}), idx))
	assert.False(t, op.ElemLess(op.ElemFromId(op.OpId{Counter: 1}), op.HeadElem, idx))
	assert.False(t, op.ElemLess(op.HeadElem, op.HeadElem, idx))
}

func TestKeyEqual(t *testing.T) {
	k1 := op.MapKey("title")
	k2 := op.MapKey("title")
	k3 := op.MapKey("body")
	assert.True(t, k1.Equal(k2))
	assert.False(t, k1.Equal(k3))

	e1 := op.ElemKey(op.ElemFromId(op.OpId{Counter: 1, Actor: 0}))
	e2 := op.ElemKey(op.ElemFromId(op.OpId{Counter: 1, Actor: 0}))
	assert.True(t, e1.Equal(e2))
	assert.False(t, k1.Equal(e1), "map key never equals an elem key")
}

func TestOpAddRemoveSuccessor(t *testing.T) {
	idx := fixedIndex{}
	o := &op.Op{Id: op.OpId{Counter: 1, Actor: 0}}
	s1 := op.OpId{Counter: 2, Actor: 1}
	s2 := op.OpId{Counter: 2, Actor: 0}

	o.AddSuccessor(s1, idx)
	o.AddSuccessor(s2, idx)
	o.AddSuccessor(s1, idx) // duplicate, ignored
	require.Len(t, o.Succ, 2)
	assert.True(t, o.HasSuccessor(s1))
	assert.True(t, o.HasSuccessor(s2))
	// kept sorted under Lamport order
	assert.True(t, op.Less(o.Succ[0], o.Succ[1], idx))

	o.RemoveSuccessor(s1)
	assert.False(t, o.HasSuccessor(s1))
	require.Len(t, o.Succ, 1)
}

func TestOpClone(t *testing.T) {
	o := &op.Op{
		Id:   op.OpId{Counter: 1},
		Pred: []op.OpId{{Counter: 0}},
		Succ: []op.OpId{{Counter: 2}},
	}
	cp := o.Clone()
	cp.Pred[0] = op.OpId{Counter: 99}
	cp.Succ = append(cp.Succ, op.OpId{Counter: 3})

	assert.Equal(t, uint64(0), o.Pred[0].Counter, "mutating the clone must not affect the original")
	assert.Len(t, o.Succ, 1)
}

func TestValueWidth(t *testing.T) {
	v := op.StringValue("hello")
	assert.Equal(t, 5, v.Width(op.EncodingUTF8))
	assert.Equal(t, 5, v.Width(op.EncodingCodePoint))

	scalar := op.IntValue(42)
	assert.Equal(t, 1, scalar.Width(op.EncodingUTF8), "non-string values always have width 1")
}

func TestValueIsCounter(t *testing.T) {
	assert.True(t, op.CounterValue(3).IsCounter())
	assert.False(t, op.IntValue(3).IsCounter())
}

func TestChangeMaxOp(t *testing.T) {
	empty := &op.Change{StartOp: 5}
	assert.Equal(t, uint64(4), empty.MaxOp())

	withOps := &op.Change{StartOp: 5, Ops: []*op.Op{{}, {}, {}}}
	assert.Equal(t, uint64(7), withOps.MaxOp())
}

func TestHashStringAndZero(t *testing.T) {
	var h op.Hash
	assert.True(t, h.IsZero())
	assert.Equal(t, 64, len(h.String()))

	h[0] = 0xff
	assert.False(t, h.IsZero())
	assert.Equal(t, "ff", h.String()[:2])
}

func TestTextEncodingWidth(t *testing.T) {
	s := "hé\U0001F600" // h, e-acute (2 bytes UTF-8), emoji (4 bytes UTF-8, surrogate pair UTF-16)
	assert.Equal(t, len(s), op.EncodingUTF8.Width(s))
	assert.Equal(t, 3, op.EncodingCodePoint.Width(s))
	assert.Equal(t, 4, op.EncodingUTF16.Width(s), "emoji above the BMP counts as a UTF-16 surrogate pair")
}
