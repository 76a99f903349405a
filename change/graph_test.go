package change_test

import (
	"testing"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/change"
	"github.com/Polqt/automerge-go/op"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hash(b byte) op.Hash {
	var h op.Hash
	h[0] = b
	return h
}

func TestGraphAddAndHas(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	c := &op.Change{Seq: 1, StartOp: 1}
	h := hash(1)

	assert.False(t, g.Has(h))
	g.Add(c, h, 0, 0)
	assert.True(t, g.Has(h))

	n, ok := g.Get(h)
	require.True(t, ok)
	assert.Equal(t, c, n.Change)
	assert.Equal(t, uint64(1), g.LastSeq(0))
}

func TestGraphHeadsExcludesReferencedDeps(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	h1 := hash(1)
	h2 := hash(2)

	g.Add(&op.Change{Seq: 1, StartOp: 1}, h1, 0, 5)
	assert.Equal(t, []op.Hash{h1}, g.Heads())

	g.Add(&op.Change{Seq: 2, StartOp: 6, Deps: []op.Hash{h1}}, h2, 0, 10)
	heads := g.Heads()
	require.Len(t, heads, 1)
	assert.Equal(t, h2, heads[0], "h1 is no longer a head once h2 depends on it")
}

func TestGraphMultipleConcurrentHeads(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	h1 := hash(1)
	h2 := hash(2)
	h3 := hash(3)

	g.Add(&op.Change{Seq: 1, StartOp: 1}, h1, 0, 1)
	g.Add(&op.Change{Seq: 1, StartOp: 1, Deps: []op.Hash{h1}}, h2, 1, 2)
	g.Add(&op.Change{Seq: 2, StartOp: 2, Deps: []op.Hash{h1}}, h3, 2, 2)

	heads := g.Heads()
	assert.Len(t, heads, 2, "two independent descendants of h1 are both heads")
	assert.Contains(t, heads, h2)
	assert.Contains(t, heads, h3)
}

func TestGraphGetMissingDeps(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	h1 := hash(1)
	h2 := hash(2)
	missingDep := hash(9)

	g.Add(&op.Change{Seq: 1, StartOp: 1, Deps: []op.Hash{missingDep}}, h1, 0, 1)
	g.Add(&op.Change{Seq: 2, StartOp: 2}, h2, 0, 2)

	missing := g.GetMissingDeps(nil)
	require.Len(t, missing, 1)
	assert.Equal(t, missingDep, missing[0])

	wantHeads := hash(42)
	missing = g.GetMissingDeps([]op.Hash{wantHeads})
	assert.Contains(t, missing, missingDep)
	assert.Contains(t, missing, wantHeads)
}

func TestGraphTopoOrdersDepsBeforeDependents(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	h1 := hash(1)
	h2 := hash(2)
	h3 := hash(3)

	// inserted out of causal order
	g.Add(&op.Change{Seq: 2, StartOp: 2, Deps: []op.Hash{h1}}, h2, 0, 2)
	g.Add(&op.Change{Seq: 1, StartOp: 1}, h1, 0, 1)
	g.Add(&op.Change{Seq: 1, StartOp: 3, Deps: []op.Hash{h2}}, h3, 1, 3)

	order := g.Topo()
	require.Len(t, order, 3)
	pos := map[op.Hash]int{}
	for i, n := range order {
		pos[n.Hash] = i
	}
	assert.Less(t, pos[h1], pos[h2], "h1 must come before its dependent h2")
	assert.Less(t, pos[h2], pos[h3])
}

func TestGraphClockAtMergesAncestors(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	h1 := hash(1)
	h2 := hash(2)

	g.Add(&op.Change{Seq: 1, StartOp: 1}, h1, 0, 5)
	g.Add(&op.Change{Seq: 1, StartOp: 1, Deps: []op.Hash{h1}}, h2, 1, 3)

	clk := g.ClockAt([]op.Hash{h2})
	assert.Equal(t, uint64(5), clk.MaxCounter(0), "clock at h2 includes ancestor h1's contribution")
	assert.Equal(t, uint64(3), clk.MaxCounter(1))

	clk1 := g.ClockAt([]op.Hash{h1})
	assert.Equal(t, uint64(0), clk1.MaxCounter(1), "clock at h1 alone does not see h2")
}

func TestGraphChangesByActor(t *testing.T) {
	g := change.NewGraph(actor.NewTable())
	h1 := hash(1)
	h2 := hash(2)
	h3 := hash(3)

	g.Add(&op.Change{Seq: 2, StartOp: 2}, h2, 0, 2)
	g.Add(&op.Change{Seq: 1, StartOp: 1}, h1, 0, 1)
	g.Add(&op.Change{Seq: 1, StartOp: 1}, h3, 1, 1)

	byActor0 := g.ChangesByActor(0)
	require.Len(t, byActor0, 2)
	assert.Equal(t, uint64(1), byActor0[0].Change.Seq, "sorted ascending by seq")
	assert.Equal(t, uint64(2), byActor0[1].Change.Seq)
}
