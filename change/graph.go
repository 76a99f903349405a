// Package change implements the change graph (C5 in SPEC_FULL.md): an
// append-only DAG of changes keyed by content hash, tracking dependencies
// and the current frontier (heads).
package change

import (
	"sort"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/clock"
	"github.com/Polqt/automerge-go/op"
	"github.com/tidwall/btree"
)

// Node is one applied change plus the bookkeeping the graph needs.
type Node struct {
	Change   *op.Change
	Hash     op.Hash
	ActorIdx int
	MaxOp    uint64
}

type actorSeqKey struct {
	actor int
	seq   uint64
}

func actorSeqLess(a, b actorSeqKey) bool {
	if a.actor != b.actor {
		return a.actor < b.actor
	}
	return a.seq < b.seq
}

// Graph is the append-only DAG of changes.
type Graph struct {
	actors *actor.Table

	byHash     map[op.Hash]*Node
	byActorSeq *btree.BTreeG[actorSeqEntry]

	// depCount counts, for each hash, how many applied changes name it as a
	// dependency; heads are exactly the hashes with a zero count.
	depCount map[op.Hash]int

	lastSeq map[int]uint64

	clocks *clock.Cache
}

type actorSeqEntry struct {
	key  actorSeqKey
	node *Node
}

func actorSeqEntryLess(a, b actorSeqEntry) bool { return actorSeqLess(a.key, b.key) }

// NewGraph creates an empty change graph backed by actors for actor
// interning (shared with the rest of the document).
func NewGraph(actors *actor.Table) *Graph {
	return &Graph{
		actors:     actors,
		byHash:     make(map[op.Hash]*Node),
		byActorSeq: btree.NewBTreeG(actorSeqEntryLess),
		depCount:   make(map[op.Hash]int),
		lastSeq:    make(map[int]uint64),
		clocks:     clock.NewCache(64),
	}
}

// Has reports whether hash is already present in the graph.
func (g *Graph) Has(hash op.Hash) bool {
	_, ok := g.byHash[hash]
	return ok
}

// Get returns the node for hash, if present.
func (g *Graph) Get(hash op.Hash) (*Node, bool) {
	n, ok := g.byHash[hash]
	return n, ok
}

// LastSeq returns the highest seq applied for actorIdx (0 if none).
func (g *Graph) LastSeq(actorIdx int) uint64 { return g.lastSeq[actorIdx] }

// Add appends a new node to the graph. Callers must have already verified
// causal readiness and per-actor contiguity (application engine's job).
func (g *Graph) Add(c *op.Change, hash op.Hash, actorIdx int, maxOp uint64) *Node {
	n := &Node{Change: c, Hash: hash, ActorIdx: actorIdx, MaxOp: maxOp}
	g.byHash[hash] = n
	g.byActorSeq.Set(actorSeqEntry{key: actorSeqKey{actor: actorIdx, seq: c.Seq}, node: n})
	if c.Seq > g.lastSeq[actorIdx] {
		g.lastSeq[actorIdx] = c.Seq
	}
	if _, ok := g.depCount[hash]; !ok {
		g.depCount[hash] = 0
	}
	for _, d := range c.Deps {
		g.depCount[d]++
	}
	g.clocks.Purge()
	return n
}

// ChangesByActor returns every node authored by actorIdx in seq order,
// via the byActorSeq sorted index.
func (g *Graph) ChangesByActor(actorIdx int) []*Node {
	var out []*Node
	g.byActorSeq.Scan(func(e actorSeqEntry) bool {
		if e.key.actor == actorIdx {
			out = append(out, e.node)
		}
		return true
	})
	return out
}

// Heads returns the set of hashes with no descendants in the graph,
// sorted for determinism.
func (g *Graph) Heads() []op.Hash {
	var heads []op.Hash
	for h := range g.byHash {
		if g.depCount[h] == 0 {
			heads = append(heads, h)
		}
	}
	sort.Slice(heads, func(i, j int) bool { return lessHash(heads[i], heads[j]) })
	return heads
}

func lessHash(a, b op.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// GetMissingDeps returns the set of hashes referenced as a dep by some
// applied change (or named in haveHeads) but not themselves present in the
// graph.
func (g *Graph) GetMissingDeps(haveHeads []op.Hash) []op.Hash {
	missing := make(map[op.Hash]struct{})
	for h := range g.depCount {
		if !g.Has(h) {
			missing[h] = struct{}{}
		}
	}
	for _, h := range haveHeads {
		if !g.Has(h) {
			missing[h] = struct{}{}
		}
	}
	out := make([]op.Hash, 0, len(missing))
	for h := range missing {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return lessHash(out[i], out[j]) })
	return out
}

// Topo returns every node in the graph in a deterministic topological
// order: dependencies before dependents, ties broken by (actor, seq).
func (g *Graph) Topo() []*Node {
	visited := make(map[op.Hash]bool)
	var order []*Node

	// Sort all nodes by (actor-index, seq) first so that iterating them
	// in that order and only visiting once deps are satisfied yields a
	// deterministic result regardless of insertion order.
	var all []*Node
	for _, n := range g.byHash {
		all = append(all, n)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ActorIdx != all[j].ActorIdx {
			return all[i].ActorIdx < all[j].ActorIdx
		}
		return all[i].Change.Seq < all[j].Change.Seq
	})

	var visit func(n *Node)
	visit = func(n *Node) {
		if visited[n.Hash] {
			return
		}
		visited[n.Hash] = true
		for _, d := range n.Change.Deps {
			if dn, ok := g.byHash[d]; ok {
				visit(dn)
			}
		}
		order = append(order, n)
	}
	for _, n := range all {
		visit(n)
	}
	return order
}

// ClockAt builds the vector clock implied by heads, walking ancestors and
// caching the result (clock.Cache) keyed by the sorted hash set.
func (g *Graph) ClockAt(heads []op.Hash) *clock.Clock {
	key := cacheKey(heads)
	if c, ok := g.clocks.Get(key); ok {
		return c
	}
	c := clock.New()
	visited := make(map[op.Hash]bool)
	var walk func(h op.Hash)
	walk = func(h op.Hash) {
		if visited[h] {
			return
		}
		visited[h] = true
		n, ok := g.byHash[h]
		if !ok {
			return
		}
		c.Observe(n.ActorIdx, n.Change.Seq, n.MaxOp)
		for _, d := range n.Change.Deps {
			walk(d)
		}
	}
	for _, h := range heads {
		walk(h)
	}
	g.clocks.Put(key, c)
	return c
}

func cacheKey(heads []op.Hash) string {
	sorted := append([]op.Hash(nil), heads...)
	sort.Slice(sorted, func(i, j int) bool { return lessHash(sorted[i], sorted[j]) })
	buf := make([]byte, 0, len(sorted)*32)
	for _, h := range sorted {
		buf = append(buf, h[:]...)
	}
	return string(buf)
}
