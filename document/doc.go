// Package document ties together the object registry, op trees, change
// graph, and clocks into the top-level Doc type (spec.md §2 "Data flow"),
// and implements the application engine (C7), the sync-protocol boundary
// methods, and Save/Load.
package document

import (
	"crypto/rand"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/change"
	"github.com/Polqt/automerge-go/doclog"
	"github.com/Polqt/automerge-go/objects"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/patch"
	"go.uber.org/zap"
)

// Doc is a single CRDT document instance. It is not safe for concurrent
// use from multiple goroutines (spec.md §5 "single-threaded"): callers
// that need sharing must serialize access themselves (e.g. the teacher's
// session.Hub pattern).
type Doc struct {
	cfg Config
	log *zap.Logger

	actors *actor.Table
	props  *actor.PropTable
	objs   *objects.Registry
	graph  *change.Graph

	actorIdx int // this replica's own dense actor_index

	pending *pendingQueue

	sinks []patch.Sink
}

// New creates an empty document.
func New(cfg Config) *Doc {
	cfg = cfg.withDefaults()
	if cfg.ActorID == nil {
		cfg.ActorID = randomActorID()
	}

	actors := actor.NewTable()
	d := &Doc{
		cfg:     cfg,
		log:     doclog.L(),
		actors:  actors,
		props:   actor.NewPropTable(),
		graph:   change.NewGraph(actors),
		pending: newPendingQueue(),
	}
	d.objs = objects.New(actors, cfg.TextEncoding)
	d.actorIdx = actors.Intern(actor.ID(cfg.ActorID))
	return d
}

func randomActorID() []byte {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return b
}

// ActorID returns this replica's own actor identity bytes.
func (d *Doc) ActorID() []byte { return append([]byte(nil), d.cfg.ActorID...) }

// Observe registers sink to receive every future patch emitted by
// ApplyChanges/transaction commits, in emission order.
func (d *Doc) Observe(sink patch.Sink) { d.sinks = append(d.sinks, sink) }

// GetHeads returns the current frontier: change hashes with no
// descendants (spec.md §4.5).
func (d *Doc) GetHeads() []op.Hash { return d.graph.Heads() }

// GetMissingDeps returns the hashes referenced as a dependency by some
// applied change, or by haveHeads, that are not themselves present
// (spec.md §6 sync surface).
func (d *Doc) GetMissingDeps(haveHeads []op.Hash) []op.Hash {
	return d.graph.GetMissingDeps(haveHeads)
}

// GetChangeByHash returns the change named by hash, if present.
func (d *Doc) GetChangeByHash(hash op.Hash) (*op.Change, bool) {
	n, ok := d.graph.Get(hash)
	if !ok {
		return nil, false
	}
	return n.Change, true
}

// GetChanges returns every applied change not already implied by
// haveDeps, in dependency-respecting (topological) order, for the sync
// protocol boundary (spec.md §6).
func (d *Doc) GetChanges(haveDeps []op.Hash) []*op.Change {
	closure := make(map[op.Hash]bool)
	var markAncestors func(h op.Hash)
	markAncestors = func(h op.Hash) {
		if closure[h] {
			return
		}
		closure[h] = true
		if n, ok := d.graph.Get(h); ok {
			for _, dep := range n.Change.Deps {
				markAncestors(dep)
			}
		}
	}
	for _, h := range haveDeps {
		markAncestors(h)
	}

	var out []*op.Change
	for _, n := range d.graph.Topo() {
		if closure[n.Hash] {
			continue
		}
		out = append(out, n.Change)
	}
	return out
}

// objectOrErr resolves obj to its registry entry, or ErrUnknownObject.
func (d *Doc) objectOrErr(obj op.ObjectId) (*objects.Object, error) {
	return d.objs.MustGet(obj)
}

// internActor interns raw actor bytes, for callers crossing the
// actor/document boundary (e.g. change.ComputeHash's caller).
func (d *Doc) internActor(id []byte) int { return d.actors.Intern(actor.ID(id)) }

func (d *Doc) wrapErr(err error, context string) error {
	if err == nil {
		return nil
	}
	return amerr.Wrap(err, context)
}
