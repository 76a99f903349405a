package document

import "github.com/Polqt/automerge-go/op"

type pendingEntry struct {
	hash op.Hash
	c    *op.Change
}

// pendingQueue holds changes that arrived before all their dependencies
// were present, keyed by each hash still missing (spec.md §4.7 step 2).
// A change can appear under more than one missing hash; queued tracks
// which changes (by their own hash) are currently waiting so a retry that
// is still incomplete does not duplicate its own queue entries.
type pendingQueue struct {
	byMissing map[op.Hash][]pendingEntry
	queued    map[op.Hash]bool
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{
		byMissing: make(map[op.Hash][]pendingEntry),
		queued:    make(map[op.Hash]bool),
	}
}

// add enqueues c (identified by cHash), which is still waiting on missing,
// under each of those hashes. No-op if c is already queued.
func (q *pendingQueue) add(cHash op.Hash, missing []op.Hash, c *op.Change) {
	if q.queued[cHash] {
		return
	}
	q.queued[cHash] = true
	for _, h := range missing {
		q.byMissing[h] = append(q.byMissing[h], pendingEntry{hash: cHash, c: c})
	}
}

// drain returns and removes every change that was waiting on satisfied,
// clearing their queued marker so a still-incomplete retry can re-enqueue
// them under their remaining missing deps.
func (q *pendingQueue) drain(satisfied op.Hash) []*op.Change {
	entries := q.byMissing[satisfied]
	delete(q.byMissing, satisfied)
	out := make([]*op.Change, 0, len(entries))
	for _, e := range entries {
		delete(q.queued, e.hash)
		out = append(out, e.c)
	}
	return out
}
