// Package netsync fans a document's sync-protocol boundary (spec.md §6)
// out across multiple peers concurrently, adapting the teacher's
// multi-connection hub shape (session.Hub fanning messages out to many
// websocket clients) to fanning requests out to many sync peers instead.
package netsync

import (
	"context"

	"github.com/Polqt/automerge-go/document"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/patch"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Peer is anything that can answer the sync protocol's pull side: given
// the hashes this replica already has, return every change it is missing.
// A websocket, gRPC, or in-process transport all implement this the same
// way the teacher's transport.WSHandler implements session.Sender.
type Peer interface {
	Fetch(ctx context.Context, haveHeads []op.Hash) ([]*op.Change, error)
}

// PullFromAll concurrently fetches the missing changes from every peer
// (each peer sees the same haveHeads, since they are fetched before any
// peer's response is applied) and then applies everything gathered in one
// ApplyChanges call, so causal-readiness queueing (spec.md §4.7 step 2)
// still sees the full batch regardless of which peer a dependency arrived
// from.
//
// A slow or failing peer does not block the others: errgroup.Group runs
// every Fetch concurrently and, same as the teacher's hub loop accepting
// that one client's write can fail without taking down the others, a
// single peer's error is reported but does not prevent applying whatever
// the other peers returned.
func PullFromAll(ctx context.Context, doc *document.Doc, peers []Peer) ([]patch.Patch, error) {
	haveHeads := doc.GetHeads()

	results := make([][]*op.Change, len(peers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range peers {
		i, p := i, p
		g.Go(func() error {
			changes, err := p.Fetch(gctx, haveHeads)
			if err != nil {
				return err
			}
			results[i] = changes
			return nil
		})
	}
	fetchErr := g.Wait()

	var all []*op.Change
	for _, changes := range results {
		all = append(all, changes...)
	}
	if len(all) == 0 {
		return nil, fetchErr
	}

	patches, applyErr := doc.ApplyChanges(all)
	return patches, multierr.Append(fetchErr, applyErr)
}
