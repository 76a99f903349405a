package columnar

import (
	"bytes"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/op"
)

// EncodeDocumentBody builds a document-chunk body: the actor table, the
// heads, and every change in the graph, each encoded with EncodeChangeBody.
//
// The real automerge format bulk-encodes every op across every change into
// one shared set of columns (plus a head-index) so a loader can
// bulk-construct op trees without replaying the application engine — a
// load-time performance optimization. spec.md §1 treats the columnar
// codec's internal layout as an opaque contract boundary for the op-set
// engine this spec targets, so this package instead stores the changes as
// a sequence of independently-framed change bodies (in dependency order)
// and lets document.Load replay them through the ordinary application
// engine (document/save_load.go). This still satisfies the save/load
// round-trip property (spec.md §8 property 2) and "chunks ... independently
// framed, in any order" (spec.md §6): it just does not implement the bulk
// op-column variant of the document chunk. See DESIGN.md.
func EncodeDocumentBody(changes []*op.Change, heads []op.Hash, actors *actor.Table) ([]byte, error) {
	var buf bytes.Buffer

	allActors := actors.SortedActors()
	putUleb128(&buf, uint64(len(allActors)))
	for _, idx := range allActors {
		b := actors.Bytes(idx)
		putUleb128(&buf, uint64(len(b)))
		buf.Write(b)
	}

	putUleb128(&buf, uint64(len(heads)))
	for _, h := range heads {
		buf.Write(h[:])
	}

	putUleb128(&buf, uint64(len(changes)))
	for _, c := range changes {
		body, err := EncodeChangeBody(c, actors)
		if err != nil {
			return nil, err
		}
		putUleb128(&buf, uint64(len(body)))
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

// DecodeDocumentBody inverts EncodeDocumentBody.
func DecodeDocumentBody(body []byte, actors *actor.Table) ([]*op.Change, []op.Hash, error) {
	r := newReader(body)

	numActors, err := r.uleb128()
	if err != nil {
		return nil, nil, err
	}
	for i := uint64(0); i < numActors; i++ {
		n, err := r.uleb128()
		if err != nil {
			return nil, nil, err
		}
		b, err := r.bytesN(int(n))
		if err != nil {
			return nil, nil, err
		}
		actors.Intern(append([]byte(nil), b...))
	}

	numHeads, err := r.uleb128()
	if err != nil {
		return nil, nil, err
	}
	heads := make([]op.Hash, numHeads)
	for i := range heads {
		hb, err := r.bytesN(32)
		if err != nil {
			return nil, nil, err
		}
		copy(heads[i][:], hb)
	}

	numChanges, err := r.uleb128()
	if err != nil {
		return nil, nil, err
	}
	changes := make([]*op.Change, numChanges)
	for i := range changes {
		n, err := r.uleb128()
		if err != nil {
			return nil, nil, err
		}
		cb, err := r.bytesN(int(n))
		if err != nil {
			return nil, nil, err
		}
		c, err := DecodeChangeBody(cb, actors)
		if err != nil {
			return nil, nil, err
		}
		changes[i] = c
	}

	return changes, heads, nil
}
