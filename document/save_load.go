package document

import (
	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/columnar"
	"github.com/Polqt/automerge-go/op"
)

// Save serializes the document to a framed document chunk (spec.md §6):
// the actor table, the current heads, and every applied change, so Load
// can reconstruct an identical document by replaying the changes through
// the ordinary application engine.
func (d *Doc) Save() ([]byte, error) {
	changes := make([]*op.Change, 0, len(d.graph.Topo()))
	for _, n := range d.graph.Topo() {
		changes = append(changes, n.Change)
	}
	body, err := columnar.EncodeDocumentBody(changes, d.GetHeads(), d.actors)
	if err != nil {
		return nil, d.wrapErr(err, "encoding document body")
	}
	return columnar.WriteDocumentChunk(body), nil
}

// Load decodes bytes (as produced by Save, or a change-chunk/compressed
// chunk stream) into a fresh document, applying every decoded change
// through the application engine (applyOne, spec.md §4.7, §7).
//
// OnPartialLoadIgnoreTail keeps whatever prefix of changes applied cleanly
// before the first failure rather than aborting the whole load; this
// mirrors real-world documents recovered from a truncated file.
func Load(data []byte, cfg Config) (*Doc, error) {
	d := New(cfg)
	if err := d.loadInto(data); err != nil {
		return nil, err
	}
	return d, nil
}

// LoadInto decodes bytes and applies every decoded change into an existing
// (possibly non-empty) document, honoring its configured partial-load
// policy (spec.md §6 "apply_changes" used incrementally with a sync peer).
func (d *Doc) LoadInto(data []byte) error {
	return d.loadInto(data)
}

func (d *Doc) loadInto(data []byte) error {
	var allChanges []*op.Change

	remaining := data
	for len(remaining) > 0 {
		// The chunk-type byte sits right after magic(4)+checksum(4); a
		// compressed chunk needs its own reader (ReadCompressedChunk) since
		// its checksum covers the *uncompressed* payload, which ReadChunk's
		// generic framing does not know how to verify.
		if len(remaining) > 8 && remaining[8] == columnar.ChunkTypeCompressed {
			uncompressed, consumed, err := columnar.ReadCompressedChunk(remaining)
			if err != nil {
				return amerr.Wrap(err, "inflating compressed chunk")
			}
			remaining = remaining[consumed:]
			c, err := columnar.DecodeChangeBody(uncompressed, d.actors)
			if err != nil {
				return amerr.Wrap(err, "decoding inflated change body")
			}
			allChanges = append(allChanges, c)
			continue
		}

		chunkType, body, consumed, err := columnar.ReadChunk(remaining)
		if err != nil {
			return amerr.Wrap(err, "reading chunk")
		}
		remaining = remaining[consumed:]

		switch chunkType {
		case columnar.ChunkTypeDocument:
			changes, _, err := columnar.DecodeDocumentBody(body, d.actors)
			if err != nil {
				return amerr.Wrap(err, "decoding document body")
			}
			allChanges = append(allChanges, changes...)
		case columnar.ChunkTypeChange:
			c, err := columnar.DecodeChangeBody(body, d.actors)
			if err != nil {
				return amerr.Wrap(err, "decoding change body")
			}
			allChanges = append(allChanges, c)
		default:
			return amerr.Wrap(amerr.ErrParse, "unknown chunk type")
		}
	}

	for _, c := range allChanges {
		if _, err := d.applyOne(c); err != nil {
			if d.cfg.OnPartialLoad == OnPartialLoadIgnoreTail {
				return nil
			}
			return amerr.Wrap(err, "applying loaded change")
		}
	}
	return nil
}
