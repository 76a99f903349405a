package change

import (
	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/columnar"
	"github.com/Polqt/automerge-go/op"
)

// ComputeHash encodes c's canonical columnar body and returns its content
// hash alongside the encoded body (callers that are about to persist the
// change can reuse the body instead of re-encoding).
func ComputeHash(c *op.Change, actors *actor.Table) (op.Hash, []byte, error) {
	body, err := columnar.EncodeChangeBody(c, actors)
	if err != nil {
		return op.Hash{}, nil, err
	}
	return columnar.Hash(body), body, nil
}
