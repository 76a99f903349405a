package document

import (
	"github.com/Polqt/automerge-go/op"
)

// PartialLoadPolicy controls Load's behavior when a decoded change fails
// to apply (spec.md §7). A chunk that fails to parse aborts Load under
// either policy, before any change is applied.
type PartialLoadPolicy int

const (
	// OnPartialLoadError aborts Load entirely on the first chunk failure.
	OnPartialLoadError PartialLoadPolicy = iota
	// OnPartialLoadIgnoreTail keeps whatever was successfully applied
	// before the first failure and stops there.
	OnPartialLoadIgnoreTail
)

// Config selects a document's fixed, creation-time settings.
type Config struct {
	// ActorID is this replica's identity. A random one is minted if nil.
	ActorID []byte

	// TextEncoding selects the index unit for Text objects (spec.md §9
	// "Text encoding"). Defaults to EncodingUTF8.
	TextEncoding op.TextEncoding

	// OnPartialLoad selects Load's tail-failure policy.
	OnPartialLoad PartialLoadPolicy
}

// withDefaults is the identity function: TextEncoding's zero value is
// already EncodingUTF8 (op/text_encoding.go) and OnPartialLoad's zero value
// is already OnPartialLoadError, so the zero Config is fully usable as-is.
func (c Config) withDefaults() Config { return c }
