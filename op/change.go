package op

// Hash is a change's content hash: SHA-256 over its canonical columnar
// encoding including the chunk-type byte (spec.md §3).
type Hash [32]byte

// IsZero reports whether h is the zero hash (never a real change's hash,
// used as a sentinel in dep-less contexts).
func (h Hash) IsZero() bool { return h == Hash{} }

func (h Hash) String() string {
	const hex = "0123456789abcdef"
	out := make([]byte, len(h)*2)
	for i, b := range h {
		out[i*2] = hex[b>>4]
		out[i*2+1] = hex[b&0xf]
	}
	return string(out)
}

// Change is an atomic batch of ops authored by one actor (spec.md §3).
//
// Actor is a raw actor identity ([]byte rather than actor.ID) so this leaf
// package does not need to import the actor package, which interns these
// bytes; callers convert with actor.ID(c.Actor) at the boundary.
type Change struct {
	Actor      []byte
	Seq        uint64
	StartOp    uint64
	Time       int64
	Message    string
	Deps       []Hash
	Ops        []*Op
	ExtraBytes []byte

	// OtherActors lists actor bytes referenced by this change's ops other
	// than Actor itself, sorted lexicographically (wire format, spec.md §6).
	OtherActors [][]byte
}

// MaxOp returns the highest op counter this change assigns.
func (c *Change) MaxOp() uint64 {
	if len(c.Ops) == 0 {
		return c.StartOp - 1
	}
	return c.StartOp + uint64(len(c.Ops)) - 1
}
