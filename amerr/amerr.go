// Package amerr defines the sentinel error kinds surfaced to callers of the
// document engine. Every error returned across package boundaries wraps one
// of these sentinels so callers can use errors.Is/errors.As instead of
// matching on strings.
package amerr

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfOrderSeq is returned when a change's seq skips ahead of the
	// actor's last applied seq.
	ErrOutOfOrderSeq = errors.New("automerge: out of order seq")

	// ErrDuplicateChange is returned by the op tree when an op id is
	// already present in it. Applying a change whose hash is already known
	// is a silent no-op and returns no error.
	ErrDuplicateChange = errors.New("automerge: duplicate change")

	// ErrHashMismatch names a decoded change whose recomputed hash
	// disagrees with the hash in its header. No function in this module
	// returns it: decoded changes are applied without comparing hashes.
	ErrHashMismatch = errors.New("automerge: hash mismatch")

	// ErrUnknownObject is returned when an op names an object id that has
	// no corresponding Make op.
	ErrUnknownObject = errors.New("automerge: unknown object")

	// ErrInvalidPredecessor is returned when an op's pred set names an id
	// absent from the target object, or a predecessor with counter >= the
	// op's own counter.
	ErrInvalidPredecessor = errors.New("automerge: invalid predecessor")

	// ErrNonNumericIncrement is returned when any of an Increment op's
	// predecessors is not a counter-valued Put.
	ErrNonNumericIncrement = errors.New("automerge: increment on non-counter value")

	// ErrEmptyMapKey is returned when a map/table mutation names an empty
	// property string.
	ErrEmptyMapKey = errors.New("automerge: empty map key")

	// ErrInvalidCursor is returned when a cursor fails to parse or no
	// longer names a position in the target object.
	ErrInvalidCursor = errors.New("automerge: invalid cursor")

	// ErrInvalidMarkValue is returned when a MarkBegin's value is not one
	// of the scalar variants (spec.md Open Question (b)).
	ErrInvalidMarkValue = errors.New("automerge: invalid mark value")

	// ErrParse is the umbrella for malformed-wire-format errors: bad LEB,
	// bad UTF-8, unknown type code, trailing data.
	ErrParse = errors.New("automerge: parse error")
)

// MissingDependency describes a change whose deps are not all present. No
// function in this module returns it: the document keeps such a change in
// its pending queue, returns no error, and applies it once the missing
// hashes have been applied.
type MissingDependency struct {
	Hashes [][32]byte
}

func (e *MissingDependency) Error() string {
	return fmt.Sprintf("automerge: missing %d dependent change(s)", len(e.Hashes))
}

// OutOfOrder reports the actor/seq pair that violated per-actor contiguity.
type OutOfOrder struct {
	Actor    string
	Expected uint64
	Actual   uint64
}

func (e *OutOfOrder) Error() string {
	return fmt.Sprintf("%v: actor=%s expected seq=%d got=%d", ErrOutOfOrderSeq, e.Actor, e.Expected, e.Actual)
}

func (e *OutOfOrder) Unwrap() error { return ErrOutOfOrderSeq }

// Wrap attaches context to one of the sentinel errors above.
func Wrap(sentinel error, context string) error {
	return fmt.Errorf("%s: %w", context, sentinel)
}
