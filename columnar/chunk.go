package columnar

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/op"
)

// Magic bytes and chunk types (spec.md §6).
var Magic = [4]byte{0x85, 0x6f, 0x4a, 0x83}

const (
	ChunkTypeDocument   byte = 0x00
	ChunkTypeChange     byte = 0x01
	ChunkTypeCompressed byte = 0x02
)

// action tags, spec.md §6.
const (
	actionMakeMap   uint64 = 0
	actionSet       uint64 = 1
	actionMakeList  uint64 = 2
	actionDelete    uint64 = 3
	actionMakeText  uint64 = 4
	actionIncrement uint64 = 5
	actionMakeTable uint64 = 6
	actionMark      uint64 = 7
)

func actionTag(a op.Action) (uint64, error) {
	switch a.Kind {
	case op.ActionMake:
		switch a.MakeType {
		case op.ObjTypeMap:
			return actionMakeMap, nil
		case op.ObjTypeList:
			return actionMakeList, nil
		case op.ObjTypeText:
			return actionMakeText, nil
		case op.ObjTypeTable:
			return actionMakeTable, nil
		}
	case op.ActionPut:
		return actionSet, nil
	case op.ActionDelete:
		return actionDelete, nil
	case op.ActionIncrement:
		return actionIncrement, nil
	case op.ActionMarkBegin, op.ActionMarkEnd:
		return actionMark, nil
	}
	return 0, fmt.Errorf("%w: unknown action kind %d", errParse, a.Kind)
}

// EncodeChangeBody builds the change-chunk body (everything after
// chunk-length in spec.md §6's layout) and interns any actor bytes the
// change references into actors so OpId.Actor fields resolve correctly.
func EncodeChangeBody(c *op.Change, actors *actor.Table) ([]byte, error) {
	authorIdx, ok := actors.Lookup(c.Actor)
	if !ok {
		authorIdx = actors.Intern(c.Actor)
	}

	// Build the local (change-scoped) actor table: index 0 is the author,
	// 1..N are every other actor referenced by an op, sorted lexicographically.
	localOf := map[int]int{authorIdx: 0}
	var others [][]byte
	addLocal := func(globalIdx int) {
		if _, ok := localOf[globalIdx]; ok {
			return
		}
		localOf[globalIdx] = -1 // placeholder, fixed up below
		others = append(others, actors.Bytes(globalIdx))
	}
	for _, o := range c.Ops {
		if !o.Obj.IsRoot() {
			addLocal(o.Obj.Actor)
		}
		if !o.Key.IsMap && !o.Key.Elem.Head {
			addLocal(o.Key.Elem.Id.Actor)
		}
		for _, p := range o.Pred {
			addLocal(p.Actor)
		}
	}
	sortByBytes(others)
	for i, b := range others {
		idx, _ := actors.Lookup(b)
		localOf[idx] = i + 1
	}

	var buf bytes.Buffer
	putUleb128(&buf, uint64(len(c.Actor)))
	buf.Write(c.Actor)
	putUleb128(&buf, c.Seq)
	putUleb128(&buf, c.StartOp)
	putSleb128(&buf, c.Time)
	putStr(&buf, c.Message)

	putUleb128(&buf, uint64(len(others)))
	for _, b := range others {
		putUleb128(&buf, uint64(len(b)))
		buf.Write(b)
	}

	putUleb128(&buf, uint64(len(c.Deps)))
	for _, d := range c.Deps {
		buf.Write(d[:])
	}

	opCols, err := encodeOpColumns(c.Ops, localOf)
	if err != nil {
		return nil, err
	}
	buf.Write(opCols)

	buf.Write(c.ExtraBytes)
	return buf.Bytes(), nil
}

// DecodeChangeBody inverts EncodeChangeBody, interning any new actor bytes
// into actors so the resulting op.Change's OpId.Actor fields are valid
// dense indices in the caller's actor table.
func DecodeChangeBody(body []byte, actors *actor.Table) (*op.Change, error) {
	r := newReader(body)

	actorLen, err := r.uleb128()
	if err != nil {
		return nil, err
	}
	actorBytes, err := r.bytesN(int(actorLen))
	if err != nil {
		return nil, err
	}
	c := &op.Change{Actor: append([]byte(nil), actorBytes...)}
	authorIdx := actors.Intern(c.Actor)

	if c.Seq, err = r.uleb128(); err != nil {
		return nil, err
	}
	if c.StartOp, err = r.uleb128(); err != nil {
		return nil, err
	}
	if c.StartOp == 0 {
		return nil, fmt.Errorf("%w: start_op must be nonzero", errParse)
	}
	if c.Time, err = r.sleb128(); err != nil {
		return nil, err
	}
	if c.Message, err = r.str(); err != nil {
		return nil, err
	}

	numOthers, err := r.uleb128()
	if err != nil {
		return nil, err
	}
	localActors := []int{authorIdx}
	for i := uint64(0); i < numOthers; i++ {
		n, err := r.uleb128()
		if err != nil {
			return nil, err
		}
		b, err := r.bytesN(int(n))
		if err != nil {
			return nil, err
		}
		bb := append([]byte(nil), b...)
		c.OtherActors = append(c.OtherActors, bb)
		localActors = append(localActors, actors.Intern(bb))
	}

	numDeps, err := r.uleb128()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numDeps; i++ {
		hb, err := r.bytesN(32)
		if err != nil {
			return nil, err
		}
		var h op.Hash
		copy(h[:], hb)
		c.Deps = append(c.Deps, h)
	}

	ops, consumed, err := decodeOpColumns(r.buf[r.pos:], localActors, c.StartOp)
	if err != nil {
		return nil, err
	}
	r.pos += consumed
	c.Ops = ops

	c.ExtraBytes = append([]byte(nil), r.buf[r.pos:]...)
	return c, nil
}

// Hash computes a change's content hash: SHA-256 over the chunk-type byte
// followed by the change-chunk body (spec.md §3).
func Hash(body []byte) op.Hash {
	h := sha256.Sum256(append([]byte{ChunkTypeChange}, body...))
	return h
}

// WriteChangeChunk frames body as a complete on-the-wire change chunk:
// magic, checksum, chunk-type, chunk-length, body.
func WriteChangeChunk(body []byte) []byte {
	return frame(ChunkTypeChange, body)
}

// WriteDocumentChunk frames body as a document chunk.
func WriteDocumentChunk(body []byte) []byte {
	return frame(ChunkTypeDocument, body)
}

func frame(chunkType byte, body []byte) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	sum := sha256.Sum256(append([]byte{chunkType}, body...))
	buf.Write(sum[:4])
	buf.WriteByte(chunkType)
	putUleb128(&buf, uint64(len(body)))
	buf.Write(body)
	return buf.Bytes()
}

// ReadChunk parses one framed chunk from the front of data, returning its
// type, its body, and the number of bytes consumed. The checksum is
// verified against the body (for compressed chunks, against the compressed
// bytes, per spec.md §6's "checksum still matches the uncompressed body"
// note being the exception handled by the caller after inflating).
func ReadChunk(data []byte) (chunkType byte, body []byte, consumed int, err error) {
	r := newReader(data)
	magic, err := r.bytesN(4)
	if err != nil {
		return 0, nil, 0, err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return 0, nil, 0, fmt.Errorf("%w: bad magic bytes", errParse)
	}
	checksum, err := r.bytesN(4)
	if err != nil {
		return 0, nil, 0, err
	}
	chunkType, err = r.byte()
	if err != nil {
		return 0, nil, 0, err
	}
	length, err := r.uleb128()
	if err != nil {
		return 0, nil, 0, err
	}
	body, err = r.bytesN(int(length))
	if err != nil {
		return 0, nil, 0, err
	}
	sum := sha256.Sum256(append([]byte{chunkType}, body...))
	if !bytes.Equal(sum[:4], checksum) {
		return 0, nil, 0, fmt.Errorf("%w: checksum mismatch", errParse)
	}
	return chunkType, body, r.pos, nil
}

func sortByBytes(bs [][]byte) {
	for i := 1; i < len(bs); i++ {
		for j := i; j > 0 && bytes.Compare(bs[j], bs[j-1]) < 0; j-- {
			bs[j], bs[j-1] = bs[j-1], bs[j]
		}
	}
}
