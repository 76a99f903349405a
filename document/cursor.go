package document

import (
	"bytes"

	"github.com/Polqt/automerge-go/actor"
	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/op"
)

// cursorVersion is the only wire version this package knows how to decode.
const cursorVersion = 0

// Cursor is a stable reference to a list/text element, surviving
// subsequent inserts and deletes elsewhere in the sequence as long as the
// referenced element itself is not deleted (spec.md §4.9 "get_cursor").
type Cursor struct {
	Obj  op.ObjectId
	Elem op.ElemId

	actors *actor.Table
}

// Bytes encodes the cursor as version:u8(=0) | actor-length:uleb128 |
// actor-bytes | counter:uleb128, naming the element's own insertion op.
func (c Cursor) Bytes() []byte {
	var buf bytes.Buffer
	buf.WriteByte(cursorVersion)
	var actorBytes []byte
	if c.Elem.Head {
		actorBytes = nil
	} else if c.actors != nil {
		actorBytes = c.actors.Bytes(c.Elem.Id.Actor)
	}
	writeUleb(&buf, uint64(len(actorBytes)))
	buf.Write(actorBytes)
	counter := uint64(0)
	if !c.Elem.Head {
		counter = c.Elem.Id.Counter
	}
	writeUleb(&buf, counter)
	return buf.Bytes()
}

func writeUleb(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// DecodeCursor parses a cursor previously produced by Cursor.Bytes, against
// this document's actor table.
func (d *Doc) DecodeCursor(obj op.ObjectId, data []byte) (Cursor, error) {
	if len(data) < 1 || data[0] != cursorVersion {
		return Cursor{}, amerr.ErrInvalidCursor
	}
	r := newCursorReader(data[1:])
	alen, err := r.uleb()
	if err != nil {
		return Cursor{}, amerr.ErrInvalidCursor
	}
	actorBytes, err := r.bytesN(int(alen))
	if err != nil {
		return Cursor{}, amerr.ErrInvalidCursor
	}
	counter, err := r.uleb()
	if err != nil {
		return Cursor{}, amerr.ErrInvalidCursor
	}

	if alen == 0 {
		return Cursor{Obj: obj, Elem: op.HeadElem, actors: d.actors}, nil
	}
	actorIdx, ok := d.actors.Lookup(actor.ID(actorBytes))
	if !ok {
		return Cursor{}, amerr.ErrInvalidCursor
	}
	return Cursor{Obj: obj, Elem: op.ElemFromId(op.OpId{Counter: counter, Actor: actorIdx}), actors: d.actors}, nil
}

type cursorReader struct {
	buf []byte
	pos int
}

func newCursorReader(buf []byte) *cursorReader { return &cursorReader{buf: buf} }

func (r *cursorReader) uleb() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if r.pos >= len(r.buf) {
			return 0, amerr.ErrInvalidCursor
		}
		b := r.buf[r.pos]
		r.pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
}

func (r *cursorReader) bytesN(n int) ([]byte, error) {
	if r.pos+n > len(r.buf) {
		return nil, amerr.ErrInvalidCursor
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}
