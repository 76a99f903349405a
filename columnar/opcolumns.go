package columnar

import (
	"bytes"
	"fmt"

	"github.com/Polqt/automerge-go/op"
)

// encodeOpColumns serializes c.Ops into the columnar layout spec.md §6
// describes, resolving global actor_index values to the change-local
// table via localOf (global actor_index -> local index).
func encodeOpColumns(ops []*op.Op, localOf map[int]int) ([]byte, error) {
	n := len(ops)
	objActor := make([]*uint64, n)
	objCounter := make([]uint64, n)
	keyIsSeq := make([]bool, n)
	keyString := make([]*string, n)
	keyIsHead := make([]bool, n)
	keyActor := make([]*uint64, n)
	keyCounter := make([]int64, n)
	idActor := make([]uint64, n)
	idCounter := make([]int64, n)
	insert := make([]bool, n)
	action := make([]uint64, n)
	predGroup := make([]uint64, n)
	var predActor []uint64
	var predCounter []int64
	var valueBlobs [][]byte

	for i, o := range ops {
		if o.Obj.IsRoot() {
			objActor[i] = nil
			objCounter[i] = 0
		} else {
			local := uint64(localOf[o.Obj.Actor])
			objActor[i] = &local
			objCounter[i] = o.Obj.Counter
		}

		if o.Key.IsMap {
			keyIsSeq[i] = false
			s := o.Key.Prop
			keyString[i] = &s
		} else {
			keyIsSeq[i] = true
			if o.Key.Elem.Head {
				keyIsHead[i] = true
			} else {
				local := uint64(localOf[o.Key.Elem.Id.Actor])
				keyActor[i] = &local
				keyCounter[i] = int64(o.Key.Elem.Id.Counter)
			}
		}

		idActor[i] = uint64(localOf[o.Id.Actor])
		idCounter[i] = int64(o.Id.Counter)
		insert[i] = o.Insert

		tag, err := actionTag(o.Action)
		if err != nil {
			return nil, err
		}
		action[i] = tag

		predGroup[i] = uint64(len(o.Pred))
		for _, p := range o.Pred {
			predActor = append(predActor, uint64(localOf[p.Actor]))
			predCounter = append(predCounter, int64(p.Counter))
		}

		blob, err := encodeValueBlob(o.Action)
		if err != nil {
			return nil, err
		}
		valueBlobs = append(valueBlobs, blob)
	}

	var buf bytes.Buffer
	putUleb128(&buf, uint64(n))
	writeCol(&buf, EncodeRLEOptUint(objActor))
	writeCol(&buf, EncodeDeltaInt(int64Slice(objCounter)))
	writeCol(&buf, EncodeBoolRLE(keyIsSeq))
	writeCol(&buf, EncodeRLEOptStr(keyString))
	writeCol(&buf, EncodeBoolRLE(keyIsHead))
	writeCol(&buf, EncodeRLEOptUint(keyActor))
	writeCol(&buf, EncodeDeltaInt(keyCounter))
	writeCol(&buf, EncodeRLEUint(idActor))
	writeCol(&buf, EncodeDeltaInt(idCounter))
	writeCol(&buf, EncodeBoolRLE(insert))
	writeCol(&buf, EncodeRLEUint(action))
	writeCol(&buf, EncodeRLEUint(predGroup))
	writeCol(&buf, EncodeRLEUint(predActor))
	writeCol(&buf, EncodeDeltaInt(predCounter))

	putUleb128(&buf, uint64(len(valueBlobs)))
	for _, b := range valueBlobs {
		putUleb128(&buf, uint64(len(b)))
		buf.Write(b)
	}

	return buf.Bytes(), nil
}

func writeCol(buf *bytes.Buffer, col []byte) {
	putUleb128(buf, uint64(len(col)))
	buf.Write(col)
}

func readCol(r *reader) ([]byte, error) {
	n, err := r.uleb128()
	if err != nil {
		return nil, err
	}
	return r.bytesN(int(n))
}

func int64Slice(u []uint64) []int64 {
	out := make([]int64, len(u))
	for i, v := range u {
		out[i] = int64(v)
	}
	return out
}

// decodeOpColumns inverts encodeOpColumns, consuming exactly the op-columns
// portion of a change/document body. localActors maps local actor index ->
// global (caller's actor.Table) dense index, with localActors[0] always
// being the change's own author.
func decodeOpColumns(data []byte, localActors []int, startOp uint64) ([]*op.Op, int, error) {
	r := newReader(data)
	n, err := r.uleb128()
	if err != nil {
		return nil, 0, err
	}

	col := func() ([]byte, error) { return readCol(r) }

	c, err := col()
	if err != nil {
		return nil, 0, err
	}
	objActor, err := DecodeRLEOptUint(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	objCounter, err := DecodeDeltaInt(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	keyIsSeq, err := DecodeBoolRLE(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	keyString, err := DecodeRLEOptStr(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	keyIsHead, err := DecodeBoolRLE(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	keyActor, err := DecodeRLEOptUint(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	keyCounter, err := DecodeDeltaInt(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	idActor, err := DecodeRLEUint(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	idCounter, err := DecodeDeltaInt(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	insert, err := DecodeBoolRLE(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	action, err := DecodeRLEUint(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	predGroup, err := DecodeRLEUint(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	predActor, err := DecodeRLEUint(c)
	if err != nil {
		return nil, 0, err
	}

	c, err = col()
	if err != nil {
		return nil, 0, err
	}
	predCounter, err := DecodeDeltaInt(c)
	if err != nil {
		return nil, 0, err
	}

	numBlobs, err := r.uleb128()
	if err != nil {
		return nil, 0, err
	}
	valueBlobs := make([][]byte, numBlobs)
	for i := uint64(0); i < numBlobs; i++ {
		blen, err := r.uleb128()
		if err != nil {
			return nil, 0, err
		}
		b, err := r.bytesN(int(blen))
		if err != nil {
			return nil, 0, err
		}
		valueBlobs[i] = b
	}

	if uint64(len(objActor)) != n || uint64(len(action)) != n {
		return nil, 0, fmt.Errorf("%w: op column length mismatch", errParse)
	}

	ops := make([]*op.Op, n)
	predCursor := 0
	for i := uint64(0); i < n; i++ {
		o := &op.Op{}
		if objActor[i] == nil {
			o.Obj = op.RootObject
		} else {
			o.Obj = op.OpId{Actor: localActors[*objActor[i]], Counter: uint64(objCounter[i])}
		}

		if !keyIsSeq[i] {
			o.Key = op.MapKey(*keyString[i])
		} else if keyIsHead[i] {
			o.Key = op.HeadKey()
		} else {
			o.Key = op.ElemKey(op.ElemFromId(op.OpId{
				Actor:   localActors[*keyActor[i]],
				Counter: uint64(keyCounter[i]),
			}))
		}

		o.Id = op.OpId{Actor: localActors[idActor[i]], Counter: uint64(idCounter[i])}
		o.Insert = insert[i]

		act, err := decodeValueBlob(action[i], valueBlobs[i])
		if err != nil {
			return nil, 0, err
		}
		o.Action = act

		k := int(predGroup[i])
		for j := 0; j < k; j++ {
			o.Pred = append(o.Pred, op.OpId{
				Actor:   localActors[predActor[predCursor]],
				Counter: uint64(predCounter[predCursor]),
			})
			predCursor++
		}
		ops[i] = o
	}

	return ops, r.pos, nil
}
