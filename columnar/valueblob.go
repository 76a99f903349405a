package columnar

import (
	"bytes"
	"fmt"
	"math"

	"github.com/Polqt/automerge-go/op"
)

// Scalar type codes used inside a value blob's metadata byte. These are
// this package's own tagging scheme for the "value-metadata + value-raw"
// pair spec.md §6 names as a unit; this package collapses that pair into
// one self-describing blob per op rather than a split RLE metadata/raw
// column pair.
const (
	scalarNull byte = iota
	scalarBool
	scalarInt
	scalarUint
	scalarFloat64
	scalarString
	scalarBytes
	scalarCounter
	scalarTimestamp
	scalarUnknown
)

func encodeScalar(buf *bytes.Buffer, v op.Value) {
	switch v.Kind {
	case op.KindNull:
		buf.WriteByte(scalarNull)
	case op.KindBool:
		buf.WriteByte(scalarBool)
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case op.KindInt:
		buf.WriteByte(scalarInt)
		putSleb128(buf, v.Int)
	case op.KindUint:
		buf.WriteByte(scalarUint)
		putUleb128(buf, v.Uint)
	case op.KindFloat64:
		buf.WriteByte(scalarFloat64)
		putUleb128(buf, float64Bits(v.Float64))
	case op.KindString:
		buf.WriteByte(scalarString)
		putStr(buf, v.Str)
	case op.KindBytes:
		buf.WriteByte(scalarBytes)
		putUleb128(buf, uint64(len(v.Bytes)))
		buf.Write(v.Bytes)
	case op.KindCounter:
		buf.WriteByte(scalarCounter)
		putSleb128(buf, v.Counter)
	case op.KindTimestamp:
		buf.WriteByte(scalarTimestamp)
		putSleb128(buf, v.Timestamp)
	case op.KindUnknown:
		buf.WriteByte(scalarUnknown)
		putUleb128(buf, v.UnknownTypeCode)
		putUleb128(buf, uint64(len(v.UnknownBytes)))
		buf.Write(v.UnknownBytes)
	}
}

func decodeScalar(r *reader) (op.Value, error) {
	tag, err := r.byte()
	if err != nil {
		return op.Value{}, err
	}
	switch tag {
	case scalarNull:
		return op.NullValue(), nil
	case scalarBool:
		b, err := r.byte()
		if err != nil {
			return op.Value{}, err
		}
		return op.BoolValue(b != 0), nil
	case scalarInt:
		v, err := r.sleb128()
		if err != nil {
			return op.Value{}, err
		}
		return op.IntValue(v), nil
	case scalarUint:
		v, err := r.uleb128()
		if err != nil {
			return op.Value{}, err
		}
		return op.UintValue(v), nil
	case scalarFloat64:
		v, err := r.uleb128()
		if err != nil {
			return op.Value{}, err
		}
		return op.FloatValue(bitsToFloat64(v)), nil
	case scalarString:
		s, err := r.str()
		if err != nil {
			return op.Value{}, err
		}
		return op.StringValue(s), nil
	case scalarBytes:
		n, err := r.uleb128()
		if err != nil {
			return op.Value{}, err
		}
		b, err := r.bytesN(int(n))
		if err != nil {
			return op.Value{}, err
		}
		return op.BytesValue(append([]byte(nil), b...)), nil
	case scalarCounter:
		v, err := r.sleb128()
		if err != nil {
			return op.Value{}, err
		}
		return op.CounterValue(v), nil
	case scalarTimestamp:
		v, err := r.sleb128()
		if err != nil {
			return op.Value{}, err
		}
		return op.TimestampValue(v), nil
	case scalarUnknown:
		code, err := r.uleb128()
		if err != nil {
			return op.Value{}, err
		}
		n, err := r.uleb128()
		if err != nil {
			return op.Value{}, err
		}
		b, err := r.bytesN(int(n))
		if err != nil {
			return op.Value{}, err
		}
		return op.Value{Kind: op.KindUnknown, UnknownTypeCode: code, UnknownBytes: append([]byte(nil), b...)}, nil
	default:
		return op.Value{}, fmt.Errorf("%w: unknown scalar tag %d", errParse, tag)
	}
}

// encodeValueBlob encodes the payload specific to one op's Action.
func encodeValueBlob(a op.Action) ([]byte, error) {
	var buf bytes.Buffer
	switch a.Kind {
	case op.ActionMake:
		buf.WriteByte(byte(a.MakeType))
	case op.ActionPut:
		encodeScalar(&buf, a.Value)
	case op.ActionIncrement:
		putSleb128(&buf, a.IncrementBy)
	case op.ActionDelete:
		// no payload
	case op.ActionMarkBegin:
		buf.WriteByte(byte(a.MarkExpand))
		putStr(&buf, a.MarkName)
		encodeScalar(&buf, a.MarkValue)
	case op.ActionMarkEnd:
		buf.WriteByte(byte(a.MarkExpand))
	default:
		return nil, fmt.Errorf("%w: unknown action kind %d", errParse, a.Kind)
	}
	return buf.Bytes(), nil
}

// decodeValueBlob inverts encodeValueBlob given the action tag column's
// value for this op.
func decodeValueBlob(actionTag uint64, blob []byte) (op.Action, error) {
	r := newReader(blob)
	switch actionTag {
	case actionMakeMap:
		return op.MakeAction(op.ObjTypeMap), nil
	case actionMakeList:
		return op.MakeAction(op.ObjTypeList), nil
	case actionMakeText:
		return op.MakeAction(op.ObjTypeText), nil
	case actionMakeTable:
		return op.MakeAction(op.ObjTypeTable), nil
	case actionSet:
		v, err := decodeScalar(r)
		if err != nil {
			return op.Action{}, err
		}
		return op.PutAction(v), nil
	case actionIncrement:
		n, err := r.sleb128()
		if err != nil {
			return op.Action{}, err
		}
		return op.IncrementAction(n), nil
	case actionDelete:
		return op.DeleteAction(), nil
	case actionMark:
		expandByte, err := r.byte()
		if err != nil {
			return op.Action{}, err
		}
		if r.remaining() == 0 {
			return op.MarkEndAction(op.MarkExpand(expandByte)), nil
		}
		name, err := r.str()
		if err != nil {
			return op.Action{}, err
		}
		v, err := decodeScalar(r)
		if err != nil {
			return op.Action{}, err
		}
		return op.MarkBeginAction(op.MarkExpand(expandByte), name, v), nil
	default:
		return op.Action{}, fmt.Errorf("%w: unknown action tag %d", errParse, actionTag)
	}
}

func float64Bits(f float64) uint64   { return math.Float64bits(f) }
func bitsToFloat64(u uint64) float64 { return math.Float64frombits(u) }
