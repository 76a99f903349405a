package op

// ObjType identifies the kind of object a Make op creates.
type ObjType int

const (
	ObjTypeMap ObjType = iota
	ObjTypeTable
	ObjTypeList
	ObjTypeText
)

func (t ObjType) String() string {
	switch t {
	case ObjTypeMap:
		return "map"
	case ObjTypeTable:
		return "table"
	case ObjTypeList:
		return "list"
	case ObjTypeText:
		return "text"
	default:
		return "unknown"
	}
}

// IsSequence reports whether the object type is keyed by element id rather
// than by property string.
func (t ObjType) IsSequence() bool { return t == ObjTypeList || t == ObjTypeText }

// ScalarKind tags the variant held by a Value.
type ScalarKind int

const (
	KindNull ScalarKind = iota
	KindBool
	KindInt
	KindUint
	KindFloat64
	KindString
	KindBytes
	KindCounter
	KindTimestamp
	KindUnknown // passthrough, tagged with a numeric type code
)

// Value is a tagged union over the scalar variants spec.md §3 names. Only
// one field is meaningful at a time, selected by Kind.
type Value struct {
	Kind ScalarKind

	Bool    bool
	Int     int64
	Uint    uint64
	Float64 float64
	Str     string
	Bytes   []byte

	// Counter holds the live value for KindCounter; Increment ops mutate
	// the *observed* value of the Put that created it (see optree.Tree.CounterValue),
	// this field is the value as stored at Put time.
	Counter int64
	// Timestamp is milliseconds since epoch, matching the wire encoding.
	Timestamp int64

	// UnknownTypeCode carries the original type tag for KindUnknown values
	// the library does not interpret.
	UnknownTypeCode uint64
	UnknownBytes    []byte
}

func NullValue() Value               { return Value{Kind: KindNull} }
func BoolValue(b bool) Value         { return Value{Kind: KindBool, Bool: b} }
func IntValue(i int64) Value         { return Value{Kind: KindInt, Int: i} }
func UintValue(u uint64) Value       { return Value{Kind: KindUint, Uint: u} }
func FloatValue(f float64) Value     { return Value{Kind: KindFloat64, Float64: f} }
func StringValue(s string) Value     { return Value{Kind: KindString, Str: s} }
func BytesValue(b []byte) Value      { return Value{Kind: KindBytes, Bytes: b} }
func CounterValue(i int64) Value     { return Value{Kind: KindCounter, Counter: i} }
func TimestampValue(ms int64) Value  { return Value{Kind: KindTimestamp, Timestamp: ms} }

// IsCounter reports whether this value is a counter scalar, the only kind
// Increment ops may target.
func (v Value) IsCounter() bool { return v.Kind == KindCounter }

// Width returns the index-arithmetic width of a Put value (spec.md §4.2):
// 1 for non-text values and embedded objects, or the number of code units
// of a string value under enc.
func (v Value) Width(enc TextEncoding) int {
	if v.Kind != KindString {
		return 1
	}
	return enc.Width(v.Str)
}
