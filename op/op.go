package op

// ObjectId names an object: either the document root or the OpId of the
// Make op that created it.
type ObjectId = OpId

// RootObject is the distinguished root object id.
var RootObject = Root

// ElemId names a position in a list/text object: either HEAD (the position
// before any element) or the OpId of the insertion op that created the
// position.
type ElemId struct {
	Head bool
	Id   OpId
}

// HeadElem is the sentinel naming "before any element".
var HeadElem = ElemId{Head: true}

func ElemFromId(id OpId) ElemId { return ElemId{Id: id} }

func (e ElemId) IsHead() bool { return e.Head }

// ElemLess orders element ids with HEAD strictly less than every OpId
// (spec.md §4.2).
func ElemLess(a, b ElemId, idx SortedIndexer) bool {
	if a.Head && b.Head {
		return false
	}
	if a.Head {
		return true
	}
	if b.Head {
		return false
	}
	return Less(a.Id, b.Id, idx)
}

func ElemEqual(a, b ElemId) bool {
	if a.Head != b.Head {
		return false
	}
	if a.Head {
		return true
	}
	return Equal(a.Id, b.Id)
}

// Key is either a map/table property (a string) or a list/text element id.
// Exactly one of Prop/Elem is meaningful, selected by IsMap.
type Key struct {
	IsMap bool
	Prop  string
	Elem  ElemId
}

func MapKey(prop string) Key   { return Key{IsMap: true, Prop: prop} }
func ElemKey(e ElemId) Key     { return Key{IsMap: false, Elem: e} }
func HeadKey() Key             { return Key{IsMap: false, Elem: HeadElem} }

func (k Key) Equal(o Key) bool {
	if k.IsMap != o.IsMap {
		return false
	}
	if k.IsMap {
		return k.Prop == o.Prop
	}
	return ElemEqual(k.Elem, o.Elem)
}

// ActionKind tags the variant held by an Action.
type ActionKind int

const (
	ActionMake ActionKind = iota
	ActionPut
	ActionIncrement
	ActionDelete
	ActionMarkBegin
	ActionMarkEnd
)

// MarkExpand records whether a mark's endpoint should grow when text is
// inserted at that endpoint (spec.md §4.11).
type MarkExpand int

const (
	ExpandNone MarkExpand = iota
	ExpandBefore
	ExpandAfter
	ExpandBoth
)

// Action is a tagged union over the op action variants (spec.md §3).
type Action struct {
	Kind ActionKind

	MakeType ObjType // ActionMake

	Value Value // ActionPut

	IncrementBy int64 // ActionIncrement

	// ActionMarkBegin / ActionMarkEnd
	MarkExpand MarkExpand
	MarkName   string // ActionMarkBegin only
	MarkValue  Value  // ActionMarkBegin only
}

func MakeAction(t ObjType) Action    { return Action{Kind: ActionMake, MakeType: t} }
func PutAction(v Value) Action       { return Action{Kind: ActionPut, Value: v} }
func IncrementAction(n int64) Action { return Action{Kind: ActionIncrement, IncrementBy: n} }
func DeleteAction() Action           { return Action{Kind: ActionDelete} }

func MarkBeginAction(expand MarkExpand, name string, v Value) Action {
	return Action{Kind: ActionMarkBegin, MarkExpand: expand, MarkName: name, MarkValue: v}
}

func MarkEndAction(expand MarkExpand) Action {
	return Action{Kind: ActionMarkEnd, MarkExpand: expand}
}

// Op is the record for a single operation (spec.md §3).
type Op struct {
	Id     OpId
	Obj    ObjectId
	Key    Key
	Action Action
	Insert bool

	// Pred and Succ are kept sorted under Lamport order (the mirror
	// invariant, spec.md §3 invariant 3).
	Pred []OpId
	Succ []OpId
}

// HasSuccessor reports whether id is a member of this op's Succ set
// (equivalently this op's Id is in the Pred of the op named by id).
func (o *Op) HasSuccessor(id OpId) bool {
	for _, s := range o.Succ {
		if Equal(s, id) {
			return true
		}
	}
	return false
}

// AddSuccessor inserts id into Succ, keeping it sorted and de-duplicated.
func (o *Op) AddSuccessor(id OpId, idx SortedIndexer) {
	if o.HasSuccessor(id) {
		return
	}
	o.Succ = append(o.Succ, id)
	SortIds(o.Succ, idx)
}

// RemoveSuccessor deletes id from Succ (used by transaction rollback).
func (o *Op) RemoveSuccessor(id OpId) {
	for i, s := range o.Succ {
		if Equal(s, id) {
			o.Succ = append(o.Succ[:i], o.Succ[i+1:]...)
			return
		}
	}
}

// Clone returns a deep-enough copy of o safe to mutate independently
// (pred/succ slices are copied; Value.Bytes/UnknownBytes are shared, since
// ops never mutate those in place).
func (o *Op) Clone() *Op {
	cp := *o
	cp.Pred = append([]OpId(nil), o.Pred...)
	cp.Succ = append([]OpId(nil), o.Succ...)
	return &cp
}
