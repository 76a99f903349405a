// Package objects implements the object registry (C4 in SPEC_FULL.md): the
// map from an ObjectId to its type, its op tree, and the key path back to
// its parent, used for cursor resolution and the parents()/path_to_object
// queries (spec.md §4.9).
package objects

import (
	"github.com/Polqt/automerge-go/amerr"
	"github.com/Polqt/automerge-go/op"
	"github.com/Polqt/automerge-go/optree"
)

// Object is one live object in the document: its type, its op tree, and
// where it hangs off its parent.
type Object struct {
	Id   op.ObjectId
	Type op.ObjType
	Tree *optree.Tree

	// Parent and ParentKey are the zero value for the root object.
	Parent    op.ObjectId
	ParentKey op.Key
	HasParent bool
}

// PathSegment names one step on the route from the root down to an
// object: the containing object and the key selecting the child within it.
type PathSegment struct {
	Obj op.ObjectId
	Key op.Key
}

// Registry owns every object in a document, keyed by ObjectId.
type Registry struct {
	idx     op.SortedIndexer
	textEnc op.TextEncoding

	objects map[op.ObjectId]*Object
}

// New creates a registry pre-populated with the document root (a map
// object named by op.RootObject).
func New(idx op.SortedIndexer, textEnc op.TextEncoding) *Registry {
	r := &Registry{
		idx:     idx,
		textEnc: textEnc,
		objects: make(map[op.ObjectId]*Object),
	}
	r.objects[op.RootObject] = &Object{
		Id:   op.RootObject,
		Type: op.ObjTypeMap,
		Tree: optree.New(op.RootObject, op.ObjTypeMap, idx, textEnc),
	}
	return r
}

// Create registers a new object created by a Make op, hanging off parent
// at parentKey.
func (r *Registry) Create(id op.ObjectId, objType op.ObjType, parent op.ObjectId, parentKey op.Key) *Object {
	o := &Object{
		Id:        id,
		Type:      objType,
		Tree:      optree.New(id, objType, r.idx, r.textEnc),
		Parent:    parent,
		ParentKey: parentKey,
		HasParent: true,
	}
	r.objects[id] = o
	return o
}

// Get resolves id to its Object.
func (r *Registry) Get(id op.ObjectId) (*Object, bool) {
	o, ok := r.objects[id]
	return o, ok
}

// MustGet resolves id or returns ErrUnknownObject, for call sites that
// have already validated id refers to a real object (e.g. an op's Obj
// field after causal-readiness checks).
func (r *Registry) MustGet(id op.ObjectId) (*Object, error) {
	o, ok := r.objects[id]
	if !ok {
		return nil, amerr.Wrap(amerr.ErrUnknownObject, "object "+id.String()+" not found")
	}
	return o, nil
}

// Len returns the number of live (non-tombstoned-at-registry-level)
// objects, including the root.
func (r *Registry) Len() int { return len(r.objects) }

// All returns every object in the registry; order is unspecified.
func (r *Registry) All() []*Object {
	out := make([]*Object, 0, len(r.objects))
	for _, o := range r.objects {
		out = append(out, o)
	}
	return out
}

// Parents returns the chain of ancestor objects from id's immediate
// parent up to (and including) the root, nearest first.
func (r *Registry) Parents(id op.ObjectId) []op.ObjectId {
	var out []op.ObjectId
	cur, ok := r.objects[id]
	if !ok {
		return nil
	}
	for cur.HasParent {
		out = append(out, cur.Parent)
		cur, ok = r.objects[cur.Parent]
		if !ok {
			break
		}
	}
	return out
}

// PathToObject returns the full path from the root down to id: one
// PathSegment per hop, root-first. An empty, non-nil slice means id is the
// root itself.
func (r *Registry) PathToObject(id op.ObjectId) ([]PathSegment, error) {
	obj, ok := r.objects[id]
	if !ok {
		return nil, amerr.Wrap(amerr.ErrUnknownObject, "object "+id.String()+" not found")
	}
	var segs []PathSegment
	for obj.HasParent {
		segs = append(segs, PathSegment{Obj: obj.Parent, Key: obj.ParentKey})
		parent, ok := r.objects[obj.Parent]
		if !ok {
			break
		}
		obj = parent
	}
	// segs was built leaf-to-root; reverse it to root-to-leaf.
	for i, j := 0, len(segs)-1; i < j; i, j = i+1, j-1 {
		segs[i], segs[j] = segs[j], segs[i]
	}
	return segs, nil
}
