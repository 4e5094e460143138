// Package graphvalue implements the value tree returned by graph queries and
// searches: primitives, arrays, anonymous objects, entities, relationships
// and paths.
//
// The tree is a closed tagged union. Every concrete kind implements Value and
// consumers switch on the concrete type (or on KindOf):
//
//	switch x := v.(type) {
//	case graphvalue.Primitive:
//	case graphvalue.Array:
//	case *graphvalue.Entity:
//	case *graphvalue.Relationship:
//	case *graphvalue.Path:
//	case *graphvalue.Object:
//	}
//
// Values are immutable once constructed. Constructors copy their inputs and
// accessors never hand out internal slices. The tree is acyclic: paths hold
// their entities and relationships by value, not by reference into a graph.
package graphvalue

// Kind identifies the arm of the tagged union.
type Kind uint8

const (
	KindPrimitive Kind = iota + 1
	KindArray
	KindObject
	KindEntity
	KindRelationship
	KindPath
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindEntity:
		return "entity"
	case KindRelationship:
		return "relationship"
	case KindPath:
		return "path"
	default:
		return "unknown"
	}
}

// Value is any node of the value tree.
type Value interface {
	Kind() Kind
	graphValue()
}

// KindOf returns the kind of v, or 0 for a nil value.
func KindOf(v Value) Kind {
	if v == nil {
		return 0
	}
	return v.Kind()
}

// Array is an ordered, possibly heterogeneous sequence of values.
type Array struct {
	elems []Value
}

// NewArray copies elems into a new Array.
func NewArray(elems ...Value) Array {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Array{elems: cp}
}

func (Array) Kind() Kind  { return KindArray }
func (Array) graphValue() {}

// Len returns the number of elements.
func (a Array) Len() int { return len(a.elems) }

// At returns the i-th element.
func (a Array) At(i int) Value { return a.elems[i] }

// Elements returns a copy of the elements in insertion order.
func (a Array) Elements() []Value {
	cp := make([]Value, len(a.elems))
	copy(cp, a.elems)
	return cp
}

// Field is a single name/value pair used to build objects.
type Field struct {
	Name  string
	Value Value
}

// Object is a mapping of unique field names to values that keeps the order
// in which the fields were first declared. It is the base of every named
// object and the default arm for anonymous projections.
type Object struct {
	keys   []string
	fields map[string]Value
}

// NewObject builds an anonymous object. A repeated field name replaces the
// earlier value and keeps the earlier position.
func NewObject(fields ...Field) *Object {
	o := newObject(fields)
	return &o
}

func newObject(fields []Field) Object {
	o := Object{
		keys:   make([]string, 0, len(fields)),
		fields: make(map[string]Value, len(fields)),
	}
	for _, f := range fields {
		if _, seen := o.fields[f.Name]; !seen {
			o.keys = append(o.keys, f.Name)
		}
		o.fields[f.Name] = f.Value
	}
	return o
}

func (*Object) Kind() Kind  { return KindObject }
func (*Object) graphValue() {}

// Len returns the number of fields.
func (o *Object) Len() int { return len(o.keys) }

// Keys returns the field names in declaration order.
func (o *Object) Keys() []string {
	cp := make([]string, len(o.keys))
	copy(cp, o.keys)
	return cp
}

// Value returns the value stored under key.
func (o *Object) Value(key string) (Value, bool) {
	v, ok := o.fields[key]
	return v, ok
}

// Fields returns the fields in declaration order.
func (o *Object) Fields() []Field {
	out := make([]Field, len(o.keys))
	for i, k := range o.keys {
		out[i] = Field{Name: k, Value: o.fields[k]}
	}
	return out
}
