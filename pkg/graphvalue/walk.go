package graphvalue

import "errors"

// SkipChildren can be returned by a WalkFunc to skip the children of the
// value being visited. It is not returned by Walk.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every value of the tree, parents before children.
type WalkFunc func(v Value, depth int) error

// Walk visits v recursively:
//   - primitives are leaves;
//   - arrays visit their elements in order;
//   - objects, entities and relationships visit their field values in key order;
//   - paths visit their entities and relationships in path order (e0 r0 e1 ...).
//
// The first error returned by fn, other than SkipChildren, stops the walk.
func Walk(v Value, fn WalkFunc) error {
	return walk(v, 0, fn)
}

func walk(v Value, depth int, fn WalkFunc) error {
	if v == nil {
		return nil
	}
	if err := fn(v, depth); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	switch x := v.(type) {
	case Primitive:
		return nil
	case Array:
		for _, e := range x.elems {
			if err := walk(e, depth+1, fn); err != nil {
				return err
			}
		}
	case *Object:
		return walkFields(x, depth, fn)
	case *Entity:
		return walkFields(&x.Object, depth, fn)
	case *Relationship:
		return walkFields(&x.Object, depth, fn)
	case *Path:
		for i, e := range x.entities {
			if err := walk(e, depth+1, fn); err != nil {
				return err
			}
			if i < len(x.relationships) {
				if err := walk(x.relationships[i], depth+1, fn); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func walkFields(o *Object, depth int, fn WalkFunc) error {
	for _, k := range o.keys {
		if err := walk(o.fields[k], depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// NamedObjects collects every entity and relationship reachable from v, in
// walk order, without duplicates.
func NamedObjects(v Value) (entities []*Entity, relationships []*Relationship) {
	seen := make(map[ObjectKey]struct{})
	_ = Walk(v, func(v Value, _ int) error {
		switch x := v.(type) {
		case *Entity:
			if _, dup := seen[x.Key()]; !dup {
				seen[x.Key()] = struct{}{}
				entities = append(entities, x)
			}
		case *Relationship:
			if _, dup := seen[x.Key()]; !dup {
				seen[x.Key()] = struct{}{}
				relationships = append(relationships, x)
			}
		}
		return nil
	})
	return entities, relationships
}
