package core

import (
	"maps"
	"slices"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

// Reader is the read-only view of a graph consumed by the analytics engines.
// Scans visit records in object-id order and stop when fn returns false.
type Reader interface {
	Type(name string) (NamedType, bool)
	Types() []NamedType

	Entity(id graphvalue.Identifier) (*EntityRecord, bool)
	Relationship(id graphvalue.Identifier) (*RelationshipRecord, bool)

	ScanEntities(typeName string, fn func(*EntityRecord) bool)
	ScanRelationships(typeName string, fn func(*RelationshipRecord) bool)

	// Outgoing and Incoming list the relationships whose origin, respectively
	// destination, is the given entity.
	Outgoing(entity graphvalue.Identifier, fn func(*RelationshipRecord) bool)
	Incoming(entity graphvalue.Identifier, fn func(*RelationshipRecord) bool)

	// Search runs a full-text search and returns hits by descending score.
	Search(text string, typeNames []string, kinds []TypeKind) []SearchHit
}

// view implements Reader without locking; Graph.Read holds the lock.
type view struct{ g *Graph }

func (v view) Type(name string) (NamedType, bool) {
	t, ok := v.g.types[name]
	return t, ok
}

func (v view) Types() []NamedType {
	names := slices.Sorted(maps.Keys(v.g.types))
	out := make([]NamedType, len(names))
	for i, n := range names {
		out[i] = v.g.types[n]
	}
	return out
}

func (v view) Search(text string, typeNames []string, kinds []TypeKind) []SearchHit {
	return v.g.text.search(text, typeNames, kinds)
}

func (v view) Entity(id graphvalue.Identifier) (*EntityRecord, bool) {
	e, ok := v.g.entities[id]
	return e, ok
}

func (v view) Relationship(id graphvalue.Identifier) (*RelationshipRecord, bool) {
	r, ok := v.g.relationships[id]
	return r, ok
}

func (v view) ScanEntities(typeName string, fn func(*EntityRecord) bool) {
	idx, ok := v.g.entityIndex[typeName]
	if !ok {
		return
	}
	idx.Scan(func(k orderKey) bool { return fn(v.g.entities[k.ID]) })
}

func (v view) ScanRelationships(typeName string, fn func(*RelationshipRecord) bool) {
	idx, ok := v.g.relIndex[typeName]
	if !ok {
		return
	}
	idx.Scan(func(k orderKey) bool { return fn(v.g.relationships[k.ID]) })
}

func (v view) Outgoing(entity graphvalue.Identifier, fn func(*RelationshipRecord) bool) {
	v.scanAdjacent(v.g.out[entity], fn)
}

func (v view) Incoming(entity graphvalue.Identifier, fn func(*RelationshipRecord) bool) {
	v.scanAdjacent(v.g.in[entity], fn)
}

func (v view) scanAdjacent(idx *orderedIDs, fn func(*RelationshipRecord) bool) {
	if idx == nil {
		return
	}
	idx.Scan(func(k orderKey) bool { return fn(v.g.relationships[k.ID]) })
}

// EntityTypes returns the names of the entity types of r, sorted.
func EntityTypes(r Reader) []string { return typeNames(r, EntityType) }

// RelationshipTypes returns the names of the relationship types of r, sorted.
func RelationshipTypes(r Reader) []string { return typeNames(r, RelationshipType) }

func typeNames(r Reader, kind TypeKind) []string {
	var out []string
	for _, t := range r.Types() {
		if t.Kind == kind {
			out = append(out, t.Name)
		}
	}
	return out
}
