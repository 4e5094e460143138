// Package core holds the in-memory property graph served by the datastore.
//
// The graph is a set of named types, entity records and relationship
// records. Identifiers are unique across all entity types and across all
// relationship types. Every listing is returned in object-id order, which is
// the insertion order, so results are stable across calls.
//
// Graph is safe for concurrent use: many readers or a single writer. Use
// Read to run several lookups against one consistent state.
package core

import (
	"fmt"
	"sync"

	"github.com/tidwall/btree"

	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/textanalyzer"
)

// orderKey places a record in an ordered index.
type orderKey struct {
	ObjectID int64
	ID       graphvalue.Identifier
}

func orderKeyLess(a, b orderKey) bool { return a.ObjectID < b.ObjectID }

type orderedIDs = btree.BTreeG[orderKey]

func newOrderedIDs() *orderedIDs { return btree.NewBTreeG[orderKey](orderKeyLess) }

// Graph is the property graph store.
type Graph struct {
	mu sync.RWMutex

	types         map[string]NamedType
	entities      map[graphvalue.Identifier]*EntityRecord
	relationships map[graphvalue.Identifier]*RelationshipRecord

	// entityIndex and relIndex list instances per type name.
	entityIndex map[string]*orderedIDs
	relIndex    map[string]*orderedIDs

	// out and in map an entity to its outgoing and incoming relationships.
	out map[graphvalue.Identifier]*orderedIDs
	in  map[graphvalue.Identifier]*orderedIDs

	nextObjectID int64
	text         *textIndex
}

// NewGraph creates an empty graph whose full-text index uses analyzer.
func NewGraph(analyzer textanalyzer.Analyzer) *Graph {
	return &Graph{
		types:         make(map[string]NamedType),
		entities:      make(map[graphvalue.Identifier]*EntityRecord),
		relationships: make(map[graphvalue.Identifier]*RelationshipRecord),
		entityIndex:   make(map[string]*orderedIDs),
		relIndex:      make(map[string]*orderedIDs),
		out:           make(map[graphvalue.Identifier]*orderedIDs),
		in:            make(map[graphvalue.Identifier]*orderedIDs),
		text:          newTextIndex(analyzer),
	}
}

// DefineType adds a named type to the schema. Redefining a type with the
// same kind updates its label property.
func (g *Graph) DefineType(t NamedType) error {
	if t.Name == "" {
		return kgerr.Validation("type name is empty")
	}
	if t.Kind != EntityType && t.Kind != RelationshipType {
		return kgerr.Validation(fmt.Sprintf("type %q has no valid kind", t.Name), t.Name)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if old, ok := g.types[t.Name]; ok && old.Kind != t.Kind {
		return kgerr.Validation(fmt.Sprintf("type %q is already defined as %s", t.Name, old.Kind), t.Name)
	}
	g.types[t.Name] = t
	if t.Kind == EntityType {
		if _, ok := g.entityIndex[t.Name]; !ok {
			g.entityIndex[t.Name] = newOrderedIDs()
		}
	} else if _, ok := g.relIndex[t.Name]; !ok {
		g.relIndex[t.Name] = newOrderedIDs()
	}
	return nil
}

// UpsertEntity stores an entity. A zero ID gets a fresh UUID identifier.
// Updating an existing entity keeps its object id; its type cannot change.
func (g *Graph) UpsertEntity(in EntityRecord) (*EntityRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.types[in.TypeName]
	if !ok || t.Kind != EntityType {
		return nil, kgerr.Validation("unknown entity type", in.TypeName)
	}
	if in.ID.IsZero() {
		in.ID = graphvalue.NewUUIDIdentifier()
	}

	rec := &EntityRecord{
		ID:       in.ID,
		TypeName: in.TypeName,
		Label:    in.Label,
		Props:    normalizeProps(in.Props),
	}
	if rec.Label == "" && t.LabelProperty != "" {
		if s, ok := rec.Props[t.LabelProperty].(string); ok {
			rec.Label = s
		}
	}

	if old, exists := g.entities[in.ID]; exists {
		if old.TypeName != in.TypeName {
			return nil, kgerr.Validation(fmt.Sprintf("entity %s already exists with type %q", in.ID, old.TypeName), in.TypeName)
		}
		rec.ObjectID = old.ObjectID
		g.text.remove(old.ID)
	} else {
		g.nextObjectID++
		rec.ObjectID = g.nextObjectID
		g.entityIndex[rec.TypeName].Set(orderKey{rec.ObjectID, rec.ID})
	}
	g.entities[rec.ID] = rec
	g.text.add(rec.ID, rec.TypeName, EntityType, rec.Label, rec.Props)
	return rec, nil
}

// UpsertRelationship stores a relationship between two existing entities.
func (g *Graph) UpsertRelationship(in RelationshipRecord) (*RelationshipRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, ok := g.types[in.TypeName]
	if !ok || t.Kind != RelationshipType {
		return nil, kgerr.Validation("unknown relationship type", in.TypeName)
	}
	var missing []string
	for _, id := range []graphvalue.Identifier{in.Origin, in.Destination} {
		if _, ok := g.entities[id]; !ok {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		return nil, kgerr.Validation("relationship endpoint not found", missing...)
	}
	if in.ID.IsZero() {
		in.ID = graphvalue.NewUUIDIdentifier()
	}

	rec := &RelationshipRecord{
		ID:          in.ID,
		TypeName:    in.TypeName,
		Origin:      in.Origin,
		Destination: in.Destination,
		Props:       normalizeProps(in.Props),
	}

	if old, exists := g.relationships[in.ID]; exists {
		if old.TypeName != in.TypeName {
			return nil, kgerr.Validation(fmt.Sprintf("relationship %s already exists with type %q", in.ID, old.TypeName), in.TypeName)
		}
		rec.ObjectID = old.ObjectID
		g.unlinkLocked(old)
	} else {
		g.nextObjectID++
		rec.ObjectID = g.nextObjectID
		g.relIndex[rec.TypeName].Set(orderKey{rec.ObjectID, rec.ID})
	}
	g.relationships[rec.ID] = rec
	g.linkLocked(rec)
	g.text.add(rec.ID, rec.TypeName, RelationshipType, "", rec.Props)
	return rec, nil
}

// DeleteRelationship removes a relationship. It reports whether it existed.
func (g *Graph) DeleteRelationship(id graphvalue.Identifier) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.deleteRelationshipLocked(id)
}

// DeleteEntity removes an entity together with every relationship touching it.
func (g *Graph) DeleteEntity(id graphvalue.Identifier) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.entities[id]
	if !ok {
		return false
	}
	var attached []graphvalue.Identifier
	for _, idx := range []*orderedIDs{g.out[id], g.in[id]} {
		if idx == nil {
			continue
		}
		idx.Scan(func(k orderKey) bool {
			attached = append(attached, k.ID)
			return true
		})
	}
	for _, relID := range attached {
		g.deleteRelationshipLocked(relID)
	}
	delete(g.out, id)
	delete(g.in, id)
	g.entityIndex[rec.TypeName].Delete(orderKey{rec.ObjectID, rec.ID})
	delete(g.entities, id)
	g.text.remove(id)
	return true
}

func (g *Graph) deleteRelationshipLocked(id graphvalue.Identifier) bool {
	rec, ok := g.relationships[id]
	if !ok {
		return false
	}
	g.unlinkLocked(rec)
	g.relIndex[rec.TypeName].Delete(orderKey{rec.ObjectID, rec.ID})
	delete(g.relationships, id)
	g.text.remove(id)
	return true
}

func (g *Graph) linkLocked(r *RelationshipRecord) {
	key := orderKey{r.ObjectID, r.ID}
	if g.out[r.Origin] == nil {
		g.out[r.Origin] = newOrderedIDs()
	}
	if g.in[r.Destination] == nil {
		g.in[r.Destination] = newOrderedIDs()
	}
	g.out[r.Origin].Set(key)
	g.in[r.Destination].Set(key)
}

func (g *Graph) unlinkLocked(r *RelationshipRecord) {
	key := orderKey{r.ObjectID, r.ID}
	if idx := g.out[r.Origin]; idx != nil {
		idx.Delete(key)
	}
	if idx := g.in[r.Destination]; idx != nil {
		idx.Delete(key)
	}
}

// Stats returns the number of entities and relationships.
func (g *Graph) Stats() (entities, relationships int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.entities), len(g.relationships)
}

// Read runs fn against a consistent state of the graph. fn must not call
// mutating methods of g.
func (g *Graph) Read(fn func(r Reader) error) error {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return fn(view{g})
}

// Search runs a full-text search and returns hits by descending score.
func (g *Graph) Search(text string, typeNames []string, kinds []TypeKind) []SearchHit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return view{g}.Search(text, typeNames, kinds)
}
