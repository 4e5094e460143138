// Package coretest builds small graphs for tests.
package coretest

import (
	"testing"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
)

// ID is a shorthand for a native identifier.
func ID(s string) graphvalue.Identifier { return graphvalue.NativeID(s) }

// Builder assembles a graph and fails the test on the first error.
type Builder struct {
	t testing.TB
	G *core.Graph
}

func New(t testing.TB) *Builder {
	t.Helper()
	return &Builder{t: t, G: core.NewGraph(nil)}
}

func (b *Builder) EntityType(names ...string) *Builder {
	b.t.Helper()
	for _, n := range names {
		if err := b.G.DefineType(core.NamedType{Name: n, Kind: core.EntityType, LabelProperty: "name"}); err != nil {
			b.t.Fatalf("define %s: %v", n, err)
		}
	}
	return b
}

func (b *Builder) RelationshipType(names ...string) *Builder {
	b.t.Helper()
	for _, n := range names {
		if err := b.G.DefineType(core.NamedType{Name: n, Kind: core.RelationshipType}); err != nil {
			b.t.Fatalf("define %s: %v", n, err)
		}
	}
	return b
}

func (b *Builder) Entity(id, typeName string, props map[string]any) *Builder {
	b.t.Helper()
	if _, err := b.G.UpsertEntity(core.EntityRecord{ID: ID(id), TypeName: typeName, Props: props}); err != nil {
		b.t.Fatalf("entity %s: %v", id, err)
	}
	return b
}

func (b *Builder) Rel(id, typeName, from, to string, props map[string]any) *Builder {
	b.t.Helper()
	_, err := b.G.UpsertRelationship(core.RelationshipRecord{
		ID:          ID(id),
		TypeName:    typeName,
		Origin:      ID(from),
		Destination: ID(to),
		Props:       props,
	})
	if err != nil {
		b.t.Fatalf("relationship %s: %v", id, err)
	}
	return b
}

// Read runs fn with a reader over g.
func Read(t testing.TB, g *core.Graph, fn func(r core.Reader)) {
	t.Helper()
	_ = g.Read(func(r core.Reader) error {
		fn(r)
		return nil
	})
}

// SupplyChain returns three POIs and two suppliers linked through two
// warehouses:
//
//	s1 -> w1 -> w2 -> p1
//	s2 -> w1
//	w2 -> p2
//	p3 (isolated)
//
// Every link is a ShipsTo relationship with a cost property.
func SupplyChain(t testing.TB) *core.Graph {
	t.Helper()
	return New(t).
		EntityType("POI", "Supplier", "Warehouse").
		RelationshipType("ShipsTo").
		Entity("p1", "POI", map[string]any{"name": "Plant 1", "region": "north"}).
		Entity("p2", "POI", map[string]any{"name": "Plant 2", "region": "south"}).
		Entity("p3", "POI", map[string]any{"name": "Plant 3", "region": "south"}).
		Entity("s1", "Supplier", map[string]any{"name": "Steel Co"}).
		Entity("s2", "Supplier", map[string]any{"name": "Bolt Co"}).
		Entity("w1", "Warehouse", map[string]any{"name": "Hub"}).
		Entity("w2", "Warehouse", map[string]any{"name": "Depot"}).
		Rel("r1", "ShipsTo", "s1", "w1", map[string]any{"cost": 2.0}).
		Rel("r2", "ShipsTo", "s2", "w1", map[string]any{"cost": 1.0}).
		Rel("r3", "ShipsTo", "w1", "w2", map[string]any{"cost": 4.0}).
		Rel("r4", "ShipsTo", "w2", "p1", map[string]any{"cost": 1.5}).
		Rel("r5", "ShipsTo", "w2", "p2", map[string]any{"cost": 3.0}).
		G
}
