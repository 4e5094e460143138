package subgraph

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/core/coretest"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

func resolve(t *testing.T, g *core.Graph, fs FilterSet) (*Resolved, error) {
	t.Helper()
	var (
		res *Resolved
		err error
	)
	coretest.Read(t, g, func(r core.Reader) {
		res, err = Resolve(context.Background(), r, fs)
	})
	return res, err
}

func entityIDs(s *Resolved) []string {
	var ids []string
	for _, e := range s.Entities() {
		ids = append(ids, e.ID.String())
	}
	return ids
}

func relIDs(s *Resolved) []string {
	var ids []string
	for _, r := range s.Relationships() {
		ids = append(ids, r.ID.String())
	}
	return ids
}

func assertEdgeClosure(t *testing.T, s *Resolved) {
	t.Helper()
	for _, r := range s.Relationships() {
		assert.True(t, s.IncludesEntity(r.Origin), "origin of %s", r.ID)
		assert.True(t, s.IncludesEntity(r.Destination), "destination of %s", r.ID)
	}
}

func TestNoFiltersSelectsWholeGraph(t *testing.T) {
	g := coretest.SupplyChain(t)
	s, err := resolve(t, g, FilterSet{})
	require.NoError(t, err)

	ents, rels := g.Stats()
	assert.Len(t, s.Entities(), ents)
	assert.Len(t, s.Relationships(), rels)
	assert.Equal(t, []string{"p1", "p2", "p3", "s1", "s2", "w1", "w2"}, entityIDs(s))
}

func TestIncludeByInstance(t *testing.T) {
	g := coretest.SupplyChain(t)
	fs := FilterSet{EntityFilters: []NamedTypeFilter{
		IncludeSelection("POI", coretest.ID("p1"), coretest.ID("p3")),
	}}
	s, err := resolve(t, g, fs)
	require.NoError(t, err)

	assert.True(t, s.IncludesEntity(coretest.ID("p1")))
	assert.False(t, s.IncludesEntity(coretest.ID("p2")))
	assert.True(t, s.IncludesEntity(coretest.ID("p3")))
	assert.True(t, s.IncludesEntity(coretest.ID("s1")), "other types stay whole")

	// r5 ends at the excluded p2.
	assert.False(t, s.IncludesRelationship(coretest.ID("r5")))
	assertEdgeClosure(t, s)
}

func TestExcludeByPredicate(t *testing.T) {
	g := coretest.SupplyChain(t)
	fs := FilterSet{
		EntityFilters: []NamedTypeFilter{
			{Kind: Exclude, TypeName: "Warehouse", Predicate: `label == "Hub"`},
		},
	}
	s, err := resolve(t, g, fs)
	require.NoError(t, err)
	assert.False(t, s.IncludesEntity(coretest.ID("w1")))
	assert.Equal(t, []string{"r4", "r5"}, relIDs(s))
	assertEdgeClosure(t, s)
}

func TestRelationshipFiltersNarrowOnly(t *testing.T) {
	g := coretest.SupplyChain(t)
	fs := FilterSet{
		EntityFilters: []NamedTypeFilter{ExcludeSelection("POI", coretest.ID("p1"))},
		RelationshipFilters: []NamedTypeFilter{
			// Selects r4 explicitly, but its destination p1 is excluded.
			IncludeSelection("ShipsTo", coretest.ID("r4"), coretest.ID("r5")),
		},
	}
	s, err := resolve(t, g, fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"r5"}, relIDs(s))
	assertEdgeClosure(t, s)

	fs.RelationshipFilters = []NamedTypeFilter{{Kind: Include, TypeName: "ShipsTo", Predicate: "props.cost < 2.5"}}
	s, err = resolve(t, g, fs)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, relIDs(s))
}

func TestIdsWinOverPredicate(t *testing.T) {
	g := coretest.SupplyChain(t)
	fs := FilterSet{EntityFilters: []NamedTypeFilter{{
		Kind:        Include,
		TypeName:    "Supplier",
		InstanceIDs: []graphvalue.Identifier{coretest.ID("s2")},
		Predicate:   "this does not compile",
	}}}
	s, err := resolve(t, g, fs)
	require.NoError(t, err)
	assert.False(t, s.IncludesEntity(coretest.ID("s1")))
	assert.True(t, s.IncludesEntity(coretest.ID("s2")))
}

func TestValidationErrors(t *testing.T) {
	g := coretest.SupplyChain(t)
	tests := []struct {
		name  string
		fs    FilterSet
		is    error
		names []string
	}{
		{
			name: "unknown types",
			fs: FilterSet{
				EntityFilters:       []NamedTypeFilter{{TypeName: "Factory"}},
				RelationshipFilters: []NamedTypeFilter{{TypeName: "Owns"}, {TypeName: "Owns"}},
			},
			is:    kgerr.ErrValidation,
			names: []string{"Factory", "Owns"},
		},
		{
			name:  "wrong kind",
			fs:    FilterSet{EntityFilters: []NamedTypeFilter{{TypeName: "ShipsTo"}}},
			is:    kgerr.ErrValidation,
			names: []string{"ShipsTo"},
		},
		{
			name: "ambiguous policy",
			fs: FilterSet{EntityFilters: []NamedTypeFilter{
				IncludeSelection("POI", coretest.ID("p1")),
				ExcludeSelection("POI", coretest.ID("p2")),
			}},
			is:    kgerr.ErrValidation,
			names: []string{"POI"},
		},
		{
			name: "bad predicate",
			fs:   FilterSet{EntityFilters: []NamedTypeFilter{{TypeName: "POI", Predicate: "props.region =="}}},
			is:   kgerr.ErrQuery,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			coretest.Read(t, g, func(r core.Reader) { err = tt.fs.Validate(r) })
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
			if tt.names != nil {
				assert.Equal(t, tt.names, kgerr.Names(err))
			}
		})
	}
}

func TestResolveHonoursCancellation(t *testing.T) {
	b := coretest.New(t).EntityType("N")
	for i := 0; i < 2*cancelCheckInterval; i++ {
		b.Entity(fmt.Sprintf("n%d", i), "N", nil)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var err error
	coretest.Read(t, b.G, func(r core.Reader) {
		_, err = Resolve(ctx, r, FilterSet{})
	})
	assert.ErrorIs(t, err, kgerr.ErrCancelled)
}

func TestEmptySelectionIncludesNothing(t *testing.T) {
	g := coretest.SupplyChain(t)
	s, err := resolve(t, g, FilterSet{EntityFilters: []NamedTypeFilter{IncludeSelection("POI")}})
	require.NoError(t, err)
	for _, id := range []string{"p1", "p2", "p3"} {
		assert.False(t, s.IncludesEntity(coretest.ID(id)))
	}
	assert.True(t, s.IncludesEntity(coretest.ID("w1")))
}

func TestFilterYAMLKeepsSelectionMode(t *testing.T) {
	in := FilterSet{EntityFilters: []NamedTypeFilter{
		IncludeSelection("POI"),
		{Kind: Exclude, TypeName: "Warehouse", Predicate: `props.name == "Hub"`},
	}}
	raw, err := yaml.Marshal(in)
	require.NoError(t, err)

	var out FilterSet
	require.NoError(t, yaml.Unmarshal(raw, &out))
	require.Len(t, out.EntityFilters, 2)
	assert.NotNil(t, out.EntityFilters[0].InstanceIDs)
	assert.Empty(t, out.EntityFilters[0].InstanceIDs)
	assert.Nil(t, out.EntityFilters[1].InstanceIDs)

	g := coretest.SupplyChain(t)
	s, err := resolve(t, g, out)
	require.NoError(t, err)
	assert.False(t, s.IncludesEntity(coretest.ID("p1")))
	assert.False(t, s.IncludesEntity(coretest.ID("w1")))
	assert.True(t, s.IncludesEntity(coretest.ID("s1")))
}
