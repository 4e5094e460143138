package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

func openTestEngine(t *testing.T, configure ...func(*Options)) *Engine {
	t.Helper()
	opts := DefaultOptions()
	opts.MaintenanceInterval = time.Hour
	opts.SeedPath = "testdata/supplychain.yaml"
	for _, fn := range configure {
		fn(&opts)
	}
	eng, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// drain reads every batch of a session and returns the first column ids.
func drain(t *testing.T, eng *Engine, id string) (ids []string, batches int) {
	t.Helper()
	for {
		rows, done, err := eng.NextBatch(id)
		require.NoError(t, err)
		if len(rows) > 0 {
			batches++
		}
		for _, row := range rows {
			named, ok := row[0].(interface{ Identifier() graphvalue.Identifier })
			require.True(t, ok, "first column is %T", row[0])
			ids = append(ids, named.Identifier().String())
		}
		if done {
			return ids, batches
		}
	}
}

func TestSeedAndSchema(t *testing.T) {
	eng := openTestEngine(t)

	var names []string
	for _, nt := range eng.Schema() {
		names = append(names, nt.Name)
	}
	assert.Equal(t, []string{"POI", "ShipsTo", "Supplier", "Warehouse"}, names)

	entities, relationships := eng.Graph.Stats()
	assert.Equal(t, 7, entities)
	assert.Equal(t, 5, relationships)

	p1, ok := eng.Entity(graphvalue.NativeID("p1"))
	require.True(t, ok)
	assert.Equal(t, "Plant 1", p1.Label)
}

func TestParseSeedRejectsUnknownFields(t *testing.T) {
	_, err := ParseSeed(strings.NewReader("types: []\nnodes: []\n"))
	assert.Error(t, err)

	seed, err := ParseSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, seed.Types)
}

func TestQueryBatches(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.SubmitQuery(ctx, QueryRequest{
		Query:     `props.region == "south"`,
		TypeNames: []string{"POI"},
		BatchSize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, eng.OpenSessions())

	ids, batches := drain(t, eng, id)
	assert.Equal(t, []string{"p2", "p3"}, ids)
	assert.Equal(t, 2, batches)

	rows, done, err := eng.NextBatch(id)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Empty(t, rows)

	eng.CloseSession(id)
	eng.CloseSession(id)
	assert.Zero(t, eng.OpenSessions())
	_, _, err = eng.NextBatch(id)
	assert.ErrorIs(t, err, kgerr.ErrInvalidState)
}

func TestQueryAllTypesAndLimit(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	id, err := eng.SubmitQuery(ctx, QueryRequest{})
	require.NoError(t, err)
	ids, _ := drain(t, eng, id)
	assert.Len(t, ids, 12)

	id, err = eng.SubmitQuery(ctx, QueryRequest{Query: "props.cost >= 2.0", TypeNames: []string{"ShipsTo"}, Limit: 2})
	require.NoError(t, err)
	ids, _ = drain(t, eng, id)
	assert.Equal(t, []string{"r1", "r3"}, ids)
}

func TestQueryBindings(t *testing.T) {
	eng := openTestEngine(t)
	id, err := eng.SubmitQuery(context.Background(), QueryRequest{
		Query:     "props.region == params.region",
		TypeNames: []string{"POI"},
		Bindings:  map[string]any{"region": "north"},
	})
	require.NoError(t, err)
	ids, _ := drain(t, eng, id)
	assert.Equal(t, []string{"p1"}, ids)
}

func TestQueryErrors(t *testing.T) {
	eng := openTestEngine(t)
	tests := []struct {
		name string
		req  QueryRequest
		want error
	}{
		{"provenance", QueryRequest{ProvideProvenance: true}, kgerr.ErrQuery},
		{"unknown type", QueryRequest{TypeNames: []string{"Port"}}, kgerr.ErrValidation},
		{"syntax", QueryRequest{Query: "props.name =="}, kgerr.ErrQuery},
		{"negative limit", QueryRequest{Limit: -1}, kgerr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.SubmitQuery(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, eng.OpenSessions())
}

func TestSearch(t *testing.T) {
	eng := openTestEngine(t)
	id, err := eng.SubmitSearch(context.Background(), SearchRequest{Text: "steel", Target: SearchEntities})
	require.NoError(t, err)

	rows, done, err := eng.NextBatch(id)
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, rows, 1)
	ent, ok := rows[0][0].(*graphvalue.Entity)
	require.True(t, ok)
	assert.Equal(t, "s1", ent.Identifier().String())
	score, ok := rows[0][1].(graphvalue.Primitive).AsFloat64()
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-12)

	id, err = eng.SubmitSearch(context.Background(), SearchRequest{Text: "steel", Target: SearchRelationships})
	require.NoError(t, err)
	ids, _ := drain(t, eng, id)
	assert.Empty(t, ids)

	_, err = eng.SubmitSearch(context.Background(), SearchRequest{Text: "  "})
	assert.ErrorIs(t, err, kgerr.ErrValidation)
}

func TestSearchDuringMutations(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			id := graphvalue.NativeID(fmt.Sprintf("tmp%d", i%4))
			if i%2 == 0 {
				_, _ = eng.UpsertEntity(core.EntityRecord{ID: id, TypeName: "Supplier", Props: map[string]any{"name": "Steel Tmp"}})
			} else {
				_ = eng.DeleteEntity(id)
			}
		}
	}()

	for range 200 {
		id, err := eng.SubmitSearch(ctx, SearchRequest{Text: "steel", Target: SearchEntities, MaxResults: 3})
		require.NoError(t, err)
		ids, _ := drain(t, eng, id)
		assert.NotEmpty(t, ids)
		assert.LessOrEqual(t, len(ids), 3)
	}
	close(stop)
	<-done
}

func TestEvictIdleSessions(t *testing.T) {
	eng := openTestEngine(t, func(o *Options) { o.CursorIdleTimeout = time.Minute })
	id, err := eng.SubmitQuery(context.Background(), QueryRequest{TypeNames: []string{"POI"}})
	require.NoError(t, err)

	assert.Zero(t, eng.evictIdleSessions(time.Now()))
	assert.Equal(t, 1, eng.evictIdleSessions(time.Now().Add(2*time.Minute)))
	_, _, err = eng.NextBatch(id)
	assert.ErrorIs(t, err, kgerr.ErrInvalidState)
}

func TestMutations(t *testing.T) {
	eng := openTestEngine(t)

	rel, err := eng.Link(core.RelationshipRecord{
		TypeName:    "ShipsTo",
		Origin:      graphvalue.NativeID("s1"),
		Destination: graphvalue.NativeID("w2"),
	})
	require.NoError(t, err)
	assert.True(t, rel.ID.IsUUID())

	_, err = eng.Link(core.RelationshipRecord{
		TypeName:    "ShipsTo",
		Origin:      graphvalue.NativeID("s1"),
		Destination: graphvalue.NativeID("nowhere"),
	})
	assert.ErrorIs(t, err, kgerr.ErrValidation)

	require.NoError(t, eng.Unlink(rel.ID))
	assert.ErrorIs(t, eng.Unlink(rel.ID), kgerr.ErrInvalidState)

	require.NoError(t, eng.DeleteEntity(graphvalue.NativeID("w1")))
	_, relationships := eng.Graph.Stats()
	assert.Equal(t, 2, relationships)
}

func TestAnalytics(t *testing.T) {
	eng := openTestEngine(t)
	ctx := context.Background()

	cfg := centrality.DefaultConfig()
	res, err := eng.ComputeCentrality(ctx, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	deg, ok := res.Score(graphvalue.NativeID("w1"), centrality.Degree)
	require.True(t, ok)
	assert.Equal(t, 3.0, deg)

	cfg.Interpretation = centrality.Directed
	cfg.Measures = []centrality.Measure{centrality.Coreness}
	_, err = eng.ComputeCentrality(ctx, cfg, subgraph.FilterSet{})
	assert.ErrorIs(t, err, kgerr.ErrUnsupportedConfiguration)

	pcfg := pathfinding.DefaultConfig()
	pcfg.Origins = []pathfinding.EntitySelector{{TypeName: "POI"}}
	pcfg.Destinations = []pathfinding.EntitySelector{{TypeName: "Supplier"}}
	pcfg.CostProperty = "cost"
	paths, err := eng.FindPaths(ctx, pcfg)
	require.NoError(t, err)
	assert.Equal(t, 4, paths.CountPaths())
}

func TestCloseDropsSessions(t *testing.T) {
	eng := openTestEngine(t)
	_, err := eng.SubmitQuery(context.Background(), QueryRequest{})
	require.NoError(t, err)
	require.NoError(t, eng.Close())
	require.NoError(t, eng.Close())
	assert.Zero(t, eng.OpenSessions())
}
