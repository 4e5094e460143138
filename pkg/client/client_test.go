package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/internal/server"
	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

const testToken = "client-test-token"

// newTestClient starts a datastore seeded with the supply chain graph and
// returns a client connected to it.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.AuthToken = testToken
	cfg.Engine.SeedPath = "../engine/testdata/supplychain.yaml"
	cfg.Engine.MaintenanceInterval = time.Hour

	eng, err := engine.Open(cfg.Engine.Options())
	require.NoError(t, err)
	s, err := server.NewServer(eng, cfg)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Shutdown()
		_ = eng.Close()
	})

	c := NewFromURL(ts.URL, testToken)
	c.PollInterval = 5 * time.Millisecond
	return c
}

func collectIDs(t *testing.T, ctx context.Context, cur *RowCursor) []string {
	t.Helper()
	var ids []string
	for {
		ok, err := cur.WaitForNextBatch(ctx)
		require.NoError(t, err)
		if !ok {
			return ids
		}
		for cur.Advance() {
			named, ok := cur.Current()[0].(interface{ Identifier() graphvalue.Identifier })
			require.True(t, ok)
			ids = append(ids, named.Identifier().String())
		}
	}
}

func TestQueryRoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	cur, err := c.SubmitQuery(ctx, QueryFilter{
		Query:     "props.region == params.region",
		TypeNames: []string{"POI"},
		Bindings:  map[string]any{"region": "south"},
		BatchSize: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p3"}, collectIDs(t, ctx, cur))
	assert.Equal(t, CursorExhausted, cur.State())
	require.NoError(t, cur.Close(ctx))

	cur, err = c.SubmitSearch(ctx, SearchFilter{Text: "steel", Target: "entities"})
	require.NoError(t, err)
	ok, err := cur.WaitForNextBatch(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, cur.Advance())
	row := cur.Current()
	require.Len(t, row, 2)
	score, ok := row[1].(graphvalue.Primitive).AsFloat64()
	require.True(t, ok)
	assert.InDelta(t, 1.0, score, 1e-12)
	require.NoError(t, cur.Close(ctx))
}

func TestGraphMutations(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.DefineType(ctx, core.NamedType{Name: "Port", Kind: core.EntityType}))
	types, err := c.Schema(ctx)
	require.NoError(t, err)
	assert.Len(t, types, 5)

	port, err := c.UpsertEntity(ctx, core.EntityRecord{
		ID:       graphvalue.NativeID("x1"),
		TypeName: "Port",
		Props:    map[string]any{"name": "Genoa"},
	})
	require.NoError(t, err)
	assert.Equal(t, "x1", port.ID.String())

	rel, err := c.Link(ctx, core.RelationshipRecord{
		TypeName:    "ShipsTo",
		Origin:      port.ID,
		Destination: graphvalue.NativeID("w1"),
	})
	require.NoError(t, err)
	assert.True(t, rel.ID.IsUUID())

	require.NoError(t, c.Unlink(ctx, rel.ID))
	err = c.Unlink(ctx, rel.ID)
	require.ErrorIs(t, err, kgerr.ErrInvalidState)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	require.NoError(t, c.DeleteEntity(ctx, port.ID))
	assert.ErrorIs(t, c.DeleteEntity(ctx, port.ID), kgerr.ErrInvalidState)
}

func TestRemoteErrorsReleaseTheSession(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.SubmitQuery(ctx, QueryFilter{TypeNames: []string{"Port"}})
	require.ErrorIs(t, err, kgerr.ErrValidation)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, kgerr.CodeValidation, apiErr.Code)

	_, err = c.SubmitQuery(ctx, QueryFilter{Query: "props.name =="})
	require.ErrorIs(t, err, kgerr.ErrQuery)

	_, err = c.Schema(ctx)
	assert.NoError(t, err)
}

func TestCursorHoldsTheSession(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	cur, err := c.SubmitQuery(ctx, QueryFilter{TypeNames: []string{"POI"}})
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = c.Schema(waitCtx)
	require.ErrorIs(t, err, kgerr.ErrTimedOut)

	done := make(chan error, 1)
	go func() {
		_, err := c.Schema(ctx)
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("schema ran while the cursor held the session")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, cur.Close(ctx))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("session was not released by Close")
	}
}

func TestAnalytics(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	cfg := centrality.DefaultConfig()
	cfg.Measures = []centrality.Measure{centrality.Degree, centrality.PageRank}
	res, err := c.ComputeCentrality(ctx, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	deg, ok := res.Score(graphvalue.NativeID("w1"), centrality.Degree)
	require.True(t, ok)
	assert.Equal(t, 3.0, deg)

	cfg.Interpretation = centrality.Directed
	cfg.Measures = []centrality.Measure{centrality.Coreness}
	_, err = c.ComputeCentrality(ctx, cfg, subgraph.FilterSet{})
	assert.ErrorIs(t, err, kgerr.ErrUnsupportedConfiguration)

	pcfg := pathfinding.DefaultConfig()
	pcfg.Origins = []pathfinding.EntitySelector{{TypeName: "POI"}}
	pcfg.Destinations = []pathfinding.EntitySelector{{TypeName: "Supplier"}}
	pcfg.CostProperty = "cost"
	paths, err := c.FindPaths(ctx, pcfg)
	require.NoError(t, err)
	require.Equal(t, 4, paths.CountPaths())
	path, err := paths.MaterializePath(paths.PathsByIncreasingMinCost()[0])
	require.NoError(t, err)
	assert.Equal(t, 3, path.Length)

	pcfg.MinPathLength = 0
	_, err = c.FindPaths(ctx, pcfg)
	assert.ErrorIs(t, err, kgerr.ErrValidation)
}

func TestAbandonedWaitLeavesTaskRunning(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := "running"
		if r.Method == http.MethodPost {
			status = "started"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "t1", "status": status})
	}))
	defer ts.Close()

	c := NewFromURL(ts.URL, "")
	c.PollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := c.FindPaths(ctx, pathfinding.DefaultConfig())
	require.ErrorIs(t, err, kgerr.ErrTimedOut)
	assert.Contains(t, err.Error(), "keeps running on the server")

	task, err := c.GetTaskStatus(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "running", task.Status)

	// The session was released.
	require.NoError(t, c.acquire(context.Background()))
	c.release()
}

func TestConnectionErrors(t *testing.T) {
	c := newTestClient(t)
	c.apiKey = "wrong"
	_, err := c.Schema(context.Background())
	assert.ErrorIs(t, err, kgerr.ErrConnection)

	c = NewFromURL("http://127.0.0.1:1", "")
	_, err = c.Schema(context.Background())
	assert.ErrorIs(t, err, kgerr.ErrConnection)
	assert.False(t, errors.Is(err, kgerr.ErrQuery))
}
