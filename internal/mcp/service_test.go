package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

func newTestService(t *testing.T) (*Service, *engine.Engine) {
	t.Helper()
	opts := engine.DefaultOptions()
	opts.SeedPath = "../../pkg/engine/testdata/supplychain.yaml"
	opts.MaintenanceInterval = time.Hour
	eng, err := engine.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return NewService(eng), eng
}

func TestGraphQuery(t *testing.T) {
	s, eng := newTestService(t)

	_, res, err := s.GraphQuery(context.Background(), nil, GraphQueryArgs{
		Query:     "props.region == params.region",
		TypeNames: []string{"POI"},
		Bindings:  map[string]any{"region": "north"},
	})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	obj := res.Objects[0]
	assert.Equal(t, "p1", obj.ID)
	assert.Equal(t, "entity", obj.Kind)
	assert.Equal(t, "Plant 1", obj.Label)
	assert.Equal(t, "north", obj.Props["region"])

	_, res, err = s.GraphQuery(context.Background(), nil, GraphQueryArgs{TypeNames: []string{"ShipsTo"}, Limit: 1})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "s1", res.Objects[0].Origin)
	assert.Equal(t, "w1", res.Objects[0].Destination)

	_, _, err = s.GraphQuery(context.Background(), nil, GraphQueryArgs{Query: "props.region =="})
	assert.ErrorIs(t, err, kgerr.ErrQuery)
	assert.Zero(t, eng.OpenSessions())
}

func TestSearchGraph(t *testing.T) {
	s, _ := newTestService(t)

	_, res, err := s.SearchGraph(context.Background(), nil, SearchGraphArgs{Text: "bolt", Target: "entities"})
	require.NoError(t, err)
	require.Len(t, res.Objects, 1)
	assert.Equal(t, "s2", res.Objects[0].ID)
	assert.InDelta(t, 1.0, res.Objects[0].Score, 1e-12)

	_, _, err = s.SearchGraph(context.Background(), nil, SearchGraphArgs{Text: "bolt", Target: "nodes"})
	assert.Error(t, err)
}

func TestComputeCentrality(t *testing.T) {
	s, _ := newTestService(t)

	_, res, err := s.ComputeCentrality(context.Background(), nil, CentralityArgs{
		Measures: []string{"degree"},
		Top:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, res.Entities)
	require.Len(t, res.Rankings, 1)
	rank := res.Rankings[0]
	assert.Equal(t, "degree", rank.Measure)
	require.Len(t, rank.Top, 2)
	// w1 and w2 both touch three relationships.
	assert.Equal(t, "w1", rank.Top[0].ID)
	assert.Equal(t, "Warehouse", rank.Top[0].Type)
	assert.Equal(t, 3.0, rank.Top[0].Score)
	assert.Equal(t, "w2", rank.Top[1].ID)

	_, _, err = s.ComputeCentrality(context.Background(), nil, CentralityArgs{
		Measures:       []string{"coreness"},
		Interpretation: "directed",
	})
	assert.ErrorIs(t, err, kgerr.ErrUnsupportedConfiguration)

	_, _, err = s.ComputeCentrality(context.Background(), nil, CentralityArgs{Measures: []string{"fame"}})
	assert.Error(t, err)
}

func TestFindPaths(t *testing.T) {
	s, _ := newTestService(t)

	_, res, err := s.FindPaths(context.Background(), nil, FindPathsArgs{
		OriginType:      "POI",
		OriginID:        "p1",
		DestinationType: "Supplier",
		CostProperty:    "cost",
	})
	require.NoError(t, err)
	require.Len(t, res.Paths, 2)
	assert.Equal(t, "Plant 1 <-[ShipsTo]- Depot <-[ShipsTo]- Hub <-[ShipsTo]- Bolt Co", res.Paths[0].Description)
	assert.InDelta(t, 6.5, res.Paths[0].MinCost, 1e-12)
	assert.Equal(t, 3, res.Paths[0].Length)

	_, res, err = s.FindPaths(context.Background(), nil, FindPathsArgs{
		OriginType:      "POI",
		DestinationType: "Supplier",
		Direction:       "forward",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Paths)
}

func TestToolsAreRegistered(t *testing.T) {
	_, eng := newTestService(t)
	ctx := context.Background()

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := NewMCPServer(eng).Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test", Version: "v0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"graph_query", "search_graph", "compute_centrality", "find_paths"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "find_paths",
		Arguments: map[string]any{"origin_type": "POI", "destination_type": "Supplier"},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
}
