package centrality

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/core/coretest"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

func compute(t *testing.T, g *core.Graph, cfg Config, fs subgraph.FilterSet) (*Results, error) {
	t.Helper()
	var (
		res *Results
		err error
	)
	coretest.Read(t, g, func(r core.Reader) {
		var e Engine
		res, err = e.Compute(context.Background(), r, cfg, fs)
	})
	return res, err
}

func configWith(interp Interpretation, measures ...Measure) Config {
	cfg := DefaultConfig()
	cfg.Interpretation = interp
	cfg.Measures = measures
	return cfg
}

func score(t *testing.T, res *Results, id string, m Measure) float64 {
	t.Helper()
	v, ok := res.Score(coretest.ID(id), m)
	require.True(t, ok, "no %s score for %s", m, id)
	return v
}

// chain builds a - b - c with the given costs on a->b and b->c.
func chain(t *testing.T, costAB, costBC float64) *core.Graph {
	return coretest.New(t).
		EntityType("N").
		RelationshipType("L").
		Entity("a", "N", nil).
		Entity("b", "N", nil).
		Entity("c", "N", nil).
		Rel("ab", "L", "a", "b", map[string]any{"cost": costAB}).
		Rel("bc", "L", "b", "c", map[string]any{"cost": costBC}).
		G
}

func TestDirectedCorenessIsUnsupported(t *testing.T) {
	g := coretest.SupplyChain(t)
	for _, measures := range [][]Measure{{Coreness}, {Degree, Coreness}} {
		_, err := compute(t, g, configWith(Directed, measures...), subgraph.FilterSet{})
		require.Error(t, err)
		assert.ErrorIs(t, err, kgerr.ErrUnsupportedConfiguration)
	}

	cfg := configWith(Directed, Coreness)
	cfg.MultiEdgeFactor = 7
	_, err := compute(t, g, cfg, subgraph.FilterSet{})
	assert.ErrorIs(t, err, kgerr.ErrUnsupportedConfiguration)
}

func TestScoreLayout(t *testing.T) {
	g := coretest.SupplyChain(t)
	all := []Measure{Degree, InDegree, OutDegree, Coreness, Betweenness, Closeness, Harmonic, Eigenvector, PageRank}
	res, err := compute(t, g, configWith(Undirected, all...), subgraph.FilterSet{})
	require.NoError(t, err)

	ids := res.EntityIDs()
	scores := res.Scores()
	require.Len(t, scores, len(ids)*len(all))
	assert.Equal(t, all, res.Measures())

	for i, id := range ids {
		per, ok := res.ScoresFor(id)
		require.True(t, ok)
		require.Len(t, per, len(all))
		for m := range all {
			assert.Equal(t, scores[m*len(ids)+i], per[m])
		}
	}

	_, ok := res.ScoresFor(coretest.ID("missing"))
	assert.False(t, ok)

	assert.Equal(t, []string{"POI"}, res.NamedTypesOf(coretest.ID("p2")))
	assert.Len(t, res.IDsForNamedType("Supplier"), 2)
	assert.Equal(t, []string{"POI", "Supplier", "Warehouse"}, res.NamedTypes())
}

func TestMultiEdgeFactor(t *testing.T) {
	g := coretest.New(t).
		EntityType("N").
		RelationshipType("L").
		Entity("a", "N", nil).
		Entity("b", "N", nil).
		Entity("c", "N", nil).
		Rel("ab1", "L", "a", "b", map[string]any{"cost": 2.0}).
		Rel("ab2", "L", "a", "b", map[string]any{"cost": 4.0}).
		Rel("ab3", "L", "a", "b", map[string]any{"cost": 6.0}).
		Rel("bc", "L", "b", "c", nil).
		G

	tests := []struct {
		factor     float64
		degA, degB float64
	}{
		{factor: 1, degA: 3, degB: 4},
		{factor: 0, degA: 1, degB: 2},
		{factor: 0.5, degA: 2, degB: 3},
	}
	for _, tt := range tests {
		cfg := configWith(Undirected, Degree)
		cfg.MultiEdgeFactor = tt.factor
		res, err := compute(t, g, cfg, subgraph.FilterSet{})
		require.NoError(t, err)
		assert.Equal(t, tt.degA, score(t, res, "a", Degree), "factor %g", tt.factor)
		assert.Equal(t, tt.degB, score(t, res, "b", Degree), "factor %g", tt.factor)
		assert.Equal(t, 1.0, score(t, res, "c", Degree))
	}

	cfg := configWith(Directed, OutDegree, InDegree, Degree)
	res, err := compute(t, g, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	assert.Equal(t, 3.0, score(t, res, "a", OutDegree))
	assert.Equal(t, 0.0, score(t, res, "a", InDegree))
	assert.Equal(t, 3.0, score(t, res, "b", InDegree))
	assert.Equal(t, 4.0, score(t, res, "b", Degree))

	// Cheapest parallel cost divided by the effective multiplicity.
	cfg = configWith(Undirected, Closeness)
	cfg.CostProperty = "cost"
	res, err = compute(t, g, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	// d(a,b) = 2/3, d(a,c) = 2/3 + 1.
	assert.InDelta(t, 1/(2.0/3+5.0/3), score(t, res, "a", Closeness), 1e-9)
}

func TestCoreness(t *testing.T) {
	g := coretest.New(t).
		EntityType("N").
		RelationshipType("L").
		Entity("a", "N", nil).
		Entity("b", "N", nil).
		Entity("c", "N", nil).
		Entity("d", "N", nil).
		Entity("e", "N", nil).
		Rel("ab", "L", "a", "b", nil).
		Rel("bc", "L", "b", "c", nil).
		Rel("ca", "L", "c", "a", nil).
		Rel("ca2", "L", "c", "a", nil).
		Rel("cd", "L", "c", "d", nil).
		G
	res, err := compute(t, g, configWith(Undirected, Coreness), subgraph.FilterSet{})
	require.NoError(t, err)
	for id, want := range map[string]float64{"a": 2, "b": 2, "c": 2, "d": 1, "e": 0} {
		assert.Equal(t, want, score(t, res, id, Coreness), id)
	}
}

func TestPathMeasures(t *testing.T) {
	g := chain(t, 1, 1)

	res, err := compute(t, g, configWith(Undirected, Betweenness, Closeness, Harmonic), subgraph.FilterSet{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score(t, res, "b", Betweenness), 1e-9)
	assert.InDelta(t, 0.0, score(t, res, "a", Betweenness), 1e-9)
	assert.InDelta(t, 1.0/3, score(t, res, "a", Closeness), 1e-9)
	assert.InDelta(t, 0.5, score(t, res, "b", Closeness), 1e-9)
	assert.InDelta(t, 1.5, score(t, res, "a", Harmonic), 1e-9)

	cfg := configWith(Undirected, Closeness, Betweenness)
	cfg.Normalization = StandardNormalization
	res, err = compute(t, g, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	assert.InDelta(t, 2.0/3, score(t, res, "a", Closeness), 1e-9)
	assert.InDelta(t, 1.0, score(t, res, "b", Closeness), 1e-9)
	assert.InDelta(t, 1.0, score(t, res, "b", Betweenness), 1e-9)

	res, err = compute(t, g, configWith(Directed, Betweenness), subgraph.FilterSet{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score(t, res, "b", Betweenness), 1e-9)

	weighted := chain(t, 2, 1)
	cfg = configWith(Undirected, Closeness)
	cfg.CostProperty = "cost"
	res, err = compute(t, weighted, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, score(t, res, "a", Closeness), 1e-9)
}

func TestIterativeMeasures(t *testing.T) {
	g := coretest.New(t).
		EntityType("N").
		RelationshipType("L").
		Entity("hub", "N", nil).
		Entity("x", "N", nil).
		Entity("y", "N", nil).
		Entity("z", "N", nil).
		Rel("hx", "L", "hub", "x", nil).
		Rel("hy", "L", "hub", "y", nil).
		Rel("hz", "L", "hub", "z", nil).
		G

	res, err := compute(t, g, configWith(Undirected, Eigenvector, PageRank), subgraph.FilterSet{})
	require.NoError(t, err)

	var norm, total float64
	for _, id := range res.EntityIDs() {
		ev, _ := res.Score(id, Eigenvector)
		pr, _ := res.Score(id, PageRank)
		norm += ev * ev
		total += pr
	}
	assert.InDelta(t, 1.0, norm, 1e-6)
	assert.InDelta(t, 1.0, total, 1e-6)
	assert.Greater(t, score(t, res, "hub", Eigenvector), score(t, res, "x", Eigenvector))
	assert.Greater(t, score(t, res, "hub", PageRank), score(t, res, "x", PageRank))
	assert.InDelta(t, score(t, res, "x", PageRank), score(t, res, "z", PageRank), 1e-6)

	cfg := configWith(Undirected, Degree, PageRank)
	cfg.Normalization = MaxScaled
	res, err = compute(t, g, cfg, subgraph.FilterSet{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score(t, res, "hub", Degree), 1e-9)
	assert.InDelta(t, 1.0/3, score(t, res, "x", Degree), 1e-9)
	assert.InDelta(t, 1.0, score(t, res, "hub", PageRank), 1e-9)
}

func TestImportanceWeighting(t *testing.T) {
	g := coretest.New(t).
		EntityType("N").
		RelationshipType("L").
		Entity("x", "N", nil).
		Entity("a", "N", nil).
		Entity("b", "N", nil).
		Rel("xa", "L", "x", "a", map[string]any{"weight": 100.0}).
		Rel("xb", "L", "x", "b", map[string]any{"weight": 1.0}).
		G

	for _, interp := range []Interpretation{Undirected, Directed} {
		cfg := configWith(interp, PageRank, Eigenvector)
		cfg.ImportanceProperty = "weight"
		res, err := compute(t, g, cfg, subgraph.FilterSet{})
		require.NoError(t, err)
		for _, m := range []Measure{PageRank, Eigenvector} {
			assert.Greater(t, score(t, res, "a", m), score(t, res, "b", m), "%s %s", interp, m)
		}

		// Without an importance property both links weigh the default.
		cfg.ImportanceProperty = ""
		res, err = compute(t, g, cfg, subgraph.FilterSet{})
		require.NoError(t, err)
		for _, m := range []Measure{PageRank, Eigenvector} {
			assert.InDelta(t, score(t, res, "a", m), score(t, res, "b", m), 1e-6, "%s %s", interp, m)
		}
	}
}

func TestParallelImportance(t *testing.T) {
	// Four parallel links to a with importance 1..4, one link to b carrying
	// no importance property.
	g := coretest.New(t).
		EntityType("N").
		RelationshipType("L").
		Entity("x", "N", nil).
		Entity("a", "N", nil).
		Entity("b", "N", nil).
		Rel("xa1", "L", "x", "a", map[string]any{"weight": 1.0}).
		Rel("xa2", "L", "x", "a", map[string]any{"weight": 2.0}).
		Rel("xa3", "L", "x", "a", map[string]any{"weight": 3.0}).
		Rel("xa4", "L", "x", "a", map[string]any{"weight": 4.0}).
		Rel("xb", "L", "x", "b", nil).
		G

	tests := []struct {
		factor float64
		degA   float64
		// impA is max + factor*(sum-max) over the weights of the a links.
		impA float64
	}{
		{factor: 0, degA: 1, impA: 4},
		{factor: 0.5, degA: 2.5, impA: 7},
		{factor: 1, degA: 4, impA: 10},
	}
	for _, tt := range tests {
		cfg := configWith(Undirected, Degree, Eigenvector, PageRank)
		cfg.MultiEdgeFactor = tt.factor
		cfg.ImportanceProperty = "weight"
		cfg.DefaultImportance = 2
		res, err := compute(t, g, cfg, subgraph.FilterSet{})
		require.NoError(t, err)

		assert.Equal(t, tt.degA, score(t, res, "a", Degree), "factor %g", tt.factor)
		assert.Equal(t, 1.0, score(t, res, "b", Degree), "factor %g", tt.factor)

		// On a star the leading eigenvector of I+A is proportional to the
		// link weights, so a/b equals the ratio of effective importances.
		ratio := score(t, res, "a", Eigenvector) / score(t, res, "b", Eigenvector)
		assert.InDelta(t, tt.impA/cfg.DefaultImportance, ratio, 1e-4, "factor %g", tt.factor)
		assert.Greater(t, score(t, res, "a", PageRank), score(t, res, "b", PageRank), "factor %g", tt.factor)
	}
}

func TestComputeValidation(t *testing.T) {
	g := coretest.SupplyChain(t)

	_, err := compute(t, g, configWith(Undirected, Degree), subgraph.FilterSet{
		EntityFilters: []subgraph.NamedTypeFilter{{TypeName: "Factory"}},
	})
	assert.ErrorIs(t, err, kgerr.ErrValidation)
	assert.Equal(t, []string{"Factory"}, kgerr.Names(err))

	_, err = compute(t, g, configWith(Undirected), subgraph.FilterSet{})
	assert.ErrorIs(t, err, kgerr.ErrValidation)

	_, err = compute(t, g, configWith(Undirected, Degree, Degree), subgraph.FilterSet{})
	assert.ErrorIs(t, err, kgerr.ErrValidation)

	bad := chain(t, -1, 1)
	cfg := configWith(Undirected, Closeness)
	cfg.CostProperty = "cost"
	_, err = compute(t, bad, cfg, subgraph.FilterSet{})
	assert.ErrorIs(t, err, kgerr.ErrValidation)
}

func TestSubgraphSelection(t *testing.T) {
	g := coretest.SupplyChain(t)
	fs := subgraph.FilterSet{EntityFilters: []subgraph.NamedTypeFilter{
		subgraph.ExcludeSelection("Warehouse", coretest.ID("w2")),
	}}
	res, err := compute(t, g, configWith(Undirected, Degree), fs)
	require.NoError(t, err)
	assert.Equal(t, 6, res.Len())
	// r4 and r5 lost their w2 endpoint.
	assert.Equal(t, 0.0, score(t, res, "p1", Degree))
	assert.Equal(t, 2.0, score(t, res, "w1", Degree))

	empty := coretest.New(t).EntityType("N").Entity("a", "N", nil).G
	res, err = compute(t, empty, configWith(Undirected, PageRank, Betweenness), subgraph.FilterSet{
		EntityFilters: []subgraph.NamedTypeFilter{subgraph.IncludeSelection("N")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
	assert.Empty(t, res.Scores())
}

func TestResultsJSON(t *testing.T) {
	g := coretest.SupplyChain(t)
	res, err := compute(t, g, configWith(Undirected, Degree, PageRank), subgraph.FilterSet{})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)
	var back Results
	require.NoError(t, json.Unmarshal(data, &back))

	assert.Equal(t, res.EntityIDs(), back.EntityIDs())
	assert.Equal(t, res.Measures(), back.Measures())
	want, _ := res.ScoresFor(coretest.ID("w1"))
	got, ok := back.ScoresFor(coretest.ID("w1"))
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, res.IDsForNamedType("POI"), back.IDsForNamedType("POI"))
}

func TestComputeCancelled(t *testing.T) {
	g := coretest.SupplyChain(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var err error
	coretest.Read(t, g, func(r core.Reader) {
		var e Engine
		_, err = e.Compute(ctx, r, configWith(Undirected, Eigenvector, Betweenness), subgraph.FilterSet{})
	})
	assert.ErrorIs(t, err, kgerr.ErrCancelled)
}
