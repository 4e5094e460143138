package centrality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

// arc is the effective edge obtained by combining parallel relationships.
type arc struct {
	from, to     int64
	cost         float64
	importance   float64
	multiplicity float64
}

// network is the adjacency built from a resolved subgraph. Node ids are
// indexes into entities.
type network struct {
	entities []*core.EntityRecord
	directed bool
	arcs     []arc
	// loops holds the effective multiplicity of self relationships per node.
	loops map[int64]float64
}

type pairKey struct{ a, b int64 }

type parallelGroup struct {
	n       int
	minCost float64
	maxImp  float64
	sumImp  float64
}

// buildNetwork applies the interpretation and the multi-edge factor to the
// relationships of s.
func buildNetwork(s *subgraph.Resolved, cfg Config) (*network, error) {
	nw := &network{
		entities: s.Entities(),
		directed: cfg.Interpretation == Directed,
		loops:    make(map[int64]float64),
	}
	index := make(map[graphvalue.Identifier]int64, len(nw.entities))
	for i, e := range nw.entities {
		index[e.ID] = int64(i)
	}

	groups := make(map[pairKey]*parallelGroup)
	var order []pairKey
	for _, r := range s.Relationships() {
		cost, imp, err := weights(r, cfg)
		if err != nil {
			return nil, err
		}
		from, to := index[r.Origin], index[r.Destination]
		key := pairKey{from, to}
		if !nw.directed && key.a > key.b {
			key = pairKey{to, from}
		}
		g, ok := groups[key]
		if !ok {
			g = &parallelGroup{minCost: math.Inf(1)}
			groups[key] = g
			order = append(order, key)
		}
		g.n++
		g.minCost = math.Min(g.minCost, cost)
		g.maxImp = math.Max(g.maxImp, imp)
		g.sumImp += imp
	}

	f := cfg.MultiEdgeFactor
	for _, key := range order {
		g := groups[key]
		mult := 1 + f*float64(g.n-1)
		a := arc{
			from:         key.a,
			to:           key.b,
			cost:         g.minCost / mult,
			importance:   g.maxImp + f*(g.sumImp-g.maxImp),
			multiplicity: mult,
		}
		if a.from == a.to {
			nw.loops[a.from] += mult
			continue
		}
		nw.arcs = append(nw.arcs, a)
	}
	return nw, nil
}

func weights(r *core.RelationshipRecord, cfg Config) (cost, importance float64, err error) {
	cost, importance = cfg.DefaultCost, cfg.DefaultImportance
	if cfg.CostProperty != "" {
		if v, ok := r.Number(cfg.CostProperty); ok {
			cost = v
		}
	}
	if cfg.ImportanceProperty != "" {
		if v, ok := r.Number(cfg.ImportanceProperty); ok {
			importance = v
		}
	}
	if !(cost > 0) {
		return 0, 0, kgerr.Validation(fmt.Sprintf("relationship %s has non-positive cost %g", r.ID, cost), r.TypeName)
	}
	if !(importance > 0) {
		return 0, 0, kgerr.Validation(fmt.Sprintf("relationship %s has non-positive importance %g", r.ID, importance), r.TypeName)
	}
	return cost, importance, nil
}

func (nw *network) size() int { return len(nw.entities) }

// weightedGraph returns the gonum graph of the network weighted by cost or
// by importance. The undirected interpretation inserts both arcs.
func (nw *network) weightedGraph(byCost bool) *simple.WeightedDirectedGraph {
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for i := range nw.entities {
		g.AddNode(simple.Node(int64(i)))
	}
	for _, a := range nw.arcs {
		w := a.importance
		if byCost {
			w = a.cost
		}
		g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(a.from), simple.Node(a.to), w))
		if !nw.directed {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(a.to), simple.Node(a.from), w))
		}
	}
	return g
}
