package centrality

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	gnetwork "gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"

	"github.com/sanonone/kektorgraph/pkg/kgerr"
)

const maxPowerIterations = 1000

// degrees returns the effective degree, in-degree and out-degree of every
// node. Under the undirected interpretation the three are equal.
func degrees(nw *network) (deg, in, out []float64) {
	n := nw.size()
	deg, in, out = make([]float64, n), make([]float64, n), make([]float64, n)
	for _, a := range nw.arcs {
		if nw.directed {
			out[a.from] += a.multiplicity
			in[a.to] += a.multiplicity
		} else {
			deg[a.from] += a.multiplicity
			deg[a.to] += a.multiplicity
		}
	}
	for id, m := range nw.loops {
		if nw.directed {
			out[id] += m
			in[id] += m
		} else {
			deg[id] += 2 * m
		}
	}
	if nw.directed {
		floats.AddTo(deg, in, out)
	} else {
		copy(in, deg)
		copy(out, deg)
	}
	return deg, in, out
}

// coreness returns the core number of every node using the bucket based
// peeling of Batagelj and Zaversnik. Parallel relationships and loops do not
// count.
func coreness(nw *network) []float64 {
	n := nw.size()
	adj := make([][]int, n)
	for _, a := range nw.arcs {
		adj[a.from] = append(adj[a.from], int(a.to))
		adj[a.to] = append(adj[a.to], int(a.from))
	}

	deg := make([]int, n)
	maxDeg := 0
	for v := range adj {
		deg[v] = len(adj[v])
		maxDeg = max(maxDeg, deg[v])
	}
	bin := make([]int, maxDeg+1)
	for _, d := range deg {
		bin[d]++
	}
	start := 0
	for d := range bin {
		num := bin[d]
		bin[d] = start
		start += num
	}
	pos, vert := make([]int, n), make([]int, n)
	for v := 0; v < n; v++ {
		pos[v] = bin[deg[v]]
		vert[pos[v]] = v
		bin[deg[v]]++
	}
	for d := maxDeg; d > 0; d-- {
		bin[d] = bin[d-1]
	}
	bin[0] = 0

	for i := 0; i < n; i++ {
		v := vert[i]
		for _, u := range adj[v] {
			if deg[u] > deg[v] {
				du, pu := deg[u], pos[u]
				pw := bin[du]
				w := vert[pw]
				if u != w {
					pos[u], vert[pu] = pw, w
					pos[w], vert[pw] = pu, u
				}
				bin[du]++
				deg[u]--
			}
		}
	}

	out := make([]float64, n)
	for v, d := range deg {
		out[v] = float64(d)
	}
	return out
}

// eigenvector runs power iteration on I+A, A being the importance weighted
// adjacency, so bipartite structures converge. Scores have unit L2 norm.
func eigenvector(ctx context.Context, nw *network, tol float64) ([]float64, error) {
	n := nw.size()
	x := make([]float64, n)
	floats.AddConst(1/math.Sqrt(float64(n)), x)
	next := make([]float64, n)

	for iter := 0; iter < maxPowerIterations; iter++ {
		if iter%32 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, kgerr.FromContext(err)
			}
		}
		copy(next, x)
		for _, a := range nw.arcs {
			next[a.to] += a.importance * x[a.from]
			if !nw.directed {
				next[a.from] += a.importance * x[a.to]
			}
		}
		norm := floats.Norm(next, 2)
		if norm == 0 {
			return next, nil
		}
		floats.Scale(1/norm, next)
		delta := floats.Distance(next, x, 2)
		x, next = next, x
		if delta < tol {
			break
		}
	}
	return x, nil
}

// pathMeasures computes the shortest-path based measures requested in want
// from a single all-pairs Dijkstra over the cost graph.
func pathMeasures(ctx context.Context, nw *network, want []Measure) (map[Measure][]float64, error) {
	g := nw.weightedGraph(true)
	paths := path.DijkstraAllPaths(g)
	if err := ctx.Err(); err != nil {
		return nil, kgerr.FromContext(err)
	}

	out := make(map[Measure][]float64, len(want))
	for _, m := range want {
		var raw map[int64]float64
		switch m {
		case Betweenness:
			raw = gnetwork.BetweennessWeighted(g, paths)
		case Closeness:
			raw = gnetwork.Closeness(g, paths)
		case Harmonic:
			raw = gnetwork.Harmonic(g, paths)
		default:
			continue
		}
		scores := denseScores(raw, nw.size())
		if m == Betweenness && !nw.directed {
			// Each unordered pair was counted in both directions.
			floats.Scale(0.5, scores)
		}
		out[m] = scores
		if err := ctx.Err(); err != nil {
			return nil, kgerr.FromContext(err)
		}
	}
	return out, nil
}

func pageRank(nw *network, damping, tol float64) []float64 {
	return denseScores(gnetwork.PageRankSparse(nw.weightedGraph(false), damping, tol), nw.size())
}

// denseScores turns a gonum score map into a slice indexed by node id.
// Missing nodes score 0, as do infinite or NaN scores, which gonum returns
// for isolated nodes.
func denseScores(raw map[int64]float64, n int) []float64 {
	out := make([]float64, n)
	for id, v := range raw {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			continue
		}
		out[id] = v
	}
	return out
}

// normalize rescales scores in place.
func normalize(mode Normalization, m Measure, scores []float64, directed bool) {
	n := float64(len(scores))
	switch mode {
	case StandardNormalization:
		switch m {
		case Degree, InDegree, OutDegree, Harmonic:
			if n > 1 {
				floats.Scale(1/(n-1), scores)
			}
		case Closeness:
			floats.Scale(n-1, scores)
		case Betweenness:
			if n > 2 {
				pairs := (n - 1) * (n - 2)
				if !directed {
					pairs /= 2
				}
				floats.Scale(1/pairs, scores)
			}
		}
	case MaxScaled:
		if len(scores) == 0 {
			return
		}
		if top := floats.Max(scores); top > 0 {
			floats.Scale(1/top, scores)
		}
	}
}
