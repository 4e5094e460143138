package centrality

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/graphvalue"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

// Engine computes centrality measures. The zero value is ready to use.
type Engine struct {
	// Concurrency caps the number of measures computed at once.
	// Zero means no limit.
	Concurrency int
}

// Compute resolves the subgraph selected by fs and computes every measure
// of cfg over it. The reader must stay consistent for the whole call.
//
// Errors: ErrUnsupportedConfiguration for coreness over directed
// relationships, ValidationError for bad configuration or unknown type
// names, QueryError for predicates that do not compile, ErrCancelled or
// ErrTimedOut when ctx ends first.
func (e *Engine) Compute(ctx context.Context, r core.Reader, cfg Config, fs subgraph.FilterSet) (*Results, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	start := time.Now()

	sub, err := subgraph.Resolve(ctx, r, fs)
	if err != nil {
		return nil, err
	}
	nw, err := buildNetwork(sub, cfg)
	if err != nil {
		return nil, err
	}

	n := nw.size()
	perMeasure := make([][]float64, len(cfg.Measures))
	if n > 0 {
		if err := e.run(ctx, nw, cfg, perMeasure); err != nil {
			return nil, err
		}
	}

	ids := make([]graphvalue.Identifier, n)
	typeNames := make([]string, n)
	for i, ent := range nw.entities {
		ids[i] = ent.ID
		typeNames[i] = ent.TypeName
	}
	scores := make([]float64, 0, n*len(cfg.Measures))
	for m, measure := range cfg.Measures {
		col := perMeasure[m]
		if col == nil {
			col = make([]float64, n)
		}
		normalize(cfg.Normalization, measure, col, nw.directed)
		scores = append(scores, col...)
	}

	slog.Debug("centrality computed",
		"entities", n,
		"arcs", len(nw.arcs),
		"measures", len(cfg.Measures),
		"duration", time.Since(start))
	return newResults(ids, typeNames, cfg.Measures, scores)
}

func (e *Engine) run(ctx context.Context, nw *network, cfg Config, out [][]float64) error {
	g, gctx := errgroup.WithContext(ctx)
	if e.Concurrency > 0 {
		g.SetLimit(e.Concurrency)
	}

	slot := make(map[Measure]int, len(cfg.Measures))
	var pathWanted []Measure
	for i, m := range cfg.Measures {
		slot[m] = i
		if m.usesPaths() {
			pathWanted = append(pathWanted, m)
		}
	}

	if len(pathWanted) > 0 {
		g.Go(func() error {
			res, err := pathMeasures(gctx, nw, pathWanted)
			if err != nil {
				return err
			}
			for m, scores := range res {
				out[slot[m]] = scores
			}
			return nil
		})
	}

	var deg, in, outDeg []float64
	for i, m := range cfg.Measures {
		switch m {
		case Degree, InDegree, OutDegree:
			if deg == nil {
				deg, in, outDeg = degrees(nw)
			}
			out[i] = map[Measure][]float64{Degree: deg, InDegree: in, OutDegree: outDeg}[m]
		case Coreness:
			g.Go(func() error {
				out[i] = coreness(nw)
				return nil
			})
		case Eigenvector:
			g.Go(func() error {
				scores, err := eigenvector(gctx, nw, cfg.Tolerance)
				out[i] = scores
				return err
			})
		case PageRank:
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return kgerr.FromContext(err)
				}
				out[i] = pageRank(nw, cfg.Damping, cfg.Tolerance)
				return nil
			})
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return kgerr.FromContext(err)
	}
	return nil
}
