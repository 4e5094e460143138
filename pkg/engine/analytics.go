package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/subgraph"
)

// ComputeCentrality computes the configured measures over the subgraph
// selected by fs. The graph is read-locked for the duration of the run.
func (e *Engine) ComputeCentrality(ctx context.Context, cfg centrality.Config, fs subgraph.FilterSet) (res *centrality.Results, err error) {
	measures := make([]string, len(cfg.Measures))
	for i, m := range cfg.Measures {
		measures[i] = m.String()
	}
	ctx, span := e.tracer.Start(ctx, "engine.ComputeCentrality", trace.WithAttributes(
		attribute.StringSlice("measures", measures),
		attribute.String("interpretation", cfg.Interpretation.String()),
	))
	start := time.Now()
	defer func() {
		observeAnalytics("centrality", start, err)
		if res != nil {
			span.SetAttributes(attribute.Int("entities", res.Len()))
		}
		endSpan(span, err)
	}()

	err = e.Graph.Read(func(r core.Reader) error {
		var err error
		res, err = e.centrality.Compute(ctx, r, cfg, fs)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Centrality computed", "measures", measures, "entities", res.Len(), "duration", time.Since(start))
	return res, nil
}

// FindPaths runs a filtered find-paths search. The graph is read-locked
// for the duration of the run.
func (e *Engine) FindPaths(ctx context.Context, cfg pathfinding.Config) (res *pathfinding.Results, err error) {
	ctx, span := e.tracer.Start(ctx, "engine.FindPaths", trace.WithAttributes(
		attribute.String("path_mode", cfg.PathMode.String()),
		attribute.String("entity_usage", cfg.EntityUsage.String()),
		attribute.Int("max_path_length", cfg.MaxPathLength),
	))
	start := time.Now()
	defer func() {
		observeAnalytics("paths", start, err)
		if res != nil {
			span.SetAttributes(attribute.Int("paths", res.CountPaths()))
		}
		endSpan(span, err)
	}()

	err = e.Graph.Read(func(r core.Reader) error {
		var err error
		res, err = e.paths.Run(ctx, r, cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Paths found", "paths", res.CountPaths(), "duration", time.Since(start))
	return res, nil
}

func observeAnalytics(analysis string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = kgerr.Code(err)
	}
	metrics.AnalyticsDuration.WithLabelValues(analysis, outcome).Observe(time.Since(start).Seconds())
}

// ValidateCentrality checks a centrality request against the current schema
// without running it.
func (e *Engine) ValidateCentrality(cfg centrality.Config, fs subgraph.FilterSet) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return e.Graph.Read(fs.Validate)
}

// ValidatePaths checks a find-paths configuration against the current
// schema without running it.
func (e *Engine) ValidatePaths(cfg pathfinding.Config) error {
	return e.Graph.Read(cfg.Validate)
}
