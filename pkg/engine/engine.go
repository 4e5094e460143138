// Package engine is the datastore behind the kektorgraph API.
//
// It owns the in-memory property graph, executes queries and full-text
// searches into cursor sessions that are drained batch by batch, and runs
// the centrality and find-paths analytics against a consistent view of the
// graph.
//
// Basic usage:
//
//	eng, err := engine.Open(engine.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/sanonone/kektorgraph/pkg/centrality"
	"github.com/sanonone/kektorgraph/pkg/core"
	"github.com/sanonone/kektorgraph/pkg/metrics"
	"github.com/sanonone/kektorgraph/pkg/pathfinding"
	"github.com/sanonone/kektorgraph/pkg/textanalyzer"
)

const tracerName = "github.com/sanonone/kektorgraph/pkg/engine"

// Options configures the Engine.
type Options struct {
	// TextLanguage selects the stop words of the full-text index
	// ("english", "italian" or "" for none).
	TextLanguage string

	// CursorBatchSize is the number of rows per batch when a request does
	// not ask for a size.
	CursorBatchSize int

	// CursorIdleTimeout evicts cursor sessions that were not read for this
	// long. Set to 0 to keep sessions until they are closed.
	CursorIdleTimeout time.Duration

	// MaintenanceInterval defines how often the janitor runs.
	// Default: 10 seconds.
	MaintenanceInterval time.Duration

	// AnalyticsConcurrency bounds the centrality measures computed in
	// parallel. 0 means one goroutine per measure family.
	AnalyticsConcurrency int

	// SeedPath, when set, is a YAML graph loaded by Open.
	SeedPath string
}

// DefaultOptions returns a standard configuration suitable for most use cases.
//
// Defaults:
//   - TextLanguage: "english"
//   - CursorBatchSize: 256
//   - CursorIdleTimeout: 5 minutes
//   - MaintenanceInterval: 10 seconds
func DefaultOptions() Options {
	return Options{
		TextLanguage:        "english",
		CursorBatchSize:     256,
		CursorIdleTimeout:   5 * time.Minute,
		MaintenanceInterval: 10 * time.Second,
	}
}

// Engine is the main entry point of the datastore.
//
// Use Open() to initialize an Engine and Close() to shut it down gracefully.
type Engine struct {
	// Graph is the underlying store. Mutations should go through the Engine
	// methods so that metrics stay accurate.
	Graph *core.Graph

	opts     Options
	sessions *sessionStore
	tracer   trace.Tracer

	centrality centrality.Engine
	paths      pathfinding.Engine

	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Open initializes a new Engine, loads the seed graph if one is configured
// and starts the background janitor.
func Open(opts Options) (*Engine, error) {
	if opts.CursorBatchSize <= 0 {
		opts.CursorBatchSize = DefaultOptions().CursorBatchSize
	}
	analyzer, err := textanalyzer.New(opts.TextLanguage)
	if err != nil {
		return nil, fmt.Errorf("failed to create text analyzer: %w", err)
	}

	e := &Engine{
		Graph:      core.NewGraph(analyzer),
		opts:       opts,
		sessions:   newSessionStore(),
		tracer:     otel.Tracer(tracerName),
		centrality: centrality.Engine{Concurrency: opts.AnalyticsConcurrency},
		closed:     make(chan struct{}),
	}

	if opts.SeedPath != "" {
		n, err := e.LoadSeedFile(opts.SeedPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load seed graph: %w", err)
		}
		slog.Info("Seed graph loaded", "path", opts.SeedPath, "records", n)
	}
	e.updateGraphGauges()

	e.wg.Add(1)
	go e.backgroundTasks()

	return e, nil
}

// Close stops the janitor and drops every open cursor session. It is safe
// to call more than once.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.closed)
		e.wg.Wait()
		n := e.sessions.closeAll()
		metrics.OpenCursors.Sub(float64(n))
	})
	return nil
}

// backgroundTasks evicts idle cursor sessions.
func (e *Engine) backgroundTasks() {
	defer e.wg.Done()

	interval := e.opts.MaintenanceInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.closed:
			return
		case now := <-ticker.C:
			e.evictIdleSessions(now)
		}
	}
}

// evictIdleSessions drops sessions not read since CursorIdleTimeout.
func (e *Engine) evictIdleSessions(now time.Time) int {
	if e.opts.CursorIdleTimeout <= 0 {
		return 0
	}
	evicted := e.sessions.evictIdle(now.Add(-e.opts.CursorIdleTimeout))
	if evicted > 0 {
		metrics.OpenCursors.Sub(float64(evicted))
		metrics.EvictedCursors.Add(float64(evicted))
		slog.Info("Evicted idle cursor sessions", "count", evicted)
	}
	return evicted
}

func (e *Engine) updateGraphGauges() {
	entities, relationships := e.Graph.Stats()
	metrics.GraphRecords.WithLabelValues("entity").Set(float64(entities))
	metrics.GraphRecords.WithLabelValues("relationship").Set(float64(relationships))
}
