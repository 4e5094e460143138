// Package server exposes a kektorgraph Engine over a JSON HTTP API.
//
// Queries and searches open cursor sessions that clients drain batch by
// batch; centrality and find-paths run as asynchronous tasks polled through
// /tasks.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/sanonone/kektorgraph/pkg/engine"
)

// taskRetention is how long finished tasks keep their results.
const taskRetention = 30 * time.Minute

// Server holds the HTTP interface and the underlying Engine.
type Server struct {
	Engine *engine.Engine

	httpServer *http.Server
	handler    http.Handler

	taskManager *TaskManager
	authToken   string
	limiter     *rate.Limiter

	// tasksCtx is cancelled by Shutdown to stop running analytics.
	tasksCtx    context.Context
	cancelTasks context.CancelFunc
	tasks       sync.WaitGroup
	closed      chan struct{}
	closeOnce   sync.Once
}

// NewServer initializes the HTTP server using an existing Engine.
// Note: The Engine must be initialized (Open) before passing it here.
func NewServer(eng *engine.Engine, cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		Engine:      eng,
		taskManager: NewTaskManager(),
		authToken:   cfg.AuthToken,
		limiter:     newLimiter(cfg.RateLimit),
		closed:      make(chan struct{}),
	}
	s.tasksCtx, s.cancelTasks = context.WithCancel(context.Background())

	mux := http.NewServeMux()
	s.registerHTTPHandlers(mux)

	// Chain middlewares: Recovery -> Logging -> RateLimit -> Auth -> Mux
	// Recovery must be outer-most to catch everything.
	var handler http.Handler = mux
	handler = s.authMiddleware(handler)
	handler = s.rateLimitMiddleware(handler)
	handler = s.LoggingMiddleware(handler)
	handler = s.RecoveryMiddleware(handler)

	rootMux := http.NewServeMux()
	rootMux.HandleFunc("GET /healthz", s.handleHealthz)
	rootMux.Handle("GET /metrics", promhttp.Handler())
	rootMux.Handle("/", handler)
	s.handler = rootMux
	s.httpServer = &http.Server{
		Addr:              cfg.Listen,
		Handler:           rootMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.pruneTasks()

	return s, nil
}

// Handler returns the root handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Run starts the HTTP server and blocks until it stops.
// It does NOT handle graph loading (Engine does that).
func (s *Server) Run() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server startup failed: %w", err)
	}
	return nil
}

// Shutdown stops the HTTP server and cancels running tasks.
// It does NOT close the Engine; the caller owns it.
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		slog.Info("Starting graceful shutdown of HTTP Server...")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}

		close(s.closed)
		s.cancelTasks()
		s.tasks.Wait()
	})
}

// pruneTasks drops the results of tasks nobody collected.
func (s *Server) pruneTasks() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return
		case now := <-ticker.C:
			if n := s.taskManager.Prune(now.Add(-taskRetention)); n > 0 {
				slog.Debug("Finished tasks pruned", "count", n)
			}
		}
	}
}

// startTask runs fn in the background and tracks it as a task.
func (s *Server) startTask(kind string, fn func(ctx context.Context) (any, error)) *Task {
	task := s.taskManager.NewTask(kind)
	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		task.SetStatus(TaskStatusRunning)
		task.SetProgress("computing " + kind)

		res, err := fn(s.tasksCtx)
		if err != nil {
			slog.Error("Task failed", "task_id", task.ID, "kind", kind, "error", err)
			task.SetError(err)
			return
		}
		task.SetProgress("")
		task.SetResult(res)
	}()
	return task
}
