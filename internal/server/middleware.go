package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sanonone/kektorgraph/pkg/kgerr"
	"github.com/sanonone/kektorgraph/pkg/metrics"
)

// RecoveryMiddleware catches panics, logs the stack trace, and returns a 500 error.
// It ensures the server remains stable even if a handler crashes.
func (s *Server) RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				slog.Error("CRITICAL: Panic recovered in HTTP handler",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				// Hide internals from the client.
				s.writeHTTPError(w, http.StatusInternalServerError, kgerr.CodeInternal, "Internal Server Error", nil)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// LoggingMiddleware logs incoming requests and records Prometheus metrics
// with their duration and status. Metrics are labelled by route pattern so
// cursor and task ids do not blow up the label cardinality.
func (s *Server) LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap ResponseWriter to capture status code
		wrapped := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)

		slog.Info("HTTP Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration", duration.String(),
			"ip", r.RemoteAddr,
		)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HttpRequestDuration.WithLabelValues(r.Method, route).Observe(duration.Seconds())
		metrics.HttpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).Inc()
	})
}

// authMiddleware requires "Authorization: Bearer <token>" when the server
// has a token configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	if s.authToken == "" {
		return next
	}
	want := []byte(s.authToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			s.writeHTTPError(w, http.StatusUnauthorized, kgerr.CodeConnection, "missing or invalid API token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects requests beyond the configured rate with 429.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	if s.limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.writeHTTPError(w, http.StatusTooManyRequests, kgerr.CodeConnection, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// responseWrapper is a helper to capture the status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
