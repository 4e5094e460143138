package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are registered on the default registry through promauto.

var (
	// HttpRequestsTotal counts requests by method, route pattern and status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_http_requests_total",
			Help: "Total number of HTTP requests processed",
		},
		[]string{"method", "path", "status"},
	)

	// HttpRequestDuration measures server response time.
	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"method", "path"},
	)

	// GraphRecords tracks the size of the graph.
	GraphRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kektorgraph_graph_records",
			Help: "Number of stored records by kind",
		},
		[]string{"kind"},
	)

	// OpenCursors is the number of live cursor sessions.
	OpenCursors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kektorgraph_open_cursors",
			Help: "Number of open query and search cursor sessions",
		},
	)

	// EvictedCursors counts sessions dropped by the idle janitor.
	EvictedCursors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kektorgraph_evicted_cursors_total",
			Help: "Cursor sessions evicted after staying idle",
		},
	)

	// RowsStreamed counts rows handed out by cursor sessions.
	RowsStreamed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kektorgraph_rows_streamed_total",
			Help: "Rows returned through cursor batches",
		},
		[]string{"kind"},
	)

	// AnalyticsDuration measures centrality and find-paths runs.
	AnalyticsDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kektorgraph_analytics_duration_seconds",
			Help:    "Duration of analytics runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"analysis", "outcome"},
	)
)
