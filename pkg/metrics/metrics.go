// Package metrics holds the Prometheus instruments of the engine. They
// register with the default registry and are served by the HTTP server
// at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Search paths.
const (
	PathVector   = "vector"
	PathMetadata = "metadata"
)

var (
	// SearchRequests counts searches by the path that served them.
	SearchRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomgraph_search_requests_total",
		Help: "Hybrid searches by serving path",
	}, []string{"path"})

	// SearchFallbacks counts degradations to metadata search.
	// Labels: "no_embedder", "no_index", "embed_error", "index_error", "hydrate_error"
	SearchFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomgraph_search_fallbacks_total",
		Help: "Hybrid searches served by the metadata fallback, by reason",
	}, []string{"reason"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atomgraph_operation_duration_seconds",
		Help:    "Engine operation duration",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation", "result"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomgraph_cache_lookups_total",
		Help: "Atom cache lookups by result",
	}, []string{"result"})

	ReindexEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atomgraph_reindex_events_total",
		Help: "Reindex events by stage and result",
	}, []string{"stage", "result"})
)

// ObserveOperation records the duration of an engine operation started
// at start. err decides the result label.
func ObserveOperation(operation string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	OperationDuration.WithLabelValues(operation, result).Observe(time.Since(start).Seconds())
}
