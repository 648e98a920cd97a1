package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"auditgraph/internal/logger"
)

// Counters for the audit ingestion path.
var (
	LinesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_lines_read_total",
		Help: "Audit log lines consumed from the input feed.",
	})
	LinesUnparseable = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_lines_unparseable_total",
		Help: "Audit log lines dropped because they did not match the record pattern.",
	})
	EventsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_events_finalized_total",
		Help: "Multi-record audit events finalized and dispatched.",
	})
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_events_dropped_total",
		Help: "Audit events dropped before dispatch (failed syscalls, empty buffers).",
	})
	VerticesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_vertices_emitted_total",
		Help: "Provenance vertices written to the graph sink.",
	})
	EdgesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_edges_emitted_total",
		Help: "Provenance edges written to the graph sink.",
	})
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_cache_evictions_total",
		Help: "Entries spilled from the in-memory cache tier to the overflow store.",
	})
	CacheFilterSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "auditgraph_cache_filter_skips_total",
		Help: "Cache reads answered absent by the membership filter without touching the overflow store.",
	})
)

// Serve exposes the metrics endpoint on addr. It runs until the process
// exits; listen failures are logged, not fatal.
func Serve(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Metrics endpoint listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics endpoint failed: %v", err)
		}
	}()
}
