// Package observability exposes crawl counters over HTTP in Prometheus
// text exposition format. The exporter reads the engine's live stats; it
// keeps no counters of its own.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stackhound/stackhound/internal/engine"
)

// Exporter serves engine statistics as Prometheus metrics.
type Exporter struct {
	stats      *engine.Stats
	queueDepth func() int
	logger     *slog.Logger
}

// NewExporter creates an exporter over the given stats. queueDepth may
// be nil.
func NewExporter(stats *engine.Stats, queueDepth func() int, logger *slog.Logger) *Exporter {
	return &Exporter{
		stats:      stats,
		queueDepth: queueDepth,
		logger:     logger.With("component", "metrics"),
	}
}

// ServeHTTP writes the metrics in text exposition format.
func (e *Exporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var depth int64
	if e.queueDepth != nil {
		depth = int64(e.queueDepth())
	}

	metrics := []struct {
		name  string
		help  string
		typ   string
		value int64
	}{
		{"stackhound_requests_attempted_total", "Total page fetch attempts", "counter", e.stats.RequestsAttempted.Load()},
		{"stackhound_requests_succeeded_total", "Total pages processed successfully", "counter", e.stats.RequestsSucceeded.Load()},
		{"stackhound_requests_failed_total", "Total permanently failed requests", "counter", e.stats.RequestsFailed.Load()},
		{"stackhound_requests_retried_total", "Total retried requests", "counter", e.stats.RequestsRetried.Load()},
		{"stackhound_pages_blocked_total", "Total bot-protection blocks detected", "counter", e.stats.PagesBlocked.Load()},
		{"stackhound_products_emitted_total", "Total product records emitted", "counter", e.stats.ProductsEmitted.Load()},
		{"stackhound_urls_discovered_total", "Total URLs enqueued", "counter", e.stats.URLsDiscovered.Load()},
		{"stackhound_urls_filtered_total", "Total URLs dropped before fetch", "counter", e.stats.URLsFiltered.Load()},
		{"stackhound_active_workers", "Workers currently processing a page", "gauge", int64(e.stats.ActiveWorkers.Load())},
		{"stackhound_queue_depth", "Requests waiting in the frontier", "gauge", depth},
	}

	for _, m := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", m.name, m.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", m.name, m.typ)
		fmt.Fprintf(w, "%s %d\n", m.name, m.value)
	}
}

// StartServer serves metrics and a health probe in the background.
func (e *Exporter) StartServer(port int, path string) {
	mux := http.NewServeMux()
	mux.Handle(path, e)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	addr := fmt.Sprintf(":%d", port)
	e.logger.Info("metrics server starting", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			e.logger.Error("metrics server error", "error", err)
		}
	}()
}
