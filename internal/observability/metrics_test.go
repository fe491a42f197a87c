package observability

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stackhound/stackhound/internal/engine"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestExporterServesCounters(t *testing.T) {
	stats := &engine.Stats{}
	stats.RequestsAttempted.Add(12)
	stats.ProductsEmitted.Add(5)
	stats.PagesBlocked.Add(2)

	exp := NewExporter(stats, func() int { return 3 }, testLogger)

	rec := httptest.NewRecorder()
	exp.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type = %q, want text/plain", ct)
	}

	body, _ := io.ReadAll(rec.Body)
	out := string(body)

	want := []string{
		"stackhound_requests_attempted_total 12",
		"stackhound_products_emitted_total 5",
		"stackhound_pages_blocked_total 2",
		"stackhound_queue_depth 3",
		"# TYPE stackhound_requests_attempted_total counter",
		"# TYPE stackhound_queue_depth gauge",
	}
	for _, line := range want {
		if !strings.Contains(out, line) {
			t.Errorf("metrics output missing %q", line)
		}
	}
}

func TestExporterNilQueueDepth(t *testing.T) {
	exp := NewExporter(&engine.Stats{}, nil, testLogger)

	rec := httptest.NewRecorder()
	exp.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "stackhound_queue_depth 0") {
		t.Error("nil queueDepth should report depth 0")
	}
}
