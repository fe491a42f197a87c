package engine

import (
	"sync/atomic"
	"time"
)

// Stats tracks crawl counters. All fields are safe for concurrent use.
type Stats struct {
	RequestsAttempted atomic.Int64
	RequestsSucceeded atomic.Int64
	RequestsFailed    atomic.Int64
	RequestsRetried   atomic.Int64
	PagesBlocked      atomic.Int64
	ProductsEmitted   atomic.Int64
	URLsDiscovered    atomic.Int64
	URLsFiltered      atomic.Int64
	ActiveWorkers     atomic.Int32
	StartTime         time.Time
}

// Snapshot returns a point-in-time copy safe for logging.
func (s *Stats) Snapshot() map[string]any {
	return map[string]any{
		"requests_attempted": s.RequestsAttempted.Load(),
		"requests_succeeded": s.RequestsSucceeded.Load(),
		"requests_failed":    s.RequestsFailed.Load(),
		"requests_retried":   s.RequestsRetried.Load(),
		"pages_blocked":      s.PagesBlocked.Load(),
		"products_emitted":   s.ProductsEmitted.Load(),
		"urls_discovered":    s.URLsDiscovered.Load(),
		"urls_filtered":      s.URLsFiltered.Load(),
		"active_workers":     s.ActiveWorkers.Load(),
		"elapsed":            time.Since(s.StartTime).String(),
	}
}
