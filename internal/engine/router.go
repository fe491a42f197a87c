package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackhound/stackhound/internal/types"
)

// worker polls the frontier and routes each request by its label.
func (e *Engine) worker(id int) {
	defer e.wg.Done()
	logger := e.logger.With("worker_id", id)

	for {
		e.idleWorkers.Add(1)

		var req *types.CrawlRequest
		for {
			req = e.frontier.TryPop()
			if req != nil {
				break
			}
			if e.frontier.IsClosed() {
				e.idleWorkers.Add(-1)
				return
			}
			select {
			case <-e.ctx.Done():
				e.idleWorkers.Add(-1)
				return
			case <-time.After(50 * time.Millisecond):
			}
		}
		e.idleWorkers.Add(-1)

		// Requests left in the queue after a stop are drained, not
		// processed.
		if State(e.state.Load()) != StateRunning {
			continue
		}

		e.stats.ActiveWorkers.Add(1)
		e.process(logger, req)
		e.stats.ActiveWorkers.Add(-1)

		if e.budget.Filled() {
			logger.Info("item budget filled, stopping")
			e.Stop()
			return
		}
		if e.maxRequests > 0 && e.stats.RequestsAttempted.Load() >= e.maxRequests {
			logger.Info("request ceiling reached, stopping", "max_requests", e.maxRequests)
			e.Stop()
			return
		}
	}
}

// process handles one request end to end under the handler budget.
func (e *Engine) process(logger *slog.Logger, req *types.CrawlRequest) {
	logger = logger.With("url", req.URLString(), "attempt", req.Attempt)

	if req.Label == types.LabelUnclassified {
		req.Label = e.classifier.Classify(req.URLString())
	}
	logger = logger.With("label", req.Label.String())

	switch req.Label {
	case types.LabelInvalid:
		// Invalid pages are terminal; no fetch, no retry.
		e.stats.URLsFiltered.Add(1)
		logger.Debug("request dropped as invalid")
		return
	case types.LabelSearch, types.LabelCategory, types.LabelProduct:
	default:
		logger.Error("unroutable label", "label", req.Label.String())
		return
	}

	e.applyThrottle()
	e.stats.RequestsAttempted.Add(1)

	tier := e.policy.SelectTier(req.Attempt, req.LastFailure)
	ctx, cancel := context.WithTimeout(e.ctx, e.cfg.Engine.HandlerTimeout)
	defer cancel()

	snap, err := e.fetcher.Fetch(ctx, req, tier)
	if err != nil {
		e.handleFailure(logger, req, err)
		return
	}

	if req.Label == types.LabelProduct {
		e.handleProduct(logger, req, snap)
		return
	}
	e.handleListing(logger, req, snap)
}

// handleListing extracts candidates and pagination, then enqueues any
// that survive reservation and the item budget.
func (e *Engine) handleListing(logger *slog.Logger, req *types.CrawlRequest, snap *types.PageSnapshot) {
	result, err := e.listings.Extract(snap)
	if err != nil {
		e.handleFailure(logger, req, err)
		return
	}
	e.stats.RequestsSucceeded.Add(1)

	var enqueued int
	for _, candidate := range result.Candidates {
		if !e.enqueueProduct(candidate, req) {
			continue
		}
		enqueued++
	}

	for _, pageURL := range result.Pagination {
		e.enqueueListing(pageURL, req)
	}

	logger.Info("listing processed",
		"strategy", result.Strategy,
		"candidates", len(result.Candidates),
		"enqueued", enqueued,
		"pagination", len(result.Pagination),
	)
}

// handleProduct extracts and emits one record.
func (e *Engine) handleProduct(logger *slog.Logger, req *types.CrawlRequest, snap *types.PageSnapshot) {
	record, err := e.products.Extract(snap)
	if err != nil {
		e.handleFailure(logger, req, err)
		return
	}
	e.stats.RequestsSucceeded.Add(1)

	if err := e.sink.Emit(record); err != nil {
		logger.Error("emit failed", "error", err)
		e.stats.RequestsFailed.Add(1)
		e.budget.Release()
		return
	}

	e.budget.RecordEmit()
	e.stats.ProductsEmitted.Add(1)
	logger.Info("product emitted",
		"name", record.Name,
		"price", record.Price,
		"availability", record.Availability,
		"emitted", e.budget.Emitted(),
	)
}

// handleFailure retries a failed request until its attempt budget runs
// out, then records it as permanently failed.
func (e *Engine) handleFailure(logger *slog.Logger, req *types.CrawlRequest, err error) {
	class := types.ClassifyFailure(err)
	if class == types.FailureBlockDetected {
		e.stats.PagesBlocked.Add(1)
	}

	req.Attempt++
	if !req.Exhausted() && !e.frontier.IsClosed() {
		req.LastFailure = class
		req.Priority = types.PriorityLow
		e.stats.RequestsRetried.Add(1)
		logger.Warn("retrying request",
			"failure", class.String(),
			"attempt", req.Attempt,
			"max_attempts", req.MaxAttempts,
			"error", err,
		)
		e.frontier.Push(req)
		return
	}

	e.stats.RequestsFailed.Add(1)
	if req.Label == types.LabelProduct {
		// The slot claimed at enqueue goes back so another candidate can
		// fill the quota.
		e.budget.Release()
	}
	logger.Error("request failed permanently",
		"failure", class.String(),
		"attempts", req.Attempt,
		"error", err,
	)
}

// enqueueProduct claims a reservation and a budget slot for a candidate
// before pushing it. Reservation first: duplicates must not burn budget.
func (e *Engine) enqueueProduct(candidate types.ListingCandidate, parent *types.CrawlRequest) bool {
	if !e.classifier.OnHost(candidate.URL) {
		e.stats.URLsFiltered.Add(1)
		return false
	}
	if !e.reservations.TryReserve(types.DedupKey(candidate.URL)) {
		e.stats.URLsFiltered.Add(1)
		return false
	}
	if !e.budget.TryAcquire() {
		return false
	}

	req, err := types.NewCrawlRequest(candidate.URL)
	if err != nil {
		e.budget.Release()
		e.stats.URLsFiltered.Add(1)
		return false
	}
	req.Label = types.LabelProduct
	req.Priority = types.PriorityHigh
	req.MaxAttempts = e.cfg.Engine.MaxAttempts
	req.SearchTerm = parent.SearchTerm
	req.ParentURL = parent.URLString()

	e.frontier.Push(req)
	e.stats.URLsDiscovered.Add(1)
	return true
}

// enqueueListing pushes a pagination link under the parent's label.
// Pagination stops once the item budget is filled.
func (e *Engine) enqueueListing(rawURL string, parent *types.CrawlRequest) {
	if e.budget.Filled() {
		return
	}
	if !e.classifier.OnHost(rawURL) {
		e.stats.URLsFiltered.Add(1)
		return
	}
	if !e.reservations.TryReserve(types.RequestKey(rawURL)) {
		e.stats.URLsFiltered.Add(1)
		return
	}

	req, err := types.NewCrawlRequest(rawURL)
	if err != nil {
		e.stats.URLsFiltered.Add(1)
		return
	}
	req.Label = parent.Label
	req.Priority = types.PriorityNormal
	req.MaxAttempts = e.cfg.Engine.MaxAttempts
	req.SearchTerm = parent.SearchTerm
	req.ParentURL = parent.URLString()

	e.frontier.Push(req)
	e.stats.URLsDiscovered.Add(1)
}
