// Package engine is the crawl router: a bounded worker pool that
// dequeues classified requests from a priority frontier, fetches each
// page through the tier policy, extracts listings or products, and
// feeds discoveries back until the item budget fills or the frontier
// drains.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stackhound/stackhound/internal/classify"
	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/extract"
	"github.com/stackhound/stackhound/internal/fetch"
	"github.com/stackhound/stackhound/internal/output"
	"github.com/stackhound/stackhound/internal/proxy"
	"github.com/stackhound/stackhound/internal/types"
)

// State is the engine's lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Engine orchestrates one crawl.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	classifier *classify.Classifier
	fetcher    fetch.Fetcher
	listings   *extract.ListingExtractor
	products   *extract.ProductExtractor
	policy     proxy.Policy
	sink       output.Sink

	frontier     *Frontier
	reservations *Reservations
	budget       *Budget
	stats        *Stats
	maxRequests  int64

	state       atomic.Int32
	idleWorkers atomic.Int32
	wg          sync.WaitGroup

	throttleMu sync.Mutex
	lastFetch  time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// New wires an engine from its collaborators. The fetcher and sink are
// interfaces so tests drive the router without a network or a disk.
func New(cfg *config.Config, classifier *classify.Classifier, fetcher fetch.Fetcher, sink output.Sink, logger *slog.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())

	maxRequests := int64(cfg.Engine.MaxItems * cfg.Engine.RequestFactor)

	return &Engine{
		cfg:          cfg,
		logger:       logger.With("component", "engine"),
		classifier:   classifier,
		fetcher:      fetcher,
		listings:     extract.NewListingExtractor(&cfg.Site, logger),
		products:     extract.NewProductExtractor(logger),
		policy: proxy.Policy{
			Default: proxy.MustParseTier(cfg.Proxy.DefaultTier),
			Country: cfg.Proxy.Country,
		},
		sink:         sink,
		frontier:     NewFrontier(),
		reservations: NewReservations(4096),
		budget:       NewBudget(cfg.Engine.MaxItems),
		stats:        &Stats{},
		maxRequests:  maxRequests,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Seed enqueues the crawl's starting requests. Start URLs are
// classified here so a product seed claims its dedup key and a budget
// slot the same way a listing-discovered product does at enqueue.
func (e *Engine) Seed(searchTerms, startURLs []string) error {
	seeds, err := BuildSeeds(&e.cfg.Site, searchTerms, startURLs, e.cfg.Engine.MaxAttempts)
	if err != nil {
		return err
	}
	for _, seed := range seeds {
		if seed.Label == types.LabelUnclassified {
			seed.Label = e.classifier.Classify(seed.URLString())
		}
		switch seed.Label {
		case types.LabelProduct:
			if !e.reservations.TryReserve(types.DedupKey(seed.URLString())) {
				e.stats.URLsFiltered.Add(1)
				continue
			}
			if !e.budget.TryAcquire() {
				continue
			}
			seed.Priority = types.PriorityHigh
		case types.LabelInvalid:
			// Pushed unreserved; the router drops and counts it.
		default:
			if !e.reservations.TryReserve(types.RequestKey(seed.URLString())) {
				e.stats.URLsFiltered.Add(1)
				continue
			}
		}
		e.frontier.Push(seed)
		e.stats.URLsDiscovered.Add(1)
	}
	return nil
}

// Run executes the crawl to completion: budget filled, request ceiling
// hit, frontier drained, or context canceled.
func (e *Engine) Run(ctx context.Context) error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("engine is %s, cannot start", State(e.state.Load()))
	}
	if e.frontier.Len() == 0 {
		e.state.Store(int32(StateStopped))
		return fmt.Errorf("no seeds enqueued")
	}

	e.stats.StartTime = time.Now()
	e.logger.Info("crawl starting",
		"workers", e.cfg.Engine.Concurrency,
		"max_items", e.cfg.Engine.MaxItems,
		"max_requests", e.maxRequests,
		"fetcher", e.cfg.Fetcher.Mode,
		"proxy_tier", e.policy.Default.String(),
	)

	// Cancellation from the caller folds into the engine context.
	go func() {
		select {
		case <-ctx.Done():
			e.Stop()
		case <-e.ctx.Done():
		}
	}()

	for i := 0; i < e.cfg.Engine.Concurrency; i++ {
		e.wg.Add(1)
		go e.worker(i)
	}
	go e.idleMonitor()

	e.wg.Wait()
	e.state.Store(int32(StateStopped))
	e.cancel()

	if err := e.fetcher.Close(); err != nil {
		e.logger.Error("fetcher close error", "error", err)
	}

	e.logger.Info("crawl finished", "stats", e.stats.Snapshot())
	return nil
}

// Stop asks the engine to wind down. Workers finish their current page
// and exit once the frontier reports closed.
func (e *Engine) Stop() {
	if !e.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	e.logger.Info("engine stopping")
	// Close the frontier first so pollers observe it before the context
	// cancels any in-flight fetch.
	e.frontier.Close()
	e.cancel()
}

// Stats exposes the crawl counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// QueueDepth reports how many requests are waiting in the frontier.
func (e *Engine) QueueDepth() int {
	return e.frontier.Len()
}

// GetState returns the lifecycle state.
func (e *Engine) GetState() State {
	return State(e.state.Load())
}

// idleMonitor closes the frontier once every worker has been idle over
// an empty queue for a sustained stretch, which is the natural end of a
// crawl that never fills its budget.
func (e *Engine) idleMonitor() {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	idleStreak := 0

	for {
		select {
		case <-e.ctx.Done():
			e.frontier.Close()
			return
		case <-ticker.C:
			idle := int(e.idleWorkers.Load())
			if idle >= e.cfg.Engine.Concurrency && e.frontier.Len() == 0 {
				idleStreak++
				if idleStreak >= 3 {
					e.logger.Info("all workers idle, frontier empty")
					e.frontier.Close()
					return
				}
			} else {
				idleStreak = 0
			}
		}
	}
}

// applyThrottle enforces the politeness delay. The crawl targets a
// single host, so one clock covers all workers.
func (e *Engine) applyThrottle() {
	delay := e.cfg.Engine.PolitenessDelay
	if delay <= 0 {
		return
	}

	e.throttleMu.Lock()
	elapsed := time.Since(e.lastFetch)
	var wait time.Duration
	if elapsed < delay {
		wait = delay - elapsed
	}
	e.lastFetch = time.Now().Add(wait)
	e.throttleMu.Unlock()

	if wait > 0 {
		select {
		case <-e.ctx.Done():
		case <-time.After(wait):
		}
	}
}
