package fetch

import (
	"context"
	"log/slog"

	"github.com/stackhound/stackhound/internal/proxy"
	"github.com/stackhound/stackhound/internal/types"
)

// AutoFetcher tries cheap HTTP first and escalates to the browser when
// the response is blocked or the page arrives without its primary
// content rendered. Non-block HTTP failures are returned as-is; the
// router's retry handling covers those.
type AutoFetcher struct {
	http    Fetcher
	browser Fetcher
	logger  *slog.Logger
}

// NewAutoFetcher composes an HTTP and a browser fetcher.
func NewAutoFetcher(httpFetcher, browserFetcher Fetcher, logger *slog.Logger) *AutoFetcher {
	return &AutoFetcher{
		http:    httpFetcher,
		browser: browserFetcher,
		logger:  logger.With("component", "auto_fetcher"),
	}
}

// Fetch retrieves the page, escalating within the same call so one
// attempt consumes at most one slot of the request's retry budget.
func (f *AutoFetcher) Fetch(ctx context.Context, req *types.CrawlRequest, tier proxy.Tier) (*types.PageSnapshot, error) {
	// Requests that already failed with a block skip straight to the
	// browser; re-probing over plain HTTP rarely clears a block.
	if req.LastFailure != types.FailureBlockDetected {
		snap, err := f.http.Fetch(ctx, req, tier)
		if err == nil && !snap.Unrendered {
			return snap, nil
		}
		if err != nil && types.ClassifyFailure(err) != types.FailureBlockDetected {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: ctx.Err()}
		}
		f.logger.Debug("escalating to browser",
			"url", req.URLString(),
			"reason", escalationReason(snap, err),
		)
	}
	return f.browser.Fetch(ctx, req, tier)
}

// Close closes both underlying fetchers.
func (f *AutoFetcher) Close() error {
	httpErr := f.http.Close()
	browserErr := f.browser.Close()
	if httpErr != nil {
		return httpErr
	}
	return browserErr
}

func escalationReason(snap *types.PageSnapshot, err error) string {
	if err != nil {
		return "blocked"
	}
	if snap != nil && snap.Unrendered {
		return "unrendered"
	}
	return "unknown"
}
