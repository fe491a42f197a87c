package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackhound/stackhound/internal/browser"
	"github.com/stackhound/stackhound/internal/mitigate"
	"github.com/stackhound/stackhound/internal/proxy"
	"github.com/stackhound/stackhound/internal/types"
)

// BrowserFetcher renders pages in a headless browser and runs anti-bot
// preparation before capturing the document.
type BrowserFetcher struct {
	browser   *browser.Browser
	mitigator *mitigate.Mitigator
	logger    *slog.Logger
}

// NewBrowserFetcher creates a browser-backed fetcher.
func NewBrowserFetcher(b *browser.Browser, m *mitigate.Mitigator, logger *slog.Logger) *BrowserFetcher {
	return &BrowserFetcher{
		browser:   b,
		mitigator: m,
		logger:    logger.With("component", "browser_fetcher"),
	}
}

// Fetch navigates, prepares, and captures the page.
func (f *BrowserFetcher) Fetch(ctx context.Context, req *types.CrawlRequest, tier proxy.Tier) (*types.PageSnapshot, error) {
	page, err := f.browser.Page(tier)
	if err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: err}
	}
	defer page.Close()

	start := time.Now()
	if err := page.Navigate(ctx, req.URLString()); err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: err}
	}

	outcome := f.mitigator.Prepare(ctx, page, primarySelector(req.Label))

	html, err := page.HTML()
	if err != nil {
		return nil, &types.PageError{URL: req.URLString(), Class: types.FailurePageLoadTimeout, Err: err}
	}
	duration := time.Since(start)

	if IsBlocked(0, html) {
		return nil, &types.PageError{
			URL:   req.URLString(),
			Class: types.FailureBlockDetected,
			Err:   types.ErrBlockedPage,
		}
	}

	finalURL := page.FinalURL()
	if finalURL == "" {
		finalURL = req.URLString()
	}

	snap := &types.PageSnapshot{
		URL:           req.URLString(),
		FinalURL:      finalURL,
		StatusCode:    200,
		HTML:          html,
		Unrendered:    !outcome.ContentFound,
		FetchedVia:    ViaBrowser,
		Mitigation:    outcome,
		FetchDuration: duration,
		FetchedAt:     time.Now().UTC(),
	}

	f.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"tier", tier.String(),
		"overlay_dismissed", outcome.OverlayDismissed,
		"content_found", outcome.ContentFound,
		"scrolls", outcome.ScrollSteps,
		"duration", duration,
	)
	return snap, nil
}

// Close shuts the underlying browser down.
func (f *BrowserFetcher) Close() error {
	return f.browser.Close()
}
