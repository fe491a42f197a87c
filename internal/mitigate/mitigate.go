// Package mitigate prepares a live page for extraction: dismissing
// consent overlays, waiting for primary content, and scrolling to
// trigger lazy-loaded sections. Every step is best-effort; preparation
// reports an outcome value and never fails the request.
package mitigate

import (
	"context"
	"log/slog"
	"time"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/types"
)

// Page is the browser capability mitigation needs. The production
// implementation wraps a live headless-browser page; tests use fakes.
type Page interface {
	// Click clicks the first visible element matching the selector,
	// returning an error when nothing matches.
	Click(selector string) error

	// WaitVisible blocks until the selector is visible or the timeout
	// elapses.
	WaitVisible(selector string, timeout time.Duration) error

	// ScrollBy scrolls the viewport down by the given pixel distance.
	ScrollBy(pixels int) error
}

// Mitigator runs the preparation sequence.
type Mitigator struct {
	cfg    *config.MitigationConfig
	logger *slog.Logger
}

// New creates a Mitigator.
func New(cfg *config.MitigationConfig, logger *slog.Logger) *Mitigator {
	return &Mitigator{
		cfg:    cfg,
		logger: logger.With("component", "mitigate"),
	}
}

// Prepare runs overlay dismissal, the bounded content wait, and lazy-load
// scrolling against a live page. The returned outcome tells the caller
// whether the primary content selector ever appeared; when it did not,
// the page should be flagged unrendered so extraction leans on weaker
// fallback strategies.
func (m *Mitigator) Prepare(ctx context.Context, page Page, contentSelector string) types.MitigationOutcome {
	var out types.MitigationOutcome

	m.dismissOverlays(ctx, page, &out)

	if contentSelector == "" {
		out.ContentFound = true
		return out
	}

	if err := page.WaitVisible(contentSelector, m.cfg.ContentWait); err == nil {
		out.ContentFound = true
		return out
	}

	// Content may be lazy-loaded below the fold; scroll in bounded
	// increments and re-check after each one.
	for i := 0; i < m.cfg.MaxScrolls && !out.ContentFound; i++ {
		if ctx.Err() != nil {
			break
		}
		if err := page.ScrollBy(m.cfg.ScrollStep); err != nil {
			m.logger.Debug("scroll failed", "step", i+1, "error", err)
			break
		}
		out.ScrollSteps++
		sleep(ctx, m.cfg.SettleDelay)

		if err := page.WaitVisible(contentSelector, m.cfg.SettleDelay*4); err == nil {
			out.ContentFound = true
		}
	}

	if !out.ContentFound {
		m.logger.Debug("primary content never appeared", "selector", contentSelector, "scrolls", out.ScrollSteps)
	}
	return out
}

// dismissOverlays walks the configured selector chain and clicks the
// first match. Absence of a match is not an error.
func (m *Mitigator) dismissOverlays(ctx context.Context, page Page, out *types.MitigationOutcome) {
	for _, selector := range m.cfg.DismissSelectors {
		if ctx.Err() != nil {
			return
		}
		if err := page.Click(selector); err != nil {
			continue
		}
		out.OverlayDismissed = true
		out.DismissSelector = selector
		m.logger.Debug("dismissed overlay", "selector", selector)
		sleep(ctx, m.cfg.SettleDelay)
		return
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
