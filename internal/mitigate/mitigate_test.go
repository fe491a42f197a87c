package mitigate

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stackhound/stackhound/internal/config"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

// fakePage scripts a page's responses to mitigation actions.
type fakePage struct {
	clickable      map[string]bool
	clicked        []string
	visibleAfter   int // WaitVisible succeeds after this many scrolls
	scrolls        int
	waitCalls      int
	scrollErr      error
	contentVisible bool
}

func (p *fakePage) Click(selector string) error {
	if p.clickable[selector] {
		p.clicked = append(p.clicked, selector)
		return nil
	}
	return errors.New("no such element")
}

func (p *fakePage) WaitVisible(selector string, timeout time.Duration) error {
	p.waitCalls++
	if p.contentVisible || p.scrolls >= p.visibleAfter {
		return nil
	}
	return errors.New("wait timeout")
}

func (p *fakePage) ScrollBy(pixels int) error {
	if p.scrollErr != nil {
		return p.scrollErr
	}
	p.scrolls++
	return nil
}

func testMitigationConfig() *config.MitigationConfig {
	return &config.MitigationConfig{
		DismissSelectors: []string{
			"#onetrust-accept-btn-handler",
			".modal-popup .action-close",
		},
		ContentWait: 10 * time.Millisecond,
		SettleDelay: time.Millisecond,
		MaxScrolls:  3,
		ScrollStep:  500,
	}
}

func TestPrepareDismissesFirstMatchingOverlay(t *testing.T) {
	page := &fakePage{
		clickable:      map[string]bool{".modal-popup .action-close": true},
		contentVisible: true,
	}
	m := New(testMitigationConfig(), testLogger)

	out := m.Prepare(context.Background(), page, ".products-grid")

	if !out.OverlayDismissed {
		t.Error("expected overlay dismissed")
	}
	if out.DismissSelector != ".modal-popup .action-close" {
		t.Errorf("dismiss selector = %q", out.DismissSelector)
	}
	if len(page.clicked) != 1 {
		t.Errorf("expected exactly one click, got %d", len(page.clicked))
	}
	if !out.ContentFound {
		t.Error("expected content found")
	}
}

func TestPrepareNoOverlayIsNotAnError(t *testing.T) {
	page := &fakePage{clickable: map[string]bool{}, contentVisible: true}
	m := New(testMitigationConfig(), testLogger)

	out := m.Prepare(context.Background(), page, ".products-grid")

	if out.OverlayDismissed {
		t.Error("no overlay should have been dismissed")
	}
	if !out.ContentFound {
		t.Error("expected content found")
	}
}

func TestPrepareScrollsUntilContentAppears(t *testing.T) {
	page := &fakePage{clickable: map[string]bool{}, visibleAfter: 2}
	m := New(testMitigationConfig(), testLogger)

	out := m.Prepare(context.Background(), page, ".products-grid")

	if !out.ContentFound {
		t.Error("expected content after scrolling")
	}
	if out.ScrollSteps != 2 {
		t.Errorf("scroll steps = %d, want 2", out.ScrollSteps)
	}
}

func TestPrepareGivesUpAfterMaxScrolls(t *testing.T) {
	page := &fakePage{clickable: map[string]bool{}, visibleAfter: 99}
	m := New(testMitigationConfig(), testLogger)

	out := m.Prepare(context.Background(), page, ".products-grid")

	if out.ContentFound {
		t.Error("content should never appear")
	}
	if out.ScrollSteps != 3 {
		t.Errorf("scroll steps = %d, want max of 3", out.ScrollSteps)
	}
}

func TestPrepareScrollFailureDegrades(t *testing.T) {
	page := &fakePage{
		clickable: map[string]bool{},
		scrollErr: errors.New("page detached"),
		// Never visible without scrolling.
		visibleAfter: 99,
	}
	m := New(testMitigationConfig(), testLogger)

	out := m.Prepare(context.Background(), page, ".products-grid")

	if out.ContentFound {
		t.Error("expected unrendered outcome")
	}
	if out.ScrollSteps != 0 {
		t.Errorf("scroll steps = %d, want 0", out.ScrollSteps)
	}
}

func TestPrepareEmptySelectorSkipsWait(t *testing.T) {
	page := &fakePage{clickable: map[string]bool{}}
	m := New(testMitigationConfig(), testLogger)

	out := m.Prepare(context.Background(), page, "")

	if !out.ContentFound {
		t.Error("empty selector should count as found")
	}
	if page.waitCalls != 0 {
		t.Errorf("expected no waits, got %d", page.waitCalls)
	}
}
