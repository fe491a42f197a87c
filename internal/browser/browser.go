// Package browser provides the headless-browser capability behind the
// fetch layer: navigation under a chosen proxy tier, selector waits,
// clicking, and scrolling. It wraps Rod and exposes a small page
// surface so the rest of the engine never touches browser internals.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/proxy"
)

// Browser manages one Chromium instance per proxy tier. Proxying is a
// launch-time flag, so tiers cannot share an instance; instances are
// launched lazily on first use.
type Browser struct {
	cfg      *config.BrowserConfig
	proxies  *proxy.Manager
	logger   *slog.Logger
	mu       sync.Mutex
	browsers map[proxy.Tier]*rod.Browser
}

// New creates a Browser. No Chromium is launched until the first page.
func New(cfg *config.BrowserConfig, proxies *proxy.Manager, logger *slog.Logger) *Browser {
	return &Browser{
		cfg:      cfg,
		proxies:  proxies,
		logger:   logger.With("component", "browser"),
		browsers: make(map[proxy.Tier]*rod.Browser),
	}
}

// Page opens a page routed through the given tier.
func (b *Browser) Page(tier proxy.Tier) (*Page, error) {
	br, err := b.browserFor(tier)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if b.cfg.Stealth {
		page, err = stealth.Page(br)
	} else {
		page, err = br.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &Page{page: page, logger: b.logger}, nil
}

// Close shuts down every launched instance.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var firstErr error
	for tier, br := range b.browsers {
		if err := br.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(b.browsers, tier)
	}
	return firstErr
}

func (b *Browser) browserFor(tier proxy.Tier) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if br, ok := b.browsers[tier]; ok {
		return br, nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if b.cfg.WindowSize != "" {
		l = l.Set("window-size", b.cfg.WindowSize)
	}

	if b.proxies != nil {
		if server := b.proxies.ServerFor(tier); server != nil {
			l = l.Proxy(server.String())
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser for tier %s: %w", tier, err)
	}

	br := rod.New().ControlURL(controlURL)
	if err := br.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser for tier %s: %w", tier, err)
	}

	b.logger.Info("browser launched", "tier", tier.String(), "headless", b.cfg.Headless)
	b.browsers[tier] = br
	return br, nil
}

// Page is one live browser tab. It satisfies the mitigation capability
// and feeds captured HTML into the extraction pipeline.
type Page struct {
	page   *rod.Page
	logger *slog.Logger
}

// Navigate loads a URL and waits for the document to settle.
func (p *Page) Navigate(ctx context.Context, rawURL string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(rawURL); err != nil {
		return err
	}
	// Stability is best-effort; slow third-party beacons should not
	// fail the navigation.
	if err := page.WaitStable(300 * time.Millisecond); err != nil {
		p.logger.Debug("page stability timeout, continuing", "url", rawURL, "error", err)
	}
	return nil
}

// Click clicks the first visible element matching the selector.
func (p *Page) Click(selector string) error {
	el, err := p.page.Timeout(2 * time.Second).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	visible, err := el.Visible()
	if err != nil || !visible {
		return fmt.Errorf("element not visible: %s", selector)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// WaitVisible blocks until the selector is visible or the timeout hits.
func (p *Page) WaitVisible(selector string, timeout time.Duration) error {
	el, err := p.page.Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %s: %w", selector, err)
	}
	return el.WaitVisible()
}

// ScrollBy scrolls the viewport down by the given pixel distance.
func (p *Page) ScrollBy(pixels int) error {
	_, err := p.page.Eval(fmt.Sprintf("() => window.scrollBy(0, %d)", pixels))
	return err
}

// HTML returns the current document markup.
func (p *Page) HTML() (string, error) {
	return p.page.HTML()
}

// FinalURL reports the page address after redirects.
func (p *Page) FinalURL() string {
	info, err := p.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// Close releases the tab.
func (p *Page) Close() error {
	return p.page.Close()
}
