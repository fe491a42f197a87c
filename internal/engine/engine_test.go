package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stackhound/stackhound/internal/classify"
	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/proxy"
	"github.com/stackhound/stackhound/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const searchURL = "https://sdbullion.com/catalogsearch/result/?q=Silver+coin"

// fakeFetcher serves canned HTML keyed by URL and scripts failures.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	fail      map[string]error
	failFirst map[string]int
	calls     map[string]int
	tiers     map[string][]proxy.Tier
	closed    bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:     make(map[string]string),
		fail:      make(map[string]error),
		failFirst: make(map[string]int),
		calls:     make(map[string]int),
		tiers:     make(map[string][]proxy.Tier),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *types.CrawlRequest, tier proxy.Tier) (*types.PageSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := req.URLString()
	f.calls[u]++
	f.tiers[u] = append(f.tiers[u], tier)

	if err, ok := f.fail[u]; ok {
		return nil, err
	}
	if n := f.failFirst[u]; n > 0 {
		f.failFirst[u] = n - 1
		return nil, &types.PageError{URL: u, Class: types.FailurePageLoadTimeout, Err: context.DeadlineExceeded}
	}
	html, ok := f.pages[u]
	if !ok {
		return nil, &types.PageError{URL: u, Class: types.FailureContentNotFound, Err: types.ErrContentMissing}
	}
	return &types.PageSnapshot{
		URL:        u,
		FinalURL:   u,
		StatusCode: 200,
		HTML:       html,
		FetchedVia: "fake",
		FetchedAt:  time.Now().UTC(),
	}, nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func (f *fakeFetcher) tiersFor(url string) []proxy.Tier {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]proxy.Tier(nil), f.tiers[url]...)
}

// fakeSink collects emitted records in memory.
type fakeSink struct {
	mu      sync.Mutex
	records []*types.ProductRecord
}

func (s *fakeSink) Name() string { return "fake" }

func (s *fakeSink) Emit(record *types.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *fakeSink) Close() error { return nil }

func (s *fakeSink) all() []*types.ProductRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.ProductRecord(nil), s.records...)
}

func listingPage(links []string, nextPage string) string {
	html := `<html><body><div class="products-grid">`
	for i, link := range links {
		html += fmt.Sprintf(
			`<div class="product-item"><a class="product-item-link" href="%s">Product %d</a><span class="price">$%d.99</span></div>`,
			link, i+1, 20+i,
		)
	}
	html += `</div>`
	if nextPage != "" {
		html += fmt.Sprintf(`<div class="pages"><a class="next" href="%s">Next</a></div>`, nextPage)
	}
	html += `</body></html>`
	return html
}

func productPage(name, price string) string {
	return fmt.Sprintf(`<html><body>
<h1 class="page-title">%s</h1>
<div class="product-info-price"><span class="price">%s</span></div>
<div class="stock available">In Stock</div>
</body></html>`, name, price)
}

func newTestEngine(t *testing.T, fetcher *fakeFetcher, maxItems int) (*Engine, *fakeSink) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Engine.Concurrency = 2
	cfg.Engine.MaxItems = maxItems
	cfg.Engine.PolitenessDelay = 0
	cfg.Engine.HandlerTimeout = 5 * time.Second

	sink := &fakeSink{}
	e := New(cfg, classify.New(&cfg.Site), fetcher, sink, testLogger)
	return e, sink
}

func runCrawl(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestCrawlSearchToProducts(t *testing.T) {
	ff := newFakeFetcher()
	ff.pages[searchURL] = listingPage([]string{
		"/1-oz-american-silver-eagle",
		"/1-oz-gold-maple-leaf",
		"/10-oz-silver-bar",
	}, "")
	ff.pages["https://sdbullion.com/1-oz-american-silver-eagle"] = productPage("1 oz American Silver Eagle", "$34.99")
	ff.pages["https://sdbullion.com/1-oz-gold-maple-leaf"] = productPage("1 oz Gold Maple Leaf", "$2,412.50")
	ff.pages["https://sdbullion.com/10-oz-silver-bar"] = productPage("10 oz Silver Bar", "$312.80")

	e, sink := newTestEngine(t, ff, 5)
	if err := e.Seed([]string{"Silver coin"}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	records := sink.all()
	if len(records) != 3 {
		t.Fatalf("emitted %d records, want 3", len(records))
	}
	names := make(map[string]bool)
	for _, r := range records {
		names[r.Name] = true
		if r.PriceNumeric == nil {
			t.Errorf("record %s has nil priceNumeric", r.URL)
		}
		if r.Availability != types.AvailabilityInStock {
			t.Errorf("record %s availability = %s", r.URL, r.Availability)
		}
	}
	if !names["1 oz American Silver Eagle"] || !names["10 oz Silver Bar"] {
		t.Errorf("missing expected product names: %v", names)
	}
	if got := e.Stats().ProductsEmitted.Load(); got != 3 {
		t.Errorf("ProductsEmitted = %d, want 3", got)
	}
	if !ff.closed {
		t.Error("fetcher should be closed after Run")
	}
}

func TestCrawlMaxItemsOneStopsFanOut(t *testing.T) {
	ff := newFakeFetcher()
	productURLs := []string{
		"https://sdbullion.com/1-oz-american-silver-eagle",
		"https://sdbullion.com/1-oz-gold-maple-leaf",
		"https://sdbullion.com/10-oz-silver-bar",
	}
	ff.pages[searchURL] = listingPage([]string{
		"/1-oz-american-silver-eagle",
		"/1-oz-gold-maple-leaf",
		"/10-oz-silver-bar",
	}, "")
	for i, u := range productURLs {
		ff.pages[u] = productPage(fmt.Sprintf("Product %d", i+1), "$10.00")
	}

	e, sink := newTestEngine(t, ff, 1)
	if err := e.Seed([]string{"Silver coin"}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := len(sink.all()); got != 1 {
		t.Fatalf("emitted %d records, want exactly 1", got)
	}
	var productFetches int
	for _, u := range productURLs {
		productFetches += ff.callCount(u)
	}
	if productFetches != 1 {
		t.Errorf("%d product pages fetched, want 1: the budget gates enqueue, not just emission", productFetches)
	}
}

func TestCrawlRetriesThenFailsPermanently(t *testing.T) {
	ff := newFakeFetcher()
	failing := "https://sdbullion.com/1-oz-gold-maple-leaf"
	ff.pages[searchURL] = listingPage([]string{
		"/1-oz-american-silver-eagle",
		"/1-oz-gold-maple-leaf",
		"/10-oz-silver-bar",
	}, "")
	ff.pages["https://sdbullion.com/1-oz-american-silver-eagle"] = productPage("1 oz American Silver Eagle", "$34.99")
	ff.pages["https://sdbullion.com/10-oz-silver-bar"] = productPage("10 oz Silver Bar", "$312.80")
	ff.fail[failing] = &types.PageError{URL: failing, Class: types.FailurePageLoadTimeout, Err: context.DeadlineExceeded}

	e, sink := newTestEngine(t, ff, 5)
	if err := e.Seed([]string{"Silver coin"}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := ff.callCount(failing); got != 3 {
		t.Errorf("failing page fetched %d times, want 3 (no fourth attempt)", got)
	}
	records := sink.all()
	if len(records) != 2 {
		t.Fatalf("emitted %d records, want the 2 healthy products", len(records))
	}
	for _, r := range records {
		if r.URL == types.DedupKey(failing) {
			t.Error("failed product should not be emitted")
		}
	}
	if got := e.Stats().RequestsRetried.Load(); got != 2 {
		t.Errorf("RequestsRetried = %d, want 2", got)
	}
	if got := e.Stats().RequestsFailed.Load(); got != 1 {
		t.Errorf("RequestsFailed = %d, want 1", got)
	}
}

func TestCrawlTierEscalation(t *testing.T) {
	ff := newFakeFetcher()
	flaky := "https://sdbullion.com/1-oz-american-silver-eagle"
	ff.pages[searchURL] = listingPage([]string{"/1-oz-american-silver-eagle"}, "")
	ff.pages[flaky] = productPage("1 oz American Silver Eagle", "$34.99")
	ff.failFirst[flaky] = 1

	e, sink := newTestEngine(t, ff, 5)
	if err := e.Seed([]string{"Silver coin"}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := len(sink.all()); got != 1 {
		t.Fatalf("emitted %d records, want 1 after retry", got)
	}
	tiers := ff.tiersFor(flaky)
	if len(tiers) != 2 {
		t.Fatalf("flaky page fetched %d times, want 2", len(tiers))
	}
	if tiers[0] != proxy.TierResidential {
		t.Errorf("first attempt tier = %s, want residential", tiers[0])
	}
	if tiers[1] != proxy.TierUnblocker {
		t.Errorf("retry tier = %s, want escalation above residential", tiers[1])
	}
}

func TestCrawlDuplicateAcrossPages(t *testing.T) {
	ff := newFakeFetcher()
	page2 := "https://sdbullion.com/catalogsearch/result/?q=Silver+coin&p=2"
	shared := "https://sdbullion.com/1-oz-american-silver-eagle"

	ff.pages[searchURL] = listingPage([]string{
		"/1-oz-american-silver-eagle",
		"/1-oz-gold-maple-leaf",
	}, "/catalogsearch/result/?q=Silver+coin&p=2")
	// Page two lists the eagle again, plus one new product.
	ff.pages[page2] = listingPage([]string{
		"/1-oz-american-silver-eagle/",
		"/10-oz-silver-bar",
	}, "")
	ff.pages[shared] = productPage("1 oz American Silver Eagle", "$34.99")
	ff.pages["https://sdbullion.com/1-oz-gold-maple-leaf"] = productPage("1 oz Gold Maple Leaf", "$2,412.50")
	ff.pages["https://sdbullion.com/10-oz-silver-bar"] = productPage("10 oz Silver Bar", "$312.80")

	e, sink := newTestEngine(t, ff, 10)
	if err := e.Seed([]string{"Silver coin"}, nil); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := ff.callCount(shared); got != 1 {
		t.Errorf("shared product fetched %d times, want 1", got)
	}
	if got := ff.callCount(page2); got != 1 {
		t.Errorf("pagination page fetched %d times, want 1", got)
	}
	if got := len(sink.all()); got != 3 {
		t.Errorf("emitted %d records, want 3 distinct products", got)
	}
}

func TestCrawlProductSeedDeduplicatesAgainstListing(t *testing.T) {
	ff := newFakeFetcher()
	seedURL := "https://sdbullion.com/1-oz-american-silver-eagle?utm_source=feed"
	bareURL := "https://sdbullion.com/1-oz-american-silver-eagle"

	// The search listing discovers the same product the seed names.
	ff.pages[searchURL] = listingPage([]string{"/1-oz-american-silver-eagle"}, "")
	ff.pages[seedURL] = productPage("1 oz American Silver Eagle", "$34.99")
	ff.pages[bareURL] = productPage("1 oz American Silver Eagle", "$34.99")

	e, sink := newTestEngine(t, ff, 5)
	if err := e.Seed([]string{"Silver coin"}, []string{seedURL}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := ff.callCount(seedURL) + ff.callCount(bareURL); got != 1 {
		t.Errorf("product fetched %d times across both spellings, want 1", got)
	}
	records := sink.all()
	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	if records[0].URL != bareURL {
		t.Errorf("record URL = %q, want canonical %q", records[0].URL, bareURL)
	}
}

func TestCrawlProductSeedsHonorMaxItems(t *testing.T) {
	ff := newFakeFetcher()
	seeds := []string{
		"https://sdbullion.com/1-oz-american-silver-eagle",
		"https://sdbullion.com/10-oz-silver-bar",
	}
	ff.pages[seeds[0]] = productPage("1 oz American Silver Eagle", "$34.99")
	ff.pages[seeds[1]] = productPage("10 oz Silver Bar", "$312.80")

	e, sink := newTestEngine(t, ff, 1)
	if err := e.Seed(nil, seeds); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := len(sink.all()); got != 1 {
		t.Fatalf("emitted %d records with max items 1, want exactly 1", got)
	}
	if got := ff.callCount(seeds[0]) + ff.callCount(seeds[1]); got != 1 {
		t.Errorf("%d product pages fetched, want 1: seeds claim budget slots too", got)
	}
}

func TestCrawlInvalidStartURLDropped(t *testing.T) {
	ff := newFakeFetcher()

	e, sink := newTestEngine(t, ff, 5)
	if err := e.Seed(nil, []string{"https://sdbullion.com/about-us"}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	if got := ff.callCount("https://sdbullion.com/about-us"); got != 0 {
		t.Errorf("invalid page fetched %d times, want 0", got)
	}
	if len(sink.all()) != 0 {
		t.Error("invalid seed should emit nothing")
	}
	if got := e.Stats().URLsFiltered.Load(); got == 0 {
		t.Error("invalid seed should count as filtered")
	}
}

func TestCrawlCategoryStartURL(t *testing.T) {
	ff := newFakeFetcher()
	categoryURL := "https://sdbullion.com/silver"
	ff.pages[categoryURL] = listingPage([]string{"/10-oz-silver-bar"}, "")
	ff.pages["https://sdbullion.com/10-oz-silver-bar"] = productPage("10 oz Silver Bar", "$312.80")

	e, sink := newTestEngine(t, ff, 5)
	if err := e.Seed(nil, []string{categoryURL}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	runCrawl(t, e)

	records := sink.all()
	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	if records[0].Name != "10 oz Silver Bar" {
		t.Errorf("record name = %q", records[0].Name)
	}
}
