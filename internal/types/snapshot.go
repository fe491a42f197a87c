package types

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// MitigationOutcome reports what best-effort page preparation achieved.
// Every field is informational; mitigation never fails a request.
type MitigationOutcome struct {
	// OverlayDismissed is true when a consent/overlay element was closed.
	OverlayDismissed bool

	// DismissSelector is the selector that matched, when one did.
	DismissSelector string

	// ContentFound is true when the primary content selector appeared
	// within the wait ceiling.
	ContentFound bool

	// ScrollSteps is how many scroll increments were performed.
	ScrollSteps int
}

// PageSnapshot is the rendered state of a fetched page, handed from the
// fetch layer to the extraction pipeline. Extraction works on the HTML
// alone, so snapshots built from fixtures exercise the same code paths.
type PageSnapshot struct {
	// URL is the requested URL.
	URL string

	// FinalURL is the URL after any redirects.
	FinalURL string

	// StatusCode is the HTTP status, or 200 for browser captures that
	// rendered without a navigation error.
	StatusCode int

	// HTML is the captured document markup.
	HTML string

	// Unrendered flags a page whose primary content selector never
	// appeared; extraction should lean on weaker fallback strategies.
	Unrendered bool

	// FetchedVia names the fetcher that produced the snapshot ("http"
	// or "browser").
	FetchedVia string

	// Mitigation is the outcome of anti-bot preparation, when it ran.
	Mitigation MitigationOutcome

	// FetchDuration is how long navigation and preparation took.
	FetchDuration time.Duration

	// FetchedAt is when the snapshot was captured.
	FetchedAt time.Time

	doc *goquery.Document
}

// Document returns the parsed goquery document, lazily initialized and
// cached on the snapshot.
func (s *PageSnapshot) Document() (*goquery.Document, error) {
	if s.doc != nil {
		return s.doc, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.HTML))
	if err != nil {
		return nil, err
	}
	s.doc = doc
	return doc, nil
}

// BaseURL returns the URL extraction should resolve relative links
// against, preferring the post-redirect address.
func (s *PageSnapshot) BaseURL() string {
	if s.FinalURL != "" {
		return s.FinalURL
	}
	return s.URL
}
