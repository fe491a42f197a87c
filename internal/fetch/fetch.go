// Package fetch turns crawl requests into page snapshots. Three
// implementations share one interface: a plain HTTP client, a headless
// browser with anti-bot preparation, and an auto mode that starts on
// HTTP and escalates to the browser when a page is blocked or arrives
// unrendered.
package fetch

import (
	"context"

	"github.com/stackhound/stackhound/internal/extract"
	"github.com/stackhound/stackhound/internal/proxy"
	"github.com/stackhound/stackhound/internal/types"
)

// FetchedVia values recorded on snapshots.
const (
	ViaHTTP    = "http"
	ViaBrowser = "browser"
)

// Fetcher retrieves one page through the given proxy tier.
//
// A returned error is always a *types.PageError so the router can map
// it to a failure class for retry and tier escalation decisions.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.CrawlRequest, tier proxy.Tier) (*types.PageSnapshot, error)
	Close() error
}

// primarySelector is the content selector that must appear for a page
// of the given kind to count as rendered.
func primarySelector(label types.PageLabel) string {
	if label == types.LabelProduct {
		return extract.ProductContentSelector
	}
	return extract.ListingContentSelector
}

// markRendered sets the Unrendered flag from the snapshot's own markup.
func markRendered(snap *types.PageSnapshot, label types.PageLabel) {
	doc, err := snap.Document()
	if err != nil {
		snap.Unrendered = true
		return
	}
	snap.Unrendered = doc.Find(primarySelector(label)).Length() == 0
}
