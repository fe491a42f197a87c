// Package extract turns page snapshots into listing candidates and
// product records. Both pipelines are ordered strategy chains:
// site-specific selectors run first, generic and structural fallbacks
// after, and the first non-empty result wins.
package extract

import (
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/types"
)

// ListingContentSelector marks a rendered Magento listing page. The
// fetch layer waits for it before capture.
const ListingContentSelector = ".products-grid, .products.list, .product-items, .search.results"

// paginationSelector matches Magento pager links.
const paginationSelector = ".pages a.next, .pages-items a, [class*=\"pagination\"] a, a.action.next"

// ListingStrategy produces candidates from a parsed listing page.
// Strategies return nil when they find nothing; the chain moves on.
type ListingStrategy struct {
	Name    string
	Extract func(doc *goquery.Document, base *url.URL) []types.ListingCandidate
}

// ListingResult is what one listing page yields.
type ListingResult struct {
	// Candidates are page-level deduplicated product links.
	Candidates []types.ListingCandidate

	// Pagination holds next-page URLs to re-enqueue under the same label.
	Pagination []string

	// Strategy names the strategy that produced the candidates.
	Strategy string
}

// ListingExtractor runs the listing strategy chain.
type ListingExtractor struct {
	host       string
	strategies []ListingStrategy
	logger     *slog.Logger
}

// NewListingExtractor builds the default strategy chain for the site.
func NewListingExtractor(site *config.SiteConfig, logger *slog.Logger) *ListingExtractor {
	e := &ListingExtractor{
		host:   strings.ToLower(site.Host),
		logger: logger.With("component", "listing_extractor"),
	}
	e.strategies = []ListingStrategy{
		{Name: "magento_product_item", Extract: e.magentoProductItems},
		{Name: "generic_grid", Extract: e.genericGrid},
		{Name: "link_with_price", Extract: e.linksWithPrices},
		{Name: "structural_xpath", Extract: e.structuralXPath},
	}
	return e
}

// Extract runs the strategy chain and collects pagination links. The
// candidates are deduplicated within the page by normalized URL.
func (e *ListingExtractor) Extract(snap *types.PageSnapshot) (*ListingResult, error) {
	doc, err := snap.Document()
	if err != nil {
		return nil, &types.PageError{
			URL:   snap.URL,
			Class: types.FailureContentNotFound,
			Err:   err,
		}
	}

	base, err := url.Parse(snap.BaseURL())
	if err != nil {
		return nil, &types.PageError{URL: snap.URL, Class: types.FailureContentNotFound, Err: err}
	}

	result := &ListingResult{}
	for _, strategy := range e.strategies {
		candidates := dedupCandidates(strategy.Extract(doc, base))
		if len(candidates) == 0 {
			continue
		}
		result.Candidates = candidates
		result.Strategy = strategy.Name
		e.logger.Debug("listing extracted",
			"url", snap.URL,
			"strategy", strategy.Name,
			"candidates", len(candidates),
		)
		break
	}

	result.Pagination = e.paginationLinks(doc, base)
	return result, nil
}

// magentoProductItems is the site-specific strategy: Magento 2 product
// card markup as rendered by the storefront.
func (e *ListingExtractor) magentoProductItems(doc *goquery.Document, base *url.URL) []types.ListingCandidate {
	var out []types.ListingCandidate

	doc.Find(".product-item, .product-item-info, .item.product.product-item").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a.product-item-link, a.product-item-photo, a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}

		name := strings.TrimSpace(card.Find(".product-item-link, .product-item-name, .product.name a, h2 a, h3 a").First().Text())
		if name == "" {
			name = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if name == "" {
			return
		}

		resolved, ok := e.resolveOnHost(base, href)
		if !ok {
			return
		}

		out = append(out, types.ListingCandidate{
			URL:      resolved,
			Name:     name,
			Price:    strings.TrimSpace(card.Find(".price-box .price, .price-wrapper .price, [data-price-type=\"finalPrice\"] .price, .price").First().Text()),
			ImageURL: imageSrc(card.Find("img.product-image-photo, img[src], img[data-src]").First()),
		})
	})

	return out
}

// genericGrid is the first fallback: loosely structured product grids
// and lists.
func (e *ListingExtractor) genericGrid(doc *goquery.Document, base *url.URL) []types.ListingCandidate {
	var out []types.ListingCandidate

	doc.Find(".products-grid .product-item, .products.list .product-item, [class*=\"product\"] li, [class*=\"product-list\"] > div").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a[href]").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		resolved, ok := e.resolveOnHost(base, href)
		if !ok {
			return
		}

		name := strings.TrimSpace(card.Find("h2, h3, h4, [class*=\"name\"], [class*=\"title\"], a[class*=\"link\"]").First().Text())
		if name == "" {
			return
		}

		out = append(out, types.ListingCandidate{
			URL:      resolved,
			Name:     name,
			Price:    strings.TrimSpace(card.Find("[class*=\"price\"]").First().Text()),
			ImageURL: imageSrc(card.Find("img[src], img[data-src]").First()),
		})
	})

	return out
}

// linksWithPrices is the weakest CSS strategy: any on-host link with a
// price element nearby. Used when the page rendered partially.
func (e *ListingExtractor) linksWithPrices(doc *goquery.Document, base *url.URL) []types.ListingCandidate {
	var out []types.ListingCandidate

	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		resolved, ok := e.resolveOnHost(base, href)
		if !ok {
			return
		}

		name := strings.TrimSpace(link.Text())
		if name == "" {
			name = strings.TrimSpace(link.AttrOr("title", ""))
		}
		// Very short link text is navigation chrome, not a product name.
		if len(name) <= 5 {
			return
		}

		container := link.Closest("div, li, article, section")
		price := strings.TrimSpace(container.Find("[class*=\"price\"]").First().Text())
		if price == "" {
			return
		}

		out = append(out, types.ListingCandidate{
			URL:      resolved,
			Name:     name,
			Price:    price,
			ImageURL: imageSrc(container.Find("img[src], img[data-src]").First()),
		})
	})

	return out
}

// paginationLinks collects next-page URLs from the Magento pager.
func (e *ListingExtractor) paginationLinks(doc *goquery.Document, base *url.URL) []string {
	seen := make(map[string]struct{})
	var out []string

	doc.Find(paginationSelector).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		resolved, ok := e.resolveOnHost(base, href)
		if !ok {
			return
		}
		key := types.DedupKey(resolved)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, resolved)
	})

	return out
}

// resolveOnHost resolves a href against the page URL and keeps it only
// when it stays on the target host.
func (e *ListingExtractor) resolveOnHost(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}

	host := strings.TrimPrefix(strings.ToLower(resolved.Hostname()), "www.")
	if host != e.host {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

// dedupCandidates removes within-page duplicates by normalized URL,
// keeping first occurrence order.
func dedupCandidates(candidates []types.ListingCandidate) []types.ListingCandidate {
	if len(candidates) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(candidates))
	out := candidates[:0]
	for _, c := range candidates {
		key := types.DedupKey(c.URL)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// imageSrc prefers src and falls back to the lazy-load data attribute.
func imageSrc(img *goquery.Selection) string {
	if src, ok := img.Attr("src"); ok && src != "" {
		return src
	}
	return img.AttrOr("data-src", "")
}
