package engine

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/types"
)

// BuildSeeds turns crawl input into seed requests. Search terms expand
// through the site's search URL template; start URLs pass through as-is
// and get labeled on first dequeue. With no input at all, the site's
// default search term seeds the crawl.
func BuildSeeds(site *config.SiteConfig, searchTerms, startURLs []string, maxAttempts int) ([]*types.CrawlRequest, error) {
	if len(searchTerms) == 0 && len(startURLs) == 0 {
		searchTerms = []string{site.DefaultSearchTerm}
	}

	seeds := make([]*types.CrawlRequest, 0, len(searchTerms)+len(startURLs))

	for _, term := range searchTerms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		rawURL := fmt.Sprintf(site.SearchURLTemplate, url.QueryEscape(term))
		req, err := types.NewCrawlRequest(rawURL)
		if err != nil {
			return nil, fmt.Errorf("search term %q: %w", term, err)
		}
		req.Label = types.LabelSearch
		req.SearchTerm = term
		req.Priority = types.PriorityHighest
		req.MaxAttempts = maxAttempts
		seeds = append(seeds, req)
	}

	for _, raw := range startURLs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		req, err := types.NewCrawlRequest(raw)
		if err != nil {
			return nil, fmt.Errorf("start URL %q: %w", raw, err)
		}
		req.Priority = types.PriorityHighest
		req.MaxAttempts = maxAttempts
		seeds = append(seeds, req)
	}

	if len(seeds) == 0 {
		return nil, fmt.Errorf("no usable seeds: %w", types.ErrInvalidURL)
	}
	return seeds, nil
}
