// Package classify maps URLs to page labels for the crawl router.
// Classification is pure: it reads only the URL and the site facts in
// the configuration, never the network.
package classify

import (
	"net/url"
	"strings"

	"github.com/stackhound/stackhound/internal/config"
	"github.com/stackhound/stackhound/internal/types"
)

// Classifier labels URLs against one target site.
type Classifier struct {
	site       *config.SiteConfig
	topLevel   map[string]struct{}
	skip       map[string]struct{}
	markers    []string
	searchKeys []string
}

// New builds a Classifier from site configuration.
func New(site *config.SiteConfig) *Classifier {
	c := &Classifier{
		site:       site,
		topLevel:   make(map[string]struct{}, len(site.TopLevelCategories)),
		skip:       make(map[string]struct{}, len(site.SkipPathSegments)),
		markers:    site.SubcategoryMarkers,
		searchKeys: site.SearchQueryKeys,
	}
	for _, s := range site.TopLevelCategories {
		c.topLevel[strings.ToLower(s)] = struct{}{}
	}
	for _, s := range site.SkipPathSegments {
		c.skip[strings.ToLower(s)] = struct{}{}
	}
	return c
}

// Classify maps a URL to a page label.
//
// Invalid covers off-host and non-catalog URLs; Search and Category are
// matched from configured templates and slug sets; everything else on
// the target host defaults to Product, since over-attempting extraction
// is safer than silently dropping a real product.
//
// A trailing slash never discriminates: classification works on trimmed
// path segments only.
func (c *Classifier) Classify(rawURL string) types.PageLabel {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.LabelInvalid
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return types.LabelInvalid
	}
	if !c.onHost(u) {
		return types.LabelInvalid
	}

	if c.isSearch(u) {
		return types.LabelSearch
	}

	segments := pathSegments(u)

	for _, seg := range segments {
		if c.isSkipSegment(seg) {
			return types.LabelInvalid
		}
	}

	// A dotted final segment is a file (image, feed), not a product page.
	if len(segments) > 0 && strings.Contains(segments[len(segments)-1], ".") {
		return types.LabelInvalid
	}

	if c.isCategory(u, segments) {
		return types.LabelCategory
	}

	return types.LabelProduct
}

// OnHost reports whether the URL belongs to the target site. The check
// is scheme-insensitive and tolerates a www prefix.
func (c *Classifier) OnHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return c.onHost(u)
}

func (c *Classifier) onHost(u *url.URL) bool {
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	return host == strings.ToLower(c.site.Host)
}

// isSkipSegment matches informational sections both exactly ("blog")
// and as hyphenated slugs ("about-us", "shipping-policy").
func (c *Classifier) isSkipSegment(seg string) bool {
	if _, ok := c.skip[seg]; ok {
		return true
	}
	for token := range c.skip {
		if strings.HasPrefix(seg, token+"-") {
			return true
		}
	}
	return false
}

func (c *Classifier) isSearch(u *url.URL) bool {
	if c.site.SearchPathPrefix != "" &&
		strings.HasPrefix(strings.ToLower(u.Path), strings.ToLower(c.site.SearchPathPrefix)) {
		return true
	}
	query := u.Query()
	for _, key := range c.searchKeys {
		if query.Has(key) {
			return true
		}
	}
	return false
}

func (c *Classifier) isCategory(u *url.URL, segments []string) bool {
	// Homepage is the root listing.
	if len(segments) == 0 {
		return true
	}

	if strings.Contains(strings.ToLower(u.Path), "inventory") {
		return true
	}

	if _, ok := c.topLevel[segments[0]]; !ok {
		return false
	}

	switch len(segments) {
	case 1:
		// Top-level metal categories: /silver, /gold.
		return true
	case 2:
		// Subcategory listings: /silver/silver-coins, /gold/gold-bars.
		for _, marker := range c.markers {
			if strings.Contains(segments[1], marker) {
				return true
			}
		}
	}
	return false
}

// pathSegments returns the lowercased, non-empty path segments. Trimming
// both ends keeps the result stable across trailing-slash variants.
func pathSegments(u *url.URL) []string {
	path := strings.ToLower(strings.Trim(u.Path, "/"))
	if path == "" {
		return nil
	}
	parts := strings.Split(path, "/")
	segments := parts[:0]
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
