package types

import (
	"net/url"
	"sort"
	"strings"
)

// DedupKey normalizes a product URL for deduplication: lowercase scheme
// and host (www-insensitive), path with the trailing slash stripped,
// query and fragment dropped. Two product URLs that differ only in
// those parts identify the same product.
func DedupKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return canonicalBase(u)
}

// RequestKey normalizes a URL for frontier claims. Unlike DedupKey it
// keeps the query, sorted, because search results and their pagination
// live entirely in query parameters.
func RequestKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	key := canonicalBase(u)
	if u.RawQuery != "" {
		key += "?" + sortedQuery(u.Query())
	}
	return key
}

func canonicalBase(u *url.URL) string {
	scheme := strings.ToLower(u.Scheme)
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	path := u.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return scheme + "://" + host + path
}

func sortedQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		vals := params[k]
		sort.Strings(vals)
		for _, v := range vals {
			parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}
	return strings.Join(parts, "&")
}
