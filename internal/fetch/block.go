package fetch

import "strings"

// blockStatuses are HTTP statuses that indicate the site refused the
// request rather than failed to serve it.
var blockStatuses = map[int]bool{
	403: true,
	429: true,
	503: true,
}

// blockMarkers are body fragments emitted by common bot-protection
// layers. Matching is case-insensitive.
var blockMarkers = []string{
	"access denied",
	"request unsuccessful. incapsula",
	"pardon our interruption",
	"verify you are a human",
	"captcha",
	"cf-chl",
	"attention required! | cloudflare",
}

// IsBlocked reports whether a response looks like a bot-protection
// refusal, from its status code or its body.
func IsBlocked(statusCode int, html string) bool {
	if blockStatuses[statusCode] {
		return true
	}
	lower := strings.ToLower(html)
	for _, marker := range blockMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
