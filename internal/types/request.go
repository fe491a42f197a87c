package types

import (
	"fmt"
	"net/url"
	"time"
)

// Priority levels for request scheduling.
const (
	PriorityHighest = 0
	PriorityHigh    = 1
	PriorityNormal  = 2
	PriorityLow     = 3
	PriorityLowest  = 4
)

// PageLabel identifies what kind of page a request is expected to hit.
type PageLabel int

const (
	LabelUnclassified PageLabel = iota
	LabelSearch
	LabelCategory
	LabelProduct
	LabelInvalid
)

func (l PageLabel) String() string {
	switch l {
	case LabelUnclassified:
		return "unclassified"
	case LabelSearch:
		return "search"
	case LabelCategory:
		return "category"
	case LabelProduct:
		return "product"
	case LabelInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// IsListing reports whether the label denotes a page carrying multiple product links.
func (l PageLabel) IsListing() bool {
	return l == LabelSearch || l == LabelCategory
}

// CrawlRequest is a single unit of crawl work: one URL plus the routing
// state the engine needs to process and, on failure, retry it.
type CrawlRequest struct {
	// URL is the target page.
	URL *url.URL

	// Label classifies the page. Seeds may start Unclassified; the router
	// assigns a label on first dequeue.
	Label PageLabel

	// Attempt counts processing attempts, starting at 0.
	Attempt int

	// MaxAttempts bounds attempts for this request.
	MaxAttempts int

	// Priority controls scheduling order (lower = sooner).
	Priority int

	// SearchTerm records the query that led to this request, if any.
	SearchTerm string

	// LastFailure is the failure class of the most recent attempt,
	// consumed by the proxy tier policy on retry.
	LastFailure FailureClass

	// ParentURL is the page this request was discovered on.
	ParentURL string

	// EnqueuedAt is when the request first entered the frontier.
	EnqueuedAt time.Time
}

// NewCrawlRequest creates a request with default routing state.
func NewCrawlRequest(rawURL string) (*CrawlRequest, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	return &CrawlRequest{
		URL:         u,
		Label:       LabelUnclassified,
		MaxAttempts: 3,
		Priority:    PriorityNormal,
		EnqueuedAt:  time.Now(),
	}, nil
}

// URLString returns the string form of the request URL.
func (r *CrawlRequest) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Exhausted reports whether the request has used up all attempts.
func (r *CrawlRequest) Exhausted() bool {
	return r.Attempt >= r.MaxAttempts
}
