package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrInvalidURL      = errors.New("invalid URL")
	ErrContentMissing  = errors.New("expected content not found")
	ErrOffHost         = errors.New("URL is outside the target host")
	ErrDuplicate       = errors.New("duplicate product URL")
	ErrBlockedPage     = errors.New("bot protection blocked the page")
	ErrBudgetExhausted = errors.New("max items budget exhausted")
	ErrCrawlStopped    = errors.New("crawl has been stopped")
)

// FailureClass categorizes a page-level failure for retry and proxy-tier
// escalation decisions. Field-level parse failures never reach this
// level; they degrade the affected field instead.
type FailureClass int

const (
	FailureNone FailureClass = iota
	FailurePageLoadTimeout
	FailureContentNotFound
	FailureBlockDetected
)

func (c FailureClass) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailurePageLoadTimeout:
		return "page_load_timeout"
	case FailureContentNotFound:
		return "content_not_found"
	case FailureBlockDetected:
		return "block_detected"
	default:
		return "unknown"
	}
}

// PageError is a page-level failure that surfaces to the router's retry
// handling. All page errors are retryable; the router stops retrying
// when the request's attempt budget runs out.
type PageError struct {
	URL        string
	Class      FailureClass
	StatusCode int
	Err        error
}

func (e *PageError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("page error for %s (%s, status %d): %v", e.URL, e.Class, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("page error for %s (%s): %v", e.URL, e.Class, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

// ClassifyFailure maps an error to its failure class. Unrecognized
// errors are treated as load failures so they stay retryable.
func ClassifyFailure(err error) FailureClass {
	if err == nil {
		return FailureNone
	}
	var pe *PageError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return FailurePageLoadTimeout
}

// ParseError wraps a field-level extraction failure. It is absorbed by
// the extractor: the record is still emitted with the field defaulted.
type ParseError struct {
	URL      string
	Field    string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (field=%s selector=%q): %v", e.URL, e.Field, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SinkError wraps failures in the output layer.
type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error (%s): %v", e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }
