package rss

import "fmt"

// HTTPError reports a non-2xx response from a feed URL.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// TimeoutError reports a fetch that exceeded its deadline. It is distinct
// from ParseError so callers can report network trouble separately from
// malformed documents.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fetch timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ParseError reports a document that is not valid RSS/Atom.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RefreshError wraps a per-feed failure with the feed's display title so
// the UI can name the feed that failed.
type RefreshError struct {
	FeedTitle string
	Err       error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("%s: %v", e.FeedTitle, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }
