// Package extractor obtains the set of advertising-seller identifiers a page
// declares through its ads.txt / app-ads.txt transparency files.
package extractor

import (
	"context"
	"errors"
)

// ErrExtraction indicates the page's declarations could not be obtained at
// all. Callers degrade to "no match data" rather than failing.
var ErrExtraction = errors.New("page extraction failed")

// Result is one extraction outcome, produced fresh per scan.
type Result struct {
	OK  bool
	IDs map[string]struct{}
}

// PageExtractor is the capability interface the scan pipeline depends on.
// How extraction executes (HTTP fetch, injected page script, ...) is up to
// the implementation.
type PageExtractor interface {
	Extract(ctx context.Context, sessionID, pageURL string) (Result, error)
}
