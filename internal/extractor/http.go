package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/config"
)

// wellKnownPaths are tried in order against the page's origin.
var wellKnownPaths = []string{"/ads.txt", "/app-ads.txt"}

// Fetcher abstracts the retrying HTTP client.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPExtractor implements PageExtractor by fetching the transparency files
// from the page's origin. In content scan mode the page markup is inspected
// first so pages served from a CDN or mirror host still resolve to their
// publisher domain.
type HTTPExtractor struct {
	fetcher  Fetcher
	settings *config.Store
}

// NewHTTPExtractor creates an HTTPExtractor.
func NewHTTPExtractor(fetcher Fetcher, settings *config.Store) *HTTPExtractor {
	return &HTTPExtractor{fetcher: fetcher, settings: settings}
}

// Extract implements PageExtractor.
func (e *HTTPExtractor) Extract(ctx context.Context, sessionID, pageURL string) (Result, error) {
	origin, err := originOf(pageURL)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	if e.settings.Snapshot().ScanMode == config.ScanModeContent {
		if canonical := e.canonicalOrigin(ctx, pageURL); canonical != "" {
			origin = canonical
		}
	}

	var lastErr error
	reachable := false
	for _, path := range wellKnownPaths {
		body, err := e.fetcher.Fetch(ctx, origin+path)
		if err != nil {
			lastErr = err
			continue
		}
		reachable = true
		lines := ParseAdsTxt(bytes.NewReader(body))
		if len(lines) == 0 {
			continue
		}
		log.Debug().Str("session", sessionID).Str("path", path).Int("ids", len(lines)).Msg("Extracted seller declarations")
		return Result{OK: true, IDs: IDSet(lines)}, nil
	}

	if !reachable {
		return Result{}, fmt.Errorf("%w: %v", ErrExtraction, lastErr)
	}
	// At least one file was reachable but declared nothing.
	return Result{OK: true, IDs: map[string]struct{}{}}, nil
}

// canonicalOrigin fetches the page and looks for a canonical link or og:url
// meta tag. Any failure falls back to the page's own origin.
func (e *HTTPExtractor) canonicalOrigin(ctx context.Context, pageURL string) string {
	body, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	candidate, _ := doc.Find(`link[rel="canonical"]`).Attr("href")
	if candidate == "" {
		candidate, _ = doc.Find(`meta[property="og:url"]`).Attr("content")
	}
	if candidate == "" {
		return ""
	}
	origin, err := originOf(candidate)
	if err != nil {
		return ""
	}
	return origin
}

// originOf reduces a URL to scheme://host, stripping a leading www label so
// the well-known files are fetched from the registrable domain.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	host := u.Host
	if strings.HasPrefix(host, "www.") && strings.Count(host, ".") > 1 {
		host = strings.TrimPrefix(host, "www.")
	}
	return u.Scheme + "://" + host, nil
}
