// Package matcher computes how many seller identifiers declared by a page
// also appear in the cached seller registry.
package matcher

import (
	"strings"
	"unicode"

	"github.com/FCTostin/ads.txt-app-ads.txt-Checker/internal/registry"
)

// Normalize canonicalizes a seller identifier for exact comparison: trims
// surrounding space and lowercases. Identifiers consisting only of digits and
// separators are reduced to their digits, so "pub 1234-5678" and "pub-12345678"
// never collide but "1234-5678" and "12345678" do.
func Normalize(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return ""
	}

	digitsOnly := true
	var digits strings.Builder
	for _, r := range id {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case r == '-' || r == ' ':
			// Separators are allowed in a numeric id.
		default:
			digitsOnly = false
		}
	}
	if digitsOnly && digits.Len() > 0 {
		return digits.String()
	}
	return id
}

// Match counts page-declared identifiers present in the registry. The
// registry's id set is built once; comparison is exact after normalization.
// Pure and deterministic for any (pageIDs, sellers) pair.
func Match(pageIDs map[string]struct{}, sellers []registry.SellerRecord) int {
	if len(pageIDs) == 0 || len(sellers) == 0 {
		return 0
	}

	known := make(map[string]struct{}, len(sellers))
	for _, s := range sellers {
		if id := Normalize(s.SellerID); id != "" {
			known[id] = struct{}{}
		}
	}

	count := 0
	for id := range pageIDs {
		if _, ok := known[Normalize(id)]; ok {
			count++
		}
	}
	return count
}
