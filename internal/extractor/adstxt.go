package extractor

import (
	"bufio"
	"io"
	"strings"
)

// Line is one data record of an ads.txt / app-ads.txt file, per the IAB
// specification: advertising system domain, publisher account id,
// relationship, and an optional certification authority id.
type Line struct {
	AdSystemDomain  string
	PublisherID     string
	Relationship    string
	CertAuthorityID string
}

// ParseAdsTxt reads an ads.txt body and returns its data records. Comments
// (`#` to end of line), blank lines, and variable declarations such as
// CONTACT= or SUBDOMAIN= are skipped. Records missing a publisher id are
// dropped.
func ParseAdsTxt(r io.Reader) []Line {
	var lines []Line

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		raw := scanner.Text()
		if idx := strings.Index(raw, "#"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		// Variable records (CONTACT=..., SUBDOMAIN=...) have an '='
		// before any field separator.
		if eq := strings.Index(raw, "="); eq >= 0 {
			if comma := strings.Index(raw, ","); comma < 0 || eq < comma {
				continue
			}
		}

		fields := strings.Split(raw, ",")
		if len(fields) < 3 {
			continue
		}
		line := Line{
			AdSystemDomain: strings.TrimSpace(fields[0]),
			PublisherID:    strings.TrimSpace(fields[1]),
			Relationship:   strings.ToUpper(strings.TrimSpace(fields[2])),
		}
		if len(fields) > 3 {
			line.CertAuthorityID = strings.TrimSpace(fields[3])
		}
		if line.PublisherID == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// IDSet collects the distinct publisher ids of the given records.
func IDSet(lines []Line) map[string]struct{} {
	ids := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		ids[line.PublisherID] = struct{}{}
	}
	return ids
}
