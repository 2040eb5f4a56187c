// Package textutil provides search-term normalization and display
// formatting helpers shared by the query layer and the CLI.
package textutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var spaceRunRe = regexp.MustCompile(`[ \t\x{3000}]+`)

// NormalizeText applies NFKC normalization (folding full-width digits,
// letters and punctuation to their ASCII forms), trims the result and
// collapses runs of spaces/tabs to a single space.
func NormalizeText(s string) string {
	s = norm.NFKC.String(s)
	s = strings.TrimSpace(s)
	return spaceRunRe.ReplaceAllString(s, " ")
}

// isTermDelimiter reports whether r separates search terms. Whitespace,
// commas and forward slashes all count, including their full-width
// variants.
func isTermDelimiter(r rune) bool {
	if unicode.IsSpace(r) {
		return true
	}
	switch r {
	case ',', '，', '/', '／':
		return true
	}
	return false
}

// SplitTerms splits a free-text search box value into AND terms.
// Consecutive delimiters collapse and empty tokens are dropped, so ""
// yields an empty (non-nil) slice. This is the single splitting rule
// used for both the tag and the filename search boxes.
func SplitTerms(s string) []string {
	terms := strings.FieldsFunc(strings.TrimSpace(s), isTermDelimiter)
	if terms == nil {
		return []string{}
	}
	return terms
}

var recentRe = regexp.MustCompile(`^(\d+)\s*(日|d|時間|h|分|m)$`)

// ParseRecent parses a relative-time string like "3d", "12h", "30m"
// (or the Japanese 3日 / 12時間 / 30分 forms) into a duration. The
// second return is false when the string does not parse; callers treat
// that as "do not narrow" rather than an error.
func ParseRecent(s string) (time.Duration, bool) {
	s = strings.ToLower(NormalizeText(s))
	if s == "" {
		return 0, false
	}
	m := recentRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "日", "d":
		return time.Duration(n) * 24 * time.Hour, true
	case "時間", "h":
		return time.Duration(n) * time.Hour, true
	case "分", "m":
		return time.Duration(n) * time.Minute, true
	}
	return 0, false
}

// FormatBytes renders a byte count for display: "512 B", "3.4 KB",
// "1.2 MB", "2.00 GB".
func FormatBytes(n int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case n < kb:
		return fmt.Sprintf("%d B", n)
	case n < mb:
		return fmt.Sprintf("%.1f KB", float64(n)/float64(kb))
	case n < gb:
		return fmt.Sprintf("%.1f MB", float64(n)/float64(mb))
	default:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	}
}

// JST is the display timezone for timestamps.
var JST = time.FixedZone("JST", 9*60*60)

// FormatTimeJP renders an ISO timestamp as "YYYY/MM/DD HH:MM" in JST.
// Empty input renders as ""; unparseable input is returned verbatim so
// stale data still displays something.
func FormatTimeJP(iso string) string {
	if strings.TrimSpace(iso) == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return iso
	}
	return t.In(JST).Format("2006/01/02 15:04")
}
