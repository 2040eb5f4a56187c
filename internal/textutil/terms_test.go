package textutil_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/inboxvault/inboxvault/internal/textutil"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "hello", "hello"},
		{"trims", "  hello  ", "hello"},
		{"collapses runs", "a   b\t\tc", "a b c"},
		{"full-width digits fold", "１２３", "123"},
		{"full-width space collapses", "a　　b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textutil.NormalizeText(tt.input); got != tt.want {
				t.Errorf("NormalizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSplitTerms(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", []string{}},
		{"spaces", "a b c", []string{"a", "b", "c"}},
		{"commas", "a,b,c", []string{"a", "b", "c"}},
		{"slashes", "a/b", []string{"a", "b"}},
		{"full-width comma", "a，b", []string{"a", "b"}},
		{"full-width slash", "a／b", []string{"a", "b"}},
		{"full-width space", "a　b", []string{"a", "b"}},
		{"mixed and collapsed", " a,, /b  c ", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := textutil.SplitTerms(tt.input)
			if got == nil {
				t.Fatal("SplitTerms must never return nil")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("SplitTerms(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestParseRecent(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
		ok    bool
	}{
		{"3d", 72 * time.Hour, true},
		{"3日", 72 * time.Hour, true},
		{"12h", 12 * time.Hour, true},
		{"12時間", 12 * time.Hour, true},
		{"30m", 30 * time.Minute, true},
		{"30分", 30 * time.Minute, true},
		{"3 d", 72 * time.Hour, true},
		{"３日", 72 * time.Hour, true}, // full-width digit folds via NFKC
		{"", 0, false},
		{"yesterday", 0, false},
		{"3w", 0, false},
		{"d3", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := textutil.ParseRecent(tt.input)
			if ok != tt.ok || got != tt.want {
				t.Errorf("ParseRecent(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{2 * 1024 * 1024 * 1024, "2.00 GB"},
	}

	for _, tt := range tests {
		if got := textutil.FormatBytes(tt.n); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestFormatTimeJP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"jst timestamp", "2026-01-15T10:30:00+09:00", "2026/01/15 10:30"},
		{"utc converts to jst", "2026-01-15T01:30:00Z", "2026/01/15 10:30"},
		{"unparseable returned verbatim", "not-a-date", "not-a-date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := textutil.FormatTimeJP(tt.input); got != tt.want {
				t.Errorf("FormatTimeJP(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
