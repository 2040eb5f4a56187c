// Package fileutil provides filesystem helpers shared by the ingest,
// send and export paths: filename sanitization and tree sizing.
package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLen caps sanitized filenames. The stored name also carries
// a 36-char UUID prefix, so the cap keeps full paths well under common
// filesystem limits.
const maxFilenameLen = 120

var illegalChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}

// SafeFilename replaces characters that are illegal or risky in
// filenames with underscores and caps the length, preserving the
// extension where possible.
func SafeFilename(name string) string {
	out := name
	for _, ch := range illegalChars {
		out = strings.ReplaceAll(out, ch, "_")
	}
	out = strings.TrimSpace(out)

	if len(out) > maxFilenameLen {
		ext := filepath.Ext(out)
		stem := strings.TrimSuffix(out, ext)
		keep := maxFilenameLen - len(ext)
		if keep < 1 {
			// Extension alone exceeds the cap; just hard-truncate.
			return truncateRunes(out, maxFilenameLen)
		}
		stem = truncateRunes(stem, keep)
		out = stem + ext
	}
	return out
}

// truncateRunes cuts s to at most max bytes without splitting a
// multi-byte character.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// TreeSize returns the total size in bytes of all regular files under
// root. A missing root counts as zero, and files that vanish during the
// walk are skipped rather than failing the sum.
func TreeSize(root string) int64 {
	var total int64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return nil
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
