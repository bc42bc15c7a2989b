package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	specialChars = regexp.MustCompile(`[^\w\s-]`)
	whitespace   = regexp.MustCompile(`\s+`)
	dashRuns     = regexp.MustCompile(`-+`)
	underRuns    = regexp.MustCompile(`_+`)
)

// SanitizeAddress derives a filesystem-safe name from a display address:
// word chars, dashes and underscores only, spaces become underscores, runs are
// collapsed, max 100 chars. Falls back to "listing" when nothing survives.
func SanitizeAddress(input string) string {
	s := strings.TrimSpace(input)

	s = specialChars.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "_")
	s = dashRuns.ReplaceAllString(s, "-")
	s = underRuns.ReplaceAllString(s, "_")
	s = strings.Trim(s, "-")

	if len(s) > 100 {
		s = s[:100]
	}
	if s == "" {
		return "listing"
	}
	return s
}

// Pad3 renders n as a zero-padded three digit string, used for export filenames.
func Pad3(n int) string {
	return fmt.Sprintf("%03d", n)
}
