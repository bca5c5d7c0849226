// Package util holds small string helpers shared across packages.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonWordRuns = regexp.MustCompile(`[^\p{L}\p{N}\p{Mc}]+`)
	edgeHyphens = regexp.MustCompile(`^-+|-+$`)
)

// Slugify derives the URL-safe form of a display name.
//
//	"Summer Trip 2024" -> "summer-trip-2024"
//	"Café Photos"      -> "cafe-photos"
//	"  R&D / Notes "   -> "r-d-notes"
//	"Ελλάδα 2024"      -> "ελλαδα-2024"
//
// Letters and digits of every script are kept; accents are stripped.
// The result is deterministic and Slugify(Slugify(s)) == Slugify(s).
// Names made only of symbols produce an empty slug.
func Slugify(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)

	s = nonWordRuns.ReplaceAllString(s, "-")
	return edgeHyphens.ReplaceAllString(s, "")
}
