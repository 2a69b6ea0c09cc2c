// Package normalize turns raw source dumps into the cleaned artifacts the
// matcher and loader consume. Every cleaner is a pure function of its inputs.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var titleSuffixes = []string{"theseries", "themovie"}

// TitleKey derives the join key used to match titles across sources: the title
// decomposed and reduced to ASCII, lower-cased, stripped of every non-word rune,
// and with "theseries"/"themovie" removed. The mapping is lossy and many-to-one.
func TitleKey(title string) string {
	decomposed := norm.NFD.String(strings.TrimSpace(title))

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r > unicode.MaxASCII {
			continue
		}
		r = unicode.ToLower(r)
		if isWordRune(r) {
			b.WriteRune(r)
		}
	}

	key := b.String()
	for _, s := range titleSuffixes {
		key = strings.ReplaceAll(key, s, "")
	}
	return key
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
}
