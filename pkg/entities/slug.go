package entities

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Slugify derives a URL-safe slug from a display name: Unicode decomposed
// so accented letters fold to their base form, lowercased, and every run
// of non-alphanumeric characters collapsed to a single hyphen. Leading and
// trailing hyphens are trimmed.
func Slugify(name string) string {
	decomposed := norm.NFD.String(name)

	var b strings.Builder
	pendingHyphen := false
	for _, r := range decomposed {
		// drop combining marks left over from decomposition
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		r = unicode.ToLower(r)
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}
	return b.String()
}
