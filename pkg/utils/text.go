package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldDiacritics removes combining marks ("Café Olé" becomes "Cafe Ole") and
// collapses runs of whitespace. Case is preserved.
func FoldDiacritics(s string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		s,
	)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(folded), " ")
}

// CacheKeyPart lowercases and folds s for use inside cache keys.
func CacheKeyPart(s string) string {
	return strings.ToLower(FoldDiacritics(s))
}
