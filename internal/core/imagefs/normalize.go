package imagefs

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName folds a card or file name into a lookup key: accents are
// stripped, case is folded and everything but letters and digits is dropped.
//
//	"Blue-Eyes White Dragon" -> "blueeyeswhitedragon"
//	"Lévia-Dragon - Daedalus" -> "leviadragondaedalus"
func NormalizeName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}

	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, value)
	if err != nil {
		stripped = value
	}
	folded := cases.Fold().String(stripped)

	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
