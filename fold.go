package vergilevhasi

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold upper-cases s with Turkish casing rules and strips diacritics so that
// OCR output compares equal regardless of which Turkish letters survived
// recognition ("TİCARET ÜNVANI", "Ticaret Unvani" and "TICARET UNVANI" all
// fold to "TICARET UNVANI"). Runs of whitespace collapse to a single space.
func Fold(s string) string {
	// Casers keep state between calls, so each call gets its own.
	upper := cases.Upper(language.Turkish).String(s)
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, upper)
	if err != nil {
		stripped = upper
	}
	// dotless ı has no decomposition; upper-casing already mapped it to I
	return strings.Join(strings.Fields(stripped), " ")
}

// foldToken folds a single token and trims the punctuation OCR tends to
// attach to labels ("DAİRESİ:", "NO.").
func foldToken(tok string) string {
	return strings.Trim(Fold(tok), ":;.,-_|/\\'\"()[]")
}

func foldTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = foldToken(tok)
	}
	return out
}

// containsFolded reports whether the folded form of line contains the folded
// form of any phrase.
func containsFolded(line string, phrases ...string) bool {
	folded := Fold(line)
	for _, p := range phrases {
		if strings.Contains(folded, Fold(p)) {
			return true
		}
	}
	return false
}
