package detection

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// foldText lowercases a string and strips diacritical marks so accented
// text still hits plain-ASCII signal phrases.
func foldText(s string) string {
	// NFD breaks "é" into "e" + combining acute
	t := norm.NFD.String(s)

	t = strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
			return -1
		}
		return r
	}, t)

	return strings.ToLower(norm.NFC.String(t))
}

// matchSignals returns the distinct phrases found in the already folded
// body, preserving the catalog spelling for display.
func matchSignals(foldedBody string, phrases []string) []string {
	var matched []string
	seen := make(map[string]bool)

	for _, phrase := range phrases {
		folded := foldText(phrase)
		if folded == "" || seen[folded] {
			continue
		}
		if strings.Contains(foldedBody, folded) {
			seen[folded] = true
			matched = append(matched, phrase)
		}
	}

	return matched
}
