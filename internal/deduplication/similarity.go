package deduplication

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the Ratcliff/Obershelp ratio of a and b, ignoring case.
// The ratio is 2*M/T where M is the number of characters in matching blocks
// and T the combined length. Two empty strings score 1.0; an empty string
// against a non-empty one scores 0.0.
//
// Case folding uses the full lowercase mapping for U+0130 (İ becomes "i"
// followed by U+0307), so "İstanbul" and "i̇stanbul" compare equal. Capital
// sigma always lowers to σ, never the word-final ς.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(splitChars(foldCase(a)), splitChars(foldCase(b)))
	return m.Ratio()
}

var dottedCapitalI = strings.NewReplacer("\u0130", "i\u0307")

func foldCase(s string) string {
	return strings.ToLower(dottedCapitalI.Replace(s))
}

// splitChars turns s into a sequence of single-rune elements for the matcher
func splitChars(s string) []string {
	chars := make([]string, 0, len(s))
	for _, r := range s {
		chars = append(chars, string(r))
	}
	return chars
}
