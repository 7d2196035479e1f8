// Package textnorm normalizes place text for indexing, querying and name
// comparison. Indexing and querying must go through the same functions so
// that "Café Zürich" and "cafe zurich" produce identical terms.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTokenLength caps indexed term length in bytes.
const MaxTokenLength = 64

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Tokens splits s into folded terms on anything that is not a letter or digit.
func Tokens(s string) []string {
	fields := strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len(f) > MaxTokenLength {
			cut := MaxTokenLength
			for cut > 0 && !utf8.RuneStart(f[cut]) {
				cut--
			}
			f = f[:cut]
		}
		out = append(out, f)
	}
	return out
}

// QueryTerms returns the distinct terms of a user query in input order.
// Query syntax characters (quotes, '*', parentheses, '-', ':') are treated as
// separators, so user input can never change query semantics.
func QueryTerms(query string) []string {
	tokens := Tokens(query)
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// NormalizeName returns the comparison form of a name: folded terms joined
// by single spaces.
func NormalizeName(name string) string {
	return strings.Join(Tokens(name), " ")
}
