package index

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it on every rune that is not a letter or digit.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TermFrequencies counts occurrences of each token in text.
func TermFrequencies(text string) map[string]int {
	tf := make(map[string]int)
	for _, tok := range Tokenize(text) {
		tf[tok]++
	}
	return tf
}

// QueryTerms returns the distinct tokens of query in first-seen order.
func QueryTerms(query string) []string {
	seen := make(map[string]bool)
	var terms []string
	for _, tok := range Tokenize(query) {
		if seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, tok)
	}
	return terms
}
