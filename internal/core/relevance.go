// ABOUTME: Keyword-overlap relevance between a query and remembered text
// ABOUTME: Ratio of distinct query keywords that appear in the candidate text
package core

import (
	"strings"
	"unicode"
)

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true, "not": true,
	"you": true, "all": true, "any": true, "can": true, "has": true, "have": true,
	"was": true, "were": true, "with": true, "this": true, "that": true, "from": true,
	"what": true, "which": true, "when": true, "where": true, "who": true, "how": true,
	"into": true, "there": true, "their": true, "will": true, "would": true, "should": true,
	"could": true, "does": true, "about": true, "them": true, "then": true, "than": true,
	"its": true, "our": true, "your": true, "these": true, "those": true, "risk": true,
	"risks": true, "security": true,
}

// keywords returns the distinct lowercased words of text worth matching on
func keywords(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]bool, len(words))
	var out []string
	for _, w := range words {
		if len(w) < 3 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Relevance is the fraction of the query's keywords present in text. A query
// with no keywords is equally relevant to everything.
func Relevance(query, text string) float64 {
	qk := keywords(query)
	if len(qk) == 0 {
		return 1
	}
	have := make(map[string]bool)
	for _, w := range keywords(text) {
		have[w] = true
	}
	matched := 0
	for _, w := range qk {
		if have[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(qk))
}
