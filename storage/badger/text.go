package badger

import "strings"

// Stop words excluded from lexical term matching
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// lexicalTerms splits a query into distinct lowercase terms, trims punctuation,
// and removes stop words. When stop-word filtering would leave nothing, the
// unfiltered terms are returned so queries made of common words stay searchable.
func lexicalTerms(query string) []string {
	words := strings.Fields(query)

	seen := make(map[string]bool, len(words))
	all := make([]string, 0, len(words))
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		all = append(all, cleaned)
		if !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	if len(filtered) == 0 {
		return all
	}
	return filtered
}

// lexicalScore returns the fraction of query terms present as substrings of
// the chunk text, in [0,1]. Zero means no term matched.
func lexicalScore(text string, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	lowered := strings.ToLower(text)
	matched := 0
	for _, term := range terms {
		if strings.Contains(lowered, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}
