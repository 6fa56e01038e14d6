package retrieval

import "strings"

// stopWords are common English words excluded from keyword matching.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "but": {}, "by": {}, "for": {}, "from": {}, "has": {},
	"have": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "or": {}, "that": {}, "the": {}, "to": {},
	"was": {}, "were": {}, "will": {}, "with": {}, "what": {},
	"when": {}, "where": {}, "who": {}, "why": {}, "how": {},
	"do": {}, "does": {}, "did": {}, "can": {}, "could": {},
	"should": {}, "would": {}, "i": {}, "you": {}, "me": {},
	"my": {}, "this": {}, "these": {}, "those": {}, "about": {},
}

// tokenize splits text into lowercase terms with surrounding
// punctuation trimmed. Duplicates are preserved.
func tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:!?\"'()[]{}")
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// tokenizeAndFilter tokenizes text and removes stop words. The result
// may be empty when every term is a stop word.
func tokenizeAndFilter(text string) []string {
	terms := tokenize(text)
	filtered := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := stopWords[t]; !ok {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// distinctTerms returns the distinct content-bearing terms of a query,
// in first-seen order. When stop-word filtering would remove every
// term, the unfiltered terms are used so that a query of only common
// words still matches something.
func distinctTerms(query string) []string {
	terms := tokenizeAndFilter(query)
	if len(terms) == 0 {
		terms = tokenize(query)
	}
	seen := make(map[string]struct{}, len(terms))
	distinct := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		distinct = append(distinct, t)
	}
	return distinct
}
