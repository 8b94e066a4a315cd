package search

import "strings"

// stopWords are ignored when checking a chunk for a verbatim query match.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "do": true, "at": true, "this": true, "but": true, "by": true,
	"from": true, "what": true, "how": true, "does": true, "or": true,
}

// tokenize lowercases text, trims punctuation from each word and drops stop words.
func tokenize(text string) []string {
	words := strings.Fields(text)
	out := make([]string, 0, len(words))
	for _, word := range words {
		w := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if w != "" && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// containsAllQueryWords reports whether every significant query word occurs in text.
// A query made only of stop words matches nothing.
func containsAllQueryWords(text, query string) bool {
	queryWords := tokenize(query)
	if len(queryWords) == 0 {
		return false
	}

	present := make(map[string]struct{})
	for _, w := range tokenize(text) {
		present[w] = struct{}{}
	}
	for _, w := range queryWords {
		if _, ok := present[w]; !ok {
			return false
		}
	}
	return true
}
