package retrieval

import (
	"strings"

	"quokkaq/internal/corpus"
)

// DefaultExpansionTerms is how many feedback terms query expansion appends.
const DefaultExpansionTerms = 4

// ExpandQuery performs pseudo-relevance feedback: it assumes the top initial
// results are relevant and appends their most common keywords to the query.
// Terms already present in the query are skipped.
func ExpandQuery(query string, top []RankedMaterial, maxTerms int) string {
	if maxTerms <= 0 || len(top) == 0 {
		return query
	}

	present := make(map[string]struct{})
	for _, token := range corpus.Tokenize(query) {
		present[token] = struct{}{}
	}

	counts := make(map[string]int)
	order := make(map[string]int)
	next := 0
	for _, rm := range top {
		for _, kw := range rm.Material.Keywords {
			kw = strings.ToLower(kw)
			if _, ok := present[kw]; ok {
				continue
			}
			if _, ok := order[kw]; !ok {
				order[kw] = next
				next++
			}
			counts[kw]++
		}
	}
	if len(counts) == 0 {
		return query
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	// Most frequent across top results first; first-seen order breaks ties.
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			a, b := terms[i], terms[j]
			if counts[b] > counts[a] || (counts[b] == counts[a] && order[b] < order[a]) {
				terms[i], terms[j] = terms[j], terms[i]
			}
		}
	}
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return query + " " + strings.Join(terms, " ")
}
