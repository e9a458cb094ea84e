package retrieval

import (
	"context"
	"math"
	"sort"

	"quokkaq/internal/corpus"
)

const (
	// defaultK1 is the BM25 term-frequency saturation parameter.
	defaultK1 = 1.5
	// defaultB is the BM25 document-length normalization parameter.
	defaultB = 0.75
)

// LexicalRetriever scores documents with BM25 over the corpus of one course.
// The index is built once at construction; the corpus is immutable for the
// process lifetime, so no locking is needed.
type LexicalRetriever struct {
	materials []corpus.Material
	docTokens []map[string]int // term frequency per document
	docLen    []int
	avgDocLen float64
	docFreq   map[string]int // number of documents containing each term
	k1        float64
	b         float64
}

// NewLexicalRetriever builds a BM25 index over the given materials.
// Materials keep their input order, which is also the tie-break order.
func NewLexicalRetriever(materials []corpus.Material) *LexicalRetriever {
	r := &LexicalRetriever{
		materials: materials,
		docTokens: make([]map[string]int, len(materials)),
		docLen:    make([]int, len(materials)),
		docFreq:   make(map[string]int),
		k1:        defaultK1,
		b:         defaultB,
	}

	var totalLen int
	for i, m := range materials {
		tokens := corpus.Tokenize(m.Content + " " + m.Title)
		freq := make(map[string]int, len(tokens))
		for _, token := range tokens {
			freq[token]++
		}
		r.docTokens[i] = freq
		r.docLen[i] = len(tokens)
		totalLen += len(tokens)
		for term := range freq {
			r.docFreq[term]++
		}
	}
	if len(materials) > 0 {
		r.avgDocLen = float64(totalLen) / float64(len(materials))
	}
	return r
}

// Retrieve returns the top-limit materials by BM25 score, descending.
// Documents with equal score retain corpus input order (stable sort).
func (r *LexicalRetriever) Retrieve(_ context.Context, query string, limit int) ([]Result, error) {
	terms := corpus.FilterStopwords(corpus.Tokenize(query))
	if len(terms) == 0 || len(r.materials) == 0 || limit <= 0 {
		return []Result{}, nil
	}

	n := float64(len(r.materials))
	results := make([]Result, 0, len(r.materials))
	for i, m := range r.materials {
		var score float64
		for _, term := range terms {
			tf := float64(r.docTokens[i][term])
			if tf == 0 {
				continue
			}
			df := float64(r.docFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - r.b + r.b*float64(r.docLen[i])/r.avgDocLen
			score += idf * tf * (r.k1 + 1) / (tf + r.k1*norm)
		}
		if score > 0 {
			results = append(results, Result{Material: m, Score: score, Source: SourceLexical})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
