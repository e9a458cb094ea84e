package retrieval

import (
	"context"

	"quokkaq/internal/corpus"
)

// Source identifies which retriever produced a result.
type Source string

const (
	SourceLexical  Source = "lexical"
	SourceSemantic Source = "semantic"
)

// Result is a transient value produced by a single retriever.
// Scores are only comparable within one retriever's output; fusion must not
// average raw scores across retrievers without normalization, which is why
// the hybrid engine defaults to rank-based fusion.
type Result struct {
	Material corpus.Material
	Score    float64
	Source   Source
}

// Retriever is the common contract of the lexical and semantic retrievers.
// An empty query or empty corpus yields an empty list, not an error.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int) ([]Result, error)
}

// RankedMaterial is the final output of the retrieval stage: a material
// annotated with a normalized relevance score and provenance.
type RankedMaterial struct {
	Material corpus.Material
	// RelevanceScore is normalized to 0-100 across the fused result set.
	RelevanceScore float64
	// MatchedKeywords are the query terms found in the material.
	MatchedKeywords []string
	// Sources lists the retrievers that surfaced the material.
	Sources []Source
	// FusedScore is the raw fusion score, kept for diagnostics.
	FusedScore float64
}

// MatchedKeywords intersects query tokens with a material's keywords and
// content vocabulary.
func MatchedKeywords(query string, m corpus.Material) []string {
	queryTokens := corpus.FilterStopwords(corpus.Tokenize(query))
	if len(queryTokens) == 0 {
		return nil
	}

	vocab := make(map[string]struct{})
	for _, kw := range m.Keywords {
		vocab[kw] = struct{}{}
	}
	for _, token := range corpus.Tokenize(m.Content) {
		vocab[token] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTokens))
	var matched []string
	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if _, ok := vocab[token]; ok {
			matched = append(matched, token)
		}
	}
	return matched
}
