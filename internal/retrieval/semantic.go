package retrieval

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"sort"

	"quokkaq/internal/corpus"
)

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SemanticRetriever ranks documents by cosine similarity between the query
// embedding and precomputed document embeddings. Embeddings are computed once
// at corpus-seed time and are stable for the corpus lifetime.
type SemanticRetriever struct {
	materials  []corpus.Material
	embedder   Embedder
	embeddings map[string][]float32 // material ID -> vector
}

// NewSemanticRetriever creates a semantic retriever over precomputed embeddings.
// Materials without an embedding are excluded from results rather than erroring.
func NewSemanticRetriever(materials []corpus.Material, embedder Embedder, embeddings map[string][]float32) *SemanticRetriever {
	return &SemanticRetriever{
		materials:  materials,
		embedder:   embedder,
		embeddings: embeddings,
	}
}

// PrecomputeEmbeddings embeds every material's content once.
func PrecomputeEmbeddings(ctx context.Context, embedder Embedder, materials []corpus.Material) (map[string][]float32, error) {
	embeddings := make(map[string][]float32, len(materials))
	for _, m := range materials {
		vec, err := embedder.Embed(ctx, m.Title+" "+m.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to embed material %s: %w", m.ID, err)
		}
		embeddings[m.ID] = vec
	}
	return embeddings, nil
}

// Retrieve returns the top-limit materials by cosine similarity, descending.
func (r *SemanticRetriever) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	if query == "" || len(r.materials) == 0 || limit <= 0 || len(r.embeddings) == 0 {
		return []Result{}, nil
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results := make([]Result, 0, len(r.materials))
	for _, m := range r.materials {
		docVec, ok := r.embeddings[m.ID]
		if !ok {
			continue // No embedding: excluded, not an error.
		}
		sim := cosineSimilarity(queryVec, docVec)
		if sim > 0 {
			results = append(results, Result{Material: m, Score: sim, Source: SourceSemantic})
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

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TokenHashEmbedder is a deterministic bag-of-words embedder: each token is
// hashed into a bucket and the vector is L2-normalized. It stands in for a
// real embedding service in tests and offline mode, and keeps the semantic
// retriever exercised without network access.
type TokenHashEmbedder struct {
	Dim int
}

// Embed hashes tokens into a fixed-dimension normalized vector.
func (e TokenHashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	dim := e.Dim
	if dim <= 0 {
		dim = 256
	}
	vec := make([]float32, dim)
	tokens := corpus.FilterStopwords(corpus.Tokenize(text))
	if len(tokens) == 0 {
		return vec, nil
	}
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%uint32(dim)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}
