package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"quokkaq/internal/contextutil"
	"quokkaq/internal/corpus"
)

// FusionConfig tunes the hybrid fusion engine.
type FusionConfig struct {
	// RRFK is the k constant in the reciprocal rank formula 1/(k + rank + 1).
	RRFK int
	// LexicalWeight and SemanticWeight weight each retriever's contribution.
	LexicalWeight  float64
	SemanticWeight float64
	// UseRRF selects rank fusion (default). When false, raw scores are
	// min-max normalized per retriever and combined with the same weights;
	// this mode is sensitive to scale differences and exists for comparison.
	UseRRF bool
	// EnableMMR applies maximal-marginal-relevance diversification to the
	// fused top candidates.
	EnableMMR bool
	// MMRLambda balances relevance against diversity; 1.0 is pure relevance.
	MMRLambda float64
	// CandidateMultiplier oversizes the per-retriever candidate pool so
	// fusion has enough material. Default 2.
	CandidateMultiplier int
}

// DefaultFusionConfig returns the standard hybrid fusion settings.
func DefaultFusionConfig() FusionConfig {
	return FusionConfig{
		RRFK:                60,
		LexicalWeight:       0.5,
		SemanticWeight:      0.5,
		UseRRF:              true,
		EnableMMR:           true,
		MMRLambda:           0.7,
		CandidateMultiplier: 2,
	}
}

// HybridEngine merges lexical and semantic retrieval via rank fusion.
type HybridEngine struct {
	lexical  Retriever
	semantic Retriever
	order    map[string]int // material ID -> corpus position, the final tie-break
	cfg      FusionConfig
	logger   *slog.Logger
}

// NewHybridEngine creates a fusion engine over the two retrievers.
// The materials slice supplies the corpus order used as the ultimate tie-break.
func NewHybridEngine(materials []corpus.Material, lexical, semantic Retriever, cfg FusionConfig) *HybridEngine {
	if cfg.CandidateMultiplier <= 0 {
		cfg.CandidateMultiplier = 2
	}
	order := make(map[string]int, len(materials))
	for i, m := range materials {
		order[m.ID] = i
	}
	return &HybridEngine{
		lexical:  lexical,
		semantic: semantic,
		order:    order,
		cfg:      cfg,
		logger:   slog.Default(),
	}
}

// candidate accumulates fusion state for one material.
type candidate struct {
	material corpus.Material
	fused    float64
	bestRank int // lowest rank across sources, for tie-breaking
	sources  []Source
}

// Retrieve runs both retrievers concurrently with an oversized candidate
// pool, fuses the ranked lists, and returns the top-limit fused results.
// If one retriever fails the surviving retriever's results are still used.
func (e *HybridEngine) Retrieve(ctx context.Context, query string, limit int) ([]Result, error) {
	candidates, err := e.fuse(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, Result{Material: c.material, Score: c.fused})
	}
	return results, nil
}

// RetrieveRanked fuses, optionally diversifies, and normalizes scores to the
// 0-100 relevance scale consumed by excerpting and prompt building.
func (e *HybridEngine) RetrieveRanked(ctx context.Context, query string, limit int) ([]RankedMaterial, error) {
	candidates, err := e.fuse(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if e.cfg.EnableMMR && len(candidates) > limit {
		candidates = diversify(candidates, limit, e.cfg.MMRLambda)
	} else if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if len(candidates) == 0 {
		return []RankedMaterial{}, nil
	}

	maxFused := candidates[0].fused
	for _, c := range candidates {
		if c.fused > maxFused {
			maxFused = c.fused
		}
	}

	ranked := make([]RankedMaterial, 0, len(candidates))
	for _, c := range candidates {
		score := 0.0
		if maxFused > 0 {
			score = c.fused / maxFused * 100
		}
		ranked = append(ranked, RankedMaterial{
			Material:        c.material,
			RelevanceScore:  score,
			MatchedKeywords: MatchedKeywords(query, c.material),
			Sources:         c.sources,
			FusedScore:      c.fused,
		})
	}
	return ranked, nil
}

// fuse issues the two retriever calls concurrently and merges their ranked
// lists, returning candidates sorted by fused score.
func (e *HybridEngine) fuse(ctx context.Context, query string, limit int) ([]*candidate, error) {
	logger := contextutil.LoggerFromContext(ctx)
	candidateLimit := limit * e.cfg.CandidateMultiplier

	var (
		wg                     sync.WaitGroup
		lexResults, semResults []Result
		lexErr, semErr         error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		lexResults, lexErr = e.lexical.Retrieve(ctx, query, candidateLimit)
	}()
	go func() {
		defer wg.Done()
		semResults, semErr = e.semantic.Retrieve(ctx, query, candidateLimit)
	}()
	wg.Wait()

	// Degrade gracefully: one failing retriever loses its contribution only.
	if lexErr != nil {
		logger.WarnContext(ctx, "lexical retrieval failed, degrading to semantic only", "error", lexErr)
		lexResults = nil
	}
	if semErr != nil {
		logger.WarnContext(ctx, "semantic retrieval failed, degrading to lexical only", "error", semErr)
		semResults = nil
	}
	if lexErr != nil && semErr != nil {
		return nil, fmt.Errorf("all retrievers failed: lexical: %v; semantic: %w", lexErr, semErr)
	}

	byID := make(map[string]*candidate)
	if e.cfg.UseRRF {
		e.accumulateRRF(byID, lexResults, e.cfg.LexicalWeight)
		e.accumulateRRF(byID, semResults, e.cfg.SemanticWeight)
	} else {
		e.accumulateNormalized(byID, lexResults, e.cfg.LexicalWeight)
		e.accumulateNormalized(byID, semResults, e.cfg.SemanticWeight)
	}

	candidates := make([]*candidate, 0, len(byID))
	for _, c := range byID {
		candidates = append(candidates, c)
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].fused != candidates[b].fused {
			return candidates[a].fused > candidates[b].fused
		}
		// Tie: prefer the document some source ranked higher, then corpus order.
		if candidates[a].bestRank != candidates[b].bestRank {
			return candidates[a].bestRank < candidates[b].bestRank
		}
		return e.order[candidates[a].material.ID] < e.order[candidates[b].material.ID]
	})
	return candidates, nil
}

// accumulateRRF adds weighted reciprocal-rank contributions for one list.
// A document at 0-indexed rank r contributes weight / (k + r + 1).
func (e *HybridEngine) accumulateRRF(byID map[string]*candidate, results []Result, weight float64) {
	for rank, res := range results {
		contribution := weight / float64(e.cfg.RRFK+rank+1)
		merge(byID, res, contribution, rank)
	}
}

// accumulateNormalized adds weighted min-max-normalized raw scores for one list.
func (e *HybridEngine) accumulateNormalized(byID map[string]*candidate, results []Result, weight float64) {
	if len(results) == 0 {
		return
	}
	minScore, maxScore := results[0].Score, results[0].Score
	for _, res := range results {
		if res.Score < minScore {
			minScore = res.Score
		}
		if res.Score > maxScore {
			maxScore = res.Score
		}
	}
	span := maxScore - minScore
	for rank, res := range results {
		normalized := 1.0
		if span > 0 {
			normalized = (res.Score - minScore) / span
		}
		merge(byID, res, weight*normalized, rank)
	}
}

func merge(byID map[string]*candidate, res Result, contribution float64, rank int) {
	c, ok := byID[res.Material.ID]
	if !ok {
		c = &candidate{material: res.Material, bestRank: rank}
		byID[res.Material.ID] = c
	}
	c.fused += contribution
	if rank < c.bestRank {
		c.bestRank = rank
	}
	c.sources = append(c.sources, res.Source)
}

// diversify applies greedy MMR selection: each step picks the candidate
// maximizing lambda*relevance - (1-lambda)*maxSimilarityToSelected. Greedy is
// acceptable here because course corpora are small.
func diversify(candidates []*candidate, limit int, lambda float64) []*candidate {
	if len(candidates) <= limit {
		return candidates
	}

	maxFused := candidates[0].fused
	for _, c := range candidates {
		if c.fused > maxFused {
			maxFused = c.fused
		}
	}
	relevance := func(c *candidate) float64 {
		if maxFused == 0 {
			return 0
		}
		return c.fused / maxFused
	}

	vocabs := make([]map[string]struct{}, len(candidates))
	for i, c := range candidates {
		vocabs[i] = termSet(c.material)
	}

	selected := make([]*candidate, 0, limit)
	selectedVocabs := make([]map[string]struct{}, 0, limit)
	remaining := make([]int, len(candidates))
	for i := range candidates {
		remaining[i] = i
	}

	for len(selected) < limit && len(remaining) > 0 {
		bestIdx := -1
		bestScore := 0.0
		for pos, idx := range remaining {
			maxSim := 0.0
			for _, sv := range selectedVocabs {
				if sim := jaccard(vocabs[idx], sv); sim > maxSim {
					maxSim = sim
				}
			}
			score := lambda*relevance(candidates[idx]) - (1-lambda)*maxSim
			if bestIdx == -1 || score > bestScore {
				bestIdx = pos
				bestScore = score
			}
		}
		idx := remaining[bestIdx]
		selected = append(selected, candidates[idx])
		selectedVocabs = append(selectedVocabs, vocabs[idx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

func termSet(m corpus.Material) map[string]struct{} {
	set := make(map[string]struct{})
	for _, kw := range m.Keywords {
		set[kw] = struct{}{}
	}
	for _, token := range corpus.Tokenize(m.Title) {
		set[token] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for term := range a {
		if _, ok := b[term]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
