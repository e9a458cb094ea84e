package confidence

import (
	"time"

	"quokkaq/internal/corpus"
)

// HistoryEntry is one past query by the same user in the same course.
type HistoryEntry struct {
	Query   string    `json:"query"`
	Success bool      `json:"success"`
	AskedAt time.Time `json:"asked_at"`
}

// Similarity thresholds over the word-set Jaccard measure.
const (
	similarQueryCutoff  = 0.8  // counts toward the success rate
	familiarTopicCutoff = 0.6  // counts toward topic familiarity
	nearExactCutoff     = 0.95 // a near-verbatim repeat, likely cached
)

const (
	historyNeutral = 50.0

	successRateFloor   = 30.0 // successRate scales the remaining 50 points
	successRateRange   = 50.0
	maxSimilarityBonus = 10.0
	familiarityBonus   = 2.0 // per familiar past query, capped
	familiarityCap     = 5
	cacheHitBonus      = 10.0

	recentRepeatWindow = 24 * time.Hour
)

// historicalScore rates the query against the user's past queries. With no
// history it stays neutral rather than penalizing new users.
func (s *Scorer) historicalScore(query string, history []HistoryEntry, now time.Time) float64 {
	if len(history) == 0 {
		return historyNeutral
	}

	var (
		similar    int
		successes  int
		familiar   int
		maxSim     float64
		cacheBoost float64
	)
	for _, entry := range history {
		sim := WordSetSimilarity(query, entry.Query)
		if sim > maxSim {
			maxSim = sim
		}
		if sim > familiarTopicCutoff {
			familiar++
		}
		if sim > similarQueryCutoff {
			similar++
			if entry.Success {
				successes++
			}
		}
		if sim > nearExactCutoff {
			boost := cacheHitBonus * 0.7
			if now.Sub(entry.AskedAt) < recentRepeatWindow {
				boost = cacheHitBonus
			}
			if boost > cacheBoost {
				cacheBoost = boost
			}
		}
	}

	score := historyNeutral
	if similar > 0 {
		successRate := float64(successes) / float64(similar)
		score = successRateFloor + successRate*successRateRange
	}
	score += maxSim * maxSimilarityBonus
	if familiar > familiarityCap {
		familiar = familiarityCap
	}
	score += float64(familiar) * familiarityBonus
	score += cacheBoost

	return clamp(score)
}

// WordSetSimilarity is the Jaccard similarity of the two queries'
// stopword-filtered token sets. Returns 0 when either set is empty.
func WordSetSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(query string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range corpus.FilterStopwords(corpus.Tokenize(query)) {
		set[token] = struct{}{}
	}
	return set
}
