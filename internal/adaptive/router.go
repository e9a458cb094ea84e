package adaptive

import (
	"fmt"
	"time"
)

// Action is the retrieval strategy chosen for a query.
type Action string

const (
	ActionUseCache           Action = "use-cache"
	ActionRetrieveStandard   Action = "retrieve-standard"
	ActionRetrieveExpanded   Action = "retrieve-expanded"
	ActionRetrieveAggressive Action = "retrieve-aggressive"
)

// Decision is the routing outcome for one query.
type Decision struct {
	Action      Action    `json:"action"`
	UseCache    bool      `json:"use_cache"`
	ExpandQuery bool      `json:"expand_query"`
	Aggressive  bool      `json:"aggressive"`
	CacheKey    string    `json:"cache_key"`
	Confidence  float64   `json:"confidence"`
	Reasoning   string    `json:"reasoning"`
	DecidedAt   time.Time `json:"decided_at"`
}

// Thresholds are the confidence cut points the router decides by.
type Thresholds struct {
	CacheServe float64 // at or above: serve from cache when a live entry exists
	Expansion  float64 // below: expand the query before retrieval
	Aggressive float64 // below: widen retrieval and expand
}

// DefaultThresholds returns the standard routing cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{CacheServe: 80, Expansion: 65, Aggressive: 50}
}

// Router picks a retrieval strategy from the query's confidence score and
// the answer cache state. Decisions are deterministic given both.
type Router[T any] struct {
	cache      *Cache[T]
	thresholds Thresholds
	metrics    *Metrics
	clock      func() time.Time
}

// NewRouter wires a router over an answer cache. Metrics may be nil.
func NewRouter[T any](cache *Cache[T], thresholds Thresholds, metrics *Metrics) *Router[T] {
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	return &Router[T]{cache: cache, thresholds: thresholds, metrics: metrics, clock: time.Now}
}

// Route decides how to answer the query. The cache is only consulted when
// the confidence clears the cache-serve threshold; below it a fresh
// retrieval is always performed even if a live entry exists.
func (r *Router[T]) Route(query, courseID, userID string, confidence float64) Decision {
	d := Decision{
		CacheKey:   CacheKey(query, courseID, userID),
		Confidence: confidence,
		DecidedAt:  r.clock(),
	}

	switch {
	case confidence >= r.thresholds.CacheServe && r.cache != nil && r.cache.Peek(d.CacheKey):
		d.Action = ActionUseCache
		d.UseCache = true
		d.Reasoning = fmt.Sprintf("confidence %.0f clears cache threshold %.0f and a live cached answer exists",
			confidence, r.thresholds.CacheServe)
		r.metrics.recordDecision(d.Action)
	case confidence < r.thresholds.Aggressive:
		d.Action = ActionRetrieveAggressive
		d.ExpandQuery = true
		d.Aggressive = true
		d.Reasoning = fmt.Sprintf("confidence %.0f below %.0f, widening retrieval with query expansion",
			confidence, r.thresholds.Aggressive)
		r.metrics.recordDecision(d.Action)
	case confidence < r.thresholds.Expansion:
		d.Action = ActionRetrieveExpanded
		d.ExpandQuery = true
		d.Reasoning = fmt.Sprintf("confidence %.0f below %.0f, expanding the query before retrieval",
			confidence, r.thresholds.Expansion)
		r.metrics.recordDecision(d.Action)
	default:
		d.Action = ActionRetrieveStandard
		d.Reasoning = fmt.Sprintf("confidence %.0f supports standard retrieval", confidence)
		r.metrics.recordDecision(d.Action)
	}
	return d
}

// Lookup fetches the cached answer a use-cache decision points at.
func (r *Router[T]) Lookup(d Decision) (T, bool) {
	if r.cache == nil || !d.UseCache {
		var zero T
		return zero, false
	}
	value, ok := r.cache.Get(d.CacheKey)
	if ok {
		r.metrics.recordCacheHit()
	} else {
		// Entry expired or was evicted between Route and Lookup.
		r.metrics.recordCacheMiss()
	}
	return value, ok
}

// Store caches an answer under the decision's key with a confidence-tiered
// TTL.
func (r *Router[T]) Store(d Decision, value T) {
	if r.cache == nil {
		return
	}
	r.cache.Set(d.CacheKey, value, d.Confidence)
	r.metrics.recordCacheWrite()
}
