package adaptive

import "sync/atomic"

// Metrics counts routing and cache activity. All methods are safe for
// concurrent use and never fail; a nil receiver is a no-op so callers can
// pass metrics through optionally.
type Metrics struct {
	decisions  atomic.Int64
	useCache   atomic.Int64
	standard   atomic.Int64
	expanded   atomic.Int64
	aggressive atomic.Int64

	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	cacheWrites atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Decisions          int64   `json:"decisions"`
	UseCache           int64   `json:"use_cache"`
	RetrieveStandard   int64   `json:"retrieve_standard"`
	RetrieveExpanded   int64   `json:"retrieve_expanded"`
	RetrieveAggressive int64   `json:"retrieve_aggressive"`
	CacheHits          int64   `json:"cache_hits"`
	CacheMisses        int64   `json:"cache_misses"`
	CacheWrites        int64   `json:"cache_writes"`
	CacheHitRate       float64 `json:"cache_hit_rate"`
}

func (m *Metrics) recordDecision(action Action) {
	if m == nil {
		return
	}
	m.decisions.Add(1)
	switch action {
	case ActionUseCache:
		m.useCache.Add(1)
	case ActionRetrieveExpanded:
		m.expanded.Add(1)
	case ActionRetrieveAggressive:
		m.aggressive.Add(1)
	default:
		m.standard.Add(1)
	}
}

func (m *Metrics) recordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Add(1)
}

func (m *Metrics) recordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Add(1)
}

func (m *Metrics) recordCacheWrite() {
	if m == nil {
		return
	}
	m.cacheWrites.Add(1)
}

// Snapshot returns the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	s := Snapshot{
		Decisions:          m.decisions.Load(),
		UseCache:           m.useCache.Load(),
		RetrieveStandard:   m.standard.Load(),
		RetrieveExpanded:   m.expanded.Load(),
		RetrieveAggressive: m.aggressive.Load(),
		CacheHits:          m.cacheHits.Load(),
		CacheMisses:        m.cacheMisses.Load(),
		CacheWrites:        m.cacheWrites.Load(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		s.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	return s
}
