package adaptive

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTL tiers by the confidence the answer was produced under. Higher
// confidence answers stay valid longer.
const (
	TTLHighConfidence   = 24 * time.Hour
	TTLMediumConfidence = 12 * time.Hour
	TTLLowConfidence    = 6 * time.Hour

	highConfidenceTTLCutoff   = 75.0
	mediumConfidenceTTLCutoff = 50.0

	DefaultCacheCapacity = 512
)

// TTLForConfidence maps a 0-100 confidence score to a cache lifetime.
func TTLForConfidence(confidence float64) time.Duration {
	switch {
	case confidence >= highConfidenceTTLCutoff:
		return TTLHighConfidence
	case confidence >= mediumConfidenceTTLCutoff:
		return TTLMediumConfidence
	default:
		return TTLLowConfidence
	}
}

type entry[T any] struct {
	value          T
	confidence     float64
	cachedAt       time.Time
	ttl            time.Duration
	accessCount    int
	lastAccessedAt time.Time
}

// Cache is an LRU answer cache with per-entry confidence-tiered TTLs.
// Expiry is checked lazily on read. Safe for concurrent use.
type Cache[T any] struct {
	mu    sync.Mutex
	lru   *lru.Cache[string, *entry[T]]
	clock func() time.Time
}

// NewCache creates a cache bounded to capacity entries. A capacity at or
// below zero falls back to DefaultCacheCapacity.
func NewCache[T any](capacity int) (*Cache[T], error) {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	inner, err := lru.New[string, *entry[T]](capacity)
	if err != nil {
		return nil, err
	}
	return &Cache[T]{lru: inner, clock: time.Now}, nil
}

// Set stores a value under key with a TTL derived from confidence.
func (c *Cache[T]) Set(key string, value T, confidence float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.clock()
	c.lru.Add(key, &entry[T]{
		value:          value,
		confidence:     confidence,
		cachedAt:       now,
		ttl:            TTLForConfidence(confidence),
		lastAccessedAt: now,
	})
}

// Get returns the cached value for key. Expired entries are evicted and
// reported as misses.
func (c *Cache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	now := c.clock()
	if now.Sub(e.cachedAt) > e.ttl {
		c.lru.Remove(key)
		var zero T
		return zero, false
	}
	e.accessCount++
	e.lastAccessedAt = now
	return e.value, true
}

// Peek reports whether key holds a live entry without touching recency
// or access counts.
func (c *Cache[T]) Peek(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Peek(key)
	if !ok {
		return false
	}
	return c.clock().Sub(e.cachedAt) <= e.ttl
}

// Len returns the number of entries currently held, expired or not.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *Cache[T]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// CacheKey builds a stable key from the normalized query plus the course
// and user scope. Normalization lowercases, strips punctuation, and
// collapses whitespace so trivial rephrasings share an entry.
func CacheKey(query, courseID, userID string) string {
	sum := sha256.Sum256([]byte(normalizeQuery(query) + "|" + courseID + "|" + userID))
	return hex.EncodeToString(sum[:])
}

func normalizeQuery(query string) string {
	var b strings.Builder
	b.Grow(len(query))
	lastSpace := true
	for _, r := range strings.ToLower(query) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}
