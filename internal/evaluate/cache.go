package evaluate

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RootSupplier produces a fresh posture evaluation, typically by running
// the expensive evidence collection and feeding it through EvaluateRoot.
type RootSupplier func() RootResult

// RootCache is a single most-recent-result memoization slot around an
// expensive posture evaluation. Concurrent callers during recomputation may
// both recompute; the supplier is pure so that is only wasted work, never
// an inconsistency.
type RootCache struct {
	mu       sync.Mutex
	supplier RootSupplier
	ttl      time.Duration
	now      func() time.Time

	last   *RootResult
	lastAt time.Time
}

// NewRootCache wraps supplier with a TTL slot. now is injectable so tests
// control time deterministically; nil means time.Now.
func NewRootCache(supplier RootSupplier, ttl time.Duration, now func() time.Time) *RootCache {
	if now == nil {
		now = time.Now
	}
	return &RootCache{supplier: supplier, ttl: ttl, now: now}
}

// Evaluate returns the cached result when it is younger than the TTL,
// otherwise recomputes and caches.
func (c *RootCache) Evaluate() RootResult {
	c.mu.Lock()
	if c.last != nil && c.now().Sub(c.lastAt) <= c.ttl {
		cached := *c.last
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	result := c.supplier()

	c.mu.Lock()
	copied := result
	c.last = &copied
	c.lastAt = c.now()
	c.mu.Unlock()
	return result
}

// Invalidate drops the cached slot so the next call recomputes.
func (c *RootCache) Invalidate() {
	c.mu.Lock()
	c.last = nil
	c.mu.Unlock()
}

type cachedPhishing struct {
	result PhishingResult
	at     time.Time
}

// PhishingCache memoizes text evaluations across a scan batch: repeated
// messages are common and the keyword scan is the dominant cost. Bounded
// by an LRU and a TTL.
type PhishingCache struct {
	mu    sync.Mutex
	inner *PhishingEvaluator
	cache *lru.Cache[string, cachedPhishing]
	ttl   time.Duration
	now   func() time.Time
}

// NewPhishingCache wraps the evaluator with a keyed TTL cache of the given
// capacity. nil now means time.Now.
func NewPhishingCache(inner *PhishingEvaluator, capacity int, ttl time.Duration, now func() time.Time) (*PhishingCache, error) {
	cache, err := lru.New[string, cachedPhishing](capacity)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &PhishingCache{inner: inner, cache: cache, ttl: ttl, now: now}, nil
}

// Evaluate returns a cached result for identical text when it is younger
// than the TTL, otherwise evaluates and caches.
func (c *PhishingCache) Evaluate(text string) PhishingResult {
	c.mu.Lock()
	if entry, ok := c.cache.Get(text); ok && c.now().Sub(entry.at) <= c.ttl {
		c.mu.Unlock()
		return entry.result
	}
	c.mu.Unlock()

	result := c.inner.Evaluate(text)

	c.mu.Lock()
	c.cache.Add(text, cachedPhishing{result: result, at: c.now()})
	c.mu.Unlock()
	return result
}
