package evaluate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realyn/dtguard/internal/model"
)

// fakeClock is a controllable clock for cache tests.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestRootCacheReturnsCachedWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	calls := 0
	supplier := func() RootResult {
		calls++
		return EvaluateRoot(model.RootEvidence{SuBinaryPresent: true})
	}

	cache := NewRootCache(supplier, 30*time.Second, clock.Now)

	first := cache.Evaluate()
	second := cache.Evaluate()
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	clock.Advance(29 * time.Second)
	cache.Evaluate()
	assert.Equal(t, 1, calls)
}

func TestRootCacheRecomputesAfterTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	calls := 0
	supplier := func() RootResult {
		calls++
		return EvaluateRoot(model.RootEvidence{})
	}

	cache := NewRootCache(supplier, 30*time.Second, clock.Now)
	cache.Evaluate()
	clock.Advance(31 * time.Second)
	cache.Evaluate()
	assert.Equal(t, 2, calls)
}

func TestRootCacheInvalidate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	calls := 0
	cache := NewRootCache(func() RootResult {
		calls++
		return RootResult{Tier: model.TierTrusted, ReasonCodes: []string{model.ReasonNoIndicators}}
	}, time.Minute, clock.Now)

	cache.Evaluate()
	cache.Invalidate()
	cache.Evaluate()
	assert.Equal(t, 2, calls)
}

func TestPhishingCacheMemoizesByText(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache, err := NewPhishingCache(newTestPhishingEvaluator(), 16, time.Minute, clock.Now)
	require.NoError(t, err)

	text := "verify your account password now"
	first := cache.Evaluate(text)
	second := cache.Evaluate(text)
	assert.Equal(t, first, second)
	assert.Greater(t, first.Score, 0)

	// Different text is evaluated on its own.
	other := cache.Evaluate("see you tomorrow")
	assert.Equal(t, 0, other.Score)
}

func TestPhishingCacheExpiresByTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	cache, err := NewPhishingCache(newTestPhishingEvaluator(), 16, 30*time.Second, clock.Now)
	require.NoError(t, err)

	text := "wire transfer needed urgent"
	before := cache.Evaluate(text)
	clock.Advance(31 * time.Second)
	after := cache.Evaluate(text)

	// Deterministic evaluator: the recomputed result matches, it is just no
	// longer served from the cache slot.
	assert.Equal(t, before, after)
}
