package generate

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(t *testing.T, clock *testClock, opts ...CacheOption) *ResponseCache {
	t.Helper()
	opts = append(opts, WithCacheClock(clock.Now))
	cache, err := NewResponseCache(opts...)
	require.NoError(t, err)
	return cache
}

func TestResponseCacheHitAndMiss(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	_, ok := cache.Get("k1")
	assert.False(t, ok)

	cache.Put("k1", "hello")
	got, ok := cache.Get("k1")
	assert.True(t, ok)
	assert.Equal(t, "hello", got)

	stats := cache.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, 1, stats.Size)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)
}

func TestResponseCacheTTLExpiry(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock, WithTTL(time.Minute))

	cache.Put("k1", "hello")

	clock.Advance(59 * time.Second)
	_, ok := cache.Get("k1")
	assert.True(t, ok, "entry within ttl must be served")

	clock.Advance(2 * time.Second)
	_, ok = cache.Get("k1")
	assert.False(t, ok, "expired entry must be treated as a miss")
	assert.Equal(t, 0, cache.Stats().Size, "expired entry must be removed")
}

func TestResponseCacheLRUEviction(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock, WithMaxSize(2))

	cache.Put("a", "1")
	clock.Advance(time.Second)
	cache.Put("b", "2")
	clock.Advance(time.Second)

	// Touch "a" so "b" becomes least recently accessed.
	_, ok := cache.Get("a")
	require.True(t, ok)
	clock.Advance(time.Second)

	cache.Put("c", "3")

	_, ok = cache.Get("a")
	assert.True(t, ok)
	_, ok = cache.Get("b")
	assert.False(t, ok, "least recently accessed entry must be evicted")
	_, ok = cache.Get("c")
	assert.True(t, ok)
	assert.Equal(t, uint64(1), cache.Stats().Evictions)
}

func TestResponseCacheSizeOne(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock, WithMaxSize(1))

	cache.Put("a", "1")
	clock.Advance(time.Second)
	cache.Put("b", "2")

	_, ok := cache.Get("a")
	assert.False(t, ok)
	got, ok := cache.Get("b")
	assert.True(t, ok)
	assert.Equal(t, "2", got)
	assert.Equal(t, 1, cache.Stats().Size)
}

func TestResponseCachePutRefreshesExisting(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock, WithTTL(time.Minute), WithMaxSize(1))

	cache.Put("a", "1")
	clock.Advance(50 * time.Second)
	cache.Put("a", "2")
	clock.Advance(50 * time.Second)

	got, ok := cache.Get("a")
	assert.True(t, ok, "rewrite must restart the ttl")
	assert.Equal(t, "2", got)
}

func TestResponseCacheClear(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock)

	cache.Put("a", "1")
	cache.Clear()
	_, ok := cache.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Stats().Size)
}

func TestResponseCacheValidation(t *testing.T) {
	_, err := NewResponseCache(WithTTL(0))
	assert.Error(t, err)

	_, err = NewResponseCache(WithMaxSize(0))
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	t.Run("deterministic across param order", func(t *testing.T) {
		a := Fingerprint("answer", "openai", map[string]string{"query": "q", "context": "c", "lang": "en"})
		for i := 0; i < 10; i++ {
			b := Fingerprint("answer", "openai", map[string]string{"lang": "en", "context": "c", "query": "q"})
			assert.Equal(t, a, b)
		}
	})

	t.Run("differs by any component", func(t *testing.T) {
		base := Fingerprint("answer", "openai", map[string]string{"query": "q"})
		assert.NotEqual(t, base, Fingerprint("summarize", "openai", map[string]string{"query": "q"}))
		assert.NotEqual(t, base, Fingerprint("answer", "local", map[string]string{"query": "q"}))
		assert.NotEqual(t, base, Fingerprint("answer", "openai", map[string]string{"query": "other"}))
	})

	t.Run("no collision between key and value boundaries", func(t *testing.T) {
		a := Fingerprint("t", "p", map[string]string{"ab": "c"})
		b := Fingerprint("t", "p", map[string]string{"a": "bc"})
		assert.NotEqual(t, a, b)
	})

	t.Run("fixed length hex", func(t *testing.T) {
		fp := Fingerprint("answer", "openai", nil)
		assert.Len(t, fp, 32)
		for i := 0; i < 3; i++ {
			assert.Equal(t, fp, Fingerprint("answer", "openai", map[string]string{}))
		}
	})
}

func TestResponseCacheManyEntries(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	cache := newTestCache(t, clock, WithMaxSize(10))

	for i := 0; i < 25; i++ {
		cache.Put(fmt.Sprintf("k%d", i), "v")
		clock.Advance(time.Millisecond)
	}
	stats := cache.Stats()
	assert.Equal(t, 10, stats.Size)
	assert.Equal(t, uint64(15), stats.Evictions)
}
