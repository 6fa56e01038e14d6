// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package generate

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-crypt/x/blake2b"
)

const (
	// DefaultCacheTTL is how long a cached response stays valid.
	DefaultCacheTTL = time.Hour

	// DefaultCacheSize is the maximum number of cached responses.
	DefaultCacheSize = 1000
)

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// HitRate is the fraction of lookups served from the cache.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type cacheEntry struct {
	value      string
	expiresAt  time.Time
	lastAccess time.Time
}

// ResponseCache is a bounded in-memory cache of generated responses
// keyed by request fingerprint. Entries expire lazily on read after a
// TTL; when the cache is full the least recently accessed entry is
// evicted to make room. Safe for concurrent use.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int
	clock   func() time.Time
	hits    uint64
	misses  uint64
	evicted uint64
}

// CacheOption configures a ResponseCache.
type CacheOption func(*ResponseCache) error

// WithTTL overrides the entry lifetime.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *ResponseCache) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive, got %v", ttl)
		}
		c.ttl = ttl
		return nil
	}
}

// WithMaxSize overrides the entry capacity.
func WithMaxSize(n int) CacheOption {
	return func(c *ResponseCache) error {
		if n <= 0 {
			return fmt.Errorf("cache size must be positive, got %d", n)
		}
		c.maxSize = n
		return nil
	}
}

// WithCacheClock replaces the cache's time source, for tests.
func WithCacheClock(clock func() time.Time) CacheOption {
	return func(c *ResponseCache) error {
		c.clock = clock
		return nil
	}
}

// NewResponseCache creates a cache with the default TTL and capacity.
func NewResponseCache(opts ...CacheOption) (*ResponseCache, error) {
	c := &ResponseCache{
		entries: make(map[string]*cacheEntry),
		ttl:     DefaultCacheTTL,
		maxSize: DefaultCacheSize,
		clock:   time.Now,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Get returns the cached response for a fingerprint. An entry past its
// TTL is removed and reported as a miss.
func (c *ResponseCache) Get(fingerprint string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[fingerprint]
	if !ok {
		c.misses++
		return "", false
	}

	now := c.clock()
	if now.After(entry.expiresAt) {
		delete(c.entries, fingerprint)
		c.misses++
		return "", false
	}

	entry.lastAccess = now
	c.hits++
	return entry.value, true
}

// Put stores a response under a fingerprint, evicting the least
// recently accessed entry when the cache is full.
func (c *ResponseCache) Put(fingerprint, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock()
	if entry, ok := c.entries[fingerprint]; ok {
		entry.value = value
		entry.expiresAt = now.Add(c.ttl)
		entry.lastAccess = now
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[fingerprint] = &cacheEntry{
		value:      value,
		expiresAt:  now.Add(c.ttl),
		lastAccess: now,
	}
}

// evictOldest removes the least recently accessed entry. Callers must
// hold the lock.
func (c *ResponseCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.lastAccess.Before(oldest) {
			oldestKey = key
			oldest = entry.lastAccess
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
		c.evicted++
	}
}

// Clear discards all entries. Counters are retained.
func (c *ResponseCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
}

// Stats returns a snapshot of the cache counters.
func (c *ResponseCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
		Size:      len(c.entries),
	}
}

// Fingerprint derives the canonical cache key for a generation request.
// Parameters are serialized with sorted keys so that two requests with
// identical content always collide, regardless of map iteration order.
func Fingerprint(promptType, provider string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(promptType)
	b.WriteByte(0)
	b.WriteString(provider)
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(params[k])
	}

	h, _ := blake2b.New(16, nil)
	h.Write([]byte(b.String()))
	return hex.EncodeToString(h.Sum(nil))
}
