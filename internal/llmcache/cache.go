// Package llmcache provides the persistent LLM response cache and the
// API cost tracker. Responses are keyed by a hash of model and prompt
// so identical calls within the TTL window never hit the API twice.
package llmcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// DefaultTTL is the cache lifetime when none is configured.
const DefaultTTL = 168 * time.Hour

// Cache is the persistent response cache with request coalescing.
type Cache struct {
	store *store.Store
	ttl   time.Duration
	group singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCache creates a cache over the store. A non-positive ttlHours
// falls back to the one-week default.
func NewCache(st *store.Store, ttlHours int) *Cache {
	ttl := DefaultTTL
	if ttlHours > 0 {
		ttl = time.Duration(ttlHours) * time.Hour
	}
	return &Cache{store: st, ttl: ttl}
}

// Key derives the cache key for a model and prompt.
func Key(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + prompt))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached response for the key, with a hit flag.
// Expired and missing entries both count as misses.
func (c *Cache) Get(key string) (string, bool) {
	entry, err := c.store.GetCacheEntry(key, time.Now().UTC())
	if err != nil {
		logger.Error("cache read failed", err, "key", key)
		c.misses.Add(1)
		return "", false
	}
	if entry == nil {
		c.misses.Add(1)
		return "", false
	}
	c.hits.Add(1)
	return entry.Response, true
}

// Put stores a response under the key. Write failures are logged, not
// returned; the cache is an optimization, never a correctness gate.
func (c *Cache) Put(key, model, response string) {
	now := time.Now().UTC()
	entry := &core.CacheEntry{
		CacheKey:  key,
		Model:     model,
		Response:  response,
		CreatedAt: now,
		ExpiresAt: now.Add(c.ttl),
	}
	if err := c.store.PutCacheEntry(entry); err != nil {
		logger.Error("cache write failed", err, "key", key)
	}
}

// Do runs fn at most once per key among concurrent callers. A cache hit
// short-circuits without invoking fn; on a miss the winning caller's
// result is stored and shared with every waiter.
func (c *Cache) Do(key, model string, fn func() (string, error)) (string, bool, error) {
	if response, ok := c.Get(key); ok {
		return response, true, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Re-check under the flight lock: a concurrent caller may have
		// populated the entry while we waited.
		if response, ok := c.Get(key); ok {
			return response, nil
		}
		response, err := fn()
		if err != nil {
			return "", err
		}
		c.Put(key, model, response)
		return response, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), false, nil
}

// Stats reports hit and miss counters since process start.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// HitRate returns the hit ratio since process start, 0 when idle.
func (c *Cache) HitRate() float64 {
	hits := c.hits.Load()
	total := hits + c.misses.Load()
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Purge removes expired entries.
func (c *Cache) Purge() (int, error) {
	deleted, err := c.store.PurgeExpiredCache(time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache: %w", err)
	}
	if deleted > 0 {
		logger.Info("purged expired cache entries", "count", deleted)
	}
	return deleted, nil
}
