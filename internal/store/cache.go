package store

import (
	"database/sql"
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// GetCacheEntry returns a cache entry by key, or nil when absent or
// expired. Expired rows are left for PurgeExpiredCache.
func (s *Store) GetCacheEntry(key string, now time.Time) (*core.CacheEntry, error) {
	var entry core.CacheEntry
	err := s.db.QueryRow(`
		SELECT cache_key, model, response, created_at, expires_at
		FROM llm_cache WHERE cache_key = ?`, key).
		Scan(&entry.CacheKey, &entry.Model, &entry.Response, &entry.CreatedAt, &entry.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	if !entry.ExpiresAt.After(now) {
		return nil, nil
	}
	return &entry, nil
}

// PutCacheEntry stores a response, replacing any previous entry for the key.
func (s *Store) PutCacheEntry(entry *core.CacheEntry) error {
	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO llm_cache
			(cache_key, model, response, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?)`,
			entry.CacheKey, entry.Model, entry.Response, entry.CreatedAt, entry.ExpiresAt)
		if err != nil {
			return fmt.Errorf("failed to put cache entry: %w", err)
		}
		return nil
	})
}

// PurgeExpiredCache removes expired entries and returns how many were removed.
func (s *Store) PurgeExpiredCache(now time.Time) (int, error) {
	var deleted int64
	err := s.withRetry(func() error {
		res, err := s.db.Exec(`DELETE FROM llm_cache WHERE expires_at <= ?`, now)
		if err != nil {
			return fmt.Errorf("failed to purge cache: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return int(deleted), err
}

// CacheSize returns the number of stored cache rows, expired included.
func (s *Store) CacheSize() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM llm_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}
