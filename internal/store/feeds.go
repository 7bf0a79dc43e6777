package store

import (
	"fmt"

	"cryptopulse/internal/core"
)

// SaveFeed inserts or replaces a feed record.
func (s *Store) SaveFeed(feed *core.Feed) error {
	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO feeds
			(id, url, source, title, last_fetched, last_modified, etag, active, error_count, last_error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			feed.ID, feed.URL, feed.Source, feed.Title,
			nullableTime(feed.LastFetched), feed.LastModified, feed.ETag,
			boolToInt(feed.Active), feed.ErrorCount, feed.LastError)
		if err != nil {
			return fmt.Errorf("failed to save feed: %w", err)
		}
		return nil
	})
}

// GetActiveFeeds returns feeds currently being polled.
func (s *Store) GetActiveFeeds() ([]*core.Feed, error) {
	rows, err := s.db.Query(`
		SELECT id, url, source, title, COALESCE(last_fetched, '0001-01-01 00:00:00+00:00'),
		       last_modified, etag, active, error_count, last_error
		FROM feeds WHERE active = 1`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []*core.Feed
	for rows.Next() {
		var f core.Feed
		var active int
		if err := rows.Scan(&f.ID, &f.URL, &f.Source, &f.Title, &f.LastFetched,
			&f.LastModified, &f.ETag, &active, &f.ErrorCount, &f.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		f.Active = active == 1
		feeds = append(feeds, &f)
	}
	return feeds, rows.Err()
}
