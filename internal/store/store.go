// Package store is the document store for articles, entity mentions,
// signal scores, narratives, the LLM cache, cost records and alerts.
// SQLite with JSON document columns stands in for a document database;
// every collection gets the indexes the query paths need.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"cryptopulse/internal/logger"
)

// Store wraps the SQLite database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "cryptopulse.db")
	return open(dbPath)
}

// NewMemoryStore opens an in-memory database, used by tests.
func NewMemoryStore() (*Store, error) {
	return open(":memory:")
}

func open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps writes serialized and makes :memory:
	// databases visible across calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: dbPath}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// initialize creates the tables and indexes.
func (s *Store) initialize() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			title TEXT,
			body TEXT,
			published_at DATETIME,
			relevance_tier INTEGER DEFAULT 0,
			relevance_score REAL DEFAULT 0,
			sentiment_score REAL DEFAULT 0,
			sentiment_label TEXT DEFAULT '',
			nucleus_entity TEXT DEFAULT '',
			narrative_id TEXT DEFAULT '',
			enriched_at DATETIME,
			ingested_at DATETIME,
			doc TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_narrative ON articles(narrative_id)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_nucleus ON articles(nucleus_entity)`,

		`CREATE TABLE IF NOT EXISTS entity_mentions (
			id TEXT PRIMARY KEY,
			entity TEXT NOT NULL,
			entity_type TEXT,
			article_id TEXT NOT NULL,
			sentiment TEXT,
			confidence REAL,
			is_primary INTEGER,
			source TEXT,
			timestamp DATETIME,
			metadata TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_entity ON entity_mentions(entity)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_entity_primary_ts ON entity_mentions(entity, is_primary, timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_article ON entity_mentions(article_id)`,

		`CREATE TABLE IF NOT EXISTS signal_scores (
			entity TEXT PRIMARY KEY,
			entity_type TEXT,
			score_24h REAL DEFAULT 0,
			score_7d REAL DEFAULT 0,
			score_30d REAL DEFAULT 0,
			is_emerging INTEGER DEFAULT 1,
			first_seen DATETIME,
			last_updated DATETIME,
			doc TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_24h ON signal_scores(score_24h, last_updated)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_7d ON signal_scores(score_7d, last_updated)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_30d ON signal_scores(score_30d, last_updated)`,

		`CREATE TABLE IF NOT EXISTS narratives (
			id TEXT PRIMARY KEY,
			theme TEXT,
			nucleus_entity TEXT,
			status TEXT,
			lifecycle_state TEXT,
			article_count INTEGER DEFAULT 0,
			first_seen DATETIME,
			last_updated DATETIME,
			dormant_since DATETIME,
			reawakened_from DATETIME,
			merged_into TEXT DEFAULT '',
			version INTEGER DEFAULT 0,
			doc TEXT NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_narratives_updated ON narratives(last_updated)`,
		`CREATE INDEX IF NOT EXISTS idx_narratives_theme ON narratives(theme)`,
		`CREATE INDEX IF NOT EXISTS idx_narratives_state ON narratives(lifecycle_state)`,
		`CREATE INDEX IF NOT EXISTS idx_narratives_state_updated ON narratives(lifecycle_state, last_updated)`,
		`CREATE INDEX IF NOT EXISTS idx_narratives_nucleus ON narratives(nucleus_entity)`,
		`CREATE INDEX IF NOT EXISTS idx_narratives_reawakened ON narratives(reawakened_from)`,

		`CREATE TABLE IF NOT EXISTS llm_cache (
			cache_key TEXT PRIMARY KEY,
			model TEXT,
			response TEXT,
			created_at DATETIME,
			expires_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cache_expires ON llm_cache(expires_at)`,

		`CREATE TABLE IF NOT EXISTS api_costs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME,
			operation TEXT,
			model TEXT,
			input_tokens INTEGER,
			output_tokens INTEGER,
			cost_usd REAL,
			cached INTEGER,
			cache_key TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_costs_timestamp ON api_costs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_costs_operation ON api_costs(operation)`,
		`CREATE INDEX IF NOT EXISTS idx_costs_model ON api_costs(model)`,

		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			entity TEXT,
			type TEXT,
			severity TEXT,
			message TEXT,
			value REAL,
			threshold REAL,
			resolved INTEGER DEFAULT 0,
			created_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_entity ON alerts(entity)`,

		`CREATE TABLE IF NOT EXISTS feeds (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			source TEXT,
			title TEXT,
			last_fetched DATETIME,
			last_modified TEXT DEFAULT '',
			etag TEXT DEFAULT '',
			active INTEGER DEFAULT 1,
			error_count INTEGER DEFAULT 0,
			last_error TEXT DEFAULT ''
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const (
	retryAttempts = 3
	retryBase     = time.Second
)

// withRetry runs fn up to three times with exponential backoff. Only
// transient errors (locked/busy database) are retried.
func (s *Store) withRetry(fn func() error) error {
	var err error
	delay := retryBase
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt < retryAttempts-1 {
			logger.Warn("store operation failed, retrying", "attempt", attempt+1, "error", err.Error())
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}

func isTransient(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "busy")
}

// Ping verifies the underlying database is reachable.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// Stats summarizes collection sizes for the admin surface.
type Stats struct {
	Articles   int `json:"articles"`
	Mentions   int `json:"entity_mentions"`
	Signals    int `json:"signal_scores"`
	Narratives int `json:"narratives"`
	CacheRows  int `json:"llm_cache"`
	Alerts     int `json:"alerts"`
}

// GetStats returns per-collection row counts.
func (s *Store) GetStats() (*Stats, error) {
	stats := &Stats{}
	queries := map[string]*int{
		"SELECT COUNT(*) FROM articles":        &stats.Articles,
		"SELECT COUNT(*) FROM entity_mentions": &stats.Mentions,
		"SELECT COUNT(*) FROM signal_scores":   &stats.Signals,
		"SELECT COUNT(*) FROM narratives":      &stats.Narratives,
		"SELECT COUNT(*) FROM llm_cache":       &stats.CacheRows,
		"SELECT COUNT(*) FROM alerts":          &stats.Alerts,
	}
	for query, target := range queries {
		if err := s.db.QueryRow(query).Scan(target); err != nil {
			return nil, fmt.Errorf("failed to get count: %w", err)
		}
	}
	return stats, nil
}
