package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// SaveMentions inserts a batch of entity mentions in one transaction.
func (s *Store) SaveMentions(mentions []*core.EntityMention) error {
	if len(mentions) == 0 {
		return nil
	}
	return s.withRetry(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		stmt, err := tx.Prepare(`
			INSERT OR REPLACE INTO entity_mentions
			(id, entity, entity_type, article_id, sentiment, confidence, is_primary, source, timestamp, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare mention insert: %w", err)
		}
		defer stmt.Close()

		for _, m := range mentions {
			meta, err := json.Marshal(m.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal mention metadata: %w", err)
			}
			if _, err := stmt.Exec(m.ID, m.Entity, m.EntityType, m.ArticleID,
				m.Sentiment, m.Confidence, boolToInt(m.IsPrimary), m.Source,
				m.Timestamp, string(meta)); err != nil {
				return fmt.Errorf("failed to insert mention: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit mentions: %w", err)
		}
		return nil
	})
}

// GetPrimaryMentions returns an entity's primary mentions since the
// cutoff, oldest first.
func (s *Store) GetPrimaryMentions(entity string, cutoff time.Time) ([]*core.EntityMention, error) {
	rows, err := s.db.Query(`
		SELECT id, entity, entity_type, article_id, sentiment, confidence, is_primary, source, timestamp, metadata
		FROM entity_mentions
		WHERE entity = ? AND is_primary = 1 AND timestamp > ?
		ORDER BY timestamp ASC`, entity, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary mentions: %w", err)
	}
	defer rows.Close()
	return scanMentions(rows)
}

// GetMentionsByArticle returns every mention emitted for an article.
func (s *Store) GetMentionsByArticle(articleID string) ([]*core.EntityMention, error) {
	rows, err := s.db.Query(`
		SELECT id, entity, entity_type, article_id, sentiment, confidence, is_primary, source, timestamp, metadata
		FROM entity_mentions
		WHERE article_id = ?`, articleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query article mentions: %w", err)
	}
	defer rows.Close()
	return scanMentions(rows)
}

// GetActiveEntities returns the distinct entities with at least one
// primary mention since the cutoff.
func (s *Store) GetActiveEntities(cutoff time.Time) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT entity FROM entity_mentions
		WHERE is_primary = 1 AND timestamp > ?`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query active entities: %w", err)
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var entity string
		if err := rows.Scan(&entity); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// EntityMentionExists reports whether any mention exists for the entity.
func (s *Store) EntityMentionExists(entity string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM entity_mentions WHERE entity = ? LIMIT 1`, entity).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe entity mentions: %w", err)
	}
	return true, nil
}

func scanMentions(rows *sql.Rows) ([]*core.EntityMention, error) {
	var mentions []*core.EntityMention
	for rows.Next() {
		var m core.EntityMention
		var isPrimary int
		var meta string
		if err := rows.Scan(&m.ID, &m.Entity, &m.EntityType, &m.ArticleID,
			&m.Sentiment, &m.Confidence, &isPrimary, &m.Source, &m.Timestamp, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan mention: %w", err)
		}
		m.IsPrimary = isPrimary == 1
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal mention metadata: %w", err)
			}
		}
		mentions = append(mentions, &m)
	}
	return mentions, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
