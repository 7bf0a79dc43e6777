package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// SaveSignalScore upserts one per-entity signal score. The per-window
// scores are mirrored into indexed columns for trending queries.
func (s *Store) SaveSignalScore(score *core.SignalScore) error {
	doc, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal signal score: %w", err)
	}

	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO signal_scores
			(entity, entity_type, score_24h, score_7d, score_30d, is_emerging, first_seen, last_updated, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			score.Entity, score.EntityType,
			score.Day.Score, score.Week.Score, score.Month.Score,
			boolToInt(score.IsEmerging), score.FirstSeen, score.LastUpdated, string(doc))
		if err != nil {
			return fmt.Errorf("failed to save signal score: %w", err)
		}
		return nil
	})
}

// GetSignalScore loads one entity's signal score.
func (s *Store) GetSignalScore(entity string) (*core.SignalScore, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM signal_scores WHERE entity = ?`, entity).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get signal score: %w", err)
	}
	return unmarshalSignal(doc)
}

// GetTopSignals returns signal scores ordered by the named window's
// score descending. Callers oversample and re-filter for trending.
func (s *Store) GetTopSignals(window string, limit int) ([]*core.SignalScore, error) {
	column := "score_24h"
	switch window {
	case core.Window7d:
		column = "score_7d"
	case core.Window30d:
		column = "score_30d"
	}
	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT doc FROM signal_scores
		ORDER BY %s DESC
		LIMIT ?`, column), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top signals: %w", err)
	}
	defer rows.Close()
	return scanSignals(rows)
}

// GetAllSignalEntities returns every entity with a stored signal score.
func (s *Store) GetAllSignalEntities() ([]string, error) {
	rows, err := s.db.Query(`SELECT entity FROM signal_scores`)
	if err != nil {
		return nil, fmt.Errorf("failed to query signal entities: %w", err)
	}
	defer rows.Close()

	var entities []string
	for rows.Next() {
		var entity string
		if err := rows.Scan(&entity); err != nil {
			return nil, fmt.Errorf("failed to scan signal entity: %w", err)
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// DeleteSignalScore removes one entity's signal score.
func (s *Store) DeleteSignalScore(entity string) error {
	return s.withRetry(func() error {
		if _, err := s.db.Exec(`DELETE FROM signal_scores WHERE entity = ?`, entity); err != nil {
			return fmt.Errorf("failed to delete signal score: %w", err)
		}
		return nil
	})
}

// DeleteStaleSignals removes scores not refreshed since the cutoff and
// returns how many were removed.
func (s *Store) DeleteStaleSignals(cutoff time.Time) (int, error) {
	var deleted int64
	err := s.withRetry(func() error {
		res, err := s.db.Exec(`DELETE FROM signal_scores WHERE last_updated < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete stale signals: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return int(deleted), err
}

func scanSignals(rows *sql.Rows) ([]*core.SignalScore, error) {
	var scores []*core.SignalScore
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan signal score: %w", err)
		}
		score, err := unmarshalSignal(doc)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

func unmarshalSignal(doc string) (*core.SignalScore, error) {
	var score core.SignalScore
	if err := json.Unmarshal([]byte(doc), &score); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signal score: %w", err)
	}
	return &score, nil
}
