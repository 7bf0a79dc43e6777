package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// ErrVersionConflict is returned when a compare-and-swap save loses the race.
var ErrVersionConflict = errors.New("narrative version conflict")

// SaveNarrative inserts or replaces a narrative unconditionally,
// bumping its version. Use SaveNarrativeVersioned when the caller read
// the narrative earlier and must not clobber concurrent writes.
func (s *Store) SaveNarrative(n *core.Narrative) error {
	n.Version++
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal narrative: %w", err)
	}

	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO narratives
			(id, theme, nucleus_entity, status, lifecycle_state, article_count,
			 first_seen, last_updated, dormant_since, reawakened_from, merged_into, version, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			n.ID, n.Theme, n.NucleusEntity, string(n.LifecycleState), string(n.LifecycleState),
			n.ArticleCount, n.FirstSeen, n.LastUpdated,
			nullableTimePtr(n.DormantSince), nullableTimePtr(n.ReawakenedFrom),
			n.MergedInto, n.Version, string(doc))
		if err != nil {
			return fmt.Errorf("failed to save narrative: %w", err)
		}
		return nil
	})
}

// SaveNarrativeVersioned writes the narrative only if the stored version
// still matches expectedVersion. On mismatch it returns ErrVersionConflict.
func (s *Store) SaveNarrativeVersioned(n *core.Narrative, expectedVersion int64) error {
	n.Version = expectedVersion + 1
	doc, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal narrative: %w", err)
	}

	return s.withRetry(func() error {
		res, err := s.db.Exec(`
			UPDATE narratives SET
				theme = ?, nucleus_entity = ?, status = ?, lifecycle_state = ?,
				article_count = ?, first_seen = ?, last_updated = ?,
				dormant_since = ?, reawakened_from = ?, merged_into = ?, version = ?, doc = ?
			WHERE id = ? AND version = ?`,
			n.Theme, n.NucleusEntity, string(n.LifecycleState), string(n.LifecycleState),
			n.ArticleCount, n.FirstSeen, n.LastUpdated,
			nullableTimePtr(n.DormantSince), nullableTimePtr(n.ReawakenedFrom),
			n.MergedInto, n.Version, string(doc),
			n.ID, expectedVersion)
		if err != nil {
			return fmt.Errorf("failed to save narrative: %w", err)
		}
		affected, _ := res.RowsAffected()
		if affected == 0 {
			return ErrVersionConflict
		}
		return nil
	})
}

// GetNarrative loads one narrative by id.
func (s *Store) GetNarrative(id string) (*core.Narrative, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM narratives WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get narrative: %w", err)
	}
	return unmarshalNarrative(doc)
}

// GetActiveNarratives returns every narrative not in the merged state,
// most recently updated first.
func (s *Store) GetActiveNarratives() ([]*core.Narrative, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM narratives
		WHERE lifecycle_state != ?
		ORDER BY last_updated DESC`, string(core.StateMerged))
	if err != nil {
		return nil, fmt.Errorf("failed to query active narratives: %w", err)
	}
	defer rows.Close()
	return scanNarratives(rows)
}

// GetNarrativesByState returns narratives in the given lifecycle state.
func (s *Store) GetNarrativesByState(state core.LifecycleState) ([]*core.Narrative, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM narratives
		WHERE lifecycle_state = ?
		ORDER BY last_updated DESC`, string(state))
	if err != nil {
		return nil, fmt.Errorf("failed to query narratives by state: %w", err)
	}
	defer rows.Close()
	return scanNarratives(rows)
}

// GetDormantNarrativesSince returns dormant narratives whose dormancy
// began strictly after the cutoff.
func (s *Store) GetDormantNarrativesSince(cutoff time.Time) ([]*core.Narrative, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM narratives
		WHERE lifecycle_state = ? AND dormant_since > ?
		ORDER BY dormant_since DESC`, string(core.StateDormant), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query dormant narratives: %w", err)
	}
	defer rows.Close()
	return scanNarratives(rows)
}

// GetNarrativesByNucleus returns non-merged narratives anchored on the
// given nucleus entity.
func (s *Store) GetNarrativesByNucleus(nucleus string) ([]*core.Narrative, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM narratives
		WHERE nucleus_entity = ? AND lifecycle_state != ?`,
		nucleus, string(core.StateMerged))
	if err != nil {
		return nil, fmt.Errorf("failed to query narratives by nucleus: %w", err)
	}
	defer rows.Close()
	return scanNarratives(rows)
}

// GetReawakenedNarratives returns narratives that have been resurrected
// at least once, most recent reawakening first.
func (s *Store) GetReawakenedNarratives(limit int) ([]*core.Narrative, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM narratives
		WHERE reawakened_from IS NOT NULL
		ORDER BY reawakened_from DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reawakened narratives: %w", err)
	}
	defer rows.Close()
	return scanNarratives(rows)
}

func scanNarratives(rows *sql.Rows) ([]*core.Narrative, error) {
	var narratives []*core.Narrative
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan narrative: %w", err)
		}
		n, err := unmarshalNarrative(doc)
		if err != nil {
			return nil, err
		}
		narratives = append(narratives, n)
	}
	return narratives, rows.Err()
}

func unmarshalNarrative(doc string) (*core.Narrative, error) {
	var n core.Narrative
	if err := json.Unmarshal([]byte(doc), &n); err != nil {
		return nil, fmt.Errorf("failed to unmarshal narrative: %w", err)
	}
	return &n, nil
}

func nullableTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
