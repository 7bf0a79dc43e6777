package store

import (
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// SaveAlert inserts or replaces one alert.
func (s *Store) SaveAlert(alert *core.Alert) error {
	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO alerts
			(id, entity, type, severity, message, value, threshold, resolved, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			alert.ID, alert.Entity, alert.Type, alert.Severity, alert.Message,
			alert.Value, alert.Threshold, boolToInt(alert.Resolved), alert.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to save alert: %w", err)
		}
		return nil
	})
}

// GetRecentAlerts returns unresolved alerts created after the cutoff,
// newest first.
func (s *Store) GetRecentAlerts(cutoff time.Time, limit int) ([]*core.Alert, error) {
	rows, err := s.db.Query(`
		SELECT id, entity, type, severity, message, value, threshold, resolved, created_at
		FROM alerts
		WHERE resolved = 0 AND created_at > ?
		ORDER BY created_at DESC
		LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*core.Alert
	for rows.Next() {
		var a core.Alert
		var resolved int
		if err := rows.Scan(&a.ID, &a.Entity, &a.Type, &a.Severity, &a.Message,
			&a.Value, &a.Threshold, &resolved, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Resolved = resolved == 1
		alerts = append(alerts, &a)
	}
	return alerts, rows.Err()
}

// HasRecentAlert reports whether the entity already has an unresolved
// alert of the given type newer than the cutoff, for dedup.
func (s *Store) HasRecentAlert(entity, alertType string, cutoff time.Time) (bool, error) {
	var count int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM alerts
		WHERE entity = ? AND type = ? AND resolved = 0 AND created_at > ?`,
		entity, alertType, cutoff).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check recent alert: %w", err)
	}
	return count > 0, nil
}

// ResolveAlert marks one alert resolved.
func (s *Store) ResolveAlert(id string) error {
	return s.withRetry(func() error {
		_, err := s.db.Exec(`UPDATE alerts SET resolved = 1 WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to resolve alert: %w", err)
		}
		return nil
	})
}
