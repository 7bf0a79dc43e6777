package store

import (
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// SaveCostRecord appends one cost record.
func (s *Store) SaveCostRecord(record *core.CostRecord) error {
	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT INTO api_costs
			(timestamp, operation, model, input_tokens, output_tokens, cost_usd, cached, cache_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.Timestamp, record.Operation, record.Model,
			record.InputTokens, record.OutputTokens, record.CostUSD,
			boolToInt(record.Cached), record.CacheKey)
		if err != nil {
			return fmt.Errorf("failed to save cost record: %w", err)
		}
		return nil
	})
}

// CostSummary aggregates spend over a reporting period.
type CostSummary struct {
	TotalCostUSD float64            `json:"total_cost_usd"`
	TotalCalls   int                `json:"total_calls"`
	CachedCalls  int                `json:"cached_calls"`
	InputTokens  int64              `json:"input_tokens"`
	OutputTokens int64              `json:"output_tokens"`
	ByOperation  map[string]float64 `json:"by_operation"`
	ByModel      map[string]float64 `json:"by_model"`
	Since        time.Time          `json:"since"`
}

// GetCostSummary aggregates cost records since the cutoff.
func (s *Store) GetCostSummary(since time.Time) (*CostSummary, error) {
	summary := &CostSummary{
		ByOperation: make(map[string]float64),
		ByModel:     make(map[string]float64),
		Since:       since,
	}

	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(cost_usd), 0), COUNT(*), COALESCE(SUM(cached), 0),
		       COALESCE(SUM(input_tokens), 0), COALESCE(SUM(output_tokens), 0)
		FROM api_costs WHERE timestamp > ?`, since).
		Scan(&summary.TotalCostUSD, &summary.TotalCalls, &summary.CachedCalls,
			&summary.InputTokens, &summary.OutputTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate costs: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT operation, COALESCE(SUM(cost_usd), 0)
		FROM api_costs WHERE timestamp > ?
		GROUP BY operation`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate costs by operation: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var op string
		var cost float64
		if err := rows.Scan(&op, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan operation cost: %w", err)
		}
		summary.ByOperation[op] = cost
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	modelRows, err := s.db.Query(`
		SELECT model, COALESCE(SUM(cost_usd), 0)
		FROM api_costs WHERE timestamp > ?
		GROUP BY model`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate costs by model: %w", err)
	}
	defer modelRows.Close()
	for modelRows.Next() {
		var model string
		var cost float64
		if err := modelRows.Scan(&model, &cost); err != nil {
			return nil, fmt.Errorf("failed to scan model cost: %w", err)
		}
		summary.ByModel[model] = cost
	}
	return summary, modelRows.Err()
}
