package signals

import (
	"fmt"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
)

// Trending returns the top entities for a window with score at or
// above minScore. Candidates are oversampled 2x and probed against the
// mentions collection so stale rows never surface.
func (sc *Scorer) Trending(window string, limit int, minScore float64) ([]*core.SignalScore, error) {
	if limit <= 0 {
		limit = 10
	}
	candidates, err := sc.store.GetTopSignals(window, limit*2)
	if err != nil {
		return nil, fmt.Errorf("failed to load trending candidates: %w", err)
	}

	trending := make([]*core.SignalScore, 0, limit)
	for _, candidate := range candidates {
		if len(trending) >= limit {
			break
		}
		if candidate.Window(window).Score < minScore {
			continue
		}
		alive, err := sc.store.EntityMentionExists(candidate.Entity)
		if err != nil {
			return nil, err
		}
		if !alive {
			continue
		}
		trending = append(trending, candidate)
	}
	return trending, nil
}

// CleanupStale deletes every signal score whose entity has no mentions
// left. Returns the number removed.
func (sc *Scorer) CleanupStale() (int, error) {
	entities, err := sc.store.GetAllSignalEntities()
	if err != nil {
		return 0, fmt.Errorf("failed to load signal entities: %w", err)
	}

	removed := 0
	for _, entity := range entities {
		alive, err := sc.store.EntityMentionExists(entity)
		if err != nil {
			return removed, err
		}
		if alive {
			continue
		}
		if err := sc.store.DeleteSignalScore(entity); err != nil {
			logger.Error("failed to delete stale signal", err, "entity", entity)
			continue
		}
		removed++
	}
	if removed > 0 {
		logger.Info("stale signal cleanup", "removed", removed)
	}
	return removed, nil
}
