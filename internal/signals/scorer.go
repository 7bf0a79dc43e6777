// Package signals maintains the per-entity signal scores: windowed
// velocity, source diversity and sentiment aggregates over primary
// entity mentions.
package signals

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// scoreCeiling calibrates the raw composite into [0, 10].
const scoreCeiling = 40.0

// Scorer computes and persists signal scores.
type Scorer struct {
	store *store.Store
	now   func() time.Time
}

// NewScorer creates a scorer. The clock is injectable for tests.
func NewScorer(st *store.Store) *Scorer {
	return &Scorer{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// CycleResult summarizes one scoring cycle.
type CycleResult struct {
	Scored int `json:"scored"`
	Failed int `json:"failed"`
}

// Run rescoring for every entity active in the last 30 days.
func (sc *Scorer) Run(ctx context.Context) (*CycleResult, error) {
	now := sc.now()
	entities, err := sc.store.GetActiveEntities(now.Add(-30 * 24 * time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to load active entities: %w", err)
	}

	membership, err := sc.narrativeMembership()
	if err != nil {
		return nil, err
	}

	result := &CycleResult{}
	for _, entity := range entities {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := sc.scoreEntity(ctx, entity, membership); err != nil {
			logger.Error("failed to score entity", err, "entity", entity)
			result.Failed++
			continue
		}
		result.Scored++
	}
	logger.Info("signal scoring complete", "scored", result.Scored, "failed", result.Failed)
	return result, nil
}

// ScoreEntity recomputes one entity's score across all three windows
// in parallel and upserts the result.
func (sc *Scorer) ScoreEntity(ctx context.Context, entity string) error {
	membership, err := sc.narrativeMembership()
	if err != nil {
		return err
	}
	return sc.scoreEntity(ctx, entity, membership)
}

func (sc *Scorer) scoreEntity(ctx context.Context, entity string, membership map[string][]string) error {
	now := sc.now()

	var day, week, month []*core.EntityMention
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		day, err = sc.loadWindow(gctx, entity, core.Window24h, now)
		return err
	})
	g.Go(func() error {
		var err error
		week, err = sc.loadWindow(gctx, entity, core.Window7d, now)
		return err
	})
	g.Go(func() error {
		var err error
		month, err = sc.loadWindow(gctx, entity, core.Window30d, now)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	// The 30d window is a superset of the others; it carries the
	// windowless aggregates.
	sourceCount := distinctSources(month)
	sentiment := sentimentStats(month)

	score := &core.SignalScore{
		Entity:      entity,
		EntityType:  entityType(month),
		Day:         windowMetrics(day, core.WindowHours[core.Window24h], sourceCount, sentiment.Avg, now),
		Week:        windowMetrics(week, core.WindowHours[core.Window7d], sourceCount, sentiment.Avg, now),
		Month:       windowMetrics(month, core.WindowHours[core.Window30d], sourceCount, sentiment.Avg, now),
		SourceCount: sourceCount,
		Sentiment:   sentiment,
		LastUpdated: now,
	}
	score.Score = score.Day.Score
	score.Velocity = score.Day.Velocity
	score.NarrativeIDs = membership[entity]
	score.IsEmerging = len(score.NarrativeIDs) == 0

	// Preserve first_seen from the prior row.
	prior, err := sc.store.GetSignalScore(entity)
	if err != nil {
		return err
	}
	if prior != nil {
		score.FirstSeen = prior.FirstSeen
	}
	if score.FirstSeen.IsZero() {
		score.FirstSeen = now
	}

	return sc.store.SaveSignalScore(score)
}

// narrativeMembership maps each nucleus and key actor to the active
// narratives carrying it. Merged narratives do not count, so an entity
// whose only narrative was consolidated away reads as emerging again.
func (sc *Scorer) narrativeMembership() (map[string][]string, error) {
	narratives, err := sc.store.GetActiveNarratives()
	if err != nil {
		return nil, fmt.Errorf("failed to load narrative membership: %w", err)
	}

	membership := make(map[string][]string)
	for _, n := range narratives {
		seen := make(map[string]bool, len(n.Entities)+1)
		for _, name := range append([]string{n.NucleusEntity}, n.Entities...) {
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			membership[name] = append(membership[name], n.ID)
		}
	}
	return membership, nil
}

func (sc *Scorer) loadWindow(ctx context.Context, entity, window string, now time.Time) ([]*core.EntityMention, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cutoff := now.Add(-time.Duration(core.WindowHours[window]) * time.Hour)
	return sc.store.GetPrimaryMentions(entity, cutoff)
}

// windowMetrics computes one window's velocity, recency and composite score.
func windowMetrics(mentions []*core.EntityMention, windowHours float64, sourceCount int, sentAvg float64, now time.Time) core.WindowMetrics {
	m := core.WindowMetrics{Mentions: len(mentions)}

	lastHour := 0
	var newest time.Time
	hourAgo := now.Add(-time.Hour)
	for _, mention := range mentions {
		if mention.Timestamp.After(hourAgo) {
			lastHour++
		}
		if mention.Timestamp.After(newest) {
			newest = mention.Timestamp
		}
	}

	// Velocity: mentions-last-hour against the window's hourly rate.
	rate := float64(len(mentions)) / windowHours
	if rate == 0 {
		m.Velocity = float64(lastHour)
	} else {
		m.Velocity = float64(lastHour) / rate
	}

	if !newest.IsZero() {
		hoursSince := now.Sub(newest).Hours()
		if hoursSince < 0 {
			hoursSince = 0
		}
		m.Recency = math.Exp(-hoursSince / 24)
	}

	raw := 0.4*m.Velocity + 0.3*float64(sourceCount) + 30*math.Abs(sentAvg)
	if raw > scoreCeiling {
		raw = scoreCeiling
	}
	m.Score = raw / scoreCeiling * 10
	return m
}

func distinctSources(mentions []*core.EntityMention) int {
	sources := make(map[string]bool)
	for _, m := range mentions {
		if m.Source != "" {
			sources[m.Source] = true
		}
	}
	return len(sources)
}

// sentimentStats maps labels onto {+1, 0, -1} and aggregates.
func sentimentStats(mentions []*core.EntityMention) core.SentimentStats {
	if len(mentions) == 0 {
		return core.SentimentStats{}
	}

	values := make([]float64, 0, len(mentions))
	for _, m := range mentions {
		switch m.Sentiment {
		case core.SentimentPositive:
			values = append(values, 1)
		case core.SentimentNegative:
			values = append(values, -1)
		default:
			values = append(values, 0)
		}
	}

	stats := core.SentimentStats{Min: values[0], Max: values[0]}
	var sum float64
	for _, v := range values {
		sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Avg = sum / float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - stats.Avg
		variance += d * d
	}
	stats.Divergence = math.Sqrt(variance / float64(len(values)))
	return stats
}

func entityType(mentions []*core.EntityMention) string {
	for _, m := range mentions {
		if m.EntityType != "" {
			return m.EntityType
		}
	}
	return ""
}
