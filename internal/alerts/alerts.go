// Package alerts evaluates signal scores against thresholds and
// records breaches for the API surface.
package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/signals"
	"cryptopulse/internal/store"
)

// Alert rule names.
const (
	TypeScoreSpike     = "score_spike"
	TypeVelocitySurge  = "velocity_surge"
	TypeSentimentSplit = "sentiment_divergence"
)

// dedupWindow suppresses repeat alerts for the same entity and rule.
const dedupWindow = 6 * time.Hour

// Detector evaluates the trending set each cycle.
type Detector struct {
	store  *store.Store
	scorer *signals.Scorer
	cfg    config.Alerts
	now    func() time.Time
}

// NewDetector creates an alert detector.
func NewDetector(st *store.Store, scorer *signals.Scorer, cfg config.Alerts) *Detector {
	return &Detector{
		store:  st,
		scorer: scorer,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run checks the 24h trending entities against every rule. Returns the
// number of alerts raised.
func (d *Detector) Run() (int, error) {
	trending, err := d.scorer.Trending(core.Window24h, 50, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to load trending entities: %w", err)
	}

	raised := 0
	for _, score := range trending {
		raised += d.evaluate(score)
	}
	if raised > 0 {
		logger.Info("alert cycle complete", "raised", raised)
	}
	return raised, nil
}

func (d *Detector) evaluate(score *core.SignalScore) int {
	raised := 0

	if d.cfg.ScoreThreshold > 0 && score.Day.Score >= d.cfg.ScoreThreshold {
		severity := core.SeverityWarning
		if score.Day.Score >= d.cfg.ScoreThreshold*1.25 {
			severity = core.SeverityCritical
		}
		raised += d.raise(score.Entity, TypeScoreSpike, severity,
			fmt.Sprintf("%s signal score hit %.1f", score.Entity, score.Day.Score),
			score.Day.Score, d.cfg.ScoreThreshold)
	}

	if d.cfg.VelocityThreshold > 0 && score.Day.Velocity >= d.cfg.VelocityThreshold {
		raised += d.raise(score.Entity, TypeVelocitySurge, core.SeverityWarning,
			fmt.Sprintf("%s mention velocity hit %.1f", score.Entity, score.Day.Velocity),
			score.Day.Velocity, d.cfg.VelocityThreshold)
	}

	if d.cfg.DivergenceThreshold > 0 && score.Sentiment.Divergence >= d.cfg.DivergenceThreshold {
		raised += d.raise(score.Entity, TypeSentimentSplit, core.SeverityInfo,
			fmt.Sprintf("%s sentiment is split (divergence %.2f)", score.Entity, score.Sentiment.Divergence),
			score.Sentiment.Divergence, d.cfg.DivergenceThreshold)
	}
	return raised
}

// raise records one alert unless an unresolved duplicate exists inside
// the dedup window.
func (d *Detector) raise(entity, alertType, severity, message string, value, threshold float64) int {
	now := d.now()
	recent, err := d.store.HasRecentAlert(entity, alertType, now.Add(-dedupWindow))
	if err != nil {
		logger.Error("failed to check alert dedup", err, "entity", entity)
		return 0
	}
	if recent {
		return 0
	}

	alert := &core.Alert{
		ID:        uuid.NewString(),
		Entity:    entity,
		Type:      alertType,
		Severity:  severity,
		Message:   message,
		Value:     value,
		Threshold: threshold,
		CreatedAt: now,
	}
	if err := d.store.SaveAlert(alert); err != nil {
		logger.Error("failed to save alert", err, "entity", entity, "type", alertType)
		return 0
	}
	return 1
}
