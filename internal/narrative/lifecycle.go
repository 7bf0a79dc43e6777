package narrative

import (
	"math"
	"sort"
	"time"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
)

// Lifecycle thresholds.
const (
	hotArticleCount    = 7
	hotVelocity        = 3.0
	risingVelocity     = 1.5
	reactivateIn48h    = 4.0
	coolingDays        = 3.0
	defaultDormantDays = 7.0
)

// Engine classifies narrative lifecycle states and maintains the
// transition history and resurrection bookkeeping.
type Engine struct {
	dormantDays float64
	now         func() time.Time
}

// NewEngine creates a lifecycle engine from config.
func NewEngine(cfg config.Narrative) *Engine {
	dormantDays := float64(cfg.DormantDaysThreshold)
	if dormantDays <= 0 {
		dormantDays = defaultDormantDays
	}
	return &Engine{
		dormantDays: dormantDays,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Classify returns the lifecycle state for the given activity profile.
// prevState is the last recorded state, empty for new narratives.
// Recent activity over 24h/48h is proxied from the articles-per-day
// velocity (x1 and x2).
func (e *Engine) Classify(articleCount int, velocity float64, lastUpdated time.Time, prevState core.LifecycleState) core.LifecycleState {
	now := e.now()
	articles24h := velocity
	articles48h := velocity * 2

	wasQuiet := prevState == core.StateEcho || prevState == core.StateDormant
	if wasQuiet && articles48h >= reactivateIn48h {
		return core.StateReactivated
	}
	if prevState == core.StateDormant && articles24h >= 1 && articles24h <= 3 && articles48h < reactivateIn48h {
		return core.StateEcho
	}

	daysSinceUpdate := now.Sub(lastUpdated).Hours() / 24
	if daysSinceUpdate >= e.dormantDays {
		return core.StateDormant
	}
	if daysSinceUpdate >= coolingDays {
		return core.StateCooling
	}

	if articleCount >= hotArticleCount || velocity >= hotVelocity {
		return core.StateHot
	}
	if velocity >= risingVelocity && articleCount < hotArticleCount {
		return core.StateRising
	}
	return core.StateEmerging
}

// Apply classifies the narrative, appends a history entry when the
// state changed and handles dormancy and resurrection bookkeeping.
func (e *Engine) Apply(n *core.Narrative) {
	prev := lastHistoryState(n)
	state := e.Classify(n.ArticleCount, n.MentionVelocity, n.LastUpdated, prev)
	e.Transition(n, state)
}

// Transition moves the narrative into the given state, recording
// history and side effects. A no-op when the state is unchanged.
func (e *Engine) Transition(n *core.Narrative, state core.LifecycleState) {
	prev := lastHistoryState(n)
	n.LifecycleState = state
	if prev == state && len(n.LifecycleHistory) > 0 {
		return
	}

	now := e.now()
	n.LifecycleHistory = append(n.LifecycleHistory, core.LifecycleEvent{
		State:           state,
		Timestamp:       now,
		ArticleCount:    n.ArticleCount,
		MentionVelocity: n.MentionVelocity,
	})

	switch state {
	case core.StateDormant:
		if n.DormantSince == nil {
			t := now
			n.DormantSince = &t
		}
	case core.StateReactivated:
		e.recordResurrection(n)
	}
}

// recordResurrection fills the reawakening fields on a transition into
// the reactivated state.
func (e *Engine) recordResurrection(n *core.Narrative) {
	// The history entry just appended is the reactivation itself;
	// scan backward past it for the quiet period being left behind.
	for i := len(n.LifecycleHistory) - 2; i >= 0; i-- {
		entry := n.LifecycleHistory[i]
		if entry.State == core.StateDormant || entry.State == core.StateEcho {
			t := entry.Timestamp
			n.ReawakenedFrom = &t
			break
		}
	}
	n.ReawakeningCount++
	n.ResurrectionVelocity = n.MentionVelocity * 2
	n.DormantSince = nil
}

func lastHistoryState(n *core.Narrative) core.LifecycleState {
	if len(n.LifecycleHistory) == 0 {
		return ""
	}
	return n.LifecycleHistory[len(n.LifecycleHistory)-1].State
}

// GraceDays computes the adaptive matching window in days. Fast
// stories expire quickly; slow ones hold a longer window.
func GraceDays(velocity float64) float64 {
	days := 14 / math.Max(velocity, 0.5)
	if days < 7 {
		return 7
	}
	if days > 30 {
		return 30
	}
	return days
}

// MentionVelocity returns articles per day over the trailing 7 days.
func MentionVelocity(published []time.Time, now time.Time) float64 {
	cutoff := now.Add(-7 * 24 * time.Hour)
	recent := 0
	for _, t := range published {
		if t.After(cutoff) {
			recent++
		}
	}
	return float64(recent) / 7
}

// Momentum labels the trajectory by splitting the sorted publication
// times at the midpoint and comparing per-half rates. Fewer than three
// articles is unknown.
func Momentum(published []time.Time) string {
	if len(published) < 3 {
		return core.MomentumUnknown
	}

	sorted := make([]time.Time, len(published))
	copy(sorted, published)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	mid := len(sorted) / 2
	olderRate := halfRate(sorted[:mid])
	recentRate := halfRate(sorted[mid:])
	if olderRate == 0 {
		return core.MomentumGrowing
	}

	ratio := recentRate / olderRate
	switch {
	case ratio >= 1.3:
		return core.MomentumGrowing
	case ratio <= 0.7:
		return core.MomentumDeclining
	default:
		return core.MomentumStable
	}
}

// halfRate is articles per day within one half, with a one-hour floor
// on the span so single-burst halves stay finite.
func halfRate(times []time.Time) float64 {
	if len(times) == 0 {
		return 0
	}
	span := times[len(times)-1].Sub(times[0]).Hours() / 24
	if span < 1.0/24 {
		span = 1.0 / 24
	}
	return float64(len(times)) / span
}

// RecencyScore decays from 1 with a 24-hour time constant: exactly
// 1/e one day after the newest article.
func RecencyScore(newest, now time.Time) float64 {
	if newest.IsZero() {
		return 0
	}
	hours := now.Sub(newest).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Exp(-hours / 24)
}
