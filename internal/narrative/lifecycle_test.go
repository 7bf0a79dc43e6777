package narrative

import (
	"math"
	"testing"
	"time"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
)

func testEngine(now time.Time) *Engine {
	e := NewEngine(config.Narrative{})
	e.now = func() time.Time { return now }
	return e
}

func TestClassify(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	e := testEngine(now)

	tests := []struct {
		name         string
		articleCount int
		velocity     float64
		lastUpdated  time.Time
		prevState    core.LifecycleState
		expected     core.LifecycleState
	}{
		{
			name:         "dormant with a burst reactivates",
			articleCount: 10,
			velocity:     2.5,
			lastUpdated:  now.Add(-time.Hour),
			prevState:    core.StateDormant,
			expected:     core.StateReactivated,
		},
		{
			name:         "echo also reactivates on a burst",
			articleCount: 10,
			velocity:     2.0,
			lastUpdated:  now.Add(-time.Hour),
			prevState:    core.StateEcho,
			expected:     core.StateReactivated,
		},
		{
			name:         "dormant with a trickle is echo",
			articleCount: 10,
			velocity:     1.5,
			lastUpdated:  now.Add(-time.Hour),
			prevState:    core.StateDormant,
			expected:     core.StateEcho,
		},
		{
			name:         "stale past a week is dormant",
			articleCount: 10,
			velocity:     0,
			lastUpdated:  now.Add(-8 * 24 * time.Hour),
			prevState:    core.StateHot,
			expected:     core.StateDormant,
		},
		{
			name:         "quiet for three days is cooling",
			articleCount: 10,
			velocity:     0.5,
			lastUpdated:  now.Add(-4 * 24 * time.Hour),
			prevState:    core.StateHot,
			expected:     core.StateCooling,
		},
		{
			name:         "dormancy outranks activity thresholds",
			articleCount: 20,
			velocity:     0,
			lastUpdated:  now.Add(-10 * 24 * time.Hour),
			prevState:    core.StateHot,
			expected:     core.StateDormant,
		},
		{
			name:         "seven articles is hot",
			articleCount: 7,
			velocity:     1.0,
			lastUpdated:  now.Add(-time.Hour),
			expected:     core.StateHot,
		},
		{
			name:         "high velocity alone is hot",
			articleCount: 3,
			velocity:     3.0,
			lastUpdated:  now.Add(-time.Hour),
			expected:     core.StateHot,
		},
		{
			name:         "moderate velocity below the count is rising",
			articleCount: 4,
			velocity:     1.5,
			lastUpdated:  now.Add(-time.Hour),
			expected:     core.StateRising,
		},
		{
			name:         "everything else is emerging",
			articleCount: 3,
			velocity:     0.5,
			lastUpdated:  now.Add(-time.Hour),
			expected:     core.StateEmerging,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Classify(tt.articleCount, tt.velocity, tt.lastUpdated, tt.prevState)
			if got != tt.expected {
				t.Errorf("Classify = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestTransitionHistory(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	e := testEngine(now)

	n := &core.Narrative{ArticleCount: 4, MentionVelocity: 1.5}
	e.Transition(n, core.StateRising)
	if len(n.LifecycleHistory) != 1 {
		t.Fatalf("history length = %d, want 1", len(n.LifecycleHistory))
	}
	if n.LifecycleHistory[0].State != core.StateRising {
		t.Errorf("history state = %s, want rising", n.LifecycleHistory[0].State)
	}

	// Same state again appends nothing.
	e.Transition(n, core.StateRising)
	if len(n.LifecycleHistory) != 1 {
		t.Errorf("history length = %d after no-op transition, want 1", len(n.LifecycleHistory))
	}

	e.Transition(n, core.StateHot)
	if len(n.LifecycleHistory) != 2 {
		t.Errorf("history length = %d, want 2", len(n.LifecycleHistory))
	}
}

func TestTransitionDormantSetsDormantSince(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	e := testEngine(now)

	n := &core.Narrative{}
	e.Transition(n, core.StateDormant)
	if n.DormantSince == nil || !n.DormantSince.Equal(now) {
		t.Fatalf("dormant_since = %v, want %v", n.DormantSince, now)
	}

	// An already-set dormant_since is not overwritten.
	later := now.Add(48 * time.Hour)
	e.now = func() time.Time { return later }
	e.Transition(n, core.StateCooling)
	n.DormantSince = &now
	e.Transition(n, core.StateDormant)
	if !n.DormantSince.Equal(now) {
		t.Errorf("dormant_since moved to %v, want original %v", n.DormantSince, now)
	}
}

func TestTransitionReactivatedRecordsResurrection(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	e := testEngine(now.Add(-5 * 24 * time.Hour))

	n := &core.Narrative{ArticleCount: 5, MentionVelocity: 2.5}
	e.Transition(n, core.StateHot)
	e.Transition(n, core.StateDormant)
	dormantAt := n.LifecycleHistory[len(n.LifecycleHistory)-1].Timestamp

	e.now = func() time.Time { return now }
	e.Transition(n, core.StateReactivated)

	if n.ReawakeningCount != 1 {
		t.Errorf("reawakening count = %d, want 1", n.ReawakeningCount)
	}
	if n.ReawakenedFrom == nil || !n.ReawakenedFrom.Equal(dormantAt) {
		t.Errorf("reawakened_from = %v, want dormant entry time %v", n.ReawakenedFrom, dormantAt)
	}
	if n.ResurrectionVelocity != 5.0 {
		t.Errorf("resurrection velocity = %v, want 2x mention velocity", n.ResurrectionVelocity)
	}
	if n.DormantSince != nil {
		t.Error("dormant_since should be cleared on reactivation")
	}
}

func TestGraceDays(t *testing.T) {
	tests := []struct {
		velocity float64
		expected float64
	}{
		{2.0, 7},  // 14/2 = 7, right at the floor
		{4.0, 7},  // 3.5 clamped up
		{1.0, 14}, // 14/1
		{0.5, 28}, // 14/0.5
		{0.1, 28}, // velocity floored at 0.5
		{0, 28},   // same floor
	}
	for _, tt := range tests {
		if got := GraceDays(tt.velocity); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("GraceDays(%v) = %v, want %v", tt.velocity, got, tt.expected)
		}
	}
}

func TestMentionVelocity(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	published := []time.Time{
		now.Add(-1 * time.Hour),
		now.Add(-2 * 24 * time.Hour),
		now.Add(-6 * 24 * time.Hour),
		now.Add(-7 * 24 * time.Hour),  // exactly at the cutoff, excluded
		now.Add(-10 * 24 * time.Hour), // outside the window
	}
	got := MentionVelocity(published, now)
	if math.Abs(got-3.0/7) > 1e-9 {
		t.Errorf("velocity = %v, want 3/7", got)
	}

	if MentionVelocity(nil, now) != 0 {
		t.Error("empty history should have zero velocity")
	}
}

func TestMomentum(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	t.Run("too few articles is unknown", func(t *testing.T) {
		published := []time.Time{base, base.Add(day)}
		if got := Momentum(published); got != core.MomentumUnknown {
			t.Errorf("momentum = %s, want unknown", got)
		}
	})

	t.Run("accelerating coverage grows", func(t *testing.T) {
		published := []time.Time{
			base,
			base.Add(4 * day),
			base.Add(5 * day),
			base.Add(5*day + 6*time.Hour),
		}
		if got := Momentum(published); got != core.MomentumGrowing {
			t.Errorf("momentum = %s, want growing", got)
		}
	})

	t.Run("fading coverage declines", func(t *testing.T) {
		published := []time.Time{
			base,
			base.Add(6 * time.Hour),
			base.Add(4 * day),
			base.Add(8 * day),
		}
		if got := Momentum(published); got != core.MomentumDeclining {
			t.Errorf("momentum = %s, want declining", got)
		}
	})

	t.Run("even cadence is stable", func(t *testing.T) {
		published := []time.Time{
			base,
			base.Add(1 * day),
			base.Add(2 * day),
			base.Add(3 * day),
			base.Add(4 * day),
			base.Add(5 * day),
		}
		if got := Momentum(published); got != core.MomentumStable {
			t.Errorf("momentum = %s, want stable", got)
		}
	})

	t.Run("order independent", func(t *testing.T) {
		published := []time.Time{
			base.Add(5 * day),
			base,
			base.Add(4 * day),
			base.Add(5*day + 6*time.Hour),
		}
		if got := Momentum(published); got != core.MomentumGrowing {
			t.Errorf("momentum = %s, want growing regardless of input order", got)
		}
	})
}

func TestRecencyScore(t *testing.T) {
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	if got := RecencyScore(time.Time{}, now); got != 0 {
		t.Errorf("zero newest = %v, want 0", got)
	}
	if got := RecencyScore(now, now); got != 1 {
		t.Errorf("fresh = %v, want 1", got)
	}
	if got := RecencyScore(now.Add(-24*time.Hour), now); math.Abs(got-math.Exp(-1)) > 1e-9 {
		t.Errorf("one day old = %v, want 1/e", got)
	}
	if got := RecencyScore(now.Add(time.Hour), now); got != 1 {
		t.Errorf("future timestamp = %v, want clamped to 1", got)
	}
}
