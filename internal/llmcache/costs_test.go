package llmcache

import (
	"math"
	"testing"
	"time"

	"cryptopulse/internal/store"
)

func TestComputeCost(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		input    int
		output   int
		expected float64
	}{
		{"cheap model", "gemini-flash-lite-latest", 1_000_000, 1_000_000, 0.50},
		{"capable model", "gemini-flash-latest", 1_000_000, 0, 0.30},
		{"unknown model uses default", "gemini-experimental", 1_000_000, 0, 0.30},
		{"zero tokens", "gemini-flash-latest", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeCost(tt.model, tt.input, tt.output)
			if math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("ComputeCost = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEstimateTokenCount(t *testing.T) {
	if got := EstimateTokenCount(""); got != 0 {
		t.Errorf("empty text = %d tokens, want 0", got)
	}
	// 7 characters at 3.5 chars per token rounds up to 2.
	if got := EstimateTokenCount("abcdefg"); got != 2 {
		t.Errorf("7 chars = %d tokens, want 2", got)
	}
	if got := EstimateTokenCount("ab"); got != 1 {
		t.Errorf("2 chars = %d tokens, want 1", got)
	}
}

func TestCostTrackerSummary(t *testing.T) {
	st, err := store.NewMemoryStore()
	if err != nil {
		t.Fatalf("failed to open memory store: %v", err)
	}
	defer st.Close()

	tracker := NewCostTracker(st)
	tracker.RecordCall("sentiment", "gemini-flash-lite-latest", 1000, 100)
	tracker.RecordCall("summarize_cluster", "gemini-flash-latest", 2000, 500)
	tracker.RecordCacheHit("sentiment", "gemini-flash-lite-latest", "somekey")

	summary, err := tracker.Summary(time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.TotalCalls != 3 {
		t.Errorf("total calls = %d, want 3", summary.TotalCalls)
	}
	if summary.CachedCalls != 1 {
		t.Errorf("cached calls = %d, want 1", summary.CachedCalls)
	}
	if summary.TotalCostUSD <= 0 {
		t.Error("expected positive total cost")
	}
	if len(summary.ByOperation) != 2 {
		t.Errorf("operations = %d, want 2", len(summary.ByOperation))
	}
	if summary.InputTokens != 3000 {
		t.Errorf("input tokens = %d, want 3000", summary.InputTokens)
	}
}
