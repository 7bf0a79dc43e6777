package llmcache

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// ModelPricing is the per-model cost table entry, in USD per 1M tokens.
type ModelPricing struct {
	InputCostPer1M  float64
	OutputCostPer1M float64
}

// PricingTable contains Gemini pricing as of mid 2025. Unknown models
// fall back to DefaultPricing rather than recording zero cost.
var PricingTable = map[string]ModelPricing{
	"gemini-flash-lite-latest": {InputCostPer1M: 0.10, OutputCostPer1M: 0.40},
	"gemini-flash-latest":      {InputCostPer1M: 0.30, OutputCostPer1M: 2.50},
	"gemini-2.5-flash":         {InputCostPer1M: 0.30, OutputCostPer1M: 2.50},
	"gemini-2.5-flash-lite":    {InputCostPer1M: 0.10, OutputCostPer1M: 0.40},
	"gemini-2.0-flash":         {InputCostPer1M: 0.10, OutputCostPer1M: 0.40},
	"gemini-1.5-flash":         {InputCostPer1M: 0.075, OutputCostPer1M: 0.30},
	"gemini-1.5-pro":           {InputCostPer1M: 3.50, OutputCostPer1M: 10.50},
}

// DefaultPricing is applied to models missing from the table.
var DefaultPricing = ModelPricing{InputCostPer1M: 0.30, OutputCostPer1M: 2.50}

// PricingFor returns the pricing for a model, falling back to the default.
func PricingFor(model string) ModelPricing {
	if p, ok := PricingTable[model]; ok {
		return p
	}
	return DefaultPricing
}

// ComputeCost returns the USD cost of a call.
func ComputeCost(model string, inputTokens, outputTokens int) float64 {
	p := PricingFor(model)
	return float64(inputTokens)/1e6*p.InputCostPer1M +
		float64(outputTokens)/1e6*p.OutputCostPer1M
}

// EstimateTokenCount provides a rough estimation of token count for text.
// Roughly 1 token per 3.5 characters for English text, with headroom
// for special tokens and formatting.
func EstimateTokenCount(text string) int {
	text = strings.TrimSpace(text)
	text = strings.ReplaceAll(text, "\n", " ")
	charCount := utf8.RuneCountInString(text)
	return int(math.Ceil(float64(charCount) / 3.5))
}

// CostTracker records per-call API spend.
type CostTracker struct {
	store *store.Store
}

// NewCostTracker creates a tracker over the store.
func NewCostTracker(st *store.Store) *CostTracker {
	return &CostTracker{store: st}
}

// RecordCall records one API call. Cost recording is best effort:
// failures are logged and never propagate to the caller.
func (t *CostTracker) RecordCall(operation, model string, inputTokens, outputTokens int) {
	record := &core.CostRecord{
		Timestamp:    time.Now().UTC(),
		Operation:    operation,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      ComputeCost(model, inputTokens, outputTokens),
	}
	if err := t.store.SaveCostRecord(record); err != nil {
		logger.Error("failed to record api cost", err, "operation", operation, "model", model)
	}
}

// RecordCacheHit records a cache-served call at zero cost so hit
// traffic stays visible in spend reports.
func (t *CostTracker) RecordCacheHit(operation, model, cacheKey string) {
	record := &core.CostRecord{
		Timestamp: time.Now().UTC(),
		Operation: operation,
		Model:     model,
		Cached:    true,
		CacheKey:  cacheKey,
	}
	if err := t.store.SaveCostRecord(record); err != nil {
		logger.Error("failed to record cache hit", err, "operation", operation)
	}
}

// Summary aggregates spend since the cutoff.
func (t *CostTracker) Summary(since time.Time) (*store.CostSummary, error) {
	return t.store.GetCostSummary(since)
}
