package selective

import (
	"context"
	"errors"
	"testing"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
)

var testCfg = config.Enrich{
	PremiumSources: []string{"coindesk", "theblock"},
	SkipLLMSources: []string{"cryptopotato", "newsbtc"},
}

type fakeExtractor struct {
	entities map[int][]core.Entity
	err      error
	calls    int
	batch    []*core.Article
}

func (f *fakeExtractor) ExtractEntitiesBatch(ctx context.Context, articles []*core.Article) (map[int][]core.Entity, error) {
	f.calls++
	f.batch = articles
	return f.entities, f.err
}

func TestMethod(t *testing.T) {
	p := NewProcessor(&fakeExtractor{}, testCfg)

	tests := []struct {
		name     string
		source   string
		title    string
		expected string
	}{
		{"premium source", "coindesk", "Anything at all", MethodLLM},
		{"premium source case insensitive", "CoinDesk", "Anything at all", MethodLLM},
		{"skip source", "cryptopotato", "Bitcoin hits new high", MethodRules},
		{"keyword routes to llm", "someblog", "Bitcoin breaks above resistance", MethodLLM},
		{"regulator keyword", "someblog", "SEC delays decision again", MethodLLM},
		{"no keyword stays on rules", "someblog", "New wallet app launches", MethodRules},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article := &core.Article{Source: tt.source, Title: tt.title}
			if got := p.Method(article); got != tt.expected {
				t.Errorf("Method = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestExtractRuleBased(t *testing.T) {
	p := NewProcessor(&fakeExtractor{}, testCfg)

	article := &core.Article{
		Title: "Coinbase lists new token as BTC rallies",
		Body:  "The move comes as the SEC weighs pending applications.",
	}
	entities := p.ExtractRuleBased(article)

	byName := make(map[string]core.Entity, len(entities))
	for _, e := range entities {
		byName[e.Name] = e
	}

	btc, ok := byName["Bitcoin"]
	if !ok {
		t.Fatal("expected BTC ticker to resolve to Bitcoin")
	}
	if btc.Confidence != 0.85 {
		t.Errorf("title entity confidence = %v, want 0.85", btc.Confidence)
	}

	coinbase, ok := byName["Coinbase"]
	if !ok {
		t.Fatal("expected Coinbase from title")
	}
	if coinbase.Type != "company" {
		t.Errorf("Coinbase type = %s, want company", coinbase.Type)
	}

	sec, ok := byName["SEC"]
	if !ok {
		t.Fatal("expected SEC from body")
	}
	if sec.Confidence != 0.7 {
		t.Errorf("body entity confidence = %v, want 0.7", sec.Confidence)
	}
	if sec.Primary {
		t.Error("body entity must not be primary")
	}

	primaries := 0
	for _, e := range entities {
		if e.Primary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Errorf("primary count = %d, want exactly 1", primaries)
	}
}

func TestExtractRuleBasedIgnoresAmbiguousAliases(t *testing.T) {
	p := NewProcessor(&fakeExtractor{}, testCfg)

	article := &core.Article{
		Title: "A new strategy to render pages near the edge",
	}
	for _, e := range p.ExtractRuleBased(article) {
		switch e.Name {
		case "MicroStrategy", "Render", "Near":
			t.Errorf("ambiguous alias matched %s in plain prose", e.Name)
		}
	}
}

func TestProcessBatch(t *testing.T) {
	extractor := &fakeExtractor{
		entities: map[int][]core.Entity{
			0: {{Type: "cryptocurrency", Name: "Ethereum", Confidence: 0.9, Primary: true}},
		},
	}
	p := NewProcessor(extractor, testCfg)

	articles := []*core.Article{
		{ID: "a1", Source: "coindesk", Title: "Ethereum upgrade ships"},
		{ID: "a2", Source: "cryptopotato", Title: "Solana gains on the week"},
	}

	result, err := p.ProcessBatch(context.Background(), articles)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}

	if extractor.calls != 1 {
		t.Errorf("extractor called %d times, want 1", extractor.calls)
	}
	if len(extractor.batch) != 1 || extractor.batch[0].ID != "a1" {
		t.Error("expected only the premium article in the LLM batch")
	}
	if result.LLMCount != 1 || result.RuleCount != 1 {
		t.Errorf("counts = %d llm / %d rules, want 1/1", result.LLMCount, result.RuleCount)
	}
	if len(result.Entities["a1"]) != 1 || result.Entities["a1"][0].Name != "Ethereum" {
		t.Error("LLM entities not mapped to article a1")
	}
	if _, ok := result.Entities["a2"]; !ok {
		t.Error("rule-based article missing from result")
	}
}

func TestProcessBatchFallbackWhenLLMSkips(t *testing.T) {
	// Empty map means the LLM returned nothing for any index.
	extractor := &fakeExtractor{entities: map[int][]core.Entity{}}
	p := NewProcessor(extractor, testCfg)

	articles := []*core.Article{
		{ID: "a1", Source: "coindesk", Title: "Bitcoin miners expand capacity"},
	}
	result, err := p.ProcessBatch(context.Background(), articles)
	if err != nil {
		t.Fatalf("ProcessBatch failed: %v", err)
	}
	if result.LLMCount != 0 || result.RuleCount != 1 {
		t.Errorf("counts = %d llm / %d rules, want 0/1", result.LLMCount, result.RuleCount)
	}
	entities := result.Entities["a1"]
	if len(entities) == 0 || entities[0].Name != "Bitcoin" {
		t.Error("expected rule-based fallback to find Bitcoin")
	}
}

func TestProcessBatchError(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("api down")}
	p := NewProcessor(extractor, testCfg)

	articles := []*core.Article{
		{ID: "a1", Source: "coindesk", Title: "Bitcoin steady"},
	}
	if _, err := p.ProcessBatch(context.Background(), articles); err == nil {
		t.Error("expected error when batch extraction fails")
	}
}
