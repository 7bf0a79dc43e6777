// Package selective routes entity extraction per article: premium
// sources get the LLM, noisy sources get rule-based extraction, and
// everything else is decided by title keywords. The target is to spend
// LLM calls on roughly half the article volume.
package selective

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/normalize"
)

// Extraction methods.
const (
	MethodLLM   = "llm"
	MethodRules = "rules"
)

// importantKeywords route a non-premium, non-skip article to the LLM
// when any of them appears in the title. Major tickers, regulators,
// security terms and market-event terms.
var importantKeywords = []string{
	"bitcoin", "btc", "ethereum", "eth", "solana", "xrp",
	"sec", "cftc", "doj", "fed", "treasury", "regulation", "lawsuit",
	"hack", "exploit", "breach", "stolen", "drained",
	"etf", "blackrock", "fidelity", "grayscale", "microstrategy",
	"halving", "bankruptcy", "liquidation", "stablecoin", "cbdc",
}

// EntityExtractor is the LLM side of the routing decision.
type EntityExtractor interface {
	ExtractEntitiesBatch(ctx context.Context, articles []*core.Article) (map[int][]core.Entity, error)
}

// Processor routes and runs entity extraction.
type Processor struct {
	extractor EntityExtractor
	premium   map[string]bool
	skipLLM   map[string]bool

	keywordPattern *regexp.Regexp
	entityPatterns []entityPattern
}

type entityPattern struct {
	canonical string
	pattern   *regexp.Regexp
}

// NewProcessor builds a processor with precompiled patterns.
func NewProcessor(extractor EntityExtractor, cfg config.Enrich) *Processor {
	p := &Processor{
		extractor: extractor,
		premium:   toSet(cfg.PremiumSources),
		skipLLM:   toSet(cfg.SkipLLMSources),
	}
	p.keywordPattern = regexp.MustCompile(`(?i)\b(` + strings.Join(importantKeywords, "|") + `)\b`)
	p.entityPatterns = compileEntityPatterns()
	return p
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[strings.ToLower(v)] = true
	}
	return set
}

// ambiguousVariants are aliases too close to everyday words to match
// in free text. They still work for exact-name normalization.
var ambiguousVariants = map[string]bool{
	"op": true, "ton": true, "near": true, "atom": true,
	"link": true, "render": true, "strategy": true, "pol": true,
}

// compileEntityPatterns builds one word-bounded pattern per canonical
// entity, variants OR'd in. Sorted for deterministic match order.
func compileEntityPatterns() []entityPattern {
	canonicals := normalize.Canonicals()
	names := make([]string, 0, len(canonicals))
	for name := range canonicals {
		names = append(names, name)
	}
	sort.Strings(names)

	patterns := make([]entityPattern, 0, len(names))
	for _, name := range names {
		var alternatives []string
		if !ambiguousVariants[strings.ToLower(name)] {
			alternatives = append(alternatives, regexp.QuoteMeta(name))
		}
		for _, v := range canonicals[name] {
			if ambiguousVariants[v] {
				continue
			}
			alternatives = append(alternatives, regexp.QuoteMeta(v))
		}
		if len(alternatives) == 0 {
			continue
		}
		pattern := regexp.MustCompile(`(?i)\b(` + strings.Join(alternatives, "|") + `)\b`)
		patterns = append(patterns, entityPattern{canonical: name, pattern: pattern})
	}
	return patterns
}

// Method decides the extraction path for one article.
func (p *Processor) Method(article *core.Article) string {
	source := strings.ToLower(article.Source)
	if p.premium[source] {
		return MethodLLM
	}
	if p.skipLLM[source] {
		return MethodRules
	}
	if p.keywordPattern.MatchString(article.Title) {
		return MethodLLM
	}
	return MethodRules
}

// ExtractRuleBased finds canonical entities with the precompiled
// patterns. The first canonical found in the title is primary with
// confidence 0.85; entities found only in the body are context
// entities with confidence 0.7.
func (p *Processor) ExtractRuleBased(article *core.Article) []core.Entity {
	var entities []core.Entity
	seen := make(map[string]bool)
	havePrimary := false

	for _, ep := range p.entityPatterns {
		if !ep.pattern.MatchString(article.Title) {
			continue
		}
		if seen[ep.canonical] {
			continue
		}
		seen[ep.canonical] = true
		entities = append(entities, core.Entity{
			Type:       entityTypeFor(ep.canonical),
			Name:       ep.canonical,
			Confidence: 0.85,
			Primary:    !havePrimary,
		})
		havePrimary = true
	}

	for _, ep := range p.entityPatterns {
		if seen[ep.canonical] {
			continue
		}
		if !ep.pattern.MatchString(article.Body) {
			continue
		}
		seen[ep.canonical] = true
		entities = append(entities, core.Entity{
			Type:       entityTypeFor(ep.canonical),
			Name:       ep.canonical,
			Confidence: 0.7,
			Primary:    false,
		})
	}
	return entities
}

// BatchResult maps article ID to extracted entities, with per-method counts.
type BatchResult struct {
	Entities  map[string][]core.Entity
	LLMCount  int
	RuleCount int
}

// ProcessBatch splits the articles by method, runs one batched LLM call
// for the LLM side and rule extraction inline for the rest. Articles
// the LLM skipped fall back to rules.
func (p *Processor) ProcessBatch(ctx context.Context, articles []*core.Article) (*BatchResult, error) {
	result := &BatchResult{Entities: make(map[string][]core.Entity, len(articles))}

	var llmArticles []*core.Article
	for _, a := range articles {
		if p.Method(a) == MethodLLM {
			llmArticles = append(llmArticles, a)
			continue
		}
		result.Entities[a.ID] = p.ExtractRuleBased(a)
		result.RuleCount++
	}

	if len(llmArticles) == 0 {
		return result, nil
	}

	extracted, err := p.extractor.ExtractEntitiesBatch(ctx, llmArticles)
	if err != nil {
		return nil, fmt.Errorf("batch entity extraction failed: %w", err)
	}
	for i, a := range llmArticles {
		entities, ok := extracted[i]
		if !ok || len(entities) == 0 {
			logger.Debug("llm skipped article, falling back to rules", "article", a.ID)
			result.Entities[a.ID] = p.ExtractRuleBased(a)
			result.RuleCount++
			continue
		}
		result.Entities[a.ID] = entities
		result.LLMCount++
	}
	return result, nil
}

// organizationEntities are the canonical names that are not crypto assets.
var organizationEntities = map[string]string{
	"Binance": "company", "Coinbase": "company", "Kraken": "company",
	"OKX": "company", "Bybit": "company", "Gemini": "company",
	"Bitfinex": "company", "Crypto.com": "company", "BlackRock": "company",
	"Fidelity": "company", "Grayscale": "company", "MicroStrategy": "company",
	"Tesla": "company", "PayPal": "company", "Visa": "company",
	"Mastercard": "company", "JPMorgan": "company", "Goldman Sachs": "company",
	"Circle": "company", "Ripple": "company", "ConsenSys": "company",
	"OpenSea": "company", "Chainalysis": "company", "Galaxy Digital": "company",
	"FTX": "company", "Celsius": "company", "Genesis": "company",
	"SEC": "organization", "CFTC": "organization", "DOJ": "organization",
	"IRS": "organization", "Federal Reserve": "organization",
	"Treasury": "organization", "FinCEN": "organization", "OFAC": "organization",
	"ECB": "organization", "IMF": "organization", "FCA": "organization",
	"ESMA": "organization",
}

func entityTypeFor(canonical string) string {
	if t, ok := organizationEntities[canonical]; ok {
		return t
	}
	return "cryptocurrency"
}
