// Package enrich orchestrates per-article enrichment: tier
// classification, sentiment, relevance, themes, keywords, entity
// extraction and mention persistence.
package enrich

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
	"cryptopulse/internal/llmcache"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/normalize"
	"cryptopulse/internal/relevance"
	"cryptopulse/internal/selective"
	"cryptopulse/internal/store"
)

// Scorer is the LLM surface the pipeline needs.
type Scorer interface {
	SentimentScore(ctx context.Context, article *core.Article) (float64, error)
	RelevanceScore(ctx context.Context, article *core.Article) (float64, error)
	Themes(ctx context.Context, article *core.Article) ([]string, error)
}

// Pipeline enriches unprocessed articles batch by batch.
type Pipeline struct {
	store      *store.Store
	scorer     Scorer
	classifier *relevance.Classifier
	processor  *selective.Processor
	cache      *llmcache.Cache
	batchSize  int

	cycles int
}

// NewPipeline wires the enrichment pipeline.
func NewPipeline(st *store.Store, scorer Scorer, processor *selective.Processor,
	cache *llmcache.Cache, cfg config.Enrich) *Pipeline {
	batchSize := cfg.EntityExtractionBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	return &Pipeline{
		store:      st,
		scorer:     scorer,
		classifier: relevance.NewClassifier(),
		processor:  processor,
		cache:      cache,
		batchSize:  batchSize,
	}
}

// Result summarizes one enrichment cycle.
type Result struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Mentions  int `json:"mentions"`
}

// Run enriches one batch of unenriched articles. A failing article is
// logged and skipped; the cycle continues.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	articles, err := p.store.GetUnenrichedArticles(p.batchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load unenriched articles: %w", err)
	}
	result := &Result{}
	if len(articles) == 0 {
		return result, nil
	}

	enriched := make([]*core.Article, 0, len(articles))
	for _, article := range articles {
		if err := p.enrichScalars(ctx, article); err != nil {
			logger.Error("failed to enrich article", err, "article", article.ID, "source", article.Source)
			result.Failed++
			continue
		}
		enriched = append(enriched, article)
	}

	batch, err := p.processor.ProcessBatch(ctx, enriched)
	if err != nil {
		// Entity extraction failing wholesale still leaves the scalar
		// enrichment worth persisting.
		logger.Error("entity extraction batch failed", err)
		batch = &selective.BatchResult{Entities: map[string][]core.Entity{}}
	}

	for _, article := range enriched {
		article.Entities = batch.Entities[article.ID]
		article.EnrichedAt = time.Now().UTC()

		if err := p.store.SaveArticle(article); err != nil {
			logger.Error("failed to persist enriched article", err, "article", article.ID)
			result.Failed++
			continue
		}
		// Mentions go in only after the article update commits.
		mentions := buildMentions(article)
		if err := p.store.SaveMentions(mentions); err != nil {
			logger.Error("failed to persist mentions", err, "article", article.ID)
			result.Failed++
			continue
		}
		result.Processed++
		result.Mentions += len(mentions)
	}

	p.cycles++
	if p.cycles%10 == 0 {
		hits, misses := p.cache.Stats()
		logger.Info("llm cache stats", "hits", hits, "misses", misses, "hit_rate", p.cache.HitRate())
	}
	return result, nil
}

// enrichScalars fills tier, scores, label, themes and keywords. Each
// LLM-backed step fails closed to a neutral default.
func (p *Pipeline) enrichScalars(ctx context.Context, article *core.Article) error {
	classified := p.classifier.Classify(article.Title, article.Body, article.Source)
	article.RelevanceTier = classified.Tier

	sentiment, err := p.scorer.SentimentScore(ctx, article)
	if err != nil {
		logger.Warn("sentiment scoring failed, defaulting neutral", "article", article.ID, "error", err.Error())
		sentiment = 0
	}
	article.SentimentScore = sentiment
	article.SentimentLabel = SentimentLabel(sentiment)

	relevanceScore, err := p.scorer.RelevanceScore(ctx, article)
	if err != nil {
		logger.Warn("relevance scoring failed, defaulting zero", "article", article.ID, "error", err.Error())
		relevanceScore = 0
	}
	article.RelevanceScore = relevanceScore

	themes, err := p.scorer.Themes(ctx, article)
	if err != nil {
		logger.Warn("theme extraction failed", "article", article.ID, "error", err.Error())
		themes = nil
	}
	article.Themes = themes

	article.Keywords = ExtractKeywords(article.Title+" "+article.Body, themes)
	return nil
}

// SentimentLabel maps a numeric score to its label.
func SentimentLabel(score float64) string {
	switch {
	case score >= 0.4:
		return core.SentimentPositive
	case score <= -0.4:
		return core.SentimentNegative
	default:
		return core.SentimentNeutral
	}
}

// buildMentions emits one EntityMention per extracted entity. The
// entity name is re-normalized before the write.
func buildMentions(article *core.Article) []*core.EntityMention {
	mentions := make([]*core.EntityMention, 0, len(article.Entities))
	for _, e := range article.Entities {
		name := normalize.Entity(e.Name)
		if name == "" {
			continue
		}
		mentions = append(mentions, &core.EntityMention{
			ID:         mentionID(article.ID, name),
			Entity:     name,
			EntityType: e.Type,
			ArticleID:  article.ID,
			Sentiment:  article.SentimentLabel,
			Confidence: e.Confidence,
			IsPrimary:  e.Primary && e.IsPrimaryType(),
			Source:     article.Source,
			Timestamp:  article.PublishedAt,
		})
	}
	return mentions
}

func mentionID(articleID, entity string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(articleID+"|"+entity)).String()
}
