package narrative

import (
	"context"
	"time"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// Discoverer is the LLM surface for narrative element extraction.
type Discoverer interface {
	DiscoverNarrative(ctx context.Context, article *core.Article) (*core.NarrativeSummary, error)
}

// Extractor backfills narrative elements onto enriched articles. It is
// idempotent per article: annotated articles are never re-extracted.
type Extractor struct {
	store *store.Store
	llm   Discoverer
}

// NewExtractor creates the element extractor.
func NewExtractor(st *store.Store, llm Discoverer) *Extractor {
	return &Extractor{store: st, llm: llm}
}

// Backfill annotates every relevant article in the window that has no
// narrative summary yet. Articles with no extractable nucleus are
// skipped. Returns how many were annotated.
func (e *Extractor) Backfill(ctx context.Context, cutoff time.Time) (int, error) {
	articles, err := e.store.GetArticlesSince(cutoff)
	if err != nil {
		return 0, err
	}

	annotated := 0
	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return annotated, err
		}
		if article.NarrativeSummary != nil {
			continue
		}
		if article.RelevanceTier == core.TierLow {
			continue
		}

		summary, err := e.llm.DiscoverNarrative(ctx, article)
		if err != nil {
			logger.Error("narrative discovery failed", err, "article", article.ID)
			continue
		}
		if summary == nil {
			logger.Debug("no nucleus extracted, skipping", "article", article.ID)
			continue
		}

		article.NarrativeSummary = summary
		article.NucleusEntity = summary.NucleusEntity
		if err := e.store.SaveArticle(article); err != nil {
			logger.Error("failed to persist narrative elements", err, "article", article.ID)
			continue
		}
		annotated++
	}
	return annotated, nil
}
