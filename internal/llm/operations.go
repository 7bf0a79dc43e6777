package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/normalize"
)

// bodyLimit caps how much article body goes into a prompt.
const bodyLimit = 2000

// promptBody truncates at a rune boundary so a multi-byte character
// straddling the cap is dropped whole.
func promptBody(body string) string {
	if len(body) <= bodyLimit {
		return body
	}
	cut := bodyLimit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// SentimentScore rates one article's market sentiment on the cheap
// model, clamped to [-1, 1]. Unparseable responses score neutral.
func (g *Gateway) SentimentScore(ctx context.Context, article *core.Article) (float64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var parsed struct {
		Sentiment float64 `json:"sentiment"`
	}
	prompt := fmt.Sprintf(sentimentPromptTemplate, article.Title, promptBody(article.Body))
	if err := g.generateJSON(ctx, "sentiment", g.cheapModel, prompt, &parsed); err != nil {
		if errors.Is(err, ErrUnparseable) {
			logger.Warn("sentiment response unparseable", "article", article.ID)
			return 0, nil
		}
		return 0, fmt.Errorf("sentiment call failed: %w", err)
	}
	return clamp(parsed.Sentiment, -1, 1), nil
}

// RelevanceScore rates one article's relevance on the cheap model,
// clamped to [0, 1]. Unparseable responses score zero.
func (g *Gateway) RelevanceScore(ctx context.Context, article *core.Article) (float64, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var parsed struct {
		Relevance float64 `json:"relevance"`
	}
	prompt := fmt.Sprintf(relevancePromptTemplate, article.Title, promptBody(article.Body))
	if err := g.generateJSON(ctx, "relevance", g.cheapModel, prompt, &parsed); err != nil {
		if errors.Is(err, ErrUnparseable) {
			logger.Warn("relevance response unparseable", "article", article.ID)
			return 0, nil
		}
		return 0, fmt.Errorf("relevance call failed: %w", err)
	}
	return clamp(parsed.Relevance, 0, 1), nil
}

// Themes extracts up to five ordered themes on the cheap model.
func (g *Gateway) Themes(ctx context.Context, article *core.Article) ([]string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var parsed struct {
		Themes []string `json:"themes"`
	}
	prompt := fmt.Sprintf(themesPromptTemplate, article.Title, promptBody(article.Body))
	if err := g.generateJSON(ctx, "themes", g.cheapModel, prompt, &parsed); err != nil {
		if errors.Is(err, ErrUnparseable) {
			logger.Warn("themes response unparseable", "article", article.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("themes call failed: %w", err)
	}

	themes := make([]string, 0, len(parsed.Themes))
	for _, t := range parsed.Themes {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			themes = append(themes, t)
		}
	}
	if len(themes) > 5 {
		themes = themes[:5]
	}
	return themes, nil
}

// ExtractEntitiesBatch extracts entities for several articles in one
// cheap-model call. The result maps article index to its entities,
// names already canonicalized. Missing indexes mean the model skipped
// the article. Unparseable responses return an empty map.
func (g *Gateway) ExtractEntitiesBatch(ctx context.Context, articles []*core.Article) (map[int][]core.Entity, error) {
	if len(articles) == 0 {
		return map[int][]core.Entity{}, nil
	}

	ctx, cancel := g.withBatchTimeout(ctx)
	defer cancel()

	var sb strings.Builder
	for i, a := range articles {
		fmt.Fprintf(&sb, "[%d] Title: %s\nBody: %s\n\n", i, a.Title, promptBody(a.Body))
	}

	var parsed struct {
		Articles []struct {
			Index    int           `json:"index"`
			Entities []core.Entity `json:"entities"`
		} `json:"articles"`
	}
	prompt := fmt.Sprintf(entityBatchPromptTemplate, sb.String())
	if err := g.generateJSON(ctx, "entity_extraction", g.cheapModel, prompt, &parsed); err != nil {
		if errors.Is(err, ErrUnparseable) {
			logger.Warn("entity extraction response unparseable", "batch_size", len(articles))
			return map[int][]core.Entity{}, nil
		}
		return nil, fmt.Errorf("entity extraction call failed: %w", err)
	}

	out := make(map[int][]core.Entity, len(parsed.Articles))
	for _, item := range parsed.Articles {
		if item.Index < 0 || item.Index >= len(articles) {
			continue
		}
		entities := make([]core.Entity, 0, len(item.Entities))
		for _, e := range item.Entities {
			e.Name = normalize.Entity(e.Name)
			if e.Name == "" {
				continue
			}
			e.Confidence = clamp(e.Confidence, 0, 1)
			entities = append(entities, e)
		}
		out[item.Index] = entities
	}
	return out, nil
}

// DiscoverNarrative extracts one article's narrative elements on the
// cheap model. Entity names come back canonicalized; an article whose
// response is unparseable or lacks a nucleus yields nil without error.
func (g *Gateway) DiscoverNarrative(ctx context.Context, article *core.Article) (*core.NarrativeSummary, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var parsed core.NarrativeSummary
	prompt := fmt.Sprintf(narrativePromptTemplate, article.Title, promptBody(article.Body))
	if err := g.generateJSON(ctx, "narrative_discovery", g.cheapModel, prompt, &parsed); err != nil {
		if errors.Is(err, ErrUnparseable) {
			logger.Warn("narrative discovery response unparseable", "article", article.ID)
			return nil, nil
		}
		return nil, fmt.Errorf("narrative discovery call failed: %w", err)
	}

	parsed.NucleusEntity = normalize.Entity(parsed.NucleusEntity)
	if parsed.NucleusEntity == "" {
		return nil, nil
	}

	actors := make([]string, 0, len(parsed.Actors))
	for _, a := range parsed.Actors {
		if canonical := normalize.Entity(a); canonical != "" {
			actors = append(actors, canonical)
		}
	}
	parsed.Actors = actors

	salience := make(map[string]float64, len(parsed.ActorSalience))
	for name, score := range parsed.ActorSalience {
		if canonical := normalize.Entity(name); canonical != "" {
			salience[canonical] = clamp(score, 1, 5)
		}
	}
	parsed.ActorSalience = salience

	return &parsed, nil
}

// SummarizeCluster writes a title and short summary for a narrative's
// member articles on the capable model.
func (g *Gateway) SummarizeCluster(ctx context.Context, articles []*core.Article) (title, summary string, err error) {
	if len(articles) == 0 {
		return "", "", fmt.Errorf("no articles to summarize")
	}

	ctx, cancel := g.withBatchTimeout(ctx)
	defer cancel()

	var sb strings.Builder
	for _, a := range articles {
		fmt.Fprintf(&sb, "- %s (%s)\n", a.Title, a.Source)
	}

	var parsed struct {
		Title   string `json:"title"`
		Summary string `json:"summary"`
	}
	prompt := fmt.Sprintf(clusterSummaryPromptTemplate, sb.String())
	if err := g.generateJSON(ctx, "cluster_summary", g.capableModel, prompt, &parsed); err != nil {
		if errors.Is(err, ErrUnparseable) {
			logger.Warn("cluster summary response unparseable")
			return "", "", nil
		}
		return "", "", fmt.Errorf("cluster summary call failed: %w", err)
	}

	title = strings.TrimSpace(parsed.Title)
	if len(title) > 60 {
		title = title[:60]
	}
	return title, strings.TrimSpace(parsed.Summary), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
