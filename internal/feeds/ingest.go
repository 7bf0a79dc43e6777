package feeds

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// Ingester polls configured feeds and stores new articles.
type Ingester struct {
	store       *store.Store
	manager     *FeedManager
	sources     []config.FeedSource
	blacklisted map[string]bool
}

// NewIngester creates an ingester over the configured feed sources.
func NewIngester(st *store.Store, cfg config.Feeds) *Ingester {
	blacklisted := make(map[string]bool, len(cfg.BlacklistedSources))
	for _, src := range cfg.BlacklistedSources {
		blacklisted[strings.ToLower(src)] = true
	}
	return &Ingester{
		store:       st,
		manager:     NewFeedManager(),
		sources:     cfg.Sources,
		blacklisted: blacklisted,
	}
}

// IngestResult summarizes one ingestion run.
type IngestResult struct {
	FeedsPolled int `json:"feeds_polled"`
	FeedsFailed int `json:"feeds_failed"`
	NewArticles int `json:"new_articles"`
	Duplicates  int `json:"duplicates"`
	Skipped     int `json:"skipped"`
}

// Run polls every configured feed once. Feed failures are logged and
// counted; one bad feed never aborts the run.
func (in *Ingester) Run() (*IngestResult, error) {
	result := &IngestResult{}

	for _, src := range in.sources {
		source := strings.ToLower(src.Source)
		if in.blacklisted[source] {
			logger.Debug("skipping blacklisted source", "source", source)
			continue
		}
		result.FeedsPolled++

		feed := in.loadFeedState(src.URL, source)
		parsed, err := in.manager.FetchFeed(src.URL, feed.LastModified, feed.ETag)
		if err != nil {
			result.FeedsFailed++
			feed.ErrorCount++
			feed.LastError = err.Error()
			if saveErr := in.store.SaveFeed(feed); saveErr != nil {
				logger.Error("failed to record feed error", saveErr, "source", source)
			}
			logger.Error("failed to fetch feed", err, "source", source, "url", src.URL)
			continue
		}
		if parsed.NotModified {
			logger.Debug("feed not modified", "source", source)
			continue
		}

		added, dupes, skipped := in.storeItems(source, parsed.Items)
		result.NewArticles += added
		result.Duplicates += dupes
		result.Skipped += skipped

		feed.Title = parsed.Title
		feed.LastModified = parsed.LastModified
		feed.ETag = parsed.ETag
		feed.LastFetched = time.Now().UTC()
		feed.ErrorCount = 0
		feed.LastError = ""
		if err := in.store.SaveFeed(feed); err != nil {
			logger.Error("failed to save feed state", err, "source", source)
		}
	}

	logger.Info("ingestion complete",
		"feeds", result.FeedsPolled, "failed", result.FeedsFailed,
		"new", result.NewArticles, "duplicates", result.Duplicates)
	return result, nil
}

func (in *Ingester) loadFeedState(url, source string) *core.Feed {
	feeds, err := in.store.GetActiveFeeds()
	if err == nil {
		for _, f := range feeds {
			if f.URL == url {
				return f
			}
		}
	}
	return &core.Feed{
		ID:     GenerateFeedID(url),
		URL:    url,
		Source: source,
		Active: true,
	}
}

func (in *Ingester) storeItems(source string, items []Item) (added, dupes, skipped int) {
	now := time.Now().UTC()
	for _, item := range items {
		if item.Link == "" || strings.TrimSpace(item.Title) == "" {
			skipped++
			continue
		}

		exists, err := in.store.ArticleExistsByURL(item.Link)
		if err != nil {
			logger.Error("failed to check for duplicate", err, "url", item.Link)
			skipped++
			continue
		}
		if exists {
			dupes++
			continue
		}

		published := item.Published
		if published.IsZero() {
			published = now
		}

		article := &core.Article{
			ID:          GenerateArticleID(item.Link),
			Source:      source,
			URL:         item.Link,
			Title:       StripHTML(item.Title),
			Body:        StripHTML(item.Description),
			PublishedAt: published,
			IngestedAt:  now,
		}
		if err := in.store.SaveArticle(article); err != nil {
			logger.Error("failed to save article", err, "url", item.Link)
			skipped++
			continue
		}
		added++
	}
	return added, dupes, skipped
}

// StripHTML reduces an HTML fragment to its text content. Input that
// fails to parse is returned trimmed as-is.
func StripHTML(fragment string) string {
	trimmed := strings.TrimSpace(fragment)
	if trimmed == "" {
		return ""
	}
	if !strings.ContainsAny(trimmed, "<&") {
		return trimmed
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return trimmed
	}
	text := doc.Text()
	return strings.Join(strings.Fields(text), " ")
}
