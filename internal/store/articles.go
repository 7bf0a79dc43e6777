package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cryptopulse/internal/core"
)

// SaveArticle inserts or replaces an article keyed by id. The URL
// uniqueness constraint is the ingest-time dedup guard; use
// ArticleExistsByURL before inserting new articles.
func (s *Store) SaveArticle(article *core.Article) error {
	doc, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	return s.withRetry(func() error {
		_, err := s.db.Exec(`
			INSERT OR REPLACE INTO articles
			(id, source, url, title, body, published_at, relevance_tier, relevance_score,
			 sentiment_score, sentiment_label, nucleus_entity, narrative_id, enriched_at, ingested_at, doc)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			article.ID, article.Source, article.URL, article.Title, article.Body,
			article.PublishedAt, article.RelevanceTier, article.RelevanceScore,
			article.SentimentScore, article.SentimentLabel, article.NucleusEntity,
			article.NarrativeID, nullableTime(article.EnrichedAt), article.IngestedAt, string(doc))
		if err != nil {
			return fmt.Errorf("failed to save article: %w", err)
		}
		return nil
	})
}

// ArticleExistsByURL reports whether an article with this URL is stored.
func (s *Store) ArticleExistsByURL(url string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM articles WHERE url = ?`, url).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check article url: %w", err)
	}
	return count > 0, nil
}

// GetArticle loads one article by id.
func (s *Store) GetArticle(id string) (*core.Article, error) {
	var doc string
	err := s.db.QueryRow(`SELECT doc FROM articles WHERE id = ?`, id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get article: %w", err)
	}
	return unmarshalArticle(doc)
}

// GetUnenrichedArticles returns articles the enrichment pipeline has not
// finished, oldest first.
func (s *Store) GetUnenrichedArticles(limit int) ([]*core.Article, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM articles
		WHERE relevance_tier = 0 OR sentiment_label = ''
		ORDER BY published_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unenriched articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetArticlesSince returns enriched articles published after the cutoff,
// newest first.
func (s *Store) GetArticlesSince(cutoff time.Time) ([]*core.Article, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM articles
		WHERE published_at > ? AND relevance_tier != 0
		ORDER BY published_at DESC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetArticlesByNarrative returns a narrative's member articles, newest first.
func (s *Store) GetArticlesByNarrative(narrativeID string) ([]*core.Article, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM articles
		WHERE narrative_id = ?
		ORDER BY published_at DESC`, narrativeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query narrative articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// GetArticlesByIDs loads articles in bulk. Missing ids are skipped.
func (s *Store) GetArticlesByIDs(ids []string) ([]*core.Article, error) {
	articles := make([]*core.Article, 0, len(ids))
	for _, id := range ids {
		article, err := s.GetArticle(id)
		if err != nil {
			return nil, err
		}
		if article != nil {
			articles = append(articles, article)
		}
	}
	return articles, nil
}

// GetRecentArticles returns the newest articles regardless of enrichment.
func (s *Store) GetRecentArticles(limit int) ([]*core.Article, error) {
	rows, err := s.db.Query(`
		SELECT doc FROM articles
		ORDER BY published_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent articles: %w", err)
	}
	defer rows.Close()
	return scanArticles(rows)
}

// SetArticleNarrative stamps narrative membership on an article.
func (s *Store) SetArticleNarrative(articleID, narrativeID string) error {
	return s.withRetry(func() error {
		article, err := s.GetArticle(articleID)
		if err != nil {
			return err
		}
		if article == nil {
			return fmt.Errorf("article %s not found", articleID)
		}
		article.NarrativeID = narrativeID
		return s.SaveArticle(article)
	})
}

func scanArticles(rows *sql.Rows) ([]*core.Article, error) {
	var articles []*core.Article
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		article, err := unmarshalArticle(doc)
		if err != nil {
			return nil, err
		}
		articles = append(articles, article)
	}
	return articles, rows.Err()
}

func unmarshalArticle(doc string) (*core.Article, error) {
	var article core.Article
	if err := json.Unmarshal([]byte(doc), &article); err != nil {
		return nil, fmt.Errorf("failed to unmarshal article: %w", err)
	}
	return &article, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
