package store

import (
	"errors"
	"testing"
	"time"

	"cryptopulse/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("failed to open memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func testArticle(id string, published time.Time) *core.Article {
	return &core.Article{
		ID:          id,
		Source:      "coindesk",
		URL:         "https://example.com/" + id,
		Title:       "Title " + id,
		Body:        "Body.",
		PublishedAt: published,
		IngestedAt:  published.Add(time.Minute),
	}
}

func TestArticleRoundtrip(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	article := testArticle("a1", now)
	article.Entities = []core.Entity{{Type: "cryptocurrency", Name: "Bitcoin", Confidence: 0.9, Primary: true}}
	article.Keywords = []string{"bitcoin", "etf"}
	article.Themes = []string{"etf-flows"}
	if err := st.SaveArticle(article); err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}

	loaded, err := st.GetArticle("a1")
	if err != nil || loaded == nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if loaded.URL != article.URL || loaded.Title != article.Title {
		t.Errorf("loaded = %+v", loaded)
	}
	if len(loaded.Entities) != 1 || loaded.Entities[0].Name != "Bitcoin" {
		t.Errorf("entities lost in the document roundtrip: %+v", loaded.Entities)
	}
	if !loaded.PublishedAt.Equal(article.PublishedAt) {
		t.Errorf("published_at = %v, want %v", loaded.PublishedAt, article.PublishedAt)
	}

	missing, err := st.GetArticle("nope")
	if err != nil || missing != nil {
		t.Errorf("missing article = (%v, %v), want (nil, nil)", missing, err)
	}

	exists, err := st.ArticleExistsByURL(article.URL)
	if err != nil || !exists {
		t.Errorf("ArticleExistsByURL = %v, %v", exists, err)
	}
	exists, err = st.ArticleExistsByURL("https://example.com/unknown")
	if err != nil || exists {
		t.Errorf("unknown URL reported as existing")
	}
}

func TestGetUnenrichedArticles(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	raw := testArticle("raw", now.Add(-2*time.Hour))
	older := testArticle("older", now.Add(-5*time.Hour))
	done := testArticle("done", now.Add(-time.Hour))
	done.RelevanceTier = core.TierDefault
	done.SentimentLabel = core.SentimentNeutral
	done.EnrichedAt = now
	for _, a := range []*core.Article{raw, older, done} {
		if err := st.SaveArticle(a); err != nil {
			t.Fatalf("SaveArticle failed: %v", err)
		}
	}

	pending, err := st.GetUnenrichedArticles(10)
	if err != nil {
		t.Fatalf("GetUnenrichedArticles failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	if pending[0].ID != "older" {
		t.Error("unenriched articles should come oldest first")
	}

	// Enriched-only query sees just the finished article.
	since, err := st.GetArticlesSince(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("GetArticlesSince failed: %v", err)
	}
	if len(since) != 1 || since[0].ID != "done" {
		t.Errorf("enriched window = %+v, want only the enriched article", since)
	}
}

func TestSetArticleNarrative(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	if err := st.SaveArticle(testArticle("a1", now)); err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}
	if err := st.SetArticleNarrative("a1", "narr-9"); err != nil {
		t.Fatalf("SetArticleNarrative failed: %v", err)
	}
	a, err := st.GetArticle("a1")
	if err != nil || a == nil {
		t.Fatalf("GetArticle failed: %v", err)
	}
	if a.NarrativeID != "narr-9" {
		t.Errorf("narrative id = %q, want narr-9", a.NarrativeID)
	}

	byNarrative, err := st.GetArticlesByNarrative("narr-9")
	if err != nil || len(byNarrative) != 1 {
		t.Errorf("GetArticlesByNarrative = %d articles (%v), want 1", len(byNarrative), err)
	}

	if err := st.SetArticleNarrative("ghost", "narr-9"); err == nil {
		t.Error("stamping a missing article should fail")
	}
}

func TestNarrativeVersioning(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	n := &core.Narrative{
		ID:             "narr-1",
		NucleusEntity:  "Bitcoin",
		LifecycleState: core.StateEmerging,
		FirstSeen:      now,
		LastUpdated:    now,
	}
	if err := st.SaveNarrative(n); err != nil {
		t.Fatalf("SaveNarrative failed: %v", err)
	}
	if n.Version != 1 {
		t.Errorf("version after first save = %d, want 1", n.Version)
	}

	// CAS with the right version succeeds and bumps.
	if err := st.SaveNarrativeVersioned(n, 1); err != nil {
		t.Fatalf("SaveNarrativeVersioned failed: %v", err)
	}
	loaded, err := st.GetNarrative("narr-1")
	if err != nil || loaded == nil {
		t.Fatalf("GetNarrative failed: %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("version = %d, want 2", loaded.Version)
	}

	// A stale expected version loses.
	err = st.SaveNarrativeVersioned(loaded, 1)
	if !errors.Is(err, ErrVersionConflict) {
		t.Errorf("err = %v, want ErrVersionConflict", err)
	}
}

func TestDormantNarrativeQueryBoundary(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-30 * 24 * time.Hour)

	saveDormant := func(id string, since time.Time) {
		n := &core.Narrative{
			ID:             id,
			NucleusEntity:  "Celsius",
			LifecycleState: core.StateDormant,
			DormantSince:   &since,
			FirstSeen:      since.Add(-time.Hour),
			LastUpdated:    since,
		}
		if err := st.SaveNarrative(n); err != nil {
			t.Fatalf("SaveNarrative failed: %v", err)
		}
	}
	saveDormant("inside", now.Add(-29*24*time.Hour))
	saveDormant("edge", cutoff)
	saveDormant("outside", now.Add(-31*24*time.Hour))

	dormant, err := st.GetDormantNarrativesSince(cutoff)
	if err != nil {
		t.Fatalf("GetDormantNarrativesSince failed: %v", err)
	}
	if len(dormant) != 1 || dormant[0].ID != "inside" {
		t.Errorf("dormant = %+v, want only the strictly-inside narrative", dormant)
	}
}

func TestNarrativeStateQueries(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	reawakened := now.Add(-24 * time.Hour)

	save := func(id string, state core.LifecycleState, from *time.Time) {
		n := &core.Narrative{
			ID:             id,
			NucleusEntity:  "ETH",
			LifecycleState: state,
			ReawakenedFrom: from,
			FirstSeen:      now.Add(-48 * time.Hour),
			LastUpdated:    now,
		}
		if err := st.SaveNarrative(n); err != nil {
			t.Fatalf("SaveNarrative failed: %v", err)
		}
	}
	save("hot", core.StateHot, nil)
	save("merged", core.StateMerged, nil)
	save("revived", core.StateReactivated, &reawakened)

	active, err := st.GetActiveNarratives()
	if err != nil {
		t.Fatalf("GetActiveNarratives failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active = %d, want 2 (merged excluded)", len(active))
	}

	hot, err := st.GetNarrativesByState(core.StateHot)
	if err != nil || len(hot) != 1 || hot[0].ID != "hot" {
		t.Errorf("by-state = %+v (%v), want the hot narrative", hot, err)
	}

	revived, err := st.GetReawakenedNarratives(10)
	if err != nil || len(revived) != 1 || revived[0].ID != "revived" {
		t.Errorf("reawakened = %+v (%v), want the revived narrative", revived, err)
	}

	byNucleus, err := st.GetNarrativesByNucleus("ETH")
	if err != nil || len(byNucleus) != 2 {
		t.Errorf("by-nucleus = %d (%v), want 2 non-merged", len(byNucleus), err)
	}
}

func TestSignalScoreQueries(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	save := func(entity string, day, week float64, updated time.Time) {
		score := &core.SignalScore{
			Entity:      entity,
			Day:         core.WindowMetrics{Score: day},
			Week:        core.WindowMetrics{Score: week},
			Score:       day,
			FirstSeen:   updated.Add(-time.Hour),
			LastUpdated: updated,
		}
		if err := st.SaveSignalScore(score); err != nil {
			t.Fatalf("SaveSignalScore failed: %v", err)
		}
	}
	save("Bitcoin", 8, 2, now)
	save("Ethereum", 5, 9, now)
	save("Dust", 1, 1, now.Add(-40*24*time.Hour))

	top, err := st.GetTopSignals(core.Window24h, 2)
	if err != nil {
		t.Fatalf("GetTopSignals failed: %v", err)
	}
	if len(top) != 2 || top[0].Entity != "Bitcoin" {
		t.Errorf("24h top = %+v, want Bitcoin first", top)
	}

	top, err = st.GetTopSignals(core.Window7d, 1)
	if err != nil || len(top) != 1 || top[0].Entity != "Ethereum" {
		t.Errorf("7d top = %+v (%v), want Ethereum", top, err)
	}

	entities, err := st.GetAllSignalEntities()
	if err != nil || len(entities) != 3 {
		t.Errorf("entities = %v (%v), want 3", entities, err)
	}

	deleted, err := st.DeleteStaleSignals(now.Add(-30 * 24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteStaleSignals failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1 stale score", deleted)
	}
	if score, _ := st.GetSignalScore("Dust"); score != nil {
		t.Error("stale score still present after cleanup")
	}
}

func TestMentionQueries(t *testing.T) {
	st := newTestStore(t)
	now := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

	mentions := []*core.EntityMention{
		{ID: "m1", Entity: "Bitcoin", ArticleID: "a1", IsPrimary: true, Source: "coindesk", Timestamp: now.Add(-time.Hour)},
		{ID: "m2", Entity: "Bitcoin", ArticleID: "a2", IsPrimary: false, Source: "theblock", Timestamp: now.Add(-time.Hour)},
		{ID: "m3", Entity: "Bitcoin", ArticleID: "a3", IsPrimary: true, Source: "decrypt", Timestamp: now.Add(-48 * time.Hour)},
		{ID: "m4", Entity: "Solana", ArticleID: "a4", IsPrimary: true, Source: "decrypt", Timestamp: now.Add(-time.Hour)},
	}
	if err := st.SaveMentions(mentions); err != nil {
		t.Fatalf("SaveMentions failed: %v", err)
	}

	primary, err := st.GetPrimaryMentions("Bitcoin", now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("GetPrimaryMentions failed: %v", err)
	}
	if len(primary) != 1 || primary[0].ID != "m1" {
		t.Errorf("primary = %+v, want only the recent primary mention", primary)
	}

	active, err := st.GetActiveEntities(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("GetActiveEntities failed: %v", err)
	}
	if len(active) != 2 {
		t.Errorf("active entities = %v, want Bitcoin and Solana", active)
	}

	exists, err := st.EntityMentionExists("Bitcoin")
	if err != nil || !exists {
		t.Errorf("EntityMentionExists(Bitcoin) = %v, %v", exists, err)
	}
	exists, err = st.EntityMentionExists("Dogecoin")
	if err != nil || exists {
		t.Errorf("EntityMentionExists(Dogecoin) = %v, want false", exists)
	}

	// Empty batch is a no-op.
	if err := st.SaveMentions(nil); err != nil {
		t.Errorf("empty SaveMentions = %v, want nil", err)
	}
}

func TestGetStats(t *testing.T) {
	st := newTestStore(t)
	now := time.Now().UTC()

	if err := st.SaveArticle(testArticle("a1", now)); err != nil {
		t.Fatalf("SaveArticle failed: %v", err)
	}
	if err := st.SaveMentions([]*core.EntityMention{
		{ID: "m1", Entity: "Bitcoin", ArticleID: "a1", Timestamp: now},
	}); err != nil {
		t.Fatalf("SaveMentions failed: %v", err)
	}

	stats, err := st.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Articles != 1 || stats.Mentions != 1 {
		t.Errorf("stats = %+v, want 1 article and 1 mention", stats)
	}
	if stats.Narratives != 0 || stats.Alerts != 0 {
		t.Errorf("stats = %+v, want empty collections at zero", stats)
	}

	if err := st.Ping(); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
