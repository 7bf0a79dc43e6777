package feeds

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"cryptopulse/internal/config"
	"cryptopulse/internal/store"
)

const testFeedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>CryptoWire</title>
    <item>
      <title>Bitcoin breaks resistance</title>
      <link>https://example.com/btc</link>
      <description>&lt;p&gt;Markets &lt;b&gt;moved&lt;/b&gt;.&lt;/p&gt;</description>
      <pubDate>Mon, 24 Aug 2026 09:30:00 +0000</pubDate>
    </item>
    <item>
      <title>Solana outage resolved</title>
      <link>https://example.com/sol</link>
      <description>Network back online.</description>
      <pubDate>Mon, 24 Aug 2026 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>No link here</title>
      <description>Broken item.</description>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, testFeedXML)
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

func newTestIngester(t *testing.T, cfg config.Feeds) (*Ingester, *store.Store) {
	t.Helper()
	st, err := store.NewMemoryStore()
	if err != nil {
		t.Fatalf("failed to open memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return NewIngester(st, cfg), st
}

func TestIngesterRun(t *testing.T) {
	ts, _ := newFeedServer(t)
	in, st := newTestIngester(t, config.Feeds{
		Sources: []config.FeedSource{{Source: "cryptowire", URL: ts.URL}},
	})

	result, err := in.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FeedsPolled != 1 || result.FeedsFailed != 0 {
		t.Errorf("polled/failed = %d/%d, want 1/0", result.FeedsPolled, result.FeedsFailed)
	}
	if result.NewArticles != 2 {
		t.Errorf("new articles = %d, want 2", result.NewArticles)
	}
	if result.Skipped != 1 {
		t.Errorf("skipped = %d, want 1 for the linkless item", result.Skipped)
	}

	a, err := st.GetArticle(GenerateArticleID("https://example.com/btc"))
	if err != nil || a == nil {
		t.Fatalf("article not stored: %v", err)
	}
	if a.Source != "cryptowire" {
		t.Errorf("source = %q, want cryptowire", a.Source)
	}
	if a.Body != "Markets moved." {
		t.Errorf("body = %q, want the stripped text", a.Body)
	}
	if a.PublishedAt.IsZero() || a.IngestedAt.IsZero() {
		t.Error("timestamps not set")
	}

	// Feed state persists the ETag for conditional fetching.
	feeds, err := st.GetActiveFeeds()
	if err != nil || len(feeds) != 1 {
		t.Fatalf("feed state not saved: %v", err)
	}
	if feeds[0].ETag != `"v1"` {
		t.Errorf("etag = %q, want the server's", feeds[0].ETag)
	}
}

func TestIngesterDeduplicates(t *testing.T) {
	ts, _ := newFeedServer(t)
	in, _ := newTestIngester(t, config.Feeds{
		Sources: []config.FeedSource{{Source: "cryptowire", URL: ts.URL}},
	})

	if _, err := in.Run(); err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	// The second poll is served 304 via the stored ETag, so nothing is
	// re-ingested.
	result, err := in.Run()
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if result.NewArticles != 0 || result.Duplicates != 0 {
		t.Errorf("second run = %+v, want no new articles", result)
	}
}

func TestIngesterSkipsBlacklisted(t *testing.T) {
	ts, hits := newFeedServer(t)
	in, _ := newTestIngester(t, config.Feeds{
		Sources:            []config.FeedSource{{Source: "SpamCoinDaily", URL: ts.URL}},
		BlacklistedSources: []string{"spamcoindaily"},
	})

	result, err := in.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FeedsPolled != 0 {
		t.Errorf("polled = %d, want 0 for a blacklisted source", result.FeedsPolled)
	}
	if *hits != 0 {
		t.Errorf("server hits = %d, want 0", *hits)
	}
}

func TestIngesterRecordsFeedErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	in, st := newTestIngester(t, config.Feeds{
		Sources: []config.FeedSource{{Source: "flaky", URL: ts.URL}},
	})
	result, err := in.Run()
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.FeedsFailed != 1 {
		t.Errorf("failed = %d, want 1", result.FeedsFailed)
	}

	feeds, err := st.GetActiveFeeds()
	if err != nil || len(feeds) != 1 {
		t.Fatalf("feed state not saved: %v", err)
	}
	if feeds[0].ErrorCount != 1 || feeds[0].LastError == "" {
		t.Errorf("feed error state = %+v, want the failure recorded", feeds[0])
	}
}
