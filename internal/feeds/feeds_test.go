package feeds

import (
	"encoding/xml"
	"testing"
	"time"
)

func TestParseRSS(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>CryptoWire</title>
    <item>
      <title>Bitcoin breaks resistance</title>
      <link>https://example.com/btc</link>
      <description>Short summary.</description>
      <pubDate>Mon, 24 Aug 2026 09:30:00 +0000</pubDate>
      <guid>btc-1</guid>
    </item>
    <item>
      <title>Undated item</title>
      <link>https://example.com/undated</link>
      <description>No pubDate.</description>
    </item>
  </channel>
</rss>`

	var rss RSS
	if err := xml.Unmarshal([]byte(raw), &rss); err != nil {
		t.Fatalf("failed to unmarshal RSS: %v", err)
	}
	feed := parseRSS(rss)

	if feed.Title != "CryptoWire" {
		t.Errorf("title = %q, want CryptoWire", feed.Title)
	}
	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}
	first := feed.Items[0]
	if first.Link != "https://example.com/btc" || first.GUID != "btc-1" {
		t.Errorf("item = %+v", first)
	}
	want := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	if !first.Published.Equal(want) {
		t.Errorf("published = %v, want %v", first.Published, want)
	}
	if !feed.Items[1].Published.IsZero() {
		t.Error("missing pubDate should parse to the zero time")
	}
}

func TestParseRSSPrefersContent(t *testing.T) {
	rss := RSS{Channel: Channel{
		Title: "Wire",
		Items: []RSSItem{{
			Title:       "t",
			Link:        "https://example.com/a",
			Description: "short",
			Content:     "full text",
		}},
	}}
	feed := parseRSS(rss)
	if feed.Items[0].Description != "full text" {
		t.Errorf("body = %q, want the content:encoded text", feed.Items[0].Description)
	}
}

func TestParseAtom(t *testing.T) {
	atom := Atom{
		Title: "Chain Letter",
		Entries: []AtomEntry{{
			Title: "Ethereum upgrade ships",
			Link: []AtomLink{
				{Href: "https://example.com/self", Rel: "self"},
				{Href: "https://example.com/eth", Rel: "alternate"},
			},
			Summary:   "Summary text.",
			Published: "2026-08-24T10:00:00Z",
			ID:        "eth-1",
		}, {
			Title:   "Updated only",
			Link:    []AtomLink{{Href: "https://example.com/u"}},
			Updated: "2026-08-23T08:00:00Z",
		}},
	}
	feed := parseAtom(atom)

	if len(feed.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(feed.Items))
	}
	if feed.Items[0].Link != "https://example.com/eth" {
		t.Errorf("link = %q, want the alternate link, not self", feed.Items[0].Link)
	}
	want := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if !feed.Items[0].Published.Equal(want) {
		t.Errorf("published = %v, want %v", feed.Items[0].Published, want)
	}
	// Falls back to updated when published is absent.
	wantUpdated := time.Date(2026, 8, 23, 8, 0, 0, 0, time.UTC)
	if !feed.Items[1].Published.Equal(wantUpdated) {
		t.Errorf("published = %v, want the updated time %v", feed.Items[1].Published, wantUpdated)
	}
}

func TestParseRSSDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"Mon, 24 Aug 2026 09:30:00 GMT", time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)},
		{"Mon, 24 Aug 2026 09:30:00 +0200", time.Date(2026, 8, 24, 7, 30, 0, 0, time.UTC)},
		{"Mon, 4 Aug 2026 09:30:00 -0700", time.Date(2026, 8, 4, 16, 30, 0, 0, time.UTC)},
		{"2026-08-24T09:30:00Z", time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)},
		{"  2026-08-24T09:30:00Z  ", time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"not a date", time.Time{}},
	}
	for _, tt := range tests {
		got := parseRSSDate(tt.input)
		if !got.Equal(tt.expected) {
			t.Errorf("parseRSSDate(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseAtomDate(t *testing.T) {
	want := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if got := parseAtomDate("2026-08-24T12:00:00+02:00"); !got.Equal(want) {
		t.Errorf("parseAtomDate = %v, want %v", got, want)
	}
	// RSS-style dates still parse through the fallback.
	if got := parseAtomDate("Mon, 24 Aug 2026 10:00:00 GMT"); !got.Equal(want) {
		t.Errorf("fallback = %v, want %v", got, want)
	}
	if !parseAtomDate("").IsZero() {
		t.Error("empty date should be zero")
	}
}

func TestGenerateArticleID(t *testing.T) {
	a := GenerateArticleID("https://example.com/story")
	b := GenerateArticleID("https://example.com/story")
	c := GenerateArticleID("https://example.com/other")

	if a != b {
		t.Error("same URL must produce the same id")
	}
	if a == c {
		t.Error("different URLs must produce different ids")
	}
	if len(a) != 36 {
		t.Errorf("id %q is not a UUID", a)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain text untouched", "Bitcoin rallies", "Bitcoin rallies"},
		{"tags removed", "<p>Bitcoin <b>rallies</b></p>", "Bitcoin rallies"},
		{"entities decoded", "Fear &amp; greed", "Fear & greed"},
		{"whitespace collapsed", "<p>a</p>\n\n<p>b</p>", "a b"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.expected {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
