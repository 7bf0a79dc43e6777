// Package feeds provides RSS/Atom feed parsing and ingestion.
package feeds

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RSS represents an RSS feed structure
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Atom represents an Atom feed structure
type Atom struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Link    []AtomLink  `xml:"link"`
	Entries []AtomEntry `xml:"entry"`
}

// Channel represents an RSS channel
type Channel struct {
	Title       string    `xml:"title"`
	Description string    `xml:"description"`
	Link        string    `xml:"link"`
	Items       []RSSItem `xml:"item"`
}

// RSSItem represents an RSS item
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Content     string `xml:"encoded"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// AtomLink represents an Atom link element
type AtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

// AtomEntry represents an Atom entry
type AtomEntry struct {
	Title     string     `xml:"title"`
	Link      []AtomLink `xml:"link"`
	Summary   string     `xml:"summary"`
	Content   string     `xml:"content"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	ID        string     `xml:"id"`
}

// Item is one parsed feed entry before it becomes an article.
type Item struct {
	Title       string
	Link        string
	Description string
	GUID        string
	Published   time.Time
}

// ParsedFeed represents a parsed feed with caching metadata.
type ParsedFeed struct {
	Title        string
	Items        []Item
	LastModified string
	ETag         string
	NotModified  bool
}

// FeedManager fetches and parses RSS/Atom feeds.
type FeedManager struct {
	client *http.Client
}

// NewFeedManager creates a new feed manager.
func NewFeedManager() *FeedManager {
	return &FeedManager{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchFeed fetches and parses a feed from the given URL.
func (fm *FeedManager) FetchFeed(feedURL string, lastModified, etag string) (*ParsedFeed, error) {
	req, err := http.NewRequest("GET", feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set conditional headers for efficient fetching
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	req.Header.Set("User-Agent", "CryptoPulse RSS Reader/1.0")

	resp, err := fm.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotModified {
		return &ParsedFeed{NotModified: true}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	parsedFeed, err := fm.parseResponse(resp, feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	parsedFeed.LastModified = resp.Header.Get("Last-Modified")
	parsedFeed.ETag = resp.Header.Get("ETag")

	return parsedFeed, nil
}

// parseResponse attempts to parse the HTTP response as either RSS or Atom
func (fm *FeedManager) parseResponse(resp *http.Response, feedURL string) (*ParsedFeed, error) {
	decoder := xml.NewDecoder(resp.Body)

	// Try RSS first
	var rss RSS
	if err := decoder.Decode(&rss); err == nil && rss.Channel.Title != "" {
		return parseRSS(rss), nil
	}

	// Reset and try Atom
	_ = resp.Body.Close()
	resp, err := fm.client.Get(feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to re-fetch for Atom parsing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	decoder = xml.NewDecoder(resp.Body)
	var atom Atom
	if err := decoder.Decode(&atom); err == nil && atom.Title != "" {
		return parseAtom(atom), nil
	}

	return nil, fmt.Errorf("unable to parse as RSS or Atom feed")
}

func parseRSS(rss RSS) *ParsedFeed {
	var items []Item
	for _, item := range rss.Channel.Items {
		body := item.Content
		if body == "" {
			body = item.Description
		}
		items = append(items, Item{
			Title:       item.Title,
			Link:        item.Link,
			Description: body,
			GUID:        item.GUID,
			Published:   parseRSSDate(item.PubDate),
		})
	}
	return &ParsedFeed{Title: rss.Channel.Title, Items: items}
}

func parseAtom(atom Atom) *ParsedFeed {
	var items []Item
	for _, entry := range atom.Entries {
		// Find the main link
		var link string
		for _, l := range entry.Link {
			if l.Rel == "" || l.Rel == "alternate" {
				link = l.Href
				break
			}
		}
		body := entry.Content
		if body == "" {
			body = entry.Summary
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		items = append(items, Item{
			Title:       entry.Title,
			Link:        link,
			Description: body,
			GUID:        entry.ID,
			Published:   parseAtomDate(published),
		})
	}
	return &ParsedFeed{Title: atom.Title, Items: items}
}

// GenerateFeedID creates a deterministic ID for a feed based on its URL.
func GenerateFeedID(feedURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(feedURL)).String()
}

// GenerateArticleID creates a deterministic ID for an article based on its URL.
func GenerateArticleID(link string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(link)).String()
}

// parseRSSDate parses RSS date formats
func parseRSSDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	// Common RSS date formats
	formats := []string{
		time.RFC1123,
		time.RFC1123Z,
		"Mon, 2 Jan 2006 15:04:05 -0700",
		"Mon, 2 Jan 2006 15:04:05 MST",
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// parseAtomDate parses Atom date formats
func parseAtomDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	// Atom uses RFC3339
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(dateStr)); err == nil {
		return t.UTC()
	}

	// Fallback to common formats
	return parseRSSDate(dateStr)
}
