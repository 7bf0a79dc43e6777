package enrich

import (
	"strings"
	"testing"
)

func TestExtractKeywords(t *testing.T) {
	text := "Bitcoin miners expand as bitcoin hashrate climbs. Miners cite cheap power."
	keywords := ExtractKeywords(text, nil)

	if len(keywords) == 0 {
		t.Fatal("expected keywords")
	}
	// "bitcoin" and "miners" both appear twice and outrank the singles.
	if keywords[0] != "bitcoin" && keywords[0] != "miners" {
		t.Errorf("top keyword = %q, want bitcoin or miners", keywords[0])
	}

	for _, kw := range keywords {
		if stopwords[strings.ToLower(kw)] {
			t.Errorf("stopword %q leaked into keywords", kw)
		}
		if len(kw) < 3 {
			t.Errorf("short token %q leaked into keywords", kw)
		}
	}
}

func TestExtractKeywordsPreservesAllCaps(t *testing.T) {
	text := "SEC filing mentions BTC and the SEC again"
	keywords := ExtractKeywords(text, nil)

	found := map[string]bool{}
	for _, kw := range keywords {
		found[kw] = true
	}
	if !found["SEC"] {
		t.Errorf("expected SEC upper-cased, got %v", keywords)
	}
	if !found["BTC"] {
		t.Errorf("expected BTC upper-cased, got %v", keywords)
	}
}

func TestExtractKeywordsDollarPrefixAndDigits(t *testing.T) {
	text := "$SOL jumped 500 percent says report report report"
	keywords := ExtractKeywords(text, nil)

	for _, kw := range keywords {
		if kw == "500" {
			t.Error("all-digit token leaked into keywords")
		}
	}
	found := false
	for _, kw := range keywords {
		if kw == "SOL" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected $SOL stripped to SOL, got %v", keywords)
	}
}

func TestExtractKeywordsMergesThemes(t *testing.T) {
	keywords := ExtractKeywords("etf inflows etf inflows", []string{"regulation", "etf"})

	found := map[string]bool{}
	for _, kw := range keywords {
		found[strings.ToLower(kw)] = true
	}
	if !found["regulation"] {
		t.Errorf("theme not merged: %v", keywords)
	}
	// "etf" is already a keyword; the theme must not duplicate it.
	count := 0
	for _, kw := range keywords {
		if strings.EqualFold(kw, "etf") {
			count++
		}
	}
	if count != 1 {
		t.Errorf("etf appears %d times, want 1", count)
	}
}

func TestExtractKeywordsCap(t *testing.T) {
	text := strings.Repeat("alpha bravo charlie delta echoed foxtrot golf hotel india juliet kilo lima ", 2)
	keywords := ExtractKeywords(text, []string{"extra1", "extra2"})
	if len(keywords) > 10 {
		t.Errorf("keyword count = %d, want at most 10", len(keywords))
	}
}
