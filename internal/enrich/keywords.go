package enrich

import (
	"sort"
	"strings"
	"unicode"
)

// stopwords excluded from keyword extraction.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "are": true, "was": true, "were": true,
	"has": true, "have": true, "had": true, "but": true, "not": true,
	"its": true, "his": true, "her": true, "their": true, "they": true,
	"will": true, "would": true, "could": true, "should": true, "can": true,
	"been": true, "being": true, "into": true, "over": true, "under": true,
	"after": true, "before": true, "about": true, "more": true, "most": true,
	"than": true, "then": true, "when": true, "what": true, "which": true,
	"who": true, "how": true, "why": true, "all": true, "also": true,
	"said": true, "says": true, "say": true, "new": true, "now": true,
	"may": true, "just": true, "out": true, "you": true, "your": true,
	"our": true, "per": true, "via": true, "amid": true, "as": true,
	"on": true, "in": true, "at": true, "to": true, "of": true, "is": true,
	"it": true, "an": true, "by": true, "or": true, "be": true, "up": true,
	"here": true, "there": true, "while": true, "during": true, "against": true,
}

// keywordCap bounds the merged keyword list.
const keywordCap = 10

// ExtractKeywords returns the top frequency keywords of the text.
// Tokens shorter than 3 characters, stopwords and all-digit tokens are
// excluded. Casing follows the first occurrence, except all-caps
// tokens (tickers, agencies) which stay upper-cased.
func ExtractKeywords(text string, themes []string) []string {
	counts := make(map[string]int)
	casing := make(map[string]string)

	for _, raw := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '$'
	}) {
		token := strings.Trim(raw, "$")
		if len(token) < 3 {
			continue
		}
		lower := strings.ToLower(token)
		if stopwords[lower] {
			continue
		}
		if allDigits(token) {
			continue
		}
		counts[lower]++
		if _, ok := casing[lower]; !ok || token == strings.ToUpper(token) {
			casing[lower] = canonicalCasing(token)
		}
	}

	type kw struct {
		token string
		count int
	}
	ranked := make([]kw, 0, len(counts))
	for token, count := range counts {
		ranked = append(ranked, kw{token, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].token < ranked[j].token
	})

	keywords := make([]string, 0, keywordCap)
	seen := make(map[string]bool)
	for _, k := range ranked {
		if len(keywords) >= keywordCap {
			break
		}
		keywords = append(keywords, casing[k.token])
		seen[k.token] = true
	}

	// Merge themes in up to the cap.
	for _, theme := range themes {
		if len(keywords) >= keywordCap {
			break
		}
		lower := strings.ToLower(strings.TrimSpace(theme))
		if lower == "" || seen[lower] {
			continue
		}
		keywords = append(keywords, lower)
		seen[lower] = true
	}
	return keywords
}

// canonicalCasing keeps all-caps tokens (BTC, SEC) and lowercases the rest.
func canonicalCasing(token string) string {
	if token == strings.ToUpper(token) && strings.IndexFunc(token, unicode.IsLetter) >= 0 {
		return token
	}
	return strings.ToLower(token)
}

func allDigits(token string) bool {
	for _, r := range token {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
