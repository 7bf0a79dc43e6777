// Package relevance assigns articles to editorial tiers with
// rule-based title and body matching. It deliberately ignores the
// source so that tiering stays free of source bias.
package relevance

import (
	"regexp"
	"strings"

	"cryptopulse/internal/core"
)

// Result is the outcome of classifying one article.
type Result struct {
	Tier           int    `json:"tier"`            // 1, 2 or 3
	Reason         string `json:"reason"`          // Why the tier was assigned
	MatchedPattern string `json:"matched_pattern"` // The pattern that fired, if any
}

// Classifier is a stateless tier classifier with precompiled patterns.
type Classifier struct {
	tier1    []*regexp.Regexp
	tier3    []*regexp.Regexp
	historic []*regexp.Regexp
}

// Tier-1 patterns: regulatory/legal, security incidents, hard market
// data with dollar figures, institutional moves, country-level adoption.
var tier1Patterns = []string{
	`(?i)\b(sec|cftc|doj|irs|fincen|ofac|treasury)\b.*\b(sues?|charges?|fines?|settle|approves?|rejects?|subpoena|lawsuit|probe|investigat)`,
	`(?i)\b(lawsuit|indicted?|convicted|sentenced|settlement|injunction|court rules?)\b`,
	`(?i)\b(regulation|regulatory|legislation|bill passes|executive order|ban(s|ned)?)\b`,
	`(?i)\b(hack(ed|ers?)?|exploit(ed)?|breach(ed)?|stolen|drained|rug pull|phishing)\b`,
	`(?i)\$[\d,.]+\s*(billion|million|bn|m\b)`,
	`(?i)\b(etf (approval|approved|launch|inflows?|outflows?)|spot etf)\b`,
	`(?i)\b(blackrock|fidelity|grayscale|jpmorgan|goldman|microstrategy|vanguard)\b.*\b(buys?|acquires?|files?|launches?|adds?|invest)`,
	`(?i)\b(legal tender|central bank|cbdc|nation(al)? adoption|strategic (bitcoin )?reserve)\b`,
	`(?i)\b(bankrupt(cy)?|insolven(t|cy)|liquidat(ion|ed)|collapse[sd]?)\b`,
	`(?i)\b(halving|hard fork|mainnet launch|network upgrade)\b`,
}

// Tier-3 patterns: non-crypto topics in crypto feeds, pure speculation,
// price-prediction listicles, retrospectives.
var tier3Patterns = []string{
	`(?i)\b(price prediction|could (hit|reach|soar|explode)|next 100x|to the moon)\b`,
	`(?i)\b(top \d+ (coins?|tokens?|altcoins?|cryptos?))\b`,
	`(?i)\b(best (crypto|coins?|tokens?) to buy)\b`,
	`(?i)\b(here'?s why|what you need to know|you won'?t believe)\b`,
	`(?i)\b(this week in|week in review|monthly recap|year in review|a look back)\b`,
	`(?i)\b(horoscope|celebrity|kardashian|movie|netflix)\b`,
	`(?i)\b(presale|pre-sale)\b.*\b(gem|moonshot|don'?t miss)\b`,
	`(?i)\b(shiba|pepe|doge)\b.*\b(millionaire|rich|lambo)\b`,
	`(?i)\bprice analysis\b`,
	`(?i)\b(giveaway|airdrop alert|promo code)\b`,
}

// Historical-security patterns demote an otherwise tier-1 security hit:
// "hacker sentenced" is record-keeping, not an incident.
var historicalPatterns = []string{
	`(?i)\b(hacker|attacker|exploiter|scammer|fraudster)s?\b.*\b(sentenced|convicted|pleads? guilty|arrested|extradited)\b`,
	`(?i)\b(recover(s|ed)?|returns?|repa(ys?|id))\b.*\b(stolen|hacked|drained)\b`,
	`(?i)\b(anniversary|years? (ago|later|after))\b`,
}

// NewClassifier compiles the pattern groups once.
func NewClassifier() *Classifier {
	return &Classifier{
		tier1:    compileAll(tier1Patterns),
		tier3:    compileAll(tier3Patterns),
		historic: compileAll(historicalPatterns),
	}
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// bodyProbe limits tier-1 body matching to the lede.
const bodyProbe = 1000

// Classify assigns a tier from title, optional body and optional source.
// The source parameter is accepted for interface symmetry but never
// consulted; source tiers belong to selective processing, not relevance.
func (c *Classifier) Classify(title, body, source string) Result {
	_ = source

	title = strings.TrimSpace(title)

	if pat := firstMatch(c.tier3, title); pat != "" {
		return Result{
			Tier:           core.TierLow,
			Reason:         "title matched low-value pattern",
			MatchedPattern: pat,
		}
	}

	if pat := firstMatch(c.tier1, title); pat != "" {
		if hist := firstMatch(c.historic, title); hist != "" {
			return Result{
				Tier:           core.TierDefault,
				Reason:         "tier-1 match demoted by historical-security pattern",
				MatchedPattern: hist,
			}
		}
		return Result{
			Tier:           core.TierHigh,
			Reason:         "title matched high-signal pattern",
			MatchedPattern: pat,
		}
	}

	if body != "" {
		probe := body
		if len(probe) > bodyProbe {
			probe = probe[:bodyProbe]
		}
		if pat := firstMatch(c.tier1, probe); pat != "" {
			return Result{
				Tier:           core.TierHigh,
				Reason:         "body matched high-signal pattern",
				MatchedPattern: pat,
			}
		}
	}

	return Result{Tier: core.TierDefault, Reason: "no pattern matched"}
}

func firstMatch(patterns []*regexp.Regexp, text string) string {
	for _, p := range patterns {
		if p.MatchString(text) {
			return p.String()
		}
	}
	return ""
}
