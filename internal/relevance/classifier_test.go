package relevance

import (
	"testing"

	"cryptopulse/internal/core"
)

func TestClassify(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name  string
		title string
		body  string
		tier  int
	}{
		{
			name:  "regulator enforcement is high",
			title: "SEC sues major exchange over unregistered securities",
			tier:  core.TierHigh,
		},
		{
			name:  "hack is high",
			title: "DeFi protocol hacked for $20 million",
			tier:  core.TierHigh,
		},
		{
			name:  "etf flows are high",
			title: "Spot ETF inflows hit record",
			tier:  core.TierHigh,
		},
		{
			name:  "price prediction is low",
			title: "Solana price prediction: could SOL hit $500?",
			tier:  core.TierLow,
		},
		{
			name:  "listicle is low",
			title: "Top 10 altcoins to watch this month",
			tier:  core.TierLow,
		},
		{
			name:  "week in review is low",
			title: "This week in crypto: everything that happened",
			tier:  core.TierLow,
		},
		{
			name:  "plain news is default",
			title: "Validator count grows on new testnet",
			tier:  core.TierDefault,
		},
		{
			name:  "hacker sentenced is demoted to default",
			title: "Bitfinex hacker sentenced to five years",
			tier:  core.TierDefault,
		},
		{
			name:  "recovered funds demoted to default",
			title: "Exchange recovers stolen funds from 2022 breach",
			tier:  core.TierDefault,
		},
		{
			name:  "body lede can promote",
			title: "Quiet morning for markets",
			body:  "The Treasury settles charges against the mixer operator today.",
			tier:  core.TierHigh,
		},
		{
			name:  "low beats high when both match",
			title: "Bitcoin price analysis after the SEC lawsuit",
			tier:  core.TierLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify(tt.title, tt.body, "anysource")
			if result.Tier != tt.tier {
				t.Errorf("Classify(%q) tier = %d, want %d (reason: %s)",
					tt.title, result.Tier, tt.tier, result.Reason)
			}
		})
	}
}

func TestClassifyIgnoresSource(t *testing.T) {
	c := NewClassifier()
	title := "Network activity steady across chains"

	a := c.Classify(title, "", "coindesk")
	b := c.Classify(title, "", "cryptopotato")
	if a.Tier != b.Tier {
		t.Errorf("source changed the tier: %d vs %d", a.Tier, b.Tier)
	}
}
