package narrative

import (
	"math"
	"testing"

	"cryptopulse/internal/core"
)

func articleWithSummary(nucleus string, actors []string, salience map[string]float64, actions, tensions []string) *core.Article {
	return &core.Article{
		NarrativeSummary: &core.NarrativeSummary{
			NucleusEntity: nucleus,
			Actors:        actors,
			ActorSalience: salience,
			Actions:       actions,
			Tensions:      tensions,
		},
	}
}

func TestComputeFingerprint(t *testing.T) {
	articles := []*core.Article{
		articleWithSummary("Binance",
			[]string{"Binance", "SEC"},
			map[string]float64{"Binance": 5, "SEC": 4},
			[]string{"files motion"},
			[]string{"Regulatory Pressure"}),
		articleWithSummary("Binance",
			[]string{"Binance", "CFTC"},
			map[string]float64{"Binance": 5, "CFTC": 3},
			[]string{"Files Motion", "responds"},
			[]string{"regulatory pressure"}),
		articleWithSummary("Coinbase",
			[]string{"Coinbase"},
			map[string]float64{"Coinbase": 4},
			nil,
			nil),
	}

	fp := ComputeFingerprint(articles)
	if fp.NucleusEntity != "Binance" {
		t.Errorf("nucleus = %q, want Binance (most frequent)", fp.NucleusEntity)
	}
	if fp.NarrativeFocus != "regulatory pressure" {
		t.Errorf("focus = %q, want lowercased most frequent tension", fp.NarrativeFocus)
	}
	if len(fp.TopActors) == 0 || fp.TopActors[0] != "Binance" {
		t.Errorf("top actor = %v, want Binance first by accumulated salience", fp.TopActors)
	}
	// Actions are lowercased and deduplicated.
	for _, action := range fp.KeyActions {
		if action == "Files Motion" {
			t.Error("actions should be lowercased")
		}
	}

	// Articles without a summary contribute nothing.
	withBare := append(articles, &core.Article{})
	if got := ComputeFingerprint(withBare); got.NucleusEntity != fp.NucleusEntity {
		t.Error("bare article changed the fingerprint")
	}
}

func TestComputeFingerprintDefaultSalience(t *testing.T) {
	// Actors missing from the salience map weigh 1.
	articles := []*core.Article{
		articleWithSummary("Bitcoin", []string{"Bitcoin", "MicroStrategy"},
			map[string]float64{"Bitcoin": 1}, nil, nil),
		articleWithSummary("Bitcoin", []string{"MicroStrategy"},
			nil, nil, nil),
	}
	fp := ComputeFingerprint(articles)
	// MicroStrategy accumulated 2, Bitcoin 1.
	if len(fp.TopActors) < 2 || fp.TopActors[0] != "MicroStrategy" {
		t.Errorf("top actors = %v, want MicroStrategy first", fp.TopActors)
	}
}

func TestSimilarity(t *testing.T) {
	base := core.Fingerprint{
		NucleusEntity:  "Binance",
		NarrativeFocus: "regulatory pressure",
		KeyEntities:    []string{"Binance", "SEC"},
	}

	t.Run("identical fingerprints score 1", func(t *testing.T) {
		if got := Similarity(base, base); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("similarity = %v, want 1.0", got)
		}
	})

	t.Run("symmetric", func(t *testing.T) {
		other := core.Fingerprint{
			NucleusEntity:  "Binance",
			NarrativeFocus: "exchange outflows",
			KeyEntities:    []string{"Binance", "CFTC"},
		}
		if Similarity(base, other) != Similarity(other, base) {
			t.Error("similarity is not symmetric")
		}
	})

	t.Run("focus case insensitive", func(t *testing.T) {
		other := base
		other.NarrativeFocus = "Regulatory Pressure"
		if got := Similarity(base, other); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("similarity = %v, want 1.0 with case-folded focus", got)
		}
	})

	t.Run("weights redistribute without focus", func(t *testing.T) {
		a := core.Fingerprint{NucleusEntity: "Binance", KeyEntities: []string{"Binance", "SEC"}}
		b := core.Fingerprint{NucleusEntity: "Binance", KeyEntities: []string{"Binance", "SEC"}}
		// nucleus 0.6 + jaccard 0.4*1.
		if got := Similarity(a, b); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("similarity = %v, want 1.0 with redistributed weights", got)
		}
	})

	t.Run("one side missing focus also redistributes", func(t *testing.T) {
		other := base
		other.NarrativeFocus = ""
		// nucleus 0.6 + jaccard 0.4*1 = 1.0.
		if got := Similarity(base, other); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("similarity = %v, want 1.0", got)
		}
	})

	t.Run("empty fingerprint scores 0", func(t *testing.T) {
		if got := Similarity(base, core.Fingerprint{}); got != 0 {
			t.Errorf("similarity with empty = %v, want 0", got)
		}
	})

	t.Run("partial overlap", func(t *testing.T) {
		other := core.Fingerprint{
			NucleusEntity:  "Coinbase",
			NarrativeFocus: "regulatory pressure",
			KeyEntities:    []string{"Coinbase", "SEC"},
		}
		// focus 0.5 + nucleus 0 + 0.2 * (1/3).
		want := 0.5 + 0.2/3
		if got := Similarity(base, other); math.Abs(got-want) > 1e-9 {
			t.Errorf("similarity = %v, want %v", got, want)
		}
	})
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []string
		expected float64
	}{
		{"both empty", nil, nil, 0},
		{"one empty", []string{"x"}, nil, 0},
		{"identical", []string{"a", "b"}, []string{"a", "b"}, 1},
		{"half overlap", []string{"a", "b"}, []string{"b", "c"}, 1.0 / 3.0},
		{"duplicates collapse", []string{"a", "a", "b"}, []string{"a", "b"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Jaccard(tt.a, tt.b); math.Abs(got-tt.expected) > 1e-9 {
				t.Errorf("Jaccard = %v, want %v", got, tt.expected)
			}
		})
	}
}
