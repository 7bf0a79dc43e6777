// Package narrative implements narrative detection: per-article
// element extraction, salience-weighted clustering, fingerprint
// matching, the lifecycle engine and duplicate consolidation.
package narrative

import (
	"sort"
	"strings"

	"cryptopulse/internal/core"
)

const (
	topActorsLimit  = 10
	keyActionsLimit = 10
)

// ComputeFingerprint derives a deterministic fingerprint from a
// cluster's member articles: most frequent nucleus, most frequent
// tension as the focus, salience-weighted top actors and deduplicated
// top actions.
func ComputeFingerprint(articles []*core.Article) core.Fingerprint {
	nucleusCounts := make(map[string]int)
	tensionCounts := make(map[string]int)
	actorWeights := make(map[string]float64)
	actionCounts := make(map[string]int)
	entitySet := make(map[string]bool)

	for _, a := range articles {
		ns := a.NarrativeSummary
		if ns == nil {
			continue
		}
		if ns.NucleusEntity != "" {
			nucleusCounts[ns.NucleusEntity]++
			entitySet[ns.NucleusEntity] = true
		}
		for _, t := range ns.Tensions {
			t = strings.ToLower(strings.TrimSpace(t))
			if t != "" {
				tensionCounts[t]++
			}
		}
		for _, actor := range ns.Actors {
			weight := ns.ActorSalience[actor]
			if weight == 0 {
				weight = 1
			}
			actorWeights[actor] += weight
			entitySet[actor] = true
		}
		for _, action := range ns.Actions {
			action = strings.ToLower(strings.TrimSpace(action))
			if action != "" {
				actionCounts[action]++
			}
		}
	}

	fp := core.Fingerprint{
		NucleusEntity:  topByCount(nucleusCounts),
		NarrativeFocus: topByCount(tensionCounts),
		TopActors:      topByWeight(actorWeights, topActorsLimit),
		KeyActions:     topByCountN(actionCounts, keyActionsLimit),
	}
	fp.KeyEntities = make([]string, 0, len(entitySet))
	for e := range entitySet {
		fp.KeyEntities = append(fp.KeyEntities, e)
	}
	sort.Strings(fp.KeyEntities)
	return fp
}

// Similarity compares two fingerprints in [0, 1]: focus match 0.5,
// nucleus match 0.3, Jaccard overlap 0.2. When either side lacks a
// focus the weights redistribute to nucleus 0.6, Jaccard 0.4.
// Symmetric by construction.
func Similarity(a, b core.Fingerprint) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}

	focusWeight, nucleusWeight, jaccardWeight := 0.5, 0.3, 0.2
	haveFocus := a.NarrativeFocus != "" && b.NarrativeFocus != ""
	if !haveFocus {
		focusWeight, nucleusWeight, jaccardWeight = 0, 0.6, 0.4
	}

	var sim float64
	if haveFocus && strings.EqualFold(a.NarrativeFocus, b.NarrativeFocus) {
		sim += focusWeight
	}
	if a.NucleusEntity != "" && a.NucleusEntity == b.NucleusEntity {
		sim += nucleusWeight
	}
	sim += jaccardWeight * Jaccard(overlapSet(a), overlapSet(b))
	return sim
}

// overlapSet prefers key entities and falls back to top actors.
func overlapSet(fp core.Fingerprint) []string {
	if len(fp.KeyEntities) > 0 {
		return fp.KeyEntities
	}
	return fp.TopActors
}

// Jaccard computes |A∩B| / |A∪B| over two string lists, 0 when both empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, s := range a {
		setA[s] = true
	}
	setB := make(map[string]bool, len(b))
	for _, s := range b {
		setB[s] = true
	}

	intersection := 0
	for s := range setA {
		if setB[s] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// topByCount returns the most frequent key, ties broken lexicographically.
func topByCount(counts map[string]int) string {
	best := ""
	bestCount := 0
	for key, count := range counts {
		if count > bestCount || (count == bestCount && (best == "" || key < best)) {
			best = key
			bestCount = count
		}
	}
	return best
}

// topByCountN returns the top-n keys by count, ties lexicographic.
func topByCountN(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

// topByWeight returns the top-n keys by accumulated weight, ties lexicographic.
func topByWeight(weights map[string]float64, n int) []string {
	keys := make([]string, 0, len(weights))
	for key := range weights {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if weights[keys[i]] != weights[keys[j]] {
			return weights[keys[i]] > weights[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
