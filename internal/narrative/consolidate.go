package narrative

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// consolidateThreshold is the similarity at which two same-nucleus
// narratives are duplicates.
const consolidateThreshold = 0.9

// stateRank orders lifecycle states by maturity for survivor tiebreaks.
var stateRank = map[core.LifecycleState]int{
	core.StateEmerging:    0,
	core.StateRising:      1,
	core.StateHot:         2,
	core.StateCooling:     3,
	core.StateReactivated: 4,
}

// Consolidator folds near-duplicate narratives that slipped past
// matching into one survivor.
type Consolidator struct {
	store *store.Store
	now   func() time.Time
}

// NewConsolidator creates a consolidator.
func NewConsolidator(st *store.Store) *Consolidator {
	return &Consolidator{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Run compares all active narrative pairs sharing a nucleus and merges
// pairs at or above the similarity threshold where both carry a focus.
// Returns the number of merges performed. A write conflict aborts that
// merge only.
func (c *Consolidator) Run() (int, error) {
	narratives, err := c.store.GetActiveNarratives()
	if err != nil {
		return 0, fmt.Errorf("failed to load narratives: %w", err)
	}

	byNucleus := make(map[string][]*core.Narrative)
	for _, n := range narratives {
		if n.NucleusEntity != "" {
			byNucleus[n.NucleusEntity] = append(byNucleus[n.NucleusEntity], n)
		}
	}

	merges := 0
	for _, group := range byNucleus {
		merges += c.consolidateGroup(group)
	}
	if merges > 0 {
		logger.Info("consolidation complete", "merges", merges)
	}
	return merges, nil
}

func (c *Consolidator) consolidateGroup(group []*core.Narrative) int {
	merges := 0
	for i := 0; i < len(group); i++ {
		for j := i + 1; j < len(group); j++ {
			a, b := group[i], group[j]
			if !a.Active() || !b.Active() {
				continue
			}
			if a.Fingerprint.NarrativeFocus == "" || b.Fingerprint.NarrativeFocus == "" {
				continue
			}
			if Similarity(a.Fingerprint, b.Fingerprint) < consolidateThreshold {
				continue
			}

			survivor, merged := pickSurvivor(a, b)
			if err := c.merge(survivor, merged); err != nil {
				if errors.Is(err, store.ErrVersionConflict) {
					logger.Warn("consolidation conflict, skipping pair",
						"survivor", survivor.ID, "merged", merged.ID)
					continue
				}
				logger.Error("consolidation merge failed", err,
					"survivor", survivor.ID, "merged", merged.ID)
				continue
			}
			merges++
		}
	}
	return merges
}

// pickSurvivor prefers the higher article count, then the more
// advanced lifecycle state.
func pickSurvivor(a, b *core.Narrative) (survivor, merged *core.Narrative) {
	if a.ArticleCount != b.ArticleCount {
		if a.ArticleCount > b.ArticleCount {
			return a, b
		}
		return b, a
	}
	if stateRank[a.LifecycleState] >= stateRank[b.LifecycleState] {
		return a, b
	}
	return b, a
}

// merge folds the duplicate into the survivor: article union, weighted
// sentiment, per-date timeline merge, most advanced state. The
// duplicate is tombstoned with merged_into set and its member articles
// repointed at the survivor.
func (c *Consolidator) merge(survivor, merged *core.Narrative) error {
	survivorVersion := survivor.Version
	mergedVersion := merged.Version
	now := c.now()

	survivorCount := survivor.ArticleCount
	mergedCount := merged.ArticleCount

	// Union article ids.
	have := make(map[string]bool, len(survivor.ArticleIDs))
	for _, id := range survivor.ArticleIDs {
		have[id] = true
	}
	for _, id := range merged.ArticleIDs {
		if !have[id] {
			survivor.ArticleIDs = append(survivor.ArticleIDs, id)
			have[id] = true
		}
	}
	survivor.ArticleCount = len(survivor.ArticleIDs)

	// Sentiment weighted by pre-merge article counts.
	total := survivorCount + mergedCount
	if total > 0 {
		survivor.AvgSentiment = (survivor.AvgSentiment*float64(survivorCount) +
			merged.AvgSentiment*float64(mergedCount)) / float64(total)
	}

	survivor.TimelineData = mergeTimelines(survivor.TimelineData, merged.TimelineData)
	survivor.DaysActive = len(survivor.TimelineData)

	if stateRank[merged.LifecycleState] > stateRank[survivor.LifecycleState] {
		survivor.LifecycleState = merged.LifecycleState
		survivor.LifecycleHistory = append(survivor.LifecycleHistory, core.LifecycleEvent{
			State:           merged.LifecycleState,
			Timestamp:       now,
			ArticleCount:    survivor.ArticleCount,
			MentionVelocity: survivor.MentionVelocity,
		})
	}

	if merged.FirstSeen.Before(survivor.FirstSeen) {
		survivor.FirstSeen = merged.FirstSeen
	}
	survivor.NeedsSummaryUpdate = true
	survivor.LastUpdated = now
	if survivor.LastUpdated.Before(survivor.FirstSeen) {
		survivor.LastUpdated = survivor.FirstSeen
	}

	if err := c.store.SaveNarrativeVersioned(survivor, survivorVersion); err != nil {
		return err
	}

	merged.LifecycleState = core.StateMerged
	merged.MergedInto = survivor.ID
	merged.LastUpdated = now
	merged.LifecycleHistory = append(merged.LifecycleHistory, core.LifecycleEvent{
		State:           core.StateMerged,
		Timestamp:       now,
		ArticleCount:    merged.ArticleCount,
		MentionVelocity: merged.MentionVelocity,
	})
	if err := c.store.SaveNarrativeVersioned(merged, mergedVersion); err != nil {
		return err
	}

	// Repoint the merged narrative's member articles.
	for _, id := range merged.ArticleIDs {
		if err := c.store.SetArticleNarrative(id, survivor.ID); err != nil {
			logger.Error("failed to repoint article", err, "article", id, "narrative", survivor.ID)
		}
	}
	return nil
}

// mergeTimelines merges per-UTC-date entries: counts and velocity sum,
// entity lists union. Output stays date-ordered.
func mergeTimelines(a, b []core.TimelineEntry) []core.TimelineEntry {
	byDate := make(map[string]core.TimelineEntry, len(a)+len(b))
	for _, entry := range a {
		byDate[entry.Date] = entry
	}
	for _, entry := range b {
		existing, ok := byDate[entry.Date]
		if !ok {
			byDate[entry.Date] = entry
			continue
		}
		existing.ArticleCount += entry.ArticleCount
		existing.Velocity += entry.Velocity
		existing.TopEntities = unionStrings(existing.TopEntities, entry.TopEntities)
		byDate[entry.Date] = existing
	}

	dates := make([]string, 0, len(byDate))
	for date := range byDate {
		dates = append(dates, date)
	}
	// Dates are YYYY-MM-DD so lexicographic order is chronological.
	sort.Strings(dates)

	out := make([]core.TimelineEntry, 0, len(dates))
	for _, date := range dates {
		out = append(out, byDate[date])
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	for _, s := range b {
		if !seen[s] {
			out = append(out, s)
			seen[s] = true
		}
	}
	return out
}

