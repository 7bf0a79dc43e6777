package narrative

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// Matching thresholds.
const (
	freshMatchThreshold  = 0.5  // candidates updated within the last 48h
	staleMatchThreshold  = 0.6  // everything older
	reactivateThreshold  = 0.80 // dormant same-nucleus reactivation
	adaptiveWindowHours  = 48.0
	defaultReactivateWin = 30 // days
)

// ErrBlacklistedNucleus marks clusters anchored on a blacklisted entity.
var ErrBlacklistedNucleus = errors.New("blacklisted nucleus entity")

// Matcher pairs freshly formed clusters with existing narratives.
type Matcher struct {
	store            *store.Store
	engine           *Engine
	lookbackHours    float64
	reactivationDays float64
	blacklist        map[string]bool
	now              func() time.Time
}

// NewMatcher creates a matcher from config.
func NewMatcher(st *store.Store, engine *Engine, cfg config.Narrative) *Matcher {
	lookback := float64(cfg.LookbackHours)
	if lookback <= 0 {
		lookback = 48
	}
	reactivationDays := float64(cfg.ReactivationWindowDays)
	if reactivationDays <= 0 {
		reactivationDays = defaultReactivateWin
	}
	blacklist := make(map[string]bool, len(cfg.NucleusBlacklist))
	for _, b := range cfg.NucleusBlacklist {
		blacklist[strings.ToLower(b)] = true
	}
	return &Matcher{
		store:            st,
		engine:           engine,
		lookbackHours:    lookback,
		reactivationDays: reactivationDays,
		blacklist:        blacklist,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Match finds the existing narrative a cluster belongs to, or nil when
// the cluster should seed a new one. The candidate window adapts to the
// cluster's velocity; the similarity threshold adapts to each
// candidate's age.
func (m *Matcher) Match(fp core.Fingerprint, clusterSize int) (*core.Narrative, error) {
	if fp.NucleusEntity == "" {
		return nil, nil
	}
	if m.blacklist[strings.ToLower(fp.NucleusEntity)] {
		return nil, ErrBlacklistedNucleus
	}

	now := m.now()
	velocity := float64(clusterSize) / (m.lookbackHours / 24)
	grace := GraceDays(velocity)
	cutoff := now.Add(-time.Duration(grace * 24 * float64(time.Hour)))

	candidates, err := m.store.GetActiveNarratives()
	if err != nil {
		return nil, fmt.Errorf("failed to load match candidates: %w", err)
	}

	var best *core.Narrative
	bestSim := 0.0
	for _, candidate := range candidates {
		if candidate.LastUpdated.Before(cutoff) {
			continue
		}
		sim := Similarity(fp, candidate.Fingerprint)
		threshold := staleMatchThreshold
		if now.Sub(candidate.LastUpdated).Hours() < adaptiveWindowHours {
			threshold = freshMatchThreshold
		}
		if sim < threshold {
			continue
		}
		if sim > bestSim {
			best = candidate
			bestSim = sim
		}
	}
	return best, nil
}

// FindReactivation looks for a dormant same-nucleus narrative worth
// resurrecting: dormancy began strictly within the reactivation window
// and the stored fingerprint matches at 0.80 or better. The highest
// similarity wins.
func (m *Matcher) FindReactivation(fp core.Fingerprint) (*core.Narrative, error) {
	if fp.NucleusEntity == "" {
		return nil, nil
	}

	now := m.now()
	cutoff := now.Add(-time.Duration(m.reactivationDays * 24 * float64(time.Hour)))
	dormant, err := m.store.GetDormantNarrativesSince(cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to load dormant narratives: %w", err)
	}

	var best *core.Narrative
	bestSim := 0.0
	for _, candidate := range dormant {
		if candidate.NucleusEntity != fp.NucleusEntity {
			continue
		}
		sim := Similarity(fp, candidate.Fingerprint)
		if sim < reactivateThreshold {
			continue
		}
		if sim > bestSim {
			best = candidate
			bestSim = sim
		}
	}
	return best, nil
}

// MergeCluster folds a cluster's articles into an existing narrative
// and recomputes the derived fields. Used on the regular match path.
func (m *Matcher) MergeCluster(n *core.Narrative, cluster *Cluster, fp core.Fingerprint) error {
	expectedVersion := n.Version
	appended := unionArticles(n, cluster.Articles)

	members, err := m.store.GetArticlesByIDs(n.ArticleIDs)
	if err != nil {
		return err
	}
	m.recompute(n, members)
	n.Fingerprint = fp
	if appended > 0 {
		n.NeedsSummaryUpdate = true
	}

	// Touch before classifying so the merge counts as fresh activity.
	m.touch(n)
	m.engine.Apply(n)
	if err := m.saveVersioned(n, expectedVersion); err != nil {
		return err
	}
	return m.stampMembership(cluster.Articles, n.ID)
}

// Reactivate folds a cluster into a dormant narrative and brings it
// back as reactivated, with the resurrection fields filled in.
func (m *Matcher) Reactivate(n *core.Narrative, cluster *Cluster, fp core.Fingerprint) error {
	expectedVersion := n.Version
	priorCount := n.ArticleCount
	priorSentiment := n.AvgSentiment

	unionArticles(n, cluster.Articles)

	members, err := m.store.GetArticlesByIDs(n.ArticleIDs)
	if err != nil {
		return err
	}
	m.recompute(n, members)
	n.Fingerprint = fp
	n.NeedsSummaryUpdate = true

	// Weighted blend of the dormant narrative's sentiment and the
	// incoming cluster's.
	incoming := clusterSentiment(cluster.Articles)
	total := priorCount + len(cluster.Articles)
	if total > 0 {
		n.AvgSentiment = (priorSentiment*float64(priorCount) + incoming*float64(len(cluster.Articles))) / float64(total)
	}

	m.engine.Transition(n, core.StateReactivated)
	n.ReactivatedCount++
	m.touch(n)
	if err := m.saveVersioned(n, expectedVersion); err != nil {
		return err
	}
	return m.stampMembership(cluster.Articles, n.ID)
}

// CreateNarrative seeds a new narrative from a cluster. Refuses
// clusters with no nucleus.
func (m *Matcher) CreateNarrative(cluster *Cluster, fp core.Fingerprint, title, summary string) (*core.Narrative, error) {
	if fp.NucleusEntity == "" {
		return nil, errors.New("refusing to create narrative without nucleus entity")
	}

	now := m.now()
	n := &core.Narrative{
		ID:            narrativeID(fp.NucleusEntity, cluster.Articles),
		Theme:         fp.NucleusEntity,
		Title:         title,
		Summary:       summary,
		NucleusEntity: fp.NucleusEntity,
		Fingerprint:   fp,
		FirstSeen:     now,
		LastUpdated:   now,
	}
	unionArticles(n, cluster.Articles)
	m.recompute(n, cluster.Articles)

	m.engine.Apply(n)
	if err := m.store.SaveNarrative(n); err != nil {
		return nil, err
	}
	if err := m.stampMembership(cluster.Articles, n.ID); err != nil {
		return nil, err
	}
	return n, nil
}

// recompute refreshes the derived fields from the member articles.
func (m *Matcher) recompute(n *core.Narrative, members []*core.Article) {
	now := m.now()

	published := make([]time.Time, 0, len(members))
	var newest time.Time
	var sentimentSum float64
	for _, a := range members {
		published = append(published, a.PublishedAt)
		if a.PublishedAt.After(newest) {
			newest = a.PublishedAt
		}
		sentimentSum += a.SentimentScore
	}

	n.MentionVelocity = MentionVelocity(published, now)
	n.Momentum = Momentum(published)
	n.RecencyScore = RecencyScore(newest, now)
	if len(members) > 0 {
		n.AvgSentiment = sentimentSum / float64(len(members))
	}
	n.Entities = topEntities(members, topActorsLimit)
	n.EntityRelationships = entityRelationships(members, 5)
	updateTimeline(n, members, now)
}

// touch sets last_updated and repairs timestamp corruption: a
// last_updated behind first_seen is pulled up, a future first_seen is
// reset to now.
func (m *Matcher) touch(n *core.Narrative) {
	now := m.now()
	n.LastUpdated = now
	if n.FirstSeen.After(now) {
		logger.Warn("repairing future first_seen", "narrative", n.ID, "first_seen", n.FirstSeen)
		n.FirstSeen = now
	}
	if n.LastUpdated.Before(n.FirstSeen) {
		logger.Warn("repairing last_updated before first_seen", "narrative", n.ID)
		n.LastUpdated = n.FirstSeen
	}
}

func (m *Matcher) saveVersioned(n *core.Narrative, expectedVersion int64) error {
	err := m.store.SaveNarrativeVersioned(n, expectedVersion)
	if errors.Is(err, store.ErrVersionConflict) {
		logger.Warn("narrative write conflict, skipping merge", "narrative", n.ID)
		return err
	}
	return err
}

func (m *Matcher) stampMembership(articles []*core.Article, narrativeID string) error {
	for _, a := range articles {
		if a.NarrativeID == narrativeID {
			continue
		}
		if err := m.store.SetArticleNarrative(a.ID, narrativeID); err != nil {
			return err
		}
	}
	return nil
}

// unionArticles adds the articles' ids to the narrative, deduplicated,
// and keeps article_count consistent. Returns how many were new.
func unionArticles(n *core.Narrative, articles []*core.Article) int {
	have := make(map[string]bool, len(n.ArticleIDs))
	for _, id := range n.ArticleIDs {
		have[id] = true
	}
	added := 0
	for _, a := range articles {
		if !have[a.ID] {
			n.ArticleIDs = append(n.ArticleIDs, a.ID)
			have[a.ID] = true
			added++
		}
	}
	n.ArticleCount = len(n.ArticleIDs)
	return added
}

func clusterSentiment(articles []*core.Article) float64 {
	if len(articles) == 0 {
		return 0
	}
	var sum float64
	for _, a := range articles {
		sum += a.SentimentScore
	}
	return sum / float64(len(articles))
}

// topEntities ranks entities mentioned across the members by frequency.
func topEntities(members []*core.Article, limit int) []string {
	counts := make(map[string]int)
	for _, a := range members {
		for _, e := range a.Entities {
			counts[e.Name]++
		}
		if a.NucleusEntity != "" {
			counts[a.NucleusEntity]++
		}
	}
	return topByCountN(counts, limit)
}

// entityRelationships ranks co-occurrence pairs among member articles'
// entities, heaviest first.
func entityRelationships(members []*core.Article, limit int) []core.EntityRelationship {
	pairCounts := make(map[[2]string]int)
	for _, a := range members {
		names := make([]string, 0, len(a.Entities))
		seen := make(map[string]bool)
		for _, e := range a.Entities {
			if !seen[e.Name] {
				names = append(names, e.Name)
				seen[e.Name] = true
			}
		}
		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				pair := [2]string{names[i], names[j]}
				if pair[0] > pair[1] {
					pair[0], pair[1] = pair[1], pair[0]
				}
				pairCounts[pair]++
			}
		}
	}

	pairs := make([][2]string, 0, len(pairCounts))
	for pair := range pairCounts {
		pairs = append(pairs, pair)
	}
	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if pairCounts[a] != pairCounts[b] {
			return pairCounts[a] > pairCounts[b]
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		return a[1] < b[1]
	})
	if len(pairs) > limit {
		pairs = pairs[:limit]
	}

	relationships := make([]core.EntityRelationship, 0, len(pairs))
	for _, pair := range pairs {
		relationships = append(relationships, core.EntityRelationship{
			EntityA: pair[0],
			EntityB: pair[1],
			Weight:  pairCounts[pair],
		})
	}
	return relationships
}


// updateTimeline overwrites today's snapshot in place, keeping at most
// one entry per UTC date, and refreshes the peak.
func updateTimeline(n *core.Narrative, members []*core.Article, now time.Time) {
	today := now.Format("2006-01-02")
	todayCount := 0
	for _, a := range members {
		if a.PublishedAt.UTC().Format("2006-01-02") == today {
			todayCount++
		}
	}

	entry := core.TimelineEntry{
		Date:         today,
		ArticleCount: todayCount,
		TopEntities:  topEntities(members, 5),
		Velocity:     n.MentionVelocity,
	}
	replaced := false
	for i := range n.TimelineData {
		if n.TimelineData[i].Date == today {
			n.TimelineData[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		n.TimelineData = append(n.TimelineData, entry)
	}
	n.DaysActive = len(n.TimelineData)

	if todayCount > n.PeakActivity.ArticleCount {
		n.PeakActivity = core.PeakActivity{
			Date:         today,
			ArticleCount: todayCount,
			Velocity:     n.MentionVelocity,
		}
	}
}

// narrativeID is deterministic over the nucleus and the founding
// article, so re-running detection over a static article set does not
// mint duplicate narratives.
func narrativeID(nucleus string, articles []*core.Article) string {
	seed := nucleus
	if len(articles) > 0 {
		seed += "|" + articles[0].ID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("narrative|"+seed)).String()
}
