package narrative

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/store"
)

// Summarizer is the capable-tier LLM surface for narrative titles.
type Summarizer interface {
	SummarizeCluster(ctx context.Context, articles []*core.Article) (title, summary string, err error)
}

// Detector drives one end-to-end narrative detection cycle.
type Detector struct {
	store      *store.Store
	extractor  *Extractor
	clusterer  *Clusterer
	matcher    *Matcher
	engine     *Engine
	summarizer Summarizer
	lookback   time.Duration
	now        func() time.Time
}

// NewDetector wires the detection cycle.
func NewDetector(st *store.Store, llm Discoverer, summarizer Summarizer, cfg config.Narrative) *Detector {
	lookback := time.Duration(cfg.LookbackHours) * time.Hour
	if lookback <= 0 {
		lookback = 48 * time.Hour
	}
	engine := NewEngine(cfg)
	return &Detector{
		store:      st,
		extractor:  NewExtractor(st, llm),
		clusterer:  NewClusterer(cfg),
		matcher:    NewMatcher(st, engine, cfg),
		engine:     engine,
		summarizer: summarizer,
		lookback:   lookback,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CycleResult summarizes one detection cycle.
type CycleResult struct {
	Refreshed   int `json:"refreshed"`
	Annotated   int `json:"annotated"`
	Clusters    int `json:"clusters"`
	Matched     int `json:"matched"`
	Created     int `json:"created"`
	Reactivated int `json:"reactivated"`
	Skipped     int `json:"skipped"`
}

// Run executes one detection cycle: refresh every narrative's
// lifecycle state, backfill narrative elements, cluster the lookback
// window, then match, reactivate or create per cluster. The refresh
// runs first so matching sees current states. Cluster failures are
// logged and skipped.
func (d *Detector) Run(ctx context.Context) (*CycleResult, error) {
	cutoff := d.now().Add(-d.lookback)
	result := &CycleResult{}

	refreshed, err := d.refreshLifecycles()
	if err != nil {
		return result, err
	}
	result.Refreshed = refreshed

	annotated, err := d.extractor.Backfill(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("element backfill failed: %w", err)
	}
	result.Annotated = annotated

	articles, err := d.store.GetArticlesSince(cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to load detection window: %w", err)
	}

	clusters := d.clusterer.Cluster(articles)
	result.Clusters = len(clusters)

	for _, cluster := range clusters {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := d.processCluster(ctx, cluster, result); err != nil {
			logger.Error("cluster processing failed", err, "nucleus", cluster.Nucleus, "size", len(cluster.Articles))
			result.Skipped++
		}
	}

	logger.Info("narrative detection complete",
		"refreshed", result.Refreshed, "annotated", result.Annotated,
		"clusters", result.Clusters, "matched", result.Matched,
		"created", result.Created, "reactivated", result.Reactivated,
		"skipped", result.Skipped)
	return result, nil
}

// refreshLifecycles re-classifies every active narrative against the
// clock, so a narrative that stops receiving articles still progresses
// through cooling into dormant instead of holding its last state.
// Returns how many narratives changed state.
func (d *Detector) refreshLifecycles() (int, error) {
	narratives, err := d.store.GetActiveNarratives()
	if err != nil {
		return 0, fmt.Errorf("failed to load narratives for lifecycle refresh: %w", err)
	}

	now := d.now()
	changed := 0
	for _, n := range narratives {
		members, err := d.store.GetArticlesByIDs(n.ArticleIDs)
		if err != nil {
			logger.Error("lifecycle refresh skipped", err, "narrative", n.ID)
			continue
		}

		published := make([]time.Time, 0, len(members))
		var newest time.Time
		for _, a := range members {
			published = append(published, a.PublishedAt)
			if a.PublishedAt.After(newest) {
				newest = a.PublishedAt
			}
		}
		n.MentionVelocity = MentionVelocity(published, now)
		n.Momentum = Momentum(published)
		n.RecencyScore = RecencyScore(newest, now)

		prior := n.LifecycleState
		d.engine.Apply(n)
		if n.LifecycleState == prior {
			continue
		}
		if err := d.store.SaveNarrative(n); err != nil {
			logger.Error("failed to persist lifecycle change", err, "narrative", n.ID)
			continue
		}
		changed++
	}
	return changed, nil
}

func (d *Detector) processCluster(ctx context.Context, cluster *Cluster, result *CycleResult) error {
	fp := ComputeFingerprint(cluster.Articles)
	if fp.NucleusEntity == "" {
		logger.Error("cluster has no nucleus entity, refusing", nil, "size", len(cluster.Articles))
		result.Skipped++
		return nil
	}

	matched, err := d.matcher.Match(fp, len(cluster.Articles))
	if errors.Is(err, ErrBlacklistedNucleus) {
		result.Skipped++
		return nil
	}
	if err != nil {
		return err
	}

	if matched != nil {
		if matched.LifecycleState == core.StateDormant {
			if err := d.matcher.Reactivate(matched, cluster, fp); err != nil {
				return err
			}
			result.Reactivated++
			return nil
		}
		if err := d.matcher.MergeCluster(matched, cluster, fp); err != nil {
			return err
		}
		result.Matched++
		return nil
	}

	// No active match; a recently dormant same-nucleus narrative may
	// deserve resurrection before we mint a new one.
	dormant, err := d.matcher.FindReactivation(fp)
	if err != nil {
		return err
	}
	if dormant != nil {
		if err := d.matcher.Reactivate(dormant, cluster, fp); err != nil {
			return err
		}
		result.Reactivated++
		return nil
	}

	title, summary, err := d.summarizer.SummarizeCluster(ctx, cluster.Articles)
	if err != nil {
		logger.Warn("cluster summary failed, creating without", "nucleus", fp.NucleusEntity, "error", err.Error())
		title, summary = fp.NucleusEntity, ""
	}
	if _, err := d.matcher.CreateNarrative(cluster, fp, title, summary); err != nil {
		return err
	}
	result.Created++
	return nil
}
