package narrative

import (
	"strings"

	"cryptopulse/internal/config"
	"cryptopulse/internal/core"
)

// ubiquitousNuclei anchor so many stories that a small cluster around
// them says nothing; such clusters are shallow until they grow.
var ubiquitousNuclei = map[string]bool{
	"Bitcoin":        true,
	"Ethereum":       true,
	"crypto":         true,
	"blockchain":     true,
	"cryptocurrency": true,
}

// Cluster is a group of articles under one developing story.
type Cluster struct {
	Articles   []*core.Article
	Nucleus    string
	Actors     map[string]bool
	CoreActors map[string]bool
	Tensions   map[string]bool
}

// Clusterer groups enriched articles by weighted link strength.
type Clusterer struct {
	coreSalience  float64
	linkThreshold float64
	minSize       int
	mergeOverlap  float64
}

// NewClusterer creates a clusterer from config, falling back to the
// tuned defaults for unset values.
func NewClusterer(cfg config.Narrative) *Clusterer {
	c := &Clusterer{
		coreSalience:  cfg.CoreActorSalience,
		linkThreshold: cfg.LinkStrengthThreshold,
		minSize:       cfg.MinClusterSize,
		mergeOverlap:  cfg.ShallowMergeSimilarity,
	}
	if c.coreSalience == 0 {
		c.coreSalience = 4.5
	}
	if c.linkThreshold == 0 {
		c.linkThreshold = 0.8
	}
	if c.minSize == 0 {
		c.minSize = 3
	}
	if c.mergeOverlap == 0 {
		c.mergeOverlap = 0.5
	}
	return c
}

// Cluster runs the full pass: build clusters in arrival order, fold
// shallow clusters into substantial ones, drop what stays too small.
func (c *Clusterer) Cluster(articles []*core.Article) []*Cluster {
	clusters := c.Build(articles)
	clusters = c.MergeShallow(clusters)

	kept := make([]*Cluster, 0, len(clusters))
	for _, cl := range clusters {
		if len(cl.Articles) >= c.minSize {
			kept = append(kept, cl)
		}
	}
	return kept
}

// Build assigns each article to the strongest-linked cluster at or
// above the threshold, opening a new singleton otherwise. Only
// articles with a narrative summary participate.
func (c *Clusterer) Build(articles []*core.Article) []*Cluster {
	var clusters []*Cluster
	for _, article := range articles {
		if article.NarrativeSummary == nil {
			continue
		}

		var best *Cluster
		bestStrength := 0.0
		for _, cluster := range clusters {
			strength := c.linkStrength(article, cluster)
			if strength > bestStrength {
				best = cluster
				bestStrength = strength
			}
		}
		if best != nil && bestStrength >= c.linkThreshold {
			c.add(best, article)
			continue
		}
		clusters = append(clusters, c.newCluster(article))
	}
	return clusters
}

// linkStrength scores how strongly an article belongs to a cluster.
func (c *Clusterer) linkStrength(article *core.Article, cluster *Cluster) float64 {
	ns := article.NarrativeSummary
	strength := 0.0

	if ns.NucleusEntity != "" && ns.NucleusEntity == cluster.Nucleus {
		strength += 1.0
	}

	coreOverlap := 0
	for _, actor := range ns.Actors {
		if ns.ActorSalience[actor] >= c.coreSalience && cluster.CoreActors[actor] {
			coreOverlap++
		}
	}
	if coreOverlap >= 2 {
		strength += 0.7
	} else if coreOverlap >= 1 {
		strength += 0.4
	}

	for _, tension := range ns.Tensions {
		if cluster.Tensions[normalizeTension(tension)] {
			strength += 0.3
			break
		}
	}
	return strength
}

func (c *Clusterer) newCluster(article *core.Article) *Cluster {
	cluster := &Cluster{
		Nucleus:    article.NarrativeSummary.NucleusEntity,
		Actors:     make(map[string]bool),
		CoreActors: make(map[string]bool),
		Tensions:   make(map[string]bool),
	}
	c.add(cluster, article)
	return cluster
}

func (c *Clusterer) add(cluster *Cluster, article *core.Article) {
	cluster.Articles = append(cluster.Articles, article)
	ns := article.NarrativeSummary
	for _, actor := range ns.Actors {
		cluster.Actors[actor] = true
		if ns.ActorSalience[actor] >= c.coreSalience {
			cluster.CoreActors[actor] = true
		}
	}
	for _, tension := range ns.Tensions {
		cluster.Tensions[normalizeTension(tension)] = true
	}
}

func normalizeTension(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// shallow reports whether a cluster is too thin to stand alone: a
// single article with few actors, or a small cluster on a ubiquitous
// nucleus.
func (c *Clusterer) shallow(cluster *Cluster) bool {
	if len(cluster.Articles) == 1 && len(cluster.Actors) < 3 {
		return true
	}
	if ubiquitousNuclei[cluster.Nucleus] && len(cluster.Articles) < 3 {
		return true
	}
	return false
}

// MergeShallow folds shallow clusters into the best-overlapping
// substantial cluster. The overlap must be strictly greater than the
// threshold; clusters with no qualifying target stay standalone.
func (c *Clusterer) MergeShallow(clusters []*Cluster) []*Cluster {
	var substantial, shallow []*Cluster
	for _, cl := range clusters {
		if c.shallow(cl) {
			shallow = append(shallow, cl)
		} else {
			substantial = append(substantial, cl)
		}
	}

	var standalone []*Cluster
	for _, sh := range shallow {
		var best *Cluster
		bestOverlap := 0.0
		for _, target := range substantial {
			overlap := Jaccard(setToList(sh.Actors), setToList(target.Actors))
			if overlap > bestOverlap {
				best = target
				bestOverlap = overlap
			}
		}
		if best == nil || bestOverlap <= c.mergeOverlap {
			standalone = append(standalone, sh)
			continue
		}
		mergeClusters(best, sh)
	}
	return append(substantial, standalone...)
}

// mergeClusters unions the shallow cluster's articles and signals into
// the target, deduplicating article references.
func mergeClusters(target, source *Cluster) {
	have := make(map[string]bool, len(target.Articles))
	for _, a := range target.Articles {
		have[a.ID] = true
	}
	for _, a := range source.Articles {
		if !have[a.ID] {
			target.Articles = append(target.Articles, a)
			have[a.ID] = true
		}
	}
	for actor := range source.Actors {
		target.Actors[actor] = true
	}
	for actor := range source.CoreActors {
		target.CoreActors[actor] = true
	}
	for tension := range source.Tensions {
		target.Tensions[tension] = true
	}
}

func setToList(set map[string]bool) []string {
	list := make([]string, 0, len(set))
	for s := range set {
		list = append(list, s)
	}
	return list
}
