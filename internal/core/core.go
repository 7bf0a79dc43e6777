package core

import "time"

// RelevanceTier buckets articles by editorial importance.
// Tier 1 is high-signal (regulatory, security, hard market data),
// tier 2 is the default, tier 3 is low-value filler.
const (
	TierHigh    = 1
	TierDefault = 2
	TierLow     = 3
)

// Sentiment labels derived from the numeric sentiment score.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// PrimaryEntityTypes are the entity types considered "primary".
// Everything else is a context entity.
var PrimaryEntityTypes = map[string]bool{
	"cryptocurrency": true,
	"blockchain":     true,
	"protocol":       true,
	"company":        true,
	"organization":   true,
}

// Entity is a structured entity extracted from an article.
type Entity struct {
	Type       string  `json:"type"`             // Entity type (cryptocurrency, company, person, ...)
	Name       string  `json:"name"`             // Canonical entity name
	Ticker     string  `json:"ticker,omitempty"` // Optional ticker symbol (BTC, ETH, ...)
	Confidence float64 `json:"confidence"`       // Extraction confidence (0.0 to 1.0)
	Primary    bool    `json:"primary"`          // True for the article's primary entities
}

// IsPrimaryType reports whether the entity's type is in the primary set.
func (e Entity) IsPrimaryType() bool {
	return PrimaryEntityTypes[e.Type]
}

// NarrativeSummary holds the LLM-extracted narrative elements of one article.
type NarrativeSummary struct {
	NucleusEntity string             `json:"nucleus_entity"` // The single most important entity
	Actors        []string           `json:"actors"`         // Entities playing an active role
	ActorSalience map[string]float64 `json:"actor_salience"` // Actor name -> importance 1..5
	Actions       []string           `json:"actions"`        // What happened
	Tensions      []string           `json:"tensions"`       // Conflicts or open questions
	Implications  string             `json:"implications"`   // Why it matters
	Summary       string             `json:"summary"`        // One-paragraph narrative summary
}

// Article is a news article ingested from an RSS feed, immutable once
// ingested except for the enrichment fields.
type Article struct {
	ID          string    `json:"id"`           // Stable identifier
	Source      string    `json:"source"`       // Source label, lowercase
	URL         string    `json:"url"`          // Canonical article URL (dedup key)
	Title       string    `json:"title"`        // Article title
	Body        string    `json:"body"`         // Body text (HTML stripped)
	PublishedAt time.Time `json:"published_at"` // Publication timestamp, UTC
	IngestedAt  time.Time `json:"ingested_at"`  // When the article was stored

	// Enrichment fields, written by the enrichment pipeline.
	RelevanceTier    int               `json:"relevance_tier"`              // 1, 2 or 3 (0 = not yet enriched)
	RelevanceScore   float64           `json:"relevance_score"`             // 0.0 to 1.0
	SentimentScore   float64           `json:"sentiment_score"`             // -1.0 to 1.0
	SentimentLabel   string            `json:"sentiment_label"`             // positive, neutral, negative
	Themes           []string          `json:"themes,omitempty"`            // Short theme strings, ordered
	Keywords         []string          `json:"keywords,omitempty"`          // Top frequency keywords
	Entities         []Entity          `json:"entities,omitempty"`          // Extracted entities
	NarrativeSummary *NarrativeSummary `json:"narrative_summary,omitempty"` // Narrative elements (backfilled)
	NucleusEntity    string            `json:"nucleus_entity,omitempty"`    // Denormalized for index
	NarrativeID      string            `json:"narrative_id,omitempty"`      // Narrative membership
	EnrichedAt       time.Time         `json:"enriched_at,omitempty"`       // When enrichment completed
}

// Enriched reports whether the enrichment pipeline has processed the article.
func (a Article) Enriched() bool {
	return a.RelevanceTier != 0 && a.SentimentLabel != ""
}

// EntityMention is one (article, entity) emission created during enrichment.
type EntityMention struct {
	ID         string            `json:"id"`                 // Stable identifier
	Entity     string            `json:"entity"`             // Canonical entity name
	EntityType string            `json:"entity_type"`        // Entity type
	ArticleID  string            `json:"article_id"`         // Owning article
	Sentiment  string            `json:"sentiment"`          // Article sentiment label at emission time
	Confidence float64           `json:"confidence"`         // Extraction confidence
	IsPrimary  bool              `json:"is_primary"`         // Primary entity flag
	Source     string            `json:"source"`             // Denormalized from the article
	Timestamp  time.Time         `json:"timestamp"`          // Mention time (article publication)
	Metadata   map[string]string `json:"metadata,omitempty"` // Free-form metadata bag
}

// Signal windows tracked per entity.
const (
	Window24h = "24h"
	Window7d  = "7d"
	Window30d = "30d"
)

// WindowHours maps a signal window name to its length in hours.
var WindowHours = map[string]float64{
	Window24h: 24,
	Window7d:  7 * 24,
	Window30d: 30 * 24,
}

// WindowMetrics holds the per-window components of a signal score.
type WindowMetrics struct {
	Score    float64 `json:"score"`    // Composite score, 0 to 10
	Velocity float64 `json:"velocity"` // Mentions-last-hour over window rate
	Mentions int     `json:"mentions"` // Primary mentions in the window
	Recency  float64 `json:"recency"`  // 24h half-life decay of the newest mention
}

// SentimentStats aggregates sentiment across an entity's primary mentions.
type SentimentStats struct {
	Avg        float64 `json:"avg"`        // Mean of {+1, 0, -1} mapped labels
	Min        float64 `json:"min"`        // Minimum value observed
	Max        float64 `json:"max"`        // Maximum value observed
	Divergence float64 `json:"divergence"` // Population standard deviation
}

// SignalScore is the per-entity aggregate the signal worker maintains.
type SignalScore struct {
	Entity       string         `json:"entity"`        // Canonical entity name (unique)
	EntityType   string         `json:"entity_type"`   // Entity type
	Day          WindowMetrics  `json:"window_24h"`    // 24 hour window
	Week         WindowMetrics  `json:"window_7d"`     // 7 day window
	Month        WindowMetrics  `json:"window_30d"`    // 30 day window
	Score        float64        `json:"score"`         // Legacy: equals Day.Score
	Velocity     float64        `json:"velocity"`      // Legacy: equals Day.Velocity
	SourceCount  int            `json:"source_count"`  // Distinct sources across all primary mentions
	Sentiment    SentimentStats `json:"sentiment"`     // Sentiment stats over primary mentions
	NarrativeIDs []string       `json:"narrative_ids"` // Narratives the entity participates in
	IsEmerging   bool           `json:"is_emerging"`   // True iff not part of any narrative
	FirstSeen    time.Time      `json:"first_seen"`    // First time the entity was scored
	LastUpdated  time.Time      `json:"last_updated"`  // Last score refresh
}

// Window returns the metrics for the named window.
func (s SignalScore) Window(name string) WindowMetrics {
	switch name {
	case Window7d:
		return s.Week
	case Window30d:
		return s.Month
	default:
		return s.Day
	}
}

// Fingerprint is a structured, similarity-comparable digest of a
// narrative or cluster.
type Fingerprint struct {
	NucleusEntity  string   `json:"nucleus_entity"`  // Anchor entity
	NarrativeFocus string   `json:"narrative_focus"` // Short focus string (may be empty)
	TopActors      []string `json:"top_actors"`      // Salience-weighted top actors, ordered
	KeyActions     []string `json:"key_actions"`     // Deduplicated top actions, ordered
	KeyEntities    []string `json:"key_entities"`    // Entity set for Jaccard comparison
}

// Empty reports whether the fingerprint carries no signal at all.
func (f Fingerprint) Empty() bool {
	return f.NucleusEntity == "" && f.NarrativeFocus == "" &&
		len(f.TopActors) == 0 && len(f.KeyEntities) == 0
}

// LifecycleState is a narrative's position in its lifecycle.
type LifecycleState string

const (
	StateEmerging    LifecycleState = "emerging"
	StateRising      LifecycleState = "rising"
	StateHot         LifecycleState = "hot"
	StateCooling     LifecycleState = "cooling"
	StateDormant     LifecycleState = "dormant"
	StateEcho        LifecycleState = "echo"
	StateReactivated LifecycleState = "reactivated"
	StateMerged      LifecycleState = "merged" // Terminal, set by consolidation only
)

// ActiveStates are the lifecycle states eligible for matching.
var ActiveStates = []LifecycleState{
	StateEmerging, StateRising, StateHot, StateCooling,
	StateDormant, StateEcho, StateReactivated,
}

// Momentum labels for a narrative's recent trajectory.
const (
	MomentumGrowing   = "growing"
	MomentumDeclining = "declining"
	MomentumStable    = "stable"
	MomentumUnknown   = "unknown"
)

// LifecycleEvent is one append-only history entry.
type LifecycleEvent struct {
	State           LifecycleState `json:"state"`            // State entered
	Timestamp       time.Time      `json:"timestamp"`        // When it was entered
	ArticleCount    int            `json:"article_count"`    // Article count at transition
	MentionVelocity float64        `json:"mention_velocity"` // Velocity at transition
}

// TimelineEntry is one per-UTC-day activity snapshot.
type TimelineEntry struct {
	Date         string   `json:"date"`          // UTC date, YYYY-MM-DD
	ArticleCount int      `json:"article_count"` // Member articles that day
	TopEntities  []string `json:"top_entities"`  // Most mentioned entities that day
	Velocity     float64  `json:"velocity"`      // Velocity observed that day
}

// PeakActivity records the maximum observed daily activity.
type PeakActivity struct {
	Date         string  `json:"date"`          // UTC date of the peak
	ArticleCount int     `json:"article_count"` // Articles at the peak
	Velocity     float64 `json:"velocity"`      // Velocity at the peak
}

// EntityRelationship is a co-occurrence pair among member articles.
type EntityRelationship struct {
	EntityA string `json:"entity_a"` // First entity
	EntityB string `json:"entity_b"` // Second entity
	Weight  int    `json:"weight"`   // Co-occurrence count
}

// Narrative is a coherent multi-article story tracked across days.
type Narrative struct {
	ID            string   `json:"id"`             // Stable identifier
	Theme         string   `json:"theme"`          // Legacy alias, equals NucleusEntity
	Title         string   `json:"title"`          // LLM-generated title (<= 60 chars)
	Summary       string   `json:"summary"`        // LLM-generated 2-3 sentence summary
	NucleusEntity string   `json:"nucleus_entity"` // Anchor entity
	Entities      []string `json:"entities"`       // Top participants, bounded
	ArticleIDs    []string `json:"article_ids"`    // Member article references
	ArticleCount  int      `json:"article_count"`  // Must equal len(ArticleIDs)

	MentionVelocity     float64              `json:"mention_velocity"`     // Articles/day over the last 7 days
	Momentum            string               `json:"momentum"`             // growing, declining, stable, unknown
	RecencyScore        float64              `json:"recency_score"`        // exp(-hours_since_newest / 24)
	AvgSentiment        float64              `json:"avg_sentiment"`        // Mean sentiment of member articles
	EntityRelationships []EntityRelationship `json:"entity_relationships"` // Top co-occurrence pairs

	LifecycleState   LifecycleState   `json:"lifecycle_state"`   // Authoritative state
	LifecycleHistory []LifecycleEvent `json:"lifecycle_history"` // Append-only transition log
	Fingerprint      Fingerprint      `json:"fingerprint"`       // Matching fingerprint

	FirstSeen   time.Time `json:"first_seen"`   // Always <= LastUpdated
	LastUpdated time.Time `json:"last_updated"` // Last write

	TimelineData []TimelineEntry `json:"timeline_data"` // One entry per UTC day
	PeakActivity PeakActivity    `json:"peak_activity"` // Maximum observed daily activity
	DaysActive   int             `json:"days_active"`   // Distinct days with activity

	ReawakeningCount     int        `json:"reawakening_count"`         // Times resurrected
	ReawakenedFrom       *time.Time `json:"reawakened_from,omitempty"` // Dormant entry preceding last reactivation
	ResurrectionVelocity float64    `json:"resurrection_velocity"`     // Proxy for articles-in-48h at reactivation
	DormantSince         *time.Time `json:"dormant_since,omitempty"`   // Set on entering dormant
	ReactivatedCount     int        `json:"reactivated_count"`         // Times reactivated from dormancy
	MergedInto           string     `json:"merged_into,omitempty"`     // Survivor id; non-empty iff state merged
	NeedsSummaryUpdate   bool       `json:"needs_summary_update"`      // Articles appended, summary stale

	Version int64 `json:"version"` // Optimistic concurrency counter
}

// Active reports whether the narrative participates in matching and queries.
func (n Narrative) Active() bool {
	return n.LifecycleState != StateMerged
}

// CacheEntry is one stored LLM response.
type CacheEntry struct {
	CacheKey  string    `json:"cache_key"`  // hash(model || prompt)
	Model     string    `json:"model"`      // Model that produced the response
	Response  string    `json:"response"`   // Structured response, JSON text
	CreatedAt time.Time `json:"created_at"` // Write time
	ExpiresAt time.Time `json:"expires_at"` // TTL boundary
}

// CostRecord is one LLM API cost entry.
type CostRecord struct {
	Timestamp    time.Time `json:"timestamp"`           // Call time
	Operation    string    `json:"operation"`           // Logical operation name
	Model        string    `json:"model"`               // Model used
	InputTokens  int       `json:"input_tokens"`        // Prompt tokens
	OutputTokens int       `json:"output_tokens"`       // Completion tokens
	CostUSD      float64   `json:"cost_usd"`            // Computed cost; 0 for cache hits
	Cached       bool      `json:"cached"`              // True when served from cache
	CacheKey     string    `json:"cache_key,omitempty"` // Cache key when applicable
}

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a threshold breach detected over signal scores.
type Alert struct {
	ID        string    `json:"id"`        // Stable identifier
	Entity    string    `json:"entity"`    // Entity that triggered the alert
	Type      string    `json:"type"`      // Rule name (score_spike, velocity_surge, ...)
	Severity  string    `json:"severity"`  // info, warning, critical
	Message   string    `json:"message"`   // Human-readable description
	Value     float64   `json:"value"`     // Observed value
	Threshold float64   `json:"threshold"` // Configured threshold
	Resolved  bool      `json:"resolved"`  // Acknowledged flag
	CreatedAt time.Time `json:"created_at"`
}

// Feed is an RSS/Atom source under management.
type Feed struct {
	ID           string    `json:"id"`            // Deterministic id from the URL
	URL          string    `json:"url"`           // Feed URL
	Source       string    `json:"source"`        // Source label, lowercase
	Title        string    `json:"title"`         // Feed title
	LastFetched  time.Time `json:"last_fetched"`  // Last successful fetch
	LastModified string    `json:"last_modified"` // Last-Modified header
	ETag         string    `json:"etag"`          // ETag header
	Active       bool      `json:"active"`        // Polled when true
	ErrorCount   int       `json:"error_count"`   // Consecutive fetch errors
	LastError    string    `json:"last_error"`    // Last error text
}
