package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App       App       `mapstructure:"app"`
	LLM       LLM       `mapstructure:"llm"`
	Feeds     Feeds     `mapstructure:"feeds"`
	Enrich    Enrich    `mapstructure:"enrich"`
	Signals   Signals   `mapstructure:"signals"`
	Narrative Narrative `mapstructure:"narrative"`
	Alerts    Alerts    `mapstructure:"alerts"`
	Server    Server    `mapstructure:"server"`
	Workers   Workers   `mapstructure:"workers"`
}

// App holds general application configuration.
type App struct {
	DataDir string `mapstructure:"data_dir"`
	Debug   bool   `mapstructure:"debug"`
}

// LLM holds model routing and cache configuration.
type LLM struct {
	APIKey         string   `mapstructure:"api_key"`
	CheapModel     string   `mapstructure:"cheap_model"`
	CapableModel   string   `mapstructure:"capable_model"`
	FallbackModels []string `mapstructure:"fallback_models"`
	CacheTTLHours  int      `mapstructure:"cache_ttl_hours"`
	Timeout        string   `mapstructure:"timeout"`
	BatchTimeout   string   `mapstructure:"batch_timeout"`
}

// RequestTimeout returns the per-call timeout, defaulting to 30s.
func (l LLM) RequestTimeout() time.Duration {
	return parseDuration(l.Timeout, 30*time.Second)
}

// BatchRequestTimeout returns the batched-extraction timeout, defaulting to 60s.
func (l LLM) BatchRequestTimeout() time.Duration {
	return parseDuration(l.BatchTimeout, 60*time.Second)
}

// Feeds holds RSS ingestion configuration.
type Feeds struct {
	Sources            []FeedSource `mapstructure:"sources"`
	BlacklistedSources []string     `mapstructure:"blacklisted_sources"`
}

// FeedSource is one configured RSS feed.
type FeedSource struct {
	Source string `mapstructure:"source"`
	URL    string `mapstructure:"url"`
}

// Enrich holds enrichment pipeline configuration.
type Enrich struct {
	EntityExtractionBatchSize int      `mapstructure:"entity_extraction_batch_size"`
	PremiumSources            []string `mapstructure:"premium_sources"`
	SkipLLMSources            []string `mapstructure:"skip_llm_sources"`
}

// Signals holds signal scorer configuration.
type Signals struct {
	TrendingMinScore float64 `mapstructure:"trending_min_score"`
}

// Narrative holds detection, clustering, and lifecycle configuration.
type Narrative struct {
	LookbackHours          int      `mapstructure:"lookback_hours"`
	MinClusterSize         int      `mapstructure:"min_cluster_size"`
	LinkStrengthThreshold  float64  `mapstructure:"link_strength_threshold"`
	CoreActorSalience      float64  `mapstructure:"core_actor_salience"`
	ShallowMergeSimilarity float64  `mapstructure:"shallow_merge_similarity"`
	DormantDaysThreshold   int      `mapstructure:"dormant_days_threshold"`
	ReactivationWindowDays int      `mapstructure:"reactivation_window_days"`
	NucleusBlacklist       []string `mapstructure:"nucleus_blacklist"`
}

// Alerts holds alert rule thresholds.
type Alerts struct {
	ScoreThreshold      float64 `mapstructure:"score_threshold"`
	VelocityThreshold   float64 `mapstructure:"velocity_threshold"`
	DivergenceThreshold float64 `mapstructure:"divergence_threshold"`
}

// Server holds HTTP server configuration.
type Server struct {
	Host         string   `mapstructure:"host"`
	Port         int      `mapstructure:"port"`
	ReadTimeout  string   `mapstructure:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

// Workers holds the cadence of each periodic worker.
type Workers struct {
	IngestInterval      string `mapstructure:"ingest_interval"`
	EnrichInterval      string `mapstructure:"enrich_interval"`
	SignalsInterval     string `mapstructure:"signals_interval"`
	DetectInterval      string `mapstructure:"detect_interval"`
	ConsolidateInterval string `mapstructure:"consolidate_interval"`
	AlertsInterval      string `mapstructure:"alerts_interval"`
}

// Load builds a Config from viper's current state.
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers default values for every recognized option.
func SetDefaults() {
	viper.SetDefault("app.data_dir", ".cryptopulse")
	viper.SetDefault("app.debug", false)

	viper.SetDefault("llm.cheap_model", "gemini-flash-lite-latest")
	viper.SetDefault("llm.capable_model", "gemini-flash-latest")
	viper.SetDefault("llm.fallback_models", []string{"gemini-flash-latest", "gemini-1.5-flash"})
	viper.SetDefault("llm.cache_ttl_hours", 168)
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("llm.batch_timeout", "60s")

	viper.SetDefault("enrich.entity_extraction_batch_size", 10)
	viper.SetDefault("enrich.premium_sources", []string{
		"coindesk", "theblock", "blockworks", "bloomberg",
	})
	viper.SetDefault("enrich.skip_llm_sources", []string{
		"cryptopotato", "newsbtc", "ambcrypto", "cryptonews",
	})

	viper.SetDefault("signals.trending_min_score", 1.0)

	viper.SetDefault("narrative.lookback_hours", 48)
	viper.SetDefault("narrative.min_cluster_size", 3)
	viper.SetDefault("narrative.link_strength_threshold", 0.8)
	viper.SetDefault("narrative.core_actor_salience", 4.5)
	viper.SetDefault("narrative.shallow_merge_similarity", 0.5)
	viper.SetDefault("narrative.dormant_days_threshold", 7)
	viper.SetDefault("narrative.reactivation_window_days", 30)
	viper.SetDefault("narrative.nucleus_blacklist", []string{
		"sponsored", "press release", "partner content",
	})

	viper.SetDefault("alerts.score_threshold", 7.0)
	viper.SetDefault("alerts.velocity_threshold", 5.0)
	viper.SetDefault("alerts.divergence_threshold", 0.8)

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "15s")
	viper.SetDefault("server.write_timeout", "30s")

	viper.SetDefault("workers.ingest_interval", "5m")
	viper.SetDefault("workers.enrich_interval", "2m")
	viper.SetDefault("workers.signals_interval", "5m")
	viper.SetDefault("workers.detect_interval", "15m")
	viper.SetDefault("workers.consolidate_interval", "1h")
	viper.SetDefault("workers.alerts_interval", "5m")

	// Flat env-style aliases for operators.
	viper.SetDefault("feeds.sources", DefaultFeedSources())
	_ = viper.BindEnv("llm.api_key", "GEMINI_API_KEY")
	_ = viper.BindEnv("llm.cache_ttl_hours", "LLM_CACHE_TTL_HOURS")
	_ = viper.BindEnv("enrich.entity_extraction_batch_size", "ENTITY_EXTRACTION_BATCH_SIZE")
	_ = viper.BindEnv("narrative.dormant_days_threshold", "DORMANT_DAYS_THRESHOLD")
	_ = viper.BindEnv("narrative.reactivation_window_days", "REACTIVATION_WINDOW_DAYS")
	_ = viper.BindEnv("narrative.shallow_merge_similarity", "SHALLOW_MERGE_SIMILARITY")
	_ = viper.BindEnv("narrative.link_strength_threshold", "LINK_STRENGTH_THRESHOLD")
	_ = viper.BindEnv("narrative.core_actor_salience", "CORE_ACTOR_SALIENCE")
	_ = viper.BindEnv("narrative.lookback_hours", "NARRATIVE_LOOKBACK_HOURS")
}

// DefaultFeedSources returns the built-in crypto news feeds.
func DefaultFeedSources() []map[string]string {
	entries := []struct{ source, url string }{
		{"coindesk", "https://www.coindesk.com/arc/outboundfeeds/rss/"},
		{"cointelegraph", "https://cointelegraph.com/rss"},
		{"decrypt", "https://decrypt.co/feed"},
		{"theblock", "https://www.theblock.co/rss.xml"},
		{"blockworks", "https://blockworks.co/feed"},
		{"bitcoinmagazine", "https://bitcoinmagazine.com/feed"},
		{"cryptoslate", "https://cryptoslate.com/feed/"},
		{"beincrypto", "https://beincrypto.com/feed/"},
		{"utoday", "https://u.today/rss"},
		{"newsbtc", "https://www.newsbtc.com/feed/"},
		{"ambcrypto", "https://ambcrypto.com/feed/"},
		{"cryptopotato", "https://cryptopotato.com/feed/"},
		{"dailyhodl", "https://dailyhodl.com/feed/"},
	}
	out := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]string{"source": e.source, "url": e.url})
	}
	return out
}

// ReadTimeoutDuration returns the parsed server read timeout.
func (s Server) ReadTimeoutDuration() time.Duration {
	return parseDuration(s.ReadTimeout, 15*time.Second)
}

// WriteTimeoutDuration returns the parsed server write timeout.
func (s Server) WriteTimeoutDuration() time.Duration {
	return parseDuration(s.WriteTimeout, 30*time.Second)
}

// Interval returns the parsed worker interval with a fallback.
func Interval(raw string, fallback time.Duration) time.Duration {
	return parseDuration(raw, fallback)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
