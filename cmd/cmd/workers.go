package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cryptopulse/internal/alerts"
	"cryptopulse/internal/feeds"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/narrative"
	"cryptopulse/internal/signals"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Poll all configured RSS feeds once",
	Long: `Fetch every configured feed, strip HTML from new items, and store
them as unenriched articles. Duplicate URLs are skipped.

Example:
  cryptopulse ingest`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		ingester := feeds.NewIngester(a.store, a.cfg.Feeds)
		result, err := ingester.Run()
		if err != nil {
			logger.Error("ingestion failed", err)
			os.Exit(1)
		}
		fmt.Printf("Polled %d feeds (%d failed): %d new articles, %d duplicates, %d skipped\n",
			result.FeedsPolled, result.FeedsFailed, result.NewArticles, result.Duplicates, result.Skipped)
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich one batch of pending articles",
	Long: `Run one enrichment batch: sentiment, relevance, themes, keywords,
and entity extraction for articles not yet enriched. Requires a Gemini
API key.

Example:
  cryptopulse enrich`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(true)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		result, err := a.enrichPipeline().Run(cmd.Context())
		if err != nil {
			logger.Error("enrichment failed", err)
			os.Exit(1)
		}
		fmt.Printf("Enriched %d articles (%d failed), %d entity mentions recorded\n",
			result.Processed, result.Failed, result.Mentions)
	},
}

var signalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Recompute signal scores for active entities",
	Long: `Rescore every entity with a primary mention in the last 30 days
across the 24h, 7d and 30d windows, then drop stale scores.

Example:
  cryptopulse signals`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		scorer := signals.NewScorer(a.store)
		result, err := scorer.Run(cmd.Context())
		if err != nil {
			logger.Error("signal scoring failed", err)
			os.Exit(1)
		}
		removed, err := scorer.CleanupStale()
		if err != nil {
			logger.Error("stale signal cleanup failed", err)
		}
		fmt.Printf("Scored %d entities (%d failed), removed %d stale scores\n",
			result.Scored, result.Failed, removed)
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one narrative detection cycle",
	Long: `Backfill narrative elements for enriched articles, cluster the
lookback window, and match clusters against tracked narratives.
Unmatched clusters become new narratives; recently dormant narratives
may reactivate. Requires a Gemini API key.

Example:
  cryptopulse detect`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(true)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		detector := narrative.NewDetector(a.store, a.gateway, a.gateway, a.cfg.Narrative)
		result, err := detector.Run(cmd.Context())
		if err != nil {
			logger.Error("narrative detection failed", err)
			os.Exit(1)
		}
		fmt.Printf("Annotated %d articles, %d clusters: %d matched, %d created, %d reactivated, %d skipped\n",
			result.Annotated, result.Clusters, result.Matched, result.Created, result.Reactivated, result.Skipped)
	},
}

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge near-duplicate narratives",
	Long: `Compare active narratives sharing a nucleus entity and fold
near-duplicates into a single survivor.

Example:
  cryptopulse consolidate`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		merges, err := narrative.NewConsolidator(a.store).Run()
		if err != nil {
			logger.Error("consolidation failed", err)
			os.Exit(1)
		}
		fmt.Printf("Performed %d merges\n", merges)
	},
}

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate alert rules against trending entities",
	Long: `Check the 24h trending set against the score, velocity and
sentiment divergence thresholds and record any breaches.

Example:
  cryptopulse alerts`,
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		detector := alerts.NewDetector(a.store, signals.NewScorer(a.store), a.cfg.Alerts)
		raised, err := detector.Run()
		if err != nil {
			logger.Error("alert evaluation failed", err)
			os.Exit(1)
		}
		fmt.Printf("Raised %d alerts\n", raised)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(signalsCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(consolidateCmd)
	rootCmd.AddCommand(alertsCmd)
}
