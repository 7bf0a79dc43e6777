package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cryptopulse/internal/logger"
)

var costsCmd = &cobra.Command{
	Use:   "costs",
	Short: "Show LLM API spend",
	Long: `Display aggregated LLM spend for a reporting window, broken down
by operation and model.

Example:
  cryptopulse costs
  cryptopulse costs --days 7`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("days")

		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		since := time.Now().UTC().AddDate(0, 0, -days)
		summary, err := a.store.GetCostSummary(since)
		if err != nil {
			logger.Error("failed to load cost summary", err)
			os.Exit(1)
		}

		fmt.Printf("LLM spend since %s:\n", since.Format("2006-01-02"))
		fmt.Printf("  Total: $%.4f over %d calls (%d served from cache)\n",
			summary.TotalCostUSD, summary.TotalCalls, summary.CachedCalls)
		fmt.Printf("  Tokens: %d in / %d out\n", summary.InputTokens, summary.OutputTokens)

		if len(summary.ByOperation) > 0 {
			fmt.Println("  By operation:")
			for op, cost := range summary.ByOperation {
				fmt.Printf("    %-22s $%.4f\n", op, cost)
			}
		}
		if len(summary.ByModel) > 0 {
			fmt.Println("  By model:")
			for model, cost := range summary.ByModel {
				fmt.Printf("    %-22s $%.4f\n", model, cost)
			}
		}
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the LLM response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show LLM cache statistics",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		size, err := a.store.CacheSize()
		if err != nil {
			logger.Error("failed to read cache size", err)
			os.Exit(1)
		}
		fmt.Printf("LLM cache: %d entries\n", size)
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove expired LLM cache entries",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		purged, err := a.cache.Purge()
		if err != nil {
			logger.Error("cache purge failed", err)
			os.Exit(1)
		}
		fmt.Printf("Purged %d expired entries\n", purged)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store collection sizes",
	Run: func(cmd *cobra.Command, args []string) {
		a, err := newApp(false)
		if err != nil {
			logger.Error("failed to initialize", err)
			os.Exit(1)
		}
		defer a.Close()

		stats, err := a.store.GetStats()
		if err != nil {
			logger.Error("failed to load stats", err)
			os.Exit(1)
		}
		fmt.Println("Store statistics:")
		fmt.Printf("  Articles:        %d\n", stats.Articles)
		fmt.Printf("  Entity mentions: %d\n", stats.Mentions)
		fmt.Printf("  Signal scores:   %d\n", stats.Signals)
		fmt.Printf("  Narratives:      %d\n", stats.Narratives)
		fmt.Printf("  Cache entries:   %d\n", stats.CacheRows)
		fmt.Printf("  Alerts:          %d\n", stats.Alerts)
	},
}

func init() {
	rootCmd.AddCommand(costsCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(statsCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	costsCmd.Flags().Int("days", 30, "Reporting window in days")
}
