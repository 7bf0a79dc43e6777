package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cryptopulse/internal/config"
	"cryptopulse/internal/enrich"
	"cryptopulse/internal/llm"
	"cryptopulse/internal/llmcache"
	"cryptopulse/internal/selective"
	"cryptopulse/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cryptopulse",
	Short: "CryptoPulse ingests crypto news and tracks entity signals and narratives.",
	Long: `CryptoPulse polls crypto news RSS feeds, enriches articles with
LLM-extracted entities and sentiment, scores per-entity signals across
time windows, and clusters articles into tracked narratives with a
full lifecycle from emerging through dormant and back.

Run "cryptopulse serve" to start the workers and the HTTP API, or use
the one-shot subcommands to drive individual pipeline stages.`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./.cryptopulse.yaml)")
}

// initConfig reads the config file and environment variables.
func initConfig() {
	// A local .env is convenient in development.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".cryptopulse")
	}

	viper.AutomaticEnv()
	config.SetDefaults()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// app bundles the shared pipeline components a command needs.
type app struct {
	cfg     *config.Config
	store   *store.Store
	cache   *llmcache.Cache
	costs   *llmcache.CostTracker
	gateway *llm.Gateway
}

// newApp loads config and opens the store. When withLLM is set the
// Gemini gateway is initialized too, which requires an API key.
func newApp(withLLM bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	st, err := store.NewStore(cfg.App.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{
		cfg:   cfg,
		store: st,
		cache: llmcache.NewCache(st, cfg.LLM.CacheTTLHours),
		costs: llmcache.NewCostTracker(st),
	}

	if withLLM {
		gateway, err := llm.NewGateway(cfg.LLM, a.cache, a.costs)
		if err != nil {
			st.Close()
			return nil, err
		}
		a.gateway = gateway
	}
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to close store: %v\n", err)
	}
}

// enrichPipeline builds the enrichment pipeline over the gateway.
func (a *app) enrichPipeline() *enrich.Pipeline {
	processor := selective.NewProcessor(a.gateway, a.cfg.Enrich)
	return enrich.NewPipeline(a.store, a.gateway, processor, a.cache, a.cfg.Enrich)
}
