package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cryptopulse/internal/alerts"
	"cryptopulse/internal/config"
	"cryptopulse/internal/feeds"
	"cryptopulse/internal/logger"
	"cryptopulse/internal/narrative"
	"cryptopulse/internal/scheduler"
	"cryptopulse/internal/server"
	"cryptopulse/internal/signals"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pipeline workers and the HTTP API",
	Long: `Start the full service: periodic ingestion, enrichment, signal
scoring, narrative detection, consolidation and alerting, plus the
HTTP API for narratives, signals and alerts. Requires a Gemini API
key.

Examples:
  # Start with defaults (API on :8080)
  cryptopulse serve

  # Custom port
  cryptopulse serve --port 3000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetInt("port")
		host, _ := cmd.Flags().GetString("host")
		return runServe(port, host)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "HTTP server port (default from config: 8080)")
	serveCmd.Flags().String("host", "", "HTTP server host (default from config: 0.0.0.0)")
}

func runServe(port int, host string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if port != 0 {
		a.cfg.Server.Port = port
	}
	if host != "" {
		a.cfg.Server.Host = host
	}

	ingester := feeds.NewIngester(a.store, a.cfg.Feeds)
	pipeline := a.enrichPipeline()
	scorer := signals.NewScorer(a.store)
	detector := narrative.NewDetector(a.store, a.gateway, a.gateway, a.cfg.Narrative)
	consolidator := narrative.NewConsolidator(a.store)
	alerter := alerts.NewDetector(a.store, scorer, a.cfg.Alerts)

	sched := scheduler.New()
	sched.Add(scheduler.Job{
		Name:     "ingest",
		Interval: config.Interval(a.cfg.Workers.IngestInterval, 5*time.Minute),
		Run: func(ctx context.Context) error {
			_, err := ingester.Run()
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "enrich",
		Interval: config.Interval(a.cfg.Workers.EnrichInterval, 2*time.Minute),
		Run: func(ctx context.Context) error {
			_, err := pipeline.Run(ctx)
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "signals",
		Interval: config.Interval(a.cfg.Workers.SignalsInterval, 5*time.Minute),
		Run: func(ctx context.Context) error {
			if _, err := scorer.Run(ctx); err != nil {
				return err
			}
			_, err := scorer.CleanupStale()
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "detect",
		Interval: config.Interval(a.cfg.Workers.DetectInterval, 15*time.Minute),
		Run: func(ctx context.Context) error {
			_, err := detector.Run(ctx)
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "consolidate",
		Interval: config.Interval(a.cfg.Workers.ConsolidateInterval, time.Hour),
		Run: func(ctx context.Context) error {
			_, err := consolidator.Run()
			return err
		},
	})
	sched.Add(scheduler.Job{
		Name:     "alerts",
		Interval: config.Interval(a.cfg.Workers.AlertsInterval, 5*time.Minute),
		Run: func(ctx context.Context) error {
			_, err := alerter.Run()
			return err
		},
	})
	// Expired cache rows accumulate slowly; daily cleanup is plenty.
	sched.Add(scheduler.Job{
		Name:     "cache-purge",
		Interval: 24 * time.Hour,
		Run: func(ctx context.Context) error {
			_, err := a.cache.Purge()
			return err
		},
	})

	triggers := server.Triggers{
		Ingest: func(ctx context.Context) error {
			_, err := ingester.Run()
			return err
		},
		Enrich: func(ctx context.Context) error {
			_, err := pipeline.Run(ctx)
			return err
		},
		Detect: func(ctx context.Context) error {
			_, err := detector.Run(ctx)
			return err
		},
		Consolidate: func(ctx context.Context) error {
			_, err := consolidator.Run()
			return err
		},
	}
	srv := server.New(a.store, scorer, a.cache, triggers, a.cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()
	go func() {
		if err := sched.Start(ctx); err != nil {
			logger.Error("scheduler stopped", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("shutdown initiated", "signal", sig.String())
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("service stopped")
	}
	return nil
}
