// Package scheduler runs the periodic pipeline workers: ingest,
// enrich, score, detect, consolidate and alert, each on its own cadence.
package scheduler

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"cryptopulse/internal/logger"
)

// Job is one periodic worker. Run errors are logged per cycle and
// never stop the worker.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Scheduler supervises a set of jobs.
type Scheduler struct {
	jobs []Job
}

// New creates an empty scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Add registers a job. Jobs with a non-positive interval are ignored.
func (s *Scheduler) Add(job Job) {
	if job.Interval <= 0 {
		logger.Warn("ignoring job with invalid interval", "job", job.Name)
		return
	}
	s.jobs = append(s.jobs, job)
}

// Start runs every job until the context is cancelled. Each job fires
// once immediately, then on its interval. Start blocks.
func (s *Scheduler) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range s.jobs {
		job := job
		g.Go(func() error {
			return s.runJob(ctx, job)
		})
	}
	return g.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) error {
	logger.Info("worker started", "job", job.Name, "interval", job.Interval.String())

	run := func() {
		start := time.Now()
		if err := job.Run(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("worker cycle failed", err, "job", job.Name)
			return
		}
		logger.Debug("worker cycle complete", "job", job.Name, "took", time.Since(start).String())
	}

	run()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped", "job", job.Name)
			return nil
		case <-ticker.C:
			run()
		}
	}
}
