package usecase

import (
	"context"
	"io"
	"log/slog"
	"time"

	"NewsWeaver/internal/ports"
)

// Scheduler drives recurring processing cycles through a ports.Scheduler
// and exposes a manual trigger for on-demand runs.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring cycles.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the underlying driver. Cycle failures
// are logged and do not stop the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	return s.driver.Start(ctx, func(trigger time.Time) {
		if err := s.pipeline.RunCycle(ctx, trigger); err != nil {
			s.logger.Error("cycle failed", "trigger", trigger, "error", err)
		}
	})
}

// RunNow executes a single cycle outside the regular schedule.
func (s *Scheduler) RunNow(ctx context.Context) error {
	if s.pipeline == nil {
		return nil
	}
	return s.pipeline.RunCycle(ctx, time.Now())
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
