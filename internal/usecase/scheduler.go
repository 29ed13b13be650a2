package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ArxivDigest/internal/domain"
	"ArxivDigest/internal/ports"
)

// DayProcessor is the entry point the scheduler triggers.
type DayProcessor interface {
	ProcessDay(ctx context.Context, day time.Time) (domain.Report, error)
}

// Scheduler wires the cron-like driver with the pipeline use case.
type Scheduler struct {
	driver    ports.Scheduler
	processor DayProcessor
	location  *time.Location
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs. Each trigger
// processes the calendar day before the trigger time in location.
func NewScheduler(driver ports.Scheduler, processor DayProcessor, location *time.Location, logger *slog.Logger) *Scheduler {
	if location == nil {
		location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		driver:    driver,
		processor: processor,
		location:  location,
		logger:    logger.With("component", "scheduler"),
	}
}

// TargetDay returns the day a trigger at t should process.
func TargetDay(t time.Time, location *time.Location) time.Time {
	local := t.In(location)
	return time.Date(local.Year(), local.Month(), local.Day()-1, 0, 0, 0, 0, location)
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.processor == nil {
		return nil
	}
	return s.driver.Start(ctx, func(trigger time.Time) {
		s.Trigger(ctx, trigger)
	})
}

// Trigger runs the pipeline once for the day preceding trigger. Failures
// are logged; the next trigger resumes from disk.
func (s *Scheduler) Trigger(ctx context.Context, trigger time.Time) {
	day := TargetDay(trigger, s.location)
	report, err := s.processor.ProcessDay(ctx, day)
	if err != nil {
		var stepErr *domain.StepError
		retryable := errors.As(err, &stepErr) && stepErr.Retryable()
		s.logger.Error("scheduled run failed", "day", domain.DayKey(day), "status", report.Status, "retryable", retryable, "error", err)
		return
	}
	s.logger.Info("scheduled run finished", "day", report.Day, "status", report.Status, "degraded", report.Degraded)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
