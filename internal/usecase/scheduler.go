package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Briefcaster/internal/domain"
	"Briefcaster/internal/ports"
)

// Job is one recurring briefing.
type Job struct {
	Name            string
	Spec            string
	Topic           string
	DurationMinutes float64
	LookbackHours   int
	WeekendAware    bool
	Audio           bool
}

// Generator is the part of Pipeline the scheduler and API drive.
type Generator interface {
	Generate(ctx context.Context, req domain.BriefingRequest) (domain.Briefing, error)
}

// Scheduler wires the cron driver with the pipeline use case.
type Scheduler struct {
	driver    ports.Scheduler
	generator Generator
	jobs      []Job
	logger    *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, generator Generator, jobs []Job, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, generator: generator, jobs: jobs, logger: logger}
}

// Start registers every job with the driver and starts it.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.generator == nil {
		return nil
	}

	for _, job := range s.jobs {
		if err := s.driver.Schedule(job.Spec, s.runner(ctx, job)); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
		s.info("job registered", "job", job.Name, "cron", job.Spec, "topic", job.Topic)
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

func (s *Scheduler) runner(ctx context.Context, job Job) func(time.Time) {
	return func(trigger time.Time) {
		window := domain.LookbackWindow(trigger, job.LookbackHours, job.WeekendAware)
		req := domain.BriefingRequest{
			Topic:           job.Topic,
			DurationMinutes: job.DurationMinutes,
			Window:          &window,
			ProduceAudio:    job.Audio,
		}

		b, err := s.generator.Generate(ctx, req)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("scheduled briefing failed", "job", job.Name, "error", err)
			}
			return
		}
		s.info("scheduled briefing done", "job", job.Name, "id", b.ID, "window", window.String())
	}
}

func (s *Scheduler) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
