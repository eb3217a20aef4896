package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/fallstrom/kvittofri-backend/pkg/logger"
	"github.com/fallstrom/kvittofri-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger      *logger.Logger
	Registry    *Registry
	LockFactory LockFactory
	Metrics     *metrics.CronJobMetrics
	Interval    time.Duration
}

// Service executes registered jobs on a fixed cadence. Each job holds its
// own lock for the duration of a run, so a job never overlaps with itself
// while unrelated jobs stay independent.
type Service struct {
	logg        *logger.Logger
	registry    *Registry
	lockFactory LockFactory
	metrics     *metrics.CronJobMetrics
	interval    time.Duration
	locks       map[string]Lock
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.LockFactory == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:        params.Logger,
		registry:    registry,
		lockFactory: params.LockFactory,
		metrics:     params.Metrics,
		interval:    interval,
		locks:       map[string]Lock{},
	}, nil
}

// Run starts the cron loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.runCycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

// TriggerNow runs a single job by name outside the fixed cadence. The job's
// lock still applies.
func (s *Service) TriggerNow(ctx context.Context, jobName string) error {
	job := s.registry.Find(jobName)
	if job == nil {
		return fmt.Errorf("unknown cron job %q", jobName)
	}
	return s.runJob(ctx, job)
}

func (s *Service) runCycle(ctx context.Context) {
	s.logg.Info(ctx, "scheduled run starting")
	for _, job := range s.registry.Jobs() {
		if err := s.runJob(ctx, job); err != nil {
			jobCtx := s.logg.WithField(ctx, "job", job.Name())
			s.logg.Error(jobCtx, "job failed", err)
		}
	}
	s.logg.Info(ctx, "scheduled run complete")
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	jobCtx = s.logg.WithField(jobCtx, "event", "cron.job")

	lock, err := s.lockFor(job.Name())
	if err != nil {
		s.recordFailure(job.Name())
		return fmt.Errorf("build lock: %w", err)
	}
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.recordFailure(job.Name())
		return fmt.Errorf("lock acquire: %w", err)
	}
	if !locked {
		s.logg.Info(jobCtx, "job already running elsewhere; skipping")
		s.recordSkipped(job.Name())
		return nil
	}
	defer func() {
		if relErr := lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release job lock", relErr)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = job.Run(jobCtx)
	duration := time.Since(start)
	s.observeDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.recordFailure(job.Name())
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	s.recordSuccess(job.Name())
	return nil
}

func (s *Service) lockFor(jobName string) (Lock, error) {
	if lock, ok := s.locks[jobName]; ok {
		return lock, nil
	}
	lock, err := s.lockFactory(jobName)
	if err != nil {
		return nil, err
	}
	s.locks[jobName] = lock
	return lock, nil
}

func (s *Service) observeDuration(job string, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(job, duration)
}

func (s *Service) recordSuccess(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSuccess(job)
}

func (s *Service) recordFailure(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncFailure(job)
}

func (s *Service) recordSkipped(job string) {
	if s.metrics == nil {
		return
	}
	s.metrics.IncSkipped(job)
}
