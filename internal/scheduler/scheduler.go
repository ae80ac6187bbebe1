// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/SecuShare/filevault/pkg/logger"
)

// Job is one maintenance task. Run returns the number of rows it removed.
type Job struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	jobs    []Job
	mu      sync.Mutex
	log     zerolog.Logger
	running bool
}

func New(jobs ...Job) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: jobs,
		log:  logger.Component("scheduler"),
	}
}

// Start registers every job with a non-empty schedule and starts the cron
// runner. The scheduler stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	registered := 0
	for _, job := range s.jobs {
		if job.Schedule == "" {
			s.log.Info().Str("job", job.Name).Msg("Job schedule not configured, skipping")
			continue
		}
		if _, err := cron.ParseStandard(job.Schedule); err != nil {
			return fmt.Errorf("invalid cron schedule %q for %s: %w", job.Schedule, job.Name, err)
		}

		job := job
		if _, err := s.cron.AddFunc(job.Schedule, func() { s.run(ctx, job) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
		}
		registered++
	}

	if registered == 0 {
		return nil
	}

	s.cron.Start()
	s.running = true
	s.log.Info().Int("jobs", registered).Msg("Maintenance scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunNow executes every job once, outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) {
	for _, job := range s.jobs {
		s.run(ctx, job)
	}
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	removed, err := job.Run(ctx)
	if err != nil {
		s.log.Error().Err(err).Str("job", job.Name).Msg("Scheduled job failed")
		return
	}
	if removed > 0 {
		s.log.Info().Str("job", job.Name).Int64("removed", removed).Msg("Scheduled job completed")
		return
	}
	s.log.Debug().Str("job", job.Name).Msg("Scheduled job completed, nothing to remove")
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.log.Info().Msg("Maintenance scheduler stopped")
	}
}

func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
