// Package scheduler runs the periodic maintenance jobs, such as purging
// expired password reset codes and completing events that have ended.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/markit/attendance/internal/config"
)

// ResetCodePurger removes reset codes that expired or were used.
type ResetCodePurger interface {
	PurgeExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}

// EventCompleter marks events whose end has passed as completed.
type EventCompleter interface {
	CompleteEnded(ctx context.Context) (int64, error)
}

type job struct {
	name     string
	schedule string
	run      func(ctx context.Context) (int64, error)
	entryID  cron.EntryID
}

// Scheduler manages the maintenance cron jobs.
type Scheduler struct {
	cron *cron.Cron
	jobs []*job

	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// New creates a scheduler for the configured jobs. A job with an empty
// schedule is not registered.
func New(cfg config.Scheduler, purger ResetCodePurger, completer EventCompleter) *Scheduler {
	s := &Scheduler{
		cron: cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
	if purger != nil && cfg.ResetPurgeSchedule != "" {
		s.jobs = append(s.jobs, &job{
			name:     "purge_reset_codes",
			schedule: cfg.ResetPurgeSchedule,
			run: func(ctx context.Context) (int64, error) {
				return purger.PurgeExpiredResetCodes(ctx, time.Now())
			},
		})
	}
	if completer != nil && cfg.EventSweepSchedule != "" {
		s.jobs = append(s.jobs, &job{
			name:     "complete_events",
			schedule: cfg.EventSweepSchedule,
			run:      completer.CompleteEnded,
		})
	}
	return s
}

// Add registers an extra job before Start. An empty schedule disables it.
func (s *Scheduler) Add(name, schedule string, run func(ctx context.Context) (int64, error)) {
	if schedule == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, schedule: schedule, run: run})
}

// ValidateCronSchedule checks a five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	return err
}

// Start registers the jobs and starts the cron loop. Cancelling ctx stops it.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if len(s.jobs) == 0 {
		log.Info().Msg("Scheduler: no jobs configured")
		return nil
	}

	for _, j := range s.jobs {
		if err := ValidateCronSchedule(j.schedule); err != nil {
			return fmt.Errorf("invalid cron schedule '%s' for %s: %w", j.schedule, j.name, err)
		}
	}

	var jobCtx context.Context
	jobCtx, s.cancelFunc = context.WithCancel(ctx)
	for _, j := range s.jobs {
		j := j
		entryID, err := s.cron.AddFunc(j.schedule, func() { runJob(jobCtx, j) })
		if err != nil {
			s.cancelFunc()
			return fmt.Errorf("failed to schedule %s: %w", j.name, err)
		}
		j.entryID = entryID
	}

	s.cron.Start()
	s.isRunning = true
	log.Info().Int("jobs", len(s.jobs)).Msg("Scheduler: started")

	go func() {
		<-jobCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	// Cancel first so running jobs see ctx.Done while we wait for them.
	s.cancelFunc()
	<-s.cron.Stop().Done()
	for _, j := range s.jobs {
		s.cron.Remove(j.entryID)
	}
	s.isRunning = false
	log.Info().Msg("Scheduler: stopped")
}

// IsRunning returns whether the scheduler is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the named job runs next, or nil if it is not scheduled.
func (s *Scheduler) NextRun(name string) *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, j := range s.jobs {
		if j.name != name {
			continue
		}
		entry := s.cron.Entry(j.entryID)
		if !entry.Valid() {
			return nil
		}
		// Next is filled in by the cron loop; it may still be zero right after Start.
		t := entry.Next
		if t.IsZero() {
			t = entry.Schedule.Next(time.Now())
		}
		return &t
	}
	return nil
}

// RunNow runs every job once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context) {
	for _, j := range s.jobs {
		runJob(ctx, j)
	}
}

func runJob(ctx context.Context, j *job) {
	start := time.Now()
	n, err := j.run(ctx)
	if err != nil {
		log.Error().Err(err).Str("job", j.name).Msg("Scheduled job failed")
		return
	}
	log.Info().Str("job", j.name).Int64("affected", n).Dur("took", time.Since(start)).Msg("Scheduled job finished")
}
