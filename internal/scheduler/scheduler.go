// Package scheduler runs the error-driven retraining loop and registry
// reloads on a schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/matchcast/internal/models"
	"github.com/yourusername/matchcast/internal/service"
)

// Retrainer runs one retraining iteration.
type Retrainer interface {
	Retrain(ctx context.Context, opts service.RetrainingOptions) (*service.RetrainingResult, error)
}

// Reloader re-reads the promoted artifact.
type Reloader interface {
	Reload() (bool, error)
}

// Scheduler manages the scheduled retraining and reload jobs
type Scheduler struct {
	cron            *cron.Cron
	logger          *logrus.Logger
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a scheduler. jobTimeout bounds each retraining run.
func NewScheduler(logger *logrus.Logger, jobTimeout time.Duration) *Scheduler {
	if jobTimeout <= 0 {
		jobTimeout = time.Hour
	}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger))),
		),
		logger:          logger,
		jobIDs:          make([]cron.EntryID, 0),
		jobTimeout:      jobTimeout,
		gracefulTimeout: 30 * time.Second,
	}
}

// ScheduleRetraining runs the retrainer on the cron expression. A run that
// finds too few evaluated predictions is logged and skipped.
func (s *Scheduler) ScheduleRetraining(cronExpression string, retrainer Retrainer, opts service.RetrainingOptions) error {
	opts.Trigger = service.TriggerScheduled
	return s.add(cronExpression, "retraining", func() {
		s.RunRetraining(context.Background(), retrainer, opts)
	})
}

// RunRetraining executes one bounded retraining run.
func (s *Scheduler) RunRetraining(ctx context.Context, retrainer Retrainer, opts service.RetrainingOptions) {
	ctx, cancel := context.WithTimeout(ctx, s.jobTimeout)
	defer cancel()

	s.logger.WithField("seasons", opts.Seasons).Info("Starting scheduled retraining")
	result, err := retrainer.Retrain(ctx, opts)
	switch {
	case errors.Is(err, models.ErrInsufficientHistory):
		s.logger.WithError(err).Info("Scheduled retraining skipped")
	case err != nil:
		s.logger.WithError(err).Error("Scheduled retraining failed")
	default:
		s.logger.WithFields(logrus.Fields{
			"model_version":  result.Version,
			"parent_version": result.ParentVersion,
			"folded_back":    result.FoldedBack,
		}).Info("Scheduled retraining completed")
	}
}

// ScheduleReload polls the artifact store so a promotion made by another
// process is picked up without a restart.
func (s *Scheduler) ScheduleReload(intervalSeconds int, reloader Reloader) error {
	if intervalSeconds < 5 {
		intervalSeconds = 5
	}
	return s.add(fmt.Sprintf("@every %ds", intervalSeconds), "registry_reload", func() {
		swapped, err := reloader.Reload()
		if err != nil {
			s.logger.WithError(err).Warn("Registry reload failed")
			return
		}
		if swapped {
			s.logger.Info("Registry picked up a new artifact")
		}
	})
}

func (s *Scheduler) add(spec, name string, job func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return fmt.Errorf("failed to add %s job: %w", name, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{"job": name, "schedule": spec}).Info("Scheduled job")
	return nil
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop waits for running jobs up to the graceful timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-time.After(s.gracefulTimeout):
		return fmt.Errorf("scheduler did not stop within %s", s.gracefulTimeout)
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	var nextRun time.Time
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() && (nextRun.IsZero() || entry.Next.Before(nextRun)) {
			nextRun = entry.Next
		}
	}
	return nextRun
}

// Entries returns the scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		if entry := s.cron.Entry(jobID); entry.Valid() {
			entries = append(entries, entry)
		}
	}
	return entries
}
