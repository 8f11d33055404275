// Package scheduler runs periodic jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/newthinker/reversion/internal/logger"
)

// Scheduler manages cron jobs. Schedules use six fields, seconds first.
type Scheduler struct {
	cron *cron.Cron
	log  *zap.Logger
}

// New creates a new Scheduler
func New(log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		log:  logger.Component(logger.OrNop(log), "scheduler"),
	}
}

// Register adds a named job. A panicking job is logged and the schedule keeps running.
func (s *Scheduler) Register(name, spec string, job func()) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("register %s task: %w", name, err)
	}
	s.log.Info("task registered", zap.String("task", name), zap.String("schedule", spec))
	return nil
}

func (s *Scheduler) wrap(name string, job func()) func() {
	return func() {
		started := time.Now()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("task panicked", zap.String("task", name), zap.Any("panic", r))
			}
		}()
		job()
		s.log.Debug("task finished", zap.String("task", name), zap.Duration("elapsed", time.Since(started)))
	}
}

// Len returns the number of registered jobs
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start starts the cron scheduler in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("tasks", s.Len()))
}

// Stop stops the scheduler and returns a context done once running jobs finish
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.log.Info("scheduler stopped")
	return ctx
}

// Validate checks spec parses with the scheduler's field layout
func Validate(spec string) error {
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}
