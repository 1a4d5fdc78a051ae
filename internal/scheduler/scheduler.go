// Package scheduler wraps cron-based recurring jobs for ViviBot, currently
// the appointment reminder sweep.
package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs recurring jobs on cron expressions.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a scheduler in the given timezone. Jobs
// recover from panics instead of taking the process down.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cron.DefaultLogger)),
	)
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task on a 5-field cron expression.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
