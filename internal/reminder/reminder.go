// Package reminder sends the day-before appointment notices.
//
// A recurring sweep reads tomorrow's appointments from the local archive and
// messages each student who has not been reminded yet. The sweep is hourly so
// an appointment booked late in the day still gets its notice; the
// reminder_sent flag keeps each appointment at one message.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uvbienestar/vivibot/internal/flow"
	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/scheduler"
	"github.com/uvbienestar/vivibot/internal/store"
)

// DefaultCronExpr runs the sweep at the top of every hour.
const DefaultCronExpr = "0 * * * *"

// Service sweeps upcoming appointments and sends reminders.
type Service struct {
	archive   store.Store
	messenger messaging.Messenger
	loc       *time.Location
	now       func() time.Time
}

// NewService creates a reminder service. nowFn defaults to time.Now and
// exists for tests.
func NewService(archive store.Store, messenger messaging.Messenger, loc *time.Location, nowFn func() time.Time) *Service {
	if loc == nil {
		loc = time.Local
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{archive: archive, messenger: messenger, loc: loc, now: nowFn}
}

// Start registers the hourly sweep on the scheduler.
func (s *Service) Start(sched *scheduler.Scheduler) error {
	if err := sched.AddJob(DefaultCronExpr, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := s.Sweep(ctx); err != nil {
			slog.Error("reminder: sweep failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("registering reminder sweep: %w", err)
	}
	slog.Info("reminder: sweep scheduled", "cron", DefaultCronExpr)
	return nil
}

// Sweep sends one reminder per un-reminded appointment starting tomorrow.
// A failed send skips the flag so the next run retries that appointment.
func (s *Service) Sweep(ctx context.Context) error {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc).AddDate(0, 0, 1)
	end := start.AddDate(0, 0, 1)

	appts, err := s.archive.ListAppointmentsBetween(start, end)
	if err != nil {
		return fmt.Errorf("listing tomorrow's appointments: %w", err)
	}

	sent := 0
	for _, appt := range appts {
		if appt.ReminderSent {
			continue
		}
		if err := s.messenger.SendText(ctx, appt.UserID, flow.ReminderMessage(appt)); err != nil {
			slog.Error("reminder: send failed", "user", appt.UserID, "appointment", appt.ID, "error", err)
			continue
		}
		if err := s.archive.MarkReminderSent(appt.ID); err != nil {
			slog.Error("reminder: marking sent failed", "appointment", appt.ID, "error", err)
			continue
		}
		sent++
	}
	slog.Info("reminder: sweep complete", "window_start", start, "candidates", len(appts), "sent", sent)
	return nil
}
