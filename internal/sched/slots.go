// Package sched computes offerable appointment slots from calendar busy
// intervals and re-validates a chosen slot at booking time.
//
// Availability at listing time is only an estimate: two users can be offered
// the same slot. ConfirmAndCommit re-fetches busy intervals immediately
// before creating the event and fails with ErrSlotTaken when the slot was
// lost to a concurrent booking.
package sched

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
)

// ErrSlotTaken is returned by ConfirmAndCommit when the chosen slot gained a
// conflicting busy interval between listing and commit. It is distinct from
// collaborator failures so flows can ask the user to pick another time.
var ErrSlotTaken = errors.New("slot no longer available")

// Working hours: 8-12 in the morning, 14-17 in the afternoon, one slot per
// whole hour. The last afternoon slot starts at 16:00.
var (
	morningHours   = []int{8, 9, 10, 11}
	afternoonHours = []int{14, 15, 16}
)

const (
	// targetDates is how many working days a date listing offers.
	targetDates = 10
	// dateWalkHorizon bounds the forward walk so targetDates working days
	// are always reachable even across holidays-free weekend runs.
	dateWalkHorizon = 21
	// lastSlotHour is the start hour of the final slot of a working day.
	lastSlotHour = 16
)

// BusySource lists occupied calendar intervals inside a window.
type BusySource interface {
	ListBusy(ctx context.Context, windowStart, windowEnd time.Time) ([]models.BusyInterval, error)
}

// EventWriter creates the external calendar event for a committed booking.
type EventWriter interface {
	CreateEvent(ctx context.Context, appt models.Appointment) (string, error)
}

// Service turns busy intervals into offerable dates and slots.
type Service struct {
	busy   BusySource
	events EventWriter
	loc    *time.Location
	now    func() time.Time
}

// NewService creates a scheduling service. loc is the clinic's local
// timezone; nowFn defaults to time.Now and exists for tests.
func NewService(busy BusySource, events EventWriter, loc *time.Location, nowFn func() time.Time) *Service {
	if loc == nil {
		loc = time.Local
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Service{busy: busy, events: events, loc: loc, now: nowFn}
}

// ListCandidateDates returns the next working days (Mon-Fri) that can be
// offered for booking. Today is included only while there is still a future
// slot left on it that is not fully booked.
func (s *Service) ListCandidateDates(ctx context.Context) ([]models.CandidateDate, error) {
	now := s.now().In(s.loc)
	startOffset := 1
	if isWorkingDay(now.Weekday()) && now.Hour() <= lastSlotHour {
		startOffset = 0
	}

	var dates []models.CandidateDate
	for checked := 0; len(dates) < targetDates && checked < dateWalkHorizon; checked++ {
		day := midnight(now.AddDate(0, 0, checked+startOffset), s.loc)
		if !isWorkingDay(day.Weekday()) {
			continue
		}
		if checked == 0 && startOffset == 0 {
			// Today only counts while it still has a free future slot.
			slots, err := s.ListSlotsForDate(ctx, day)
			if err != nil {
				return nil, fmt.Errorf("checking today's slots: %w", err)
			}
			if countAvailable(slots) == 0 {
				slog.Debug("sched: today has no free slots left, skipping", "date", day)
				continue
			}
		}
		dates = append(dates, models.CandidateDate{Date: day, Label: FormatDate(day)})
	}

	slog.Debug("sched: candidate dates listed", "count", len(dates))
	return dates, nil
}

// ListSlotsForDate enumerates the hourly slots of one working day, tagged
// available or unavailable against the calendar's busy intervals. Slots
// whose start has already passed are excluded entirely. Morning slots come
// before afternoon slots, chronological within each group.
func (s *Service) ListSlotsForDate(ctx context.Context, date time.Time) ([]models.CandidateSlot, error) {
	day := midnight(date, s.loc)
	busy, err := s.busy.ListBusy(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("listing busy intervals: %w", err)
	}

	now := s.now()
	var slots []models.CandidateSlot
	for _, group := range [][]int{morningHours, afternoonHours} {
		for _, hour := range group {
			start := time.Date(day.Year(), day.Month(), day.Day(), hour, 0, 0, 0, s.loc)
			if !start.After(now) {
				continue
			}
			slots = append(slots, models.CandidateSlot{
				Start:     start,
				Label:     FormatHour(hour),
				Available: !anyOverlap(busy, start, start.Add(models.SlotDuration)),
				Morning:   hour < 12,
			})
		}
	}

	slog.Debug("sched: slots listed", "date", day, "total", len(slots), "available", countAvailable(slots))
	return slots, nil
}

// ConfirmAndCommit re-validates the appointment's slot against the calendar
// and, when still free, creates the calendar event and returns its ID.
// A listing-time availability tag is never a reservation; this re-check is
// what prevents silent double booking.
func (s *Service) ConfirmAndCommit(ctx context.Context, appt models.Appointment) (string, error) {
	day := midnight(appt.SlotStart, s.loc)
	busy, err := s.busy.ListBusy(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return "", fmt.Errorf("re-checking slot availability: %w", err)
	}
	if anyOverlap(busy, appt.SlotStart, appt.SlotStart.Add(models.SlotDuration)) {
		slog.Info("sched: slot lost to concurrent booking", "user", appt.UserID, "slot", appt.SlotStart)
		return "", ErrSlotTaken
	}

	eventID, err := s.events.CreateEvent(ctx, appt)
	if err != nil {
		return "", fmt.Errorf("creating calendar event: %w", err)
	}
	slog.Info("sched: slot committed", "user", appt.UserID, "slot", appt.SlotStart, "event_id", eventID)
	return eventID, nil
}

// CheckSlotFree re-fetches the day's busy intervals and fails with
// ErrSlotTaken when the slot gained a conflict since listing. Slot changes
// that keep an existing calendar event go through this instead of
// ConfirmAndCommit.
func (s *Service) CheckSlotFree(ctx context.Context, start time.Time) error {
	day := midnight(start, s.loc)
	busy, err := s.busy.ListBusy(ctx, day, day.AddDate(0, 0, 1))
	if err != nil {
		return fmt.Errorf("re-checking slot availability: %w", err)
	}
	if anyOverlap(busy, start, start.Add(models.SlotDuration)) {
		slog.Info("sched: slot lost to concurrent booking", "slot", start)
		return ErrSlotTaken
	}
	return nil
}

// Location returns the clinic timezone the service schedules in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func isWorkingDay(d time.Weekday) bool {
	return d >= time.Monday && d <= time.Friday
}

func midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func anyOverlap(busy []models.BusyInterval, start, end time.Time) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

func countAvailable(slots []models.CandidateSlot) int {
	n := 0
	for _, s := range slots {
		if s.Available {
			n++
		}
	}
	return n
}

var spanishDays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// FormatDate renders a date the way the bot presents it, e.g.
// "lunes 3 de marzo".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s %d de %s", spanishDays[t.Weekday()], t.Day(), spanishMonths[t.Month()-1])
}

// FormatHour renders a whole hour in 12-hour clinic style, e.g. "8:00 AM"
// or "2:00 PM".
func FormatHour(hour int) string {
	switch {
	case hour < 12:
		return fmt.Sprintf("%d:00 AM", hour)
	case hour == 12:
		return "12:00 PM"
	default:
		return fmt.Sprintf("%d:00 PM", hour-12)
	}
}

// FormatSlot renders a full slot timestamp, e.g. "lunes 3 de marzo a las 8:00 AM".
func FormatSlot(t time.Time) string {
	return fmt.Sprintf("%s a las %s", FormatDate(t), FormatHour(t.Hour()))
}
