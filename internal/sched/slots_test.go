package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
)

type fakeBusySource struct {
	intervals []models.BusyInterval
	err       error
	calls     int
}

func (f *fakeBusySource) ListBusy(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.BusyInterval
	for _, b := range f.intervals {
		if b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeEventWriter struct {
	eventID string
	err     error
	created []models.Appointment
}

func (f *fakeEventWriter) CreateEvent(ctx context.Context, appt models.Appointment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, appt)
	return f.eventID, nil
}

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestOverlapTest(t *testing.T) {
	loc := time.UTC
	slotStart := time.Date(2026, 3, 2, 9, 0, 0, 0, loc) // Monday 9:00
	slotEnd := slotStart.Add(models.SlotDuration)

	cases := []struct {
		name     string
		interval models.BusyInterval
		want     bool
	}{
		{"fully overlapping", models.BusyInterval{Start: slotStart, End: slotEnd}, true},
		{"partial head overlap", models.BusyInterval{Start: slotStart.Add(-30 * time.Minute), End: slotStart.Add(30 * time.Minute)}, true},
		{"partial tail overlap", models.BusyInterval{Start: slotStart.Add(30 * time.Minute), End: slotEnd.Add(30 * time.Minute)}, true},
		{"containing interval", models.BusyInterval{Start: slotStart.Add(-time.Hour), End: slotEnd.Add(time.Hour)}, true},
		{"adjacent before", models.BusyInterval{Start: slotStart.Add(-time.Hour), End: slotStart}, false},
		{"adjacent after", models.BusyInterval{Start: slotEnd, End: slotEnd.Add(time.Hour)}, false},
		{"disjoint", models.BusyInterval{Start: slotEnd.Add(2 * time.Hour), End: slotEnd.Add(3 * time.Hour)}, false},
	}
	for _, c := range cases {
		if got := c.interval.Overlaps(slotStart, slotEnd); got != c.want {
			t.Errorf("%s: Overlaps = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestListCandidateDatesSkipsWeekends(t *testing.T) {
	loc := time.UTC
	// Saturday 10:00.
	now := time.Date(2026, 3, 7, 10, 0, 0, 0, loc)
	svc := NewService(&fakeBusySource{}, &fakeEventWriter{}, loc, fixedNow(now))

	dates, err := svc.ListCandidateDates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 10 {
		t.Fatalf("expected 10 candidate dates, got %d", len(dates))
	}
	for _, d := range dates {
		if wd := d.Date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			t.Errorf("candidate date %v falls on %v", d.Date, wd)
		}
	}
	if !dates[0].Date.Equal(time.Date(2026, 3, 9, 0, 0, 0, 0, loc)) {
		t.Errorf("expected first date Monday 2026-03-09, got %v", dates[0].Date)
	}
}

func TestListCandidateDatesIncludesTodayWithFreeSlots(t *testing.T) {
	loc := time.UTC
	// Monday 10:30: afternoon and late-morning slots still ahead.
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, loc)
	svc := NewService(&fakeBusySource{}, &fakeEventWriter{}, loc, fixedNow(now))

	dates, err := svc.ListCandidateDates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(dates) != 10 {
		t.Fatalf("expected 10 dates, got %d", len(dates))
	}
	if !dates[0].Date.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, loc)) {
		t.Errorf("expected today included, first date = %v", dates[0].Date)
	}
}

func TestListCandidateDatesSkipsFullyBookedToday(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 2, 10, 30, 0, 0, loc) // Monday
	busy := &fakeBusySource{intervals: []models.BusyInterval{
		// Rest of Monday fully occupied.
		{Start: time.Date(2026, 3, 2, 11, 0, 0, 0, loc), End: time.Date(2026, 3, 2, 17, 0, 0, 0, loc)},
	}}
	svc := NewService(busy, &fakeEventWriter{}, loc, fixedNow(now))

	dates, err := svc.ListCandidateDates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dates[0].Date.Day() != 3 {
		t.Errorf("expected first date to be Tuesday the 3rd, got %v", dates[0].Date)
	}
}

func TestListSlotsForDateExcludesPastStarts(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, loc) // Monday 10:00 sharp
	svc := NewService(&fakeBusySource{}, &fakeEventWriter{}, loc, fixedNow(now))

	slots, err := svc.ListSlotsForDate(context.Background(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 8:00, 9:00 are past and 10:00 is not strictly in the future;
	// remaining: 11:00, 14:00, 15:00, 16:00.
	if len(slots) != 4 {
		t.Fatalf("expected 4 slots, got %d", len(slots))
	}
	for _, s := range slots {
		if !s.Start.After(now) {
			t.Errorf("slot %v does not start after now", s.Start)
		}
	}
}

func TestListSlotsForDateMarksBusyUnavailable(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, loc) // Sunday; target Monday
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, loc)
	busy := &fakeBusySource{intervals: []models.BusyInterval{
		{Start: time.Date(2026, 3, 2, 9, 0, 0, 0, loc), End: time.Date(2026, 3, 2, 10, 0, 0, 0, loc)},
		// Ends exactly at 14:00: must NOT block the 14:00 slot.
		{Start: time.Date(2026, 3, 2, 13, 0, 0, 0, loc), End: time.Date(2026, 3, 2, 14, 0, 0, 0, loc)},
	}}
	svc := NewService(busy, &fakeEventWriter{}, loc, fixedNow(now))

	slots, err := svc.ListSlotsForDate(context.Background(), monday)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d", len(slots))
	}
	byHour := map[int]models.CandidateSlot{}
	for _, s := range slots {
		byHour[s.Start.Hour()] = s
	}
	if byHour[9].Available {
		t.Error("9:00 slot should be unavailable")
	}
	if !byHour[14].Available {
		t.Error("14:00 slot should be available (adjacent interval does not overlap)")
	}
	if !byHour[8].Available || !byHour[10].Available {
		t.Error("untouched slots should be available")
	}
	if !byHour[8].Morning || byHour[14].Morning {
		t.Error("morning/afternoon grouping is wrong")
	}
}

func TestConfirmAndCommitDetectsRace(t *testing.T) {
	loc := time.UTC
	slot := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	busy := &fakeBusySource{}
	writer := &fakeEventWriter{eventID: "evt-1"}
	svc := NewService(busy, writer, loc, fixedNow(slot.Add(-24*time.Hour)))

	appt := models.Appointment{ID: "a1", UserID: "573001112233", SlotStart: slot}

	// First commit succeeds.
	eventID, err := svc.ConfirmAndCommit(context.Background(), appt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if eventID != "evt-1" {
		t.Errorf("expected event ID evt-1, got %q", eventID)
	}

	// A concurrent booking fills the slot; the re-check must fail distinctly.
	busy.intervals = []models.BusyInterval{{Start: slot, End: slot.Add(time.Hour)}}
	if _, err := svc.ConfirmAndCommit(context.Background(), appt); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}
	if len(writer.created) != 1 {
		t.Errorf("conflicting commit must not create an event, created %d", len(writer.created))
	}
}

func TestCheckSlotFree(t *testing.T) {
	loc := time.UTC
	slot := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	busy := &fakeBusySource{}
	svc := NewService(busy, &fakeEventWriter{}, loc, fixedNow(slot.Add(-24*time.Hour)))

	if err := svc.CheckSlotFree(context.Background(), slot); err != nil {
		t.Fatalf("open slot reported as taken: %v", err)
	}

	busy.intervals = []models.BusyInterval{{Start: slot, End: slot.Add(time.Hour)}}
	if err := svc.CheckSlotFree(context.Background(), slot); !errors.Is(err, ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken, got %v", err)
	}

	busy.err = errors.New("calendar down")
	if err := svc.CheckSlotFree(context.Background(), slot); err == nil || errors.Is(err, ErrSlotTaken) {
		t.Errorf("collaborator failure must not be reported as ErrSlotTaken, got %v", err)
	}
}

func TestConfirmAndCommitPropagatesBusySourceError(t *testing.T) {
	loc := time.UTC
	busy := &fakeBusySource{err: errors.New("calendar down")}
	svc := NewService(busy, &fakeEventWriter{}, loc, fixedNow(time.Now()))
	_, err := svc.ConfirmAndCommit(context.Background(), models.Appointment{SlotStart: time.Now().Add(time.Hour)})
	if err == nil || errors.Is(err, ErrSlotTaken) {
		t.Errorf("collaborator failure must not be reported as ErrSlotTaken, got %v", err)
	}
}
