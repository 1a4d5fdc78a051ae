package reminder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/models"
)

type fakeArchive struct {
	appts   []models.Appointment
	listErr error
	marked  []string
}

func (f *fakeArchive) SaveAppointment(appt models.Appointment) error   { return nil }
func (f *fakeArchive) UpdateAppointment(appt models.Appointment) error { return nil }
func (f *fakeArchive) DeleteAppointment(id string) error               { return nil }

func (f *fakeArchive) GetAppointmentsByUser(userID string) ([]models.Appointment, error) {
	return nil, nil
}

func (f *fakeArchive) ListAppointmentsBetween(start, end time.Time) ([]models.Appointment, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Appointment
	for _, a := range f.appts {
		if !a.SlotStart.Before(start) && a.SlotStart.Before(end) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeArchive) MarkReminderSent(id string) error {
	f.marked = append(f.marked, id)
	for i := range f.appts {
		if f.appts[i].ID == id {
			f.appts[i].ReminderSent = true
		}
	}
	return nil
}

func (f *fakeArchive) RecordInbound(messageID, userID string) (bool, error) { return true, nil }
func (f *fakeArchive) IsDuplicate(messageID string) (bool, error)           { return false, nil }
func (f *fakeArchive) Close() error                                         { return nil }

var sweepNow = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

func testAppointment(id, user string, slot time.Time) models.Appointment {
	return models.Appointment{
		ID:        id,
		UserID:    user,
		Name:      "Juan Pérez",
		Type:      models.AppointmentInPerson,
		SlotStart: slot,
	}
}

func TestSweepSendsForTomorrowOnly(t *testing.T) {
	archive := &fakeArchive{appts: []models.Appointment{
		testAppointment("a1", "573001110001", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)),
		testAppointment("a2", "573001110002", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)),
		testAppointment("a3", "573001110003", time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC)),
	}}
	rec := messaging.NewRecorder()
	svc := NewService(archive, rec, time.UTC, func() time.Time { return sweepNow })

	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	msgs := rec.All()
	if len(msgs) != 1 {
		t.Fatalf("expected one reminder, got %d", len(msgs))
	}
	if msgs[0].To != "573001110001" {
		t.Errorf("reminder went to the wrong user: %q", msgs[0].To)
	}
	if !strings.Contains(msgs[0].Body, "te recordamos tu cita") {
		t.Errorf("unexpected reminder body: %q", msgs[0].Body)
	}
	if len(archive.marked) != 1 || archive.marked[0] != "a1" {
		t.Errorf("expected only a1 marked, got %v", archive.marked)
	}
}

func TestSweepSkipsAlreadyReminded(t *testing.T) {
	appt := testAppointment("a1", "573001110001", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC))
	appt.ReminderSent = true
	archive := &fakeArchive{appts: []models.Appointment{appt}}
	rec := messaging.NewRecorder()
	svc := NewService(archive, rec, time.UTC, func() time.Time { return sweepNow })

	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if got := len(rec.All()); got != 0 {
		t.Errorf("reminded appointment must not get another message, got %d", got)
	}
}

func TestSweepRetriesAfterSendFailure(t *testing.T) {
	archive := &fakeArchive{appts: []models.Appointment{
		testAppointment("a1", "573001110001", time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)),
	}}
	rec := messaging.NewRecorder()
	rec.FailNext = context.DeadlineExceeded
	svc := NewService(archive, rec, time.UTC, func() time.Time { return sweepNow })

	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(archive.marked) != 0 {
		t.Fatalf("failed send must not mark the reminder, got %v", archive.marked)
	}

	// Next run succeeds and marks it.
	if err := svc.Sweep(context.Background()); err != nil {
		t.Fatalf("second Sweep failed: %v", err)
	}
	if len(archive.marked) != 1 || archive.marked[0] != "a1" {
		t.Errorf("expected a1 marked on retry, got %v", archive.marked)
	}
	if got := len(rec.All()); got != 1 {
		t.Errorf("expected one delivered reminder, got %d", got)
	}
}

func TestSweepPropagatesListError(t *testing.T) {
	archive := &fakeArchive{listErr: context.DeadlineExceeded}
	svc := NewService(archive, messaging.NewRecorder(), time.UTC, func() time.Time { return sweepNow })
	if err := svc.Sweep(context.Background()); err == nil {
		t.Error("expected an error when listing fails")
	}
}
