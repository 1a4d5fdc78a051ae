package flow

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
)

// fillAppointmentForm drives the user from the main menu to the day listing.
func (e *testEnv) fillAppointmentForm(t *testing.T, user string) {
	t.Helper()
	e.text(user, "1")
	e.text(user, "1") // presencial
	e.text(user, "Juan Pérez")
	e.text(user, "202012345")
	e.text(user, "Psicología")
	e.text(user, "juan.perez@correounivalle.edu.co")
	if got := e.record(user).Step; got != models.StateAppointmentDay {
		t.Fatalf("expected day step after form, got %q (last message %q)", got, e.lastBody(t))
	}
}

func TestAppointmentHappyPath(t *testing.T) {
	e := newTestEnv()
	e.fillAppointmentForm(t, testUser)

	e.text(testUser, "1") // today
	if got := e.record(testUser).Step; got != models.StateAppointmentTime {
		t.Fatalf("expected time step, got %q", got)
	}
	if !strings.Contains(e.lastBody(t), "*Mañana*") {
		t.Errorf("slot grid should group morning slots, got %q", e.lastBody(t))
	}

	e.text(testUser, "1") // first free slot, 10:00
	if !strings.Contains(e.lastBody(t), "Por favor confirma tu cita") {
		t.Fatalf("expected confirmation prompt, got %q", e.lastBody(t))
	}

	e.text(testUser, "1") // confirm
	if len(e.events.created) != 1 {
		t.Fatalf("expected one calendar event, got %d", len(e.events.created))
	}
	appt := e.events.created[0]
	if appt.Name != "Juan Pérez" || appt.StudentCode != "202012345" ||
		appt.Type != models.AppointmentInPerson {
		t.Errorf("event carries wrong appointment: %+v", appt)
	}
	if got := appt.SlotStart.Hour(); got != 10 {
		t.Errorf("expected 10:00 slot, got hour %d", got)
	}
	if len(e.records.appended) != 1 {
		t.Errorf("expected one sheet row, got %d", len(e.records.appended))
	}
	if !strings.Contains(e.lastBody(t), "Tu cita ha sido solicitada") {
		t.Errorf("expected booking summary, got %q", e.lastBody(t))
	}
	if !e.record(testUser).Terminated {
		t.Error("booking should terminate the conversation")
	}
}

func TestAppointmentRejectsInvalidInputs(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "1")

	e.text(testUser, "3")
	if !strings.Contains(e.lastBody(t), "\"1\" para Presencial") {
		t.Errorf("expected type reprompt, got %q", e.lastBody(t))
	}
	e.text(testUser, "2") // virtual

	e.text(testUser, "Juan123")
	if !strings.Contains(e.lastBody(t), "solo letras") {
		t.Errorf("expected name reprompt, got %q", e.lastBody(t))
	}
	e.text(testUser, "Juan Pérez")

	e.text(testUser, "12A34")
	if !strings.Contains(e.lastBody(t), "solo números") {
		t.Errorf("mixed student code must be rejected, got %q", e.lastBody(t))
	}
	e.text(testUser, "202012345")
	e.text(testUser, "Psicología")

	e.text(testUser, "juan@gmail.com")
	if !strings.Contains(e.lastBody(t), "correo institucional válido") {
		t.Errorf("non-institutional email must be rejected, got %q", e.lastBody(t))
	}
	e.text(testUser, "juan.perez@correounivalle.edu.co")
	if got := e.record(testUser).Step; got != models.StateAppointmentDay {
		t.Errorf("expected day step after valid email, got %q", got)
	}
}

func TestAppointmentInvalidDayIndexReprompts(t *testing.T) {
	e := newTestEnv()
	e.fillAppointmentForm(t, testUser)

	e.text(testUser, "99")
	if !strings.Contains(e.lastBody(t), "número del 1 al") {
		t.Errorf("expected day reprompt, got %q", e.lastBody(t))
	}
	if got := e.record(testUser).Step; got != models.StateAppointmentDay {
		t.Errorf("invalid index must not advance, got %q", got)
	}
}

func TestAppointmentDeclineAtConfirm(t *testing.T) {
	e := newTestEnv()
	e.fillAppointmentForm(t, testUser)
	e.text(testUser, "1")
	e.text(testUser, "1")

	e.text(testUser, "2") // decline
	if !strings.Contains(e.lastBody(t), "no ha sido agendada") {
		t.Errorf("expected abort notice, got %q", e.lastBody(t))
	}
	if len(e.events.created) != 0 {
		t.Errorf("declined booking must not create an event, got %d", len(e.events.created))
	}
	if !e.record(testUser).Terminated {
		t.Error("declined booking should terminate the conversation")
	}
}

func TestAppointmentSlotRaceReturnsToTimeStep(t *testing.T) {
	e := newTestEnv()
	e.fillAppointmentForm(t, testUser)
	e.text(testUser, "1") // today
	e.text(testUser, "1") // 10:00

	// Another booking grabs 10:00 between listing and commit.
	taken := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	e.busy.add(taken, taken.Add(time.Hour))

	e.text(testUser, "1") // confirm the lost slot
	bodies := e.rec.Bodies()
	if len(bodies) < 2 {
		t.Fatal("expected slot-taken notice plus fresh grid")
	}
	if !strings.Contains(bodies[len(bodies)-2], "acaba de ser tomado") {
		t.Errorf("expected slot-taken notice, got %q", bodies[len(bodies)-2])
	}
	if !strings.Contains(bodies[len(bodies)-1], "❌ 10:00 AM (ocupado)") {
		t.Errorf("fresh grid should mark 10:00 occupied, got %q", bodies[len(bodies)-1])
	}
	rec := e.record(testUser)
	if rec.Step != models.StateAppointmentTime || rec.Terminated {
		t.Fatalf("lost race should return to time step, got step %q terminated %v", rec.Step, rec.Terminated)
	}
	if len(e.events.created) != 0 {
		t.Fatalf("lost race must not create an event, got %d", len(e.events.created))
	}

	// The first selectable slot is now 11:00.
	e.text(testUser, "1")
	e.text(testUser, "1")
	if len(e.events.created) != 1 {
		t.Fatalf("rebooking should create one event, got %d", len(e.events.created))
	}
	if got := e.events.created[0].SlotStart.Hour(); got != 11 {
		t.Errorf("rebooked slot should be 11:00, got hour %d", got)
	}
}

func TestAppointmentSchedulerErrorKeepsEmailStep(t *testing.T) {
	e := newTestEnv()
	e.busy.err = errors.New("calendar unreachable")

	e.text(testUser, "1")
	e.text(testUser, "1")
	e.text(testUser, "Juan Pérez")
	e.text(testUser, "202012345")
	e.text(testUser, "Psicología")
	e.text(testUser, "juan.perez@correounivalle.edu.co")

	if !strings.Contains(e.lastBody(t), "consultando la disponibilidad") {
		t.Errorf("expected availability error notice, got %q", e.lastBody(t))
	}
	if got := e.record(testUser).Step; got != models.StateAppointmentEmail {
		t.Fatalf("failed listing must not advance, got %q", got)
	}

	// Recovery: the same email works once the calendar is back.
	e.busy.err = nil
	e.text(testUser, "juan.perez@correounivalle.edu.co")
	if got := e.record(testUser).Step; got != models.StateAppointmentDay {
		t.Errorf("expected day step after retry, got %q", got)
	}
}

func TestAppointmentSheetFailureDoesNotBlockBooking(t *testing.T) {
	e := newTestEnv()
	e.d.records = nil // no sheet configured
	e.fillAppointmentForm(t, testUser)
	e.text(testUser, "1")
	e.text(testUser, "1")
	e.text(testUser, "1")

	if len(e.events.created) != 1 {
		t.Fatalf("expected one calendar event, got %d", len(e.events.created))
	}
	if !strings.Contains(e.lastBody(t), "Tu cita ha sido solicitada") {
		t.Errorf("booking must confirm without a sheet, got %q", e.lastBody(t))
	}
}
