package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sched"
	"github.com/uvbienestar/vivibot/internal/sheets"
)

// Monday 09:30 in the clinic timezone.
var testNow = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type scriptedBusy struct {
	mu        sync.Mutex
	intervals []models.BusyInterval
	err       error
}

func (s *scriptedBusy) ListBusy(ctx context.Context, start, end time.Time) ([]models.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []models.BusyInterval
	for _, b := range s.intervals {
		if b.Start.Before(end) && b.End.After(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *scriptedBusy) add(start, end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intervals = append(s.intervals, models.BusyInterval{Start: start, End: end})
}

type fakeEvents struct {
	created []models.Appointment
	err     error
}

func (f *fakeEvents) CreateEvent(ctx context.Context, appt models.Appointment) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, appt)
	return fmt.Sprintf("evt-%d", len(f.created)), nil
}

type fakeCalendar struct {
	scriptedBusy
	deletedEvents []string
	updatedEvents []string
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, appt models.Appointment) (string, error) {
	return "evt-cal", nil
}

func (f *fakeCalendar) UpdateEvent(ctx context.Context, eventID string, appt models.Appointment) error {
	f.updatedEvents = append(f.updatedEvents, eventID)
	return nil
}

func (f *fakeCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	f.deletedEvents = append(f.deletedEvents, eventID)
	return nil
}

type memRecords struct {
	rows     []sheets.Row
	appended []models.Appointment
	updated  []sheets.Row
	deleted  []int
	findErr  error
}

func (m *memRecords) Append(ctx context.Context, appt models.Appointment) error {
	m.appended = append(m.appended, appt)
	return nil
}

func (m *memRecords) FindByUser(ctx context.Context, userID string) ([]sheets.Row, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []sheets.Row
	for _, r := range m.rows {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRecords) Update(ctx context.Context, row sheets.Row) error {
	m.updated = append(m.updated, row)
	return nil
}

func (m *memRecords) Delete(ctx context.Context, rowIndex int) error {
	m.deleted = append(m.deleted, rowIndex)
	return nil
}

type fakeAI struct {
	reply string
	err   error
}

func (f *fakeAI) Complete(ctx context.Context, userText string) (string, error) {
	return f.reply, f.err
}

type testEnv struct {
	d       *Dispatcher
	rec     *messaging.Recorder
	busy    *scriptedBusy
	events  *fakeEvents
	cal     *fakeCalendar
	records *memRecords
	ai      *fakeAI
	msgSeq  int
}

func newTestEnv() *testEnv {
	e := &testEnv{
		rec:     messaging.NewRecorder(),
		busy:    &scriptedBusy{},
		events:  &fakeEvents{},
		cal:     &fakeCalendar{},
		records: &memRecords{},
		ai:      &fakeAI{reply: "Respira profundo y date un momento."},
	}
	svc := sched.NewService(e.busy, e.events, time.UTC, func() time.Time { return testNow })
	e.d = NewDispatcher(Deps{
		Messenger:      e.rec,
		Scheduler:      svc,
		Calendar:       e.cal,
		Records:        e.records,
		AI:             e.ai,
		ResponderPhone: "573200000000",
		Now:            func() time.Time { return testNow },
	})
	return e
}

// text dispatches a text event with a fresh message ID.
func (e *testEnv) text(user, body string) {
	e.msgSeq++
	e.d.Dispatch(context.Background(), models.InboundEvent{
		UserID:    user,
		MessageID: fmt.Sprintf("wamid.%d", e.msgSeq),
		Kind:      models.EventKindText,
		Payload:   body,
	})
}

func (e *testEnv) lastBody(t *testing.T) string {
	t.Helper()
	bodies := e.rec.Bodies()
	if len(bodies) == 0 {
		t.Fatal("no messages sent")
	}
	return bodies[len(bodies)-1]
}

func (e *testEnv) record(user string) Record {
	return e.d.Conversations().Snapshot(user)
}

const testUser = "573001112233"

func TestDispatchDuplicateMessageIgnored(t *testing.T) {
	e := newTestEnv()
	evt := models.InboundEvent{
		UserID: testUser, MessageID: "wamid.dup", Kind: models.EventKindText, Payload: "hola",
	}

	e.d.Dispatch(context.Background(), evt)
	sent := len(e.rec.All())
	if sent == 0 {
		t.Fatal("first delivery should produce output")
	}

	e.d.Dispatch(context.Background(), evt)
	if got := len(e.rec.All()); got != sent {
		t.Errorf("duplicate delivery produced output: %d messages, want %d", got, sent)
	}
}

func TestGreetingResetsActiveFlow(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "1") // open appointment from menu
	if got := e.record(testUser).ActiveFlow; got != models.FlowTypeAppointment {
		t.Fatalf("expected appointment flow, got %q", got)
	}

	e.text(testUser, "hola")
	rec := e.record(testUser)
	if rec.ActiveFlow != models.FlowTypeNone || rec.Terminated {
		t.Errorf("greeting should clear state: %+v", rec)
	}
	if !strings.Contains(e.lastBody(t), "elige una opción") {
		t.Errorf("expected main menu after greeting, got %q", e.lastBody(t))
	}
}

func TestOptOutLeavesStateUntouched(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "1")
	before := e.record(testUser)

	e.text(testUser, "baja")
	after := e.record(testUser)
	if after.ActiveFlow != before.ActiveFlow || after.Step != before.Step {
		t.Errorf("opt-out must not change state: before %+v, after %+v", before, after)
	}
	if !strings.Contains(e.lastBody(t), "dado de baja") {
		t.Errorf("expected opt-out confirmation, got %q", e.lastBody(t))
	}
}

func TestCrisisPreemptsActiveFlow(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "1") // mid-appointment
	e.text(testUser, "ya no quiero vivir")

	rec := e.record(testUser)
	if rec.ActiveFlow != models.FlowTypeEmergency || rec.Step != models.StateEmergencyWaiting {
		t.Errorf("crisis should set emergency waiting, got flow %q step %q", rec.ActiveFlow, rec.Step)
	}
	if !strings.Contains(e.lastBody(t), "Línea Nacional 24/7") {
		t.Errorf("expected crisis resources, got %q", e.lastBody(t))
	}
}

func TestTerminatedDropsEverythingExceptSignals(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "8") // farewell, terminates
	if !e.record(testUser).Terminated {
		t.Fatal("option 8 should terminate the conversation")
	}

	sent := len(e.rec.All())
	e.text(testUser, "4")
	e.text(testUser, "cualquier cosa")
	if got := len(e.rec.All()); got != sent {
		t.Errorf("terminated conversation produced output: %d messages, want %d", got, sent)
	}

	e.text(testUser, "hola")
	rec := e.record(testUser)
	if rec.Terminated {
		t.Error("greeting should clear the terminated flag")
	}
	if len(e.rec.All()) == sent {
		t.Error("greeting after termination should produce the welcome")
	}
}

func TestMenuKeywordSynonyms(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "quiero agendar una cita por favor")
	if got := e.record(testUser).ActiveFlow; got != models.FlowTypeAppointment {
		t.Errorf("keyword should open appointment flow, got %q", got)
	}
}

func TestMenuUnknownInputRepromptsWithMenu(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "xyzzy")
	body := e.lastBody(t)
	if !strings.Contains(body, "No entendí") || !strings.Contains(body, "elige una opción") {
		t.Errorf("expected not-understood plus menu, got %q", body)
	}
	if got := e.record(testUser).ActiveFlow; got != models.FlowTypeNone {
		t.Errorf("unknown input must not open a flow, got %q", got)
	}
}

func TestMenuLocationTerminates(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "7")

	msgs := e.rec.All()
	var sawLocation bool
	for _, m := range msgs {
		if m.Kind == "location" {
			sawLocation = true
		}
	}
	if !sawLocation {
		t.Error("option 7 should send a location message")
	}
	if !e.record(testUser).Terminated {
		t.Error("option 7 should terminate the conversation")
	}
}

func TestMenuEmergencyContactOpensWaiting(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "6")

	var sawContact bool
	for _, m := range e.rec.All() {
		if m.Kind == "contact" {
			sawContact = true
		}
	}
	if !sawContact {
		t.Error("option 6 should send the office contact card")
	}
	rec := e.record(testUser)
	if rec.ActiveFlow != models.FlowTypeEmergency || rec.Step != models.StateEmergencyWaiting {
		t.Errorf("option 6 should set emergency waiting, got flow %q step %q", rec.ActiveFlow, rec.Step)
	}
}

func TestMenuInfoServicesAnswersDirectly(t *testing.T) {
	e := newTestEnv()
	e.text(testUser, "informacion de servicios")
	if !strings.Contains(e.lastBody(t), "Atención psicológica en Univalle") {
		t.Errorf("expected info services answer, got %q", e.lastBody(t))
	}
	if got := e.record(testUser).ActiveFlow; got != models.FlowTypeNone {
		t.Errorf("info answer must not open a flow, got %q", got)
	}
}

func TestDispatchRecoversFromPanicWithApology(t *testing.T) {
	e := newTestEnv()
	// A nil scheduler makes the appointment email step panic.
	e.d.scheduler = nil
	e.text(testUser, "1")
	e.text(testUser, "1")
	e.text(testUser, "Juan Pérez")
	e.text(testUser, "202012345")
	e.text(testUser, "Psicología")
	e.text(testUser, "juan.perez@correounivalle.edu.co")

	if !strings.Contains(e.lastBody(t), "algo salió mal") {
		t.Errorf("expected apology after panic, got %q", e.lastBody(t))
	}
}

func TestConcurrentUsersProceedIndependently(t *testing.T) {
	e := newTestEnv()
	var wg sync.WaitGroup
	users := []string{"573001110001", "573001110002", "573001110003", "573001110004"}
	for _, u := range users {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			e.text(user, "hola")
			e.text(user, "1")
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		if got := e.record(u).ActiveFlow; got != models.FlowTypeAppointment {
			t.Errorf("user %s: expected appointment flow, got %q", u, got)
		}
	}
}
