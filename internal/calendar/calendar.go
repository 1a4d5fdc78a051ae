// Package calendar wraps the psychologist's Google Calendar for ViviBot.
//
// It exposes busy intervals for the slot scheduler and event CRUD for the
// booking flows. All calls are bounded by a timeout so a hung Google API
// round trip cannot pin a user's conversation.
package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/uvbienestar/vivibot/internal/models"
)

// DefaultCallTimeout bounds each Google Calendar round trip.
const DefaultCallTimeout = 15 * time.Second

// Service is the calendar collaborator contract consumed by the scheduler
// and the booking flows.
type Service interface {
	ListBusy(ctx context.Context, windowStart, windowEnd time.Time) ([]models.BusyInterval, error)
	CreateEvent(ctx context.Context, appt models.Appointment) (string, error)
	UpdateEvent(ctx context.Context, eventID string, appt models.Appointment) error
	DeleteEvent(ctx context.Context, eventID string) error
}

// Opts holds configuration for the Google Calendar client.
type Opts struct {
	CalendarID      string
	CredentialsFile string
	Timezone        string
	CallTimeout     time.Duration
}

// Option configures the Google Calendar client.
type Option func(*Opts)

// WithCalendarID sets the target calendar (defaults to "primary").
func WithCalendarID(id string) Option {
	return func(o *Opts) { o.CalendarID = id }
}

// WithCredentialsFile sets the service-account credentials path.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// WithTimezone sets the timezone attached to created events.
func WithTimezone(tz string) Option {
	return func(o *Opts) { o.Timezone = tz }
}

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Opts) { o.CallTimeout = d }
}

// GoogleCalendar implements Service against the Google Calendar API.
type GoogleCalendar struct {
	svc        *gcal.Service
	calendarID string
	timezone   string
	timeout    time.Duration
}

// Compile-time check that GoogleCalendar implements Service.
var _ Service = (*GoogleCalendar)(nil)

// New creates a Google Calendar client using service-account credentials.
func New(ctx context.Context, opts ...Option) (*GoogleCalendar, error) {
	cfg := Opts{CalendarID: "primary", Timezone: "America/Bogota", CallTimeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	var clientOpts []option.ClientOption
	if cfg.CredentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	svc, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	slog.Debug("calendar: client initialized", "calendar_id", cfg.CalendarID)
	return &GoogleCalendar{
		svc:        svc,
		calendarID: cfg.CalendarID,
		timezone:   cfg.Timezone,
		timeout:    cfg.CallTimeout,
	}, nil
}

// ListBusy returns the busy intervals between windowStart and windowEnd.
func (g *GoogleCalendar) ListBusy(ctx context.Context, windowStart, windowEnd time.Time) ([]models.BusyInterval, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	events, err := g.svc.Events.List(g.calendarID).
		TimeMin(windowStart.Format(time.RFC3339)).
		TimeMax(windowEnd.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		slog.Error("calendar: listing events failed", "error", err)
		return nil, fmt.Errorf("listing calendar events: %w", err)
	}

	var busy []models.BusyInterval
	for _, item := range events.Items {
		start, end, err := eventInterval(item)
		if err != nil {
			slog.Warn("calendar: skipping event with unparsable times", "event_id", item.Id, "error", err)
			continue
		}
		busy = append(busy, models.BusyInterval{Start: start, End: end})
	}
	slog.Debug("calendar: busy intervals listed", "count", len(busy))
	return busy, nil
}

// CreateEvent inserts the appointment as a one-hour calendar event and
// returns the created event ID.
func (g *GoogleCalendar) CreateEvent(ctx context.Context, appt models.Appointment) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	event := &gcal.Event{
		Summary: fmt.Sprintf("Cita de Psicología - %s", appt.Name),
		Description: fmt.Sprintf("Tipo: %s\nNombre: %s\nCorreo: %s\nWhatsApp: %s\n\nAgendado vía Bot WhatsApp Vivi",
			appt.Type, appt.Name, appt.Email, appt.UserID),
		Start: &gcal.EventDateTime{
			DateTime: appt.SlotStart.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: appt.SlotStart.Add(models.SlotDuration).Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}

	created, err := g.svc.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		slog.Error("calendar: event insert failed", "error", err, "user", appt.UserID)
		return "", fmt.Errorf("inserting calendar event: %w", err)
	}
	slog.Info("calendar: event created", "event_id", created.Id, "user", appt.UserID)
	return created.Id, nil
}

// UpdateEvent rewrites the event's time window and description from the
// appointment's current fields, keeping calendar and record store in sync.
func (g *GoogleCalendar) UpdateEvent(ctx context.Context, eventID string, appt models.Appointment) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	event, err := g.svc.Events.Get(g.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("fetching calendar event %s: %w", eventID, err)
	}
	event.Start = &gcal.EventDateTime{
		DateTime: appt.SlotStart.Format(time.RFC3339),
		TimeZone: g.timezone,
	}
	event.End = &gcal.EventDateTime{
		DateTime: appt.SlotStart.Add(models.SlotDuration).Format(time.RFC3339),
		TimeZone: g.timezone,
	}
	event.Description = fmt.Sprintf("Tipo: %s\nNombre: %s\nCorreo: %s\nWhatsApp: %s\n\nAgendado vía Bot WhatsApp Vivi",
		appt.Type, appt.Name, appt.Email, appt.UserID)

	if _, err := g.svc.Events.Update(g.calendarID, eventID, event).Context(ctx).Do(); err != nil {
		slog.Error("calendar: event update failed", "error", err, "event_id", eventID)
		return fmt.Errorf("updating calendar event %s: %w", eventID, err)
	}
	slog.Info("calendar: event updated", "event_id", eventID)
	return nil
}

// DeleteEvent removes the event from the calendar.
func (g *GoogleCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.svc.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		slog.Error("calendar: event delete failed", "error", err, "event_id", eventID)
		return fmt.Errorf("deleting calendar event %s: %w", eventID, err)
	}
	slog.Info("calendar: event deleted", "event_id", eventID)
	return nil
}

// eventInterval extracts the [start, end) instants of an event. All-day
// events carry a date instead of a datetime.
func eventInterval(item *gcal.Event) (time.Time, time.Time, error) {
	parse := func(edt *gcal.EventDateTime) (time.Time, error) {
		if edt == nil {
			return time.Time{}, fmt.Errorf("missing event time")
		}
		if edt.DateTime != "" {
			return time.Parse(time.RFC3339, edt.DateTime)
		}
		return time.Parse("2006-01-02", edt.Date)
	}
	start, err := parse(item.Start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parse(item.End)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}
