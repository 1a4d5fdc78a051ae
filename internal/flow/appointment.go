package flow

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sched"
)

var (
	nameRegexp   = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚüÜñÑ\s]+$`)
	digitsRegexp = regexp.MustCompile(`^[0-9]+$`)
	emailRegexp  = regexp.MustCompile(`^[\w.\-]+@correounivalle\.edu\.co$`)
)

// handleAppointment advances the booking state machine. Day and time are
// index selections into the scheduler's listings; free-form dates are never
// parsed.
func (d *Dispatcher) handleAppointment(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	input := strings.TrimSpace(evt.Payload)
	lower := strings.ToLower(input)

	switch rec.Step {
	case models.StateAppointmentType:
		switch lower {
		case "1", "presencial":
			rec.Fields[fieldType] = string(models.AppointmentInPerson)
		case "2", "virtual":
			rec.Fields[fieldType] = string(models.AppointmentVirtual)
		default:
			d.send(ctx, to, msgInvalidType)
			return
		}
		rec.Step = models.StateAppointmentName
		d.send(ctx, to, msgAskName)

	case models.StateAppointmentName:
		if input == "" || !nameRegexp.MatchString(input) {
			d.send(ctx, to, msgInvalidName)
			return
		}
		rec.Fields[fieldName] = input
		rec.Step = models.StateAppointmentStudentCode
		d.send(ctx, to, msgAskStudentCode)

	case models.StateAppointmentStudentCode:
		if !digitsRegexp.MatchString(input) {
			d.send(ctx, to, msgInvalidStudentCode)
			return
		}
		rec.Fields[fieldStudentCode] = input
		rec.Step = models.StateAppointmentCareer
		d.send(ctx, to, msgAskCareer)

	case models.StateAppointmentCareer:
		if input == "" {
			d.send(ctx, to, msgInvalidCareer)
			return
		}
		rec.Fields[fieldCareer] = input
		rec.Step = models.StateAppointmentEmail
		d.send(ctx, to, msgAskEmail)

	case models.StateAppointmentEmail:
		if !emailRegexp.MatchString(lower) {
			d.send(ctx, to, msgInvalidEmail)
			return
		}
		rec.Fields[fieldEmail] = input
		dates, err := d.scheduler.ListCandidateDates(ctx)
		if err != nil {
			slog.Error("flow: listing candidate dates failed", "user", to, "error", err)
			d.send(ctx, to, msgSchedulerError)
			return
		}
		if len(dates) == 0 {
			d.send(ctx, to, msgNoDates)
			rec.Terminate()
			return
		}
		rec.Dates = dates
		rec.Step = models.StateAppointmentDay
		d.send(ctx, to, msgAskDay(dates))

	case models.StateAppointmentDay:
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(rec.Dates) {
			d.send(ctx, to, msgInvalidDay(len(rec.Dates)))
			return
		}
		date := rec.Dates[idx-1]
		slots, err := d.scheduler.ListSlotsForDate(ctx, date.Date)
		if err != nil {
			slog.Error("flow: listing slots failed", "user", to, "date", date.Date, "error", err)
			d.send(ctx, to, msgSchedulerError)
			return
		}
		if len(availableSlots(slots)) == 0 {
			d.send(ctx, to, msgNoSlots)
			return
		}
		rec.Fields[fieldDayLabel] = date.Label
		rec.Slots = slots
		rec.Step = models.StateAppointmentTime
		d.send(ctx, to, msgAskTime(date.Label, slots))

	case models.StateAppointmentTime:
		available := availableSlots(rec.Slots)
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(available) {
			d.send(ctx, to, msgInvalidTime)
			return
		}
		slot := available[idx-1]
		rec.Fields[fieldSlotStart] = slot.Start.Format(time.RFC3339)
		rec.Fields[fieldTimeLabel] = slot.Label
		rec.Step = models.StateAppointmentConfirm
		d.send(ctx, to, msgConfirmAppointment(rec.Fields))

	case models.StateAppointmentConfirm:
		switch {
		case isYes(lower):
			d.commitAppointment(ctx, evt, rec)
		case isNo(lower):
			d.send(ctx, to, msgAppointmentAborted)
			rec.Terminate()
		default:
			d.send(ctx, to, msgInvalidConfirm)
		}
	}
}

// commitAppointment re-validates the chosen slot and records the booking.
// The user-facing confirmation is not gated on the sheet, archive, or even
// the calendar write succeeding; only a lost slot changes the outcome, by
// returning the user to the time step with a fresh grid.
func (d *Dispatcher) commitAppointment(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	slotStart, err := time.Parse(time.RFC3339, rec.Fields[fieldSlotStart])
	if err != nil {
		slog.Error("flow: stored slot unparseable", "user", to, "value", rec.Fields[fieldSlotStart], "error", err)
		d.send(ctx, to, msgApology)
		rec.Terminate()
		return
	}

	now := d.now()
	appt := models.Appointment{
		ID:          uuid.New().String(),
		UserID:      to,
		Name:        rec.Fields[fieldName],
		StudentCode: rec.Fields[fieldStudentCode],
		Career:      rec.Fields[fieldCareer],
		Email:       rec.Fields[fieldEmail],
		Type:        models.AppointmentType(rec.Fields[fieldType]),
		SlotStart:   slotStart,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	eventID, err := d.scheduler.ConfirmAndCommit(ctx, appt)
	if errors.Is(err, sched.ErrSlotTaken) {
		slots, lerr := d.scheduler.ListSlotsForDate(ctx, slotStart)
		if lerr != nil {
			slog.Error("flow: re-listing slots after lost race failed", "user", to, "error", lerr)
			d.send(ctx, to, msgSchedulerError)
			return
		}
		rec.Slots = slots
		rec.Step = models.StateAppointmentTime
		d.send(ctx, to, msgSlotTaken)
		d.send(ctx, to, msgAskTime(rec.Fields[fieldDayLabel], slots))
		return
	}
	if err != nil {
		slog.Error("flow: calendar commit failed, booking continues", "user", to, "error", err)
	} else {
		appt.CalendarEventID = eventID
	}

	if d.records != nil {
		if err := d.records.Append(ctx, appt); err != nil {
			slog.Error("flow: sheet append failed, booking continues", "user", to, "error", err)
		} else {
			appt.SheetSynced = true
		}
	}
	if d.archive != nil {
		if err := d.archive.SaveAppointment(appt); err != nil {
			slog.Error("flow: local save failed, booking continues", "user", to, "error", err)
		}
	}

	summary := msgAppointmentSummary(rec.Fields)
	rec.Terminate()
	d.send(ctx, to, summary)
	slog.Info("flow: appointment booked", "user", to, "slot", slotStart, "event_id", appt.CalendarEventID)
}

func availableSlots(slots []models.CandidateSlot) []models.CandidateSlot {
	var out []models.CandidateSlot
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
