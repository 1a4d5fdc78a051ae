package flow

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sched"
	"github.com/uvbienestar/vivibot/internal/sheets"
)

var phoneRegexp = regexp.MustCompile(`^[0-9]{10}$`)

// Modify targets stored in the modify_field record field.
const (
	modifyType  = "type"
	modifySlot  = "slot"
	modifyPhone = "phone"
)

// handleCancelModify looks up the user's most recent appointment and either
// cancels it or rewrites one chosen field, propagating the change to the
// sheet, the local archive, and the calendar event.
func (d *Dispatcher) handleCancelModify(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	input := strings.TrimSpace(evt.Payload)
	lower := strings.ToLower(input)

	switch rec.Step {
	case models.StateCancelModifyAction:
		switch {
		case lower == "1" || strings.Contains(lower, "cancelar"):
			rec.Fields[fieldAction] = "cancel"
		case lower == "2" || strings.Contains(lower, "modificar"):
			rec.Fields[fieldAction] = "modify"
		default:
			d.send(ctx, to, msgInvalidCancelModifyAction)
			return
		}
		d.send(ctx, to, msgSearching)
		d.searchAppointment(ctx, evt, rec)

	case models.StateCancelModifyConfirm:
		switch {
		case isYes(lower):
			if rec.Fields[fieldAction] == "cancel" {
				d.cancelAppointment(ctx, evt, rec)
				return
			}
			rec.Step = models.StateCancelModifyField
			d.send(ctx, to, msgAskModifyField)
		case lower == "no" || lower == "n":
			d.send(ctx, to, msgNoChanges)
			rec.EndFlow()
		default:
			d.send(ctx, to, msgConfirmReprompt)
		}

	case models.StateCancelModifyField:
		switch {
		case lower == "1" || strings.Contains(lower, "tipo"):
			rec.Fields[fieldModifyField] = modifyType
			rec.Step = models.StateCancelModifyNewType
			d.send(ctx, to, msgAskNewType)
		case lower == "2" || strings.Contains(lower, "fecha") || strings.Contains(lower, "día") ||
			strings.Contains(lower, "dia") || strings.Contains(lower, "hora"):
			rec.Fields[fieldModifyField] = modifySlot
			dates, err := d.scheduler.ListCandidateDates(ctx)
			if err != nil {
				slog.Error("flow: listing dates for modify failed", "user", to, "error", err)
				d.send(ctx, to, msgSchedulerError)
				return
			}
			if len(dates) == 0 {
				d.send(ctx, to, msgNoDates)
				rec.EndFlow()
				return
			}
			rec.Dates = dates
			rec.Step = models.StateCancelModifyNewDay
			d.send(ctx, to, msgAskDay(dates))
		case lower == "3" || strings.Contains(lower, "telefono") || strings.Contains(lower, "teléfono"):
			rec.Fields[fieldModifyField] = modifyPhone
			rec.Step = models.StateCancelModifyPhone
			d.send(ctx, to, msgAskNewPhone)
		default:
			d.send(ctx, to, msgInvalidModifyField)
		}

	case models.StateCancelModifyNewType:
		switch lower {
		case "1", "presencial":
			rec.Fields[fieldType] = string(models.AppointmentInPerson)
		case "2", "virtual":
			rec.Fields[fieldType] = string(models.AppointmentVirtual)
		default:
			d.send(ctx, to, msgInvalidType)
			return
		}
		d.completeModification(ctx, evt, rec)

	case models.StateCancelModifyNewDay:
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(rec.Dates) {
			d.send(ctx, to, msgInvalidDay(len(rec.Dates)))
			return
		}
		date := rec.Dates[idx-1]
		slots, err := d.scheduler.ListSlotsForDate(ctx, date.Date)
		if err != nil {
			slog.Error("flow: listing slots for modify failed", "user", to, "error", err)
			d.send(ctx, to, msgSchedulerError)
			return
		}
		if len(availableSlots(slots)) == 0 {
			d.send(ctx, to, msgNoSlots)
			return
		}
		rec.Fields[fieldDayLabel] = date.Label
		rec.Slots = slots
		rec.Step = models.StateCancelModifyNewTime
		d.send(ctx, to, msgAskTime(date.Label, slots))

	case models.StateCancelModifyNewTime:
		available := availableSlots(rec.Slots)
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(available) {
			d.send(ctx, to, msgInvalidTime)
			return
		}
		slot := available[idx-1]
		if err := d.scheduler.CheckSlotFree(ctx, slot.Start); err != nil {
			if errors.Is(err, sched.ErrSlotTaken) {
				slots, lerr := d.scheduler.ListSlotsForDate(ctx, slot.Start)
				if lerr != nil {
					slog.Error("flow: re-listing slots after lost race failed", "user", to, "error", lerr)
					d.send(ctx, to, msgSchedulerError)
					return
				}
				rec.Slots = slots
				d.send(ctx, to, msgSlotTaken)
				d.send(ctx, to, msgAskTime(rec.Fields[fieldDayLabel], slots))
				return
			}
			slog.Error("flow: slot re-check failed", "user", to, "error", err)
			d.send(ctx, to, msgSchedulerError)
			return
		}
		rec.Fields[fieldSlotStart] = slot.Start.Format(time.RFC3339)
		rec.Fields[fieldTimeLabel] = slot.Label
		d.completeModification(ctx, evt, rec)

	case models.StateCancelModifyPhone:
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, input)
		if !phoneRegexp.MatchString(digits) {
			d.send(ctx, to, msgInvalidPhone)
			return
		}
		rec.Fields[modifyPhone] = digits
		d.completeModification(ctx, evt, rec)
	}
}

// searchAppointment finds the user's rows on the sheet by phone and presents
// the most recent one for confirmation.
func (d *Dispatcher) searchAppointment(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	if d.records == nil {
		d.send(ctx, to, msgSearchError)
		rec.EndFlow()
		return
	}
	rows, err := d.records.FindByUser(ctx, to)
	if err != nil {
		slog.Error("flow: appointment search failed", "user", to, "error", err)
		d.send(ctx, to, msgSearchError)
		rec.EndFlow()
		return
	}
	if len(rows) == 0 {
		d.send(ctx, to, msgAppointmentNotFound)
		rec.EndFlow()
		return
	}

	row := rows[len(rows)-1]
	rec.Found = &row
	rec.Step = models.StateCancelModifyConfirm

	body := msgFoundAppointment(recordRowView{
		Type: row.Type, Name: row.Name, DayLabel: row.DayLabel,
		TimeLabel: row.TimeLabel, Email: row.Email,
	})
	if len(rows) > 1 {
		body = msgMultipleFound(len(rows)) + body
	}
	d.send(ctx, to, body)
	slog.Debug("flow: appointment found", "user", to, "row", row.RowIndex, "matches", len(rows))
}

func (d *Dispatcher) cancelAppointment(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	row := rec.Found

	if hasEventID(row) && d.calendar != nil {
		if err := d.calendar.DeleteEvent(ctx, row.EventID); err != nil {
			slog.Error("flow: calendar delete failed, cancellation continues", "user", to, "event_id", row.EventID, "error", err)
		}
	}
	if err := d.records.Delete(ctx, row.RowIndex); err != nil {
		slog.Error("flow: sheet delete failed", "user", to, "row", row.RowIndex, "error", err)
		d.send(ctx, to, msgCancelError)
		rec.EndFlow()
		return
	}
	d.deleteLocal(to, row)

	d.send(ctx, to, msgCancelConfirmed)
	rec.Terminate()
	slog.Info("flow: appointment cancelled", "user", to, "row", row.RowIndex)
}

// completeModification rewrites the chosen field on the sheet row and
// propagates it to the calendar event and the local archive.
func (d *Dispatcher) completeModification(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	row := *rec.Found
	field := rec.Fields[fieldModifyField]

	switch field {
	case modifyType:
		row.Type = rec.Fields[fieldType]
	case modifySlot:
		row.DayLabel = rec.Fields[fieldDayLabel]
		row.TimeLabel = rec.Fields[fieldTimeLabel]
		row.SlotISO = rec.Fields[fieldSlotStart]
	case modifyPhone:
		row.UserID = rec.Fields[modifyPhone]
	}

	if field != modifyPhone && hasEventID(&row) && d.calendar != nil {
		if appt, ok := appointmentFromRow(row); ok {
			if err := d.calendar.UpdateEvent(ctx, row.EventID, appt); err != nil {
				slog.Error("flow: calendar update failed, modification continues", "user", to, "event_id", row.EventID, "error", err)
			}
		}
	}

	if err := d.records.Update(ctx, row); err != nil {
		slog.Error("flow: sheet update failed", "user", to, "row", row.RowIndex, "error", err)
		d.send(ctx, to, msgModifyError)
		rec.EndFlow()
		return
	}
	d.updateLocal(to, row)

	d.send(ctx, to, msgModifySuccess)
	rec.Terminate()
	slog.Info("flow: appointment modified", "user", to, "row", row.RowIndex, "field", field)
}

// deleteLocal removes the matching row from the local archive, best effort.
func (d *Dispatcher) deleteLocal(userID string, row *sheets.Row) {
	appt, ok := d.findLocal(userID, row)
	if !ok {
		return
	}
	if err := d.archive.DeleteAppointment(appt.ID); err != nil {
		slog.Warn("flow: local delete failed", "user", userID, "id", appt.ID, "error", err)
	}
}

// updateLocal mirrors the sheet change into the local archive, best effort.
func (d *Dispatcher) updateLocal(userID string, row sheets.Row) {
	appt, ok := d.findLocal(userID, &row)
	if !ok {
		return
	}
	appt.Type = models.AppointmentType(row.Type)
	if start, err := time.Parse(time.RFC3339, row.SlotISO); err == nil {
		appt.SlotStart = start
	}
	if err := d.archive.UpdateAppointment(appt); err != nil {
		slog.Warn("flow: local update failed", "user", userID, "id", appt.ID, "error", err)
	}
}

// findLocal matches the sheet row to a local archive record, preferring the
// calendar event ID and falling back to the newest record for the user.
func (d *Dispatcher) findLocal(userID string, row *sheets.Row) (models.Appointment, bool) {
	if d.archive == nil {
		return models.Appointment{}, false
	}
	appts, err := d.archive.GetAppointmentsByUser(userID)
	if err != nil || len(appts) == 0 {
		return models.Appointment{}, false
	}
	if hasEventID(row) {
		for _, a := range appts {
			if a.CalendarEventID == row.EventID {
				return a, true
			}
		}
	}
	return appts[len(appts)-1], true
}

func hasEventID(row *sheets.Row) bool {
	return row.EventID != "" && row.EventID != "N/A"
}

// appointmentFromRow rebuilds enough of an appointment from a sheet row to
// update its calendar event.
func appointmentFromRow(row sheets.Row) (models.Appointment, bool) {
	start, err := time.Parse(time.RFC3339, row.SlotISO)
	if err != nil {
		return models.Appointment{}, false
	}
	return models.Appointment{
		UserID:          row.UserID,
		Name:            row.Name,
		StudentCode:     row.StudentCode,
		Career:          row.Career,
		Email:           row.Email,
		Type:            models.AppointmentType(row.Type),
		SlotStart:       start,
		CalendarEventID: row.EventID,
	}, true
}
