// Package models defines the shared data types for ViviBot.
//
// It covers inbound webhook events, per-user conversation state, appointment
// records, and the scheduling primitives used by the availability service.
package models

import "time"

// EventKind distinguishes plain text messages from interactive replies
// (button or list selections) delivered by the WhatsApp channel.
type EventKind string

const (
	EventKindText        EventKind = "text"
	EventKindInteractive EventKind = "interactive"
)

// InboundEvent is a normalized inbound message from the webhook transport.
// MessageID is unique per delivery attempt but repeats across re-deliveries
// of the same logical message, which is why the dispatcher deduplicates on it.
type InboundEvent struct {
	UserID      string    `json:"user_id"`
	MessageID   string    `json:"message_id"`
	Kind        EventKind `json:"kind"`
	Payload     string    `json:"payload"`
	ProfileName string    `json:"profile_name,omitempty"`
	Time        int64     `json:"time,omitempty"`
}

// FlowType identifies one of the mutually exclusive conversation flows.
type FlowType string

const (
	FlowTypeNone         FlowType = ""
	FlowTypeAppointment  FlowType = "appointment"
	FlowTypeCancelModify FlowType = "cancel_modify"
	FlowTypeAIAssist     FlowType = "ai_assist"
	FlowTypeResources    FlowType = "resources"
	FlowTypeWorkshop     FlowType = "workshop"
	FlowTypeEmergency    FlowType = "emergency"
)

// StateType is the current step within a flow's state machine.
type StateType string

// Appointment flow steps.
const (
	StateAppointmentType        StateType = "APPOINTMENT_TYPE"
	StateAppointmentName        StateType = "APPOINTMENT_NAME"
	StateAppointmentStudentCode StateType = "APPOINTMENT_STUDENT_CODE"
	StateAppointmentCareer      StateType = "APPOINTMENT_CAREER"
	StateAppointmentEmail       StateType = "APPOINTMENT_EMAIL"
	StateAppointmentDay         StateType = "APPOINTMENT_DAY"
	StateAppointmentTime        StateType = "APPOINTMENT_TIME"
	StateAppointmentConfirm     StateType = "APPOINTMENT_CONFIRM"
)

// Cancel/modify flow steps.
const (
	StateCancelModifyAction  StateType = "CANCEL_MODIFY_ACTION"
	StateCancelModifyConfirm StateType = "CANCEL_MODIFY_CONFIRM"
	StateCancelModifyField   StateType = "CANCEL_MODIFY_FIELD"
	StateCancelModifyNewType StateType = "CANCEL_MODIFY_NEW_TYPE"
	StateCancelModifyNewDay  StateType = "CANCEL_MODIFY_NEW_DAY"
	StateCancelModifyNewTime StateType = "CANCEL_MODIFY_NEW_TIME"
	StateCancelModifyPhone   StateType = "CANCEL_MODIFY_NEW_PHONE"
)

// AI assist flow steps.
const (
	StateAssistQuestion StateType = "ASSIST_QUESTION"
	StateAssistContinue StateType = "ASSIST_WAITING_CONTINUE"
)

// Resource browse flow steps.
const (
	StateResourceCategory StateType = "RESOURCE_CATEGORY_SELECT"
	StateResourceSelect   StateType = "RESOURCE_SELECT"
)

// Workshop flow steps.
const (
	StateWorkshopList        StateType = "WORKSHOP_LIST"
	StateWorkshopThanks      StateType = "WORKSHOP_THANKS"
	StateWorkshopCertificate StateType = "WORKSHOP_CERTIFICATE"
)

// Emergency flow step.
const (
	StateEmergencyWaiting StateType = "EMERGENCY_WAITING"
)

// AppointmentType is the modality of a booked session.
type AppointmentType string

const (
	AppointmentInPerson AppointmentType = "Presencial"
	AppointmentVirtual  AppointmentType = "Virtual"
)

// Appointment is a booked session persisted by the record stores.
type Appointment struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Name            string          `json:"name"`
	StudentCode     string          `json:"student_code"`
	Career          string          `json:"career"`
	Email           string          `json:"email"`
	Type            AppointmentType `json:"type"`
	SlotStart       time.Time       `json:"slot_start"`
	CalendarEventID string          `json:"calendar_event_id,omitempty"`
	ReminderSent    bool            `json:"reminder_sent"`
	SheetSynced     bool            `json:"sheet_synced"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// BusyInterval is an occupied calendar period, half-open [Start, End).
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether a slot [slotStart, slotEnd) collides with the
// interval. Touching endpoints do not count as overlap.
func (b BusyInterval) Overlaps(slotStart, slotEnd time.Time) bool {
	return slotStart.Before(b.End) && slotEnd.After(b.Start)
}

// SlotDuration is the fixed length of every bookable slot.
const SlotDuration = 60 * time.Minute

// CandidateSlot is one offerable time slot on a candidate date. Available is
// a point-in-time estimate at listing; booking re-validates it.
type CandidateSlot struct {
	Start     time.Time `json:"start"`
	Label     string    `json:"label"`
	Available bool      `json:"available"`
	Morning   bool      `json:"morning"`
}

// End returns the slot's exclusive end instant.
func (s CandidateSlot) End() time.Time {
	return s.Start.Add(SlotDuration)
}

// CandidateDate is one offerable working day.
type CandidateDate struct {
	Date  time.Time `json:"date"`
	Label string    `json:"label"`
}

// ResourceType categorizes wellbeing media resources.
type ResourceType string

const (
	ResourceAudio    ResourceType = "audio"
	ResourceVideo    ResourceType = "video"
	ResourceImage    ResourceType = "image"
	ResourceDocument ResourceType = "document"
)

// Resource is one entry in the wellbeing resource catalog. An empty URL
// means the content is not published yet.
type Resource struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        ResourceType `json:"type"`
	URL         string       `json:"url"`
}

// ContactCard carries the fields needed to send a WhatsApp contact message.
type ContactCard struct {
	FormattedName string
	Organization  string
	Phone         string
	Email         string
}

// Location is a fixed point shared with the user.
type Location struct {
	Latitude  float64
	Longitude float64
	Name      string
	Address   string
}
