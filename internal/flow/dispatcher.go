// Package flow implements the per-user conversation engine: the dispatcher,
// the conversation state store, and the six mutually exclusive flows.
//
// Every inbound event passes the same gates in order: message-ID
// deduplication, global signals (opt-out, crisis, greeting), the terminated
// flag, then routing to whichever flow is active. Outbound sends are logged
// on failure but never abort a transition.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/uvbienestar/vivibot/internal/calendar"
	"github.com/uvbienestar/vivibot/internal/dedup"
	"github.com/uvbienestar/vivibot/internal/genai"
	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sched"
	"github.com/uvbienestar/vivibot/internal/sheets"
	"github.com/uvbienestar/vivibot/internal/signal"
	"github.com/uvbienestar/vivibot/internal/store"
)

// DefaultDedupCapacity bounds the in-memory inbound message ID set.
const DefaultDedupCapacity = 1000

// Deps are the dispatcher's collaborators. Messenger and Scheduler are
// required; the rest degrade to logged no-ops when nil so partial deployments
// (and tests) stay functional.
type Deps struct {
	Messenger      messaging.Messenger
	Conversations  *ConversationStore
	Dedup          *dedup.Deduplicator
	Scheduler      *sched.Service
	Calendar       calendar.Service
	Records        sheets.RecordStore
	Archive        store.Store
	AI             genai.Completer
	ResponderPhone string
	Contact        models.ContactCard
	Location       models.Location
	Now            func() time.Time
}

// Dispatcher routes inbound events to conversation flows.
type Dispatcher struct {
	messenger      messaging.Messenger
	conversations  *ConversationStore
	dedup          *dedup.Deduplicator
	scheduler      *sched.Service
	calendar       calendar.Service
	records        sheets.RecordStore
	archive        store.Store
	ai             genai.Completer
	responderPhone string
	contact        models.ContactCard
	location       models.Location
	loc            *time.Location
	now            func() time.Time
}

// NewDispatcher wires a dispatcher from its collaborators, filling defaults
// for the optional ones.
func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Conversations == nil {
		deps.Conversations = NewConversationStore()
	}
	if deps.Dedup == nil {
		deps.Dedup = dedup.New(DefaultDedupCapacity)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.ResponderPhone == "" {
		deps.ResponderPhone = DefaultResponderPhone
	}
	if deps.Contact == (models.ContactCard{}) {
		deps.Contact = OfficeContact
	}
	if deps.Location == (models.Location{}) {
		deps.Location = OfficeLocation
	}
	loc := time.Local
	if deps.Scheduler != nil {
		loc = deps.Scheduler.Location()
	}
	return &Dispatcher{
		messenger:      deps.Messenger,
		conversations:  deps.Conversations,
		dedup:          deps.Dedup,
		scheduler:      deps.Scheduler,
		calendar:       deps.Calendar,
		records:        deps.Records,
		archive:        deps.Archive,
		ai:             deps.AI,
		responderPhone: deps.ResponderPhone,
		contact:        deps.Contact,
		location:       deps.Location,
		loc:            loc,
		now:            deps.Now,
	}
}

// Conversations exposes the conversation store, mainly for inspection.
func (d *Dispatcher) Conversations() *ConversationStore {
	return d.conversations
}

// Dispatch processes one inbound event end to end. Re-deliveries of an
// already processed message ID are dropped before any side effect.
func (d *Dispatcher) Dispatch(ctx context.Context, evt models.InboundEvent) {
	if evt.UserID == "" {
		slog.Debug("flow: dropping event without user")
		return
	}
	if evt.MessageID != "" {
		if d.dedup.Seen(evt.MessageID) {
			slog.Debug("flow: duplicate message dropped", "user", evt.UserID, "message_id", evt.MessageID)
			return
		}
		d.dedup.Record(evt.MessageID)
		if d.archive != nil {
			fresh, err := d.archive.RecordInbound(evt.MessageID, evt.UserID)
			if err != nil {
				slog.Warn("flow: inbound archive failed", "user", evt.UserID, "error", err)
			} else if !fresh {
				slog.Debug("flow: duplicate message dropped via archive", "user", evt.UserID, "message_id", evt.MessageID)
				return
			}
		}
	}

	d.conversations.With(evt.UserID, func(rec *Record) {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("flow: panic in transition",
					"user", evt.UserID, "flow", rec.ActiveFlow, "step", rec.Step, "panic", r)
				d.send(ctx, evt.UserID, msgApology)
			}
		}()
		d.route(ctx, evt, rec)
	})
}

func (d *Dispatcher) route(ctx context.Context, evt models.InboundEvent, rec *Record) {
	// Global signals apply to typed text only; interactive replies carry
	// option IDs, not free language.
	if evt.Kind == models.EventKindText {
		switch signal.Classify(evt.Payload) {
		case signal.OptOut:
			slog.Info("flow: opt-out", "user", evt.UserID)
			d.send(ctx, evt.UserID, msgOptOutConfirmed)
			return
		case signal.Crisis:
			slog.Info("flow: crisis signal", "user", evt.UserID, "previous_flow", rec.ActiveFlow)
			d.send(ctx, evt.UserID, msgCrisisDetected)
			d.send(ctx, evt.UserID, msgCrisisResources)
			rec.StartFlow(models.FlowTypeEmergency, models.StateEmergencyWaiting)
			// The waiting state needs the user's next reply even after a
			// concluded conversation.
			rec.Terminated = false
			return
		case signal.Greeting:
			slog.Info("flow: greeting reset", "user", evt.UserID)
			rec.Reset()
			name := evt.ProfileName
			if name == "" {
				name = evt.UserID
			}
			d.send(ctx, evt.UserID, msgWelcome(name))
			d.send(ctx, evt.UserID, msgMainMenu)
			return
		}
	}

	if rec.Terminated {
		slog.Debug("flow: terminated conversation, dropping", "user", evt.UserID)
		return
	}

	switch rec.ActiveFlow {
	case models.FlowTypeEmergency:
		d.handleEmergency(ctx, evt, rec)
	case models.FlowTypeAppointment:
		d.handleAppointment(ctx, evt, rec)
	case models.FlowTypeCancelModify:
		d.handleCancelModify(ctx, evt, rec)
	case models.FlowTypeAIAssist:
		d.handleAssist(ctx, evt, rec)
	case models.FlowTypeResources:
		d.handleResources(ctx, evt, rec)
	case models.FlowTypeWorkshop:
		d.handleWorkshop(ctx, evt, rec)
	default:
		d.handleMenu(ctx, evt, rec)
	}
}

// send delivers a text message, logging failures without surfacing them.
func (d *Dispatcher) send(ctx context.Context, to string, body string) {
	if err := d.messenger.SendText(ctx, to, body); err != nil {
		slog.Error("flow: send failed", "to", to, "error", err)
	}
}

func (d *Dispatcher) sendButtons(ctx context.Context, to string, body string, buttons []messaging.Button) {
	if err := d.messenger.SendButtons(ctx, to, body, buttons); err != nil {
		slog.Error("flow: send buttons failed", "to", to, "error", err)
	}
}

func (d *Dispatcher) sendMedia(ctx context.Context, to string, media messaging.Media) {
	if err := d.messenger.SendMedia(ctx, to, media); err != nil {
		slog.Error("flow: send media failed", "to", to, "error", err)
	}
}

func (d *Dispatcher) sendContact(ctx context.Context, to string) {
	if err := d.messenger.SendContactCard(ctx, to, d.contact); err != nil {
		slog.Error("flow: send contact failed", "to", to, "error", err)
	}
}

func (d *Dispatcher) sendLocation(ctx context.Context, to string) {
	if err := d.messenger.SendLocation(ctx, to, d.location); err != nil {
		slog.Error("flow: send location failed", "to", to, "error", err)
	}
}

func isYes(lower string) bool {
	switch lower {
	case "sí", "si", "yes", "s", "1":
		return true
	}
	return false
}

func isNo(lower string) bool {
	switch lower {
	case "no", "n", "2":
		return true
	}
	return false
}
