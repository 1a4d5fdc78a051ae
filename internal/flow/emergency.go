package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uvbienestar/vivibot/internal/models"
)

// handleEmergency waits for the user's decision on professional contact.
// The responder notification is best effort; the user is acknowledged even
// when it fails.
func (d *Dispatcher) handleEmergency(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	lower := strings.ToLower(strings.TrimSpace(evt.Payload))

	switch {
	case isYes(lower):
		name := evt.ProfileName
		if name == "" {
			name = to
		}
		when := d.now().In(d.loc).Format("02/01/2006 15:04")
		params := []string{
			"Estudiante: " + name,
			"Fecha y hora: " + when,
			"WhatsApp: " + strings.TrimPrefix(to, "57"),
		}
		if err := d.messenger.SendTemplate(ctx, d.responderPhone, emergencyTemplateName, params); err != nil {
			slog.Error("flow: responder notification failed, acknowledging anyway",
				"user", to, "responder", d.responderPhone, "error", err)
		} else {
			slog.Info("flow: responder notified", "user", to, "responder", d.responderPhone)
		}
		d.send(ctx, to, msgEmergencyRequested)
		rec.Terminate()

	case isNo(lower):
		d.send(ctx, to, msgEmergencyEncouragement)
		rec.Terminate()

	default:
		d.send(ctx, to, msgEmergencyReprompt)
	}
}
