package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/models"
)

var assistContinueButtons = []messaging.Button{
	{ID: "ai_continue_si", Title: "Sí"},
	{ID: "ai_continue_no", Title: "No"},
}

// handleAssist alternates between taking a free-text question and asking
// whether to continue. Completion failures never surface as errors; the user
// gets an apology text and stays in the loop.
func (d *Dispatcher) handleAssist(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	input := strings.TrimSpace(evt.Payload)
	lower := strings.ToLower(input)

	switch rec.Step {
	case models.StateAssistQuestion:
		d.send(ctx, to, msgAssistThinking)

		answer := msgAssistError
		if d.ai != nil {
			resp, err := d.ai.Complete(ctx, input)
			switch {
			case err != nil:
				slog.Error("flow: completion failed", "user", to, "error", err)
			case strings.TrimSpace(resp) == "":
				answer = msgAssistEmpty
			default:
				answer = resp
			}
		}
		d.send(ctx, to, answer)
		d.sendButtons(ctx, to, msgAssistFollowup, assistContinueButtons)
		rec.Step = models.StateAssistContinue

	case models.StateAssistContinue:
		switch {
		case lower == "sí" || lower == "si" || lower == "yes" || lower == "s" || lower == "ai_continue_si":
			rec.Step = models.StateAssistQuestion
			d.send(ctx, to, msgAssistContinue)
		case lower == "no" || lower == "n" || lower == "ai_continue_no":
			d.send(ctx, to, msgAssistFarewell)
			rec.Terminate()
		default:
			d.send(ctx, to, msgAssistReprompt)
			d.sendButtons(ctx, to, msgAssistFollowup, assistContinueButtons)
		}
	}
}
