package flow

import (
	"context"
	"strings"

	"github.com/uvbienestar/vivibot/internal/models"
)

// handleWorkshop runs the fixed informational sequence behind menu option 2.
// After the yes/no gate at the first step, any message advances the
// sequence.
func (d *Dispatcher) handleWorkshop(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	lower := strings.ToLower(strings.TrimSpace(evt.Payload))

	switch rec.Step {
	case models.StateWorkshopList:
		switch {
		case isYes(lower):
			rec.Step = models.StateWorkshopThanks
			d.send(ctx, to, msgWorkshopThanks+"\n"+msgWorkshopReview)
		case isNo(lower):
			d.send(ctx, to, msgWorkshopFarewell)
			rec.Terminate()
		default:
			d.send(ctx, to, msgWorkshopAskJoin)
		}

	case models.StateWorkshopThanks:
		rec.Step = models.StateWorkshopCertificate
		d.send(ctx, to, msgWorkshopCertificate)

	case models.StateWorkshopCertificate:
		d.send(ctx, to, msgWorkshopFarewell)
		rec.Terminate()
	}
}
