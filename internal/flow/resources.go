package flow

import (
	"context"
	"strconv"
	"strings"

	"github.com/uvbienestar/vivibot/internal/messaging"
	"github.com/uvbienestar/vivibot/internal/models"
)

var resourceCategories = map[string]models.ResourceType{
	"1": models.ResourceAudio,
	"2": models.ResourceVideo,
	"3": models.ResourceImage,
	"4": models.ResourceDocument,
}

// handleResources walks the two-step catalog browse: pick a category, pick a
// resource by index. Sending the resource always ends the conversation.
func (d *Dispatcher) handleResources(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	lower := strings.ToLower(strings.TrimSpace(evt.Payload))

	switch rec.Step {
	case models.StateResourceCategory:
		category, ok := resourceCategories[lower]
		if !ok {
			d.send(ctx, to, msgInvalidResourceCategory)
			return
		}
		matches := resourcesByType(category)
		if len(matches) == 0 {
			d.send(ctx, to, msgEmptyResourceCategory(string(category)))
			return
		}
		rec.Resources = matches
		rec.Fields[fieldCategory] = string(category)
		rec.Step = models.StateResourceSelect
		d.send(ctx, to, msgResourceSelection(string(category), matches))

	case models.StateResourceSelect:
		idx, err := strconv.Atoi(lower)
		if err != nil || idx < 1 || idx > len(rec.Resources) {
			d.send(ctx, to, msgInvalidResource(len(rec.Resources)))
			return
		}
		resource := rec.Resources[idx-1]
		if resource.URL == "" {
			d.send(ctx, to, msgResourceUnavailable(resource.Title))
			rec.Terminate()
			return
		}
		d.sendMedia(ctx, to, messaging.Media{
			URL:     resource.URL,
			Caption: resource.Title,
			Kind:    resource.Type,
		})
		d.send(ctx, to, msgResourceFollowUp(resource))
		rec.Terminate()
	}
}
