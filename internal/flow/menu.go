package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/uvbienestar/vivibot/internal/models"
)

// Free-text synonyms per menu option. Matched by substring after the exact
// numeric options, in menu order.
var (
	kwAppointment = []string{"agendar", "cita", "agendar una cita", "agendar cita", "reservar cita", "solicitar cita"}
	kwWorkshops   = []string{"talleres", "ver talleres", "talleres disponibles", "taller", "taller disponible"}
	kwInfo        = []string{"informacion", "información", "info", "información de servicios", "servicios"}
	kwAssist      = []string{"ia sobre emociones", "inteligencia artificial", "emociones", "hablar sobre emociones", "hablar de emociones", "ia", "chat", "conversar", "hablar con la ia"}
	kwResources   = []string{"recursos", "bienestar", "recursos de bienestar", "recurso", "materiales", "material"}
	kwCancel      = []string{"cancelar", "modificar", "cancelar cita", "modificar cita", "cancelar una cita", "modificar una cita", "anular", "cambiar cita", "editar cita"}
	kwEmergency   = []string{"emergencia", "emergencias", "contacto de emergencia", "urgencia", "urgencias", "ayuda urgente", "ayuda inmediata", "ayuda ahora"}
	kwLocation    = []string{"ubicacion", "ubicación", "direccion", "dirección", "localizacion", "localización", "donde", "dónde", "donde estan", "dónde están", "mapa", "coordenadas"}
	kwFarewell    = []string{"ya no necesito", "no necesito nada", "no necesito hacer consulta", "finalizar", "terminar", "cerrar", "salir", "adiós", "adios", "hasta luego", "chao"}
)

func matchesKeywords(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// handleMenu interprets input when no flow is active: numeric options 1-8,
// interactive option IDs, and free-text synonyms, in that order per option.
func (d *Dispatcher) handleMenu(ctx context.Context, evt models.InboundEvent, rec *Record) {
	to := evt.UserID
	input := strings.ToLower(strings.TrimSpace(evt.Payload))

	switch {
	case input == "1" || input == "menu_1_agendar" || matchesKeywords(input, kwAppointment):
		slog.Info("flow: opening appointment", "user", to)
		rec.StartFlow(models.FlowTypeAppointment, models.StateAppointmentType)
		d.send(ctx, to, msgAskType)

	case input == "2" || input == "menu_2_talleres" || matchesKeywords(input, kwWorkshops):
		slog.Info("flow: opening workshops", "user", to)
		rec.StartFlow(models.FlowTypeWorkshop, models.StateWorkshopList)
		d.send(ctx, to, msgWorkshopList)
		d.send(ctx, to, msgWorkshopAskJoin)

	case input == "menu_2_info" || matchesKeywords(input, kwInfo):
		d.send(ctx, to, msgInfoServices)

	case input == "3" || input == "menu_3_profesional" || matchesKeywords(input, kwAssist):
		slog.Info("flow: opening AI assist", "user", to)
		rec.StartFlow(models.FlowTypeAIAssist, models.StateAssistQuestion)
		d.send(ctx, to, msgAssistIntro)

	case input == "4" || input == "menu_4_recursos" || matchesKeywords(input, kwResources):
		slog.Info("flow: opening resource browse", "user", to)
		rec.StartFlow(models.FlowTypeResources, models.StateResourceCategory)
		d.send(ctx, to, msgResourceMenu)

	case input == "5" || matchesKeywords(input, kwCancel):
		slog.Info("flow: opening cancel/modify", "user", to)
		rec.StartFlow(models.FlowTypeCancelModify, models.StateCancelModifyAction)
		d.send(ctx, to, msgCancelModifyAskAction)

	case input == "6" || matchesKeywords(input, kwEmergency):
		slog.Info("flow: emergency contact requested", "user", to)
		d.send(ctx, to, msgEmergencySelected+"\n"+msgCrisisResources)
		d.sendContact(ctx, to)
		rec.StartFlow(models.FlowTypeEmergency, models.StateEmergencyWaiting)

	case input == "7" || matchesKeywords(input, kwLocation):
		d.send(ctx, to, msgLocationIntro)
		d.sendLocation(ctx, to)
		rec.Terminate()

	case input == "8" || matchesKeywords(input, kwFarewell):
		rec.Terminate()
		d.send(ctx, to, msgGoodbye)

	default:
		d.send(ctx, to, msgNotUnderstood+"\n\n"+msgMainMenu)
	}
}
