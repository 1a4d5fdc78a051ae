package flow

import "github.com/uvbienestar/vivibot/internal/models"

// Field keys for the per-flow collected values.
const (
	fieldType        = "type"
	fieldName        = "name"
	fieldStudentCode = "student_code"
	fieldCareer      = "career"
	fieldEmail       = "email"
	fieldDayLabel    = "day_label"
	fieldTimeLabel   = "time_label"
	fieldSlotStart   = "slot_start"
	fieldAction      = "action"
	fieldModifyField = "modify_field"
	fieldCategory    = "category"
)

// wellbeingResources is the fixed catalog behind menu option 4. An empty URL
// means the content has not been uploaded yet; the flow answers with a
// not-yet-available notice for those.
var wellbeingResources = []models.Resource{
	{
		ID:          "recurso_audio_relajacion",
		Title:       "Audio: Relajación guiada",
		Description: "Audio corto para reducir el estrés (3-5 min).",
		Type:        models.ResourceAudio,
		URL:         "",
	},
	{
		ID:          "recurso_video_estiramiento",
		Title:       "Video: Pausa activa y estiramientos",
		Description: "Rutina breve para realizar pausas en el estudio o trabajo.",
		Type:        models.ResourceVideo,
		URL:         "",
	},
	{
		ID:          "recurso_imagen_infografia",
		Title:       "Infografía: Técnicas de respiración",
		Description: "Imagen con pasos para respiración 4-7-8.",
		Type:        models.ResourceImage,
		URL:         "",
	},
	{
		ID:          "recurso_documento_guia",
		Title:       "Guía: Recursos y servicios",
		Description: "Documento PDF con información de contactos y servicios.",
		Type:        models.ResourceDocument,
		URL:         "https://vivi-bot-uni.s3.amazonaws.com/Recursos_Bienestar_Univalle.pdf",
	},
}

// resourcesByType filters the catalog for one category.
func resourcesByType(t models.ResourceType) []models.Resource {
	var out []models.Resource
	for _, r := range wellbeingResources {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// OfficeContact is the wellbeing office contact card shared on the emergency
// option.
var OfficeContact = models.ContactCard{
	FormattedName: "Atención Psicológica Univalle",
	Organization:  "Universidad del Valle - Bienestar Universitario",
	Phone:         "+573232898573",
	Email:         "bienestar@univalle.edu.co",
}

// OfficeLocation is the campus location shared on menu option 7.
var OfficeLocation = models.Location{
	Latitude:  4.3946,
	Longitude: -76.0715,
	Name:      "Universidad del Valle – Sede Zarzal",
	Address:   "Calle 14 Nº 7-134, Barrio Bolívar, Zarzal, Valle del Cauca",
}

// DefaultResponderPhone receives emergency escalation notices when no
// responder is configured.
const DefaultResponderPhone = "573232898573"

// emergencyTemplateName is the pre-approved notification template for the
// responder.
const emergencyTemplateName = "alerta_emergencia_psico"
