package flow

import (
	"fmt"
	"strings"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sched"
)

// User-facing texts. Spanish throughout: the assistant serves Universidad
// del Valle students and the wellbeing team reviews these verbatim.

func msgWelcome(name string) string {
	return fmt.Sprintf("👋 ¡Hola %s! Soy Vivi, asistente virtual del área de psicología de la Universidad del Valle.\nEstoy aquí para ayudarte a cuidar tu bienestar emocional 💙", name)
}

const msgMainMenu = "Por favor, elige una opción:\n" +
	"1️⃣ Agendar una cita\n" +
	"2️⃣ Ver talleres disponibles\n" +
	"3️⃣ Hablar con la IA sobre tus emociones\n" +
	"4️⃣ Recursos de bienestar\n" +
	"5️⃣ Cancelar o modificar una cita\n" +
	"6️⃣ Contacto de emergencia\n" +
	"7️⃣ Ubicación en tiempo real\n" +
	"8️⃣ Finalizar conversación"

const msgOptOutConfirmed = "Has sido dado de baja. No recibirás más mensajes. Escribe HOLA para reactivar."

const msgCrisisDetected = "Percibo que podrías estar pasando por una situación de alto riesgo. Tu bienestar es lo más importante."

const msgCrisisResources = "Si estás en peligro o piensas hacerte daño, por favor busca ayuda inmediata:\n" +
	"- Línea Nacional 24/7: 106 (Colombia)\n" +
	"- Línea 123 (emergencias)\n" +
	"- Acude a urgencias más cercana.\n" +
	"¿Deseas que un profesional te contacte? Responde SI para que gestionemos un apoyo prioritario."

const msgEmergencySelected = "Entiendo. Te comparto información prioritaria de apoyo inmediato."

const msgEmergencyRequested = "✅ Entendido. He notificado al equipo profesional. Alguien se pondrá en contacto contigo a la brevedad.\n\nTu bienestar es importante. No estás solo/a. 💙"

const msgEmergencyEncouragement = "Entiendo tu situación. Es valiente que hayas buscado ayuda.\n\n" +
	"💙 Recuerda que:\n" +
	"- No estás solo/a, hay personas que se preocupan por ti\n" +
	"- Los sentimientos difíciles son temporales, aunque ahora no lo parezca\n" +
	"- Eres más fuerte de lo que crees\n" +
	"- Pedir ayuda es una muestra de valentía, no de debilidad\n\n" +
	"Si sientes que necesitas hablar con alguien en este momento, puedes contactar:\n" +
	"- Línea 106 (24/7)\n" +
	"- Línea 123 (emergencias)\n\n" +
	"Estoy aquí para apoyarte. Si necesitas algo más, escribe \"hola\". 💙"

const msgEmergencyReprompt = "Por favor, responde SI si deseas que un profesional te contacte, o NO si prefieres continuar por tu cuenta."

const msgNotUnderstood = "No entendí tu selección. Por favor elige una opción del menú."

const msgInfoServices = "Atención psicológica en Univalle: orientación inicial, acompañamiento breve, y remisiones cuando se requiere. Horario de atención: Lunes a Viernes 8:00 a 17:00. Para casos urgentes utiliza la opción 6."

const msgGoodbye = "¡Gracias por usar el asistente Vivi! Si necesitas ayuda en otro momento, aquí estaré. Escribe \"hola\" cuando quieras comenzar de nuevo. ¡Cuídate mucho! 💙"

const msgApology = "Lo siento, algo salió mal procesando tu mensaje. Por favor, intenta de nuevo o escribe \"hola\" para volver al menú principal."

const msgLocationIntro = "Te comparto nuestra ubicación:"

// Appointment flow.

const msgAskType = "¿Qué tipo de cita deseas agendar?\n1. Presencial\n2. Virtual"

const msgInvalidType = "Por favor, responde con \"1\" para Presencial o \"2\" para Virtual."

const msgAskName = "Ahora, escribe tu nombre completo:"

const msgInvalidName = "Por favor, ingresa solo letras para tu nombre."

const msgAskStudentCode = "Gracias. Indica tu código estudiantil:"

const msgInvalidStudentCode = "Por favor, ingresa solo números para tu código estudiantil."

const msgAskCareer = "¿Cuál es tu programa o carrera?"

const msgInvalidCareer = "Por favor, ingresa tu programa o carrera."

const msgAskEmail = "Por favor, ingresa tu correo institucional (@correounivalle.edu.co):"

const msgInvalidEmail = "Por favor, ingresa tu correo institucional válido (termina en @correounivalle.edu.co). Ejemplo: nombre.apellido@correounivalle.edu.co"

const msgNoDates = "Lo siento, no hay fechas disponibles en este momento. Por favor, intenta más tarde escribiendo \"hola\"."

const msgSchedulerError = "Hubo un problema consultando la disponibilidad. Por favor, intenta de nuevo más tarde o escribe \"hola\" para volver al menú."

func msgAskDay(dates []models.CandidateDate) string {
	var b strings.Builder
	b.WriteString("Perfecto. Estas son las fechas disponibles:\n")
	for i, d := range dates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, d.Label)
	}
	fmt.Fprintf(&b, "\n\nResponde con el número de la fecha que prefieres (1 al %d).", len(dates))
	return b.String()
}

func msgInvalidDay(max int) string {
	return fmt.Sprintf("Por favor responde con un número del 1 al %d para seleccionar la fecha.", max)
}

// msgAskTime numbers only the selectable slots; occupied ones are shown with
// a marker so the grid still reads as a full day.
func msgAskTime(dateLabel string, slots []models.CandidateSlot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Horarios para %s:", dateLabel)
	n := 0
	wroteMorning, wroteAfternoon := false, false
	for _, s := range slots {
		if s.Morning && !wroteMorning {
			b.WriteString("\n\n*Mañana*")
			wroteMorning = true
		}
		if !s.Morning && !wroteAfternoon {
			b.WriteString("\n\n*Tarde*")
			wroteAfternoon = true
		}
		if s.Available {
			n++
			fmt.Fprintf(&b, "\n%d. %s", n, s.Label)
		} else {
			fmt.Fprintf(&b, "\n❌ %s (ocupado)", s.Label)
		}
	}
	b.WriteString("\n\nResponde con el número del horario que deseas.")
	return b.String()
}

const msgInvalidTime = "Horario no válido. Por favor elige un número de la lista de horarios disponibles."

const msgNoSlots = "Lo siento, ese día ya no tiene horarios disponibles. Por favor elige otra fecha."

func msgConfirmAppointment(f map[string]string) string {
	return fmt.Sprintf("Por favor confirma tu cita:\n\n"+
		"Tipo: %s\nNombre: %s\nCódigo: %s\nCarrera: %s\nCorreo: %s\nDía: %s\nHora: %s\n\n"+
		"1️⃣ Confirmar\n2️⃣ Cancelar",
		f[fieldType], f[fieldName], orNA(f[fieldStudentCode]), orNA(f[fieldCareer]),
		f[fieldEmail], f[fieldDayLabel], f[fieldTimeLabel])
}

const msgInvalidConfirm = "Por favor responde con:\n1️⃣ para confirmar\n2️⃣ para cancelar"

func msgAppointmentSummary(f map[string]string) string {
	return fmt.Sprintf("✅ Tu cita ha sido solicitada. Resumen:\n"+
		"Tipo: %s\nNombre: %s\nCódigo: %s\nCarrera: %s\nCorreo: %s\nDía: %s\nHora: %s\n"+
		"Te enviaremos confirmación y recordatorio un día antes.\n\n"+
		"¡Hemos finalizado el chat! ¡Gracias por usar el asistente Vivi! Si necesitas ayuda en otro momento, aquí estaré. ¡Cuídate mucho! 💙",
		f[fieldType], f[fieldName], orNA(f[fieldStudentCode]), orNA(f[fieldCareer]),
		f[fieldEmail], f[fieldDayLabel], f[fieldTimeLabel])
}

const msgAppointmentAborted = "Entendido. Tu cita no ha sido agendada.\n\nSi deseas agendar una nueva cita, escribe \"hola\" y selecciona la opción 1."

const msgSlotTaken = "⚠️ Ese horario acaba de ser tomado por otra persona. Te muestro los horarios que siguen disponibles:"

// Workshop flow.

const msgWorkshopList = "Estos son los talleres emocionales disponibles esta semana:\n\n" +
	"🧘‍♂️ Taller de manejo del estrés – martes 10:00 a.m. Campus Las Balsas, salón 223\n" +
	"💬 Taller de comunicación asertiva – jueves 3:00 p.m. Campus Bolivar, salón 101.\n\n" +
	"¡Te esperamos! 💙"

const msgWorkshopAskJoin = "¿Te gustaría participar en alguno de estos talleres? Responde SI o NO."

const msgWorkshopThanks = "¡Excelente! Estamos emocionados de tenerte con nosotros."

const msgWorkshopReview = "Te recordaremos un día antes del taller. Si deseas cancelar tu participación, escribe \"hola\" y selecciona la opción 5."

const msgWorkshopCertificate = "Al finalizar el taller, recibirás un certificado de participación. ¿Tienes alguna pregunta?"

const msgWorkshopFarewell = "¡Gracias por tu interés en los talleres! Si tienes otra consulta, solo escribe \"hola\" para comenzar de nuevo. ¡Cuídate mucho! 💙"

// AI assist flow.

const msgAssistIntro = "Cuéntame brevemente qué te preocupa. Puedo darte una orientación inicial."

const msgAssistThinking = "💭 Pensando en cómo ayudarte..."

const msgAssistFollowup = "¿Esta orientación fue de ayuda?"

const msgAssistContinue = "Perfecto. Cuéntame, ¿en qué más puedo ayudarte?"

const msgAssistReprompt = "Por favor, responde con \"Sí\" o \"No\"."

const msgAssistError = "Lo siento, hubo un error al consultar la IA. Por favor, intenta de nuevo más tarde."

const msgAssistEmpty = "Lo siento, no pude generar una respuesta en este momento. Por favor, intenta reformular tu pregunta."

const msgAssistFarewell = "Gracias por conversar conmigo. Recuerda que cuidar tus emociones es importante. Si necesitas algo más, escribe \"hola\". ¡Cuídate mucho! 💙"

// Resource browse flow.

const msgResourceMenu = "Por favor, elige la categoría de recursos que deseas explorar:\n\n" +
	"1️⃣ Audio (Relajación, Meditación)\n" +
	"2️⃣ Video (Pausas activas, Ejercicios)\n" +
	"3️⃣ Imagen (Infografías, Técnicas)\n" +
	"4️⃣ Documento (Guías, Información)\n\n" +
	"Responde con el número de la opción."

const msgInvalidResourceCategory = "Opción no válida. Por favor, elige 1, 2, 3 o 4 para seleccionar la categoría de recursos."

func msgEmptyResourceCategory(category string) string {
	return fmt.Sprintf("Lo siento, no hay recursos de tipo *%s* disponibles en este momento. Por favor, elige otra opción del menú de categorías.", category)
}

func msgResourceSelection(category string, resources []models.Resource) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Has seleccionado la categoría: *%s*.\n\nPor favor, elige el recurso que deseas ver, respondiendo con el número:\n", category)
	for i, r := range resources {
		fmt.Fprintf(&b, "\n%d - %s", i+1, r.Title)
	}
	b.WriteString("\n\nResponde con el número del recurso que deseas.")
	return b.String()
}

func msgInvalidResource(max int) string {
	return fmt.Sprintf("Opción no válida. Por favor, elige el número (1 al %d) del recurso que quieres ver.", max)
}

func msgResourceUnavailable(title string) string {
	return fmt.Sprintf("⚠️ El recurso \"%s\" aún no está disponible.\n\nEstamos trabajando en hacerlo disponible pronto. Si necesitas ayuda inmediata, puedes usar la opción 6 del menú (Contacto de emergencia).", title)
}

func msgResourceFollowUp(r models.Resource) string {
	var tip string
	switch r.Type {
	case models.ResourceAudio:
		tip = "🎧 Puedes escuchar este audio cuando lo necesites para relajarte y reducir el estrés."
	case models.ResourceVideo:
		tip = "🎬 Sigue los ejercicios en el video cuando sientas que necesitas una pausa activa."
	case models.ResourceImage:
		tip = "📸 Revisa esta infografía cuando quieras practicar técnicas de bienestar."
	case models.ResourceDocument:
		tip = "📄 En este documento encontrarás información útil sobre recursos y servicios disponibles."
	default:
		tip = "Espero que este recurso te sea de ayuda para tu bienestar."
	}
	return fmt.Sprintf("✅ Te he enviado: *%s*\n\n%s\n\nSi necesitas más ayuda, escribe \"hola\" para volver al menú principal.", r.Title, tip)
}

// Cancel/modify flow.

const msgCancelModifyAskAction = "¿Qué deseas hacer?\n1️⃣ Cancelar mi cita\n2️⃣ Modificar mi cita"

const msgInvalidCancelModifyAction = "Por favor, responde con \"1\" para Cancelar o \"2\" para Modificar."

const msgSearching = "Buscando tu cita..."

const msgAppointmentNotFound = "No encontré ninguna cita asociada a tu número de WhatsApp.\n\nSi necesitas ayuda, puedes escribir \"hola\" para volver al menú principal."

func msgFoundAppointment(r recordRowView) string {
	return fmt.Sprintf("Encontré tu cita:\n\nTipo: %s\nNombre: %s\nFecha/Hora: %s %s\nEmail: %s\n\n¿Esta es tu cita? Responde SI para continuar o NO para cancelar la búsqueda.",
		r.Type, r.Name, r.DayLabel, r.TimeLabel, r.Email)
}

func msgMultipleFound(n int) string {
	return fmt.Sprintf("📌 Encontré %d citas. Te muestro la más reciente:\n\n", n)
}

const msgCancelConfirmed = "✅ Tu cita ha sido cancelada exitosamente. Te enviaremos una confirmación por correo.\n\n¡Gracias por avisarnos! Si necesitas algo más, escribe \"hola\" para comenzar de nuevo."

const msgCancelError = "Hubo un error al cancelar tu cita. Por favor intenta más tarde."

const msgNoChanges = "No se realizaron cambios. Si necesitas ayuda, escribe \"hola\" para volver al menú."

const msgConfirmReprompt = "Por favor, responde SI para continuar o NO para cancelar."

const msgAskModifyField = "¿Qué deseas modificar?\n1️⃣ Tipo de cita (presencial/virtual)\n2️⃣ Fecha y hora\n3️⃣ Teléfono"

const msgInvalidModifyField = "Por favor, elige 1, 2 o 3."

const msgAskNewType = "¿Qué tipo de cita prefieres?\n1. Presencial\n2. Virtual"

const msgAskNewPhone = "Ingresa tu nuevo número de teléfono (10 dígitos):"

const msgInvalidPhone = "Por favor, ingresa un número de teléfono válido de 10 dígitos."

const msgModifySuccess = "✅ Tu cita ha sido modificada exitosamente. Te enviaremos una confirmación con los nuevos datos por correo.\n\n¡Gracias! Si necesitas algo más, escribe \"hola\" para comenzar de nuevo."

const msgModifyError = "Hubo un error al modificar tu cita. Por favor intenta más tarde."

const msgSearchError = "⚠️ Hubo un error al buscar tu cita. Por favor intenta más tarde o escribe \"hola\" para volver al menú."

// recordRowView carries the display fields of a found appointment row.
type recordRowView struct {
	Type      string
	Name      string
	DayLabel  string
	TimeLabel string
	Email     string
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

// ReminderMessage is the day-before notice sent by the reminder sweep.
func ReminderMessage(appt models.Appointment) string {
	return fmt.Sprintf("🔔 Hola %s, te recordamos tu cita de psicología (%s) mañana %s. ¡Te esperamos! 💙\n\nSi necesitas cancelar o modificar, escribe \"hola\" y elige la opción 5.",
		appt.Name, appt.Type, sched.FormatSlot(appt.SlotStart))
}
