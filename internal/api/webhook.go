package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/uvbienestar/vivibot/internal/models"
)

// maxWebhookBody caps delivery payloads; Meta's envelopes are small.
const maxWebhookBody = 1 << 20

// Meta Cloud API webhook envelope, trimmed to the fields ViviBot reads.
type webhookEnvelope struct {
	Object string `json:"object"`
	Entry  []struct {
		Changes []struct {
			Field string       `json:"field"`
			Value webhookValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type webhookValue struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []struct {
		From      string `json:"from"`
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Type      string `json:"type"`
		Text      *struct {
			Body string `json:"body"`
		} `json:"text"`
		Interactive *struct {
			Type        string `json:"type"`
			ButtonReply *struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"button_reply"`
			ListReply *struct {
				ID    string `json:"id"`
				Title string `json:"title"`
			} `json:"list_reply"`
		} `json:"interactive"`
		Button *struct {
			Payload string `json:"payload"`
			Text    string `json:"text"`
		} `json:"button"`
	} `json:"messages"`
}

func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.verifyWebhook(w, r)
	case http.MethodPost:
		s.receiveWebhook(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// verifyWebhook answers Meta's subscription handshake: echo hub.challenge
// when the mode and token match, 403 otherwise.
func (s *Server) verifyWebhook(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" || subtle.ConstantTimeCompare([]byte(token), []byte(s.verifyToken)) != 1 {
		slog.Warn("api: webhook verification rejected", "mode", mode)
		w.WriteHeader(http.StatusForbidden)
		return
	}
	slog.Info("api: webhook verified")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(challenge)); err != nil {
		slog.Error("api: writing challenge failed", "error", err)
	}
}

// receiveWebhook acknowledges the delivery and processes its messages in the
// background. Unknown payload shapes are acknowledged too; a non-200 would
// only make Meta redeliver something we still cannot parse.
func (s *Server) receiveWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		slog.Warn("api: reading webhook body failed", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		slog.Warn("api: webhook payload not parseable, acknowledging", "error", err)
		w.WriteHeader(http.StatusOK)
		return
	}

	events := normalizeEnvelope(env)
	slog.Debug("api: webhook received", "object", env.Object, "events", len(events))

	w.WriteHeader(http.StatusOK)

	if len(events) == 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.dispatchTimeout)
		defer cancel()
		for _, evt := range events {
			s.dispatcher.Dispatch(ctx, evt)
		}
	}()
}

// normalizeEnvelope flattens a delivery into inbound events. Status updates
// and unsupported message types produce nothing.
func normalizeEnvelope(env webhookEnvelope) []models.InboundEvent {
	var events []models.InboundEvent
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if change.Field != "" && change.Field != "messages" {
				continue
			}
			names := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				names[c.WaID] = c.Profile.Name
			}
			for _, msg := range change.Value.Messages {
				evt := models.InboundEvent{
					UserID:      msg.From,
					MessageID:   msg.ID,
					ProfileName: names[msg.From],
				}
				switch {
				case msg.Type == "text" && msg.Text != nil:
					evt.Kind = models.EventKindText
					evt.Payload = msg.Text.Body
				case msg.Type == "interactive" && msg.Interactive != nil:
					evt.Kind = models.EventKindInteractive
					if br := msg.Interactive.ButtonReply; br != nil {
						evt.Payload = br.ID
					} else if lr := msg.Interactive.ListReply; lr != nil {
						evt.Payload = lr.ID
					}
				case msg.Type == "button" && msg.Button != nil:
					// Template quick replies arrive as plain button payloads.
					evt.Kind = models.EventKindInteractive
					evt.Payload = msg.Button.Payload
				default:
					slog.Debug("api: unsupported message type dropped", "type", msg.Type, "from", msg.From)
					continue
				}
				if evt.Payload == "" {
					continue
				}
				events = append(events, evt)
			}
		}
	}
	return events
}
