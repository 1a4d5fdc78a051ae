package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/uvbienestar/vivibot/internal/models"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []models.InboundEvent
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, evt models.InboundEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func (d *recordingDispatcher) all() []models.InboundEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.InboundEvent, len(d.events))
	copy(out, d.events)
	return out
}

// waitForEvents polls for the background dispatch to finish.
func (d *recordingDispatcher) waitForEvents(t *testing.T, n int) []models.InboundEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := d.all(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d dispatched events, have %d", n, len(d.all()))
	return nil
}

func newTestServer(t *testing.T) (*Server, *recordingDispatcher) {
	t.Helper()
	disp := &recordingDispatcher{}
	srv, err := NewServer(disp, WithVerifyToken("secreto"))
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return srv, disp
}

func TestNewServerRequiresToken(t *testing.T) {
	t.Setenv("WEBHOOK_VERIFY_TOKEN", "")
	if _, err := NewServer(&recordingDispatcher{}, WithVerifyToken("")); err == nil {
		t.Error("expected error without a verify token")
	}
}

func TestWebhookVerification(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=secreto&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got := w.Body.String(); got != "12345" {
		t.Errorf("expected the challenge echoed, got %q", got)
	}
}

func TestWebhookVerificationRejectsBadToken(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a wrong token, got %d", w.Code)
	}
}

const textDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "field": "messages",
      "value": {
        "contacts": [{"wa_id": "573001112233", "profile": {"name": "Juan"}}],
        "messages": [{
          "from": "573001112233",
          "id": "wamid.abc123",
          "timestamp": "1756600000",
          "type": "text",
          "text": {"body": "hola"}
        }]
      }
    }]
  }]
}`

func TestWebhookDeliveryDispatchesText(t *testing.T) {
	srv, disp := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(textDelivery))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delivery must be acked with 200, got %d", w.Code)
	}

	events := disp.waitForEvents(t, 1)
	evt := events[0]
	if evt.UserID != "573001112233" || evt.MessageID != "wamid.abc123" {
		t.Errorf("wrong identity on event: %+v", evt)
	}
	if evt.Kind != models.EventKindText || evt.Payload != "hola" {
		t.Errorf("wrong payload on event: %+v", evt)
	}
	if evt.ProfileName != "Juan" {
		t.Errorf("expected profile name from contacts, got %q", evt.ProfileName)
	}
}

const interactiveDelivery = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "changes": [{
      "field": "messages",
      "value": {
        "messages": [{
          "from": "573001112233",
          "id": "wamid.btn1",
          "type": "interactive",
          "interactive": {
            "type": "button_reply",
            "button_reply": {"id": "menu_1_agendar", "title": "Agendar cita"}
          }
        }]
      }
    }]
  }]
}`

func TestWebhookDeliveryDispatchesInteractive(t *testing.T) {
	srv, disp := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(interactiveDelivery))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("delivery must be acked with 200, got %d", w.Code)
	}

	events := disp.waitForEvents(t, 1)
	evt := events[0]
	if evt.Kind != models.EventKindInteractive || evt.Payload != "menu_1_agendar" {
		t.Errorf("expected the button reply ID as payload, got %+v", evt)
	}
}

func TestWebhookAcksStatusOnlyDelivery(t *testing.T) {
	srv, disp := newTestServer(t)
	handler := srv.Handler()

	statusDelivery := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [{"field": "messages", "value": {"statuses": [{"id": "wamid.x", "status": "delivered"}]}}]}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(statusDelivery))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status delivery must be acked with 200, got %d", w.Code)
	}

	time.Sleep(20 * time.Millisecond)
	if got := len(disp.all()); got != 0 {
		t.Errorf("status delivery must not dispatch events, got %d", got)
	}
}

func TestWebhookAcksMalformedBody(t *testing.T) {
	srv, disp := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("not-json"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("malformed delivery must still be acked, got %d", w.Code)
	}
	if got := len(disp.all()); got != 0 {
		t.Errorf("malformed delivery must not dispatch events, got %d", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"healthy"`) {
		t.Errorf("expected healthy status, got %q", w.Body.String())
	}
}

func TestNormalizeEnvelopeEmpty(t *testing.T) {
	if got := normalizeEnvelope(webhookEnvelope{}); len(got) != 0 {
		t.Errorf("empty envelope should yield no events, got %d", len(got))
	}
}
