package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/whatsapp"
)

// WhatsAppService implements Messenger using the Whatsmeow-based whatsapp
// client. Contact cards and locations use native message types; buttons and
// lists fall back to numbered text.
type WhatsAppService struct {
	client whatsapp.Sender
}

var _ Messenger = (*WhatsAppService)(nil)

// NewWhatsAppService creates a WhatsAppService wrapping the given sender.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	return &WhatsAppService{client: client}
}

// SendText sends a plain text message.
func (s *WhatsAppService) SendText(ctx context.Context, to string, body string) error {
	canonical, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("WhatsAppService SendText validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, canonical, body); err != nil {
		slog.Error("WhatsAppService SendText error", "error", err, "to", canonical)
		return err
	}
	slog.Debug("WhatsAppService message sent", "to", canonical, "body_length", len(body))
	return nil
}

// SendButtons sends a prompt with quick-reply options rendered as numbered text.
func (s *WhatsAppService) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	return s.SendText(ctx, to, renderButtons(body, buttons))
}

// SendList sends a sectioned list rendered as numbered text.
func (s *WhatsAppService) SendList(ctx context.Context, to string, body string, sections []ListSection) error {
	return s.SendText(ctx, to, renderList(body, sections))
}

// SendMedia delivers the caption with the content link. Uploading raw media
// through whatsmeow needs the bytes, and the resource catalog only carries
// URLs, so the link is sent inline.
func (s *WhatsAppService) SendMedia(ctx context.Context, to string, media Media) error {
	if media.URL == "" {
		return fmt.Errorf("media URL cannot be empty")
	}
	body := media.Caption
	if body != "" {
		body += "\n"
	}
	body += media.URL
	return s.SendText(ctx, to, body)
}

// SendContactCard sends a native WhatsApp contact message.
func (s *WhatsAppService) SendContactCard(ctx context.Context, to string, card models.ContactCard) error {
	canonical, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendContactMessage(ctx, canonical, card); err != nil {
		slog.Error("WhatsAppService SendContactCard error", "error", err, "to", canonical)
		return err
	}
	return nil
}

// SendTemplate delivers a template notification as labeled text.
func (s *WhatsAppService) SendTemplate(ctx context.Context, to string, name string, params []string) error {
	return s.SendText(ctx, to, renderTemplate(name, params))
}

// SendLocation sends a native WhatsApp location pin.
func (s *WhatsAppService) SendLocation(ctx context.Context, to string, loc models.Location) error {
	canonical, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendLocationMessage(ctx, canonical, loc); err != nil {
		slog.Error("WhatsAppService SendLocation error", "error", err, "to", canonical)
		return err
	}
	return nil
}
