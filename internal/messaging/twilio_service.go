package messaging

import (
	"context"
	"log/slog"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/twiliowhatsapp"
)

// TwilioService implements Messenger using the Twilio API. Media attachments
// use Twilio media messages; every other rich surface falls back to text
// because the Twilio WhatsApp API has no native counterpart for it here.
type TwilioService struct {
	client twiliowhatsapp.Sender
}

var _ Messenger = (*TwilioService)(nil)

// NewTwilioService creates a TwilioService wrapping the given sender.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{client: client}
}

// SendText sends a plain text message.
func (s *TwilioService) SendText(ctx context.Context, to string, body string) error {
	canonical, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		slog.Error("TwilioService SendText validation error", "error", err, "to", to)
		return err
	}
	if err := s.client.SendMessage(ctx, "+"+canonical, body); err != nil {
		slog.Error("TwilioService SendText error", "error", err, "to", canonical)
		return err
	}
	return nil
}

// SendButtons sends a prompt with quick-reply options rendered as numbered text.
func (s *TwilioService) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	return s.SendText(ctx, to, renderButtons(body, buttons))
}

// SendList sends a sectioned list rendered as numbered text.
func (s *TwilioService) SendList(ctx context.Context, to string, body string, sections []ListSection) error {
	return s.SendText(ctx, to, renderList(body, sections))
}

// SendMedia sends a Twilio media message with the caption as body.
func (s *TwilioService) SendMedia(ctx context.Context, to string, media Media) error {
	canonical, err := ValidateAndCanonicalizeRecipient(to)
	if err != nil {
		return err
	}
	if err := s.client.SendMediaMessage(ctx, "+"+canonical, media.Caption, media.URL); err != nil {
		slog.Error("TwilioService SendMedia error", "error", err, "to", canonical)
		return err
	}
	return nil
}

// SendContactCard renders the contact as text.
func (s *TwilioService) SendContactCard(ctx context.Context, to string, card models.ContactCard) error {
	return s.SendText(ctx, to, renderContact(card))
}

// SendTemplate delivers a template notification as labeled text.
func (s *TwilioService) SendTemplate(ctx context.Context, to string, name string, params []string) error {
	return s.SendText(ctx, to, renderTemplate(name, params))
}

// SendLocation renders the location as text with a maps link.
func (s *TwilioService) SendLocation(ctx context.Context, to string, loc models.Location) error {
	return s.SendText(ctx, to, renderLocation(loc))
}
