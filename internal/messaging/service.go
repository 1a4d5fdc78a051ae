// Package messaging defines the outbound message delivery abstraction and its
// WhatsApp and Twilio implementations.
//
// Interactive surfaces (buttons, lists) are rendered as numbered text where the
// underlying channel cannot express them natively, so every flow works on both
// transports.
package messaging

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/uvbienestar/vivibot/internal/models"
)

// phoneNumberRegex strips everything that is not a digit from a recipient.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// Button is one quick-reply option attached to a prompt.
type Button struct {
	ID    string
	Title string
}

// ListRow is one selectable row of a list message.
type ListRow struct {
	ID          string
	Title       string
	Description string
}

// ListSection groups list rows under a heading.
type ListSection struct {
	Title string
	Rows  []ListRow
}

// Media is an attachment to deliver alongside a caption.
type Media struct {
	URL     string
	Caption string
	Kind    models.ResourceType
}

// Messenger is the pluggable delivery abstraction used by the conversation
// engine. Implementations must be safe for concurrent use.
type Messenger interface {
	SendText(ctx context.Context, to string, body string) error
	SendButtons(ctx context.Context, to string, body string, buttons []Button) error
	SendList(ctx context.Context, to string, body string, sections []ListSection) error
	SendMedia(ctx context.Context, to string, media Media) error
	SendContactCard(ctx context.Context, to string, card models.ContactCard) error
	SendLocation(ctx context.Context, to string, loc models.Location) error
	SendTemplate(ctx context.Context, to string, name string, params []string) error
}

// ValidateAndCanonicalizeRecipient strips formatting characters from a phone
// number and validates the remaining digits.
func ValidateAndCanonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}
	return canonical, nil
}

// renderButtons renders a prompt plus quick-reply options as numbered text.
func renderButtons(body string, buttons []Button) string {
	var b strings.Builder
	b.WriteString(body)
	for i, btn := range buttons {
		fmt.Fprintf(&b, "\n%d. %s", i+1, btn.Title)
	}
	return b.String()
}

// renderList renders a sectioned list message as numbered text. Numbering is
// continuous across sections so replies map directly to row positions.
func renderList(body string, sections []ListSection) string {
	var b strings.Builder
	b.WriteString(body)
	n := 0
	for _, sec := range sections {
		if sec.Title != "" {
			b.WriteString("\n\n*" + sec.Title + "*")
		}
		for _, row := range sec.Rows {
			n++
			fmt.Fprintf(&b, "\n%d. %s", n, row.Title)
			if row.Description != "" {
				b.WriteString(" - " + row.Description)
			}
		}
	}
	return b.String()
}

// renderTemplate renders a named template as text. Pre-approved business
// templates only exist on the Cloud API, so both transports here deliver the
// parameters as a labeled plain message.
func renderTemplate(name string, params []string) string {
	var b strings.Builder
	b.WriteString("[" + name + "]")
	for _, p := range params {
		b.WriteString("\n" + p)
	}
	return b.String()
}

// renderContact renders a contact card as plain text for channels without
// native contact messages.
func renderContact(card models.ContactCard) string {
	var b strings.Builder
	b.WriteString("📇 " + card.FormattedName)
	if card.Organization != "" {
		b.WriteString("\n" + card.Organization)
	}
	if card.Phone != "" {
		b.WriteString("\n📞 " + card.Phone)
	}
	if card.Email != "" {
		b.WriteString("\n✉️ " + card.Email)
	}
	return b.String()
}

// renderLocation renders a location as plain text with a maps link.
func renderLocation(loc models.Location) string {
	var b strings.Builder
	b.WriteString("📍 " + loc.Name)
	if loc.Address != "" {
		b.WriteString("\n" + loc.Address)
	}
	fmt.Fprintf(&b, "\nhttps://maps.google.com/?q=%f,%f", loc.Latitude, loc.Longitude)
	return b.String()
}
