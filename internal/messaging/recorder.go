package messaging

import (
	"context"
	"sync"

	"github.com/uvbienestar/vivibot/internal/models"
)

// Recorded is one captured outbound message.
type Recorded struct {
	To      string
	Body    string
	Kind    string // "text", "buttons", "list", "media", "contact", "location"
	Media   Media
	Contact models.ContactCard
	Loc     models.Location
}

// Recorder implements Messenger by capturing every send, for tests.
type Recorder struct {
	mu       sync.Mutex
	Messages []Recorded
	// FailNext makes the next send return this error, then clears it.
	FailNext error
}

var _ Messenger = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(msg Recorded) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailNext != nil {
		err := r.FailNext
		r.FailNext = nil
		return err
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

func (r *Recorder) SendText(ctx context.Context, to string, body string) error {
	return r.record(Recorded{To: to, Body: body, Kind: "text"})
}

func (r *Recorder) SendButtons(ctx context.Context, to string, body string, buttons []Button) error {
	return r.record(Recorded{To: to, Body: renderButtons(body, buttons), Kind: "buttons"})
}

func (r *Recorder) SendList(ctx context.Context, to string, body string, sections []ListSection) error {
	return r.record(Recorded{To: to, Body: renderList(body, sections), Kind: "list"})
}

func (r *Recorder) SendMedia(ctx context.Context, to string, media Media) error {
	return r.record(Recorded{To: to, Body: media.Caption, Kind: "media", Media: media})
}

func (r *Recorder) SendContactCard(ctx context.Context, to string, card models.ContactCard) error {
	return r.record(Recorded{To: to, Body: renderContact(card), Kind: "contact", Contact: card})
}

func (r *Recorder) SendLocation(ctx context.Context, to string, loc models.Location) error {
	return r.record(Recorded{To: to, Body: renderLocation(loc), Kind: "location", Loc: loc})
}

func (r *Recorder) SendTemplate(ctx context.Context, to string, name string, params []string) error {
	return r.record(Recorded{To: to, Body: renderTemplate(name, params), Kind: "template"})
}

// All returns a copy of everything recorded so far.
func (r *Recorder) All() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.Messages))
	copy(out, r.Messages)
	return out
}

// Bodies returns just the message bodies in send order.
func (r *Recorder) Bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, m.Body)
	}
	return out
}

// Reset clears everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Messages = nil
}
