package flow

import (
	"sync"

	"github.com/uvbienestar/vivibot/internal/models"
	"github.com/uvbienestar/vivibot/internal/sheets"
)

// Record is the per-user conversation state. At most one flow is active at a
// time; opening a flow clears whatever the previous flow collected.
type Record struct {
	ActiveFlow models.FlowType
	Step       models.StateType
	Fields     map[string]string
	Terminated bool

	// Working sets for index-based selection steps. They are listing
	// snapshots, not reservations.
	Dates     []models.CandidateDate
	Slots     []models.CandidateSlot
	Resources []models.Resource
	Found     *sheets.Row
}

// StartFlow opens a flow at its initial step, dropping all previous flow
// state.
func (r *Record) StartFlow(flow models.FlowType, step models.StateType) {
	r.ActiveFlow = flow
	r.Step = step
	r.Fields = make(map[string]string)
	r.Dates = nil
	r.Slots = nil
	r.Resources = nil
	r.Found = nil
}

// EndFlow clears the active flow, returning the user to the main menu.
func (r *Record) EndFlow() {
	r.ActiveFlow = models.FlowTypeNone
	r.Step = ""
	r.Fields = nil
	r.Dates = nil
	r.Slots = nil
	r.Resources = nil
	r.Found = nil
}

// Terminate ends the flow and marks the conversation concluded. Every later
// event is dropped until a greeting resets the record.
func (r *Record) Terminate() {
	r.EndFlow()
	r.Terminated = true
}

// Reset returns the record to its zero state, clearing the terminated flag.
func (r *Record) Reset() {
	*r = Record{}
}

type userState struct {
	mu  sync.Mutex
	rec Record
}

// ConversationStore holds conversation records keyed by user. Events for the
// same user serialize on a per-user mutex; different users proceed in
// parallel.
type ConversationStore struct {
	mu    sync.RWMutex
	users map[string]*userState
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{users: make(map[string]*userState)}
}

func (s *ConversationStore) user(userID string) *userState {
	s.mu.RLock()
	u, ok := s.users[userID]
	s.mu.RUnlock()
	if ok {
		return u
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok = s.users[userID]; ok {
		return u
	}
	u = &userState{}
	s.users[userID] = u
	return u
}

// With runs fn with exclusive access to the user's record, creating it on
// first use.
func (s *ConversationStore) With(userID string, fn func(rec *Record)) {
	u := s.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(&u.rec)
}

// Snapshot returns a copy of the user's record for inspection.
func (s *ConversationStore) Snapshot(userID string) Record {
	u := s.user(userID)
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.rec
}
