package rtcvoice

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleUser marks turns spoken or typed by the local user.
	RoleUser Role = "user"
	// RoleAssistant marks turns produced by the remote assistant.
	RoleAssistant Role = "assistant"
)

// TurnStatus tracks the progress of a turn through transcription.
type TurnStatus string

const (
	// TurnSpeaking marks an utterance still being spoken.
	TurnSpeaking TurnStatus = "speaking"
	// TurnProcessing marks a committed utterance awaiting transcription.
	TurnProcessing TurnStatus = "processing"
	// TurnComplete marks a finished turn.
	TurnComplete TurnStatus = "complete"
)

// processingPlaceholder is shown while a committed utterance awaits its
// transcript.
const processingPlaceholder = "Processing speech..."

// ConversationTurn is one entry of the conversation log.
type ConversationTurn struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	IsFinal   bool       `json:"isFinal"`
	Status    TurnStatus `json:"status"`
}

// TurnUpdate is a partial in-place update of the ephemeral turn. Nil fields
// are left unchanged.
type TurnUpdate struct {
	Text    *string
	Status  *TurnStatus
	IsFinal *bool
}

// ConversationStore is an append-only ordered log of conversation turns with
// one mutable-in-place exception: the current ephemeral user turn, which
// represents the in-progress utterance and is mutated by partial
// speech-to-text events until its transcript arrives.
//
// Invariants: at most one non-final user turn exists at a time; assistant
// turns are always created final; sequence order equals the arrival order of
// the creating event and is never reordered by content.
type ConversationStore struct {
	mu          sync.Mutex
	turns       []ConversationTurn
	ephemeralID string
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{}
}

// CreateEphemeral allocates the ephemeral user turn and returns its ID.
// If one already exists its ID is returned unchanged (idempotent creation),
// so overlapping speech-start events cannot produce duplicate turns.
func (s *ConversationStore) CreateEphemeral() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ephemeralID != "" {
		return s.ephemeralID
	}
	id := uuid.NewString()
	s.ephemeralID = id
	s.turns = append(s.turns, ConversationTurn{
		ID:        id,
		Role:      RoleUser,
		CreatedAt: time.Now(),
		Status:    TurnSpeaking,
	})
	return id
}

// UpdateEphemeral mutates the ephemeral turn in place. No-op when no
// ephemeral turn is tracked.
func (s *ConversationStore) UpdateEphemeral(partial TurnUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ephemeralID == "" {
		return
	}
	for i := range s.turns {
		if s.turns[i].ID != s.ephemeralID {
			continue
		}
		if partial.Text != nil {
			s.turns[i].Text = *partial.Text
		}
		if partial.Status != nil {
			s.turns[i].Status = *partial.Status
		}
		if partial.IsFinal != nil {
			s.turns[i].IsFinal = *partial.IsFinal
		}
		return
	}
}

// FinalizeEphemeral retires the ephemeral identity. The turn itself remains
// in the sequence, now immutable; the next utterance allocates a fresh one.
func (s *ConversationStore) FinalizeEphemeral() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ephemeralID = ""
}

// AppendAssistant appends a new final assistant turn.
func (s *ConversationStore) AppendAssistant(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, ConversationTurn{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Text:      text,
		CreatedAt: time.Now(),
		IsFinal:   true,
		Status:    TurnComplete,
	})
}

// AppendUserFinal appends a final user turn, used for typed text messages
// that bypass the speech pipeline.
func (s *ConversationStore) AppendUserFinal(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, ConversationTurn{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Text:      text,
		CreatedAt: time.Now(),
		IsFinal:   true,
		Status:    TurnComplete,
	})
}

// Turns returns a snapshot of the conversation log in arrival order.
func (s *ConversationStore) Turns() []ConversationTurn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConversationTurn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len returns the number of turns in the log.
func (s *ConversationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.turns)
}

// HasEphemeral reports whether an ephemeral user turn is currently tracked.
func (s *ConversationStore) HasEphemeral() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ephemeralID != ""
}

// Reset clears the log and the ephemeral identity. Called on session stop:
// the store's contents do not outlive a session.
func (s *ConversationStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = nil
	s.ephemeralID = ""
}
