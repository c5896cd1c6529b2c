// Package session holds the durable record types for conversations:
// Session metadata, its listing projection, and the persisted messages
// that belong to it.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/synapse-run/synapse/internal/message"
)

// Session is a conversation's durable metadata.
type Session struct {
	ID           uuid.UUID
	Name         *string
	Provider     string
	Model        string
	SystemPrompt *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a session with a time-sortable v7 ID and both timestamps set
// to the current moment.
func New(provider, model string) Session {
	now := time.Now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return Session{ID: id, Provider: provider, Model: model, CreatedAt: now, UpdatedAt: now}
}

// WithName returns a copy with Name set.
func (s Session) WithName(name string) Session {
	s.Name = &name
	return s
}

// WithSystemPrompt returns a copy with SystemPrompt set.
func (s Session) WithSystemPrompt(prompt string) Session {
	s.SystemPrompt = &prompt
	return s
}

// Summary is the listing projection of a Session.
type Summary struct {
	ID           uuid.UUID
	Name         *string
	Provider     string
	Model        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount uint32
	Preview      *string
}

// StoredMessage is the persisted form of a message: a child of exactly one
// session, with tool-call/tool-result payloads carried as raw JSON text.
type StoredMessage struct {
	ID          uuid.UUID
	SessionID   uuid.UUID
	Role        message.Role
	Content     string
	ToolCalls   *string
	ToolResults *string
	Timestamp   time.Time
}

// NewStoredMessage creates a stored message with a time-sortable v7 ID and
// the current timestamp; tool-related fields default to unset.
func NewStoredMessage(sessionID uuid.UUID, role message.Role, content string) StoredMessage {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return StoredMessage{ID: id, SessionID: sessionID, Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// WithToolCalls returns a copy with ToolCalls set to the given JSON text.
func (m StoredMessage) WithToolCalls(json string) StoredMessage {
	m.ToolCalls = &json
	return m
}

// WithToolResults returns a copy with ToolResults set to the given JSON text.
func (m StoredMessage) WithToolResults(json string) StoredMessage {
	m.ToolResults = &json
	return m
}
