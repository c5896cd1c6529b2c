// Package storage is the durable persistence port for sessions and their
// messages, plus the SQLite adapter that implements it.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/synapse-run/synapse/internal/session"
)

// ErrorKind discriminates the closed set of ways a storage operation can
// fail.
type ErrorKind int

const (
	KindDatabase ErrorKind = iota
	KindNotFound
	KindMigration
	KindInvalidData
)

// Error is the taxonomized storage failure type.
type Error struct {
	Kind      ErrorKind
	SessionID uuid.UUID
	Message   string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindDatabase:
		return fmt.Sprintf("database error: %s", e.Message)
	case KindNotFound:
		return fmt.Sprintf("session not found: %s", e.SessionID)
	case KindMigration:
		return fmt.Sprintf("migration error: %s", e.Message)
	default:
		return fmt.Sprintf("invalid data: %s", e.Message)
	}
}

func newDatabaseErr(format string, args ...any) *Error {
	return &Error{Kind: KindDatabase, Message: fmt.Sprintf(format, args...)}
}

func newNotFoundErr(id uuid.UUID) *Error {
	return &Error{Kind: KindNotFound, SessionID: id}
}

func newMigrationErr(format string, args ...any) *Error {
	return &Error{Kind: KindMigration, Message: fmt.Sprintf(format, args...)}
}

func newInvalidDataErr(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidData, Message: fmt.Sprintf(format, args...)}
}

// CleanupConfig is the cleanup operation's input: how many sessions to
// keep and how long to keep them.
type CleanupConfig struct {
	MaxSessions   int
	RetentionDays int
}

// CleanupResult reports how many sessions a cleanup pass removed and why.
// Invariant: SessionsDeleted == ByRetention + ByMaxLimit.
type CleanupResult struct {
	SessionsDeleted uint32
	ByMaxLimit      uint32
	ByRetention     uint32
}

// SessionStore is the port every storage backend implements.
type SessionStore interface {
	CreateSession(ctx context.Context, s session.Session) *Error
	UpdateSession(ctx context.Context, s session.Session) *Error
	GetSession(ctx context.Context, id uuid.UUID) (*session.Session, *Error)
	ListSessions(ctx context.Context) ([]session.Summary, *Error)
	TouchSession(ctx context.Context, id uuid.UUID) *Error
	DeleteSession(ctx context.Context, id uuid.UUID) (bool, *Error)
	AddMessage(ctx context.Context, m session.StoredMessage) *Error
	GetMessages(ctx context.Context, sessionID uuid.UUID) ([]session.StoredMessage, *Error)
	Cleanup(ctx context.Context, cfg CleanupConfig) (CleanupResult, *Error)
	Close() error
}
