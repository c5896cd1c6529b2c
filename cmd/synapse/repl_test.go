package main

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/synapse-run/synapse/internal/config"
	"github.com/synapse-run/synapse/internal/session"
	"github.com/synapse-run/synapse/internal/storage"
)

// emptyStore is a storage.SessionStore whose GetSession always reports a
// missing row, exercising resolveReplSession's nil-handling without a real
// database.
type emptyStore struct{}

func (emptyStore) CreateSession(ctx context.Context, s session.Session) *storage.Error { return nil }
func (emptyStore) UpdateSession(ctx context.Context, s session.Session) *storage.Error { return nil }
func (emptyStore) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, *storage.Error) {
	return nil, nil
}
func (emptyStore) ListSessions(ctx context.Context) ([]session.Summary, *storage.Error) {
	return nil, nil
}
func (emptyStore) TouchSession(ctx context.Context, id uuid.UUID) *storage.Error { return nil }
func (emptyStore) DeleteSession(ctx context.Context, id uuid.UUID) (bool, *storage.Error) {
	return false, nil
}
func (emptyStore) AddMessage(ctx context.Context, m session.StoredMessage) *storage.Error {
	return nil
}
func (emptyStore) GetMessages(ctx context.Context, sessionID uuid.UUID) ([]session.StoredMessage, *storage.Error) {
	return nil, nil
}
func (emptyStore) Cleanup(ctx context.Context, cfg storage.CleanupConfig) (storage.CleanupResult, *storage.Error) {
	return storage.CleanupResult{}, nil
}
func (emptyStore) Close() error { return nil }

func TestResolveReplSessionMissingIDReturnsErrorNotPanic(t *testing.T) {
	rt := &runtime{cfg: config.Config{}, store: emptyStore{}}

	_, _, err := resolveReplSession(context.Background(), rt, uuid.New().String())
	if err == nil {
		t.Fatal("expected an error for a well-formed but nonexistent session ID")
	}
}

func TestResolveReplSessionInvalidUUIDIsError(t *testing.T) {
	rt := &runtime{cfg: config.Config{}, store: emptyStore{}}

	_, _, err := resolveReplSession(context.Background(), rt, "not-a-uuid")
	if err == nil {
		t.Fatal("expected an error for a malformed --session value")
	}
}
