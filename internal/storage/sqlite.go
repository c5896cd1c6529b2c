package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/synapse-run/synapse/internal/message"
	"github.com/synapse-run/synapse/internal/session"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// sessionPreviewMaxChars bounds list_sessions' preview column.
const sessionPreviewMaxChars = 50

// SqliteStore is the durable SessionStore adapter: a pooled, WAL-mode
// SQLite database with migrations applied on open.
type SqliteStore struct {
	db *sql.DB
}

// NewSqliteStore opens (creating if missing) the database at path, enables
// WAL journaling and foreign keys, and applies pending migrations.
func NewSqliteStore(ctx context.Context, path string) (*SqliteStore, *Error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, newDatabaseErr("failed to create database directory: %s", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, newDatabaseErr("%s", err)
	}
	db.SetMaxOpenConns(5)

	store := &SqliteStore{db: db}
	if mErr := store.runMigrations(ctx); mErr != nil {
		db.Close()
		return nil, mErr
	}
	return store, nil
}

func (s *SqliteStore) runMigrations(ctx context.Context) *Error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY)`); err != nil {
		return newMigrationErr("%s", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return newMigrationErr("%s", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var applied int
		row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, name)
		if err := row.Scan(&applied); err != nil {
			return newMigrationErr("%s", err)
		}
		if applied > 0 {
			continue
		}

		contents, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return newMigrationErr("%s", err)
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return newMigrationErr("%s", err)
		}
		if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
			tx.Rollback()
			return newMigrationErr("%s: %s", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, name); err != nil {
			tx.Rollback()
			return newMigrationErr("%s", err)
		}
		if err := tx.Commit(); err != nil {
			return newMigrationErr("%s", err)
		}
	}
	return nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) CreateSession(ctx context.Context, sess session.Session) *Error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, provider, model, system_prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sess.ID.String(), sess.Name, sess.Provider, sess.Model, sess.SystemPrompt,
		sess.CreatedAt.Format(time.RFC3339), sess.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return newDatabaseErr("%s", err)
	}
	return nil
}

// UpdateSession rewrites a session's mutable metadata (name, system
// prompt, provider, model) in place, touching updated_at. Unlike
// CreateSession this targets an existing row and is a no-op (reported
// via *Error KindNotFound) when the row doesn't exist.
func (s *SqliteStore) UpdateSession(ctx context.Context, sess session.Session) *Error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET name = ?, provider = ?, model = ?, system_prompt = ?, updated_at = ?
		WHERE id = ?
	`, sess.Name, sess.Provider, sess.Model, sess.SystemPrompt,
		time.Now().UTC().Format(time.RFC3339), sess.ID.String())
	if err != nil {
		return newDatabaseErr("%s", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return newDatabaseErr("%s", err)
	}
	if rows == 0 {
		return newNotFoundErr(sess.ID)
	}
	return nil
}

func (s *SqliteStore) GetSession(ctx context.Context, id uuid.UUID) (*session.Session, *Error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, provider, model, system_prompt, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id.String())

	var idStr, provider, model, createdAtStr, updatedAtStr string
	var name, systemPrompt sql.NullString
	if err := row.Scan(&idStr, &name, &provider, &model, &systemPrompt, &createdAtStr, &updatedAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, newDatabaseErr("%s", err)
	}

	sess, parseErr := rowToSession(idStr, name, provider, model, systemPrompt, createdAtStr, updatedAtStr)
	if parseErr != nil {
		return nil, parseErr
	}
	return &sess, nil
}

func rowToSession(idStr string, name sql.NullString, provider, model string, systemPrompt sql.NullString, createdAtStr, updatedAtStr string) (session.Session, *Error) {
	id, err := uuid.Parse(idStr)
	if err != nil {
		return session.Session{}, newInvalidDataErr("invalid UUID: %s", err)
	}
	createdAt, err := time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return session.Session{}, newInvalidDataErr("invalid datetime: %s", err)
	}
	updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return session.Session{}, newInvalidDataErr("invalid datetime: %s", err)
	}

	sess := session.Session{ID: id, Provider: provider, Model: model, CreatedAt: createdAt.UTC(), UpdatedAt: updatedAt.UTC()}
	if name.Valid {
		sess.Name = &name.String
	}
	if systemPrompt.Valid {
		sess.SystemPrompt = &systemPrompt.String
	}
	return sess, nil
}

func (s *SqliteStore) ListSessions(ctx context.Context) ([]session.Summary, *Error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			s.id, s.name, s.provider, s.model, s.created_at, s.updated_at,
			(SELECT COUNT(*) FROM messages WHERE session_id = s.id) as message_count,
			(SELECT content FROM messages WHERE session_id = s.id AND role = 'user' ORDER BY timestamp ASC LIMIT 1) as preview
		FROM sessions s
		ORDER BY s.updated_at DESC
	`)
	if err != nil {
		return nil, newDatabaseErr("%s", err)
	}
	defer rows.Close()

	var summaries []session.Summary
	for rows.Next() {
		var idStr, provider, model, createdAtStr, updatedAtStr string
		var name, preview sql.NullString
		var messageCount int
		if err := rows.Scan(&idStr, &name, &provider, &model, &createdAtStr, &updatedAtStr, &messageCount, &preview); err != nil {
			return nil, newDatabaseErr("%s", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, newInvalidDataErr("invalid UUID: %s", err)
		}
		createdAt, err := time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, newInvalidDataErr("invalid datetime: %s", err)
		}
		updatedAt, err := time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, newInvalidDataErr("invalid datetime: %s", err)
		}

		summary := session.Summary{
			ID:           id,
			Provider:     provider,
			Model:        model,
			CreatedAt:    createdAt.UTC(),
			UpdatedAt:    updatedAt.UTC(),
			MessageCount: uint32(messageCount),
		}
		if name.Valid {
			summary.Name = &name.String
		}
		if preview.Valid {
			truncated := Truncate(preview.String, sessionPreviewMaxChars)
			summary.Preview = &truncated
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, newDatabaseErr("%s", err)
	}
	return summaries, nil
}

func (s *SqliteStore) TouchSession(ctx context.Context, id uuid.UUID) *Error {
	result, err := s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), id.String())
	if err != nil {
		return newDatabaseErr("%s", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return newDatabaseErr("%s", err)
	}
	if affected == 0 {
		return newNotFoundErr(id)
	}
	return nil
}

func (s *SqliteStore) DeleteSession(ctx context.Context, id uuid.UUID) (bool, *Error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return false, newDatabaseErr("%s", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, newDatabaseErr("%s", err)
	}
	return affected > 0, nil
}

func (s *SqliteStore) AddMessage(ctx context.Context, m session.StoredMessage) *Error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, content, tool_calls, tool_results, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, m.ID.String(), m.SessionID.String(), string(m.Role), m.Content, m.ToolCalls, m.ToolResults,
		m.Timestamp.Format(time.RFC3339))
	if err != nil {
		return newDatabaseErr("%s", err)
	}

	_, err = s.db.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), m.SessionID.String())
	if err != nil {
		return newDatabaseErr("%s", err)
	}
	return nil
}

func (s *SqliteStore) GetMessages(ctx context.Context, sessionID uuid.UUID) ([]session.StoredMessage, *Error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, tool_calls, tool_results, timestamp
		FROM messages WHERE session_id = ? ORDER BY timestamp ASC, id ASC
	`, sessionID.String())
	if err != nil {
		return nil, newDatabaseErr("%s", err)
	}
	defer rows.Close()

	var messages []session.StoredMessage
	for rows.Next() {
		var idStr, sessIDStr, roleStr, content, timestampStr string
		var toolCalls, toolResults sql.NullString
		if err := rows.Scan(&idStr, &sessIDStr, &roleStr, &content, &toolCalls, &toolResults, &timestampStr); err != nil {
			return nil, newDatabaseErr("%s", err)
		}

		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, newInvalidDataErr("invalid UUID: %s", err)
		}
		sessID, err := uuid.Parse(sessIDStr)
		if err != nil {
			return nil, newInvalidDataErr("invalid UUID: %s", err)
		}
		role, rErr := parseRole(roleStr)
		if rErr != nil {
			return nil, rErr
		}
		timestamp, err := time.Parse(time.RFC3339, timestampStr)
		if err != nil {
			return nil, newInvalidDataErr("invalid datetime: %s", err)
		}

		msg := session.StoredMessage{ID: id, SessionID: sessID, Role: role, Content: content, Timestamp: timestamp.UTC()}
		if toolCalls.Valid {
			msg.ToolCalls = &toolCalls.String
		}
		if toolResults.Valid {
			msg.ToolResults = &toolResults.String
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, newDatabaseErr("%s", err)
	}
	return messages, nil
}

func parseRole(s string) (message.Role, *Error) {
	switch message.Role(s) {
	case message.RoleSystem, message.RoleUser, message.RoleAssistant, message.RoleTool:
		return message.Role(s), nil
	default:
		return "", newInvalidDataErr("unknown role: %s", s)
	}
}

func (s *SqliteStore) Cleanup(ctx context.Context, cfg CleanupConfig) (CleanupResult, *Error) {
	var result CleanupResult

	cutoff := time.Now().UTC().AddDate(0, 0, -cfg.RetentionDays).Format(time.RFC3339)
	retentionRes, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE updated_at < ?`, cutoff)
	if err != nil {
		return result, newDatabaseErr("%s", err)
	}
	retentionDeleted, err := retentionRes.RowsAffected()
	if err != nil {
		return result, newDatabaseErr("%s", err)
	}
	result.ByRetention = uint32(retentionDeleted)

	var sessionCount int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&sessionCount); err != nil {
		return result, newDatabaseErr("%s", err)
	}

	if sessionCount > cfg.MaxSessions {
		excess := sessionCount - cfg.MaxSessions
		limitRes, err := s.db.ExecContext(ctx, `
			DELETE FROM sessions WHERE id IN (
				SELECT id FROM sessions ORDER BY updated_at ASC LIMIT ?
			)
		`, excess)
		if err != nil {
			return result, newDatabaseErr("%s", err)
		}
		limitDeleted, err := limitRes.RowsAffected()
		if err != nil {
			return result, newDatabaseErr("%s", err)
		}
		result.ByMaxLimit = uint32(limitDeleted)
	}

	result.SessionsDeleted = result.ByRetention + result.ByMaxLimit
	return result, nil
}
