// Package sqlite provides a SQLite implementation of the session store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/langdag/dagbuilder/internal/storage"
	"github.com/langdag/dagbuilder/pkg/types"
	_ "modernc.org/sqlite"
)

// SQLiteStorage implements storage.Store using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ storage.Store = (*SQLiteStorage)(nil)

// New creates a new SQLite storage instance.
func New(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: path,
	}, nil
}

// Init initializes the database schema.
func (s *SQLiteStorage) Init(ctx context.Context) error {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		// Table doesn't exist, run all migrations
		version = 0
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", i+1, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Load retrieves a session by ID.
func (s *SQLiteStorage) Load(ctx context.Context, id string) (*types.Session, error) {
	return loadSession(ctx, s.db, id)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadSession(ctx context.Context, q queryer, id string) (*types.Session, error) {
	var definition []byte
	var revision int64
	err := q.QueryRowContext(ctx, `
		SELECT definition, revision FROM sessions WHERE id = ?
	`, id).Scan(&definition, &revision)
	if err == sql.ErrNoRows {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session types.Session
	if err := types.DecodeJSON(definition, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	session.Revision = revision
	return &session, nil
}

// Save persists the full session record, rejecting stale writes.
func (s *SQLiteStorage) Save(ctx context.Context, session *types.Session) error {
	expected := session.Revision
	next := *session
	next.Revision = expected + 1

	definition, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	var res sql.Result
	if expected == 0 {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO sessions (id, name, state, revision, definition, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, next.ID, next.WorkflowDraft.Name, next.State, next.Revision, definition,
			formatTime(next.CreatedAt), formatTime(next.UpdatedAt))
	} else {
		res, err = s.db.ExecContext(ctx, `
			UPDATE sessions SET name = ?, state = ?, revision = ?, definition = ?, updated_at = ?
			WHERE id = ? AND revision = ?
		`, next.WorkflowDraft.Name, next.State, next.Revision, definition, formatTime(next.UpdatedAt),
			next.ID, expected)
	}
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	if affected == 0 {
		if expected != 0 {
			if _, err := s.Load(ctx, session.ID); storage.IsNotFound(err) {
				return err
			}
		}
		return storage.ErrStaleSession
	}

	session.Revision = next.Revision
	return nil
}

// List returns all sessions, newest first.
func (s *SQLiteStorage) List(ctx context.Context) ([]*types.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT definition, revision FROM sessions ORDER BY created_at DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*types.Session
	for rows.Next() {
		var definition []byte
		var revision int64
		if err := rows.Scan(&definition, &revision); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		var session types.Session
		if err := types.DecodeJSON(definition, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		session.Revision = revision
		sessions = append(sessions, &session)
	}
	return sessions, rows.Err()
}

// GetCurrent returns the session named by the current pointer.
func (s *SQLiteStorage) GetCurrent(ctx context.Context) (*types.Session, error) {
	var id sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id FROM current_session WHERE slot = 1
	`).Scan(&id)
	if err == sql.ErrNoRows || (err == nil && !id.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current session: %w", err)
	}

	session, err := s.Load(ctx, id.String)
	if errors.Is(err, storage.ErrSessionNotFound) {
		return nil, nil
	}
	return session, err
}

// SetCurrent points the current pointer at id, or clears it when id is empty.
func (s *SQLiteStorage) SetCurrent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO current_session (slot, session_id) VALUES (1, ?)
		ON CONFLICT(slot) DO UPDATE SET session_id = excluded.session_id
	`, nullString(id))
	if err != nil {
		return fmt.Errorf("failed to set current session: %w", err)
	}
	return nil
}

// ReleaseCurrent clears the current pointer if it still names id.
func (s *SQLiteStorage) ReleaseCurrent(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE current_session SET session_id = NULL WHERE slot = 1 AND session_id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to release current session: %w", err)
	}
	return nil
}

// timeLayout is fixed-width so that text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullString returns a sql.NullString from a string.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
