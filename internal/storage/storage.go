// Package storage defines the session store interface for dagbuilder.
package storage

import (
	"context"
	"errors"

	"github.com/langdag/dagbuilder/pkg/types"
)

var (
	// ErrSessionNotFound indicates no session exists for the given id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrStaleSession indicates the session was modified by someone else
	// since it was loaded, or a new session id is already taken.
	ErrStaleSession = errors.New("session was modified concurrently")
)

// Store persists builder sessions and the pointer to the current one.
//
// Any error other than ErrSessionNotFound or ErrStaleSession means the store
// itself is unavailable.
type Store interface {
	// Init prepares the backing storage (migrations, connectivity check).
	Init(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error

	// Load returns the session with the given id or ErrSessionNotFound.
	Load(ctx context.Context, id string) (*types.Session, error)

	// Save persists the full session record. The write is rejected with
	// ErrStaleSession unless the stored revision equals session.Revision
	// (revision 0 means the session must not exist yet). On success
	// session.Revision is incremented.
	Save(ctx context.Context, session *types.Session) error

	// List returns all stored sessions, newest first.
	List(ctx context.Context) ([]*types.Session, error)

	// GetCurrent returns the current session, or nil when the pointer is
	// unset or names a session that no longer exists.
	GetCurrent(ctx context.Context) (*types.Session, error)

	// SetCurrent points the current pointer at id; an empty id clears it.
	SetCurrent(ctx context.Context, id string) error

	// ReleaseCurrent clears the current pointer only if it names id.
	ReleaseCurrent(ctx context.Context, id string) error
}

// IsNotFound reports whether err indicates a missing session.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSessionNotFound)
}

// IsStale reports whether err indicates an optimistic-concurrency conflict.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleSession)
}
