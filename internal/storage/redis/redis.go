// Package redis provides a Redis implementation of the session store.
//
// Sessions are stored as JSON strings. Writes run inside WATCH/MULTI so a
// concurrent writer aborts the transaction instead of overwriting it.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/langdag/dagbuilder/internal/storage"
	"github.com/langdag/dagbuilder/pkg/types"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "dagbuilder"

// Storage implements storage.Store on top of Redis.
type Storage struct {
	client *goredis.Client
	prefix string
}

var _ storage.Store = (*Storage)(nil)

// New parses a redis:// URL and creates a store using the given key prefix.
func New(url, prefix string) (*Storage, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewWithClient(goredis.NewClient(opts), prefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) sessionKey(id string) string { return s.prefix + ":session:" + id }
func (s *Storage) indexKey() string            { return s.prefix + ":sessions" }
func (s *Storage) currentKey() string          { return s.prefix + ":current" }

// Init verifies the server is reachable.
func (s *Storage) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (s *Storage) Close() error {
	return s.client.Close()
}

// Load retrieves a session by ID.
func (s *Storage) Load(ctx context.Context, id string) (*types.Session, error) {
	return s.load(ctx, s.client, id)
}

// getter is satisfied by both *goredis.Client and *goredis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *Storage) load(ctx context.Context, c getter, id string) (*types.Session, error) {
	data, err := c.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session types.Session
	if err := types.DecodeJSON(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// Save persists the session if its revision still matches the stored one.
func (s *Storage) Save(ctx context.Context, session *types.Session) error {
	key := s.sessionKey(session.ID)
	expected := session.Revision
	next := *session
	next.Revision = expected + 1

	data, err := json.Marshal(&next)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *goredis.Tx) error {
		stored, err := s.load(ctx, tx, session.ID)
		switch {
		case storage.IsNotFound(err):
			if expected != 0 {
				return err
			}
		case err != nil:
			return err
		case stored.Revision != expected:
			return storage.ErrStaleSession
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
				Score:  float64(next.CreatedAt.UnixNano()),
				Member: next.ID,
			})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, goredis.TxFailedErr) {
		return storage.ErrStaleSession
	}
	if err != nil {
		if storage.IsNotFound(err) || storage.IsStale(err) {
			return err
		}
		return fmt.Errorf("failed to save session: %w", err)
	}

	session.Revision = next.Revision
	return nil
}

// List returns all sessions, newest first.
func (s *Storage) List(ctx context.Context) ([]*types.Session, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	sessions := make([]*types.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.Load(ctx, id)
		if storage.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetCurrent returns the session named by the current pointer.
func (s *Storage) GetCurrent(ctx context.Context) (*types.Session, error) {
	id, err := s.client.Get(ctx, s.currentKey()).Result()
	if errors.Is(err, goredis.Nil) || (err == nil && id == "") {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current session: %w", err)
	}

	session, err := s.Load(ctx, id)
	if storage.IsNotFound(err) {
		return nil, nil
	}
	return session, err
}

// SetCurrent points the current pointer at id, or clears it when id is empty.
func (s *Storage) SetCurrent(ctx context.Context, id string) error {
	var err error
	if id == "" {
		err = s.client.Del(ctx, s.currentKey()).Err()
	} else {
		err = s.client.Set(ctx, s.currentKey(), id, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set current session: %w", err)
	}
	return nil
}

// ReleaseCurrent clears the current pointer if it still names id.
func (s *Storage) ReleaseCurrent(ctx context.Context, id string) error {
	key := s.currentKey()
	err := s.client.Watch(ctx, func(tx *goredis.Tx) error {
		current, err := tx.Get(ctx, key).Result()
		if errors.Is(err, goredis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		if current != id {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to release current session: %w", err)
	}
	return nil
}
