// Package store provides durable session persistence with automatic failover.
//
// The Store targets a remote MongoDB backend. On initialization failure, or
// on any operational failure against the remote backend, it transparently and
// permanently switches to a local file-backed implementation for the rest of
// the process lifetime. The operation that triggered the failover is retried
// once against the local backend so callers never see the remote fault.
//
// There is no automatic retry of the remote backend: the swap happens at most
// once, Remote → Local, guarded by the Store's mutex.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Options configures Open.
type Options struct {
	// MongoURI is the remote backend connection string. Empty means the
	// store starts directly on the local file backend.
	MongoURI string

	// FilePath is the local fallback session file (see Config.SessionsFilePath).
	FilePath string

	// Retention is the remote-store expiry window for inactive sessions.
	Retention time.Duration

	Logger *slog.Logger
}

// Store dispatches session operations to the current backend, failing over
// from remote to local exactly once.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	mu         sync.Mutex
	current    Backend
	fallback   Backend
	failedOver bool

	logger *slog.Logger
}

// Open creates a Store. An unreachable remote backend is not an error: the
// store opens on the local file backend instead, permanently.
func Open(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fb, err := newFileBackend(opts.FilePath)
	if err != nil {
		return nil, err
	}

	s := &Store{current: fb, fallback: fb, failedOver: true, logger: logger}

	if opts.MongoURI == "" {
		logger.Warn("MONGO_URI not configured, using local file session store",
			"path", opts.FilePath)
		return s, nil
	}

	retention := opts.Retention
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}

	mb, err := newMongoBackend(ctx, opts.MongoURI, retention)
	if err != nil {
		logger.Warn("mongodb unavailable, falling back to local file session store",
			"error", err, "path", opts.FilePath)
		return s, nil
	}

	s.current = mb
	s.failedOver = false
	logger.Info("session store ready", "backend", s.current.Name(), "retention", retention)
	return s, nil
}

// backend returns the backend to use for the next operation and whether it
// is the remote one (i.e. a failure should trigger failover).
func (s *Store) backend() (Backend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, !s.failedOver
}

// failover swaps to the local backend after a remote operational failure.
// Idempotent: the first caller wins, later callers observe the swapped state.
func (s *Store) failover(op string, cause error) Backend {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.failedOver {
		s.logger.Error("remote session store failed, switching to local file backend permanently",
			"op", op, "error", cause)
		s.current = s.fallback
		s.failedOver = true
	}
	return s.current
}

// List returns session summaries ordered by last-touched descending,
// filtered to owner when one is provided.
func (s *Store) List(ctx context.Context, owner string) ([]Summary, error) {
	b, remote := s.backend()
	summaries, err := b.List(ctx, owner)
	if err != nil && remote {
		summaries, err = s.failover("list", err).List(ctx, owner)
	}
	return summaries, err
}

// Get retrieves a session by id. Unknown ids yield an empty-messages session;
// Get never fails on a missing id. If even the local backend cannot be read,
// a fresh empty session is returned so a chat turn can still proceed.
func (s *Store) Get(ctx context.Context, id string) *Session {
	b, remote := s.backend()
	sess, err := b.Get(ctx, id)
	if err != nil && remote {
		sess, err = s.failover("get", err).Get(ctx, id)
	}
	if err != nil {
		s.logger.Error("session load failed, starting empty", "id", id, "error", err)
		return &Session{ID: id, Messages: []Message{}}
	}
	return sess
}

// Save upserts a session, stamping owner into the record if provided.
func (s *Store) Save(ctx context.Context, id string, sess *Session, owner string) error {
	b, remote := s.backend()
	err := b.Save(ctx, id, sess, owner)
	if err != nil && remote {
		err = s.failover("save", err).Save(ctx, id, sess, owner)
	}
	return err
}

// Delete removes a session and reports whether a record was actually removed.
// An owner mismatch refuses the delete and returns false without error.
func (s *Store) Delete(ctx context.Context, id, owner string) (bool, error) {
	b, remote := s.backend()
	ok, err := b.Delete(ctx, id, owner)
	if err != nil && remote {
		ok, err = s.failover("delete", err).Delete(ctx, id, owner)
	}
	return ok, err
}

// newFailoverStore wires a Store from explicit backends. Tests use this to
// inject a failing remote.
func newFailoverStore(remote, fallback Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{current: fallback, fallback: fallback, failedOver: true, logger: logger}
	if remote != nil {
		s.current = remote
		s.failedOver = false
	}
	return s
}
