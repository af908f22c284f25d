package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

// fileBackend persists all sessions as a single JSON file mapping session id
// to session record, rewritten in full on every save (last writer wins).
//
// Writes go through a temp file + rename so a racing reader never observes a
// partially written file. A flock guards against a second osbuddy process on
// the same data directory; the mutex serializes goroutines within this one.
//
// The file backend performs NO retention expiry. Only the remote backend
// expires sessions; this asymmetry is intentional.
type fileBackend struct {
	mu   sync.Mutex
	path string
	flk  *flock.Flock
}

// newFileBackend creates a file backend storing sessions at path.
// The parent directory is created if missing.
func newFileBackend(path string) (*fileBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &fileBackend{
		path: path,
		flk:  flock.New(path + ".lock"),
	}, nil
}

func (f *fileBackend) Name() string { return "file" }

// load reads the full session map. A missing file yields an empty map.
func (f *fileBackend) load() (map[string]*Session, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Session{}, nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	sessions := map[string]*Session{}
	if len(data) == 0 {
		return sessions, nil
	}
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	return sessions, nil
}

// persist rewrites the whole session map atomically.
func (f *fileBackend) persist(sessions map[string]*Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}
	data = append(data, '\n')

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing session file: %w", err)
	}
	return nil
}

func (f *fileBackend) List(_ context.Context, owner string) ([]Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(sessions))
	for id, sess := range sessions {
		if owner != "" && sess.Owner != owner {
			continue
		}
		title := sess.Title
		if title == "" {
			title = DefaultTitle
		}
		summaries = append(summaries, Summary{ID: id, Title: title, Timestamp: sess.Timestamp})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Timestamp > summaries[j].Timestamp
	})
	return summaries, nil
}

func (f *fileBackend) Get(_ context.Context, id string) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, err := f.load()
	if err != nil {
		return nil, err
	}

	sess, ok := sessions[id]
	if !ok {
		// Unknown id is not an error: callers get a fresh empty session.
		return &Session{ID: id, Messages: []Message{}}, nil
	}
	if sess.Messages == nil {
		sess.Messages = []Message{}
	}
	return sess, nil
}

func (f *fileBackend) Save(_ context.Context, id string, sess *Session, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flk.Lock(); err != nil {
		return fmt.Errorf("locking session file: %w", err)
	}
	defer func() { _ = f.flk.Unlock() }()

	sessions, err := f.load()
	if err != nil {
		return err
	}

	sess.ID = id
	if owner != "" {
		sess.Owner = owner
	}
	sessions[id] = sess

	return f.persist(sessions)
}

func (f *fileBackend) Delete(_ context.Context, id, owner string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.flk.Lock(); err != nil {
		return false, fmt.Errorf("locking session file: %w", err)
	}
	defer func() { _ = f.flk.Unlock() }()

	sessions, err := f.load()
	if err != nil {
		return false, err
	}

	sess, ok := sessions[id]
	if !ok {
		return false, nil
	}
	if !ownerMayDelete(owner, sess.Owner) {
		return false, nil
	}

	delete(sessions, id)
	if err := f.persist(sessions); err != nil {
		return false, err
	}
	return true, nil
}
