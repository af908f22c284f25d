package store

import (
	"context"
	"time"
)

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultTitle is the title of a session before its first user turn.
const DefaultTitle = "New Chat"

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

// Session is a persisted conversation unit.
//
// Timestamp is a float second count used for list ordering (most recently
// touched first). LastActive drives the remote store's retention policy.
// Messages is append-only: turns are never reordered or mutated in place.
type Session struct {
	ID         string    `json:"id" bson:"id"`
	Owner      string    `json:"owner,omitempty" bson:"owner,omitempty"`
	Title      string    `json:"title" bson:"title"`
	Timestamp  float64   `json:"timestamp" bson:"timestamp"`
	LastActive time.Time `json:"last_active" bson:"last_active"`
	Messages   []Message `json:"messages" bson:"messages"`
}

// NewSession returns a fresh, empty session with default metadata.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Title:      DefaultTitle,
		Timestamp:  float64(now.UnixNano()) / float64(time.Second),
		LastActive: now.UTC(),
		Messages:   []Message{},
	}
}

// Touch updates the freshness timestamps.
func (s *Session) Touch(now time.Time) {
	s.Timestamp = float64(now.UnixNano()) / float64(time.Second)
	s.LastActive = now.UTC()
}

// Append adds a turn to the session. Turns are only ever appended.
func (s *Session) Append(role, content string) {
	s.Messages = append(s.Messages, Message{Role: role, Content: content})
}

// Summary is the list-view projection of a session.
type Summary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Timestamp float64 `json:"timestamp"`
}

// Backend is the storage capability required by the failover Store.
//
// Contract shared by both implementations:
//   - Get returns an empty-messages session (not an error) for unknown ids.
//   - Save has upsert semantics and stamps owner into the record if provided.
//   - Delete refuses (false, nil) when the presented owner does not match the
//     stored owner; records without a stored owner are deletable by anyone.
//   - List returns summaries ordered by Timestamp descending, filtered to the
//     given owner when one is provided.
type Backend interface {
	List(ctx context.Context, owner string) ([]Summary, error)
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, id string, sess *Session, owner string) error
	Delete(ctx context.Context, id, owner string) (bool, error)

	// Name identifies the backend in logs ("mongo" or "file").
	Name() string
}

// ownerMayDelete reports whether a caller presenting the given owner may
// delete a record whose stored owner is storedOwner.
func ownerMayDelete(presented, storedOwner string) bool {
	if presented == "" {
		// Anonymous callers only reach unowned records; owner-scoped records
		// require a matching identity.
		return storedOwner == ""
	}
	return storedOwner == "" || storedOwner == presented
}
