// Package tutor orchestrates a chat turn: session load, scope check,
// retrieval, prompt assembly, generation, and persistence.
//
// Chat never returns an error. Every failure class collapses into a well
// formed Reply whose Mode names what went wrong; raw faults are logged, not
// propagated, so the HTTP surface always answers 200 with usable JSON.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/osbuddy/osbuddy/internal/guard"
	"github.com/osbuddy/osbuddy/internal/prompt"
	"github.com/osbuddy/osbuddy/internal/store"
)

// titleLimit is how many leading runes of the first question become the
// session title.
const titleLimit = 30

// emptyInputReply is returned for blank messages, before any store access.
const emptyInputReply = "Please enter a message."

// SessionStore is the persistence surface the orchestrator needs.
type SessionStore interface {
	Get(ctx context.Context, id string) *store.Session
	Save(ctx context.Context, id string, sess *store.Session, owner string) error
}

// Retriever yields reference passages for a query. Implementations must
// treat retrieval failure as an empty result.
type Retriever interface {
	Search(ctx context.Context, query string, k int) []string
}

// Classifier decides whether a query is within the tutoring domain.
type Classifier interface {
	Classify(query string) guard.Decision
}

// Reply is the outcome of one chat turn.
type Reply struct {
	// Text is the assistant-facing answer, always non-empty.
	Text string

	// Mode labels the answer path (see modes.go).
	Mode string

	// SessionID identifies the conversation, generated when the caller
	// supplied none. Empty only for empty-input turns.
	SessionID string
}

// Options configures New.
type Options struct {
	Store      SessionStore
	Retriever  Retriever
	Classifier Classifier
	Generator  Generator

	// TopK is how many passages retrieval contributes to the prompt.
	TopK int

	// HistoryLimit bounds the prompt's conversation window.
	HistoryLimit int

	Logger *slog.Logger
}

// Tutor runs the chat turn state machine.
//
// Tutor is safe for concurrent use by multiple goroutines; per-session
// write skew on concurrent turns for the same id is accepted.
type Tutor struct {
	store      SessionStore
	retriever  Retriever
	classifier Classifier
	generator  Generator
	builder    prompt.Builder
	topK       int
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a Tutor.
func New(opts Options) *Tutor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	topK := opts.TopK
	if topK < 1 {
		topK = 3
	}
	return &Tutor{
		store:      opts.Store,
		retriever:  opts.Retriever,
		classifier: opts.Classifier,
		generator:  opts.Generator,
		builder:    prompt.Builder{HistoryLimit: opts.HistoryLimit},
		topK:       topK,
		logger:     logger,
		now:        time.Now,
	}
}

// Chat executes one tutoring turn. sessionID may be empty; a fresh id is
// generated and returned in the Reply. owner stamps the session record when
// the caller is identified.
func (t *Tutor) Chat(ctx context.Context, sessionID, owner, message string) Reply {
	message = strings.TrimSpace(message)
	if message == "" {
		return Reply{Text: emptyInputReply, Mode: ModeEmptyInput, SessionID: sessionID}
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess := t.store.Get(ctx, sessionID)
	if len(sess.Messages) == 0 {
		// Unknown or empty id: start a fresh conversation under this id.
		sess = store.NewSession(sessionID)
		sess.Title = deriveTitle(message)
	}
	sess.Touch(t.now())
	sess.Append(store.RoleUser, message)

	text, mode := t.answer(ctx, sess, message)

	sess.Append(store.RoleAssistant, text)
	if sess.Title == store.DefaultTitle {
		sess.Title = deriveTitle(message)
	}

	if err := t.store.Save(ctx, sessionID, sess, owner); err != nil {
		t.logger.Error("session save failed", "session_id", sessionID, "error", err)
		return Reply{
			Text:      fmt.Sprintf("System Error: %v", err),
			Mode:      ModeSystemError,
			SessionID: sessionID,
		}
	}

	return Reply{Text: text, Mode: mode, SessionID: sessionID}
}

// answer produces the assistant text and mode for the current turn. The
// user message is already appended to sess.Messages.
func (t *Tutor) answer(ctx context.Context, sess *store.Session, message string) (string, string) {
	decision := t.classifier.Classify(message)
	if !decision.InScope {
		t.logger.Info("query blocked by guardrail",
			"session_id", sess.ID, "reason", decision.Reason)
		return guard.RefusalMessage, ModeBlocked
	}

	var passages []string
	if !decision.Greeting {
		passages = t.retriever.Search(ctx, message, t.topK)
	}

	p := t.builder.Build(passages, sess.Messages, message)

	text, err := t.generator.Generate(ctx, p)
	switch {
	case errors.Is(err, ErrNoAPIKey):
		t.logger.Error("generation skipped, model key missing", "session_id", sess.ID)
		return "Error: GEMINI_API_KEY is not configured.", ModeConfigError
	case err != nil:
		t.logger.Error("generation failed", "session_id", sess.ID, "error", err)
		return fmt.Sprintf("Error contacting model API: %v", err), ModeCallFailed
	}

	if len(passages) > 0 {
		return text, ModeRAG
	}
	return text, ModeDirect
}

// deriveTitle shortens the first user message into a list label.
func deriveTitle(message string) string {
	runes := []rune(message)
	if len(runes) > titleLimit {
		runes = runes[:titleLimit]
	}
	return string(runes) + "..."
}
