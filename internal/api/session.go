package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/osbuddy/osbuddy/internal/store"
)

// SessionStore is the persistence surface the session handlers need.
type SessionStore interface {
	List(ctx context.Context, owner string) ([]store.Summary, error)
	Get(ctx context.Context, id string) *store.Session
	Save(ctx context.Context, id string, sess *store.Session, owner string) error
	Delete(ctx context.Context, id, owner string) (bool, error)
}

// sessionHandler serves the session CRUD routes. Caller identity comes from
// a configurable request header; an absent header means anonymous access.
type sessionHandler struct {
	store      SessionStore
	userHeader string
	logger     *slog.Logger
}

func (h *sessionHandler) owner(r *http.Request) string {
	return r.Header.Get(h.userHeader)
}

// listSessions handles GET /sessions.
func (h *sessionHandler) listSessions(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.List(r.Context(), h.owner(r))
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list sessions")
		return
	}
	if summaries == nil {
		summaries = []store.Summary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

// createSession handles POST /sessions/new: provisions an empty session and
// returns its id.
func (h *sessionHandler) createSession(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	if err := h.store.Save(r.Context(), id, store.NewSession(id), h.owner(r)); err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

// getSession handles GET /sessions/{id}. Unknown ids yield an empty session
// rather than 404, so a fresh client can always render a transcript.
func (h *sessionHandler) getSession(w http.ResponseWriter, r *http.Request) {
	sess := h.store.Get(r.Context(), r.PathValue("id"))
	writeJSON(w, http.StatusOK, sess)
}

// deleteSession handles DELETE /sessions/{id}. The success flag is false when
// nothing was removed, including owner mismatches.
func (h *sessionHandler) deleteSession(w http.ResponseWriter, r *http.Request) {
	ok, err := h.store.Delete(r.Context(), r.PathValue("id"), h.owner(r))
	if err != nil {
		h.logger.Error("deleting session", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}
