package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/osbuddy/osbuddy/internal/tutor"
)

// maxChatBodyBytes bounds the /chat request body.
const maxChatBodyBytes = 64 << 10

// ChatService runs one tutoring turn. It never returns an error; failures
// arrive as well-formed replies with a diagnostic mode.
type ChatService interface {
	Chat(ctx context.Context, sessionID, owner, message string) tutor.Reply
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Response  string `json:"response"`
	Thoughts  string `json:"thoughts"`
	SessionID string `json:"session_id,omitempty"`
}

// chatHandler serves POST /chat.
type chatHandler struct {
	tutor      ChatService
	userHeader string
	logger     *slog.Logger
}

func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "request body must be JSON")
		return
	}

	reply := h.tutor.Chat(r.Context(), req.SessionID, r.Header.Get(h.userHeader), req.Message)

	writeJSON(w, http.StatusOK, chatResponse{
		Response:  reply.Text,
		Thoughts:  reply.Mode,
		SessionID: reply.SessionID,
	})
}
