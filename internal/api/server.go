// Package api exposes the tutoring backend as a JSON HTTP API.
package api

import (
	"errors"
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger *slog.Logger
	Store  SessionStore // Required
	Tutor  ChatService  // Required

	// UserHeader names the request header carrying the caller identity.
	UserHeader string

	// TrustProxy trusts X-Real-IP/X-Forwarded-For (behind reverse proxy).
	TrustProxy bool

	// RateBurst is the per-IP token bucket size (0 = default 60).
	RateBurst int
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Tutor == nil {
		return nil, errors.New("chat service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userHeader := cfg.UserHeader
	if userHeader == "" {
		userHeader = "X-User-ID"
	}

	sh := &sessionHandler{store: cfg.Store, userHeader: userHeader, logger: logger}
	ch := &chatHandler{tutor: cfg.Tutor, userHeader: userHeader, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /sessions", sh.listSessions)
	mux.HandleFunc("POST /sessions/new", sh.createSession)
	mux.HandleFunc("GET /sessions/{id}", sh.getSession)
	mux.HandleFunc("DELETE /sessions/{id}", sh.deleteSession)
	mux.HandleFunc("POST /chat", ch.send)

	// Rate limiter: per-IP token bucket (1 token/sec refill).
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Top-level mux keeps health probes outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health)
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
