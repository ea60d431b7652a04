package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/meetgrid/internal/application"
)

type sessionService interface {
	CreateSession(ctx context.Context) (application.Session, error)
	GetSession(ctx context.Context, sessionID string) (application.SessionDetails, error)
	JoinSession(ctx context.Context, params application.JoinSessionParams) error
}

// SessionHandler serves session creation, lookup and membership.
type SessionHandler struct {
	service   sessionService
	responder responder
	logger    *slog.Logger
}

// NewSessionHandler constructs a SessionHandler.
func NewSessionHandler(service sessionService, logger *slog.Logger) *SessionHandler {
	base := defaultLogger(logger)
	return &SessionHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *SessionHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "SessionHandler", operation, attrs...)
}

// Create handles POST /sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	session, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Create", "session_id", session.ID).InfoContext(r.Context(), "session created")
	w.Header().Set("Location", "/sessions/"+session.ID)
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, createSessionResponse{
		SessionID: session.ID,
		CreatedAt: formatTime(session.CreatedAt),
	})
}

// Get handles GET /sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	details, err := h.service.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(details))
}

// Join handles POST /sessions/{id}/participants.
func (h *SessionHandler) Join(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	sessionID := r.PathValue("id")

	if err := h.service.JoinSession(r.Context(), application.JoinSessionParams{
		Principal: principal,
		SessionID: sessionID,
	}); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.log(r.Context(), "Join", "session_id", sessionID).InfoContext(r.Context(), "participant joined")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
