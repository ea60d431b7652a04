package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/auth"
)

var errStateMismatch = errors.New("sign-in attempt could not be verified, start again")

type signInService interface {
	LoginURL(state string) string
	CompleteSignIn(ctx context.Context, code string) (auth.SignInResult, error)
}

type stateCodec interface {
	Begin(returnTo string) (state, cookie string, err error)
	Finish(state, cookie string) (string, error)
}

// AuthHandler drives the Google sign-in redirect flow.
type AuthHandler struct {
	service       signInService
	states        stateCodec
	secureCookies bool
	responder     responder
	logger        *slog.Logger
}

// NewAuthHandler constructs an AuthHandler. secureCookies marks cookies as
// HTTPS only.
func NewAuthHandler(service signInService, states stateCodec, secureCookies bool, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{
		service:       service,
		states:        states,
		secureCookies: secureCookies,
		responder:     newResponder(base),
		logger:        base,
	}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

// Login handles GET /auth/google/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.states == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state, cookie, err := h.states.Begin(r.URL.Query().Get("return_to"))
	if err != nil {
		h.log(r.Context(), "Login").ErrorContext(r.Context(), "failed to begin sign-in", "error", err, "error_kind", "internal")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookieName,
		Value:    cookie,
		Path:     "/auth/google",
		MaxAge:   int(auth.StateTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.service.LoginURL(state), http.StatusFound)
}

// Callback handles GET /auth/google/callback.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil || h.states == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	logger := h.log(r.Context(), "Callback")
	h.clearStateCookie(w)

	if reason := query.Get("error"); reason != "" {
		logger.WarnContext(r.Context(), "consent denied", "reason", reason, "error_kind", "unauthorized")
		h.responder.handleServiceError(r.Context(), w, application.ErrNotAuthenticated)
		return
	}

	cookie, err := r.Cookie(auth.StateCookieName)
	if err != nil {
		logger.WarnContext(r.Context(), "missing state cookie", "error_kind", "unauthorized")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errStateMismatch)
		return
	}
	returnTo, err := h.states.Finish(query.Get("state"), cookie.Value)
	if err != nil {
		logger.WarnContext(r.Context(), "state check failed", "error", err, "error_kind", "unauthorized")
		h.responder.writeError(r.Context(), w, http.StatusUnauthorized, errStateMismatch)
		return
	}

	code := query.Get("code")
	if code == "" {
		vErr := &application.ValidationError{}
		addFieldError(vErr, "code", "is required")
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.CompleteSignIn(r.Context(), code)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		Expires:  result.ExpiresAt.UTC(),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logger.InfoContext(r.Context(), "participant signed in", "participant_id", result.ParticipantID)
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	secure := h != nil && h.secureCookies
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.StateCookieName,
		Value:    "",
		Path:     "/auth/google",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
