package http

import (
	"net/http"
)

// RouterConfig carries the handlers and cross-cutting pieces served by
// NewRouter. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	Sessions      *SessionHandler
	Availability  *AvailabilityHandler
	Auth          *AuthHandler
	Authenticator Authenticator
	CreateLimiter *IPRateLimiter
	Metrics       HTTPRecorder
	Middleware    []func(http.Handler) http.Handler
}

// NewRouter builds the API handler. Middleware is applied outermost first.
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health)

	if cfg.Sessions != nil {
		var create http.Handler = http.HandlerFunc(cfg.Sessions.Create)
		if cfg.CreateLimiter != nil {
			create = cfg.CreateLimiter.Limit(create)
		}
		mux.Handle("POST /sessions", create)
		mux.HandleFunc("GET /sessions/{id}", cfg.Sessions.Get)
		mux.HandleFunc("POST /sessions/{id}/participants", cfg.Sessions.Join)
	}

	if cfg.Availability != nil {
		mux.HandleFunc("POST /sessions/{id}/availability", cfg.Availability.Publish)
		mux.HandleFunc("GET /sessions/{id}/availability", cfg.Availability.Aggregate)
		mux.HandleFunc("POST /sessions/{id}/availability/sync", cfg.Availability.Sync)
		mux.HandleFunc("POST /calendar/busy", cfg.Availability.Busy)
	}

	if cfg.Auth != nil {
		mux.HandleFunc("GET /auth/google/login", cfg.Auth.Login)
		mux.HandleFunc("GET /auth/google/callback", cfg.Auth.Callback)
		mux.HandleFunc("POST /auth/logout", cfg.Auth.Logout)
	}

	handler := instrument(cfg.Metrics, mux)
	handler = Authenticate(cfg.Authenticator)(handler)
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
