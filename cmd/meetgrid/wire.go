package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/meetgrid/internal/adapter"
	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/auth"
	"github.com/example/meetgrid/internal/calendar"
	"github.com/example/meetgrid/internal/config"
	httptransport "github.com/example/meetgrid/internal/http"
	"github.com/example/meetgrid/internal/instrumentation"
	"github.com/example/meetgrid/internal/persistence"
	"github.com/example/meetgrid/internal/persistence/memory"
	rediscache "github.com/example/meetgrid/internal/persistence/redis"
	"github.com/example/meetgrid/internal/persistence/sqlite"
	"github.com/example/meetgrid/internal/scheduler"
)

// services holds everything built from one configuration.
type services struct {
	metrics      *instrumentation.Metrics
	sessions     *application.SessionService
	availability *application.AvailabilityService

	// signIn and states are nil when Google sign-in is not configured.
	signIn *auth.Service
	states *auth.StateCodec

	closers []func() error
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func newSessionID() string {
	return uuid.NewString()
}

// wire builds the application services over storage. The availability cache
// lives in SQLite, Redis or memory according to cfg.CacheBackend.
func wire(ctx context.Context, cfg config.Config, storage *sqlite.Storage, logger *slog.Logger) (*services, error) {
	s := &services{metrics: instrumentation.New()}

	cache, closeCache, err := availabilityRepository(ctx, cfg, storage)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closeCache)

	sessions := adapter.NewSessionStore(storage.Sessions)
	s.sessions = application.NewSessionServiceWithLogger(sessions, newSessionID, time.Now, logger)

	deps := application.AvailabilityServiceDeps{
		Sessions:     sessions,
		Cache:        adapter.NewAvailabilityCache(cache),
		Grid:         scheduler.DefaultGrid().WithLocation(cfg.DisplayLocation),
		FetchTimeout: cfg.FetchTimeout,
		Metrics:      s.metrics,
		Logger:       logger,
	}

	if cfg.GoogleEnabled() {
		secret := []byte(cfg.SessionSecret)

		provider, err := auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
		if err != nil {
			s.close()
			return nil, err
		}
		sealer, err := auth.NewSealer(secret)
		if err != nil {
			s.close()
			return nil, err
		}
		tokens, err := auth.NewSessionTokens(secret, cfg.SessionTTL, nil)
		if err != nil {
			s.close()
			return nil, err
		}
		if s.states, err = auth.NewStateCodec(secret, nil); err != nil {
			s.close()
			return nil, err
		}

		broker := auth.NewTokenBroker(storage.Credentials, sealer, provider.OAuthConfig(), auth.WithLogger(logger))
		deps.Credentials = broker
		deps.Fetcher = adapter.NewCalendarFetcher(calendar.NewClient())
		s.signIn = auth.NewService(provider, storage.Participants, broker, tokens, nil, logger)
	} else {
		logger.WarnContext(ctx, "google sign-in is not configured; only anonymous endpoints are usable")
	}

	s.availability = application.NewAvailabilityService(deps)
	return s, nil
}

func availabilityRepository(ctx context.Context, cfg config.Config, storage *sqlite.Storage) (persistence.AvailabilityRepository, func() error, error) {
	switch cfg.CacheBackend {
	case config.CacheRedis:
		cache, err := rediscache.Connect(ctx, rediscache.Options{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			Retention: cfg.AvailabilityRetention,
		})
		if err != nil {
			return nil, nil, err
		}
		return cache, cache.Close, nil
	case config.CacheMemory:
		store := memory.New()
		return store, store.Close, nil
	case config.CacheSQLite, "":
		return storage.Availability, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// handler assembles the API router and returns the create-session limiter so
// the caller can sweep it.
func (s *services) handler(cfg config.Config, logger *slog.Logger) (http.Handler, *httptransport.IPRateLimiter) {
	limiter := httptransport.NewIPRateLimiter(cfg.CreateSessionRate, cfg.CreateSessionBurst)

	routes := httptransport.RouterConfig{
		Sessions:      httptransport.NewSessionHandler(s.sessions, logger),
		Availability:  httptransport.NewAvailabilityHandler(s.availability, time.Now, logger),
		CreateLimiter: limiter,
		Metrics:       s.metrics,
		Middleware:    []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	}
	if s.signIn != nil {
		secure := strings.HasPrefix(cfg.GoogleRedirectURL, "https://")
		routes.Auth = httptransport.NewAuthHandler(s.signIn, s.states, secure, logger)
		routes.Authenticator = s.signIn
	}
	return httptransport.NewRouter(routes), limiter
}

// every runs fn each interval until ctx ends.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}

const shutdownTimeout = 10 * time.Second

func serveUntilDone(ctx context.Context, server *http.Server, logger *slog.Logger, name string) error {
	addr := server.Addr
	if addr == "" {
		addr = ":http"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return serveListener(ctx, server, ln, logger, name)
}

// serveListener returns only after Shutdown has drained in-flight requests
// or its timeout expired.
func serveListener(ctx context.Context, server *http.Server, ln net.Listener, logger *slog.Logger, name string) error {
	stopped := make(chan struct{})
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "server", name, "error", err)
		}
	}()

	logger.Info("listening", "server", name, "addr", ln.Addr().String())
	err := server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-drained
		logger.Info("server stopped", "server", name)
		return nil
	}
	close(stopped)
	return fmt.Errorf("%s server: %w", name, err)
}
