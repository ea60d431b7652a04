package http

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/auth"
)

type stubAuthenticator map[string]string

func (s stubAuthenticator) Authenticate(token string) (application.Principal, error) {
	id, ok := s[token]
	if !ok {
		return application.Principal{}, application.ErrNotAuthenticated
	}
	return application.Principal{ParticipantID: id}, nil
}

type stubSessionService struct {
	mu      sync.Mutex
	session application.Session
	details application.SessionDetails
	err     error
	joins   []application.JoinSessionParams
}

func (s *stubSessionService) CreateSession(context.Context) (application.Session, error) {
	return s.session, s.err
}

func (s *stubSessionService) GetSession(_ context.Context, sessionID string) (application.SessionDetails, error) {
	if s.err != nil {
		return application.SessionDetails{}, s.err
	}
	if sessionID != s.details.Session.ID {
		return application.SessionDetails{}, application.ErrNotFound
	}
	return s.details, nil
}

func (s *stubSessionService) JoinSession(_ context.Context, params application.JoinSessionParams) error {
	if !params.Principal.Authenticated() {
		return application.ErrNotAuthenticated
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins = append(s.joins, params)
	return s.err
}

type stubAvailabilityService struct {
	mu         sync.Mutex
	err        error
	result     application.AggregatedAvailability
	busy       []application.BusyInterval
	published  []application.PublishAvailabilityParams
	aggregated []application.AggregateParams
	synced     []application.SyncAvailabilityParams
	fetched    []application.FetchBusyParams
}

func (s *stubAvailabilityService) PublishAvailability(_ context.Context, params application.PublishAvailabilityParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, params)
	return s.err
}

func (s *stubAvailabilityService) GetAggregatedAvailability(_ context.Context, params application.AggregateParams) (application.AggregatedAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aggregated = append(s.aggregated, params)
	return s.result, s.err
}

func (s *stubAvailabilityService) SyncAvailability(_ context.Context, params application.SyncAvailabilityParams) (application.AggregatedAvailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, params)
	return s.result, s.err
}

func (s *stubAvailabilityService) FetchBusy(_ context.Context, params application.FetchBusyParams) ([]application.BusyInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, params)
	return s.busy, s.err
}

type stubSignIn struct {
	result auth.SignInResult
	err    error
	codes  []string
}

func (s *stubSignIn) LoginURL(state string) string {
	return "https://accounts.example.test/auth?state=" + state
}

func (s *stubSignIn) CompleteSignIn(_ context.Context, code string) (auth.SignInResult, error) {
	s.codes = append(s.codes, code)
	return s.result, s.err
}

var errStubState = errors.New("stub state mismatch")

type stubStates struct {
	returnTo string
}

func (s *stubStates) Begin(returnTo string) (string, string, error) {
	s.returnTo = returnTo
	return "nonce-1", "sealed-1", nil
}

func (s *stubStates) Finish(state, cookie string) (string, error) {
	if state != "nonce-1" || cookie != "sealed-1" {
		return "", errStubState
	}
	if s.returnTo == "" {
		return "/", nil
	}
	return s.returnTo, nil
}

type recordedRequest struct {
	route  string
	method string
	status int
}

type stubRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *stubRecorder) ObserveHTTP(route, method string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, recordedRequest{route: route, method: method, status: status})
}
