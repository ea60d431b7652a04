package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/logging"
	"github.com/example/meetgrid/internal/persistence"
)

// IdentityProvider is the part of GoogleProvider used during sign-in.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	Identify(ctx context.Context, token *oauth2.Token) (Identity, error)
}

// CredentialStore persists a signed-in participant's OAuth token.
type CredentialStore interface {
	Store(ctx context.Context, participantID string, token *oauth2.Token) error
}

// SignInResult is returned after a completed sign-in.
type SignInResult struct {
	ParticipantID string
	Email         string
	SessionToken  string
	ExpiresAt     time.Time
}

// Service completes Google sign-in: it records the participant, keeps the
// calendar credential and issues a session token.
type Service struct {
	provider     IdentityProvider
	participants persistence.ParticipantRepository
	credentials  CredentialStore
	tokens       *SessionTokens
	now          func() time.Time
	logger       *slog.Logger
}

// NewService wires the sign-in service.
func NewService(provider IdentityProvider, participants persistence.ParticipantRepository, credentials CredentialStore, tokens *SessionTokens, now func() time.Time, logger *slog.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider:     provider,
		participants: participants,
		credentials:  credentials,
		tokens:       tokens,
		now:          now,
		logger:       logger,
	}
}

// LoginURL returns the provider consent URL for the given state.
func (s *Service) LoginURL(state string) string {
	return s.provider.AuthCodeURL(state)
}

// Tokens returns the session token issuer.
func (s *Service) Tokens() *SessionTokens {
	return s.tokens
}

// CompleteSignIn exchanges the authorization code and signs the user in.
// Provider rejections map to application.ErrNotAuthenticated.
func (s *Service) CompleteSignIn(ctx context.Context, code string) (result SignInResult, err error) {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	logger = logger.With("service", "AuthService", "operation", "CompleteSignIn")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to complete sign-in", "error", err, "error_kind", application.ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "participant signed in", "participant_id", result.ParticipantID)
	}()

	if code == "" {
		err = fmt.Errorf("%w: missing authorization code", application.ErrNotAuthenticated)
		return
	}

	token, err := s.provider.Exchange(ctx, code)
	if err != nil {
		err = classifyProviderError(err)
		return
	}

	identity, err := s.provider.Identify(ctx, token)
	if err != nil {
		err = classifyProviderError(err)
		return
	}

	participantID := identity.ParticipantID()
	now := s.now().UTC()
	if err = s.participants.UpsertParticipant(ctx, persistence.Participant{
		ID:          participantID,
		Email:       identity.Email,
		DisplayName: identity.Name,
		AvatarURL:   identity.Picture,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		err = &application.StorageError{Operation: "upsert participant", Err: err}
		return
	}

	if err = s.credentials.Store(ctx, participantID, token); err != nil {
		return
	}

	sessionToken, expires, err := s.tokens.Issue(participantID, identity.Email)
	if err != nil {
		return
	}

	result = SignInResult{
		ParticipantID: participantID,
		Email:         identity.Email,
		SessionToken:  sessionToken,
		ExpiresAt:     expires,
	}
	return
}

// Authenticate resolves a session token to a principal.
func (s *Service) Authenticate(token string) (application.Principal, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return application.Principal{}, fmt.Errorf("%w: %v", application.ErrNotAuthenticated, err)
	}
	return application.Principal{ParticipantID: claims.Subject}, nil
}

func classifyProviderError(err error) error {
	if rejected, _ := grantRejected(err); rejected {
		return fmt.Errorf("%w: %v", application.ErrNotAuthenticated, err)
	}
	switch {
	case errors.Is(err, ErrEmailNotVerified):
		return fmt.Errorf("%w: %v", application.ErrNotAuthenticated, err)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return &application.UpstreamError{Err: err}
	}
}
