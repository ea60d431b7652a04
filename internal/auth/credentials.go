package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/persistence"
)

// expiryMargin treats tokens about to expire as expired.
const expiryMargin = 30 * time.Second

// TokenBroker keeps participants' OAuth tokens sealed in a credential
// repository and hands out fresh access tokens, refreshing them when needed.
type TokenBroker struct {
	repo       persistence.CredentialRepository
	sealer     *Sealer
	oauth      *oauth2.Config
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// BrokerOption customises a TokenBroker.
type BrokerOption func(*TokenBroker)

// WithHTTPClient sets the client used for token refresh requests.
func WithHTTPClient(client *http.Client) BrokerOption {
	return func(b *TokenBroker) { b.httpClient = client }
}

// WithClock overrides the broker's clock.
func WithClock(now func() time.Time) BrokerOption {
	return func(b *TokenBroker) { b.now = now }
}

// WithLogger sets the broker's logger.
func WithLogger(logger *slog.Logger) BrokerOption {
	return func(b *TokenBroker) { b.logger = logger }
}

// NewTokenBroker wires a broker. oauthConfig supplies the token endpoint
// and client credentials used for refresh.
func NewTokenBroker(repo persistence.CredentialRepository, sealer *Sealer, oauthConfig *oauth2.Config, opts ...BrokerOption) *TokenBroker {
	b := &TokenBroker{
		repo:   repo,
		sealer: sealer,
		oauth:  oauthConfig,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var _ application.CredentialProvider = (*TokenBroker)(nil)

// Store seals and saves the token for the participant, replacing any
// previous one. A token without a refresh token keeps the stored refresh
// token, as Google omits it on repeated consent.
func (b *TokenBroker) Store(ctx context.Context, participantID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("auth: token has no access token")
	}
	if token.RefreshToken == "" {
		if previous, err := b.load(ctx, participantID); err == nil && previous.RefreshToken != "" {
			merged := *token
			merged.RefreshToken = previous.RefreshToken
			token = &merged
		}
	}

	payload, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("auth: encode token: %w", err)
	}
	sealed, err := b.sealer.Seal(payload, []byte(participantID))
	if err != nil {
		return err
	}

	if err := b.repo.SaveCredential(ctx, persistence.Credential{
		ParticipantID: participantID,
		Payload:       sealed,
		UpdatedAt:     b.now().UTC(),
	}); err != nil {
		return &application.StorageError{Operation: "save credential", Err: err}
	}
	return nil
}

// Credential returns a valid access token for the participant. A missing,
// unreadable or revoked credential yields application.ErrNotAuthenticated.
func (b *TokenBroker) Credential(ctx context.Context, participantID string) (application.Credential, error) {
	token, err := b.load(ctx, participantID)
	if err != nil {
		return application.Credential{}, err
	}

	if !b.usable(token) {
		token, err = b.refresh(ctx, participantID, token)
		if err != nil {
			return application.Credential{}, err
		}
	}

	return application.Credential{
		ParticipantID: participantID,
		AccessToken:   token.AccessToken,
		TokenType:     token.Type(),
		Expiry:        token.Expiry,
	}, nil
}

// usable reports whether the access token can still be sent, leaving a
// margin for the request itself. A token without expiry never expires.
func (b *TokenBroker) usable(token *oauth2.Token) bool {
	if token.AccessToken == "" {
		return false
	}
	return token.Expiry.IsZero() || b.now().Add(expiryMargin).Before(token.Expiry)
}

// Forget removes the participant's stored credential.
func (b *TokenBroker) Forget(ctx context.Context, participantID string) error {
	if err := b.repo.DeleteCredential(ctx, participantID); err != nil && !errors.Is(err, persistence.ErrNotFound) {
		return &application.StorageError{Operation: "delete credential", Err: err}
	}
	return nil
}

func (b *TokenBroker) load(ctx context.Context, participantID string) (*oauth2.Token, error) {
	stored, err := b.repo.GetCredential(ctx, participantID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, fmt.Errorf("%w: no stored credential", application.ErrNotAuthenticated)
	}
	if err != nil {
		return nil, &application.StorageError{Operation: "get credential", Err: err}
	}

	payload, err := b.sealer.Open(stored.Payload, []byte(participantID))
	if err != nil {
		b.logger.WarnContext(ctx, "stored credential could not be opened", "participant_id", participantID, "error", err)
		return nil, fmt.Errorf("%w: %v", application.ErrNotAuthenticated, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(payload, &token); err != nil {
		return nil, fmt.Errorf("%w: decode credential: %v", application.ErrNotAuthenticated, err)
	}
	return &token, nil
}

func (b *TokenBroker) refresh(ctx context.Context, participantID string, token *oauth2.Token) (*oauth2.Token, error) {
	if token.RefreshToken == "" || b.oauth == nil {
		return nil, fmt.Errorf("%w: access token expired", application.ErrNotAuthenticated)
	}

	if b.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, b.httpClient)
	}
	// An expiry in the past under any clock forces the token source to refresh.
	expired := *token
	expired.Expiry = time.Unix(1, 0)

	refreshed, err := b.oauth.TokenSource(ctx, &expired).Token()
	if err != nil {
		rejected, revoked := grantRejected(err)
		if revoked {
			if forgetErr := b.Forget(ctx, participantID); forgetErr != nil {
				b.logger.WarnContext(ctx, "failed to forget revoked credential", "participant_id", participantID, "error", forgetErr)
			}
		}
		if rejected {
			return nil, fmt.Errorf("%w: refresh rejected: %v", application.ErrNotAuthenticated, err)
		}
		return nil, &application.UpstreamError{Err: fmt.Errorf("refresh token: %w", err)}
	}

	if err := b.Store(ctx, participantID, refreshed); err != nil {
		b.logger.WarnContext(ctx, "failed to save refreshed token", "participant_id", participantID, "error", err)
	}
	return refreshed, nil
}
