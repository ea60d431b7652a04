package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/example/meetgrid/internal/application"
	"github.com/example/meetgrid/internal/persistence"
	"github.com/example/meetgrid/internal/persistence/memory"
)

type failingCredentials struct {
	persistence.CredentialRepository
	err error
}

func (f failingCredentials) GetCredential(context.Context, string) (persistence.Credential, error) {
	return persistence.Credential{}, f.err
}

func newBroker(t *testing.T, repo persistence.CredentialRepository, google *fakeGoogle) *TokenBroker {
	t.Helper()
	sealer, err := NewSealer(testSecret)
	require.NoError(t, err)

	var cfg *oauth2.Config
	if google != nil {
		cfg = google.oauthConfig()
	}
	return NewTokenBroker(repo, sealer, cfg)
}

func TestTokenBroker_StoreAndCredential(t *testing.T) {
	t.Parallel()

	store := memory.New()
	broker := newBroker(t, store, nil)
	ctx := context.Background()

	expiry := time.Now().Add(time.Hour)
	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	stored, err := store.GetCredential(ctx, "google-1")
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Payload), "access-1", "payload must be sealed")

	credential, err := broker.Credential(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "google-1", credential.ParticipantID)
	assert.Equal(t, "access-1", credential.AccessToken)
	assert.Equal(t, "Bearer", credential.TokenType)
	assert.True(t, credential.Expiry.Equal(expiry))
}

func TestTokenBroker_MissingCredential(t *testing.T) {
	t.Parallel()

	broker := newBroker(t, memory.New(), nil)
	_, err := broker.Credential(context.Background(), "google-unknown")
	assert.ErrorIs(t, err, application.ErrNotAuthenticated)
}

func TestTokenBroker_StorageFailure(t *testing.T) {
	t.Parallel()

	broker := newBroker(t, failingCredentials{CredentialRepository: memory.New(), err: errors.New("disk full")}, nil)
	_, err := broker.Credential(context.Background(), "google-1")
	assert.ErrorIs(t, err, application.ErrStorage)
	assert.NotErrorIs(t, err, application.ErrNotAuthenticated)
}

func TestTokenBroker_CredentialSealedForAnotherParticipant(t *testing.T) {
	t.Parallel()

	store := memory.New()
	broker := newBroker(t, store, nil)
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{AccessToken: "access-1", Expiry: time.Now().Add(time.Hour)}))
	stored, err := store.GetCredential(ctx, "google-1")
	require.NoError(t, err)
	stored.ParticipantID = "google-2"
	require.NoError(t, store.SaveCredential(ctx, stored))

	_, err = broker.Credential(ctx, "google-2")
	assert.ErrorIs(t, err, application.ErrNotAuthenticated)
}

func TestTokenBroker_RefreshesExpiredToken(t *testing.T) {
	t.Parallel()

	google := newFakeGoogle(t)
	google.setToken(http.StatusOK, map[string]any{
		"access_token": "fresh-access",
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
	store := memory.New()
	broker := newBroker(t, store, google)
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{
		AccessToken:  "stale-access",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	credential, err := broker.Credential(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", credential.AccessToken)
	assert.Equal(t, []string{"refresh_token"}, google.grants())

	again, err := broker.Credential(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", again.AccessToken)
	assert.Len(t, google.grants(), 1, "refreshed token must be persisted")

	token, err := broker.load(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", token.RefreshToken, "refresh token must survive a refresh")
}

func TestTokenBroker_ExpiredWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	google := newFakeGoogle(t)
	broker := newBroker(t, memory.New(), google)
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}))

	_, err := broker.Credential(ctx, "google-1")
	assert.ErrorIs(t, err, application.ErrNotAuthenticated)
	assert.Empty(t, google.grants())
}

func TestTokenBroker_RevokedRefreshToken(t *testing.T) {
	t.Parallel()

	google := newFakeGoogle(t)
	google.setToken(http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Token has been expired or revoked."})
	store := memory.New()
	broker := newBroker(t, store, google)
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "revoked",
		Expiry:       time.Now().Add(-time.Hour),
	}))

	_, err := broker.Credential(ctx, "google-1")
	assert.ErrorIs(t, err, application.ErrNotAuthenticated)

	_, err = store.GetCredential(ctx, "google-1")
	assert.ErrorIs(t, err, persistence.ErrNotFound, "revoked credential must be forgotten")
}

func TestTokenBroker_RefreshEndpointDown(t *testing.T) {
	t.Parallel()

	google := newFakeGoogle(t)
	store := memory.New()
	broker := newBroker(t, store, google)
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}))
	google.server.Close()

	_, err := broker.Credential(ctx, "google-1")
	assert.ErrorIs(t, err, application.ErrUpstreamFetchFailed)
}

func TestTokenBroker_StoreKeepsRefreshToken(t *testing.T) {
	t.Parallel()

	broker := newBroker(t, memory.New(), nil)
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{AccessToken: "first", RefreshToken: "keep-me"}))
	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{AccessToken: "second"}))

	token, err := broker.load(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "second", token.AccessToken)
	assert.Equal(t, "keep-me", token.RefreshToken)

	assert.Error(t, broker.Store(ctx, "google-1", &oauth2.Token{}))
}

func TestTokenBroker_RefreshFailuresByResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		body       map[string]any
		wantErr    error
		wantStored bool
	}{
		{
			name:       "token endpoint unavailable",
			status:     http.StatusServiceUnavailable,
			body:       map[string]any{"error": "backend_error"},
			wantErr:    application.ErrUpstreamFetchFailed,
			wantStored: true,
		},
		{
			name:       "token endpoint internal error",
			status:     http.StatusInternalServerError,
			body:       map[string]any{},
			wantErr:    application.ErrUpstreamFetchFailed,
			wantStored: true,
		},
		{
			name:       "client rejected",
			status:     http.StatusUnauthorized,
			body:       map[string]any{"error": "invalid_client"},
			wantErr:    application.ErrNotAuthenticated,
			wantStored: true,
		},
		{
			name:       "grant revoked",
			status:     http.StatusBadRequest,
			body:       map[string]any{"error": "invalid_grant"},
			wantErr:    application.ErrNotAuthenticated,
			wantStored: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			google := newFakeGoogle(t)
			google.setToken(tt.status, tt.body)
			store := memory.New()
			broker := newBroker(t, store, google)
			ctx := context.Background()

			require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{
				AccessToken:  "stale",
				RefreshToken: "refresh-1",
				Expiry:       time.Now().Add(-time.Hour),
			}))

			_, err := broker.Credential(ctx, "google-1")
			require.ErrorIs(t, err, tt.wantErr)
			if errors.Is(tt.wantErr, application.ErrUpstreamFetchFailed) {
				assert.NotErrorIs(t, err, application.ErrNotAuthenticated)
			}

			_, err = store.GetCredential(ctx, "google-1")
			if tt.wantStored {
				assert.NoError(t, err, "credential must be kept")
			} else {
				assert.ErrorIs(t, err, persistence.ErrNotFound)
			}
		})
	}
}

func TestTokenBroker_ExpiryFollowsInjectedClock(t *testing.T) {
	t.Parallel()

	google := newFakeGoogle(t)
	store := memory.New()
	sealer, err := NewSealer(testSecret)
	require.NoError(t, err)

	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	broker := NewTokenBroker(store, sealer, google.oauthConfig(), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, broker.Store(ctx, "google-1", &oauth2.Token{
		AccessToken:  "still-valid",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       now.Add(time.Hour),
	}))

	credential, err := broker.Credential(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "still-valid", credential.AccessToken)
	assert.Empty(t, google.grants(), "a token valid at the broker's time must not be refreshed")

	now = now.Add(time.Hour - 10*time.Second)
	credential, err = broker.Credential(ctx, "google-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", credential.AccessToken, "a token about to expire is refreshed")
	assert.Equal(t, []string{"refresh_token"}, google.grants())
}
