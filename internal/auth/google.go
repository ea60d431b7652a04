package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauthapi "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/example/meetgrid/internal/calendar"
)

// ErrEmailNotVerified is returned when Google reports an unverified address.
var ErrEmailNotVerified = errors.New("auth: email address not verified")

// GoogleConfig holds the OAuth client registration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// Endpoint overrides Google's OAuth endpoints when set.
	Endpoint *oauth2.Endpoint
	// APIOptions are passed to the userinfo service.
	APIOptions []option.ClientOption
	// HTTPClient is used for code exchange.
	HTTPClient *http.Client
}

// Identity is the profile Google returns for a signed-in user.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// ParticipantID is the stable participant identifier for the identity.
func (i Identity) ParticipantID() string {
	return "google-" + i.Subject
}

// GoogleProvider drives the OAuth authorization code flow against Google.
type GoogleProvider struct {
	config     *oauth2.Config
	apiOptions []option.ClientOption
	httpClient *http.Client
}

// NewGoogleProvider builds a provider requesting read-only calendar access
// in addition to the user's profile and email.
func NewGoogleProvider(cfg GoogleConfig) (*GoogleProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURL == "" {
		return nil, fmt.Errorf("auth: google client id, secret and redirect url are required")
	}
	endpoint := google.Endpoint
	if cfg.Endpoint != nil {
		endpoint = *cfg.Endpoint
	}
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     endpoint,
			Scopes: []string{
				"openid",
				oauthapi.UserinfoEmailScope,
				oauthapi.UserinfoProfileScope,
				calendar.ReadOnlyScope,
			},
		},
		apiOptions: cfg.APIOptions,
		httpClient: cfg.HTTPClient,
	}, nil
}

// OAuthConfig exposes the client configuration for token refresh.
func (p *GoogleProvider) OAuthConfig() *oauth2.Config {
	return p.config
}

// AuthCodeURL returns the consent page URL. Offline access with a forced
// consent prompt makes Google issue a refresh token.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if p.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	}
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// Identify looks up the profile of the token's owner. Unverified email
// addresses are rejected.
func (p *GoogleProvider) Identify(ctx context.Context, token *oauth2.Token) (Identity, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(token))}, p.apiOptions...)
	svc, err := oauthapi.NewService(ctx, opts...)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Identity{}, fmt.Errorf("failed to fetch userinfo: %w", err)
	}
	if info.Id == "" {
		return Identity{}, fmt.Errorf("auth: userinfo response has no subject")
	}
	if info.VerifiedEmail == nil || !*info.VerifiedEmail {
		return Identity{}, ErrEmailNotVerified
	}

	return Identity{
		Subject: info.Id,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
