package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "meetgrid_session"

const sessionIssuer = "meetgrid"

var (
	// ErrSessionExpired is returned for a well-formed token past its expiry.
	ErrSessionExpired = errors.New("auth: session expired")
	// ErrSessionInvalid is returned for malformed or forged tokens.
	ErrSessionInvalid = errors.New("auth: session invalid")
)

// SessionClaims are the claims carried by a session token. The subject is
// the participant id.
type SessionClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// SessionTokens issues and verifies HS256 session tokens.
type SessionTokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewSessionTokens derives a signing key from the master secret.
func NewSessionTokens(secret []byte, ttl time.Duration, now func() time.Time) (*SessionTokens, error) {
	key, err := deriveKey(secret, purposeSessionSigning)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: session ttl must be positive")
	}
	if now == nil {
		now = time.Now
	}
	return &SessionTokens{key: key, ttl: ttl, now: now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *SessionTokens) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for the participant and returns it with its expiry.
func (s *SessionTokens) Issue(participantID, email string) (string, time.Time, error) {
	if participantID == "" {
		return "", time.Time{}, fmt.Errorf("auth: participant id is required")
	}

	now := s.now()
	expires := now.Add(s.ttl)
	claims := SessionClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   participantID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign session: %w", err)
	}
	return token, expires, nil
}

// Verify checks the token signature and expiry and returns its claims.
func (s *SessionTokens) Verify(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrSessionInvalid
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrSessionInvalid
	}
	return claims, nil
}
