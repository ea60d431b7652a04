package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// MinSecretLength is the shortest accepted master secret.
const MinSecretLength = 32

const keySalt = "meetgrid/v1"

// Key purposes. Each purpose yields an independent key from one secret.
const (
	purposeSessionSigning    = "session-signing"
	purposeCredentialSealing = "credential-sealing"
	purposeStateSealing      = "oauth-state-sealing"
)

// ErrWeakSecret is returned when the master secret is too short.
var ErrWeakSecret = errors.New("auth: secret must be at least 32 bytes")

// deriveKey expands the master secret into a 32 byte key bound to purpose.
func deriveKey(secret []byte, purpose string) ([]byte, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, []byte(keySalt), []byte(purpose)), key); err != nil {
		return nil, fmt.Errorf("auth: derive %s key: %w", purpose, err)
	}
	return key, nil
}
