package auth

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// ErrUnsealFailed is returned when sealed data was tampered with or was
// sealed under a different secret.
var ErrUnsealFailed = errors.New("auth: unable to open sealed data")

// Sealer encrypts small payloads with XChaCha20-Poly1305. Output is
// nonce || ciphertext || tag.
type Sealer struct {
	key []byte
}

// NewSealer derives a credential sealing key from the master secret.
func NewSealer(secret []byte) (*Sealer, error) {
	return newSealer(secret, purposeCredentialSealing)
}

func newSealer(secret []byte, purpose string) (*Sealer, error) {
	key, err := deriveKey(secret, purpose)
	if err != nil {
		return nil, err
	}
	return &Sealer{key: key}, nil
}

// Seal encrypts plaintext under a random nonce. The associated data must be
// presented again to Open.
func (s *Sealer) Seal(plaintext, associated []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("auth: create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("auth: generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, associated), nil
}

// Open decrypts data produced by Seal with the same associated data.
func (s *Sealer) Open(sealed, associated []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return nil, fmt.Errorf("auth: create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrUnsealFailed
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, associated)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plaintext, nil
}
