package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StateCookieName is the cookie binding a sign-in attempt to the browser.
const StateCookieName = "meetgrid_oauth_state"

// StateTTL bounds how long a sign-in attempt stays valid.
const StateTTL = 10 * time.Minute

// ErrStateMismatch is returned when the callback state does not match the
// browser's state cookie.
var ErrStateMismatch = errors.New("auth: oauth state mismatch")

type statePayload struct {
	Nonce    string    `json:"n"`
	ReturnTo string    `json:"r"`
	Expires  time.Time `json:"e"`
}

// StateCodec produces the opaque state parameter for the OAuth redirect and
// the sealed cookie that remembers it.
type StateCodec struct {
	sealer *Sealer
	now    func() time.Time
}

// NewStateCodec derives a state sealing key from the master secret.
func NewStateCodec(secret []byte, now func() time.Time) (*StateCodec, error) {
	sealer, err := newSealer(secret, purposeStateSealing)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &StateCodec{sealer: sealer, now: now}, nil
}

// Begin returns the state parameter and the cookie value for a new sign-in
// attempt that should end at returnTo.
func (c *StateCodec) Begin(returnTo string) (state, cookie string, err error) {
	payload := statePayload{
		Nonce:    uuid.NewString(),
		ReturnTo: SafeReturnPath(returnTo),
		Expires:  c.now().Add(StateTTL).UTC(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("auth: encode state: %w", err)
	}
	sealed, err := c.sealer.Seal(raw, nil)
	if err != nil {
		return "", "", err
	}
	return payload.Nonce, base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Finish validates the callback state against the cookie and returns the
// path to redirect to.
func (c *StateCodec) Finish(state, cookie string) (string, error) {
	sealed, err := base64.RawURLEncoding.DecodeString(cookie)
	if err != nil {
		return "", ErrStateMismatch
	}
	raw, err := c.sealer.Open(sealed, nil)
	if err != nil {
		return "", ErrStateMismatch
	}

	var payload statePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", ErrStateMismatch
	}
	if subtle.ConstantTimeCompare([]byte(payload.Nonce), []byte(state)) != 1 {
		return "", ErrStateMismatch
	}
	if c.now().After(payload.Expires) {
		return "", fmt.Errorf("%w: attempt expired", ErrStateMismatch)
	}
	return payload.ReturnTo, nil
}

// SafeReturnPath limits post sign-in redirects to local absolute paths.
func SafeReturnPath(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") || strings.HasPrefix(path, "/\\") {
		return "/"
	}
	return path
}
