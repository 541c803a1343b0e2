// Package tokenstore persists the session's OAuth2 tokens and the pending
// authorization state in browser cookies.
package tokenstore

import (
	"time"
)

// Cookie names.
const (
	AccessTokenCookie  = "auth_token"
	RefreshTokenCookie = "refresh_token"
	IDTokenCookie      = "id_token"
	StateCookie        = "auth_state"
)

// Lifetimes of the persisted entries.
const (
	AccessTokenTTL  = 24 * time.Hour
	RefreshTokenTTL = 30 * 24 * time.Hour
	IDTokenTTL      = 24 * time.Hour
	StateTTL        = 10 * time.Minute
)

// Bundle is the set of tokens held for a session. Empty fields mean absent.
type Bundle struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
}

// Empty reports whether no token is present.
func (b Bundle) Empty() bool {
	return b.AccessToken == "" && b.RefreshToken == "" && b.IDToken == ""
}

// PendingAuth is the CSRF state and PKCE verifier stored between the
// redirect to the provider and the callback.
type PendingAuth struct {
	State     string    `json:"s"`
	Verifier  string    `json:"v"`
	CreatedAt time.Time `json:"t"`
}

// Store is the token persistence used by the session controller.
type Store interface {
	// Get returns whatever tokens are present. It never fails.
	Get() Bundle

	// Set persists every non-empty field of b. Empty fields remove the
	// corresponding entry.
	Set(b Bundle) error

	// Clear removes all tokens and any pending authorization state.
	Clear()

	// SetState records the pending authorization, replacing any previous one.
	SetState(p PendingAuth) error

	// ConsumeState returns the pending authorization and removes it in the
	// same step. The second result is false when nothing valid was stored.
	ConsumeState() (PendingAuth, bool)
}
