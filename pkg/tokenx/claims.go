// Package tokenx decodes the claims segment of bearer tokens issued by the
// identity provider. Signatures are never verified here: the provider and the
// inventory backend do that. The BFF only reads claims for display and for
// local role gating.
package tokenx

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RolePrefix is the Spring-style authority prefix some backends put in front
// of realm roles ("ROLE_ADMIN" for "ADMIN").
const RolePrefix = "ROLE_"

// ProviderClaims is the raw claim layout of a Keycloak-style access token.
type ProviderClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`

	RealmAccess struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`

	// Roles is a non-standard top-level claim; its elements may be strings
	// or {name}/{authority} objects.
	Roles json.RawMessage `json:"roles,omitempty"`
}

// Claims is the decoded, normalized view of a token used by the rest of the
// application. It is derived on demand and never stored.
type Claims struct {
	Subject           string
	PreferredUsername string
	Name              string
	Email             string
	Roles             []Role // provider order
	IssuedAt          time.Time
	ExpiresAt         time.Time // zero when the claim is absent
}

// Expired reports whether the claims are no longer current at now. Claims
// without an expiry are always expired.
func (c *Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}

// Decode parses the unverified claims segment of token. It returns false when
// the token does not have exactly three segments or when the middle segment
// is not base64 encoded JSON.
func Decode(token string) (*Claims, bool) {
	raw, ok := DecodeRaw(token)
	if !ok {
		return nil, false
	}

	c := &Claims{
		Subject:           raw.Subject,
		PreferredUsername: raw.PreferredUsername,
		Name:              raw.Name,
		Email:             raw.Email,
		Roles:             make([]Role, 0, len(raw.RealmAccess.Roles)),
	}
	for _, r := range raw.RealmAccess.Roles {
		if r != "" {
			c.Roles = append(c.Roles, Role{Name: r})
		}
	}
	c.Roles = appendUnique(c.Roles, NormalizeRoles(raw.Roles)...)

	if raw.IssuedAt != nil {
		c.IssuedAt = raw.IssuedAt.Time
	}
	if raw.ExpiresAt != nil {
		c.ExpiresAt = raw.ExpiresAt.Time
	}

	return c, true
}

// DecodeRaw is like Decode but returns the provider claim layout untouched.
func DecodeRaw(token string) (*ProviderClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, false
	}

	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, false
	}

	var raw ProviderClaims
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, false
	}

	return &raw, true
}

// decodeSegment accepts base64url with or without padding, and falls back to
// the standard alphabet since some providers are sloppy about it.
func decodeSegment(seg string) ([]byte, error) {
	seg = strings.TrimRight(seg, "=")
	b, err := base64.RawURLEncoding.DecodeString(seg)
	if err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(seg)
}
