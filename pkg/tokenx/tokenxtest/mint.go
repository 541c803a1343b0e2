// Package tokenxtest mints provider-shaped tokens for tests.
package tokenxtest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/invweb/pkg/tokenx"
)

var testKey = []byte("tokenxtest-signing-key")

// Options describes the token to mint.
type Options struct {
	Subject  string
	Username string
	Name     string
	Email    string
	Roles    []string
	TTL      time.Duration // relative to now; negative for already expired
	NoExpiry bool
}

// Mint returns a signed HS256 token carrying Keycloak-style claims. The
// signature is meaningless outside tests.
func Mint(opts Options) string {
	now := time.Now()

	claims := tokenx.ProviderClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  opts.Subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
		PreferredUsername: opts.Username,
		Name:              opts.Name,
		Email:             opts.Email,
	}
	claims.RealmAccess.Roles = opts.Roles

	if !opts.NoExpiry {
		ttl := opts.TTL
		if ttl == 0 {
			ttl = 5 * time.Minute
		}
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		panic("tokenxtest: " + err.Error())
	}
	return signed
}
