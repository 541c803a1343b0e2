package domain

import "github.com/aussiebroadwan/invweb/pkg/tokenx"

// User is the signed-in person as the web tier sees it. It is derived from
// token claims or the backend's "who am I" and never stored.
type User struct {
	Subject     string        `json:"sub,omitempty"`
	Username    string        `json:"username"`
	DisplayName string        `json:"name,omitempty"`
	Email       string        `json:"email,omitempty"`
	Roles       []tokenx.Role `json:"roles"`
}

// UserFromClaims builds a User from decoded access token claims.
func UserFromClaims(c *tokenx.Claims) *User {
	u := &User{
		Subject:     c.Subject,
		Username:    c.PreferredUsername,
		DisplayName: c.Name,
		Email:       c.Email,
		Roles:       c.Roles,
	}
	if u.Username == "" {
		u.Username = c.Subject
	}
	if u.Roles == nil {
		u.Roles = []tokenx.Role{}
	}
	return u
}
