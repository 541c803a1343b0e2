// Package authz holds the role and session checks shared by the web handlers.
package authz

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/invweb/pkg/tokenx"
)

// Realm roles understood by the inventory backend.
const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLEADO"
)

// HasRole reports whether roles grants role. A role matches either by name
// or by its prefixed authority form, both compared case-insensitively.
func HasRole(roles []tokenx.Role, role string) bool {
	if role == "" {
		return false
	}
	prefixed := tokenx.RolePrefix + role
	for _, r := range roles {
		if strings.EqualFold(r.Name, role) || strings.EqualFold(r.Name, prefixed) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether any of want is granted. An empty want never
// matches.
func HasAnyRole(roles []tokenx.Role, want ...string) bool {
	for _, w := range want {
		if HasRole(roles, w) {
			return true
		}
	}
	return false
}

// IsAuthenticated reports whether accessToken decodes and has not expired
// at now. It is evaluated on every call; nothing is cached.
func IsAuthenticated(accessToken string, now time.Time) bool {
	if accessToken == "" {
		return false
	}
	c, ok := tokenx.Decode(accessToken)
	if !ok {
		return false
	}
	return !c.Expired(now)
}

// Permissions are the product actions a user may take in the dashboard.
type Permissions struct {
	CanCreate bool `json:"canCreate"`
	CanEdit   bool `json:"canEdit"`
	CanDelete bool `json:"canDelete"`
}

// PermissionsFor derives dashboard permissions. Anonymous users get none.
func PermissionsFor(authenticated bool, roles []tokenx.Role) Permissions {
	if !authenticated {
		return Permissions{}
	}
	write := HasAnyRole(roles, RoleAdmin, RoleEmployee)
	return Permissions{
		CanCreate: write,
		CanEdit:   write,
		CanDelete: HasRole(roles, RoleAdmin),
	}
}
