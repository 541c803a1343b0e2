package authz_test

import (
	"encoding/base64"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/invweb/pkg/authz"
	"github.com/aussiebroadwan/invweb/pkg/tokenx"
	"github.com/aussiebroadwan/invweb/pkg/tokenx/tokenxtest"
)

func roles(names ...string) []tokenx.Role {
	out := make([]tokenx.Role, len(names))
	for i, n := range names {
		out[i] = tokenx.Role{Name: n}
	}
	return out
}

func TestHasRole(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		roles []tokenx.Role
		want  string
		ok    bool
	}{
		{"exact", roles("ADMIN"), "ADMIN", true},
		{"case insensitive", roles("admin"), "ADMIN", true},
		{"prefixed authority", roles("ROLE_EMPLEADO"), "EMPLEADO", true},
		{"prefixed lower case", roles("role_admin"), "admin", true},
		{"no match", roles("EMPLEADO"), "ADMIN", false},
		{"empty roles", nil, "ADMIN", false},
		{"empty query", roles("ADMIN"), "", false},
		{"substring is not a match", roles("SUPERADMIN"), "ADMIN", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.ok, authz.HasRole(tt.roles, tt.want))
		})
	}
}

func TestHasAnyRole(t *testing.T) {
	t.Parallel()

	require.True(t, authz.HasAnyRole(roles("EMPLEADO"), "ADMIN", "EMPLEADO"))
	require.False(t, authz.HasAnyRole(roles("EMPLEADO"), "ADMIN"))
	require.False(t, authz.HasAnyRole(roles("ADMIN")))
}

func TestIsAuthenticated(t *testing.T) {
	t.Parallel()

	now := time.Now()

	t.Run("empty token", func(t *testing.T) {
		require.False(t, authz.IsAuthenticated("", now))
	})

	t.Run("undecodable token", func(t *testing.T) {
		require.False(t, authz.IsAuthenticated("abc.def.ghi", now))
	})

	t.Run("future expiry", func(t *testing.T) {
		tok := tokenxtest.Mint(tokenxtest.Options{Subject: "u", TTL: time.Hour})
		require.True(t, authz.IsAuthenticated(tok, now))
	})

	t.Run("past expiry", func(t *testing.T) {
		tok := tokenxtest.Mint(tokenxtest.Options{Subject: "u", TTL: -time.Minute})
		require.False(t, authz.IsAuthenticated(tok, now))
	})

	t.Run("no expiry claim", func(t *testing.T) {
		tok := tokenxtest.Mint(tokenxtest.Options{Subject: "u", NoExpiry: true})
		require.False(t, authz.IsAuthenticated(tok, now))
	})

	t.Run("expiry equal to now is expired", func(t *testing.T) {
		exp := now.Truncate(time.Second)
		payload := base64.RawURLEncoding.EncodeToString(
			[]byte(`{"exp":` + strconv.FormatInt(exp.Unix(), 10) + `}`),
		)
		require.False(t, authz.IsAuthenticated("h."+payload+".s", exp))
	})

	t.Run("re-evaluated per call", func(t *testing.T) {
		tok := tokenxtest.Mint(tokenxtest.Options{Subject: "u", TTL: time.Hour})
		require.True(t, authz.IsAuthenticated(tok, now))
		require.False(t, authz.IsAuthenticated(tok, now.Add(2*time.Hour)))
	})
}

func TestPermissionsFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, authz.Permissions{}, authz.PermissionsFor(false, roles("ADMIN")))
	require.Equal(t,
		authz.Permissions{CanCreate: true, CanEdit: true, CanDelete: true},
		authz.PermissionsFor(true, roles("ADMIN")),
	)
	require.Equal(t,
		authz.Permissions{CanCreate: true, CanEdit: true},
		authz.PermissionsFor(true, roles("ROLE_EMPLEADO")),
	)
	require.Equal(t, authz.Permissions{}, authz.PermissionsFor(true, roles("AUDITOR")))
}
