package tokenx_test

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/invweb/pkg/tokenx"
	"github.com/aussiebroadwan/invweb/pkg/tokenx/tokenxtest"
)

func TestDecode(t *testing.T) {
	t.Run("keycloak access token", func(t *testing.T) {
		tok := tokenxtest.Mint(tokenxtest.Options{
			Subject:  "8c1f",
			Username: "admin1",
			Email:    "admin1@example.com",
			Roles:    []string{"ADMIN", "offline_access"},
		})

		c, ok := tokenx.Decode(tok)
		require.True(t, ok)
		require.Equal(t, "8c1f", c.Subject)
		require.Equal(t, "admin1", c.PreferredUsername)
		require.Equal(t, "admin1@example.com", c.Email)
		require.Equal(t, []string{"ADMIN", "offline_access"}, tokenx.RoleNames(c.Roles))
		require.False(t, c.Expired(time.Now()))
	})

	t.Run("padded segment is tolerated", func(t *testing.T) {
		payload := base64.URLEncoding.EncodeToString([]byte(`{"sub":"u12"}`))
		c, ok := tokenx.Decode("h." + payload + ".s")
		require.True(t, ok)
		require.Equal(t, "u12", c.Subject)
	})

	t.Run("missing fields yield empty roles and zero expiry", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte(`{}`))
		c, ok := tokenx.Decode("h." + payload + ".s")
		require.True(t, ok)
		require.Empty(t, c.Roles)
		require.True(t, c.ExpiresAt.IsZero())
		require.True(t, c.Expired(time.Now()))
	})

	t.Run("top-level roles in mixed shapes", func(t *testing.T) {
		payload := base64.RawURLEncoding.EncodeToString([]byte(
			`{"realm_access":{"roles":["EMPLEADO"]},"roles":["EMPLEADO",{"name":"AUDITOR"},{"authority":"ROLE_ADMIN"}]}`,
		))
		c, ok := tokenx.Decode("h." + payload + ".s")
		require.True(t, ok)
		require.Equal(t, []string{"EMPLEADO", "AUDITOR", "ROLE_ADMIN"}, tokenx.RoleNames(c.Roles))
	})
}

func TestDecode_Malformed(t *testing.T) {
	good := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"x"}`))

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc." + good},
		{"four segments", "a." + good + ".c.d"},
		{"payload not base64", "a.!!!.c"},
		{"payload not json", "abc.def.ghi"},
		{"payload is array", "a." + base64.RawURLEncoding.EncodeToString([]byte(`[1,2]`)) + ".c"},
		{"expiry wrong type", "a." + base64.RawURLEncoding.EncodeToString([]byte(`{"exp":"soon"}`)) + ".c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				c, ok := tokenx.Decode(tt.token)
				require.False(t, ok)
				require.Nil(t, c)
			})
		})
	}
}

func TestNormalizeRoles(t *testing.T) {
	t.Run("all provider shapes", func(t *testing.T) {
		raw := json.RawMessage(`["ADMIN", {"name":"EMPLEADO"}, {"authority":"ROLE_USER"}, {"other":1}, "", 7]`)
		require.Equal(t, []tokenx.Role{{Name: "ADMIN"}, {Name: "EMPLEADO"}, {Name: "ROLE_USER"}}, tokenx.NormalizeRoles(raw))
	})

	t.Run("name wins over authority", func(t *testing.T) {
		raw := json.RawMessage(`[{"name":"ADMIN","authority":"ROLE_ADMIN"}]`)
		require.Equal(t, []tokenx.Role{{Name: "ADMIN"}}, tokenx.NormalizeRoles(raw))
	})

	t.Run("duplicates collapse keeping first position", func(t *testing.T) {
		raw := json.RawMessage(`["B","A",{"name":"B"}]`)
		require.Equal(t, []string{"B", "A"}, tokenx.RoleNames(tokenx.NormalizeRoles(raw)))
	})

	t.Run("not an array", func(t *testing.T) {
		require.Nil(t, tokenx.NormalizeRoles(json.RawMessage(`{"roles":[]}`)))
		require.Nil(t, tokenx.NormalizeRoles(nil))
	})
}
