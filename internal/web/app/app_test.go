package app

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_ServesProbes(t *testing.T) {
	cfg := defaultConfig()
	cfg.LogLevel = "error"
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "web.db")
	cfg.CookieSecret = "test-secret"

	application, err := New(cfg)
	require.NoError(t, err)
	application.housekeepingService.Start()
	t.Cleanup(func() { require.NoError(t, application.Shutdown()) })

	for _, path := range []string{"/livez", "/readyz", "/metrics", "/api/auth/session"} {
		rec := httptest.NewRecorder()
		application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Contains(t, rec.Header().Get("Location"), "http://localhost:8180/auth/realms/inventario-app/protocol/openid-connect/auth")
	require.Contains(t, rec.Header().Get("Location"), "redirect_uri=http%3A%2F%2Flocalhost%3A3000%2Fauth%2Fcallback")
}
