package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
	"github.com/aussiebroadwan/invweb/pkg/tokenx"
	"github.com/aussiebroadwan/invweb/pkg/tokenx/tokenxtest"
)

// fakeMe serves /api/auth/me, accepting only the bearer tokens in valid.
type fakeMe struct {
	srv   *httptest.Server
	calls atomic.Int32
	valid map[string]bool
}

func newFakeMe(t *testing.T, valid ...string) *fakeMe {
	t.Helper()
	m := &fakeMe{valid: map[string]bool{}}
	for _, v := range valid {
		m.valid[v] = true
	}

	m.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.calls.Add(1)
		if r.URL.Path != "/api/auth/me" {
			http.NotFound(w, r)
			return
		}
		tok := r.Header.Get("Authorization")
		if len(tok) < 7 || !m.valid[tok[7:]] {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{
			"id":       7,
			"username": "emp1",
			"roles":    []any{"ROLE_EMPLEADO", map[string]string{"authority": "ROLE_USER"}},
		})
	}))
	t.Cleanup(m.srv.Close)
	return m
}

func newHydrator(t *testing.T, p *fakeProvider, me *fakeMe) *Hydrator {
	t.Helper()
	inv := inventory.New(me.srv.URL)
	inv.Tokens = SessionTokens
	return &Hydrator{
		Controller: NewController(p.client(), nil, prometheus.NewRegistry()),
		Inventory:  inv,
	}
}

func TestHydrate_Anonymous(t *testing.T) {
	h := newHydrator(t, newFakeProvider(t), newFakeMe(t))
	sc := h.Hydrate(context.Background(), tokenstore.NewMemory(nil))

	require.False(t, sc.IsLoading())
	require.Nil(t, sc.User())
	require.False(t, sc.IsAuthenticated())
}

func TestHydrate_FromClaims(t *testing.T) {
	me := newFakeMe(t)
	h := newHydrator(t, newFakeProvider(t), me)

	ts := tokenstore.NewMemory(nil)
	access := tokenxtest.Mint(tokenxtest.Options{Subject: "u-1", Username: "admin1", Roles: []string{"ADMIN"}})
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: access}))

	sc := h.Hydrate(context.Background(), ts)
	require.False(t, sc.IsLoading())
	require.True(t, sc.IsAuthenticated())
	require.Equal(t, "admin1", sc.User().Username)
	require.True(t, sc.Permissions().CanDelete)
	require.Zero(t, me.calls.Load(), "no network on the fast path")
}

func TestHydrate_ExpiredToken(t *testing.T) {
	h := newHydrator(t, newFakeProvider(t), newFakeMe(t))

	ts := tokenstore.NewMemory(nil)
	access := tokenxtest.Mint(tokenxtest.Options{Subject: "u-1", TTL: -time.Minute})
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: access, RefreshToken: "r"}))

	sc := h.Hydrate(context.Background(), ts)
	require.Nil(t, sc.User())
	require.False(t, sc.IsAuthenticated())
	require.Equal(t, "r", ts.Get().RefreshToken, "expiry alone does not clear the session")
}

func TestHydrate_OpaqueTokenUsesWhoAmI(t *testing.T) {
	me := newFakeMe(t, "opaque")
	h := newHydrator(t, newFakeProvider(t), me)

	ts := tokenstore.NewMemory(nil)
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: "opaque"}))

	sc := h.Hydrate(context.Background(), ts)
	require.NotNil(t, sc.User())
	require.Equal(t, "emp1", sc.User().Username)
	require.Equal(t, []tokenx.Role{{Name: "ROLE_EMPLEADO"}, {Name: "ROLE_USER"}}, sc.User().Roles)
	require.EqualValues(t, 1, me.calls.Load())
}

func TestHydrate_RefreshThenRetry(t *testing.T) {
	p := newFakeProvider(t)
	p.setToken(http.StatusOK, `{"access_token":"fresh","refresh_token":"r2"}`)
	me := newFakeMe(t, "fresh")
	h := newHydrator(t, p, me)

	ts := tokenstore.NewMemory(nil)
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: "stale", RefreshToken: "r1"}))

	sc := h.Hydrate(context.Background(), ts)
	require.NotNil(t, sc.User())
	require.Equal(t, "fresh", ts.Get().AccessToken)
	require.EqualValues(t, 2, me.calls.Load())
	require.EqualValues(t, 1, p.tokenCalls.Load())
}

func TestHydrate_RefreshFailsClearsSession(t *testing.T) {
	p := newFakeProvider(t)
	p.setToken(http.StatusBadRequest, `{"error":"invalid_grant"}`)
	h := newHydrator(t, p, newFakeMe(t))

	ts := tokenstore.NewMemory(nil)
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: "stale", RefreshToken: "r1", IDToken: "i"}))

	sc := h.Hydrate(context.Background(), ts)
	require.False(t, sc.IsLoading())
	require.Nil(t, sc.User())
	require.True(t, ts.Get().Empty())
}

func TestHydrate_RetryFailsClearsSession(t *testing.T) {
	p := newFakeProvider(t)
	p.setToken(http.StatusOK, `{"access_token":"still-bad","refresh_token":"r2"}`)
	h := newHydrator(t, p, newFakeMe(t))

	ts := tokenstore.NewMemory(nil)
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: "stale", RefreshToken: "r1"}))

	sc := h.Hydrate(context.Background(), ts)
	require.Nil(t, sc.User())
	require.True(t, ts.Get().Empty())
}

func TestSessionContext_SetUserAndExpiry(t *testing.T) {
	now := time.Now()
	ts := tokenstore.NewMemory(nil)
	access := tokenxtest.Mint(tokenxtest.Options{Subject: "u", TTL: time.Minute})
	require.NoError(t, ts.Set(tokenstore.Bundle{AccessToken: access}))

	sc := NewSessionContext(ts, func() time.Time { return now })
	require.True(t, sc.IsLoading())
	require.False(t, sc.IsAuthenticated(), "no user yet")

	claims, ok := tokenx.Decode(access)
	require.True(t, ok)
	sc.SetUser(&domain.User{Username: "u"})
	require.True(t, sc.IsAuthenticated())

	now = claims.ExpiresAt
	require.False(t, sc.IsAuthenticated(), "recomputed against the clock")
}

func TestSessionFromContext(t *testing.T) {
	require.Nil(t, SessionFromContext(context.Background()))

	sc := NewSessionContext(tokenstore.NewMemory(nil), nil)
	require.Same(t, sc, SessionFromContext(WithSession(context.Background(), sc)))
}
