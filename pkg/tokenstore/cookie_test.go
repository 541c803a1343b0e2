package tokenstore_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/invweb/pkg/cryptox"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
)

func newSealer(t *testing.T) *cryptox.Sealer {
	t.Helper()
	s, err := cryptox.NewSealer([]byte("test-secret"), "tokenstore test")
	require.NoError(t, err)
	return s
}

// nextRequest plays the role of the browser: it keeps the live cookies from
// rec and sends them on a new request.
func nextRequest(rec *httptest.ResponseRecorder, prev *http.Request) *http.Request {
	jar := map[string]*http.Cookie{}
	for _, c := range prev.Cookies() {
		jar[c.Name] = c
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(jar, c.Name)
			continue
		}
		jar[c.Name] = &http.Cookie{Name: c.Name, Value: c.Value}
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range jar {
		req.AddCookie(c)
	}
	return req
}

func TestCookieStore_SetGet(t *testing.T) {
	sealer := newSealer(t)
	opts := tokenstore.CookieOptions{Sealer: sealer, Secure: true}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	st := tokenstore.NewCookieStore(rec, req, opts)

	require.True(t, st.Get().Empty())

	want := tokenstore.Bundle{AccessToken: "a.b.c", RefreshToken: "r", IDToken: "i.d.t"}
	require.NoError(t, st.Set(want))

	// Same request sees its own write.
	require.Equal(t, want, st.Get())

	byName := map[string]*http.Cookie{}
	for _, c := range rec.Result().Cookies() {
		byName[c.Name] = c
	}
	require.Len(t, byName, 3)

	access := byName[tokenstore.AccessTokenCookie]
	require.True(t, access.Secure)
	require.True(t, access.HttpOnly)
	require.Equal(t, http.SameSiteStrictMode, access.SameSite)
	require.Equal(t, "/", access.Path)
	require.Equal(t, int(tokenstore.AccessTokenTTL.Seconds()), access.MaxAge)
	require.NotEqual(t, "a.b.c", access.Value)

	require.Equal(t, int(tokenstore.RefreshTokenTTL.Seconds()), byName[tokenstore.RefreshTokenCookie].MaxAge)
	require.Equal(t, int(tokenstore.IDTokenTTL.Seconds()), byName[tokenstore.IDTokenCookie].MaxAge)

	// Next request reads them back.
	next := tokenstore.NewCookieStore(httptest.NewRecorder(), nextRequest(rec, req), opts)
	require.Equal(t, want, next.Get())
}

func TestCookieStore_PartialBundle(t *testing.T) {
	opts := tokenstore.CookieOptions{Sealer: newSealer(t)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	st := tokenstore.NewCookieStore(rec, req, opts)
	require.NoError(t, st.Set(tokenstore.Bundle{AccessToken: "only"}))

	got := tokenstore.NewCookieStore(httptest.NewRecorder(), nextRequest(rec, req), opts).Get()
	require.Equal(t, "only", got.AccessToken)
	require.Empty(t, got.RefreshToken)
	require.Empty(t, got.IDToken)
}

func TestCookieStore_Clear(t *testing.T) {
	opts := tokenstore.CookieOptions{Sealer: newSealer(t)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	st := tokenstore.NewCookieStore(rec, req, opts)
	require.NoError(t, st.Set(tokenstore.Bundle{AccessToken: "a", RefreshToken: "r", IDToken: "i"}))
	require.NoError(t, st.SetState(tokenstore.PendingAuth{State: "s", Verifier: "v"}))

	req2 := nextRequest(rec, req)
	rec2 := httptest.NewRecorder()
	st2 := tokenstore.NewCookieStore(rec2, req2, opts)
	st2.Clear()
	require.True(t, st2.Get().Empty())

	expired := map[string]bool{}
	for _, c := range rec2.Result().Cookies() {
		if c.MaxAge < 0 {
			expired[c.Name] = true
		}
	}
	require.True(t, expired[tokenstore.AccessTokenCookie])
	require.True(t, expired[tokenstore.RefreshTokenCookie])
	require.True(t, expired[tokenstore.IDTokenCookie])
	require.True(t, expired[tokenstore.StateCookie])

	st3 := tokenstore.NewCookieStore(httptest.NewRecorder(), nextRequest(rec2, req2), opts)
	require.True(t, st3.Get().Empty())
	_, ok := st3.ConsumeState()
	require.False(t, ok)
}

func TestCookieStore_TamperedCookieIsAbsent(t *testing.T) {
	opts := tokenstore.CookieOptions{Sealer: newSealer(t)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: tokenstore.AccessTokenCookie, Value: "plain.jwt.value"})

	st := tokenstore.NewCookieStore(httptest.NewRecorder(), req, opts)
	require.Empty(t, st.Get().AccessToken)
}

func TestCookieStore_StateIsSingleUse(t *testing.T) {
	opts := tokenstore.CookieOptions{Sealer: newSealer(t)}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	st := tokenstore.NewCookieStore(rec, req, opts)
	require.NoError(t, st.SetState(tokenstore.PendingAuth{State: "xyz", Verifier: "ver"}))

	req2 := nextRequest(rec, req)
	rec2 := httptest.NewRecorder()
	st2 := tokenstore.NewCookieStore(rec2, req2, opts)

	p, ok := st2.ConsumeState()
	require.True(t, ok)
	require.Equal(t, "xyz", p.State)
	require.Equal(t, "ver", p.Verifier)

	_, ok = st2.ConsumeState()
	require.False(t, ok, "second read in the same request")

	st3 := tokenstore.NewCookieStore(httptest.NewRecorder(), nextRequest(rec2, req2), opts)
	_, ok = st3.ConsumeState()
	require.False(t, ok, "replayed on a later request")
}

func TestCookieStore_StateExpires(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	opts := tokenstore.CookieOptions{Sealer: newSealer(t), Now: clock}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	st := tokenstore.NewCookieStore(rec, req, opts)
	require.NoError(t, st.SetState(tokenstore.PendingAuth{State: "old"}))

	now = now.Add(tokenstore.StateTTL + time.Second)
	st2 := tokenstore.NewCookieStore(httptest.NewRecorder(), nextRequest(rec, req), opts)
	_, ok := st2.ConsumeState()
	require.False(t, ok)
}

func TestMemory(t *testing.T) {
	m := tokenstore.NewMemory(nil)
	require.True(t, m.Get().Empty())

	require.NoError(t, m.Set(tokenstore.Bundle{AccessToken: "a"}))
	require.Equal(t, "a", m.Get().AccessToken)

	require.NoError(t, m.SetState(tokenstore.PendingAuth{State: "s"}))
	p, ok := m.ConsumeState()
	require.True(t, ok)
	require.Equal(t, "s", p.State)
	_, ok = m.ConsumeState()
	require.False(t, ok)

	m.Clear()
	require.True(t, m.Get().Empty())
}
