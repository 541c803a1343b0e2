package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/invweb/internal/web/domain"
	"github.com/aussiebroadwan/invweb/internal/web/store"
	"github.com/aussiebroadwan/invweb/internal/web/store/drivers/sqlite"
	"github.com/aussiebroadwan/invweb/pkg/idp"
)

const (
	timeout = 2 * time.Second
	tick    = 10 * time.Millisecond

	testRealm       = "inventario-app"
	testRedirectURI = "http://localhost:3000/auth/callback"
)

// fakeProvider serves the token and userinfo endpoints of one realm.
type fakeProvider struct {
	srv *httptest.Server

	mu           sync.Mutex
	tokenStatus  int
	tokenBody    string
	userinfoBody string
	forms        []url.Values
	tokenGate    chan struct{}

	tokenCalls    atomic.Int32
	userinfoCalls atomic.Int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		tokenStatus:  http.StatusOK,
		tokenBody:    `{"access_token":"abc.def.ghi","refresh_token":"r1","id_token":"i1","token_type":"Bearer"}`,
		userinfoBody: `{"sub":"u-1","preferred_username":"admin1","realm_access":{"roles":["ADMIN"]}}`,
	}

	mux := http.NewServeMux()
	base := "/realms/" + testRealm + "/protocol/openid-connect/"
	mux.HandleFunc("POST "+base+"token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenCalls.Add(1)
		_ = r.ParseForm()

		p.mu.Lock()
		p.forms = append(p.forms, r.PostForm)
		status, body, gate := p.tokenStatus, p.tokenBody, p.tokenGate
		p.mu.Unlock()

		if gate != nil {
			<-gate
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("GET "+base+"userinfo", func(w http.ResponseWriter, r *http.Request) {
		p.userinfoCalls.Add(1)
		p.mu.Lock()
		body := p.userinfoBody
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakeProvider) setToken(status int, body string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus, p.tokenBody = status, body
}

func (p *fakeProvider) lastForm() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.forms) == 0 {
		return nil
	}
	return p.forms[len(p.forms)-1]
}

func (p *fakeProvider) client() *idp.Client {
	return idp.New(idp.Config{
		BaseURL:               p.srv.URL,
		Realm:                 testRealm,
		ClientID:              "inventario-client",
		RedirectURI:           testRedirectURI,
		PostLogoutRedirectURI: "http://localhost:3000/login",
	})
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func auditKinds(t *testing.T, st store.Store) []domain.AuditKind {
	t.Helper()
	events, err := st.AuditEvents().ListAuditEvents(context.Background(), store.AuditFilter{})
	require.NoError(t, err)

	kinds := make([]domain.AuditKind, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		kinds = append(kinds, events[i].Kind)
	}
	return kinds
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
