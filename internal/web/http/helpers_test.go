package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/invweb/internal/web/cache"
	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/internal/web/store/drivers/sqlite"
	"github.com/aussiebroadwan/invweb/pkg/cryptox"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/idp"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
)

const realm = "inventario-app"

// testEnv is a router wired to a fake identity provider and a fake
// inventory backend.
type testEnv struct {
	router *Router
	sealer *cryptox.Sealer
	db     *sqlite.Store

	mu          sync.Mutex
	tokenStatus int
	tokenBody   string
	validTokens map[string]bool
	products    []inventory.Product

	tokenCalls   atomic.Int32
	backendCalls atomic.Int32
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"abc.def.ghi","refresh_token":"r1","id_token":"i1"}`,
		validTokens: map[string]bool{},
		products: []inventory.Product{
			{ID: 1, Name: "Teclado", Category: "Accesorios", Price: 20, Quantity: 5},
			{ID: 2, Name: "Monitor", Category: "Computadoras", Price: 200, Quantity: 12},
		},
	}

	provider := httptest.NewServer(e.providerMux())
	t.Cleanup(provider.Close)
	backend := httptest.NewServer(e.backendMux())
	t.Cleanup(backend.Close)

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())
	t.Cleanup(func() { _ = db.Close() })
	e.db = db

	e.sealer, err = cryptox.NewSealer([]byte("test-cookie-secret"), "invweb-test")
	require.NoError(t, err)

	idpClient := idp.New(idp.Config{
		BaseURL:               provider.URL,
		Realm:                 realm,
		ClientID:              "inventario-client",
		ClientSecret:          "s3cret",
		RedirectURI:           "http://localhost:3000/auth/callback",
		PostLogoutRedirectURI: "http://localhost:3000/login",
	})
	inv := inventory.New(backend.URL)
	inv.Tokens = service.SessionTokens

	metrics := httpx.NewMetrics("invweb_test")
	audit := service.NewAuditService(db)
	ctrl := service.NewController(idpClient, audit, metrics.Registerer())

	r := NewRouter("test", db, tokenstore.CookieOptions{Sealer: e.sealer}, metrics, slogx.Discard())
	r.Cache = cache.NewMemory()
	r.IDP = idpClient
	r.Inventory = inv
	r.Session = ctrl
	r.Hydrator = &service.Hydrator{Controller: ctrl, Inventory: inv}
	r.Catalog = service.NewCatalogService(inv, r.Cache, time.Minute)
	r.Audit = audit
	r.ApplyRoutes()

	e.router = r
	return e
}

func (e *testEnv) setToken(status int, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokenStatus, e.tokenBody = status, body
}

func (e *testEnv) allow(tokens ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.validTokens = map[string]bool{}
	for _, t := range tokens {
		e.validTokens[t] = true
	}
}

func (e *testEnv) authorized(r *http.Request) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && e.validTokens[tok]
}

func (e *testEnv) providerMux() http.Handler {
	mux := http.NewServeMux()
	base := "/realms/" + realm + "/protocol/openid-connect/"

	mux.HandleFunc("POST "+base+"token", func(w http.ResponseWriter, r *http.Request) {
		e.tokenCalls.Add(1)
		e.mu.Lock()
		status, body := e.tokenStatus, e.tokenBody
		e.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	mux.HandleFunc("GET "+base+"userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer expired" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid_token"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"sub":"u-1","preferred_username":"admin1","realm_access":{"roles":["ADMIN"]}}`)
	})
	return mux
}

func (e *testEnv) backendMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/productos/listar", func(w http.ResponseWriter, r *http.Request) {
		e.backendCalls.Add(1)
		e.mu.Lock()
		defer e.mu.Unlock()
		writeTestJSON(w, http.StatusOK, e.products)
	})
	mux.HandleFunc("POST /api/productos", func(w http.ResponseWriter, r *http.Request) {
		e.backendCalls.Add(1)
		if !e.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var p inventory.Product
		_ = json.NewDecoder(r.Body).Decode(&p)
		p.ID = 3
		writeTestJSON(w, http.StatusOK, p)
	})
	mux.HandleFunc("DELETE /api/productos/{id}", func(w http.ResponseWriter, r *http.Request) {
		e.backendCalls.Add(1)
		if !e.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, "Producto eliminado")
	})
	mux.HandleFunc("GET /api/stock/estadisticas", func(w http.ResponseWriter, r *http.Request) {
		e.backendCalls.Add(1)
		if !e.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeTestJSON(w, http.StatusOK, inventory.StockStats{TotalProducts: 2})
	})
	return mux
}

func writeTestJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// jar carries cookies between requests the way a browser would.
type jar map[string]string

// set seals and stores a token cookie.
func (j jar) set(t *testing.T, e *testEnv, name, value string) {
	t.Helper()
	sealed, err := e.sealer.Seal(value, name)
	require.NoError(t, err)
	j[name] = sealed
}

func (j jar) session(t *testing.T, e *testEnv, b tokenstore.Bundle) jar {
	t.Helper()
	if b.AccessToken != "" {
		j.set(t, e, tokenstore.AccessTokenCookie, b.AccessToken)
	}
	if b.RefreshToken != "" {
		j.set(t, e, tokenstore.RefreshTokenCookie, b.RefreshToken)
	}
	if b.IDToken != "" {
		j.set(t, e, tokenstore.IDTokenCookie, b.IDToken)
	}
	return j
}

func (j jar) update(res *http.Response) {
	for _, c := range res.Cookies() {
		if c.MaxAge < 0 {
			delete(j, c.Name)
			continue
		}
		j[c.Name] = c.Value
	}
}

// open returns the plaintext of a cookie, or "" when absent.
func (j jar) open(e *testEnv, name string) string {
	v, ok := j[name]
	if !ok {
		return ""
	}
	plain, err := e.sealer.Open(v, name)
	if err != nil {
		return ""
	}
	return plain
}

// do serves one request through the full router, carrying j's cookies and
// applying the response's.
func (e *testEnv) do(t *testing.T, j jar, method, target string, body io.Reader, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for name, v := range j {
		req.AddCookie(&http.Cookie{Name: name, Value: v})
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if j != nil {
		j.update(rec.Result())
	}
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func locationQuery(t *testing.T, rec *httptest.ResponseRecorder) url.Values {
	t.Helper()
	u, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	return u.Query()
}
