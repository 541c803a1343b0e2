package http

import (
	"log/slog"
	"net/http"
	"time"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/aussiebroadwan/invweb/api/web" // Swagger docs
	"github.com/aussiebroadwan/invweb/internal/web/cache"
	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/internal/web/store"
	"github.com/aussiebroadwan/invweb/pkg/authz"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/idp"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	cookies      tokenstore.CookieOptions
	metrics      *httpx.Metrics

	store     store.Store
	Cache     cache.Cache
	IDP       *idp.Client
	Inventory *inventory.Client
	Session   *service.Controller
	Hydrator  *service.Hydrator
	Catalog   *service.CatalogService
	Audit     *service.AuditService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	cookies tokenstore.CookieOptions,
	metrics *httpx.Metrics,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		cookies:      cookies,
		metrics:      metrics,
		store:        st,
	}

	// Metrics must wrap the mux directly to see the matched pattern.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger, "/livez", "/readyz", "/metrics"),
		metrics.Middleware(),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerPages()
	r.registerAuth()
	r.registerProxy()
	r.registerProducts()
	r.registerStock()
	r.registerMovements()
	r.registerAudit()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Inventory Web Gateway API
//	@version		0.1.0
//	@description	Backend-for-frontend for the inventory dashboard. Owns the OAuth2 session in sealed cookies
//	@description	and fronts the inventory REST backend.
//
//	@contact.name	AussieBroadWAN Team
//	@contact.url	https://github.com/aussiebroadwan/invweb
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host			localhost:3000
//	@BasePath		/
//
//	@schemes		http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// protected chains the session, a per-subject rate limit and, when roles are
// given, a role check in front of h.
func (r *Router) protected(h http.HandlerFunc, limit httpx.RateLimitConfig, roles ...string) http.Handler {
	mws := []httpx.Middleware{
		r.withSession(),
		httpx.RateLimitBySubject(limit),
		requireSession(),
	}
	if len(roles) > 0 {
		mws = append(mws, requireRoles(roles...))
	}
	return httpx.Chain(h, mws...)
}

func (r *Router) registerPages() {
	h := &PagesHandler{Catalog: r.Catalog}

	r.Mux.Handle("GET /{$}",
		httpx.Chain(http.HandlerFunc(h.HandleDashboard),
			httpx.RateLimitByIP(httpx.PublicLimit),
			r.withSession(),
		),
	)
	r.Mux.Handle("GET /login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.LenientLimit),
			r.withSession(),
		),
	)
	r.Mux.Handle("GET /unauthorized",
		httpx.Chain(http.HandlerFunc(h.HandleUnauthorized),
			httpx.RateLimitByIP(httpx.LenientLimit),
			r.withSession(),
		),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Session: r.Session, Hydrator: r.Hydrator, tokens: r.tokens}

	// Login and callback talk to the provider - strict limit by IP
	r.Mux.Handle("GET /auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /auth/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	logout := httpx.Chain(http.HandlerFunc(h.HandleLogout),
		httpx.RateLimitByIP(httpx.ModerateLimit),
	)
	r.Mux.Handle("GET /auth/logout", logout)
	r.Mux.Handle("POST /auth/logout", logout)

	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("GET /api/auth/session",
		httpx.Chain(http.HandlerFunc(h.HandleSession),
			httpx.RateLimitByIP(httpx.LenientLimit),
			r.withSession(),
		),
	)
}

func (r *Router) registerProxy() {
	r.Mux.Handle("POST /api/auth/token",
		httpx.Chain(&TokenProxyHandler{IDP: r.IDP},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /api/auth/userinfo",
		httpx.Chain(&UserInfoProxyHandler{IDP: r.IDP},
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerProducts() {
	h := &ProductsHandler{Catalog: r.Catalog, Inventory: r.Inventory, backend: r.backend()}

	// Public catalog
	r.Mux.Handle("GET /api/products",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.PublicLimit),
			r.withSession(),
		),
	)
	r.Mux.Handle("GET /api/catalog",
		httpx.Chain(http.HandlerFunc(h.HandleCatalog),
			httpx.RateLimitByIP(httpx.PublicLimit),
			r.withSession(),
		),
	)

	r.Mux.Handle("GET /api/products/search", r.protected(h.HandleSearch, httpx.LenientLimit))
	r.Mux.Handle("GET /api/products/{id}", r.protected(h.HandleGet, httpx.LenientLimit))
	r.Mux.Handle("GET /api/products/{id}/history", r.protected(h.HandleHistory, httpx.LenientLimit))

	// Writes: employees and admins, delete is admin only
	r.Mux.Handle("POST /api/products", r.protected(h.HandleCreate, httpx.ModerateLimit, authz.RoleAdmin, authz.RoleEmployee))
	r.Mux.Handle("PUT /api/products/{id}", r.protected(h.HandleUpdate, httpx.ModerateLimit, authz.RoleAdmin, authz.RoleEmployee))
	r.Mux.Handle("POST /api/products/{id}/stock", r.protected(h.HandleUpdateStock, httpx.ModerateLimit, authz.RoleAdmin, authz.RoleEmployee))
	r.Mux.Handle("DELETE /api/products/{id}", r.protected(h.HandleDelete, httpx.ModerateLimit, authz.RoleAdmin))
}

func (r *Router) registerStock() {
	h := &StockHandler{Catalog: r.Catalog, Inventory: r.Inventory, backend: r.backend()}

	r.Mux.Handle("POST /api/stock/movements", r.protected(h.HandleRegister, httpx.ModerateLimit, authz.RoleAdmin, authz.RoleEmployee))
	r.Mux.Handle("GET /api/stock/history", r.protected(h.HandleHistory, httpx.LenientLimit))
	r.Mux.Handle("GET /api/stock/alerts/low", r.protected(h.HandleLowStock, httpx.LenientLimit))
	r.Mux.Handle("GET /api/stock/alerts/out", r.protected(h.HandleOutOfStock, httpx.LenientLimit))
	r.Mux.Handle("GET /api/stock/products/{id}/minimum", r.protected(h.HandleAtMinimum, httpx.LenientLimit))
	r.Mux.Handle("GET /api/stock/stats", r.protected(h.HandleStats, httpx.LenientLimit))
}

func (r *Router) registerMovements() {
	h := &MovementsHandler{Inventory: r.Inventory, backend: r.backend()}

	r.Mux.Handle("GET /api/movements", r.protected(h.HandleList, httpx.LenientLimit))
	r.Mux.Handle("GET /api/movements/user/{username}", r.protected(h.HandleByUser, httpx.LenientLimit))
	r.Mux.Handle("GET /api/movements/type/{type}", r.protected(h.HandleByType, httpx.LenientLimit))
}

func (r *Router) registerAudit() {
	h := &AuditHandler{Audit: r.Audit}
	r.Mux.Handle("GET /api/audit", r.protected(h.ServeHTTP, httpx.ModerateLimit, authz.RoleAdmin))
}

func (r *Router) registerSystem() {
	// Probes and scrapes - lenient limits, monitoring may poll frequently
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.Cache),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /metrics",
		httpx.Chain(r.metrics.Handler(),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
