package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aussiebroadwan/invweb/internal/web/cache"
	httpapi "github.com/aussiebroadwan/invweb/internal/web/http"
	"github.com/aussiebroadwan/invweb/internal/web/service"
	"github.com/aussiebroadwan/invweb/internal/web/store/drivers/sqlite"
	"github.com/aussiebroadwan/invweb/pkg/cryptox"
	"github.com/aussiebroadwan/invweb/pkg/httpx"
	"github.com/aussiebroadwan/invweb/pkg/idp"
	"github.com/aussiebroadwan/invweb/pkg/inventory"
	"github.com/aussiebroadwan/invweb/pkg/slogx"
	"github.com/aussiebroadwan/invweb/pkg/tokenstore"
)

// BuildVersion is overridden at build time via -ldflags "-X".
var BuildVersion = "v0.1.0"

const (
	serviceName = "invweb"
	cookieInfo  = "invweb-session-cookies"
	cachePrefix = "invweb:"
)

// Application wires the gateway's dependencies together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db      *sqlite.Store
	cache   cache.Cache
	sealer  *cryptox.Sealer
	metrics *httpx.Metrics

	// Upstreams
	idp       *idp.Client
	inventory *inventory.Client

	// Services
	auditService        *service.AuditService
	controller          *service.Controller
	hydrator            *service.Hydrator
	catalogService      *service.CatalogService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		metrics: httpx.NewMetrics(serviceName),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initSealer(); err != nil {
		_ = app.cache.Close()
		_ = app.db.Close()
		return nil, err
	}

	app.initUpstreams()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("web gateway starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"public_url", app.cfg.PublicURL,
		"api_url", app.cfg.APIURL,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops background work and closes the
// stores.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down web gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("web gateway stopped")
	return nil
}

// OpenDatabase opens the audit journal at path without migrating it.
func OpenDatabase(path string) (*sqlite.Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	return sqlite.NewStore(dsn)
}

func (app *Application) initDatabase() error {
	db, err := OpenDatabase(app.cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects to Redis when configured and falls back to a
// process-local cache otherwise.
func (app *Application) initCache() error {
	if app.cfg.RedisURL == "" {
		app.cache = cache.NewMemory()
		app.logger.Info("catalog cache: in-memory")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rc, err := cache.NewRedis(ctx, app.cfg.RedisURL, cachePrefix)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.cache = rc
	app.logger.Info("catalog cache: redis")
	return nil
}

func (app *Application) initSealer() error {
	if app.cfg.CookieSecret == "" {
		app.logger.Warn("WEB_COOKIE_SECRET not set, sessions will not survive a restart")
	}

	sealer, err := cryptox.NewSealer([]byte(app.cfg.CookieSecret), cookieInfo)
	if err != nil {
		return fmt.Errorf("failed to initialize cookie sealer: %w", err)
	}
	app.sealer = sealer
	return nil
}

func (app *Application) initUpstreams() {
	app.idp = idp.New(idp.Config{
		BaseURL:               app.cfg.KeycloakURL,
		Realm:                 app.cfg.Realm,
		ClientID:              app.cfg.ClientID,
		ClientSecret:          app.cfg.ClientSecret,
		RedirectURI:           app.cfg.PublicURL + "/auth/callback",
		PostLogoutRedirectURI: app.cfg.PublicURL + service.DefaultLoginPath,
	})

	app.inventory = inventory.New(app.cfg.APIURL)
	app.inventory.Tokens = service.SessionTokens
	app.inventory.OnUnauthorized = func(ctx context.Context) {
		slogx.FromContext(ctx).Info("inventory backend rejected the session token")
	}
}

func (app *Application) initServices() {
	app.auditService = service.NewAuditService(app.db)

	app.controller = service.NewController(app.idp, app.auditService, app.metrics.Registerer())
	app.controller.LenientState = app.cfg.StateLenient

	app.hydrator = &service.Hydrator{
		Controller: app.controller,
		Inventory:  app.inventory,
	}

	app.catalogService = service.NewCatalogService(app.inventory, app.cache, app.cfg.CatalogCacheTTL)

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		BuildVersion,
		app.db,
		tokenstore.CookieOptions{
			Sealer: app.sealer,
			Secure: app.cfg.SecureCookies(),
		},
		app.metrics,
		app.logger,
	)

	router.Cache = app.cache
	router.IDP = app.idp
	router.Inventory = app.inventory
	router.Session = app.controller
	router.Hydrator = app.hydrator
	router.Catalog = app.catalogService
	router.Audit = app.auditService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
