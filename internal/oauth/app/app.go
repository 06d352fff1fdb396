package app

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/payprop/oauth2-server/internal/oauth/http"
	"github.com/payprop/oauth2-server/internal/oauth/registry"
	"github.com/payprop/oauth2-server/internal/oauth/service"
	"github.com/payprop/oauth2-server/internal/oauth/store"
	"github.com/payprop/oauth2-server/internal/oauth/store/drivers/memory"
	"github.com/payprop/oauth2-server/internal/oauth/store/drivers/sqlite"
	"github.com/payprop/oauth2-server/pkg/slogx"
	"github.com/payprop/oauth2-server/pkg/tokenx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the OAuth2 server with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	codec    tokenx.Codec
	registry *registry.Registry

	// Services
	authorizeService    *service.AuthorizeService
	tokenService        *service.TokenService
	gateService         *service.GateService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "oauth2-server",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	if err := app.initCodec(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	if app.cfg.ClientsFile != "" {
		if err := seedClients(context.Background(), app.db, app.cfg.ClientsFile, app.logger); err != nil {
			_ = app.db.Close()
			return nil, err
		}
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("oauth2 server starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"token_strategy", app.cfg.TokenStrategy,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down oauth2 server...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service
	app.housekeepingService.Stop()

	// Close database connection
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("oauth2 server stopped")
	return nil
}

// initStore selects the storage driver. A database file means SQLite; without
// one everything lives in memory and dies with the process.
func (app *Application) initStore() error {
	if app.cfg.DatabaseFile == "" {
		app.db = memory.NewStore()
		app.logger.Info("using in-memory store")
		return nil
	}

	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
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

func (app *Application) initCodec() error {
	switch app.cfg.TokenStrategy {
	case "signed":
		if app.cfg.JWTSecret == "" {
			// No shared secret configured: sign with a fresh Ed25519 key.
			// Tokens do not survive a restart, which is fine because the
			// store records do not reference the signing key.
			_, key, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return fmt.Errorf("failed to generate signing key: %w", err)
			}
			codec, err := tokenx.NewSignedEdDSA(app.cfg.Issuer, key)
			if err != nil {
				return fmt.Errorf("failed to initialize signed codec: %w", err)
			}
			app.logger.Warn("OAUTH_JWT_SECRET not set, signing tokens with an ephemeral Ed25519 key")
			app.codec = codec
			return nil
		}
		codec, err := tokenx.NewSignedHS256(app.cfg.Issuer, []byte(app.cfg.JWTSecret))
		if err != nil {
			return fmt.Errorf("failed to initialize signed codec: %w", err)
		}
		app.codec = codec
	case "opaque":
		app.codec = tokenx.NewOpaque()
	default:
		return fmt.Errorf("unknown token strategy %q", app.cfg.TokenStrategy)
	}
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() {
	app.registry = &registry.Registry{Store: app.db}

	app.authorizeService = &service.AuthorizeService{
		Store:     app.db,
		Registry:  app.registry,
		Codec:     app.codec,
		Gateway:   service.StaticOwner{UserID: "owner"},
		CodeTTL:   app.cfg.CodeTTL,
		AccessTTL: app.cfg.AccessTTL,
	}

	app.tokenService = &service.TokenService{
		Store:     app.db,
		Registry:  app.registry,
		Codec:     app.codec,
		Passwords: service.StoreVerifier{Store: app.db},
		AccessTTL: app.cfg.AccessTTL,
	}

	app.gateService = &service.GateService{
		Store: app.db,
		Codec: app.codec,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.cfg.AuthorizeRoute,
		app.cfg.AccessTokenRoute,
		app.logger,
	)

	// Wire services to router
	router.BuildVersion = BuildVersion
	router.Registry = app.registry
	router.AuthorizeService = app.authorizeService
	router.TokenService = app.tokenService
	router.GateService = app.gateService
	router.Store = app.db
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}

// Router exposes the configured HTTP handler for embedding hosts that mount
// the server inside their own mux instead of running Run.
func (app *Application) Router() http.Handler { return app.router }

// Gate exposes the verification gate so embedding hosts can guard their own
// protected routes with httpapi.RequireToken.
func (app *Application) Gate() *service.GateService { return app.gateService }

// Store exposes the grant store so embedding hosts can manage clients and
// users through the same repositories the engine uses.
func (app *Application) Store() store.Store { return app.db }
