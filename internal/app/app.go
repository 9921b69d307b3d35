// Package app wires the application together: config, logger, store,
// license manager, router and HTTP server lifecycle.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"vmscli/internal/config"
	"vmscli/internal/infrastructure"
	"vmscli/internal/license"
	"vmscli/internal/middleware"
	"vmscli/internal/store"
	handlers "vmscli/internal/transport/http"
)

const (
	Version = "1.0.0"
	AppName = "VMS Desk"
)

// Application is the composed application container.
type Application struct {
	Config         *config.Config
	Router         *chi.Mux
	Server         *http.Server
	Store          *store.Store
	LicenseManager *license.Manager
	Logger         *slog.Logger
}

// NewApplication loads configuration and builds the full dependency graph.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("application starting",
		slog.String("name", AppName),
		slog.String("version", Version),
		slog.String("addr", cfg.Server.Addr()))

	st, err := store.Open(cfg.Paths.DatabasePath(), store.Options{
		CacheTTL: cfg.Cache.TTL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	app := &Application{
		Config:         cfg,
		Store:          st,
		LicenseManager: license.NewManager(st.License(), logger),
		Logger:         logger,
	}

	app.setupRouter()
	app.createServer()
	return app, nil
}

// setupRouter builds the chi router and mounts the API surface. Visitor
// and blacklist routes sit behind the license gate; the licensing
// endpoints themselves stay open so an unlicensed install can activate.
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(a.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	licenseHandler := handlers.NewLicenseHandler(a.LicenseManager, a.Logger)
	visitorHandler := handlers.NewVisitorHandler(a.Store, a.Logger)
	userHandler := handlers.NewUserHandler(a.Store, a.Logger)

	limiter := middleware.RateLimit(
		a.Config.Server.ActivationRPS, a.Config.Server.ActivationBurst)

	r.Route("/api", func(r chi.Router) {
		r.Mount("/license", licenseHandler.Routes(limiter))

		r.Group(func(r chi.Router) {
			r.Use(licenseHandler.RequireLicense)
			r.Mount("/visitors", visitorHandler.Routes())
			r.Mount("/blacklist", visitorHandler.BlacklistRoutes())
			r.Mount("/users", userHandler.Routes())
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{
			"status":  "ok",
			"version": Version,
		})
	})

	a.Router = r
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled or
// an interrupt arrives, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutdown signal received")
	return a.Shutdown()
}

// Shutdown stops the server and releases resources in reverse start order.
func (a *Application) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(
		context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}

	if err := a.Store.Close(); err != nil {
		a.Logger.Error("store close failed", slog.String("error", err.Error()))
	}

	a.Logger.Info("application stopped")
	return infrastructure.CloseLogFile()
}
