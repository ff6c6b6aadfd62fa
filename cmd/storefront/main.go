package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/storefront/internal/auth"
	"github.com/Skotchmaster/storefront/internal/catalog"
	"github.com/Skotchmaster/storefront/internal/config"
	"github.com/Skotchmaster/storefront/internal/db"
	"github.com/Skotchmaster/storefront/internal/events"
	"github.com/Skotchmaster/storefront/internal/httpserver"
	"github.com/Skotchmaster/storefront/internal/localstore"
	"github.com/Skotchmaster/storefront/internal/logging"
	authmw "github.com/Skotchmaster/storefront/internal/middleware/auth"
	"github.com/Skotchmaster/storefront/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/storefront/internal/middleware/logging"
	"github.com/Skotchmaster/storefront/internal/middleware/session"
	"github.com/Skotchmaster/storefront/internal/repo"
)

const (
	sweepInterval  = time.Minute
	sessionIdleTTL = 2 * time.Hour
)

func main() {
	cfg := config.Load()
	config.MustNonEmpty(cfg.DatabaseURL, "DATABASE_URL")
	config.MustNonEmptyBytes(cfg.JWTSecret, "JWT_SECRET")

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.IntoContext(ctx, logger)

	gdb, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := gdb.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				logger.Error("db_close_error", "error", err)
			}
		}
	}()
	if err := db.Migrate(gdb); err != nil {
		return err
	}
	r := &repo.GormRepo{DB: gdb}

	var lookup catalog.Lookup = &catalog.DBCatalog{Repo: r}
	if cfg.ESURL != "" {
		es, err := catalog.NewESCatalog(ctx, catalog.ESConfig{
			URL:      cfg.ESURL,
			User:     cfg.ESUser,
			Password: cfg.ESPassword,
			Index:    cfg.ESIndex,
		})
		if err != nil {
			return fmt.Errorf("elasticsearch: %w", err)
		}
		lookup = es
	}

	registry := &httpserver.Registry{
		Auth:         auth.NewService(r, cfg.JWTSecret),
		Gateway:      r,
		SyncDebounce: cfg.SyncDebounce,
		IdleTTL:      sessionIdleTTL,
		Logger:       logger,
	}

	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopics(cfg.KafkaBrokers[0], events.Topics...); err != nil {
			logger.Warn("kafka_topics_error", "error", err)
		}
		prod, err := events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			return fmt.Errorf("kafka: %w", err)
		}
		defer func() {
			if err := prod.Close(); err != nil {
				logger.Error("kafka_close_error", "error", err)
			}
		}()
		registry.Events = prod
	}

	if cfg.StateDir != "" {
		store, err := localstore.NewFileStorage(cfg.StateDir)
		if err != nil {
			return err
		}
		registry.Storage = store
	}
	defer registry.Close()
	go registry.Run(ctx, sweepInterval)

	csrfCfg := csrf.DefaultConfig()
	csrfCfg.Secure = cfg.CookieSecure

	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.Recover())
	e.Use(loggingmw.RequestLogger(logger))

	httpserver.Register(e, &httpserver.Deps{
		CartHandler:      &httpserver.CartHTTP{Catalog: lookup},
		FavoritesHandler: &httpserver.FavoritesHTTP{Catalog: lookup},
		SessionHandler:   &httpserver.SessionHTTP{Tokens: registry, CookieSecure: cfg.CookieSecure},
		CatalogHandler:   &httpserver.CatalogHTTP{Catalog: lookup},
		Session:          session.Middleware(session.Config{Secure: cfg.CookieSecure}, registry),
		CSRF:             csrf.Middleware(csrfCfg),
		RequireLogin:     authmw.RequireLogin(authmw.Config{Tokens: registry, Secure: cfg.CookieSecure}),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      e,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_server_started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_error", "error", err)
	}
	logger.Info("shutdown_complete")
	return nil
}
