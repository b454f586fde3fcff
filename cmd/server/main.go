// Command server boots the task backend HTTP API.
//
// Startup order:
//  1. Load .env (best effort) and parse configuration
//  2. Configure zerolog (global level, optional pretty console)
//  3. Install the OpenTelemetry trace pipeline (opt-in)
//  4. Open SQLite and run migrations
//  5. Register routes and serve until SIGINT/SIGTERM
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/go-task-backend/docs" // generated OpenAPI spec
	"github.com/tbourn/go-task-backend/internal/config"
	httpapi "github.com/tbourn/go-task-backend/internal/http"
	"github.com/tbourn/go-task-backend/internal/observability"
	"github.com/tbourn/go-task-backend/internal/repo"
	"github.com/tbourn/go-task-backend/internal/sysutil"
)

// build is stamped by the linker in release builds; "develop" otherwise.
var build = "develop"

// @title          Task Backend API
// @version        1.0
// @description    Task list service exposing JSON CRUD endpoints backed by SQLite.
// @contact.name   API Support
// @license.name   MIT
// @BasePath       /api/v1
// @schemes        http https
func main() {
	// Missing .env is fine; real deployments configure via the environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
			NoColor:    sysutil.IsTruthy(os.Getenv("NO_COLOR")),
		})
	}

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("startup")
	}
}

func run(cfg config.Config) error {
	ctx := context.Background()
	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), build)

	// Tracing first so later startup steps can emit spans.
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite %q: %w", cfg.DBPath, err)
	}
	defer func() {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("version", version).
			Str("db", cfg.DBPath).
			Msg("http server listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info().Str("signal", sig.String()).Msg("shutdown started")
		defer log.Info().Msg("shutdown complete")

		sctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}

	return nil
}
