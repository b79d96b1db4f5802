// Package main is the entry point for the stockledger API server.
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

	"stockledger/internal/app"
	"stockledger/internal/domain/auth"
	v1 "stockledger/internal/infrastructure/http/v1"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/config"
	"stockledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting stockledger server", "env", cfg.App.Env, "storage", cfg.App.Storage)

	// --- Storage ---
	var (
		backend app.Backend
		pool    *postgres.Pool
	)
	switch cfg.App.Storage {
	case config.StorageMemory:
		backend, _ = app.MemoryBackend()
		log.Warn("running on the in-memory store, data is lost on restart")
	default:
		poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
		poolCfg.MaxConns = int32(cfg.DB.MaxConns)
		poolCfg.MinConns = int32(cfg.DB.MinConns)

		pool, err = postgres.NewPool(ctx, poolCfg)
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		log.Info("database connection established")

		backend, err = app.PostgresBackend(pool)
		if err != nil {
			log.Fatalw("failed to wire postgres backend", "error", err)
		}
	}

	services := app.NewServices(backend, cfg.Ledger)

	// --- Router ---
	routerCfg := v1.RouterConfig{
		Services:     services,
		Pool:         pool,
		AppName:      cfg.App.Name,
		Storage:      cfg.App.Storage,
		Logger:       log,
		AuthRequired: cfg.Auth.Required,
		ApproverRole: cfg.Auth.ApproverRole,
	}

	if cfg.Auth.Enabled() {
		jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
		jwtConfig.Issuer = cfg.Auth.Issuer
		routerCfg.JWTValidator = auth.NewJWTService(jwtConfig)
	} else {
		log.Warn("JWT_SECRET not set, requests are attributed by the X-Employee-ID header")
	}

	if cfg.Idempotency.Enabled {
		if pool == nil {
			log.Warn("idempotency needs postgres storage, disabled")
		} else {
			routerCfg.Idempotency = postgres.NewIdempotencyStore(pool, postgres.NewTxManager(pool), cfg.Idempotency.TTL)
		}
	}

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := v1.NewRouter(routerCfg)

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}
