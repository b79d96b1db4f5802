// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/app"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Services are the domain entry points
	Services *app.Services

	// Pool is the database pool for health checks; nil on the memory store
	Pool *postgres.Pool

	// AppName and Storage are reported by /health/info
	AppName string
	Storage string

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation; nil disables bearer auth and
	// attributes requests by the X-Employee-ID header instead
	JWTValidator middleware.JWTValidator

	// AuthRequired rejects requests without a valid token
	AuthRequired bool

	// ApproverRole, when set, is required to approve or reject orders
	ApproverRole string

	// Idempotency enables X-Idempotency-Key handling when non-nil
	Idempotency middleware.IdempotencyStore
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	if cfg.Logger != nil {
		router.Use(middleware.Logger(cfg.Logger))
	}
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth)
	healthHandler := handlers.NewHealthHandler(cfg.Pool, cfg.AppName, cfg.Storage)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		switch {
		case cfg.JWTValidator == nil:
			v1.Use(middleware.UserContext()) // 1. Attribute by header
		case cfg.AuthRequired:
			v1.Use(middleware.Auth(cfg.JWTValidator)) // 1. Validate JWT
		default:
			v1.Use(middleware.OptionalAuth(cfg.JWTValidator))
		}

		// 2. Replay duplicate mutating requests
		if cfg.Idempotency != nil {
			v1.Use(middleware.Idempotency(cfg.Idempotency))
		}

		registerItemRoutes(v1, cfg)
		registerOrderRoutes(v1, cfg)
	}

	return router
}

// registerItemRoutes registers stock item and ledger endpoints.
func registerItemRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	itemHandler := handlers.NewItemHandler(baseHandler, cfg.Services.Ledger)
	itemHandler.RegisterRoutes(rg.Group("/items"))
}

// registerOrderRoutes registers order fulfillment and return endpoints.
func registerOrderRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()
	orderHandler := handlers.NewOrderHandler(baseHandler, cfg.Services.Orders, cfg.Services.Returns)

	var decide gin.HandlerFunc
	if cfg.ApproverRole != "" {
		decide = middleware.RequireRole(cfg.ApproverRole)
	}
	orderHandler.RegisterRoutes(rg.Group("/orders"), decide)
}
