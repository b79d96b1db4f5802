// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/infrastructure/storage/postgres"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool    *postgres.Pool
	app     string
	storage string
}

// NewHealthHandler creates a new health handler. pool is nil when the
// service runs on the in-memory store.
func NewHealthHandler(pool *postgres.Pool, app, storage string) *HealthHandler {
	return &HealthHandler{pool: pool, app: app, storage: storage}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.pool == nil {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"checks": map[string]string{
				"database": "not configured",
			},
		})
		return
	}

	// Check database connection
	if err := h.pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": map[string]string{
			"database": "healthy",
		},
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     h.app,
		"version": "0.1.0",
		"storage": h.storage,
	}

	if h.pool != nil {
		stat := postgres.GetPoolStats(h.pool.Unwrap())
		info["database"] = map[string]any{
			"total_conns":    stat.TotalConns,
			"acquired_conns": stat.AcquiredConns,
			"idle_conns":     stat.IdleConns,
			"max_conns":      stat.MaxConns,
			"acquire_count":  stat.AcquireCount,
		}
	}

	c.JSON(http.StatusOK, info)
}
