// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	"stockledger/pkg/logger"
)

// Recovery middleware recovers from panics and returns 500 error.
// Logs stack trace but never exposes internal details to client.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// Log full stack trace
				logger.Error(c.Request.Context(), "panic recovered",
					"error", err,
					"stack", string(debug.Stack()),
				)

				// ErrorHandler is unwound by the panic, so respond here.
				_ = c.Error(apperror.NewInternal(fmt.Errorf("panic: %v", err)))
				body := gin.H{
					"code":    apperror.CodeInternal,
					"message": "Internal server error",
					"details": map[string]any{
						"request_id": c.GetString("request_id"),
					},
				}
				failIdempotency(c, http.StatusInternalServerError, body)
				c.AbortWithStatusJSON(http.StatusInternalServerError, body)
			}
		}()
		c.Next()
	}
}
