package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

const HeaderIdempotencyKey = "X-Idempotency-Key"
const maxIdempotencyBodyBytes = 1 << 20 // 1 MiB

// Gin context keys shared with handlers and ErrorHandler.
const (
	ContextIdempotencyKey   = "idempotency_key"
	ContextIdempotencyStore = "idempotency_store"
)

// IdempotencyStore persists idempotency keys and their responses.
// Implemented by postgres.IdempotencyStore.
type IdempotencyStore interface {
	AcquireKey(ctx context.Context, key, userID, operation, requestHash string) (*postgres.IdempotencyReplay, error)
	CompleteKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
	FailKey(ctx context.Context, key string, statusCode int, contentType string, response any) error
}

// Idempotency middleware protects against duplicate requests.
// Used for POST/PUT/PATCH operations that should be idempotent.
func Idempotency(store IdempotencyStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only apply to mutating methods
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}

		userID := appctx.GetUserID(c.Request.Context())

		// Hash request body
		limited := io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1)
		body, _ := io.ReadAll(limited)
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			_ = c.Error(appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		hash := sha256.Sum256(body)
		requestHash := hex.EncodeToString(hash[:])

		// Operation name from path; the resource id is part of the key space
		operation := c.Request.Method + " " + c.Request.URL.Path

		replay, err := store.AcquireKey(c.Request.Context(), key, userID, operation, requestHash)
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				_ = c.Error(appErr)
				c.Abort()
				return
			}
			_ = c.Error(apperror.NewInternal(err).WithDetail("component", "idempotency"))
			c.Abort()
			return
		}

		// Return cached response if exists
		if replay != nil {
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		// Store key for completion
		c.Set(ContextIdempotencyKey, key)
		c.Set(ContextIdempotencyStore, store)

		c.Next()
	}
}

// CompleteIdempotency records a successful response for replay.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	if key, store, ok := idempotencyFrom(c); ok {
		ctx := c.Request.Context()
		if err := store.CompleteKey(ctx, key, statusCode, contentType, response); err != nil {
			logger.Warn(ctx, "idempotency key completion failed", "key", key, "error", err)
		}
	}
}

// failIdempotency records an error response for replay (best-effort).
func failIdempotency(c *gin.Context, statusCode int, body any) {
	if key, store, ok := idempotencyFrom(c); ok {
		ctx := c.Request.Context()
		if err := store.FailKey(ctx, key, statusCode, "application/json", body); err != nil {
			logger.Warn(ctx, "idempotency key completion failed", "key", key, "error", err)
		}
	}
}

func idempotencyFrom(c *gin.Context) (string, IdempotencyStore, bool) {
	key := c.GetString(ContextIdempotencyKey)
	if key == "" {
		return "", nil, false
	}
	v, ok := c.Get(ContextIdempotencyStore)
	if !ok {
		return "", nil, false
	}
	store, ok := v.(IdempotencyStore)
	return key, store, ok && store != nil
}
