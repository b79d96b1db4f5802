package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"stockledger/internal/core/apperror"
	appctx "stockledger/internal/core/context"
)

// JWTValidator interface for token validation.
type JWTValidator interface {
	ValidateToken(tokenString string) (*appctx.UserContext, error)
}

// Auth middleware validates JWT tokens and populates user context.
func Auth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "missing or malformed authorization header")
			return
		}

		user, err := validator.ValidateToken(tokenString)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuth validates token if present, but doesn't require it.
// An invalid token is still rejected.
func OptionalAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		user, err := validator.ValidateToken(tokenString)
		if err != nil {
			_ = c.Error(apperror.NewUnauthorized("invalid token").WithCause(err))
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// RequireRole middleware checks if user has required role.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if appctx.GetUser(ctx) == nil {
			abortUnauthorized(c, "authentication required")
			return
		}

		for _, required := range roles {
			if appctx.HasRole(ctx, required) {
				c.Next()
				return
			}
		}
		_ = c.Error(
			apperror.NewForbidden("insufficient permissions").
				WithDetail("required_roles", roles),
		)
		c.Abort()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func setUser(c *gin.Context, user *appctx.UserContext) {
	ctx := appctx.WithUser(c.Request.Context(), user)
	c.Request = c.Request.WithContext(ctx)
	c.Set("user_id", user.UserID)
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
