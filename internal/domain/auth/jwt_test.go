package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))

	token, expiresAt, err := svc.GenerateAccessToken("emp-42", "a@plant.local", "assembly", []string{"storekeeper"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "emp-42", user.UserID)
	assert.Equal(t, "assembly", user.Department)
	assert.Equal(t, []string{"storekeeper"}, user.Roles)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig("secret"))
	token, _, err := svc.GenerateAccessToken("emp-42", "", "", nil)
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTService(DefaultJWTConfig("other")).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		cfg := DefaultJWTConfig("secret")
		cfg.Issuer = "someone-else"
		_, err := NewJWTService(cfg).ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		cfg := DefaultJWTConfig("secret")
		cfg.AccessTokenTTL = -time.Minute
		expired, _, err := NewJWTService(cfg).GenerateAccessToken("emp-42", "", "", nil)
		require.NoError(t, err)
		_, err = svc.ValidateToken(expired)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.Error(t, err)
	})
}
