package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/finlog/backend/src/config"
)

func TestTokenRoundTrip(t *testing.T) {
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Hour}
	auth := NewAuthService("test-secret")

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	sub, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Hour}
	token, err := NewAuthService("secret-a").GenerateToken("42")
	require.NoError(t, err)

	_, err = NewAuthService("secret-b").ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	config.Cfg = &config.AppConfig{AccessTokenExpiry: -time.Minute}
	auth := NewAuthService("test-secret")

	token, err := auth.GenerateToken("42")
	require.NoError(t, err)

	_, err = auth.ValidateToken(token)
	assert.Error(t, err)
}

func TestGenerateRefreshTokenIsUnique(t *testing.T) {
	auth := NewAuthService("test-secret")

	a, err := auth.GenerateRefreshToken()
	require.NoError(t, err)
	b, err := auth.GenerateRefreshToken()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
