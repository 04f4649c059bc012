package auth

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"cambio/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_GenerateSessionToken(t *testing.T) {
	svc := NewTokenService()

	seen := make(map[string]struct{})
	for range 50 {
		token, err := svc.GenerateSessionToken()
		require.NoError(t, err)

		raw, err := base64.RawURLEncoding.DecodeString(token)
		require.NoError(t, err, "token must be url-safe base64")
		assert.Len(t, raw, sessionTokenBytes)
		assert.NotContains(t, token, "=")

		_, dup := seen[token]
		assert.False(t, dup)
		seen[token] = struct{}{}
	}
}

func TestTokenService_GenerateRecoveryCode(t *testing.T) {
	svc := NewTokenService()

	code, err := svc.GenerateRecoveryCode()
	require.NoError(t, err)

	raw, err := hex.DecodeString(code)
	require.NoError(t, err)
	assert.Len(t, raw, recoveryCodeBytes)

	other, err := svc.GenerateRecoveryCode()
	require.NoError(t, err)
	assert.NotEqual(t, code, other)
}

func TestTokenService_GenerateSecretPassesPolicy(t *testing.T) {
	svc := NewTokenService()
	hasher := NewPasswordHasher(&config.Config{PasswordStrength: config.DefaultPasswordStrength()})

	for range 100 {
		secret, err := svc.GenerateSecret()
		require.NoError(t, err)
		assert.Len(t, secret, secretLength)
		assert.NoError(t, hasher.ValidatePasswordStrength(secret), secret)
	}
}

func TestTokenService_Compare(t *testing.T) {
	svc := NewTokenService()

	assert.True(t, svc.Compare("abc123", "abc123"))
	assert.False(t, svc.Compare("abc123", "abc124"))
	assert.False(t, svc.Compare("abc123", "abc1234"))
	assert.False(t, svc.Compare("", "a"))
	assert.True(t, svc.Compare(strings.Repeat("x", 64), strings.Repeat("x", 64)))
}
