package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("secret", "events", time.Hour)

	token, err := svc.Generate("user-1", "Alice")
	require.NoError(t, err)

	id, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", id.UserID)
	assert.Equal(t, "Alice", id.DisplayName)
}

func TestTokenService_Rejects(t *testing.T) {
	svc := NewTokenService("secret", "events", time.Hour)
	token, err := svc.Generate("user-1", "Alice")
	require.NoError(t, err)

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewTokenService("other", "events", time.Hour).Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		_, err := NewTokenService("secret", "someone-else", time.Hour).Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenService("secret", "events", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned", func(t *testing.T) {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1", Issuer: "events"},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenService_RequiresUser(t *testing.T) {
	_, err := NewTokenService("secret", "", time.Hour).Generate(" ", "x")
	assert.Error(t, err)
}
