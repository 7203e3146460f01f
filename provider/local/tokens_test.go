package local

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-key"), "authflow", 0)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return now }

	token, expires, err := issuer.Issue("user-1", "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expires)

	claims, err := issuer.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@x.io", claims.Email)
	assert.Equal(t, "authflow", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenIssuerRejects(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer := NewTokenIssuer([]byte("test-key"), "authflow", time.Minute)
	issuer.now = func() time.Time { return now }

	token, _, err := issuer.Issue("user-1", "a@x.io")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		later := NewTokenIssuer([]byte("test-key"), "authflow", time.Minute)
		later.now = func() time.Time { return now.Add(2 * time.Minute) }

		_, err := later.Validate(token)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenIssuer([]byte("other-key"), "authflow", time.Minute)
		other.now = issuer.now

		_, err := other.Validate(token)
		assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenIssuer([]byte("test-key"), "someone-else", time.Minute)
		other.now = issuer.now

		_, err := other.Validate(token)
		assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Validate("not.a.token")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session token is invalid")
	})
}
