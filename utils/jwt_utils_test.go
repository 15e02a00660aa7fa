package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func TestParseToken_RoundTrip(t *testing.T) {
	token, err := SignToken(&Claims{UserID: 42, Role: "ADMIN"}, secret)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)

	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ADMIN", claims.Role)
}

func TestParseToken_Rejects(t *testing.T) {
	expired, err := SignToken(&Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
	}, secret)
	require.NoError(t, err)
	noUser, err := SignToken(&Claims{Role: "USER"}, secret)
	require.NoError(t, err)
	otherKey, err := SignToken(&Claims{UserID: 1}, "another-secret")
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"missing user": noUser,
		"wrong secret": otherKey,
		"garbage":      "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseToken(token, secret)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
