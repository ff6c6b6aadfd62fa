package tokens

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIDToken_SetsExpectedClaims(t *testing.T) {
	t.Parallel()

	secret := []byte("test-secret")
	userID := uuid.NewString()
	exp := time.Now().Add(time.Hour).UTC()

	token, err := NewIDToken(secret, userID, "a@example.com", true, exp)
	require.NoError(t, err)

	claims, err := IDClaimsFromToken(token, secret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.True(t, claims.EmailVerified)
	assert.WithinDuration(t, exp, claims.ExpiresAt.Time, time.Second)
}

func TestIDClaimsFromToken_Rejects(t *testing.T) {
	t.Parallel()

	secret := []byte("test-secret")

	expired, err := NewIDToken(secret, "u", "a@example.com", false, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	_, err = IDClaimsFromToken(expired, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	valid, err := NewIDToken(secret, "u", "a@example.com", false, time.Now().Add(time.Minute))
	require.NoError(t, err)
	_, err = IDClaimsFromToken(valid, []byte("other"))
	assert.Error(t, err)

	_, err = IDClaimsFromToken("garbage", secret)
	assert.Error(t, err)
}
