package syncer

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "user-1"}
	if !expiresAt.IsZero() {
		claims["exp"] = expiresAt.Unix()
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiresAt(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)

	got, err := TokenExpiresAt(makeToken(t, exp))
	require.NoError(t, err)
	assert.True(t, got.Equal(exp))
}

func TestTokenExpiresAt_NoExpClaim(t *testing.T) {
	got, err := TokenExpiresAt(makeToken(t, time.Time{}))
	require.NoError(t, err)
	// Токен без exp считается бессрочным
	assert.True(t, got.IsZero())
}

func TestTokenExpiresAt_Garbage(t *testing.T) {
	_, err := TokenExpiresAt("not-a-jwt")
	assert.Error(t, err)
}

func TestCheckAuthToken(t *testing.T) {
	c, _ := newTestClient(t)
	// Без токена проверка пропускает
	assert.NoError(t, c.checkAuthToken())

	c, _ = newTestClient(t, WithAuthToken(makeToken(t, time.Now().Add(time.Hour))))
	assert.NoError(t, c.checkAuthToken())

	c, _ = newTestClient(t, WithAuthToken(makeToken(t, time.Now().Add(-time.Minute))))
	assert.ErrorIs(t, c.checkAuthToken(), ErrTokenExpired)

	// Нечитаемый токен не блокирует: последнее слово за бэкендом
	c, _ = newTestClient(t, WithAuthToken("opaque-api-key"))
	assert.NoError(t, c.checkAuthToken())
}
