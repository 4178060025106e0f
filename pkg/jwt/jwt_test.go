package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/workhive/chat-server/pkg/errcode"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims *Claims, secret string) string {
	t.Helper()
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestParseToken(t *testing.T) {
	token := signToken(t, &Claims{
		UserId: "user-1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserId)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token := signToken(t, &Claims{UserId: "user-1"}, "other-secret")

	_, err := ParseToken(token, testSecret)
	require.Error(t, err)
	e, ok := err.(*errcode.Error)
	require.True(t, ok)
	assert.Equal(t, errcode.ErrTokenInvalid.Code, e.Code)
}

func TestParseTokenExpired(t *testing.T) {
	token := signToken(t, &Claims{
		UserId: "user-1",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSecret)

	_, err := ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestParseTokenMissingUserId(t *testing.T) {
	token := signToken(t, &Claims{}, testSecret)

	_, err := ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	token := signToken(t, &Claims{UserId: "user-1"}, testSecret)

	_, err := ValidateToken(token, testSecret, "user-1")
	assert.NoError(t, err)

	_, err = ValidateToken(token, testSecret, "user-2")
	assert.Equal(t, errcode.ErrTokenMismatch, err)

	// Empty expectation skips the match check
	_, err = ValidateToken(token, testSecret, "")
	assert.NoError(t, err)
}
