package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
)

func signToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestValidateAcceptsValidToken(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret"})
	token := signToken(t, "secret", models.JWTClaims{
		UserID: "user-1",
		Role:   "student",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "student", claims.Role)
}

func TestValidateRejectsWrongSecret(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret"})
	token := signToken(t, "other", models.JWTClaims{UserID: "user-1"})

	_, err := svc.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret"})
	token := signToken(t, "secret", models.JWTClaims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	_, err := svc.Validate(token)
	assert.Error(t, err)
}

func TestValidateRejectsMissingUserID(t *testing.T) {
	svc := NewTokenService(config.JWTConfig{Secret: "secret"})
	token := signToken(t, "secret", models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	_, err := svc.Validate(token)
	assert.Error(t, err)
}
