package service

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/spayyavula/campuspandit-sub007/internal/models"
	"github.com/spayyavula/campuspandit-sub007/pkg/config"
	appErrors "github.com/spayyavula/campuspandit-sub007/pkg/errors"
)

// TokenService validates access tokens minted by the external auth
// collaborator. This service never issues tokens.
type TokenService struct {
	secret []byte
}

// NewTokenService builds the validator from config.
func NewTokenService(cfg config.JWTConfig) *TokenService {
	return &TokenService{secret: []byte(cfg.Secret)}
}

// Validate parses and validates an access token, returning its claims.
func (s *TokenService) Validate(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token missing user id")
	}
	return claims, nil
}
