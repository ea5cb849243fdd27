package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims represents the identity payload supplied by the external auth
// collaborator: a stable user id plus role.
type JWTClaims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
