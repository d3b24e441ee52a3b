package models

import "github.com/google/uuid"

// TokenType distinguishes access tokens from refresh tokens
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// TokenClaims represents the claims carried by tokens this service issues
type TokenClaims struct {
	UserID uuid.UUID `json:"sub"`   // Subject (user ID)
	Email  string    `json:"email"` // User email
	Type   TokenType `json:"typ"`   // access or refresh
	Exp    int64     `json:"exp"`   // Expiration time
	Iat    int64     `json:"iat"`   // Issued at
	Iss    string    `json:"iss"`   // Issuer
}
