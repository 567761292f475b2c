package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds operator credentials.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries an issued access token. ExpiresIn is in seconds.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	Username    string    `json:"username"`
	IssuedAt    time.Time `json:"issued_at"`
}

// JWTClaims is the access token payload. Operators have no roles; every
// configured account may manage every student.
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// OperatorProfile describes the operator behind the current token.
type OperatorProfile struct {
	Username  string     `json:"username"`
	TokenID   string     `json:"token_id,omitempty"`
	IssuedAt  *time.Time `json:"issued_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Profile summarises the claims for display.
func (c *JWTClaims) Profile() OperatorProfile {
	profile := OperatorProfile{Username: c.Username, TokenID: c.ID}
	if c.IssuedAt != nil {
		t := c.IssuedAt.Time
		profile.IssuedAt = &t
	}
	if c.ExpiresAt != nil {
		t := c.ExpiresAt.Time
		profile.ExpiresAt = &t
	}
	return profile
}
