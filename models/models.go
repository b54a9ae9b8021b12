package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a registered account. PasswordHash is persisted with the
// record but must never leave the store layer.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PublicUser is the subset of a User that is safe to hand to views and API clients.
type PublicUser struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"createdAt"`
}

// Public strips credentials from the user record.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, CreatedAt: u.CreatedAt}
}

// LoginRequest defines the structure for user login and registration requests.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirm,omitempty"`
}

// Claims defines the information stored in the session JWT.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// FlashClaims carries a one-shot notification across a redirect.
type FlashClaims struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	jwt.RegisteredClaims
}
