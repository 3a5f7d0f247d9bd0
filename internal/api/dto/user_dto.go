package dto

import (
	"time"

	"github.com/mirmex/helpdesk/internal/domain"
)

// RegisterRequest payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse carries the issued token.
type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

// UpdateUserRequest is the admin directory edit payload.
type UpdateUserRequest struct {
	Email       *string   `json:"email"`
	Groups      *[]string `json:"groups"`
	IsSuperuser *bool     `json:"is_superuser"`
	Active      *bool     `json:"active"`
}

// UserResponse response.
type UserResponse struct {
	ID          string      `json:"id"`
	Username    string      `json:"username"`
	Email       string      `json:"email"`
	Role        domain.Role `json:"role"`
	Groups      []string    `json:"groups"`
	IsSuperuser bool        `json:"is_superuser"`
	Active      bool        `json:"active"`
	CreatedAt   time.Time   `json:"created_at"`
}
