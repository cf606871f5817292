package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role gates which operations an authenticated user may call.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// User is an account. Providers additionally carry a Provider dispatch
// profile keyed by the same id.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}
