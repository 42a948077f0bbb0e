package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/auth"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

// User is a person who logs time. HourlyRate prices their billable hours both
// for budget debits and for invoice line items.
type User struct {
	ID          string          `json:"id"`
	FirebaseUID string          `json:"firebaseUid,omitempty"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Email       string          `json:"email"`
	Role        auth.Role       `json:"role"`
	Department  string          `json:"department"`
	Phone       string          `json:"phone"`
	HourlyRate  decimal.Decimal `json:"hourlyRate"`
	Preferences map[string]any  `json:"preferences,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

func (u *User) Principal() auth.Principal {
	return auth.Principal{ID: u.ID, Role: u.Role}
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type CreateUserRequest struct {
	FirebaseUID string
	FirstName   string
	LastName    string
	Email       string
	Role        auth.Role
	Department  string
	Phone       string
	HourlyRate  decimal.Decimal
}

// UpdateUserRequest carries the fields to change; nil means unchanged.
type UpdateUserRequest struct {
	FirstName   *string
	LastName    *string
	Email       *string
	Phone       *string
	Role        *auth.Role
	Department  *string
	HourlyRate  *decimal.Decimal
	Preferences map[string]any
}

// Privileged reports whether the request touches fields only an admin may change.
func (r *UpdateUserRequest) Privileged() bool {
	return r.Role != nil || r.Department != nil || r.HourlyRate != nil
}

type ListFilter struct {
	Role       auth.Role
	Department string
}
