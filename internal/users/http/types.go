package http

import (
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/users/service"
)

type Handler struct {
	userService *service.UserService
}

func New(userService *service.UserService) *Handler {
	return &Handler{
		userService: userService,
	}
}

type createUserRequest struct {
	FirstName   string          `json:"firstName" binding:"required"`
	LastName    string          `json:"lastName" binding:"required"`
	Email       string          `json:"email" binding:"required,email"`
	Role        string          `json:"role" binding:"omitempty,oneof=employee supervisor manager admin"`
	Department  string          `json:"department"`
	Phone       string          `json:"phone"`
	HourlyRate  decimal.Decimal `json:"hourlyRate"`
	FirebaseUID string          `json:"firebaseUid"`
}

type updateUserRequest struct {
	FirstName   *string          `json:"firstName"`
	LastName    *string          `json:"lastName"`
	Email       *string          `json:"email"`
	Phone       *string          `json:"phone"`
	Role        *string          `json:"role"`
	Department  *string          `json:"department"`
	HourlyRate  *decimal.Decimal `json:"hourlyRate"`
	Preferences map[string]any   `json:"preferences"`
}
