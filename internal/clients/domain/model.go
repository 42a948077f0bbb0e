package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrClientNotFound = errors.New("client not found")

type Client struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	ContactPerson string          `json:"contactPerson"`
	Email         string          `json:"email"`
	Phone         string          `json:"phone"`
	Address       string          `json:"address"`
	Notes         string          `json:"notes"`
	TotalBudget   decimal.Decimal `json:"totalBudget"`
	IsActive      bool            `json:"isActive"`
	CreatedBy     string          `json:"createdBy"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type ClientInput struct {
	Name          *string
	ContactPerson *string
	Email         *string
	Phone         *string
	Address       *string
	Notes         *string
	TotalBudget   *decimal.Decimal
	IsActive      *bool
}

type ListFilter struct {
	IncludeInactive bool
	Search          string
}
