package http

import (
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/clients/service"
)

type Handler struct {
	clientService *service.ClientService
}

func New(clientService *service.ClientService) *Handler {
	return &Handler{clientService: clientService}
}

type clientRequest struct {
	Name          *string          `json:"name"`
	ContactPerson *string          `json:"contactPerson"`
	Email         *string          `json:"email"`
	Phone         *string          `json:"phone"`
	Address       *string          `json:"address"`
	Notes         *string          `json:"notes"`
	TotalBudget   *decimal.Decimal `json:"totalBudget"`
	IsActive      *bool            `json:"isActive"`
}

func (r clientRequest) input() domain.ClientInput {
	return domain.ClientInput{
		Name:          r.Name,
		ContactPerson: r.ContactPerson,
		Email:         r.Email,
		Phone:         r.Phone,
		Address:       r.Address,
		Notes:         r.Notes,
		TotalBudget:   r.TotalBudget,
		IsActive:      r.IsActive,
	}
}
