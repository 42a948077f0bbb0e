package http

import (
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/projects/domain"
	"github.com/irma-project/irma-backend/internal/projects/service"
)

// Handler bundles the dependencies for projects HTTP endpoints.
type Handler struct {
	svc *service.ProjectService
}

func New(svc *service.ProjectService) *Handler {
	return &Handler{svc: svc}
}

type projectReq struct {
	Name          *string             `json:"name"`
	ClientID      *string             `json:"clientId"`
	Description   *string             `json:"description"`
	StartDate     string              `json:"startDate"`
	EndDate       string              `json:"endDate"`
	Budget        *decimal.Decimal    `json:"budget"`
	Status        *string             `json:"status"`
	AssignedUsers []domain.Assignment `json:"assignedUsers"`
	IsTemplate    *bool               `json:"isTemplate"`
}

func (r projectReq) input() (domain.ProjectInput, error) {
	in := domain.ProjectInput{
		Name:          r.Name,
		ClientID:      r.ClientID,
		Description:   r.Description,
		Budget:        r.Budget,
		AssignedUsers: r.AssignedUsers,
		IsTemplate:    r.IsTemplate,
	}
	if r.Status != nil {
		status := domain.Status(*r.Status)
		in.Status = &status
	}

	var err error
	if in.StartDate, err = httpx.OptionalDate("startDate", r.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = httpx.OptionalDate("endDate", r.EndDate); err != nil {
		return in, err
	}
	return in, nil
}
