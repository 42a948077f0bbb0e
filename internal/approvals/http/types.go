package http

import (
	"github.com/irma-project/irma-backend/internal/approvals/domain"
	"github.com/irma-project/irma-backend/internal/approvals/service"
)

type Handler struct {
	svc *service.ApprovalService
}

func New(svc *service.ApprovalService) *Handler {
	return &Handler{svc: svc}
}

type batchReq struct {
	TimesheetIDs []string `json:"timesheetIds"`
	Action       string   `json:"action"`
	Reason       string   `json:"reason"`
}

func (r batchReq) request() domain.BatchRequest {
	return domain.BatchRequest{
		TimesheetIDs: r.TimesheetIDs,
		Action:       domain.Action(r.Action),
		Reason:       r.Reason,
	}
}
