package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/approvals/domain"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/logging"
	tsdomain "github.com/irma-project/irma-backend/internal/timesheets/domain"
)

// Timesheets is the part of the timesheet service the approval queue drives.
type Timesheets interface {
	Approve(ctx context.Context, actor auth.Principal, id string) (*tsdomain.Timesheet, error)
	Reject(ctx context.Context, actor auth.Principal, id, reason string) (*tsdomain.Timesheet, error)
	Query(ctx context.Context, filter tsdomain.ListFilter) ([]*tsdomain.Timesheet, error)
}

type ApprovalService struct {
	timesheets Timesheets
}

func NewApprovalService(timesheets Timesheets) *ApprovalService {
	return &ApprovalService{timesheets: timesheets}
}

// Batch processes each id on its own; one failure never stops the rest.
func (s *ApprovalService) Batch(ctx context.Context, actor auth.Principal, req domain.BatchRequest) (*domain.BatchResult, error) {
	if err := auth.Authorize(actor, auth.OpApprovalQueue, ""); err != nil {
		return nil, err
	}
	if err := validateBatch(&req); err != nil {
		return nil, err
	}

	res := &domain.BatchResult{
		TotalProcessed: len(req.TimesheetIDs),
		Results:        make([]domain.ItemResult, 0, len(req.TimesheetIDs)),
	}
	for _, id := range req.TimesheetIDs {
		item := s.process(ctx, actor, req, id)
		if item.Success {
			res.SuccessCount++
		} else {
			res.FailureCount++
		}
		res.Results = append(res.Results, item)
	}
	return res, nil
}

func (s *ApprovalService) process(ctx context.Context, actor auth.Principal, req domain.BatchRequest, id string) domain.ItemResult {
	var err error
	if req.Action == domain.ActionApprove {
		_, err = s.timesheets.Approve(ctx, actor, id)
	} else {
		_, err = s.timesheets.Reject(ctx, actor, id, req.Reason)
	}

	switch {
	case err == nil:
		return domain.ItemResult{ID: id, Success: true, Message: fmt.Sprintf("Timesheet %sd successfully", req.Action)}
	case apperr.Is(err, apperr.KindNotFound):
		return domain.ItemResult{ID: id, Message: "Timesheet not found"}
	case apperr.Is(err, apperr.KindConflict), apperr.Is(err, apperr.KindValidation):
		return domain.ItemResult{ID: id, Message: apperr.Message(err)}
	default:
		logging.FromContext(ctx).Error("approvals.batch "+id, err)
		return domain.ItemResult{ID: id, Message: "Server error processing timesheet"}
	}
}

func validateBatch(req *domain.BatchRequest) error {
	var fields []apperr.FieldError
	if req.TimesheetIDs == nil {
		fields = append(fields, apperr.FieldError{Field: "timesheetIds", Msg: "Timesheet IDs are required"})
	}
	if !req.Action.Valid() {
		fields = append(fields, apperr.FieldError{Field: "action", Msg: "Action is required"})
	}
	req.Reason = strings.TrimSpace(req.Reason)
	if req.Action == domain.ActionReject && req.Reason == "" {
		fields = append(fields, apperr.FieldError{Field: "reason", Msg: "Reason is required for rejection"})
	}
	if len(fields) > 0 {
		return apperr.Invalid(fields...)
	}
	return nil
}

// Pending lists the approval queue, oldest submission first.
func (s *ApprovalService) Pending(ctx context.Context, actor auth.Principal) ([]*tsdomain.Timesheet, error) {
	if err := auth.Authorize(actor, auth.OpApprovalQueue, ""); err != nil {
		return nil, err
	}
	items, err := s.timesheets.Query(ctx, tsdomain.ListFilter{
		Statuses: []tsdomain.Status{tsdomain.StatusSubmitted, tsdomain.StatusPending},
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].SubmittedAt, items[j].SubmittedAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.Before(*b)
	})
	return items, nil
}

// History lists decided timesheets, most recently changed first.
func (s *ApprovalService) History(ctx context.Context, actor auth.Principal, f domain.HistoryFilter) ([]*tsdomain.Timesheet, error) {
	if err := auth.Authorize(actor, auth.OpApprovalQueue, ""); err != nil {
		return nil, err
	}

	statuses := []tsdomain.Status{tsdomain.StatusApproved, tsdomain.StatusRejected}
	if st := tsdomain.Status(f.Status); st == tsdomain.StatusApproved || st == tsdomain.StatusRejected {
		statuses = []tsdomain.Status{st}
	}
	items, err := s.timesheets.Query(ctx, tsdomain.ListFilter{
		UserID:      f.UserID,
		Statuses:    statuses,
		UpdatedFrom: f.From,
		UpdatedTo:   f.To,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].UpdatedAt.After(items[j].UpdatedAt) })
	return items, nil
}
