package http

import (
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/api/httpx"
	"github.com/irma-project/irma-backend/internal/timesheets/domain"
	"github.com/irma-project/irma-backend/internal/timesheets/service"
)

type Handler struct {
	svc *service.TimesheetService
}

func New(svc *service.TimesheetService) *Handler {
	return &Handler{svc: svc}
}

type entryReq struct {
	ProjectID   string          `json:"projectId" binding:"required"`
	Date        string          `json:"date" binding:"required"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description"`
	Billable    *bool           `json:"billable"`
}

func (r entryReq) input() (domain.EntryInput, error) {
	date, err := httpx.RequiredDate("date", r.Date)
	if err != nil {
		return domain.EntryInput{}, err
	}
	return domain.EntryInput{
		ProjectID:   r.ProjectID,
		Date:        date,
		Hours:       r.Hours,
		Description: r.Description,
		Billable:    r.Billable,
	}, nil
}

func entryInputs(reqs []entryReq) ([]domain.EntryInput, error) {
	out := make([]domain.EntryInput, 0, len(reqs))
	for _, r := range reqs {
		in, err := r.input()
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, nil
}

type entryPatchReq struct {
	ProjectID   *string          `json:"projectId"`
	Date        string           `json:"date"`
	Hours       *decimal.Decimal `json:"hours"`
	Description *string          `json:"description"`
	Billable    *bool            `json:"billable"`
}

func (r entryPatchReq) patch() (domain.EntryPatch, error) {
	p := domain.EntryPatch{
		ProjectID:   r.ProjectID,
		Hours:       r.Hours,
		Description: r.Description,
		Billable:    r.Billable,
	}
	var err error
	p.Date, err = httpx.OptionalDate("date", r.Date)
	return p, err
}

type createReq struct {
	StartDate string     `json:"startDate" binding:"required"`
	EndDate   string     `json:"endDate" binding:"required"`
	Entries   []entryReq `json:"entries" binding:"dive"`
	Notes     string     `json:"notes"`
}

func (r createReq) input() (domain.CreateInput, error) {
	var (
		in  domain.CreateInput
		err error
	)
	if in.StartDate, err = httpx.RequiredDate("startDate", r.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = httpx.RequiredDate("endDate", r.EndDate); err != nil {
		return in, err
	}
	if in.Entries, err = entryInputs(r.Entries); err != nil {
		return in, err
	}
	in.Notes = r.Notes
	return in, nil
}

type updateReq struct {
	StartDate string     `json:"startDate"`
	EndDate   string     `json:"endDate"`
	Entries   []entryReq `json:"entries" binding:"dive"`
	Notes     *string    `json:"notes"`
}

func (r updateReq) input() (domain.UpdateInput, error) {
	in := domain.UpdateInput{Notes: r.Notes}
	var err error
	if in.StartDate, err = httpx.OptionalDate("startDate", r.StartDate); err != nil {
		return in, err
	}
	if in.EndDate, err = httpx.OptionalDate("endDate", r.EndDate); err != nil {
		return in, err
	}
	if r.Entries != nil {
		if in.Entries, err = entryInputs(r.Entries); err != nil {
			return in, err
		}
	}
	return in, nil
}

type rejectReq struct {
	Reason string `json:"reason"`
}
