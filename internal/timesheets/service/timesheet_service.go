package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/events"
	"github.com/irma-project/irma-backend/internal/metrics"
	projectdomain "github.com/irma-project/irma-backend/internal/projects/domain"
	projectrepo "github.com/irma-project/irma-backend/internal/projects/repository"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
	"github.com/irma-project/irma-backend/internal/timesheets/domain"
	"github.com/irma-project/irma-backend/internal/timesheets/repository"
)

// RateLookup resolves hourly rates by user id. Unknown users are absent.
type RateLookup interface {
	Rates(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
}

type ProjectLookup interface {
	Lookup(ctx context.Context, id string) (*projectdomain.Project, error)
}

type TimesheetService struct {
	repo     *repository.TimesheetRepository
	ledger   *projectrepo.Ledger
	projects ProjectLookup
	rates    RateLookup
	events   events.Publisher
}

func NewTimesheetService(
	repo *repository.TimesheetRepository,
	ledger *projectrepo.Ledger,
	projects ProjectLookup,
	rates RateLookup,
	publisher events.Publisher,
) *TimesheetService {
	return &TimesheetService{
		repo:     repo,
		ledger:   ledger,
		projects: projects,
		rates:    rates,
		events:   publisher,
	}
}

func (s *TimesheetService) Create(ctx context.Context, actor auth.Principal, in domain.CreateInput) (*domain.Timesheet, error) {
	if err := auth.Authorize(actor, auth.OpTimesheetCreate, ""); err != nil {
		return nil, err
	}
	if err := validatePeriod(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	entries, err := s.buildEntries(ctx, actor, in.Entries)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &domain.Timesheet{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Entries:   entries,
		Status:    domain.StatusDraft,
		Notes:     in.Notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.RecalculateTotals()

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// Get returns a timesheet. Callers limited to their own sheets get 404 for
// anyone else's rather than 403.
func (s *TimesheetService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.Timesheet, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, auth.OpTimesheetRead, t.UserID); err != nil {
		return nil, apperr.NotFound("Timesheet not found")
	}
	return t, nil
}

// List returns the sheets visible to actor, newest period first. Employees see
// their own; supervisors see their own plus everything past Draft.
func (s *TimesheetService) List(ctx context.Context, actor auth.Principal, filter domain.ListFilter) ([]*domain.Timesheet, error) {
	grant := auth.GrantFor(actor, auth.OpTimesheetRead)
	if grant == auth.Deny {
		return nil, auth.Denied(auth.OpTimesheetRead)
	}

	scope := filter.UserID
	if grant == auth.Own {
		scope = actor.ID
	}
	all, err := s.repo.List(ctx, scope)
	if err != nil {
		return nil, err
	}

	hideDrafts := actor.Role == auth.RoleSupervisor
	out := make([]*domain.Timesheet, 0, len(all))
	for _, t := range all {
		if grant == auth.Own && t.UserID != actor.ID {
			continue
		}
		if hideDrafts && t.Status == domain.StatusDraft && t.UserID != actor.ID {
			continue
		}
		if matches(t, filter) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.After(out[j].StartDate) })
	return out, nil
}

// Query filters timesheets without an actor scope, for approval queues and reports.
func (s *TimesheetService) Query(ctx context.Context, filter domain.ListFilter) ([]*domain.Timesheet, error) {
	all, err := s.repo.List(ctx, filter.UserID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Timesheet, 0, len(all))
	for _, t := range all {
		if matches(t, filter) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *TimesheetService) Update(ctx context.Context, actor auth.Principal, id string, in domain.UpdateInput) (*domain.Timesheet, error) {
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	start, end := current.StartDate, current.EndDate
	if in.StartDate != nil {
		start = *in.StartDate
	}
	if in.EndDate != nil {
		end = *in.EndDate
	}
	if err := validatePeriod(start, end); err != nil {
		return nil, err
	}

	var entries []domain.Entry
	if in.Entries != nil {
		if entries, err = s.buildEntries(ctx, actor, in.Entries); err != nil {
			return nil, err
		}
	}

	return s.mutate(ctx, id, func(t *domain.Timesheet) error {
		t.StartDate, t.EndDate = start, end
		if in.Entries != nil {
			t.Entries = entries
		}
		if in.Notes != nil {
			t.Notes = *in.Notes
		}
		return nil
	})
}

func (s *TimesheetService) AddEntry(ctx context.Context, actor auth.Principal, id string, in domain.EntryInput) (*domain.Timesheet, error) {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return nil, err
	}
	entries, err := s.buildEntries(ctx, actor, []domain.EntryInput{in})
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(t *domain.Timesheet) error {
		t.Entries = append(t.Entries, entries[0])
		return nil
	})
}

func (s *TimesheetService) UpdateEntry(ctx context.Context, actor auth.Principal, id, entryID string, patch domain.EntryPatch) (*domain.Timesheet, error) {
	current, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	i := current.FindEntry(entryID)
	if i < 0 {
		return nil, apperr.NotFound("Entry not found")
	}

	e := current.Entries[i]
	in := domain.EntryInput{
		ProjectID:   e.ProjectID,
		Date:        e.Date,
		Hours:       e.Hours,
		Description: e.Description,
		Billable:    &e.Billable,
	}
	if patch.ProjectID != nil {
		in.ProjectID = *patch.ProjectID
	}
	if patch.Date != nil {
		in.Date = *patch.Date
	}
	if patch.Hours != nil {
		in.Hours = *patch.Hours
	}
	if patch.Description != nil {
		in.Description = *patch.Description
	}
	if patch.Billable != nil {
		in.Billable = patch.Billable
	}

	built, err := s.buildEntries(ctx, actor, []domain.EntryInput{in})
	if err != nil {
		return nil, err
	}
	updated := built[0]
	updated.ID = entryID

	return s.mutate(ctx, id, func(t *domain.Timesheet) error {
		i := t.FindEntry(entryID)
		if i < 0 {
			return domain.ErrEntryNotFound
		}
		t.Entries[i] = updated
		return nil
	})
}

func (s *TimesheetService) RemoveEntry(ctx context.Context, actor auth.Principal, id, entryID string) (*domain.Timesheet, error) {
	if _, err := s.editable(ctx, actor, id); err != nil {
		return nil, err
	}

	return s.mutate(ctx, id, func(t *domain.Timesheet) error {
		i := t.FindEntry(entryID)
		if i < 0 {
			return domain.ErrEntryNotFound
		}
		t.Entries = append(t.Entries[:i], t.Entries[i+1:]...)
		return nil
	})
}

// Submit hands a Draft or Rejected sheet to the approvers. Only the owner may submit.
func (s *TimesheetService) Submit(ctx context.Context, actor auth.Principal, id string) (*domain.Timesheet, error) {
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, auth.OpTimesheetSubmit, current.UserID); err != nil {
		return nil, err
	}

	t, err := s.repo.Transact(ctx, id, func(_ *redisdoc.Tx, t *domain.Timesheet) error {
		next, err := domain.Transition(domain.ActionSubmit, t.Status)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		t.Status = next
		t.SubmittedAt = &now
		t.SubmittedBy = actor.ID
		t.RejectionReason = ""
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	events.Emit(ctx, s.events, events.New(events.TimesheetSubmitted, t.ID, actor.ID, map[string]any{
		"userId":     t.UserID,
		"totalHours": t.TotalHours.String(),
	}))
	return t, nil
}

// Approve moves a sheet to Approved and debits every billable entry from its
// project's budget at the owner's hourly rate. The status change and all
// debits commit in one transaction, so a sheet is debited exactly once.
func (s *TimesheetService) Approve(ctx context.Context, actor auth.Principal, id string) (*domain.Timesheet, error) {
	if err := auth.Authorize(actor, auth.OpTimesheetApprove, ""); err != nil {
		return nil, err
	}

	var staged projectrepo.Staged
	t, err := s.repo.Transact(ctx, id, func(tx *redisdoc.Tx, t *domain.Timesheet) error {
		next, err := domain.Transition(domain.ActionApprove, t.Status)
		if err != nil {
			return err
		}

		rate, err := s.rateOf(tx.Context(), t)
		if err != nil {
			return err
		}
		var debits []projectrepo.Debit
		for _, c := range t.BillableCosts(rate) {
			debits = append(debits, projectrepo.Debit{ProjectID: c.ProjectID, Amount: c.Amount})
		}
		if staged, err = s.ledger.StageDebits(tx, debits); err != nil {
			return err
		}

		now := time.Now().UTC()
		t.Status = next
		t.ApprovedAt = &now
		t.ApprovedBy = actor.ID
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	staged.Record()
	s.afterApprove(ctx, actor, t, staged)
	return t, nil
}

func (s *TimesheetService) afterApprove(ctx context.Context, actor auth.Principal, t *domain.Timesheet, staged projectrepo.Staged) {
	metrics.TimesheetApproved()

	events.Emit(ctx, s.events, events.New(events.TimesheetApproved, t.ID, actor.ID, map[string]any{
		"userId":        t.UserID,
		"billableHours": t.BillableHours().String(),
		"debits":        staged.Applied,
	}))
	for _, o := range staged.Overruns {
		events.Emit(ctx, s.events, events.New(events.ProjectBudgetOverrun, o.ProjectID, actor.ID, map[string]any{
			"name":            o.Name,
			"budgetRemaining": o.Remaining.StringFixed(2),
			"timesheetId":     t.ID,
		}))
	}
}

// Reject sends a sheet back to its owner with a reason.
func (s *TimesheetService) Reject(ctx context.Context, actor auth.Principal, id, reason string) (*domain.Timesheet, error) {
	if err := auth.Authorize(actor, auth.OpTimesheetApprove, ""); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Invalid(apperr.FieldError{Field: "reason", Msg: "Rejection reason is required"})
	}

	t, err := s.repo.Transact(ctx, id, func(_ *redisdoc.Tx, t *domain.Timesheet) error {
		next, err := domain.Transition(domain.ActionReject, t.Status)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		t.Status = next
		t.RejectedAt = &now
		t.RejectedBy = actor.ID
		t.RejectionReason = reason
		t.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	metrics.TimesheetRejected()
	events.Emit(ctx, s.events, events.New(events.TimesheetRejected, t.ID, actor.ID, map[string]any{
		"userId": t.UserID,
		"reason": reason,
	}))
	return t, nil
}

func (s *TimesheetService) rateOf(ctx context.Context, t *domain.Timesheet) (decimal.Decimal, error) {
	if t.BillableHours().IsZero() {
		return decimal.Zero, nil
	}
	rates, err := s.rates.Rates(ctx, []string{t.UserID})
	if err != nil {
		return decimal.Zero, err
	}
	// A deleted owner bills at zero.
	return rates[t.UserID], nil
}

// editable loads id and checks that actor may change it in its current state.
func (s *TimesheetService) editable(ctx context.Context, actor auth.Principal, id string) (*domain.Timesheet, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := auth.Authorize(actor, auth.OpTimesheetEdit, t.UserID); err != nil {
		return nil, err
	}
	if _, err := domain.Transition(domain.ActionEdit, t.Status); err != nil {
		return nil, apperr.Conflict(err.Error())
	}
	return t, nil
}

// mutate applies fn under the lock, re-checking that the sheet is still editable.
func (s *TimesheetService) mutate(ctx context.Context, id string, fn func(t *domain.Timesheet) error) (*domain.Timesheet, error) {
	t, err := s.repo.Transact(ctx, id, func(_ *redisdoc.Tx, t *domain.Timesheet) error {
		if _, err := domain.Transition(domain.ActionEdit, t.Status); err != nil {
			return err
		}
		if err := fn(t); err != nil {
			return err
		}
		t.RecalculateTotals()
		t.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

// buildEntries validates inputs and checks each project exists and, for roles
// below manager, that actor is assigned to it.
func (s *TimesheetService) buildEntries(ctx context.Context, actor auth.Principal, inputs []domain.EntryInput) ([]domain.Entry, error) {
	entries := make([]domain.Entry, 0, len(inputs))
	checked := make(map[string]bool)

	for _, in := range inputs {
		var fields []apperr.FieldError
		if strings.TrimSpace(in.ProjectID) == "" {
			fields = append(fields, apperr.FieldError{Field: "projectId", Msg: "Project is required"})
		}
		if in.Date.IsZero() {
			fields = append(fields, apperr.FieldError{Field: "date", Msg: "Date is required"})
		}
		if !domain.ValidHours(in.Hours) {
			fields = append(fields, apperr.FieldError{Field: "hours", Msg: "Hours must be between 0 and 24"})
		}
		if len(fields) > 0 {
			return nil, apperr.Invalid(fields...)
		}

		if !checked[in.ProjectID] {
			p, err := s.projects.Lookup(ctx, in.ProjectID)
			if err != nil {
				if apperr.Is(err, apperr.KindNotFound) {
					return nil, apperr.Invalid(apperr.FieldError{Field: "projectId", Msg: "Project not found"})
				}
				return nil, err
			}
			if !actor.Role.AtLeast(auth.RoleManager) && !p.IsAssigned(actor.ID) {
				return nil, apperr.Validation("You are not assigned to this project")
			}
			checked[in.ProjectID] = true
		}

		billable := true
		if in.Billable != nil {
			billable = *in.Billable
		}
		entries = append(entries, domain.Entry{
			ID:          uuid.NewString(),
			ProjectID:   in.ProjectID,
			Date:        in.Date,
			Hours:       in.Hours.Round(2),
			Description: strings.TrimSpace(in.Description),
			Billable:    billable,
		})
	}
	return entries, nil
}

func (s *TimesheetService) load(ctx context.Context, id string) (*domain.Timesheet, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return t, nil
}

func validatePeriod(start, end time.Time) error {
	var fields []apperr.FieldError
	if start.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "startDate", Msg: "Start date is required"})
	}
	if end.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "endDate", Msg: "End date is required"})
	}
	if len(fields) == 0 && end.Before(start) {
		fields = append(fields, apperr.FieldError{Field: "endDate", Msg: "End date must be on or after start date"})
	}
	if len(fields) > 0 {
		return apperr.Invalid(fields...)
	}
	return nil
}

func matches(t *domain.Timesheet, f domain.ListFilter) bool {
	if f.UserID != "" && t.UserID != f.UserID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if t.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && t.StartDate.Before(*f.From) {
		return false
	}
	if f.To != nil && t.EndDate.After(*f.To) {
		return false
	}
	if f.UpdatedFrom != nil && t.UpdatedAt.Before(*f.UpdatedFrom) {
		return false
	}
	if f.UpdatedTo != nil && t.UpdatedAt.After(*f.UpdatedTo) {
		return false
	}
	if f.Uninvoiced && t.Invoiced() {
		return false
	}
	return true
}

func translate(err error) error {
	var te *domain.TransitionError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &te):
		return apperr.Conflict(te.Error())
	case errors.Is(err, domain.ErrTimesheetNotFound):
		return apperr.NotFound("Timesheet not found")
	case errors.Is(err, domain.ErrEntryNotFound):
		return apperr.NotFound("Entry not found")
	case errors.Is(err, domain.ErrDuplicatePeriod):
		return apperr.Validation("A timesheet already exists for this period")
	case errors.Is(err, redisdoc.ErrConflict):
		return apperr.Conflict("Timesheet was modified concurrently, please retry")
	}
	return err
}
