package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	clientdomain "github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/events"
	"github.com/irma-project/irma-backend/internal/projects/domain"
	"github.com/irma-project/irma-backend/internal/projects/repository"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

// ClientLookup resolves the client a project belongs to.
type ClientLookup interface {
	Lookup(ctx context.Context, id string) (*clientdomain.Client, error)
}

// ProjectService handles project-related business logic
type ProjectService struct {
	repo    *repository.ProjectRepository
	clients ClientLookup
	events  events.Publisher
}

// NewProjectService creates a new project service
func NewProjectService(repo *repository.ProjectRepository, clients ClientLookup, publisher events.Publisher) *ProjectService {
	return &ProjectService{
		repo:    repo,
		clients: clients,
		events:  publisher,
	}
}

// Get returns a project. Callers limited to their own projects get 404 for
// projects they are not assigned to and for cancelled ones.
func (s *ProjectService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.Project, error) {
	if !auth.Can(actor, auth.OpProjectRead) {
		return nil, auth.Denied(auth.OpProjectRead)
	}

	p, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(actor, p) {
		return nil, apperr.NotFound("Project not found")
	}
	return p, nil
}

// Lookup loads a project without an authorization check, for other services.
func (s *ProjectService) Lookup(ctx context.Context, id string) (*domain.Project, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrProjectNotFound) {
		return nil, apperr.NotFound("Project not found")
	}
	return p, err
}

// Names resolves project names for display, keyed by id.
func (s *ProjectService) Names(ctx context.Context, ids []string) (map[string]string, error) {
	byID, err := s.repo.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(byID))
	for id, p := range byID {
		names[id] = p.Name
	}
	return names, nil
}

func (s *ProjectService) List(ctx context.Context, actor auth.Principal, filter domain.ListFilter) ([]*domain.Project, error) {
	if !auth.Can(actor, auth.OpProjectRead) {
		return nil, auth.Denied(auth.OpProjectRead)
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Project, 0, len(all))
	for _, p := range all {
		if !visible(actor, p) {
			continue
		}
		if p.IsTemplate && !filter.IncludeTemplates {
			continue
		}
		if filter.ClientID != "" && p.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Create creates a new project
func (s *ProjectService) Create(ctx context.Context, actor auth.Principal, in domain.ProjectInput) (*domain.Project, error) {
	if err := auth.Authorize(actor, auth.OpProjectWrite, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	p := &domain.Project{
		ID:            uuid.NewString(),
		Status:        domain.StatusActive,
		AssignedUsers: []domain.Assignment{},
		CreatedBy:     actor.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.Budget == nil {
		zero := decimal.Zero
		in.Budget = &zero
	}

	if err := s.apply(ctx, p, in); err != nil {
		return nil, err
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CreateFromTemplate copies description, budget and team from a template
// project into a new one. in supplies the name, client and dates.
func (s *ProjectService) CreateFromTemplate(ctx context.Context, actor auth.Principal, templateID string, in domain.ProjectInput) (*domain.Project, error) {
	if err := auth.Authorize(actor, auth.OpProjectWrite, ""); err != nil {
		return nil, err
	}

	tmpl, err := s.Lookup(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if !tmpl.IsTemplate {
		return nil, apperr.Validation("Project is not a template")
	}

	notTemplate := false
	merged := domain.ProjectInput{
		Name:          in.Name,
		ClientID:      in.ClientID,
		Description:   in.Description,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		Budget:        in.Budget,
		Status:        in.Status,
		AssignedUsers: in.AssignedUsers,
		IsTemplate:    &notTemplate,
	}
	if merged.Name == nil {
		name := tmpl.Name + " (copy)"
		merged.Name = &name
	}
	if merged.ClientID == nil {
		merged.ClientID = &tmpl.ClientID
	}
	if merged.Description == nil {
		merged.Description = &tmpl.Description
	}
	if merged.Budget == nil {
		merged.Budget = &tmpl.Budget
	}
	if merged.AssignedUsers == nil {
		merged.AssignedUsers = append([]domain.Assignment(nil), tmpl.AssignedUsers...)
	}
	if merged.StartDate == nil {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		merged.StartDate = &today
	}

	return s.Create(ctx, actor, merged)
}

// Update edits a project. A new budget moves budgetRemaining by the same delta
// inside the same optimistic transaction as concurrent ledger debits.
func (s *ProjectService) Update(ctx context.Context, actor auth.Principal, id string, in domain.ProjectInput) (*domain.Project, error) {
	if err := auth.Authorize(actor, auth.OpProjectWrite, ""); err != nil {
		return nil, err
	}

	if in.ClientID != nil {
		if err := s.checkClient(ctx, *in.ClientID); err != nil {
			return nil, err
		}
	}

	var overrun bool
	p, err := s.repo.Update(ctx, id, func(p *domain.Project) error {
		wasNegative := p.BudgetRemaining.IsNegative()
		if err := applyFields(p, in); err != nil {
			return err
		}
		if err := validate(p); err != nil {
			return err
		}
		overrun = !wasNegative && p.BudgetRemaining.IsNegative()
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return nil, translate(err)
	}

	if overrun {
		events.Emit(ctx, s.events, events.New(events.ProjectBudgetOverrun, p.ID, actor.ID, map[string]any{
			"budget":          p.Budget.StringFixed(2),
			"budgetRemaining": p.BudgetRemaining.StringFixed(2),
		}))
	}
	return p, nil
}

// Cancel is the soft delete for projects.
func (s *ProjectService) Cancel(ctx context.Context, actor auth.Principal, id string) (*domain.Project, error) {
	if err := auth.Authorize(actor, auth.OpProjectWrite, ""); err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, id, func(p *domain.Project) error {
		p.Status = domain.StatusCancelled
		p.UpdatedAt = time.Now().UTC()
		return nil
	})
	return p, translate(err)
}

func (s *ProjectService) apply(ctx context.Context, p *domain.Project, in domain.ProjectInput) error {
	if in.ClientID != nil {
		if err := s.checkClient(ctx, *in.ClientID); err != nil {
			return err
		}
	}
	if in.Budget != nil {
		// A new project starts with its whole budget remaining.
		p.Budget = in.Budget.Round(2)
		p.BudgetRemaining = p.Budget
		in.Budget = nil
	}
	return applyFields(p, in)
}

func (s *ProjectService) checkClient(ctx context.Context, clientID string) error {
	if strings.TrimSpace(clientID) == "" {
		return apperr.Invalid(apperr.FieldError{Field: "clientId", Msg: "Client is required"})
	}
	if _, err := s.clients.Lookup(ctx, clientID); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.Invalid(apperr.FieldError{Field: "clientId", Msg: "Client not found"})
		}
		return err
	}
	return nil
}

func applyFields(p *domain.Project, in domain.ProjectInput) error {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.ClientID != nil {
		p.ClientID = *in.ClientID
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.StartDate != nil {
		p.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		end := *in.EndDate
		p.EndDate = &end
	}
	if in.Budget != nil {
		if in.Budget.IsNegative() {
			return apperr.Invalid(apperr.FieldError{Field: "budget", Msg: "Budget cannot be negative"})
		}
		p.SetBudget(*in.Budget)
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return apperr.Invalid(apperr.FieldError{Field: "status", Msg: "Status is invalid"})
		}
		p.Status = *in.Status
	}
	if in.AssignedUsers != nil {
		team := make([]domain.Assignment, 0, len(in.AssignedUsers))
		for _, a := range in.AssignedUsers {
			if a.Role == "" {
				a.Role = domain.MemberMember
			}
			if a.UserID == "" || !a.Role.Valid() {
				return apperr.Invalid(apperr.FieldError{Field: "assignedUsers", Msg: "Assigned users need a user id and a valid role"})
			}
			team = append(team, a)
		}
		p.AssignedUsers = team
	}
	if in.IsTemplate != nil {
		p.IsTemplate = *in.IsTemplate
	}
	return nil
}

func validate(p *domain.Project) error {
	var fields []apperr.FieldError
	if p.Name == "" {
		fields = append(fields, apperr.FieldError{Field: "name", Msg: "Project name is required"})
	}
	if p.ClientID == "" {
		fields = append(fields, apperr.FieldError{Field: "clientId", Msg: "Client is required"})
	}
	if p.StartDate.IsZero() {
		fields = append(fields, apperr.FieldError{Field: "startDate", Msg: "Start date is required"})
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		fields = append(fields, apperr.FieldError{Field: "endDate", Msg: "End date must be after start date"})
	}
	if p.Budget.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "budget", Msg: "Budget cannot be negative"})
	}
	if len(fields) > 0 {
		return apperr.Invalid(fields...)
	}
	return nil
}

func visible(actor auth.Principal, p *domain.Project) bool {
	if auth.GrantFor(actor, auth.OpProjectRead) == auth.Allow {
		return true
	}
	return p.IsAssigned(actor.ID) && p.Status != domain.StatusCancelled
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrProjectNotFound):
		return apperr.NotFound("Project not found")
	case errors.Is(err, redisdoc.ErrConflict):
		return apperr.Conflict("Project was modified concurrently, please retry")
	}
	return err
}
