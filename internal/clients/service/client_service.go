package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/clients/domain"
	"github.com/irma-project/irma-backend/internal/clients/repository"
	"github.com/irma-project/irma-backend/internal/storage/redisdoc"
)

type ClientService struct {
	repo *repository.ClientRepository
}

func NewClientService(repo *repository.ClientRepository) *ClientService {
	return &ClientService{repo: repo}
}

// Get returns a client. Callers without full client access only see active ones.
func (s *ClientService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.Client, error) {
	if !auth.Can(actor, auth.OpClientRead) {
		return nil, auth.Denied(auth.OpClientRead)
	}

	c, err := s.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive && auth.GrantFor(actor, auth.OpClientRead) != auth.Allow {
		return nil, apperr.NotFound("Client not found")
	}
	return c, nil
}

// Lookup loads a client without an authorization check, for other services.
func (s *ClientService) Lookup(ctx context.Context, id string) (*domain.Client, error) {
	c, err := s.repo.Get(ctx, id)
	if errors.Is(err, domain.ErrClientNotFound) {
		return nil, apperr.NotFound("Client not found")
	}
	return c, err
}

func (s *ClientService) List(ctx context.Context, actor auth.Principal, filter domain.ListFilter) ([]*domain.Client, error) {
	if !auth.Can(actor, auth.OpClientRead) {
		return nil, auth.Denied(auth.OpClientRead)
	}
	if auth.GrantFor(actor, auth.OpClientRead) != auth.Allow {
		filter.IncludeInactive = false
	}

	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]*domain.Client, 0, len(all))
	for _, c := range all {
		if !c.IsActive && !filter.IncludeInactive {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(c.Name), search) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *ClientService) Create(ctx context.Context, actor auth.Principal, in domain.ClientInput) (*domain.Client, error) {
	if err := auth.Authorize(actor, auth.OpClientWrite, ""); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.Client{
		ID:        uuid.NewString(),
		IsActive:  true,
		CreatedBy: actor.ID,
		CreatedAt: now,
	}
	if err := apply(c, in); err != nil {
		return nil, err
	}
	if c.Name == "" {
		return nil, apperr.Invalid(apperr.FieldError{Field: "name", Msg: "Client name is required"})
	}
	c.UpdatedAt = now

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientService) Update(ctx context.Context, actor auth.Principal, id string, in domain.ClientInput) (*domain.Client, error) {
	if err := auth.Authorize(actor, auth.OpClientWrite, ""); err != nil {
		return nil, err
	}

	c, err := s.repo.Update(ctx, id, func(c *domain.Client) error {
		if err := apply(c, in); err != nil {
			return err
		}
		if c.Name == "" {
			return apperr.Invalid(apperr.FieldError{Field: "name", Msg: "Client name is required"})
		}
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	return c, translate(err)
}

// Deactivate is the soft delete for clients.
func (s *ClientService) Deactivate(ctx context.Context, actor auth.Principal, id string) (*domain.Client, error) {
	if err := auth.Authorize(actor, auth.OpClientWrite, ""); err != nil {
		return nil, err
	}

	c, err := s.repo.Update(ctx, id, func(c *domain.Client) error {
		c.IsActive = false
		c.UpdatedAt = time.Now().UTC()
		return nil
	})
	return c, translate(err)
}

func apply(c *domain.Client, in domain.ClientInput) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.ContactPerson != nil {
		c.ContactPerson = *in.ContactPerson
	}
	if in.Email != nil {
		email := strings.TrimSpace(*in.Email)
		if email != "" {
			if _, err := mail.ParseAddress(email); err != nil {
				return apperr.Invalid(apperr.FieldError{Field: "email", Msg: "Please include a valid email"})
			}
		}
		c.Email = email
	}
	if in.Phone != nil {
		c.Phone = *in.Phone
	}
	if in.Address != nil {
		c.Address = *in.Address
	}
	if in.Notes != nil {
		c.Notes = *in.Notes
	}
	if in.TotalBudget != nil {
		if in.TotalBudget.IsNegative() {
			return apperr.Invalid(apperr.FieldError{Field: "totalBudget", Msg: "Total budget cannot be negative"})
		}
		c.TotalBudget = in.TotalBudget.Round(2)
	}
	if in.IsActive != nil {
		c.IsActive = *in.IsActive
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrClientNotFound):
		return apperr.NotFound("Client not found")
	case errors.Is(err, redisdoc.ErrConflict):
		return apperr.Conflict("Client was modified concurrently, please retry")
	}
	return err
}
