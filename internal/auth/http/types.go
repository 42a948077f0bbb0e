package http

import (
	"context"

	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/users/domain"
)

// Profiles is the part of the user service the session endpoints use.
type Profiles interface {
	Get(ctx context.Context, actor auth.Principal, id string) (*domain.User, error)
	Update(ctx context.Context, actor auth.Principal, id string, req *domain.UpdateUserRequest) (*domain.User, error)
}

type Handler struct {
	profiles Profiles
}

func New(profiles Profiles) *Handler {
	return &Handler{profiles: profiles}
}

type profileResponse struct {
	User        *domain.User      `json:"user"`
	Permissions map[string]string `json:"permissions"`
}

// profileRequest is what a caller may change about themselves.
type profileRequest struct {
	FirstName   *string        `json:"firstName"`
	LastName    *string        `json:"lastName"`
	Phone       *string        `json:"phone"`
	Preferences map[string]any `json:"preferences"`
}
