package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/auth/middleware"
	"github.com/irma-project/irma-backend/internal/users/domain"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.User, error)
	Rates(ctx context.Context, ids []string) (map[string]decimal.Decimal, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
}

type UserService struct {
	repo Repository
}

func NewUserService(repo Repository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) Get(ctx context.Context, actor auth.Principal, id string) (*domain.User, error) {
	if err := auth.Authorize(actor, auth.OpUserRead, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

func (s *UserService) List(ctx context.Context, actor auth.Principal, filter domain.ListFilter) ([]*domain.User, error) {
	if err := auth.Authorize(actor, auth.OpUserRead, ""); err != nil {
		return nil, apperr.Forbidden("Not authorized to view all users")
	}
	return s.repo.List(ctx, filter)
}

// Create registers a user. Only admins may do this.
func (s *UserService) Create(ctx context.Context, actor auth.Principal, req *domain.CreateUserRequest) (*domain.User, error) {
	if err := auth.Authorize(actor, auth.OpUserAdmin, ""); err != nil {
		return nil, apperr.Forbidden("Not authorized to create users")
	}

	var fields []apperr.FieldError
	if strings.TrimSpace(req.FirstName) == "" {
		fields = append(fields, apperr.FieldError{Field: "firstName", Msg: "First name is required"})
	}
	if strings.TrimSpace(req.LastName) == "" {
		fields = append(fields, apperr.FieldError{Field: "lastName", Msg: "Last name is required"})
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		fields = append(fields, apperr.FieldError{Field: "email", Msg: "Please include a valid email"})
	}
	if req.Role == "" {
		req.Role = auth.RoleEmployee
	}
	if !req.Role.Valid() {
		fields = append(fields, apperr.FieldError{Field: "role", Msg: "Role is required"})
	}
	if req.HourlyRate.IsNegative() {
		fields = append(fields, apperr.FieldError{Field: "hourlyRate", Msg: "Hourly rate cannot be negative"})
	}
	if len(fields) > 0 {
		return nil, apperr.Invalid(fields...)
	}

	user := &domain.User{
		ID:          uuid.NewString(),
		FirebaseUID: req.FirebaseUID,
		FirstName:   strings.TrimSpace(req.FirstName),
		LastName:    strings.TrimSpace(req.LastName),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		Role:        req.Role,
		Department:  req.Department,
		Phone:       req.Phone,
		HourlyRate:  req.HourlyRate.Round(2),
		Preferences: map[string]any{"theme": "light"},
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, apperr.Validation("User already exists")
		}
		return nil, err
	}
	return user, nil
}

// Update changes profile fields. Users may edit themselves; role, department
// and hourly rate are admin-only.
func (s *UserService) Update(ctx context.Context, actor auth.Principal, id string, req *domain.UpdateUserRequest) (*domain.User, error) {
	if err := auth.Authorize(actor, auth.OpUserUpdate, id); err != nil {
		return nil, err
	}
	if req.Privileged() && !auth.Can(actor, auth.OpUserAdmin) {
		return nil, apperr.Forbidden("Not authorized to update role, department, or hourly rate")
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.FirstName != nil && *req.FirstName != "" {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil && *req.LastName != "" {
		user.LastName = *req.LastName
	}
	if req.Email != nil && *req.Email != "" {
		if _, err := mail.ParseAddress(*req.Email); err != nil {
			return nil, apperr.Invalid(apperr.FieldError{Field: "email", Msg: "Please include a valid email"})
		}
		user.Email = strings.ToLower(*req.Email)
	}
	if req.Phone != nil {
		user.Phone = *req.Phone
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, apperr.Invalid(apperr.FieldError{Field: "role", Msg: "Role is invalid"})
		}
		user.Role = *req.Role
	}
	if req.Department != nil {
		user.Department = *req.Department
	}
	if req.HourlyRate != nil {
		if req.HourlyRate.IsNegative() {
			return nil, apperr.Invalid(apperr.FieldError{Field: "hourlyRate", Msg: "Hourly rate cannot be negative"})
		}
		user.HourlyRate = req.HourlyRate.Round(2)
	}

	// Merge preferences if provided (don't overwrite existing ones)
	if len(req.Preferences) > 0 {
		if user.Preferences == nil {
			user.Preferences = make(map[string]any)
		}
		for k, v := range req.Preferences {
			user.Preferences[k] = v
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			return nil, apperr.NotFound("User not found")
		case errors.Is(err, domain.ErrUserExists):
			return nil, apperr.Validation("Email is already in use")
		}
		return nil, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, actor auth.Principal, id string) error {
	if err := auth.Authorize(actor, auth.OpUserAdmin, ""); err != nil {
		return apperr.Forbidden("Not authorized to delete users")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return apperr.NotFound("User not found")
		}
		return err
	}
	return nil
}

// Rates resolves hourly rates for pricing. Users that no longer exist are
// priced at zero.
func (s *UserService) Rates(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	return s.repo.Rates(ctx, ids)
}

// Lookup maps a Firebase UID onto the principal of the registered user.
func (s *UserService) Lookup(ctx context.Context, firebaseUID string) (auth.Principal, error) {
	user, err := s.repo.GetByFirebaseUID(ctx, firebaseUID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return auth.Principal{}, middleware.ErrUnknownUser
	}
	if err != nil {
		return auth.Principal{}, err
	}
	return user.Principal(), nil
}

func (s *UserService) load(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
