package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irma-project/irma-backend/internal/apperr"
	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/auth/middleware"
	"github.com/irma-project/irma-backend/internal/users/domain"
)

type memRepo struct {
	users map[string]*domain.User
}

func newMemRepo(users ...*domain.User) *memRepo {
	r := &memRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) GetByFirebaseUID(_ context.Context, uid string) (*domain.User, error) {
	for _, u := range r.users {
		if u.FirebaseUID == uid {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *memRepo) List(context.Context, domain.ListFilter) ([]*domain.User, error) {
	out := make([]*domain.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	return out, nil
}

func (r *memRepo) Rates(_ context.Context, ids []string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out[id] = u.HourlyRate
		}
	}
	return out, nil
}

func (r *memRepo) Create(_ context.Context, user *domain.User) error {
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrUserExists
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memRepo) Update(_ context.Context, user *domain.User) error {
	if _, ok := r.users[user.ID]; !ok {
		return domain.ErrUserNotFound
	}
	r.users[user.ID] = user
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

var (
	admin    = auth.Principal{ID: "admin-1", Role: auth.RoleAdmin}
	manager  = auth.Principal{ID: "mgr-1", Role: auth.RoleManager}
	employee = auth.Principal{ID: "emp-1", Role: auth.RoleEmployee}
)

func employeeUser() *domain.User {
	return &domain.User{
		ID: "emp-1", FirebaseUID: "fb-emp", FirstName: "Sam", LastName: "Lee",
		Email: "sam@example.com", Role: auth.RoleEmployee, HourlyRate: decimal.NewFromInt(100),
	}
}

func TestUserService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("admins create users with a generated id", func(t *testing.T) {
		svc := NewUserService(newMemRepo())
		u, err := svc.Create(ctx, admin, &domain.CreateUserRequest{
			FirstName: "Ada", LastName: "Lovelace", Email: "Ada@Example.com", HourlyRate: decimal.RequireFromString("99.999"),
		})
		require.NoError(t, err)
		assert.NotEmpty(t, u.ID)
		assert.Equal(t, auth.RoleEmployee, u.Role)
		assert.Equal(t, "ada@example.com", u.Email)
		assert.Equal(t, "100", u.HourlyRate.String())
	})

	t.Run("non-admins are refused", func(t *testing.T) {
		svc := NewUserService(newMemRepo())
		_, err := svc.Create(ctx, manager, &domain.CreateUserRequest{FirstName: "A", LastName: "B", Email: "a@b.co"})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
		assert.Equal(t, "Not authorized to create users", apperr.Message(err))
	})

	t.Run("collects field errors", func(t *testing.T) {
		svc := NewUserService(newMemRepo())
		_, err := svc.Create(ctx, admin, &domain.CreateUserRequest{Email: "nope", HourlyRate: decimal.NewFromInt(-1)})
		require.True(t, apperr.Is(err, apperr.KindValidation))
		var e *apperr.Error
		require.ErrorAs(t, err, &e)
		assert.Len(t, e.Fields, 4)
	})

	t.Run("duplicate email reads as User already exists", func(t *testing.T) {
		svc := NewUserService(newMemRepo(employeeUser()))
		_, err := svc.Create(ctx, admin, &domain.CreateUserRequest{FirstName: "S", LastName: "L", Email: "sam@example.com"})
		assert.Equal(t, "User already exists", apperr.Message(err))
	})
}

func TestUserService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("users edit their own profile", func(t *testing.T) {
		svc := NewUserService(newMemRepo(employeeUser()))
		phone := "555-0101"
		u, err := svc.Update(ctx, employee, "emp-1", &domain.UpdateUserRequest{Phone: &phone, Preferences: map[string]any{"theme": "dark"}})
		require.NoError(t, err)
		assert.Equal(t, "555-0101", u.Phone)
		assert.Equal(t, "dark", u.Preferences["theme"])
	})

	t.Run("only admins change the hourly rate", func(t *testing.T) {
		svc := NewUserService(newMemRepo(employeeUser()))
		rate := decimal.NewFromInt(500)
		_, err := svc.Update(ctx, employee, "emp-1", &domain.UpdateUserRequest{HourlyRate: &rate})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))

		u, err := svc.Update(ctx, admin, "emp-1", &domain.UpdateUserRequest{HourlyRate: &rate})
		require.NoError(t, err)
		assert.True(t, rate.Equal(u.HourlyRate))
	})

	t.Run("managers cannot edit other users", func(t *testing.T) {
		svc := NewUserService(newMemRepo(employeeUser()))
		name := "X"
		_, err := svc.Update(ctx, manager, "emp-1", &domain.UpdateUserRequest{FirstName: &name})
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})
}

func TestUserService_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	svc := NewUserService(newMemRepo(employeeUser()))

	t.Run("employees may only read themselves", func(t *testing.T) {
		_, err := svc.Get(ctx, employee, "emp-1")
		require.NoError(t, err)

		_, err = svc.Get(ctx, employee, "other")
		assert.True(t, apperr.Is(err, apperr.KindForbidden))
	})

	t.Run("managers get 404 for unknown users", func(t *testing.T) {
		_, err := svc.Get(ctx, manager, "missing")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})

	t.Run("lookup maps unknown firebase users to ErrUnknownUser", func(t *testing.T) {
		p, err := svc.Lookup(ctx, "fb-emp")
		require.NoError(t, err)
		assert.Equal(t, employee, p)

		_, err = svc.Lookup(ctx, "fb-nobody")
		assert.ErrorIs(t, err, middleware.ErrUnknownUser)
	})

	t.Run("admins delete users", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, admin, "emp-1"))
		err := svc.Delete(ctx, admin, "emp-1")
		assert.True(t, apperr.Is(err, apperr.KindNotFound))
	})
}
