package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irma-project/irma-backend/internal/auth"
	"github.com/irma-project/irma-backend/internal/users/domain"
)

var columns = []string{
	"id", "firebase_uid", "first_name", "last_name", "email", "role", "department", "phone",
	"hourly_rate", "preferences", "created_at", "updated_at",
}

func setupRepo(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewUserRepository(db), mock
}

func TestUserRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("scans every column", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs("u-1").
			WillReturnRows(sqlmock.NewRows(columns).AddRow(
				"u-1", nil, "Ada", "Lovelace", "ada@example.com", "manager", "Engineering", "555-0100",
				"125.50", []byte(`{"theme":"dark"}`), now, now,
			))

		user, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleManager, user.Role)
		assert.Equal(t, "", user.FirebaseUID)
		assert.True(t, decimal.RequireFromString("125.50").Equal(user.HourlyRate))
		assert.Equal(t, "dark", user.Preferences["theme"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps no rows to ErrUserNotFound", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(columns))

		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})
}

func TestUserRepository_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("returns timestamps from the insert", func(t *testing.T) {
		repo, mock := setupRepo(t)
		now := time.Now().UTC()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

		user := &domain.User{ID: "u-1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: auth.RoleEmployee}
		require.NoError(t, repo.Create(ctx, user))
		assert.Equal(t, now, user.CreatedAt)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a unique violation to ErrUserExists", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WillReturnError(&pq.Error{Code: "23505", Message: `duplicate key value violates unique constraint "users_email_key"`})

		err := repo.Create(ctx, &domain.User{ID: "u-2", Email: "ada@example.com", Role: auth.RoleEmployee})
		assert.ErrorIs(t, err, domain.ErrUserExists)
	})
}

func TestUserRepository_Rates(t *testing.T) {
	ctx := context.Background()

	t.Run("returns only known users", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("SELECT id, hourly_rate FROM users WHERE id = ANY($1)")).
			WithArgs(sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "hourly_rate"}).AddRow("u-1", "100.00"))

		rates, err := repo.Rates(ctx, []string{"u-1", "gone"})
		require.NoError(t, err)
		require.Len(t, rates, 1)
		assert.Equal(t, "100", rates["u-1"].String())
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips the query for no ids", func(t *testing.T) {
		repo, mock := setupRepo(t)
		rates, err := repo.Rates(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, rates)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("reports a missing user", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs("missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, repo.Delete(ctx, "missing"), domain.ErrUserNotFound)
	})

	t.Run("deletes an existing user", func(t *testing.T) {
		repo, mock := setupRepo(t)
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).
			WithArgs("u-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Delete(ctx, "u-1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUserRepository_List(t *testing.T) {
	repo, mock := setupRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE role = $1 AND department = $2 ORDER BY last_name, first_name")).
		WithArgs("employee", "Design").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow("u-1", "fb-1", "Grace", "Hopper", "grace@example.com", "employee", "Design", "", "80", nil, now, now))

	users, err := repo.List(context.Background(), domain.ListFilter{Role: auth.RoleEmployee, Department: "Design"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "fb-1", users[0].FirebaseUID)
	assert.NotNil(t, users[0].Preferences)
}
