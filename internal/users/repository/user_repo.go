package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/irma-project/irma-backend/internal/users/domain"
)

const uniqueViolation = "23505"

const userColumns = `id, firebase_uid, first_name, last_name, email, role, department, phone,
       hourly_rate, preferences, created_at, updated_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var firebaseUID sql.NullString
	var preferencesJSON []byte

	err := row.Scan(
		&user.ID,
		&firebaseUID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.Role,
		&user.Department,
		&user.Phone,
		&user.HourlyRate,
		&preferencesJSON,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if firebaseUID.Valid {
		user.FirebaseUID = firebaseUID.String
	}

	// Parse JSONB preferences
	user.Preferences = make(map[string]any)
	if len(preferencesJSON) > 0 {
		if err := json.Unmarshal(preferencesJSON, &user.Preferences); err != nil {
			user.Preferences = make(map[string]any)
		}
	}

	return &user, nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where

	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

// GetByFirebaseUID retrieves a user by their Firebase UID
func (r *UserRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.User, error) {
	return r.getOne(ctx, "firebase_uid = $1", uid)
}

func (r *UserRepository) List(ctx context.Context, filter domain.ListFilter) ([]*domain.User, error) {
	var conds []string
	var args []any
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, filter.Department)
		conds = append(conds, fmt.Sprintf("department = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY last_name, first_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Rates returns the hourly rate of each requested user. Unknown ids are absent
// from the map.
func (r *UserRepository) Rates(ctx context.Context, ids []string) (map[string]decimal.Decimal, error) {
	rates := make(map[string]decimal.Decimal, len(ids))
	if len(ids) == 0 {
		return rates, nil
	}

	rows, err := r.db.QueryContext(ctx, `SELECT id, hourly_rate FROM users WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var rate decimal.Decimal
		if err := rows.Scan(&id, &rate); err != nil {
			return nil, fmt.Errorf("failed to scan rate: %w", err)
		}
		rates[id] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	return rates, nil
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (id, firebase_uid, first_name, last_name, email, role, department, phone, hourly_rate, preferences)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	preferencesJSON, err := json.Marshal(user.Preferences)
	if err != nil || user.Preferences == nil {
		preferencesJSON = []byte("{}")
	}

	err = r.db.QueryRowContext(ctx, query,
		user.ID,
		user.FirebaseUID,
		user.FirstName,
		user.LastName,
		user.Email,
		string(user.Role),
		user.Department,
		user.Phone,
		user.HourlyRate,
		preferencesJSON,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update updates user information
func (r *UserRepository) Update(ctx context.Context, user *domain.User) error {
	query := `
		UPDATE users
		SET first_name = $2, last_name = $3, email = $4, role = $5, department = $6,
		    phone = $7, hourly_rate = $8, preferences = $9, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	preferencesJSON, err := json.Marshal(user.Preferences)
	if err != nil || user.Preferences == nil {
		preferencesJSON = []byte("{}")
	}

	err = r.db.QueryRowContext(ctx, query,
		user.ID,
		user.FirstName,
		user.LastName,
		user.Email,
		string(user.Role),
		user.Department,
		user.Phone,
		user.HourlyRate,
		preferencesJSON,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return domain.ErrUserExists
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
