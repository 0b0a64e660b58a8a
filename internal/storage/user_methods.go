package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== User Methods ==========

const userColumns = `id, created_at, updated_at, tenant_id, name, email, phone, role,
               password_hash, is_active, last_login_at, pending_email,
               email_change_token, email_change_expiry, preferences`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.TenantID, &user.Name,
		&user.Email, &user.Phone, &user.Role, &user.PasswordHash, &user.IsActive,
		&user.LastLoginAt, &user.PendingEmail, &user.EmailChangeToken,
		&user.EmailChangeExpiry, &user.Preferences,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return user, nil
}

// CreateUser creates a new user
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	query := `
        INSERT INTO users (
            id, created_at, updated_at, tenant_id, name, email, phone, role,
            password_hash, is_active, preferences
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.getDB().ExecContext(ctx, query,
		user.ID, user.CreatedAt, user.UpdatedAt, user.TenantID, user.Name,
		user.Email, user.Phone, user.Role, user.PasswordHash, user.IsActive,
		user.Preferences,
	)

	return mapError(err)
}

// GetUser gets a user by ID
func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(s.getDB().QueryRowContext(ctx, query, id))
}

// GetUserByEmail gets a user by email within a tenant; a nil tenant selects platform accounts
func (s *PostgresStore) GetUserByEmail(ctx context.Context, tenantID *uuid.UUID, email string) (*models.User, error) {
	email = strings.ToLower(email)
	if tenantID == nil {
		query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id IS NULL AND email = $1`
		return scanUser(s.getDB().QueryRowContext(ctx, query, email))
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE tenant_id = $1 AND email = $2`
	return scanUser(s.getDB().QueryRowContext(ctx, query, *tenantID, email))
}

// GetUserByEmailToken finds the user holding a pending email change token
func (s *PostgresStore) GetUserByEmailToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE email_change_token = $1`
	return scanUser(s.getDB().QueryRowContext(ctx, query, token))
}

// UpdateUser updates a user
func (s *PostgresStore) UpdateUser(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	user.Email = strings.ToLower(user.Email)

	query := `
        UPDATE users SET
            updated_at = $2, name = $3, email = $4, phone = $5, role = $6,
            password_hash = $7, is_active = $8, last_login_at = $9,
            pending_email = $10, email_change_token = $11,
            email_change_expiry = $12, preferences = $13
        WHERE id = $1`

	return expectOne(s.getDB().ExecContext(ctx, query,
		user.ID, user.UpdatedAt, user.Name, user.Email, user.Phone, user.Role,
		user.PasswordHash, user.IsActive, user.LastLoginAt, user.PendingEmail,
		user.EmailChangeToken, user.EmailChangeExpiry, user.Preferences,
	))
}

// DeleteUser deletes a user of a tenant
func (s *PostgresStore) DeleteUser(ctx context.Context, tenantID, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx,
		"DELETE FROM users WHERE tenant_id = $1 AND id = $2", tenantID, id))
}

// ListUsers lists the users of a tenant, optionally limited to some roles
func (s *PostgresStore) ListUsers(ctx context.Context, tenantID uuid.UUID, roles []models.Role, limit, offset int) ([]*models.User, int64, error) {
	where := ` WHERE tenant_id = $1`
	args := []interface{}{tenantID}
	if len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		where += ` AND role = ANY($2)`
		args = append(args, pq.Array(names))
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}

	return users, count, rows.Err()
}
