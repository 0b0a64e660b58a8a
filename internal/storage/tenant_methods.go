package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Tenant Methods ==========

const tenantColumns = `id, created_at, updated_at, slug, business_name, description, phone,
               email, timezone, branding, operating_hours, outlets, integrations,
               is_active, suspended_at`

func scanTenant(row rowScanner) (*models.Tenant, error) {
	tenant := &models.Tenant{}
	err := row.Scan(
		&tenant.ID, &tenant.CreatedAt, &tenant.UpdatedAt, &tenant.Slug,
		&tenant.BusinessName, &tenant.Description, &tenant.Phone, &tenant.Email,
		&tenant.Timezone, &tenant.Branding, &tenant.OperatingHours,
		&tenant.Outlets, &tenant.Integrations, &tenant.IsActive, &tenant.SuspendedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return tenant, nil
}

// CreateTenant creates a new tenant
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == uuid.Nil {
		tenant.ID = uuid.New()
	}

	now := time.Now()
	tenant.CreatedAt = now
	tenant.UpdatedAt = now
	tenant.Slug = strings.ToLower(tenant.Slug)

	query := `
        INSERT INTO tenants (
            id, created_at, updated_at, slug, business_name, description, phone,
            email, timezone, branding, operating_hours, outlets, integrations, is_active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.CreatedAt, tenant.UpdatedAt, tenant.Slug,
		tenant.BusinessName, tenant.Description, tenant.Phone, tenant.Email,
		tenant.Timezone, tenant.Branding, tenant.OperatingHours, tenant.Outlets,
		tenant.Integrations, tenant.IsActive,
	)

	return mapError(err)
}

// GetTenant gets a tenant by ID
func (s *PostgresStore) GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`
	return scanTenant(s.getDB().QueryRowContext(ctx, query, id))
}

// GetTenantBySlug gets a tenant by its URL slug
func (s *PostgresStore) GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = $1`
	return scanTenant(s.getDB().QueryRowContext(ctx, query, strings.ToLower(slug)))
}

// UpdateTenant updates a tenant
func (s *PostgresStore) UpdateTenant(ctx context.Context, tenant *models.Tenant) error {
	tenant.UpdatedAt = time.Now()

	query := `
        UPDATE tenants SET
            updated_at = $2, business_name = $3, description = $4, phone = $5,
            email = $6, timezone = $7, branding = $8, operating_hours = $9,
            outlets = $10, integrations = $11, is_active = $12, suspended_at = $13
        WHERE id = $1`

	return expectOne(s.getDB().ExecContext(ctx, query,
		tenant.ID, tenant.UpdatedAt, tenant.BusinessName, tenant.Description,
		tenant.Phone, tenant.Email, tenant.Timezone, tenant.Branding,
		tenant.OperatingHours, tenant.Outlets, tenant.Integrations,
		tenant.IsActive, tenant.SuspendedAt,
	))
}

// ListTenants lists tenants
func (s *PostgresStore) ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error) {
	var count int64
	err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM tenants").Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := s.getDB().QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		tenant, err := scanTenant(rows)
		if err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, tenant)
	}

	return tenants, count, rows.Err()
}
