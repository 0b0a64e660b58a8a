package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Promo Methods ==========

const promoColumns = `id, created_at, updated_at, tenant_id, code, description, type, value,
               max_discount, min_order, starts_at, ends_at, usage_limit, used_count, active`

func scanPromo(row rowScanner) (*models.PromoCode, error) {
	p := &models.PromoCode{}
	err := row.Scan(
		&p.ID, &p.CreatedAt, &p.UpdatedAt, &p.TenantID, &p.Code, &p.Description,
		&p.Type, &p.Value, &p.MaxDiscount, &p.MinOrder, &p.StartsAt, &p.EndsAt,
		&p.UsageLimit, &p.UsedCount, &p.Active,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

// CreatePromo creates a new promo code; codes are unique per tenant
func (s *PostgresStore) CreatePromo(ctx context.Context, p *models.PromoCode) error {
	p.Touch(time.Now())
	p.Code = strings.ToUpper(p.Code)

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO promo_codes (
            id, created_at, updated_at, tenant_id, code, description, type, value,
            max_discount, min_order, starts_at, ends_at, usage_limit, used_count, active
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		p.ID, p.CreatedAt, p.UpdatedAt, p.TenantID, p.Code, p.Description, p.Type,
		p.Value, p.MaxDiscount, p.MinOrder, p.StartsAt, p.EndsAt, p.UsageLimit,
		p.UsedCount, p.Active,
	)
	return mapError(err)
}

// GetPromo gets a promo code by ID
func (s *PostgresStore) GetPromo(ctx context.Context, tenantID, id uuid.UUID) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE tenant_id = $1 AND id = $2`
	return scanPromo(s.getDB().QueryRowContext(ctx, query, tenantID, id))
}

// GetPromoByCode gets a promo by its customer-facing code, case-insensitively
func (s *PostgresStore) GetPromoByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.PromoCode, error) {
	query := `SELECT ` + promoColumns + ` FROM promo_codes WHERE tenant_id = $1 AND code = $2`
	return scanPromo(s.getDB().QueryRowContext(ctx, query, tenantID, strings.ToUpper(code)))
}

// UpdatePromo updates a promo code; usage count is left untouched
func (s *PostgresStore) UpdatePromo(ctx context.Context, p *models.PromoCode) error {
	p.UpdatedAt = time.Now()
	p.Code = strings.ToUpper(p.Code)

	return expectOne(s.getDB().ExecContext(ctx, `
        UPDATE promo_codes SET
            updated_at = $3, code = $4, description = $5, type = $6, value = $7,
            max_discount = $8, min_order = $9, starts_at = $10, ends_at = $11,
            usage_limit = $12, active = $13
        WHERE tenant_id = $1 AND id = $2`,
		p.TenantID, p.ID, p.UpdatedAt, p.Code, p.Description, p.Type, p.Value,
		p.MaxDiscount, p.MinOrder, p.StartsAt, p.EndsAt, p.UsageLimit, p.Active,
	))
}

// DeletePromo deletes a promo code
func (s *PostgresStore) DeletePromo(ctx context.Context, tenantID, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx,
		"DELETE FROM promo_codes WHERE tenant_id = $1 AND id = $2", tenantID, id))
}

// ListPromos lists the promo codes of a tenant
func (s *PostgresStore) ListPromos(ctx context.Context, tenantID uuid.UUID) ([]*models.PromoCode, error) {
	rows, err := s.getDB().QueryContext(ctx,
		`SELECT `+promoColumns+` FROM promo_codes WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var promos []*models.PromoCode
	for rows.Next() {
		p, err := scanPromo(rows)
		if err != nil {
			return nil, err
		}
		promos = append(promos, p)
	}
	return promos, rows.Err()
}

// IncrementPromoUsage consumes one use of a promo, failing when the limit is reached
func (s *PostgresStore) IncrementPromoUsage(ctx context.Context, tenantID, id uuid.UUID) error {
	err := expectOne(s.getDB().ExecContext(ctx, `
        UPDATE promo_codes SET used_count = used_count + 1, updated_at = $3
        WHERE tenant_id = $1 AND id = $2 AND (usage_limit = 0 OR used_count < usage_limit)`,
		tenantID, id, time.Now()))
	if err != ErrNotFound {
		return err
	}

	if _, getErr := s.GetPromo(ctx, tenantID, id); getErr != nil {
		return getErr
	}
	return fmt.Errorf("%w: %w", ErrInvalidData, models.ErrPromoExhausted)
}
