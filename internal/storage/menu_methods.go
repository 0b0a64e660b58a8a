package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Menu Methods ==========

// CreateMenuCategory creates a new menu category
func (s *PostgresStore) CreateMenuCategory(ctx context.Context, category *models.MenuCategory) error {
	category.Touch(time.Now())

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO menu_categories (id, created_at, updated_at, tenant_id, name, sort_order)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		category.ID, category.CreatedAt, category.UpdatedAt, category.TenantID,
		category.Name, category.SortOrder,
	)
	return mapError(err)
}

// ListMenuCategories lists the categories of a tenant in display order
func (s *PostgresStore) ListMenuCategories(ctx context.Context, tenantID uuid.UUID) ([]*models.MenuCategory, error) {
	rows, err := s.getDB().QueryContext(ctx, `
        SELECT id, created_at, updated_at, tenant_id, name, sort_order
        FROM menu_categories
        WHERE tenant_id = $1
        ORDER BY sort_order, name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []*models.MenuCategory
	for rows.Next() {
		c := &models.MenuCategory{}
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &c.TenantID, &c.Name, &c.SortOrder); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const menuItemColumns = `id, created_at, updated_at, tenant_id, category_id, name, description,
               price, image_url, available, featured`

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	item := &models.MenuItem{}
	err := row.Scan(
		&item.ID, &item.CreatedAt, &item.UpdatedAt, &item.TenantID, &item.CategoryID,
		&item.Name, &item.Description, &item.Price, &item.ImageURL,
		&item.Available, &item.Featured,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return item, nil
}

// CreateMenuItem creates a new menu item
func (s *PostgresStore) CreateMenuItem(ctx context.Context, item *models.MenuItem) error {
	item.Touch(time.Now())

	query := `
        INSERT INTO menu_items (
            id, created_at, updated_at, tenant_id, category_id, name, description,
            price, image_url, available, featured
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.getDB().ExecContext(ctx, query,
		item.ID, item.CreatedAt, item.UpdatedAt, item.TenantID, item.CategoryID,
		item.Name, item.Description, item.Price, item.ImageURL, item.Available,
		item.Featured,
	)
	return mapError(err)
}

// GetMenuItem gets a menu item of a tenant
func (s *PostgresStore) GetMenuItem(ctx context.Context, tenantID, id uuid.UUID) (*models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE tenant_id = $1 AND id = $2`
	return scanMenuItem(s.getDB().QueryRowContext(ctx, query, tenantID, id))
}

// UpdateMenuItem updates a menu item
func (s *PostgresStore) UpdateMenuItem(ctx context.Context, item *models.MenuItem) error {
	item.UpdatedAt = time.Now()

	query := `
        UPDATE menu_items SET
            updated_at = $3, category_id = $4, name = $5, description = $6,
            price = $7, image_url = $8, available = $9, featured = $10
        WHERE tenant_id = $1 AND id = $2`

	return expectOne(s.getDB().ExecContext(ctx, query,
		item.TenantID, item.ID, item.UpdatedAt, item.CategoryID, item.Name,
		item.Description, item.Price, item.ImageURL, item.Available, item.Featured,
	))
}

// DeleteMenuItem deletes a menu item
func (s *PostgresStore) DeleteMenuItem(ctx context.Context, tenantID, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx,
		"DELETE FROM menu_items WHERE tenant_id = $1 AND id = $2", tenantID, id))
}

// ListMenuItems lists menu items with filters
func (s *PostgresStore) ListMenuItems(ctx context.Context, tenantID uuid.UUID, filter MenuFilter) ([]*models.MenuItem, error) {
	query := `SELECT ` + menuItemColumns + ` FROM menu_items WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	if filter.AvailableOnly {
		query += " AND available = true"
	}
	if filter.FeaturedOnly {
		query += " AND featured = true"
	}
	query += " ORDER BY name"

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
