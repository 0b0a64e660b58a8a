package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Order Methods ==========

const orderColumns = `id, created_at, updated_at, tenant_id, number, customer_id, outlet_id,
               status, subtotal, discount, total, promo_code, points_used, notes`

func scanOrder(row rowScanner) (*models.Order, error) {
	o := &models.Order{}
	err := row.Scan(
		&o.ID, &o.CreatedAt, &o.UpdatedAt, &o.TenantID, &o.Number, &o.CustomerID,
		&o.OutletID, &o.Status, &o.Subtotal, &o.Discount, &o.Total, &o.PromoCode,
		&o.PointsUsed, &o.Notes,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return o, nil
}

// CreateOrder inserts an order and its items.
// Outside a transaction the inserts run in one of their own.
func (s *PostgresStore) CreateOrder(ctx context.Context, order *models.Order) error {
	if s.tx == nil {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		return tx.Commit()
	}

	order.Touch(time.Now())

	_, err := s.tx.ExecContext(ctx, `
        INSERT INTO orders (
            id, created_at, updated_at, tenant_id, number, customer_id, outlet_id,
            status, subtotal, discount, total, promo_code, points_used, notes
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		order.ID, order.CreatedAt, order.UpdatedAt, order.TenantID, order.Number,
		order.CustomerID, order.OutletID, order.Status, order.Subtotal,
		order.Discount, order.Total, order.PromoCode, order.PointsUsed, order.Notes,
	)
	if err != nil {
		return mapError(err)
	}

	for i := range order.Items {
		item := &order.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		item.OrderID = order.ID
		_, err := s.tx.ExecContext(ctx, `
            INSERT INTO order_items (id, order_id, menu_item_id, name, unit_price, quantity)
            VALUES ($1, $2, $3, $4, $5, $6)`,
			item.ID, item.OrderID, item.MenuItemID, item.Name, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return mapError(err)
		}
	}

	return nil
}

// GetOrder gets an order with its items
func (s *PostgresStore) GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1 AND id = $2`
	order, err := scanOrder(s.getDB().QueryRowContext(ctx, query, tenantID, id))
	if err != nil {
		return nil, err
	}

	rows, err := s.getDB().QueryContext(ctx, `
        SELECT id, order_id, menu_item_id, name, unit_price, quantity
        FROM order_items WHERE order_id = $1 ORDER BY name`, order.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name, &item.UnitPrice, &item.Quantity); err != nil {
			return nil, err
		}
		order.Items = append(order.Items, item)
	}

	return order, rows.Err()
}

// UpdateOrderStatus moves an order from one status to another.
// ErrConflict is returned when the order is no longer in status from.
func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.OrderStatus) error {
	err := expectOne(s.getDB().ExecContext(ctx,
		`UPDATE orders SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2 AND status = $5`,
		tenantID, id, to, time.Now(), from))
	if err != ErrNotFound {
		return err
	}

	var current models.OrderStatus
	err = s.getDB().QueryRowContext(ctx,
		`SELECT status FROM orders WHERE tenant_id = $1 AND id = $2`, tenantID, id).Scan(&current)
	if err != nil {
		return mapError(err)
	}
	return ErrConflict
}

func orderWhere(tenantID uuid.UUID, filter models.OrderFilter) (string, []interface{}) {
	where := " WHERE tenant_id = $1"
	args := []interface{}{tenantID}

	if filter.CustomerID != nil {
		args = append(args, *filter.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			statuses[i] = string(st)
		}
		args = append(args, pq.Array(statuses))
		where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		where += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		where += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	return where, args
}

// ListOrders lists orders with filters, newest first; items are not loaded
func (s *PostgresStore) ListOrders(ctx context.Context, tenantID uuid.UUID, filter models.OrderFilter, limit, offset int) ([]*models.Order, int64, error) {
	where, args := orderWhere(tenantID, filter)

	var count int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM orders"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + ` FROM orders` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, order)
	}

	return orders, count, rows.Err()
}

// GetOrderStats aggregates orders created in [from, to).
// Cancelled orders are counted by status but excluded from revenue.
func (s *PostgresStore) GetOrderStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*models.OrderStats, error) {
	stats := &models.OrderStats{ByStatus: make(map[models.OrderStatus]int64)}

	rows, err := s.getDB().QueryContext(ctx, `
        SELECT status, COUNT(*), COALESCE(SUM(total), 0)
        FROM orders
        WHERE tenant_id = $1 AND created_at >= $2 AND created_at < $3
        GROUP BY status`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status models.OrderStatus
		var count int64
		var total decimal.Decimal
		if err := rows.Scan(&status, &count, &total); err != nil {
			return nil, err
		}
		stats.ByStatus[status] = count
		if status != models.OrderCancelled {
			stats.OrderCount += count
			stats.Revenue = stats.Revenue.Add(total)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.OrderCount > 0 {
		stats.AverageOrder = stats.Revenue.Div(decimal.NewFromInt(stats.OrderCount)).Round(2)
	}

	top, err := s.getDB().QueryContext(ctx, `
        SELECT oi.menu_item_id, oi.name, SUM(oi.quantity), SUM(oi.unit_price * oi.quantity)
        FROM order_items oi
        JOIN orders o ON o.id = oi.order_id
        WHERE o.tenant_id = $1 AND o.created_at >= $2 AND o.created_at < $3
          AND o.status <> 'cancelled'
        GROUP BY oi.menu_item_id, oi.name
        ORDER BY SUM(oi.quantity) DESC, oi.name
        LIMIT 5`, tenantID, from, to)
	if err != nil {
		return nil, err
	}
	defer top.Close()

	for top.Next() {
		var item models.TopItem
		if err := top.Scan(&item.MenuItemID, &item.Name, &item.Quantity, &item.Revenue); err != nil {
			return nil, err
		}
		stats.TopItems = append(stats.TopItems, item)
	}

	return stats, top.Err()
}
