package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Reservation Methods ==========

const reservationColumns = `id, created_at, updated_at, tenant_id, customer_id, outlet_id, name,
               phone, party_size, reserved_at, notes, status`

func scanReservation(row rowScanner) (*models.Reservation, error) {
	r := &models.Reservation{}
	err := row.Scan(
		&r.ID, &r.CreatedAt, &r.UpdatedAt, &r.TenantID, &r.CustomerID, &r.OutletID,
		&r.Name, &r.Phone, &r.PartySize, &r.ReservedAt, &r.Notes, &r.Status,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return r, nil
}

// CreateReservation creates a new reservation
func (s *PostgresStore) CreateReservation(ctx context.Context, r *models.Reservation) error {
	r.Touch(time.Now())
	if r.Status == "" {
		r.Status = models.ReservationPending
	}

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO reservations (
            id, created_at, updated_at, tenant_id, customer_id, outlet_id, name,
            phone, party_size, reserved_at, notes, status
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.CreatedAt, r.UpdatedAt, r.TenantID, r.CustomerID, r.OutletID,
		r.Name, r.Phone, r.PartySize, r.ReservedAt, r.Notes, r.Status,
	)
	return mapError(err)
}

// GetReservation gets a reservation of a tenant
func (s *PostgresStore) GetReservation(ctx context.Context, tenantID, id uuid.UUID) (*models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE tenant_id = $1 AND id = $2`
	return scanReservation(s.getDB().QueryRowContext(ctx, query, tenantID, id))
}

// UpdateReservationStatus sets the status of a reservation
func (s *PostgresStore) UpdateReservationStatus(ctx context.Context, tenantID, id uuid.UUID, status models.ReservationStatus) error {
	return expectOne(s.getDB().ExecContext(ctx,
		`UPDATE reservations SET status = $3, updated_at = $4 WHERE tenant_id = $1 AND id = $2`,
		tenantID, id, status, time.Now()))
}

// ListReservations lists reservations, optionally of a single customer, by reservation time
func (s *PostgresStore) ListReservations(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID, limit, offset int) ([]*models.Reservation, int64, error) {
	where := " WHERE tenant_id = $1"
	args := []interface{}{tenantID}
	if customerID != nil {
		args = append(args, *customerID)
		where += " AND customer_id = $2"
	}

	var count int64
	if err := s.getDB().QueryRowContext(ctx, "SELECT COUNT(*) FROM reservations"+where, args...).Scan(&count); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + reservationColumns + ` FROM reservations` + where +
		fmt.Sprintf(" ORDER BY reserved_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.getDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var list []*models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, r)
	}
	return list, count, rows.Err()
}
