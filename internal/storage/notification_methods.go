package storage

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Notification Methods ==========

// CreateNotification stores a notification for a user
func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO notifications (id, created_at, tenant_id, user_id, title, body, link)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.CreatedAt, n.TenantID, n.UserID, n.Title, n.Body, n.Link,
	)
	return mapError(err)
}

// ListNotifications lists the latest notifications of a user
func (s *PostgresStore) ListNotifications(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.Notification, error) {
	rows, err := s.getDB().QueryContext(ctx, `
        SELECT id, created_at, tenant_id, user_id, title, body, link, read_at
        FROM notifications
        WHERE tenant_id = $1 AND user_id = $2
        ORDER BY created_at DESC LIMIT $3`, tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		if err := rows.Scan(&n.ID, &n.CreatedAt, &n.TenantID, &n.UserID, &n.Title, &n.Body, &n.Link, &n.ReadAt); err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

// MarkNotificationRead marks one notification of a user as read
func (s *PostgresStore) MarkNotificationRead(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	return expectOne(s.getDB().ExecContext(ctx, `
        UPDATE notifications SET read_at = COALESCE(read_at, $4)
        WHERE tenant_id = $1 AND user_id = $2 AND id = $3`,
		tenantID, userID, id, time.Now()))
}

// MarkAllNotificationsRead marks every unread notification of a user as read
func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	result, err := s.getDB().ExecContext(ctx, `
        UPDATE notifications SET read_at = $3
        WHERE tenant_id = $1 AND user_id = $2 AND read_at IS NULL`,
		tenantID, userID, time.Now())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
