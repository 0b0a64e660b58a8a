package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// ========== Loyalty Methods ==========

// GetLoyaltyAccount returns the account of a user, zero valued when none exists yet
func (s *PostgresStore) GetLoyaltyAccount(ctx context.Context, tenantID, userID uuid.UUID) (*models.LoyaltyAccount, error) {
	account := &models.LoyaltyAccount{TenantID: tenantID, UserID: userID}
	err := s.getDB().QueryRowContext(ctx, `
        SELECT balance, lifetime, updated_at FROM loyalty_accounts
        WHERE tenant_id = $1 AND user_id = $2`, tenantID, userID,
	).Scan(&account.Balance, &account.Lifetime, &account.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return account, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// AddLoyaltyTransaction applies a ledger entry to the account balance.
// Outside a transaction the statements run in one of their own.
func (s *PostgresStore) AddLoyaltyTransaction(ctx context.Context, txn *models.LoyaltyTransaction) (*models.LoyaltyAccount, error) {
	if s.tx == nil {
		tx, err := s.BeginTx(ctx)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()
		account, err := tx.AddLoyaltyTransaction(ctx, txn)
		if err != nil {
			return nil, err
		}
		return account, tx.Commit()
	}

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}

	_, err := s.tx.ExecContext(ctx, `
        INSERT INTO loyalty_accounts (tenant_id, user_id, balance, lifetime, updated_at)
        VALUES ($1, $2, 0, 0, $3)
        ON CONFLICT (tenant_id, user_id) DO NOTHING`,
		txn.TenantID, txn.UserID, txn.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}

	account := &models.LoyaltyAccount{TenantID: txn.TenantID, UserID: txn.UserID, UpdatedAt: txn.CreatedAt}
	err = s.tx.QueryRowContext(ctx, `
        UPDATE loyalty_accounts
        SET balance = balance + $3, lifetime = lifetime + GREATEST($3, 0), updated_at = $4
        WHERE tenant_id = $1 AND user_id = $2 AND balance + $3 >= 0
        RETURNING balance, lifetime`,
		txn.TenantID, txn.UserID, txn.Points, txn.CreatedAt,
	).Scan(&account.Balance, &account.Lifetime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInsufficientPoints
	}
	if err != nil {
		return nil, err
	}

	_, err = s.tx.ExecContext(ctx, `
        INSERT INTO loyalty_transactions (id, created_at, tenant_id, user_id, order_id, points, reason)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		txn.ID, txn.CreatedAt, txn.TenantID, txn.UserID, txn.OrderID, txn.Points, txn.Reason)
	if err != nil {
		return nil, mapError(err)
	}

	return account, nil
}

// ListLoyaltyTransactions lists the latest ledger entries of a user
func (s *PostgresStore) ListLoyaltyTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.LoyaltyTransaction, error) {
	rows, err := s.getDB().QueryContext(ctx, `
        SELECT id, created_at, tenant_id, user_id, order_id, points, reason
        FROM loyalty_transactions
        WHERE tenant_id = $1 AND user_id = $2
        ORDER BY created_at DESC LIMIT $3`, tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []*models.LoyaltyTransaction
	for rows.Next() {
		t := &models.LoyaltyTransaction{}
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.TenantID, &t.UserID, &t.OrderID, &t.Points, &t.Reason); err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return list, rows.Err()
}

// CancelledOrderPoints returns, per cancelled order of a user, the points its
// ledger entries still add to the balance. Orders that net to zero or less are
// left out.
func (s *PostgresStore) CancelledOrderPoints(ctx context.Context, tenantID, userID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := s.getDB().QueryContext(ctx, `
        SELECT t.order_id, SUM(t.points)
        FROM loyalty_transactions t
        JOIN orders o ON o.tenant_id = t.tenant_id AND o.id = t.order_id
        WHERE t.tenant_id = $1 AND t.user_id = $2 AND o.status = $3
        GROUP BY t.order_id
        HAVING SUM(t.points) > 0`, tenantID, userID, models.OrderCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sums := make(map[uuid.UUID]int)
	for rows.Next() {
		var (
			id     uuid.UUID
			points int
		)
		if err := rows.Scan(&id, &points); err != nil {
			return nil, err
		}
		sums[id] = points
	}
	return sums, rows.Err()
}

// ========== Settings Methods ==========

// GetEmailSettings returns the mail settings of a tenant
func (s *PostgresStore) GetEmailSettings(ctx context.Context, tenantID uuid.UUID) (*models.EmailSettings, error) {
	es := &models.EmailSettings{}
	err := s.getDB().QueryRowContext(ctx, `
        SELECT tenant_id, updated_at, sender_name, sender_email, smtp_host, smtp_port,
               smtp_username, smtp_password, notify_orders, notify_reservations
        FROM email_settings WHERE tenant_id = $1`, tenantID,
	).Scan(&es.TenantID, &es.UpdatedAt, &es.SenderName, &es.SenderEmail, &es.SMTPHost,
		&es.SMTPPort, &es.SMTPUsername, &es.SMTPPassword, &es.NotifyOrders, &es.NotifyBooks)
	if err != nil {
		return nil, mapError(err)
	}
	return es, nil
}

// SaveEmailSettings upserts the mail settings of a tenant
func (s *PostgresStore) SaveEmailSettings(ctx context.Context, es *models.EmailSettings) error {
	es.UpdatedAt = time.Now()

	_, err := s.getDB().ExecContext(ctx, `
        INSERT INTO email_settings (
            tenant_id, updated_at, sender_name, sender_email, smtp_host, smtp_port,
            smtp_username, smtp_password, notify_orders, notify_reservations
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        ON CONFLICT (tenant_id) DO UPDATE SET
            updated_at = EXCLUDED.updated_at, sender_name = EXCLUDED.sender_name,
            sender_email = EXCLUDED.sender_email, smtp_host = EXCLUDED.smtp_host,
            smtp_port = EXCLUDED.smtp_port, smtp_username = EXCLUDED.smtp_username,
            smtp_password = EXCLUDED.smtp_password, notify_orders = EXCLUDED.notify_orders,
            notify_reservations = EXCLUDED.notify_reservations`,
		es.TenantID, es.UpdatedAt, es.SenderName, es.SenderEmail, es.SMTPHost,
		es.SMTPPort, es.SMTPUsername, es.SMTPPassword, es.NotifyOrders, es.NotifyBooks,
	)
	return mapError(err)
}
