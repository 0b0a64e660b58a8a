package storage

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStoreWithDB(db), mock
}

func TestPostgresStore_CreateUserDuplicate(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID := uuid.New()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.CreateUser(context.Background(), &models.User{
		TenantID: &tenantID,
		Email:    "Budi@Example.com",
		Role:     models.RoleCustomer,
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTenantBySlug(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	now := time.Now()

	columns := []string{
		"id", "created_at", "updated_at", "slug", "business_name", "description", "phone",
		"email", "timezone", "branding", "operating_hours", "outlets", "integrations",
		"is_active", "suspended_at",
	}
	mock.ExpectQuery("FROM tenants WHERE slug").
		WithArgs("warung-budi").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			id.String(), now, now, "warung-budi", "Warung Budi", "", "", "",
			"Asia/Jakarta", []byte(`{"primaryColor":"#c0392b","darkMode":true}`),
			[]byte(`[{},{"open":"10:00","close":"22:00"},{},{},{},{},{}]`),
			[]byte(`[]`), []byte(`{"webhook":{"enabled":true,"endpoint":"https://kds.example.com"}}`),
			true, nil,
		))

	tenant, err := store.GetTenantBySlug(context.Background(), "Warung-Budi")
	require.NoError(t, err)
	assert.Equal(t, id, tenant.ID)
	assert.Equal(t, "#c0392b", tenant.Branding.PrimaryColor)
	assert.True(t, tenant.Branding.DarkMode)
	assert.Equal(t, "10:00", tenant.OperatingHours[time.Monday].Open)
	assert.True(t, tenant.Integrations.Webhook.Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetTenantBySlugNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("FROM tenants WHERE slug").WillReturnError(sql.ErrNoRows)

	_, err := store.GetTenantBySlug(context.Background(), "nowhere")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresStore_CreateOrderRunsInTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	order := &models.Order{
		Number: "RK-0001",
		Status: models.OrderPending,
		Items: []models.OrderItem{
			{MenuItemID: uuid.New(), Name: "Nasi Goreng", UnitPrice: decimal.NewFromInt(25000), Quantity: 2},
			{MenuItemID: uuid.New(), Name: "Es Teh", UnitPrice: decimal.NewFromInt(5000), Quantity: 1},
		},
	}
	order.TenantID = uuid.New()

	require.NoError(t, store.CreateOrder(context.Background(), order))
	assert.NotEqual(t, uuid.Nil, order.ID)
	for _, item := range order.Items {
		assert.Equal(t, order.ID, item.OrderID)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateOrderRollsBackOnItemFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").
		WillReturnError(&pq.Error{Code: "23503", Message: "menu item missing"})
	mock.ExpectRollback()

	order := &models.Order{Items: []models.OrderItem{{MenuItemID: uuid.New(), Quantity: 1}}}
	err := store.CreateOrder(context.Background(), order)
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOrderStatusMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE orders SET status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM orders").WillReturnError(sql.ErrNoRows)

	err := store.UpdateOrderStatus(context.Background(), uuid.New(), uuid.New(), models.OrderPending, models.OrderConfirmed)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateOrderStatusChangedConcurrently(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID, orderID := uuid.New(), uuid.New()

	mock.ExpectExec(`UPDATE orders SET status = \$3, updated_at = \$4 WHERE tenant_id = \$1 AND id = \$2 AND status = \$5`).
		WithArgs(tenantID, orderID, models.OrderCancelled, sqlmock.AnyArg(), models.OrderPending).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM orders").
		WithArgs(tenantID, orderID).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("cancelled"))

	err := store.UpdateOrderStatus(context.Background(), tenantID, orderID, models.OrderPending, models.OrderCancelled)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CancelledOrderPoints(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID, userID, orderID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("FROM loyalty_transactions t JOIN orders o").
		WithArgs(tenantID, userID, models.OrderCancelled).
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "sum"}).AddRow(orderID.String(), 8))

	sums, err := store.CancelledOrderPoints(context.Background(), tenantID, userID)
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]int{orderID: 8}, sums)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_IncrementPromoUsageExhausted(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID, promoID := uuid.New(), uuid.New()
	now := time.Now()

	mock.ExpectExec("UPDATE promo_codes SET used_count").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM promo_codes WHERE tenant_id").
		WithArgs(tenantID, promoID).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "created_at", "updated_at", "tenant_id", "code", "description", "type", "value",
			"max_discount", "min_order", "starts_at", "ends_at", "usage_limit", "used_count", "active",
		}).AddRow(promoID.String(), now, now, tenantID.String(), "HEMAT10", "", "percent", "10",
			"0", "0", nil, nil, 5, 5, true))

	err := store.IncrementPromoUsage(context.Background(), tenantID, promoID)
	assert.ErrorIs(t, err, ErrInvalidData)
	assert.ErrorIs(t, err, models.ErrPromoExhausted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_AddLoyaltyTransactionInsufficient(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO loyalty_accounts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("UPDATE loyalty_accounts").WillReturnRows(sqlmock.NewRows([]string{"balance", "lifetime"}))
	mock.ExpectRollback()

	_, err := store.AddLoyaltyTransaction(context.Background(), &models.LoyaltyTransaction{
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		Points:   -50,
		Reason:   "redeem",
	})
	assert.ErrorIs(t, err, ErrInsufficientPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetOrderStats(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID := uuid.New()
	itemID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	mock.ExpectQuery("GROUP BY status").
		WithArgs(tenantID, from, to).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sum"}).
			AddRow("completed", 3, "150000").
			AddRow("cancelled", 1, "20000"))
	mock.ExpectQuery("FROM order_items oi").
		WillReturnRows(sqlmock.NewRows([]string{"menu_item_id", "name", "sum", "revenue"}).
			AddRow(itemID.String(), "Sate Ayam", 6, "120000"))

	stats, err := store.GetOrderStats(context.Background(), tenantID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.OrderCount)
	assert.True(t, decimal.NewFromInt(150000).Equal(stats.Revenue))
	assert.True(t, decimal.NewFromInt(50000).Equal(stats.AverageOrder))
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderCancelled])
	require.Len(t, stats.TopItems, 1)
	assert.Equal(t, "Sate Ayam", stats.TopItems[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
