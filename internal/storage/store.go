package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/restoku/restoku-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
	ErrConflict     = errors.New("record changed concurrently")

	// ErrInsufficientPoints is returned when a redemption exceeds the balance
	ErrInsufficientPoints = fmt.Errorf("%w: insufficient loyalty points", ErrInvalidData)
)

// Store defines the storage interface.
// Every tenant-scoped read and write takes the tenant id; a record of another
// tenant is reported as ErrNotFound.
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, tenantID *uuid.UUID, email string) (*models.User, error)
	GetUserByEmailToken(ctx context.Context, token string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, tenantID, id uuid.UUID) error
	ListUsers(ctx context.Context, tenantID uuid.UUID, roles []models.Role, limit, offset int) ([]*models.User, int64, error)

	// Tenant methods
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateTenant(ctx context.Context, tenant *models.Tenant) error
	ListTenants(ctx context.Context, limit, offset int) ([]*models.Tenant, int64, error)

	// Menu methods
	CreateMenuCategory(ctx context.Context, category *models.MenuCategory) error
	ListMenuCategories(ctx context.Context, tenantID uuid.UUID) ([]*models.MenuCategory, error)
	CreateMenuItem(ctx context.Context, item *models.MenuItem) error
	GetMenuItem(ctx context.Context, tenantID, id uuid.UUID) (*models.MenuItem, error)
	UpdateMenuItem(ctx context.Context, item *models.MenuItem) error
	DeleteMenuItem(ctx context.Context, tenantID, id uuid.UUID) error
	ListMenuItems(ctx context.Context, tenantID uuid.UUID, filter MenuFilter) ([]*models.MenuItem, error)

	// Order methods
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, tenantID, id uuid.UUID) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, tenantID, id uuid.UUID, from, to models.OrderStatus) error
	ListOrders(ctx context.Context, tenantID uuid.UUID, filter models.OrderFilter, limit, offset int) ([]*models.Order, int64, error)
	GetOrderStats(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (*models.OrderStats, error)

	// Reservation methods
	CreateReservation(ctx context.Context, reservation *models.Reservation) error
	GetReservation(ctx context.Context, tenantID, id uuid.UUID) (*models.Reservation, error)
	UpdateReservationStatus(ctx context.Context, tenantID, id uuid.UUID, status models.ReservationStatus) error
	ListReservations(ctx context.Context, tenantID uuid.UUID, customerID *uuid.UUID, limit, offset int) ([]*models.Reservation, int64, error)

	// Promo methods
	CreatePromo(ctx context.Context, promo *models.PromoCode) error
	GetPromo(ctx context.Context, tenantID, id uuid.UUID) (*models.PromoCode, error)
	GetPromoByCode(ctx context.Context, tenantID uuid.UUID, code string) (*models.PromoCode, error)
	UpdatePromo(ctx context.Context, promo *models.PromoCode) error
	DeletePromo(ctx context.Context, tenantID, id uuid.UUID) error
	ListPromos(ctx context.Context, tenantID uuid.UUID) ([]*models.PromoCode, error)
	IncrementPromoUsage(ctx context.Context, tenantID, id uuid.UUID) error

	// Activity log methods
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
	ListActivityLogs(ctx context.Context, tenantID uuid.UUID, filter models.ActivityFilter, limit, offset int) ([]*models.ActivityLog, int64, error)

	// FAQ methods
	CreateFAQ(ctx context.Context, faq *models.FAQ) error
	UpdateFAQ(ctx context.Context, faq *models.FAQ) error
	DeleteFAQ(ctx context.Context, tenantID, id uuid.UUID) error
	ListFAQs(ctx context.Context, tenantID uuid.UUID, publishedOnly bool) ([]*models.FAQ, error)

	// Live chat methods
	CreateConversation(ctx context.Context, conv *models.Conversation) error
	GetConversation(ctx context.Context, tenantID, id uuid.UUID) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, conv *models.Conversation) error
	ListConversations(ctx context.Context, tenantID uuid.UUID, statuses []models.ConversationStatus) ([]*models.Conversation, error)
	CreateChatMessage(ctx context.Context, msg *models.ChatMessage) error
	ListChatMessages(ctx context.Context, tenantID, conversationID uuid.UUID, limit int) ([]*models.ChatMessage, error)

	// Inbox methods
	CreateInboxMessage(ctx context.Context, msg *models.InboxMessage) error
	ListInboxMessages(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*models.InboxMessage, int64, error)
	MarkInboxMessageRead(ctx context.Context, tenantID, id uuid.UUID) error

	// Notification methods
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, tenantID, userID, id uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, tenantID, userID uuid.UUID) (int64, error)

	// Loyalty methods
	GetLoyaltyAccount(ctx context.Context, tenantID, userID uuid.UUID) (*models.LoyaltyAccount, error)
	AddLoyaltyTransaction(ctx context.Context, txn *models.LoyaltyTransaction) (*models.LoyaltyAccount, error)
	ListLoyaltyTransactions(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.LoyaltyTransaction, error)
	CancelledOrderPoints(ctx context.Context, tenantID, userID uuid.UUID) (map[uuid.UUID]int, error)

	// Settings methods
	GetEmailSettings(ctx context.Context, tenantID uuid.UUID) (*models.EmailSettings, error)
	SaveEmailSettings(ctx context.Context, settings *models.EmailSettings) error

	// Close the store
	Close() error
}

// MenuFilter narrows menu item listings
type MenuFilter struct {
	CategoryID    *uuid.UUID
	AvailableOnly bool
	FeaturedOnly  bool
}
