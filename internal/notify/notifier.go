// Package notify delivers persistent user notifications and one-shot toast
// messages shown on a visitor's next page view.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
)

// Store is the notification part of the store
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, tenantID, userID uuid.UUID, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, tenantID, userID, id uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, tenantID, userID uuid.UUID) (int64, error)
}

// Inbox is the notification list of a user
type Inbox struct {
	Items  []*models.Notification `json:"items"`
	Unread int                    `json:"unread"`
}

// Notifier stores notifications and announces them on the event bus
type Notifier struct {
	store Store
	bus   events.Bus
	now   func() time.Time
}

// NewNotifier creates the notifier
func NewNotifier(store Store, bus events.Bus) *Notifier {
	return &Notifier{store: store, bus: bus, now: time.Now}
}

// Name implements appstate.Provider
func (n *Notifier) Name() string { return "notifications" }

// Start implements appstate.Provider
func (n *Notifier) Start(ctx context.Context) error { return nil }

// Close implements appstate.Provider
func (n *Notifier) Close() error { return nil }

// Notify stores a notification for userID and publishes it
func (n *Notifier) Notify(ctx context.Context, t *models.Tenant, userID uuid.UUID, title, body, link string) (*models.Notification, error) {
	note := &models.Notification{
		ID:        uuid.New(),
		CreatedAt: n.now(),
		TenantID:  t.ID,
		UserID:    userID,
		Title:     title,
		Body:      body,
		Link:      link,
	}
	if err := n.store.CreateNotification(ctx, note); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}

	if err := n.bus.Publish(ctx, t.Slug, events.NotificationTopic(userID.String()), note); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to publish notification")
	}
	return note, nil
}

// Inbox returns the latest notifications of a user with the unread count
func (n *Notifier) Inbox(ctx context.Context, tenantID, userID uuid.UUID, limit int) (*Inbox, error) {
	items, err := n.store.ListNotifications(ctx, tenantID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	inbox := &Inbox{Items: items}
	if inbox.Items == nil {
		inbox.Items = []*models.Notification{}
	}
	for _, item := range items {
		if item.ReadAt == nil {
			inbox.Unread++
		}
	}
	return inbox, nil
}

// MarkRead marks one notification as read
func (n *Notifier) MarkRead(ctx context.Context, tenantID, userID, id uuid.UUID) error {
	return n.store.MarkNotificationRead(ctx, tenantID, userID, id)
}

// MarkAllRead marks every notification of a user as read
func (n *Notifier) MarkAllRead(ctx context.Context, tenantID, userID uuid.UUID) (int64, error) {
	return n.store.MarkAllNotificationsRead(ctx, tenantID, userID)
}
