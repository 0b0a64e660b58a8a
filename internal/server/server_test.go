package server

import (
	"context"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
	"github.com/restoku/restoku-server/internal/storage"
	"github.com/restoku/restoku-server/pkg/crypto"
)

type fakeDirectory struct {
	mu          sync.Mutex
	tenants     map[string]*models.Tenant
	invalidated []string
}

func newDirectory(tenants ...*models.Tenant) *fakeDirectory {
	d := &fakeDirectory{tenants: make(map[string]*models.Tenant)}
	for _, t := range tenants {
		d.tenants[t.Slug] = t
	}
	return d
}

func (d *fakeDirectory) Resolve(ctx context.Context, slug string) (*models.Tenant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.tenants[slug]; ok {
		return t, nil
	}
	return nil, storage.ErrNotFound
}

func (d *fakeDirectory) Invalidate(slug string) {
	d.mu.Lock()
	d.invalidated = append(d.invalidated, slug)
	d.mu.Unlock()
}

func testTenant() *models.Tenant {
	return &models.Tenant{ID: uuid.New(), Slug: "warung-sari", BusinessName: "Warung Sari", IsActive: true}
}

func TestEventSubscriber_RecordsActivity(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	bus := events.NewLocalBus("restoku")
	tn := testTenant()
	dir := newDirectory(tn)

	sub := NewEventSubscriber(bus, store, dir)
	require.NoError(t, sub.Start(ctx))
	defer sub.Close()

	order := &models.Order{Number: "WS-0001", CustomerID: uuid.New(), Status: models.OrderPending, Total: decimal.NewFromInt(45000)}
	order.ID = uuid.New()
	order.TenantID = tn.ID

	require.NoError(t, bus.Publish(ctx, tn.Slug, events.TopicOrderCreated, events.NewOrderEvent(order, "", time.Now())))
	order.Status = models.OrderCancelled
	require.NoError(t, bus.Publish(ctx, tn.Slug, events.TopicOrderStatus, events.NewOrderEvent(order, models.OrderPending, time.Now())))
	require.NoError(t, bus.Publish(ctx, tn.Slug, events.TopicReservationCreated, events.ReservationEvent{
		ReservationID: uuid.New(), Name: "Budi", PartySize: 4, ReservedAt: time.Date(2026, 5, 1, 19, 0, 0, 0, time.UTC),
	}))
	require.NoError(t, bus.Publish(ctx, tn.Slug, events.TopicActivity, events.ActivityEvent{
		TenantID: tn.ID, Type: models.ActivityMenuChanged, Description: "Menu Sate Ayam diperbarui",
	}))

	logs, total, err := store.ListActivityLogs(ctx, tn.ID, models.ActivityFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	byType := make(map[models.ActivityType]*models.ActivityLog)
	for _, l := range logs {
		byType[l.Type] = l
	}
	require.Contains(t, byType, models.ActivityOrderCreated)
	assert.Contains(t, byType[models.ActivityOrderCreated].Description, "WS-0001")
	assert.Equal(t, models.ActivityLevelWarning, byType[models.ActivityOrderStatus].Level)
	assert.Contains(t, byType[models.ActivityReservation].Description, "4 orang")
	assert.Equal(t, models.ActivityLevelInfo, byType[models.ActivityMenuChanged].Level)
}

func TestEventSubscriber_UnknownTenantIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	bus := events.NewLocalBus("restoku")
	tn := testTenant()

	sub := NewEventSubscriber(bus, store, newDirectory())
	require.NoError(t, sub.Start(ctx))
	defer sub.Close()

	require.NoError(t, bus.Publish(ctx, tn.Slug, events.TopicOrderCreated, events.OrderEvent{Number: "X"}))

	_, total, err := store.ListActivityLogs(ctx, tn.ID, models.ActivityFilter{}, 50, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestEventSubscriber_InvalidatesTenantCache(t *testing.T) {
	ctx := context.Background()
	bus := events.NewLocalBus("restoku")
	dir := newDirectory()

	sub := NewEventSubscriber(bus, storage.NewMemoryStore(), dir)
	require.NoError(t, sub.Start(ctx))

	require.NoError(t, bus.Publish(ctx, "warung-sari", events.TopicTenantUpdated, events.TenantUpdated{Slug: "warung-sari"}))
	assert.Equal(t, []string{"warung-sari"}, dir.invalidated)

	require.NoError(t, sub.Close())
	require.NoError(t, bus.Publish(ctx, "warung-sari", events.TopicTenantUpdated, events.TenantUpdated{Slug: "warung-sari"}))
	assert.Len(t, dir.invalidated, 1)
}

type sentMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func TestMailer_DeliversWithDecryptedPassword(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	bus := events.NewLocalBus("restoku")
	tn := testTenant()
	key := []byte("0123456789abcdef0123456789abcdef")

	secret, err := crypto.Seal(key, "smtp-pass")
	require.NoError(t, err)
	require.NoError(t, store.SaveEmailSettings(ctx, &models.EmailSettings{
		TenantID:     tn.ID,
		SenderName:   "Warung Sari",
		SenderEmail:  "halo@warungsari.id",
		SMTPHost:     "smtp.warungsari.id",
		SMTPUsername: "halo",
		SMTPPassword: secret,
	}))

	var sent []sentMail
	m := NewMailer(bus, store, newDirectory(tn), key)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return nil
	}
	require.NoError(t, m.Start(ctx))
	defer m.Close()

	require.NoError(t, bus.Publish(ctx, tn.Slug, events.TopicMailOutbound, events.MailMessage{
		To: "budi@example.com", Subject: "Konfirmasi email", Body: "Klik tautan berikut",
	}))

	require.Len(t, sent, 1)
	assert.Equal(t, "smtp.warungsari.id:587", sent[0].addr)
	assert.NotNil(t, sent[0].auth)
	assert.Equal(t, []string{"budi@example.com"}, sent[0].to)
	assert.True(t, strings.HasSuffix(sent[0].msg, "\r\n\r\nKlik tautan berikut"))
	assert.Contains(t, sent[0].msg, "To: budi@example.com\r\n")
}

func TestMailer_NotConfigured(t *testing.T) {
	m := NewMailer(events.NewLocalBus("restoku"), storage.NewMemoryStore(), newDirectory(), nil)
	err := m.Deliver(context.Background(), testTenant(), events.MailMessage{To: "a@b.c"})
	assert.ErrorIs(t, err, ErrMailNotConfigured)
}
