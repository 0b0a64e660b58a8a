// Package server runs the background consumers of tenant events.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/restoku/restoku-server/internal/events"
	"github.com/restoku/restoku-server/internal/models"
)

// Queue groups
const (
	recorderQueue = "activity-recorder"
	mailerQueue   = "mailer"
)

// ActivityStore persists activity entries
type ActivityStore interface {
	CreateActivityLog(ctx context.Context, entry *models.ActivityLog) error
}

// TenantDirectory resolves and invalidates tenants by slug
type TenantDirectory interface {
	Resolve(ctx context.Context, slug string) (*models.Tenant, error)
	Invalidate(slug string)
}

// EventSubscriber records activity from tenant events and keeps the tenant
// cache in step with other instances
type EventSubscriber struct {
	bus     events.Bus
	store   ActivityStore
	tenants TenantDirectory
	subs    []events.Subscription
}

// NewEventSubscriber creates the subscriber
func NewEventSubscriber(bus events.Bus, store ActivityStore, tenants TenantDirectory) *EventSubscriber {
	return &EventSubscriber{
		bus:     bus,
		store:   store,
		tenants: tenants,
		subs:    make([]events.Subscription, 0),
	}
}

// Name implements appstate.Provider
func (s *EventSubscriber) Name() string { return "event subscriber" }

// Start subscribes. Cache invalidation reaches every instance; activity is
// recorded once per deployment through a queue group.
func (s *EventSubscriber) Start(ctx context.Context) error {
	sub, err := s.bus.Subscribe("*", events.TopicTenantUpdated, s.handleTenantUpdated)
	if err != nil {
		return fmt.Errorf("subscribe tenant updates: %w", err)
	}
	s.subs = append(s.subs, sub)

	recorded := map[string]events.Handler{
		events.TopicActivity:           s.handleActivity,
		events.TopicOrderCreated:       s.handleOrderCreated,
		events.TopicOrderStatus:        s.handleOrderStatus,
		events.TopicReservationCreated: s.handleReservationCreated,
	}
	for topic, h := range recorded {
		sub, err := s.bus.QueueSubscribe("*", topic, recorderQueue, h)
		if err != nil {
			s.Close()
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		s.subs = append(s.subs, sub)
	}

	log.Info().
		Int("subscriptions", len(s.subs)).
		Msg("Event subscriber started")
	return nil
}

// Close unsubscribes
func (s *EventSubscriber) Close() error {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	s.subs = nil
	return nil
}

func (s *EventSubscriber) handleTenantUpdated(e events.Event) {
	var msg events.TenantUpdated
	if err := e.Decode(&msg); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to unmarshal tenant update")
		return
	}
	slug := msg.Slug
	if slug == "" {
		slug = e.Tenant
	}
	s.tenants.Invalidate(slug)

	log.Debug().
		Str("tenant", slug).
		Msg("Tenant cache invalidated")
}

func (s *EventSubscriber) handleActivity(e events.Event) {
	var msg events.ActivityEvent
	if err := e.Decode(&msg); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to unmarshal activity")
		return
	}
	if msg.Level == "" {
		msg.Level = models.ActivityLevelInfo
	}

	s.record(&models.ActivityLog{
		TenantID:    msg.TenantID,
		ActorID:     msg.ActorID,
		Type:        msg.Type,
		Level:       msg.Level,
		Description: msg.Description,
		Details:     msg.Details,
	})
}

func (s *EventSubscriber) handleOrderCreated(e events.Event) {
	var msg events.OrderEvent
	if err := e.Decode(&msg); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to unmarshal order event")
		return
	}
	t, ok := s.tenant(e)
	if !ok {
		return
	}

	customer := msg.CustomerID
	s.record(&models.ActivityLog{
		TenantID:    t.ID,
		ActorID:     &customer,
		Type:        models.ActivityOrderCreated,
		Level:       models.ActivityLevelInfo,
		Description: fmt.Sprintf("Pesanan %s dibuat - total %s", msg.Number, msg.Total.StringFixed(0)),
		Details: models.Variables{
			"orderId": msg.OrderID.String(),
			"items":   len(msg.Items),
		},
	})
}

func (s *EventSubscriber) handleOrderStatus(e events.Event) {
	var msg events.OrderEvent
	if err := e.Decode(&msg); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to unmarshal order event")
		return
	}
	t, ok := s.tenant(e)
	if !ok {
		return
	}

	level := models.ActivityLevelInfo
	if msg.Status == models.OrderCancelled {
		level = models.ActivityLevelWarning
	}
	s.record(&models.ActivityLog{
		TenantID:    t.ID,
		Type:        models.ActivityOrderStatus,
		Level:       level,
		Description: fmt.Sprintf("Pesanan %s: %s -> %s", msg.Number, msg.Previous, msg.Status),
		Details: models.Variables{
			"orderId":  msg.OrderID.String(),
			"status":   string(msg.Status),
			"previous": string(msg.Previous),
		},
	})
}

func (s *EventSubscriber) handleReservationCreated(e events.Event) {
	var msg events.ReservationEvent
	if err := e.Decode(&msg); err != nil {
		log.Error().Err(err).Str("subject", e.Subject).Msg("Failed to unmarshal reservation event")
		return
	}
	t, ok := s.tenant(e)
	if !ok {
		return
	}

	s.record(&models.ActivityLog{
		TenantID: t.ID,
		Type:     models.ActivityReservation,
		Level:    models.ActivityLevelInfo,
		Description: fmt.Sprintf("Reservasi %s untuk %d orang pada %s",
			msg.Name, msg.PartySize, msg.ReservedAt.In(t.Location()).Format("02 Jan 2006 15:04")),
		Details: models.Variables{
			"reservationId": msg.ReservationID.String(),
		},
	})
}

func (s *EventSubscriber) tenant(e events.Event) (*models.Tenant, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t, err := s.tenants.Resolve(ctx, e.Tenant)
	if err != nil {
		log.Error().Err(err).Str("tenant", e.Tenant).Str("topic", e.Topic).Msg("Failed to resolve tenant of event")
		return nil, false
	}
	return t, true
}

func (s *EventSubscriber) record(entry *models.ActivityLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.store.CreateActivityLog(ctx, entry); err != nil {
		log.Error().Err(err).Str("type", string(entry.Type)).Msg("Failed to create activity log")
	}
}
