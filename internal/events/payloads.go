package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/restoku/restoku-server/internal/models"
)

// OrderEvent is published on order.created and order.status
type OrderEvent struct {
	OrderID    uuid.UUID          `json:"orderId"`
	Number     string             `json:"number"`
	CustomerID uuid.UUID          `json:"customerId"`
	OutletID   *uuid.UUID         `json:"outletId,omitempty"`
	Status     models.OrderStatus `json:"status"`
	Previous   models.OrderStatus `json:"previousStatus,omitempty"`
	Total      decimal.Decimal    `json:"total"`
	Items      []models.OrderItem `json:"items,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// NewOrderEvent builds the event for o
func NewOrderEvent(o *models.Order, previous models.OrderStatus, at time.Time) OrderEvent {
	return OrderEvent{
		OrderID:    o.ID,
		Number:     o.Number,
		CustomerID: o.CustomerID,
		OutletID:   o.OutletID,
		Status:     o.Status,
		Previous:   previous,
		Total:      o.Total,
		Items:      o.Items,
		Notes:      o.Notes,
		OccurredAt: at,
	}
}

// ReservationEvent is published on reservation.created
type ReservationEvent struct {
	ReservationID uuid.UUID                `json:"reservationId"`
	Name          string                   `json:"name"`
	PartySize     int                      `json:"partySize"`
	ReservedAt    time.Time                `json:"reservedAt"`
	Status        models.ReservationStatus `json:"status"`
}

// TenantUpdated tells other instances to drop their cached copy of a tenant
type TenantUpdated struct {
	Slug      string    `json:"slug"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ActivityEvent asks the activity recorder to persist a log entry
type ActivityEvent struct {
	TenantID    uuid.UUID            `json:"tenantId"`
	ActorID     *uuid.UUID           `json:"actorId,omitempty"`
	Type        models.ActivityType  `json:"type"`
	Level       models.ActivityLevel `json:"level"`
	Description string               `json:"description"`
	Details     models.Variables     `json:"details,omitempty"`
}

// MailMessage is an outbound email handed to the mailer
type MailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}
