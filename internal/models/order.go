package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderPreparing OrderStatus = "preparing"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderConfirmed, OrderCancelled},
	OrderConfirmed: {OrderPreparing, OrderCancelled},
	OrderPreparing: {OrderReady},
	OrderReady:     {OrderCompleted},
}

// CanTransition reports whether the status may move to next
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Active reports whether the order is still in progress
func (s OrderStatus) Active() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderPreparing, OrderReady:
		return true
	}
	return false
}

// Order is a placed customer order
type Order struct {
	TenantModel
	Number     string          `json:"number" db:"number"`
	CustomerID uuid.UUID       `json:"customerId" db:"customer_id"`
	OutletID   *uuid.UUID      `json:"outletId,omitempty" db:"outlet_id"`
	Status     OrderStatus     `json:"status" db:"status"`
	Items      []OrderItem     `json:"items" db:"-"`
	Subtotal   decimal.Decimal `json:"subtotal" db:"subtotal"`
	Discount   decimal.Decimal `json:"discount" db:"discount"`
	Total      decimal.Decimal `json:"total" db:"total"`
	PromoCode  string          `json:"promoCode,omitempty" db:"promo_code"`
	PointsUsed int             `json:"pointsUsed" db:"points_used"`
	Notes      string          `json:"notes,omitempty" db:"notes"`
}

// OrderItem is a line of an order
type OrderItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	OrderID    uuid.UUID       `json:"orderId" db:"order_id"`
	MenuItemID uuid.UUID       `json:"menuItemId" db:"menu_item_id"`
	Name       string          `json:"name" db:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice" db:"unit_price"`
	Quantity   int             `json:"quantity" db:"quantity"`
}

// LineTotal returns unit price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderFilter narrows order listings
type OrderFilter struct {
	CustomerID *uuid.UUID
	Statuses   []OrderStatus
	From       *time.Time
	To         *time.Time
}

// OrderStats summarises orders over a period
type OrderStats struct {
	OrderCount   int64                 `json:"orderCount"`
	Revenue      decimal.Decimal       `json:"revenue"`
	AverageOrder decimal.Decimal       `json:"averageOrder"`
	ByStatus     map[OrderStatus]int64 `json:"byStatus"`
	TopItems     []TopItem             `json:"topItems"`
}

// TopItem is a best-selling menu item
type TopItem struct {
	MenuItemID uuid.UUID       `json:"menuItemId"`
	Name       string          `json:"name"`
	Quantity   int64           `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}
