package models

import (
	"time"

	"github.com/google/uuid"
)

// LoyaltyAccount holds a customer's points at one tenant
type LoyaltyAccount struct {
	TenantID  uuid.UUID `json:"tenantId" db:"tenant_id"`
	UserID    uuid.UUID `json:"userId" db:"user_id"`
	Balance   int       `json:"balance" db:"balance"`
	Lifetime  int       `json:"lifetime" db:"lifetime"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// LoyaltyTransaction is one ledger entry; Points is negative for redemptions
type LoyaltyTransaction struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	TenantID  uuid.UUID  `json:"tenantId" db:"tenant_id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	OrderID   *uuid.UUID `json:"orderId,omitempty" db:"order_id"`
	Points    int        `json:"points" db:"points"`
	Reason    string     `json:"reason" db:"reason"`
}
