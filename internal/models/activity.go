package models

import (
	"time"

	"github.com/google/uuid"
)

// ActivityLog records an action performed inside a tenant
type ActivityLog struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	TenantID uuid.UUID  `json:"tenantId" db:"tenant_id"`
	ActorID  *uuid.UUID `json:"actorId,omitempty" db:"actor_id"`

	Type        ActivityType  `json:"type" db:"type"`
	Level       ActivityLevel `json:"level" db:"level"`
	Description string        `json:"description" db:"description"`

	Details Variables `json:"details,omitempty" db:"details"`
}

// ActivityType represents activity kinds
type ActivityType string

const (
	ActivityLogin             ActivityType = "LOGIN"
	ActivityMenuChanged       ActivityType = "MENU_CHANGED"
	ActivityOrderCreated      ActivityType = "ORDER_CREATED"
	ActivityOrderStatus       ActivityType = "ORDER_STATUS"
	ActivityReservation       ActivityType = "RESERVATION"
	ActivityPromoChanged      ActivityType = "PROMO_CHANGED"
	ActivityStaffChanged      ActivityType = "STAFF_CHANGED"
	ActivitySettingsChanged   ActivityType = "SETTINGS_CHANGED"
	ActivityChat              ActivityType = "CHAT"
	ActivityIntegrationFailed ActivityType = "INTEGRATION_FAILED"
)

// ActivityLevel represents severity levels
type ActivityLevel string

const (
	ActivityLevelInfo    ActivityLevel = "INFO"
	ActivityLevelWarning ActivityLevel = "WARNING"
	ActivityLevelError   ActivityLevel = "ERROR"
)

// ActivityFilter narrows activity listings
type ActivityFilter struct {
	Type      *ActivityType
	ActorID   *uuid.UUID
	StartTime *time.Time
	EndTime   *time.Time
}
