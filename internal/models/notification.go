package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is a message addressed to one user within a tenant
type Notification struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"createdAt" db:"created_at"`
	TenantID  uuid.UUID  `json:"tenantId" db:"tenant_id"`
	UserID    uuid.UUID  `json:"userId" db:"user_id"`
	Title     string     `json:"title" db:"title"`
	Body      string     `json:"body" db:"body"`
	Link      string     `json:"link,omitempty" db:"link"`
	ReadAt    *time.Time `json:"readAt,omitempty" db:"read_at"`
}
