package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailSettings configures outgoing mail for a tenant.
// SMTPPassword is stored encrypted and never serialized.
type EmailSettings struct {
	TenantID     uuid.UUID `json:"tenantId" db:"tenant_id"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
	SenderName   string    `json:"senderName" db:"sender_name"`
	SenderEmail  string    `json:"senderEmail" db:"sender_email"`
	SMTPHost     string    `json:"smtpHost" db:"smtp_host"`
	SMTPPort     int       `json:"smtpPort" db:"smtp_port"`
	SMTPUsername string    `json:"smtpUsername" db:"smtp_username"`
	SMTPPassword []byte    `json:"-" db:"smtp_password"`
	NotifyOrders bool      `json:"notifyOrders" db:"notify_orders"`
	NotifyBooks  bool      `json:"notifyReservations" db:"notify_reservations"`
}
