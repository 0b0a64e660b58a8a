package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is the sole authorization discriminant consumed by route guards
type Role string

const (
	RoleAdmin         Role = "admin"
	RoleTenantAdmin   Role = "tenant_admin"
	RoleTenantStaff   Role = "tenant_staff"
	RoleCSAgent       Role = "cs_agent"
	RoleCS            Role = "cs"
	RoleCustomer      Role = "customer"
	RolePlatformAdmin Role = "platform_admin"
)

// Roles lists every known role
var Roles = []Role{
	RoleAdmin, RoleTenantAdmin, RoleTenantStaff, RoleCSAgent, RoleCS, RoleCustomer, RolePlatformAdmin,
}

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to restaurant personnel
func (r Role) IsStaff() bool {
	switch r {
	case RoleAdmin, RoleTenantAdmin, RoleTenantStaff, RoleCSAgent, RoleCS:
		return true
	}
	return false
}

// User represents a platform user
type User struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	TenantID *uuid.UUID `json:"tenantId,omitempty" db:"tenant_id"`

	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Phone string `json:"phone,omitempty" db:"phone"`
	Role  Role   `json:"role" db:"role"`

	PasswordHash string `json:"-" db:"password_hash"`

	IsActive    bool       `json:"isActive" db:"is_active"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty" db:"last_login_at"`

	// PendingEmail holds an address awaiting confirmation
	PendingEmail      string     `json:"pendingEmail,omitempty" db:"pending_email"`
	EmailChangeToken  string     `json:"-" db:"email_change_token"`
	EmailChangeExpiry *time.Time `json:"-" db:"email_change_expiry"`

	Preferences Variables `json:"preferences,omitempty" db:"preferences"`
}

// BelongsTo reports whether the user is bound to the given tenant.
// Platform admins belong to every tenant.
func (u *User) BelongsTo(tenantID uuid.UUID) bool {
	if u.Role == RolePlatformAdmin {
		return true
	}
	return u.TenantID != nil && *u.TenantID == tenantID
}
