package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Tenant represents a single restaurant account on the platform
type Tenant struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Slug         string `json:"slug" db:"slug"`
	BusinessName string `json:"businessName" db:"business_name"`
	Description  string `json:"description" db:"description"`
	Phone        string `json:"phone,omitempty" db:"phone"`
	Email        string `json:"email,omitempty" db:"email"`
	Timezone     string `json:"timezone" db:"timezone"`

	Branding       Branding       `json:"branding" db:"branding"`
	OperatingHours OperatingHours `json:"operatingHours" db:"operating_hours"`
	Outlets        Outlets        `json:"outlets" db:"outlets"`
	Integrations   Integrations   `json:"-" db:"integrations"`

	IsActive    bool       `json:"isActive" db:"is_active"`
	SuspendedAt *time.Time `json:"suspendedAt,omitempty" db:"suspended_at"`
}

// Location returns the tenant's time zone, UTC when unset or unknown
func (t *Tenant) Location() *time.Location {
	if t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpenAt reports whether the restaurant is open at the given instant
func (t *Tenant) IsOpenAt(at time.Time) bool {
	local := at.In(t.Location())
	return t.OperatingHours.OpenAt(local)
}

// Branding holds theme colours and imagery
type Branding struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	LogoURL        string `json:"logoUrl,omitempty"`
	BannerURL      string `json:"bannerUrl,omitempty"`
	DarkMode       bool   `json:"darkMode"`
}

// Value implements driver.Valuer
func (b Branding) Value() (driver.Value, error) { return jsonValue(b) }

// Scan implements sql.Scanner
func (b *Branding) Scan(value interface{}) error { return scanJSON(value, b) }

// DayHours is the opening window of one weekday, "HH:MM" local time
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	Closed bool   `json:"closed"`
}

// OperatingHours is indexed by time.Weekday
type OperatingHours [7]DayHours

// Value implements driver.Valuer
func (h OperatingHours) Value() (driver.Value, error) { return jsonValue(h) }

// Scan implements sql.Scanner
func (h *OperatingHours) Scan(value interface{}) error { return scanJSON(value, h) }

// OpenAt reports whether local falls in the window of its weekday.
// Windows whose close is before open run past midnight.
func (h OperatingHours) OpenAt(local time.Time) bool {
	day := h[local.Weekday()]
	if day.Closed || day.Open == "" || day.Close == "" {
		return false
	}
	open, err := parseClock(day.Open)
	if err != nil {
		return false
	}
	closing, err := parseClock(day.Close)
	if err != nil {
		return false
	}
	now := local.Hour()*60 + local.Minute()
	if closing <= open {
		return now >= open || now < closing
	}
	return now >= open && now < closing
}

func parseClock(s string) (int, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(s, "%d:%d", &hh, &mm); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	if hh < 0 || hh > 24 || mm < 0 || mm > 59 {
		return 0, fmt.Errorf("clock out of range: %q", s)
	}
	return hh*60 + mm, nil
}

// Outlet is a physical branch of a restaurant
type Outlet struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Phone     string    `json:"phone,omitempty"`
}

// Outlets is stored as a JSON array
type Outlets []Outlet

// Value implements driver.Valuer
func (o Outlets) Value() (driver.Value, error) {
	if o == nil {
		return jsonValue([]Outlet{})
	}
	return jsonValue([]Outlet(o))
}

// Scan implements sql.Scanner
func (o *Outlets) Scan(value interface{}) error { return scanJSON(value, o) }

// Find returns the outlet with the given id
func (o Outlets) Find(id uuid.UUID) (Outlet, bool) {
	for _, outlet := range o {
		if outlet.ID == id {
			return outlet, true
		}
	}
	return Outlet{}, false
}

// Integrations configures where order events are forwarded
type Integrations struct {
	Webhook WebhookIntegration `json:"webhook"`
	MQTT    MQTTIntegration    `json:"mqtt"`
}

// Value implements driver.Valuer
func (i Integrations) Value() (driver.Value, error) { return jsonValue(i) }

// Scan implements sql.Scanner
func (i *Integrations) Scan(value interface{}) error { return scanJSON(value, i) }

// WebhookIntegration posts order events to an HTTP endpoint
type WebhookIntegration struct {
	Enabled  bool              `json:"enabled"`
	Endpoint string            `json:"endpoint"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// MQTTIntegration publishes order events to a kitchen display broker
type MQTTIntegration struct {
	Enabled      bool   `json:"enabled"`
	BrokerURL    string `json:"brokerUrl"`
	Username     string `json:"username,omitempty"`
	Password     string `json:"password,omitempty"`
	TopicPattern string `json:"topicPattern"`
	QoS          byte   `json:"qos"`
	TLS          bool   `json:"tls"`
}
