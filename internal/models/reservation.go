package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationStatus is the lifecycle state of a table reservation
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationRejected  ReservationStatus = "rejected"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationRejected, ReservationCancelled},
	ReservationConfirmed: {ReservationCompleted, ReservationCancelled},
}

// CanTransition reports whether the status may move to next
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, allowed := range reservationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Reservation is a table booking
type Reservation struct {
	TenantModel
	CustomerID uuid.UUID         `json:"customerId" db:"customer_id"`
	OutletID   *uuid.UUID        `json:"outletId,omitempty" db:"outlet_id"`
	Name       string            `json:"name" db:"name"`
	Phone      string            `json:"phone" db:"phone"`
	PartySize  int               `json:"partySize" db:"party_size"`
	ReservedAt time.Time         `json:"reservedAt" db:"reserved_at"`
	Notes      string            `json:"notes,omitempty" db:"notes"`
	Status     ReservationStatus `json:"status" db:"status"`
}

// Open reports whether the reservation may still change state
func (r *Reservation) Open() bool {
	return r.Status == ReservationPending || r.Status == ReservationConfirmed
}
