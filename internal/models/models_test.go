package models

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromoDiscount(t *testing.T) {
	now := time.Date(2026, 10, 12, 12, 0, 0, 0, time.UTC)
	later := now.Add(time.Hour)
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name     string
		promo    PromoCode
		subtotal int64
		want     int64
		err      error
	}{
		{
			name:     "percent rounded",
			promo:    PromoCode{Type: DiscountPercent, Value: decimal.NewFromInt(15), Active: true},
			subtotal: 33333,
			want:     5000,
		},
		{
			name:     "percent capped",
			promo:    PromoCode{Type: DiscountPercent, Value: decimal.NewFromInt(50), MaxDiscount: decimal.NewFromInt(20000), Active: true},
			subtotal: 100000,
			want:     20000,
		},
		{
			name:     "fixed never exceeds subtotal",
			promo:    PromoCode{Type: DiscountFixed, Value: decimal.NewFromInt(50000), Active: true},
			subtotal: 30000,
			want:     30000,
		},
		{
			name:     "inactive",
			promo:    PromoCode{Type: DiscountFixed, Value: decimal.NewFromInt(1000)},
			subtotal: 30000,
			err:      ErrPromoInactive,
		},
		{
			name:     "not started",
			promo:    PromoCode{Type: DiscountFixed, Value: decimal.NewFromInt(1000), Active: true, StartsAt: &later},
			subtotal: 30000,
			err:      ErrPromoExpired,
		},
		{
			name:     "ended",
			promo:    PromoCode{Type: DiscountFixed, Value: decimal.NewFromInt(1000), Active: true, EndsAt: &earlier},
			subtotal: 30000,
			err:      ErrPromoExpired,
		},
		{
			name:     "exhausted",
			promo:    PromoCode{Type: DiscountFixed, Value: decimal.NewFromInt(1000), Active: true, UsageLimit: 3, UsedCount: 3},
			subtotal: 30000,
			err:      ErrPromoExhausted,
		},
		{
			name:     "below minimum",
			promo:    PromoCode{Type: DiscountFixed, Value: decimal.NewFromInt(1000), Active: true, MinOrder: decimal.NewFromInt(50000)},
			subtotal: 30000,
			err:      ErrPromoMinimum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.promo.Discount(decimal.NewFromInt(tt.subtotal), now)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.NewFromInt(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestOrderTransitions(t *testing.T) {
	assert.True(t, OrderPending.CanTransition(OrderConfirmed))
	assert.True(t, OrderConfirmed.CanTransition(OrderCancelled))
	assert.True(t, OrderReady.CanTransition(OrderCompleted))
	assert.False(t, OrderPreparing.CanTransition(OrderCancelled))
	assert.False(t, OrderCompleted.CanTransition(OrderPending))
	assert.False(t, OrderPending.CanTransition(OrderReady))

	assert.True(t, OrderReady.Active())
	assert.False(t, OrderCancelled.Active())
}

func TestReservationTransitions(t *testing.T) {
	assert.True(t, ReservationPending.CanTransition(ReservationRejected))
	assert.True(t, ReservationConfirmed.CanTransition(ReservationCompleted))
	assert.False(t, ReservationRejected.CanTransition(ReservationConfirmed))
	assert.False(t, ReservationPending.CanTransition(ReservationCompleted))
}

func TestOperatingHours(t *testing.T) {
	var hours OperatingHours
	hours[time.Monday] = DayHours{Open: "10:00", Close: "22:00"}
	hours[time.Tuesday] = DayHours{Open: "18:00", Close: "02:00"}
	hours[time.Wednesday] = DayHours{Closed: true}

	monday := func(h, m int) time.Time { return time.Date(2026, 10, 12, h, m, 0, 0, time.UTC) }
	tuesday := func(h, m int) time.Time { return time.Date(2026, 10, 13, h, m, 0, 0, time.UTC) }

	assert.False(t, hours.OpenAt(monday(9, 59)))
	assert.True(t, hours.OpenAt(monday(10, 0)))
	assert.False(t, hours.OpenAt(monday(22, 0)))
	assert.True(t, hours.OpenAt(tuesday(23, 30)), "overnight window")
	assert.True(t, hours.OpenAt(tuesday(1, 0)), "early hours belong to the same weekday entry")
	assert.False(t, hours.OpenAt(tuesday(12, 0)))
	assert.False(t, hours.OpenAt(time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)))
}

func TestTenantIsOpenAt_UsesTimezone(t *testing.T) {
	tn := &Tenant{Timezone: "Asia/Jakarta"}
	tn.OperatingHours[time.Monday] = DayHours{Open: "08:00", Close: "10:00"}

	// 02:00 UTC is 09:00 in Jakarta
	assert.True(t, tn.IsOpenAt(time.Date(2026, 10, 12, 2, 0, 0, 0, time.UTC)))
	assert.False(t, tn.IsOpenAt(time.Date(2026, 10, 12, 9, 0, 0, 0, time.UTC)))

	unknown := &Tenant{Timezone: "Mars/Olympus"}
	assert.Equal(t, time.UTC, unknown.Location())
}
