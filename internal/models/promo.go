package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Promo code errors
var (
	ErrPromoInactive   = errors.New("promo code is not active")
	ErrPromoExpired    = errors.New("promo code is outside its validity window")
	ErrPromoExhausted  = errors.New("promo code usage limit reached")
	ErrPromoMinimum    = errors.New("order does not reach the promo minimum")
	ErrPromoUnknownTyp = errors.New("unknown promo discount type")
)

// DiscountType selects how a promo reduces the subtotal
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// PromoCode is a redeemable discount code
type PromoCode struct {
	TenantModel
	Code        string          `json:"code" db:"code"`
	Description string          `json:"description" db:"description"`
	Type        DiscountType    `json:"type" db:"type"`
	Value       decimal.Decimal `json:"value" db:"value"`
	MaxDiscount decimal.Decimal `json:"maxDiscount" db:"max_discount"`
	MinOrder    decimal.Decimal `json:"minOrder" db:"min_order"`
	StartsAt    *time.Time      `json:"startsAt,omitempty" db:"starts_at"`
	EndsAt      *time.Time      `json:"endsAt,omitempty" db:"ends_at"`
	UsageLimit  int             `json:"usageLimit" db:"usage_limit"`
	UsedCount   int             `json:"usedCount" db:"used_count"`
	Active      bool            `json:"active" db:"active"`
}

// Discount computes the discount for subtotal at the given instant.
// The result never exceeds the subtotal.
func (p *PromoCode) Discount(subtotal decimal.Decimal, at time.Time) (decimal.Decimal, error) {
	if !p.Active {
		return decimal.Zero, ErrPromoInactive
	}
	if p.StartsAt != nil && at.Before(*p.StartsAt) {
		return decimal.Zero, ErrPromoExpired
	}
	if p.EndsAt != nil && !at.Before(*p.EndsAt) {
		return decimal.Zero, ErrPromoExpired
	}
	if p.UsageLimit > 0 && p.UsedCount >= p.UsageLimit {
		return decimal.Zero, ErrPromoExhausted
	}
	if subtotal.LessThan(p.MinOrder) {
		return decimal.Zero, ErrPromoMinimum
	}

	var discount decimal.Decimal
	switch p.Type {
	case DiscountPercent:
		discount = subtotal.Mul(p.Value).Div(decimal.NewFromInt(100)).Round(0)
		if p.MaxDiscount.IsPositive() && discount.GreaterThan(p.MaxDiscount) {
			discount = p.MaxDiscount
		}
	case DiscountFixed:
		discount = p.Value
	default:
		return decimal.Zero, ErrPromoUnknownTyp
	}

	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	return discount, nil
}
