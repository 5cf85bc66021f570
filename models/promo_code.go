package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// PromoCode grants either a percentage or a fixed amount off a booking total.
// MaxUses of zero means unlimited.
type PromoCode struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Code                 string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Description          string          `gorm:"type:varchar(200)" json:"description"`
	DiscountPercent      decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"discount_percent"`
	DiscountAmount       decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	MinimumSpend         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"minimum_spend"`
	ValidFrom            time.Time       `gorm:"not null" json:"valid_from"`
	ValidTo              time.Time       `gorm:"not null" json:"valid_to"`
	MaxUses              int             `gorm:"not null" json:"max_uses"`
	CurrentUses          int             `gorm:"not null" json:"current_uses"`
	ApplicableDays       StringSet       `json:"applicable_days"`
	ApplicableZones      StringSet       `json:"applicable_zones"`
	ApplicableTableTypes StringSet       `json:"applicable_table_types"`
	IsActive             bool            `gorm:"not null" json:"is_active"`
	CreatedAt            time.Time       `json:"created_at"`
}

// NormalizePromoCode is the canonical stored form of a code.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p PromoCode) ValidAt(now time.Time) bool {
	return p.IsActive && !now.Before(p.ValidFrom) && !now.After(p.ValidTo)
}

func (p PromoCode) HasUsesLeft() bool {
	return p.MaxUses == 0 || p.CurrentUses < p.MaxUses
}

// Discount computes the reduction on base. A percentage takes precedence over
// a fixed amount, and the result never exceeds base. Percent discounts are
// rounded half-to-even to two places.
func (p PromoCode) Discount(base decimal.Decimal) decimal.Decimal {
	var d decimal.Decimal
	switch {
	case p.DiscountPercent.IsPositive():
		d = base.Mul(p.DiscountPercent).Div(hundred).RoundBank(2)
	case p.DiscountAmount.IsPositive():
		d = p.DiscountAmount
	default:
		return decimal.Zero
	}
	if d.GreaterThan(base) {
		return base
	}
	return d
}

// Inert reports whether the code grants nothing even when it validates.
func (p PromoCode) Inert() bool {
	return !p.DiscountPercent.IsPositive() && !p.DiscountAmount.IsPositive()
}
