package promo

import (
	"time"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

// IsValid reports whether p can be applied to an order of amount at now.
// Validity bounds are inclusive and a zero minimum means no minimum.
func IsValid(p domain.PromoCode, amount int64, now time.Time) bool {
	if !p.IsActive {
		return false
	}
	if p.ValidFrom != nil && now.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && now.After(*p.ValidUntil) {
		return false
	}
	if amount < p.MinOrderAmount {
		return false
	}
	if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
		return false
	}
	return true
}

// ComputeDiscount prefers a positive fixed amount, capped at the order amount,
// over a percentage. Percent discounts truncate toward zero.
func ComputeDiscount(p domain.PromoCode, amount int64) int64 {
	switch {
	case p.DiscountAmount > 0:
		return min(p.DiscountAmount, amount)
	case p.DiscountPercent > 0:
		return amount * int64(p.DiscountPercent) / 100
	default:
		return 0
	}
}
