package domain

import "time"

type PromoCode struct {
	ID              int64      `json:"id"`
	Code            string     `json:"code"`
	Description     string     `json:"description"`
	DiscountPercent int        `json:"discount_percent"`
	DiscountAmount  int64      `json:"discount_amount"`
	MinOrderAmount  int64      `json:"min_order_amount"`
	UsageLimit      *int       `json:"usage_limit"`
	UsedCount       int        `json:"used_count"`
	ValidFrom       *time.Time `json:"valid_from"`
	ValidUntil      *time.Time `json:"valid_until"`
	IsActive        bool       `json:"is_active"`
}
