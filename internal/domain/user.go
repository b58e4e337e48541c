package domain

import "time"

type User struct {
	ID           int64     `json:"id"`
	ExternalID   *int64    `json:"external_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	TotalOrders  int       `json:"total_orders"`
	TotalSpent   int64     `json:"total_spent"`
	IsVIP        bool      `json:"is_vip"`
	ReferralCode string    `json:"referral_code"`
	CreatedAt    time.Time `json:"created_at"`
}
