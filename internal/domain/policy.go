package domain

// PricingPolicy holds the per-surface money rules applied at cart and checkout time.
type PricingPolicy struct {
	FreeDeliveryThreshold int64  `yaml:"free_delivery_threshold"`
	DeliveryFee           int64  `yaml:"delivery_fee"`
	VIPThreshold          int64  `yaml:"vip_threshold"`
	PriceTolerancePercent int    `yaml:"price_tolerance_percent"`
	OrderPrefix           string `yaml:"order_prefix"`
}

func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		FreeDeliveryThreshold: 200000,
		DeliveryFee:           2000,
		VIPThreshold:          1000000,
		PriceTolerancePercent: 10,
		OrderPrefix:           "VE",
	}
}

// DeliveryFeeFor is zero once the subtotal reaches the free delivery threshold.
func (p PricingPolicy) DeliveryFeeFor(subtotal int64) int64 {
	if subtotal >= p.FreeDeliveryThreshold {
		return 0
	}
	return p.DeliveryFee
}

// WithinTolerance reports whether live differs from captured by no more than
// PriceTolerancePercent of captured. A negative tolerance disables the check.
func (p PricingPolicy) WithinTolerance(captured, live int64) bool {
	if p.PriceTolerancePercent < 0 || captured == live {
		return true
	}
	diff := live - captured
	if diff < 0 {
		diff = -diff
	}
	return diff*100 <= captured*int64(p.PriceTolerancePercent)
}
