package domain

import "time"

type CartLine struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	ProductID       int64     `json:"product_id"`
	Quantity        int       `json:"quantity"`
	Size            string    `json:"size"`
	Color           string    `json:"color"`
	PriceAtAddition int64     `json:"price_at_addition"`
	AddedAt         time.Time `json:"added_at"`
}

// CartItem is a cart line joined with the live state of its product.
type CartItem struct {
	CartLine
	Name      string `json:"name"`
	Article   string `json:"article"`
	LivePrice int64  `json:"live_price"`
	Stock     int    `json:"stock"`
	IsActive  bool   `json:"is_active"`
}

func (i CartItem) Available() bool {
	return i.IsActive && i.Stock >= i.Quantity
}

func (i CartItem) LineTotal() int64 {
	return i.LivePrice * int64(i.Quantity)
}

func (i CartItem) PriceChanged() bool {
	return i.PriceAtAddition != i.LivePrice
}
