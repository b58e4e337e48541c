package domain

import (
	"encoding/json"
	"time"
)

type OrderStatus string

const (
	OrderStatusNew        OrderStatus = "new"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusNew, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal statuses settle the stock reservation and accept no further changes.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// OrderLine is one entry of the immutable snapshot taken at commit time.
type OrderLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Article   string `json:"article"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
	LineTotal int64  `json:"line_total"`
}

type Order struct {
	ID              string      `json:"id"`
	Number          string      `json:"order_number"`
	UserID          int64       `json:"user_id"`
	Items           []OrderLine `json:"items"`
	Subtotal        int64       `json:"subtotal"`
	Discount        int64       `json:"discount"`
	DeliveryFee     int64       `json:"delivery_fee"`
	Total           int64       `json:"total"`
	PromoCode       *string     `json:"promo_code"`
	Status          OrderStatus `json:"status"`
	DeliveryAddress string      `json:"delivery_address"`
	CustomerNotes   string      `json:"customer_notes"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// SnapshotLines freezes cart items at their live prices.
func SnapshotLines(items []CartItem) []OrderLine {
	lines := make([]OrderLine, 0, len(items))
	for _, it := range items {
		lines = append(lines, OrderLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Article:   it.Article,
			UnitPrice: it.LivePrice,
			Quantity:  it.Quantity,
			Size:      it.Size,
			Color:     it.Color,
			LineTotal: it.LineTotal(),
		})
	}
	return lines
}

func EncodeSnapshot(lines []OrderLine) ([]byte, error) {
	if lines == nil {
		lines = []OrderLine{}
	}
	return json.MarshalIndent(lines, "", "  ")
}

func DecodeSnapshot(data []byte) ([]OrderLine, error) {
	var lines []OrderLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}
