package domain

import "time"

const (
	TopicOrderCommitted     = "order.committed"
	TopicOrderStatusChanged = "order.status_changed"
)

type OrderCommittedEvent struct {
	OrderID   string      `json:"order_id"`
	Number    string      `json:"order_number"`
	UserID    int64       `json:"user_id"`
	Items     []OrderLine `json:"items"`
	Total     int64       `json:"total"`
	Timestamp time.Time   `json:"timestamp"`
}

type OrderStatusChangedEvent struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	Items     []OrderLine `json:"items"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProductIDs lists the distinct products touched by a snapshot.
func ProductIDs(lines []OrderLine) []int64 {
	seen := make(map[int64]bool, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		if seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		ids = append(ids, l.ProductID)
	}
	return ids
}
