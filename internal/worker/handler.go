package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

type Refresher interface {
	RefreshProducts(ctx context.Context, ids []int64) error
}

// StockRefreshHandler re-reads the products touched by an order as soon as
// the storefront announces it, so cached stock does not wait for the next
// catalog pull.
type StockRefreshHandler struct {
	refresher Refresher
	logger    *slog.Logger
}

func NewStockRefreshHandler(refresher Refresher, logger *slog.Logger) *StockRefreshHandler {
	return &StockRefreshHandler{
		refresher: refresher,
		logger:    logger,
	}
}

// Handle returns an error only for payloads it cannot decode. A failed
// refresh is logged and left to the periodic pull.
func (h *StockRefreshHandler) Handle(ctx context.Context, eventType string, payload []byte) error {
	var (
		orderID string
		lines   []domain.OrderLine
	)

	switch eventType {
	case domain.TopicOrderCommitted:
		var event domain.OrderCommittedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("unmarshal order committed event: %w", err)
		}
		orderID, lines = event.OrderID, event.Items

	case domain.TopicOrderStatusChanged:
		var event domain.OrderStatusChangedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return fmt.Errorf("unmarshal order status changed event: %w", err)
		}
		if event.To != domain.OrderStatusCancelled {
			return nil
		}
		orderID, lines = event.OrderID, event.Items

	default:
		h.logger.Warn("ignoring unknown event", "event_type", eventType)
		return nil
	}

	ids := domain.ProductIDs(lines)
	if len(ids) == 0 {
		return nil
	}

	h.logger.Info("refreshing cached stock", "event_type", eventType, "order_id", orderID, "products", len(ids))

	if err := h.refresher.RefreshProducts(ctx, ids); err != nil {
		h.logger.Error("failed to refresh cached stock", "error", err, "order_id", orderID)
	}
	return nil
}
