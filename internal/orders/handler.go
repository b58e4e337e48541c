package orders

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/httpx"
)

const IdempotencyHeader = "Idempotency-Key"

type Handler struct {
	workflow *Workflow
	logger   *slog.Logger
}

func NewHandler(workflow *Workflow, logger *slog.Logger) *Handler {
	return &Handler{
		workflow: workflow,
		logger:   logger,
	}
}

type checkoutRequest struct {
	PromoCode          string `json:"promo_code"`
	DeliveryAddress    string `json:"delivery_address"`
	CustomerNotes      string `json:"customer_notes"`
	AcceptPriceChanges bool   `json:"accept_price_changes"`
}

func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	var req checkoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
			return
		}
	}

	receipt, err := h.workflow.Checkout(r.Context(), CheckoutRequest{
		UserID:             userID,
		PromoCode:          req.PromoCode,
		DeliveryAddress:    req.DeliveryAddress,
		CustomerNotes:      req.CustomerNotes,
		AcceptPriceChanges: req.AcceptPriceChanges,
		IdempotencyKey:     r.Header.Get(IdempotencyHeader),
	})
	if err != nil {
		h.writeCheckoutError(w, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	httpx.WriteJSON(w, h.logger, status, map[string]any{
		"success": true,
		"state":   receipt.State,
		"order":   receipt.Order,
	})
}

func (h *Handler) writeCheckoutError(w http.ResponseWriter, err error) {
	var unavailable *domain.ItemsUnavailableError
	var changed *domain.PriceChangedError

	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		httpx.WriteError(w, h.logger, http.StatusBadRequest, err.Error(), map[string]any{"reason": "empty_cart"})
	case errors.As(err, &unavailable):
		httpx.WriteError(w, h.logger, http.StatusConflict, domain.ErrItemsUnavailable.Error(),
			map[string]any{"reason": "items_unavailable", "items": unavailable.Names})
	case errors.As(err, &changed):
		httpx.WriteError(w, h.logger, http.StatusConflict, domain.ErrPriceChanged.Error(),
			map[string]any{"reason": "price_changed", "changes": changed.Changes})
	case errors.Is(err, domain.ErrInvalidPromo):
		httpx.WriteError(w, h.logger, http.StatusUnprocessableEntity, err.Error(), map[string]any{"reason": "invalid_promo"})
	default:
		httpx.WriteInternal(w, h.logger)
	}
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusNotFound, domain.ErrOrderNotFound.Error(), nil)
		return
	}

	order, err := h.workflow.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			httpx.WriteError(w, h.logger, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.logger.Error("failed to get order", "error", err, "order_id", id)
		httpx.WriteInternal(w, h.logger)
		return
	}

	if userID, err := httpx.UserID(r); err == nil && userID != order.UserID {
		httpx.WriteError(w, h.logger, http.StatusNotFound, domain.ErrOrderNotFound.Error(), nil)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "order": order})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	orders, err := h.workflow.ListByUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list orders", "error", err, "user_id", userID)
		httpx.WriteInternal(w, h.logger)
		return
	}

	h.logger.Info("orders listed", "user_id", userID, "count", len(orders))
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "orders": orders})
}

type updateStatusRequest struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(r)
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusNotFound, domain.ErrOrderNotFound.Error(), nil)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	order, err := h.workflow.UpdateStatus(r.Context(), id, req.Status)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		httpx.WriteError(w, h.logger, http.StatusNotFound, err.Error(), nil)
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.WriteError(w, h.logger, http.StatusConflict, err.Error(), nil)
		return
	case err != nil:
		h.logger.Error("failed to update order status", "error", err, "order_id", id)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "order": order})
}

// orderID reads the {id} path value. Anything that is not a UUID cannot name
// an order.
func orderID(r *http.Request) (string, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
