package cart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/httpx"
)

type Handler struct {
	svc    *Service
	logger *slog.Logger
}

func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
	}
}

type addRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	view, err := h.svc.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list cart", "error", err, "user_id", userID)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "cart": view})
}

func (h *Handler) HandleTotals(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	sum, err := h.svc.Totals(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to compute cart totals", "error", err, "user_id", userID)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "totals": sum})
}

func (h *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	var req addRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	line, err := h.svc.Add(r.Context(), userID, req.ProductID, req.Quantity, req.Size, req.Color)
	if err != nil {
		h.writeServiceError(w, err, userID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusCreated, map[string]any{"success": true, "line": line})
}

func (h *Handler) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	lineID, ok := httpx.PathInt64(r, "lineId")
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid line id", nil)
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := h.svc.SetQuantity(r.Context(), userID, lineID, req.Quantity); err != nil {
		h.writeServiceError(w, err, userID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	userID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	lineID, ok := httpx.PathInt64(r, "lineId")
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid line id", nil)
		return
	}

	if err := h.svc.Remove(r.Context(), userID, lineID); err != nil {
		h.writeServiceError(w, err, userID)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, userID int64) {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity):
		httpx.WriteError(w, h.logger, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, domain.ErrLineNotFound):
		httpx.WriteError(w, h.logger, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrProductUnavailable), errors.Is(err, domain.ErrInsufficientStock):
		httpx.WriteError(w, h.logger, http.StatusConflict, err.Error(), nil)
	default:
		h.logger.Error("cart operation failed", "error", err, "user_id", userID)
		httpx.WriteInternal(w, h.logger)
	}
}
