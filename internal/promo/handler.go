package promo

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

type checkRequest struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" || req.Amount < 0 {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	quote, err := h.svc.Check(r.Context(), req.Code, req.Amount)
	switch {
	case errors.Is(err, domain.ErrPromoNotFound):
		httpx.WriteError(w, h.logger, http.StatusNotFound, err.Error(), nil)
		return
	case errors.Is(err, domain.ErrInvalidPromo):
		httpx.WriteError(w, h.logger, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	case err != nil:
		h.logger.Error("failed to check promo", "error", err, "code", req.Code)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "promo": quote})
}
