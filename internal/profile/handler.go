package profile

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

type provisionResponse struct {
	Success bool `json:"success"`
	Provisioned
	Message string `json:"message"`
}

func (h *Handler) HandleEnsureExternal(w http.ResponseWriter, r *http.Request) {
	var req ExternalIdentity
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	p, err := h.svc.EnsureExternal(r.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidIdentity) {
			httpx.WriteError(w, h.logger, http.StatusBadRequest, err.Error(), nil)
			return
		}
		h.logger.Error("failed to provision user", "error", err, "external_id", req.ExternalID)
		httpx.WriteInternal(w, h.logger)
		return
	}

	resp := provisionResponse{Success: true, Provisioned: p, Message: "user updated"}
	status := http.StatusOK
	if p.IsNew {
		resp.Message = "user created"
		status = http.StatusCreated
	}

	h.logger.Info("user provisioned", "user_id", p.UserID, "external_id", req.ExternalID, "is_new", p.IsNew)
	httpx.WriteJSON(w, h.logger, status, resp)
}

// UserPage is the profile listing the satellite pulls tier and stats from.
type UserPage struct {
	Success bool          `json:"success"`
	Users   []domain.User `json:"users"`
	Count   int           `json:"count"`
	Total   int           `json:"total"`
	Offset  int           `json:"offset"`
	Limit   int           `json:"limit"`
}

func (h *Handler) HandleListExternal(w http.ResponseWriter, r *http.Request) {
	offset := httpx.QueryInt(r, "offset", 0)
	limit := httpx.QueryInt(r, "limit", 100)
	if limit == 0 || limit > 500 {
		limit = 500
	}

	users, total, err := h.svc.ListExternal(r.Context(), offset, limit)
	if err != nil {
		h.logger.Error("failed to list users", "error", err)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, UserPage{
		Success: true,
		Users:   users,
		Count:   len(users),
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	})
}
