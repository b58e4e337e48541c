package catalog

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/httpx"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
)

type Reader interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	ListActive(ctx context.Context, f Filter) ([]domain.Product, error)
	CountActive(ctx context.Context, category string) (int, error)
}

type Handler struct {
	repo   Reader
	logger *slog.Logger
}

func NewHandler(repo Reader, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

// Page is the listing envelope the satellite pages through.
type Page struct {
	Success  bool             `json:"success"`
	Products []domain.Product `json:"products"`
	Count    int              `json:"count"`
	Total    int              `json:"total"`
	AfterID  int64            `json:"after_id"`
	Offset   int              `json:"offset"`
	Limit    int              `json:"limit"`
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	f := Filter{
		Category: r.URL.Query().Get("category"),
		AfterID:  httpx.QueryInt64(r, "after_id", 0),
		Offset:   httpx.QueryInt(r, "offset", 0),
		Limit:    httpx.QueryInt(r, "limit", defaultPageLimit),
	}
	if f.Limit == 0 {
		f.Limit = defaultPageLimit
	}
	if f.Limit > maxPageLimit {
		f.Limit = maxPageLimit
	}

	total, err := h.repo.CountActive(r.Context(), f.Category)
	if err != nil {
		h.logger.Error("failed to count products", "error", err)
		httpx.WriteInternal(w, h.logger)
		return
	}

	products, err := h.repo.ListActive(r.Context(), f)
	if err != nil {
		h.logger.Error("failed to list products", "error", err, "category", f.Category)
		httpx.WriteInternal(w, h.logger)
		return
	}

	h.logger.Info("products listed", "count", len(products), "total", total, "after_id", f.AfterID, "offset", f.Offset)
	httpx.WriteJSON(w, h.logger, http.StatusOK, Page{
		Success:  true,
		Products: products,
		Count:    len(products),
		Total:    total,
		AfterID:  f.AfterID,
		Offset:   f.Offset,
		Limit:    f.Limit,
	})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathInt64(r, "id")
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid product id", nil)
		return
	}

	product, err := h.repo.Get(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		httpx.WriteInternal(w, h.logger)
		return
	}

	if product == nil {
		httpx.WriteError(w, h.logger, http.StatusNotFound, "product not found", nil)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "product": product})
}
