package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/storefront-core/internal/httpx"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// Cache is the part of the satellite store the chat surface reads and writes.
type Cache interface {
	ListProducts(ctx context.Context, category string, offset, limit int) ([]satellite.ProductEntry, error)
	GetProduct(ctx context.Context, id int64) (*satellite.ProductEntry, error)
	GetChatUser(ctx context.Context, telegramID int64) (*satellite.ChatUser, error)
	RegisterChatUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*satellite.ChatUser, error)
	RecordView(ctx context.Context, telegramID, productID int64) error
	GetChatState(ctx context.Context, telegramID int64) (*satellite.ChatState, error)
	SaveChatState(ctx context.Context, telegramID int64, state, payload string) error
}

// Handler is the satellite HTTP face. Reads come from the cache; anything
// that changes stock goes to the storefront synchronously.
type Handler struct {
	storefront *ServiceProxy
	cache      Cache
	logger     *slog.Logger
}

func NewHandler(storefront *ServiceProxy, cache Cache, logger *slog.Logger) *Handler {
	return &Handler{
		storefront: storefront,
		cache:      cache,
		logger:     logger,
	}
}

// Register mounts the gateway routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/catalog", h.HandleCatalog)
	r.Get("/catalog/{id}", h.HandleProduct)
	r.Post("/users", h.HandleRegisterUser)
	r.Get("/users/{telegramId}/state", h.HandleGetState)
	r.Put("/users/{telegramId}/state", h.HandleSaveState)

	r.HandleFunc("/cart", h.HandleCart)
	r.HandleFunc("/cart/*", h.HandleCart)
	r.HandleFunc("/checkout", h.HandleCheckout)
	r.HandleFunc("/checkout/*", h.HandleCheckout)
}

type catalogPage struct {
	Success  bool                     `json:"success"`
	Products []satellite.ProductEntry `json:"products"`
	Count    int                      `json:"count"`
	Offset   int                      `json:"offset"`
	Limit    int                      `json:"limit"`
}

func (h *Handler) HandleCatalog(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	offset := httpx.QueryInt(r, "offset", 0)
	limit := httpx.QueryInt(r, "limit", defaultPageLimit)
	if limit == 0 {
		limit = defaultPageLimit
	}
	limit = min(limit, maxPageLimit)

	products, err := h.cache.ListProducts(r.Context(), category, offset, limit)
	if err != nil {
		h.logger.Error("failed to list cached products", "error", err, "category", category)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, catalogPage{
		Success:  true,
		Products: products,
		Count:    len(products),
		Offset:   offset,
		Limit:    limit,
	})
}

func (h *Handler) HandleProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httpx.PathInt64(r, "id")
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid product id", nil)
		return
	}

	product, err := h.cache.GetProduct(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to get cached product", "error", err, "product_id", id)
		httpx.WriteInternal(w, h.logger)
		return
	}
	if product == nil || !product.IsActive {
		httpx.WriteError(w, h.logger, http.StatusNotFound, "product not found", nil)
		return
	}

	if viewer, err := httpx.UserID(r); err == nil {
		if err := h.cache.RecordView(r.Context(), viewer, id); err != nil {
			h.logger.Warn("failed to record view", "error", err, "telegram_id", viewer, "product_id", id)
		}
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "product": product})
}

type registerRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

func (h *Handler) HandleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.TelegramID <= 0 || strings.TrimSpace(req.FirstName) == "" {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "telegram_id and first_name are required", nil)
		return
	}

	user, err := h.cache.RegisterChatUser(r.Context(), req.TelegramID, req.Username, req.FirstName, req.LastName)
	if err != nil {
		h.logger.Error("failed to register chat user", "error", err, "telegram_id", req.TelegramID)
		httpx.WriteInternal(w, h.logger)
		return
	}

	h.logger.Info("chat user registered", "telegram_id", user.TelegramID, "mapped", user.CanonicalID != nil)
	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "user": user})
}

type stateRequest struct {
	State   string `json:"state"`
	Payload string `json:"payload"`
}

// HandleGetState returns the user's place in the menu flow, or an empty state
// when none is live.
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := httpx.PathInt64(r, "telegramId")
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid telegram id", nil)
		return
	}

	state, err := h.cache.GetChatState(r.Context(), telegramID)
	if err != nil {
		h.logger.Error("failed to get chat state", "error", err, "telegram_id", telegramID)
		httpx.WriteInternal(w, h.logger)
		return
	}
	if state == nil {
		state = &satellite.ChatState{TelegramID: telegramID}
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true, "state": state})
}

func (h *Handler) HandleSaveState(w http.ResponseWriter, r *http.Request) {
	telegramID, ok := httpx.PathInt64(r, "telegramId")
	if !ok {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid telegram id", nil)
		return
	}

	var req stateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.State) == "" {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "state is required", nil)
		return
	}

	if err := h.cache.SaveChatState(r.Context(), telegramID, req.State, req.Payload); err != nil {
		h.logger.Error("failed to save chat state", "error", err, "telegram_id", telegramID)
		httpx.WriteInternal(w, h.logger)
		return
	}

	httpx.WriteJSON(w, h.logger, http.StatusOK, map[string]any{"success": true})
}

// HandleCart forwards /cart... to the storefront cart API.
func (h *Handler) HandleCart(w http.ResponseWriter, r *http.Request) {
	h.proxyAsCanonical(w, r, "/api"+r.URL.Path)
}

// HandleCheckout forwards /checkout... to the storefront order API, where the
// commit runs against authoritative stock.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	h.proxyAsCanonical(w, r, strings.Replace(r.URL.Path, "/checkout", "/api/orders", 1))
}

// proxyAsCanonical forwards on behalf of a chat user. The inbound identity is
// a Telegram id; the storefront only knows the canonical id that
// reconciliation assigned to it.
func (h *Handler) proxyAsCanonical(w http.ResponseWriter, r *http.Request, path string) {
	telegramID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	user, err := h.cache.GetChatUser(r.Context(), telegramID)
	if err != nil {
		h.logger.Error("failed to resolve chat user", "error", err, "telegram_id", telegramID)
		httpx.WriteInternal(w, h.logger)
		return
	}
	if user == nil {
		httpx.WriteError(w, h.logger, http.StatusNotFound, "chat user not registered",
			map[string]any{"reason": "unknown_user"})
		return
	}
	if user.CanonicalID == nil {
		httpx.WriteError(w, h.logger, http.StatusConflict, "account is still being set up, try again shortly",
			map[string]any{"reason": "identity_pending"})
		return
	}

	h.proxyRequest(w, r, path, *user.CanonicalID)
}

func (h *Handler) proxyRequest(w http.ResponseWriter, r *http.Request, path string, userID int64) {
	resp, err := h.storefront.ForwardRequest(r.Context(), r, path, userID)
	if err != nil {
		h.logger.Error("failed to forward request", "error", err, "path", path)
		httpx.WriteError(w, h.logger, http.StatusBadGateway, "storefront unavailable", nil)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}

	w.WriteHeader(resp.StatusCode)

	h.logger.Info("request proxied", "method", r.Method, "path", path, "user_id", userID, "status", resp.StatusCode)

	if _, err := io.Copy(w, resp.Body); err != nil {
		h.logger.Error("failed to copy response body", "error", err)
	}
}
