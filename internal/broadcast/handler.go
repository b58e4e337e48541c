package broadcast

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/joao-fontenele/storefront-core/internal/httpx"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
)

const actionBroadcast = "broadcast"

type Store interface {
	Recipients(ctx context.Context, target satellite.Target) ([]int64, error)
	LogAction(ctx context.Context, telegramID int64, action, details string) error
}

type Handler struct {
	store       Store
	broadcaster *Broadcaster
	prices      map[string]int64
	baseCtx     context.Context
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// NewHandler builds the broadcast endpoint. Batches run in the background
// under baseCtx, and prices fill {name} placeholders in the text.
func NewHandler(baseCtx context.Context, store Store, broadcaster *Broadcaster, prices map[string]int64, logger *slog.Logger) *Handler {
	return &Handler{
		store:       store,
		broadcaster: broadcaster,
		prices:      prices,
		baseCtx:     baseCtx,
		logger:      logger,
	}
}

type sendRequest struct {
	Target  satellite.Target `json:"target"`
	Text    string           `json:"text"`
	PhotoID string           `json:"photo_id"`
}

type sendResponse struct {
	Success    bool             `json:"success"`
	Target     satellite.Target `json:"target"`
	Recipients int              `json:"recipients"`
}

func (h *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	adminID, err := httpx.UserID(r)
	if err != nil {
		httpx.WriteError(w, h.logger, http.StatusUnauthorized, err.Error(), nil)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if !req.Target.Valid() {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "target must be all or vip", nil)
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.PhotoID == "" {
		httpx.WriteError(w, h.logger, http.StatusBadRequest, "text is required", nil)
		return
	}

	recipients, err := h.store.Recipients(r.Context(), req.Target)
	if err != nil {
		h.logger.Error("failed to list recipients", "error", err, "target", req.Target)
		httpx.WriteInternal(w, h.logger)
		return
	}

	msg := Message{Text: Expand(req.Text, h.prices), PhotoID: req.PhotoID}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(adminID, req.Target, recipients, msg)
	}()

	h.logger.Info("broadcast started", "admin_id", adminID, "target", req.Target, "recipients", len(recipients))
	httpx.WriteJSON(w, h.logger, http.StatusAccepted, sendResponse{
		Success:    true,
		Target:     req.Target,
		Recipients: len(recipients),
	})
}

func (h *Handler) run(adminID int64, target satellite.Target, recipients []int64, msg Message) {
	report := h.broadcaster.Send(h.baseCtx, recipients, msg)

	h.logger.Info("broadcast finished",
		"admin_id", adminID,
		"target", target,
		"total", report.Total,
		"succeeded", report.Succeeded,
		"failed", report.Failed,
	)

	details, err := json.Marshal(struct {
		Target satellite.Target `json:"target"`
		Report
	}{target, report})
	if err != nil {
		h.logger.Error("failed to encode broadcast report", "error", err)
		return
	}

	// The batch may have been cut short by shutdown; the report is still kept.
	if err := h.store.LogAction(context.WithoutCancel(h.baseCtx), adminID, actionBroadcast, string(details)); err != nil {
		h.logger.Error("failed to record broadcast", "error", err, "admin_id", adminID)
	}
}

// Wait blocks until every background batch has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}
