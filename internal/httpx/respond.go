package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
)

const UserIDHeader = "X-User-ID"

var ErrMissingUser = errors.New("missing or invalid " + UserIDHeader + " header")

func WriteJSON(w http.ResponseWriter, logger *slog.Logger, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// WriteError writes the storefront failure envelope. Extra fields are merged in.
func WriteError(w http.ResponseWriter, logger *slog.Logger, status int, message string, extra map[string]any) {
	body := map[string]any{"success": false, "message": message}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, logger, status, body)
}

func WriteInternal(w http.ResponseWriter, logger *slog.Logger) {
	WriteError(w, logger, http.StatusInternalServerError, "internal server error", nil)
}

// UserID reads the caller identity set by the session layer in front of the core.
func UserID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.Header.Get(UserIDHeader), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrMissingUser
	}
	return id, nil
}

func PathInt64(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// QueryInt returns the named query parameter, def when absent or malformed.
func QueryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func QueryInt64(r *http.Request, name string, def int64) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || n < 0 {
		return def
	}
	return n
}
