package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/satellite"
)

func newTestCache(t *testing.T) *satellite.Store {
	t.Helper()
	store, err := satellite.Open(filepath.Join(t.TempDir(), "satellite.db"))
	if err != nil {
		t.Fatalf("failed to open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Now()
	for _, p := range []domain.Product{
		{ID: 1, Article: "VE-1", Name: "Scarf", Price: 5000, Category: "accessories", Stock: 2, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: 2, Article: "VE-2", Name: "Coat", Price: 90000, Category: "outerwear", Stock: 1, IsActive: true, CreatedAt: now, UpdatedAt: now},
		{ID: 3, Article: "VE-3", Name: "Old", Price: 100, Category: "outerwear", IsActive: false, CreatedAt: now, UpdatedAt: now},
	} {
		if err := store.UpsertProduct(context.Background(), p, now); err != nil {
			t.Fatalf("failed to seed cache: %v", err)
		}
	}
	return store
}

func newTestRouter(t *testing.T, storefrontURL string, client *http.Client) (http.Handler, *satellite.Store) {
	t.Helper()
	cache := newTestCache(t)
	handler := NewHandler(NewServiceProxy(storefrontURL, client), cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	handler.Register(r)
	return r, cache
}

func mapChatUser(t *testing.T, cache *satellite.Store, telegramID, canonicalID int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := cache.RegisterChatUser(ctx, telegramID, "", "Lin", ""); err != nil {
		t.Fatalf("failed to register chat user: %v", err)
	}
	if canonicalID > 0 {
		if err := cache.SetCanonicalID(ctx, telegramID, canonicalID); err != nil {
			t.Fatalf("failed to map chat user: %v", err)
		}
	}
}

func TestHandler_HandleCatalog(t *testing.T) {
	router, _ := newTestRouter(t, "http://unused", http.DefaultClient)

	t.Run("lists active cached products by category", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/catalog?category=outerwear", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var page catalogPage
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if page.Count != 1 || page.Products[0].Name != "Coat" {
			t.Errorf("unexpected products: %+v", page.Products)
		}
		if page.Limit != defaultPageLimit {
			t.Errorf("expected limit %d, got %d", defaultPageLimit, page.Limit)
		}
	})

	t.Run("caps the page size", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/catalog?limit=1000", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		var page catalogPage
		if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if page.Limit != maxPageLimit {
			t.Errorf("expected limit %d, got %d", maxPageLimit, page.Limit)
		}
	})
}

func TestHandler_HandleProduct(t *testing.T) {
	router, cache := newTestRouter(t, "http://unused", http.DefaultClient)

	t.Run("returns a cached product and records the view", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/catalog/1", nil)
		req.Header.Set("X-User-ID", "77")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		n, err := cache.DeleteViewsBefore(context.Background(), time.Now().Add(time.Hour))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1 recorded view, got %d", n)
		}
	})

	t.Run("hides inactive products", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/catalog/3", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/catalog/abc", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleRegisterUser(t *testing.T) {
	router, cache := newTestRouter(t, "http://unused", http.DefaultClient)

	t.Run("registers a chat user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"telegram_id":501,"first_name":"Lin"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		u, err := cache.GetChatUser(context.Background(), 501)
		if err != nil || u == nil {
			t.Fatalf("expected stored user, got %v, %v", u, err)
		}
		if u.CanonicalID != nil {
			t.Errorf("expected no canonical id before reconciliation, got %d", *u.CanonicalID)
		}
	})

	t.Run("requires telegram id and first name", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"telegram_id":501}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}

func TestHandler_Proxy(t *testing.T) {
	t.Run("forwards cart calls to the storefront cart API", func(t *testing.T) {
		storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPatch || r.URL.Path != "/api/cart/items/5" {
				t.Errorf("expected PATCH /api/cart/items/5, got %s %s", r.Method, r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"success":true}`))
		}))
		defer storefront.Close()

		router, cache := newTestRouter(t, storefront.URL, storefront.Client())
		mapChatUser(t, cache, 501, 7)
		req := httptest.NewRequest(http.MethodPatch, "/cart/items/5", strings.NewReader(`{"quantity":2}`))
		req.Header.Set("X-User-ID", "501")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Body.String() != `{"success":true}` {
			t.Errorf("unexpected body: %s", rec.Body.String())
		}
	})

	t.Run("sends checkout to the storefront and keeps its status", func(t *testing.T) {
		storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/orders" {
				t.Errorf("expected /api/orders, got %s", r.URL.Path)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"success":false,"reason":"items_unavailable"}`))
		}))
		defer storefront.Close()

		router, cache := newTestRouter(t, storefront.URL, storefront.Client())
		mapChatUser(t, cache, 501, 7)
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
		req.Header.Set("X-User-ID", "501")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", rec.Code)
		}
	})

	t.Run("returns 502 when the storefront is unavailable", func(t *testing.T) {
		router, cache := newTestRouter(t, "http://localhost:99999", &http.Client{})
		mapChatUser(t, cache, 501, 7)
		req := httptest.NewRequest(http.MethodGet, "/cart", nil)
		req.Header.Set("X-User-ID", "501")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected status 502, got %d", rec.Code)
		}

		var resp map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp["message"] != "storefront unavailable" {
			t.Errorf("expected 'storefront unavailable', got %v", resp["message"])
		}
	})
}

func TestHandler_Proxy_Identity(t *testing.T) {
	t.Run("acts as the canonical user, not the telegram id", func(t *testing.T) {
		var gotUserID string
		storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUserID = r.Header.Get("X-User-ID")
			w.WriteHeader(http.StatusCreated)
		}))
		defer storefront.Close()

		router, cache := newTestRouter(t, storefront.URL, storefront.Client())
		mapChatUser(t, cache, 555000111, 3)
		req := httptest.NewRequest(http.MethodPost, "/checkout", strings.NewReader(`{}`))
		req.Header.Set("X-User-ID", "555000111")
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", rec.Code)
		}
		if gotUserID != "3" {
			t.Errorf("expected storefront to see user 3, got %q", gotUserID)
		}
	})

	tests := []struct {
		name       string
		setup      func(t *testing.T, cache *satellite.Store)
		userHeader string
		wantStatus int
		wantReason string
	}{
		{
			name:       "waits for reconciliation to map the user",
			setup:      func(t *testing.T, cache *satellite.Store) { mapChatUser(t, cache, 601, 0) },
			userHeader: "601",
			wantStatus: http.StatusConflict,
			wantReason: "identity_pending",
		},
		{
			name:       "rejects an unregistered chat user",
			setup:      func(t *testing.T, cache *satellite.Store) {},
			userHeader: "602",
			wantStatus: http.StatusNotFound,
			wantReason: "unknown_user",
		},
		{
			name:       "requires an identity",
			setup:      func(t *testing.T, cache *satellite.Store) {},
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storefront := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Errorf("storefront should not be called, got %s %s", r.Method, r.URL.Path)
			}))
			defer storefront.Close()

			router, cache := newTestRouter(t, storefront.URL, storefront.Client())
			tt.setup(t, cache)
			req := httptest.NewRequest(http.MethodGet, "/cart", nil)
			if tt.userHeader != "" {
				req.Header.Set("X-User-ID", tt.userHeader)
			}
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantReason == "" {
				return
			}
			var resp map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp["reason"] != tt.wantReason {
				t.Errorf("expected reason %q, got %v", tt.wantReason, resp["reason"])
			}
		})
	}
}

func TestHandler_ChatState(t *testing.T) {
	router, cache := newTestRouter(t, "http://unused", http.DefaultClient)

	t.Run("saves the menu state", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/users/501/state", strings.NewReader(`{"state":"browsing","payload":"outerwear"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		st, err := cache.GetChatState(context.Background(), 501)
		if err != nil || st == nil {
			t.Fatalf("expected stored state, got %v, %v", st, err)
		}
		if st.State != "browsing" || st.Payload != "outerwear" {
			t.Errorf("unexpected state: %+v", st)
		}
	})

	t.Run("reads the menu state back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/501/state", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var resp struct {
			State satellite.ChatState `json:"state"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.State.State != "browsing" {
			t.Errorf("expected state browsing, got %q", resp.State.State)
		}
	})

	t.Run("returns an empty state for a new user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users/777/state", nil)
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"state":""`) {
			t.Errorf("expected empty state, got %s", rec.Body.String())
		}
	})

	t.Run("requires a state", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/users/501/state", strings.NewReader(`{"payload":"x"}`))
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})
}
