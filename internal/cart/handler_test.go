package cart

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

func TestHandler_HandleAdd(t *testing.T) {
	tests := []struct {
		name       string
		userHeader string
		body       string
		wantStatus int
	}{
		{"adds line", "7", `{"product_id":1,"quantity":2}`, http.StatusCreated},
		{"defaults quantity to one", "7", `{"product_id":1}`, http.StatusCreated},
		{"product out of stock", "7", `{"product_id":1,"quantity":50}`, http.StatusConflict},
		{"negative quantity", "7", `{"product_id":1,"quantity":-1}`, http.StatusBadRequest},
		{"missing user", "", `{"product_id":1}`, http.StatusUnauthorized},
		{"malformed body", "7", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(domain.Product{ID: 1, Price: 1000, Stock: 5, IsActive: true})
			svc := newTestService(store)
			handler := NewHandler(svc, svc.logger)

			req := httptest.NewRequest(http.MethodPost, "/api/cart/items", strings.NewReader(tt.body))
			if tt.userHeader != "" {
				req.Header.Set("X-User-ID", tt.userHeader)
			}
			rec := httptest.NewRecorder()

			handler.HandleAdd(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_HandleRemove(t *testing.T) {
	store := newMemStore(domain.Product{ID: 1, Price: 1000, Stock: 5, IsActive: true})
	store.lines = []domain.CartLine{{ID: 4, UserID: 7, ProductID: 1, Quantity: 1}}
	svc := newTestService(store)
	handler := NewHandler(svc, svc.logger)

	t.Run("removes own line", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/cart/items/4", nil)
		req.Header.Set("X-User-ID", "7")
		req.SetPathValue("lineId", "4")
		rec := httptest.NewRecorder()

		handler.HandleRemove(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("returns 404 for unknown line", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/api/cart/items/4", nil)
		req.Header.Set("X-User-ID", "7")
		req.SetPathValue("lineId", "4")
		rec := httptest.NewRecorder()

		handler.HandleRemove(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleTotals(t *testing.T) {
	store := newMemStore(domain.Product{ID: 1, Price: 12500, Stock: 5, IsActive: true})
	store.lines = []domain.CartLine{{ID: 1, UserID: 7, ProductID: 1, Quantity: 2, PriceAtAddition: 12500}}
	svc := newTestService(store)
	handler := NewHandler(svc, svc.logger)

	req := httptest.NewRequest(http.MethodGet, "/api/cart/totals", nil)
	req.Header.Set("X-User-ID", "7")
	rec := httptest.NewRecorder()

	handler.HandleTotals(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"delivery_fee":0`) {
		t.Errorf("expected free delivery, got %s", rec.Body.String())
	}
}
