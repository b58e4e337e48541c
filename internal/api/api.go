package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/joao-fontenele/storefront-core/internal/cart"
	"github.com/joao-fontenele/storefront-core/internal/catalog"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/httpx"
	"github.com/joao-fontenele/storefront-core/internal/orders"
	"github.com/joao-fontenele/storefront-core/internal/profile"
	"github.com/joao-fontenele/storefront-core/internal/promo"
	"github.com/joao-fontenele/storefront-core/internal/telemetry"
)

type Handlers struct {
	Catalog *catalog.Handler
	Cart    *cart.Handler
	Promo   *promo.Handler
	Orders  *orders.Handler
	Profile *profile.Handler
	Metrics http.Handler
}

// Deps carries the optional collaborators of the storefront. Nil fields
// disable the matching feature.
type Deps struct {
	Publisher   orders.Publisher
	Idempotency orders.Idempotency
	Metrics     http.Handler
}

// NewStorefront wires every storefront component over db.
func NewStorefront(db *sql.DB, policy domain.PricingPolicy, deps Deps, logger *slog.Logger) Handlers {
	catalogRepo := catalog.NewRepository(db)
	cartSvc := cart.NewService(cart.NewRepository(db), policy, logger)
	promoSvc := promo.NewService(promo.NewRepository(db))
	profileSvc := profile.NewService(profile.NewRepository(db), logger)
	workflow := orders.NewWorkflow(
		orders.NewPostgresStore(db),
		profile.NewAccumulator(policy.VIPThreshold, logger),
		policy,
		deps.Publisher,
		deps.Idempotency,
		logger,
	)

	return Handlers{
		Catalog: catalog.NewHandler(catalogRepo, logger),
		Cart:    cart.NewHandler(cartSvc, logger),
		Promo:   promo.NewHandler(promoSvc, logger),
		Orders:  orders.NewHandler(workflow, logger),
		Profile: profile.NewHandler(profileSvc, logger),
		Metrics: deps.Metrics,
	}
}

// NewRouter mounts the storefront HTTP surface. The caller identity comes
// from the X-User-ID header set by the session layer in front.
func NewRouter(h Handlers) *chi.Mux {
	r := httpx.NewRouter()
	r.Use(telemetry.WithHTTPRoute)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/products", h.Catalog.HandleList)
		r.Get("/products/{id}", h.Catalog.HandleGet)

		r.Get("/cart", h.Cart.HandleList)
		r.Get("/cart/totals", h.Cart.HandleTotals)
		r.Post("/cart/items", h.Cart.HandleAdd)
		r.Patch("/cart/items/{lineId}", h.Cart.HandleSetQuantity)
		r.Delete("/cart/items/{lineId}", h.Cart.HandleRemove)

		r.Post("/promo/check", h.Promo.HandleCheck)

		r.Post("/orders", h.Orders.HandleCheckout)
		r.Get("/orders", h.Orders.HandleList)
		r.Get("/orders/{id}", h.Orders.HandleGet)
		r.Patch("/orders/{id}/status", h.Orders.HandleUpdateStatus)

		r.Post("/user/telegram/create", h.Profile.HandleEnsureExternal)
		r.Get("/users", h.Profile.HandleListExternal)
	})

	return r
}
