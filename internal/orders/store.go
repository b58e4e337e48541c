package orders

import (
	"context"
	"database/sql"

	"github.com/joao-fontenele/storefront-core/internal/cart"
	"github.com/joao-fontenele/storefront-core/internal/catalog"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/profile"
	"github.com/joao-fontenele/storefront-core/internal/promo"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

// Tx is everything a checkout or status change may touch. All calls made on
// one Tx commit or roll back together.
type Tx interface {
	profile.Tx

	LockCart(ctx context.Context, userID int64) ([]domain.CartItem, error)
	LockPromo(ctx context.Context, code string) (*domain.PromoCode, error)
	InsertOrder(ctx context.Context, o *domain.Order) error
	Reserve(ctx context.Context, productID int64, qty int) (bool, error)
	ClearLines(ctx context.Context, userID int64, lineIDs []int64) error
	ApplyPromo(ctx context.Context, promoID int64) (bool, error)

	LockOrder(ctx context.Context, id string) (*domain.Order, error)
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	Release(ctx context.Context, productID int64, qty int) error
	Settle(ctx context.Context, productID int64, qty int) error
}

type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
}

// PostgresStore runs every Tx over a single sql.Tx.
type PostgresStore struct {
	db     *sql.DB
	orders *OrderRepository
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, orders: NewOrderRepository(db)}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return storage.WithinTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&pgTx{
			orders:   s.orders.WithTx(tx),
			products: catalog.NewRepository(tx),
			cart:     cart.NewRepository(tx),
			promos:   promo.NewRepository(tx),
			users:    profile.NewRepository(tx),
		})
	})
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Order, error) {
	return s.orders.GetByID(ctx, id)
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

type pgTx struct {
	orders   *OrderRepository
	products *catalog.Repository
	cart     *cart.Repository
	promos   *promo.Repository
	users    *profile.Repository
}

func (t *pgTx) LockCart(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	return t.cart.LockItems(ctx, userID)
}

func (t *pgTx) LockPromo(ctx context.Context, code string) (*domain.PromoCode, error) {
	return t.promos.LockByCode(ctx, code)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *domain.Order) error {
	return t.orders.Insert(ctx, o)
}

func (t *pgTx) Reserve(ctx context.Context, productID int64, qty int) (bool, error) {
	return t.products.Reserve(ctx, productID, qty)
}

func (t *pgTx) ClearLines(ctx context.Context, userID int64, lineIDs []int64) error {
	return t.cart.DeleteLines(ctx, userID, lineIDs)
}

func (t *pgTx) ApplyPromo(ctx context.Context, promoID int64) (bool, error) {
	return t.promos.IncrementUsage(ctx, promoID)
}

func (t *pgTx) AddPurchase(ctx context.Context, userID, amount, vipThreshold int64) (domain.User, bool, error) {
	return t.users.AddPurchase(ctx, userID, amount, vipThreshold)
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (*domain.Order, error) {
	return t.orders.LockByID(ctx, id)
}

func (t *pgTx) SetStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	return t.orders.UpdateStatus(ctx, id, status)
}

func (t *pgTx) Release(ctx context.Context, productID int64, qty int) error {
	return t.products.Release(ctx, productID, qty)
}

func (t *pgTx) Settle(ctx context.Context, productID int64, qty int) error {
	return t.products.Settle(ctx, productID, qty)
}
