package orders

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

const orderColumns = `
	id, order_number, user_id, items, subtotal, discount, delivery_fee, total,
	promo_code, status, delivery_address, customer_notes, created_at, updated_at`

type OrderRepository struct {
	db storage.DBTX
}

func NewOrderRepository(db storage.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *sql.Tx) *OrderRepository {
	return &OrderRepository{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	var items []byte
	var promo sql.NullString
	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &items, &o.Subtotal, &o.Discount, &o.DeliveryFee, &o.Total,
		&promo, &o.Status, &o.DeliveryAddress, &o.CustomerNotes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if promo.Valid {
		o.PromoCode = &promo.String
	}
	if o.Items, err = domain.DecodeSnapshot(items); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	items, err := domain.EncodeSnapshot(o.Items)
	if err != nil {
		return err
	}

	return r.db.QueryRowContext(ctx, `
		INSERT INTO orders (
			id, order_number, user_id, items, subtotal, discount, delivery_fee, total,
			promo_code, status, delivery_address, customer_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at
	`, o.ID, o.Number, o.UserID, items, o.Subtotal, o.Discount, o.DeliveryFee, o.Total,
		o.PromoCode, o.Status, o.DeliveryAddress, o.CustomerNotes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// LockByID reads the order and holds its row lock until the transaction ends.
func (r *OrderRepository) LockByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.get(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *OrderRepository) get(ctx context.Context, query, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `
		UPDATE orders SET status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+orderColumns,
		status, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return o, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	orders := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
