package cart

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-core/internal/catalog"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

const itemSelect = `
	SELECT c.id, c.user_id, c.product_id, c.quantity, c.size, c.color, c.price_at_addition, c.added_at,
	       p.name, p.article, p.price, p.stock, p.is_active
	FROM cart_lines c
	JOIN products p ON p.id = c.product_id`

type Repository struct {
	db       storage.DBTX
	products *catalog.Repository
}

func NewRepository(db storage.DBTX) *Repository {
	return &Repository{db: db, products: catalog.NewRepository(db)}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx, products: r.products.WithTx(tx)}
}

func (r *Repository) Product(ctx context.Context, id int64) (*domain.Product, error) {
	return r.products.Get(ctx, id)
}

func (r *Repository) FindLine(ctx context.Context, userID, productID int64, size, color string) (*domain.CartLine, error) {
	l := &domain.CartLine{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, product_id, quantity, size, color, price_at_addition, added_at
		FROM cart_lines
		WHERE user_id = $1 AND product_id = $2 AND size = $3 AND color = $4
	`, userID, productID, size, color).Scan(
		&l.ID, &l.UserID, &l.ProductID, &l.Quantity, &l.Size, &l.Color, &l.PriceAtAddition, &l.AddedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// AddLine inserts the line or adds to the quantity of the matching one,
// keeping the price captured on first add.
func (r *Repository) AddLine(ctx context.Context, line domain.CartLine) (domain.CartLine, error) {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, size, color, price_at_addition)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT ON CONSTRAINT cart_lines_key
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity
		RETURNING id, quantity, price_at_addition, added_at
	`, line.UserID, line.ProductID, line.Quantity, line.Size, line.Color, line.PriceAtAddition).Scan(
		&line.ID, &line.Quantity, &line.PriceAtAddition, &line.AddedAt,
	)
	return line, err
}

func (r *Repository) Item(ctx context.Context, userID, lineID int64) (*domain.CartItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, itemSelect+` WHERE c.user_id = $1 AND c.id = $2`, userID, lineID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return it, nil
}

func (r *Repository) UpdateQuantity(ctx context.Context, userID, lineID int64, qty int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE cart_lines SET quantity = $3 WHERE user_id = $1 AND id = $2
	`, userID, lineID, qty)
	return err
}

func (r *Repository) DeleteLine(ctx context.Context, userID, lineID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = $1 AND id = $2`, userID, lineID)
	if err != nil {
		return false, err
	}
	return storage.RowsChanged(res)
}

func (r *Repository) DeleteLines(ctx context.Context, userID int64, lineIDs []int64) error {
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = $1 AND id = ANY($2)
	`, userID, pq.Array(lineIDs))
	return err
}

func (r *Repository) Items(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	return r.queryItems(ctx, itemSelect+` WHERE c.user_id = $1 ORDER BY c.added_at, c.id`, userID)
}

// LockItems reads the cart and locks its lines and every referenced product
// row. Products are locked in id order so concurrent checkouts cannot
// deadlock, and a concurrent merge into a locked line waits for the commit.
func (r *Repository) LockItems(ctx context.Context, userID int64) ([]domain.CartItem, error) {
	return r.queryItems(ctx, itemSelect+` WHERE c.user_id = $1 ORDER BY p.id, c.id FOR UPDATE OF c, p`, userID)
}

func (r *Repository) queryItems(ctx context.Context, query string, args ...any) ([]domain.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := []domain.CartItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*domain.CartItem, error) {
	it := &domain.CartItem{}
	err := row.Scan(
		&it.ID, &it.UserID, &it.ProductID, &it.Quantity, &it.Size, &it.Color, &it.PriceAtAddition, &it.AddedAt,
		&it.Name, &it.Article, &it.LivePrice, &it.Stock, &it.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return it, nil
}
