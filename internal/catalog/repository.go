package catalog

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

const productColumns = `
	id, article, name, description, price, old_price, discount, category, subcategory,
	brand, size, color, material, country, season, image_url, images, stock, reserved,
	is_new, is_hit, is_exclusive, is_limited, is_active, created_at, updated_at`

// Filter selects a page of active products. AfterID pages by key: only ids
// above it are returned, so rows leaving the set between pages never shift
// later rows out of view.
type Filter struct {
	Category string
	AfterID  int64
	Offset   int
	Limit    int
}

type Repository struct {
	db storage.DBTX
}

func NewRepository(db storage.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	var oldPrice sql.NullInt64
	err := row.Scan(
		&p.ID, &p.Article, &p.Name, &p.Description, &p.Price, &oldPrice, &p.Discount,
		&p.Category, &p.Subcategory, &p.Brand, &p.Size, &p.Color, &p.Material, &p.Country,
		&p.Season, &p.ImageURL, pq.Array(&p.Images), &p.Stock, &p.Reserved,
		&p.IsNew, &p.IsHit, &p.IsExclusive, &p.IsLimited, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if oldPrice.Valid {
		p.OldPrice = &oldPrice.Int64
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	return p, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*domain.Product, error) {
	p, err := scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

func (r *Repository) ListActive(ctx context.Context, f Filter) ([]domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active AND ($1 = '' OR category = $1) AND id > $4
		ORDER BY id
		OFFSET $2 LIMIT $3
	`, f.Category, f.Offset, f.Limit, f.AfterID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) CountActive(ctx context.Context, category string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM products WHERE is_active AND ($1 = '' OR category = $1)
	`, category).Scan(&n)
	return n, err
}

// Upsert inserts or overwrites a product by article. Stock and reserved are
// only set on insert; existing counters are left to the checkout path.
func (r *Repository) Upsert(ctx context.Context, p *domain.Product) error {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return r.db.QueryRowContext(ctx, `
		INSERT INTO products (
			article, name, description, price, old_price, discount, category, subcategory,
			brand, size, color, material, country, season, image_url, images, stock,
			is_new, is_hit, is_exclusive, is_limited, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (article) DO UPDATE SET
			name = EXCLUDED.name, description = EXCLUDED.description, price = EXCLUDED.price,
			old_price = EXCLUDED.old_price, discount = EXCLUDED.discount, category = EXCLUDED.category,
			subcategory = EXCLUDED.subcategory, brand = EXCLUDED.brand, size = EXCLUDED.size,
			color = EXCLUDED.color, material = EXCLUDED.material, country = EXCLUDED.country,
			season = EXCLUDED.season, image_url = EXCLUDED.image_url, images = EXCLUDED.images,
			is_new = EXCLUDED.is_new, is_hit = EXCLUDED.is_hit, is_exclusive = EXCLUDED.is_exclusive,
			is_limited = EXCLUDED.is_limited, is_active = EXCLUDED.is_active, updated_at = NOW()
		RETURNING id, stock, reserved, created_at, updated_at
	`, p.Article, p.Name, p.Description, p.Price, p.OldPrice, p.Discount, p.Category, p.Subcategory,
		p.Brand, p.Size, p.Color, p.Material, p.Country, p.Season, p.ImageURL, pq.Array(images), p.Stock,
		p.IsNew, p.IsHit, p.IsExclusive, p.IsLimited, p.IsActive,
	).Scan(&p.ID, &p.Stock, &p.Reserved, &p.CreatedAt, &p.UpdatedAt)
}

// Reserve moves qty units from stock to reserved. It reports false, changing
// nothing, when fewer than qty units are in stock.
func (r *Repository) Reserve(ctx context.Context, id int64, qty int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $2, reserved = reserved + $2, updated_at = NOW()
		WHERE id = $1 AND stock >= $2
	`, id, qty)
	if err != nil {
		return false, err
	}
	return storage.RowsChanged(res)
}

// Release returns reserved units to stock when an order is cancelled.
func (r *Repository) Release(ctx context.Context, id int64, qty int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + LEAST(reserved, $2), reserved = reserved - LEAST(reserved, $2), updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	return err
}

// Settle drops reserved units once an order is delivered.
func (r *Repository) Settle(ctx context.Context, id int64, qty int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE products
		SET reserved = reserved - LEAST(reserved, $2), updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	return err
}
