package satellite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

const productColumns = `
	id, article, name, description, price, old_price, discount, category, subcategory,
	brand, size, color, material, country, season, image_url, images, stock,
	is_new, is_hit, is_exclusive, is_limited, is_active, created_at, updated_at, last_synced`

// ProductEntry is a cached copy of an authoritative product.
type ProductEntry struct {
	domain.Product
	LastSynced time.Time `json:"last_synced"`
}

// UpsertProduct overwrites the cached product with the same id. The
// authoritative copy always wins.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product, syncedAt time.Time) error {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	imagesJSON, err := json.Marshal(images)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products_cache (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			article = excluded.article, name = excluded.name, description = excluded.description,
			price = excluded.price, old_price = excluded.old_price, discount = excluded.discount,
			category = excluded.category, subcategory = excluded.subcategory, brand = excluded.brand,
			size = excluded.size, color = excluded.color, material = excluded.material,
			country = excluded.country, season = excluded.season, image_url = excluded.image_url,
			images = excluded.images, stock = excluded.stock, is_new = excluded.is_new,
			is_hit = excluded.is_hit, is_exclusive = excluded.is_exclusive, is_limited = excluded.is_limited,
			is_active = excluded.is_active, created_at = excluded.created_at,
			updated_at = excluded.updated_at, last_synced = excluded.last_synced
	`, p.ID, p.Article, p.Name, p.Description, p.Price, p.OldPrice, p.Discount, p.Category, p.Subcategory,
		p.Brand, p.Size, p.Color, p.Material, p.Country, p.Season, p.ImageURL, string(imagesJSON), p.Stock,
		p.IsNew, p.IsHit, p.IsExclusive, p.IsLimited, p.IsActive,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(), syncedAt.UTC(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*ProductEntry, error) {
	e := &ProductEntry{}
	p := &e.Product
	var oldPrice sql.NullInt64
	var images string
	err := row.Scan(
		&p.ID, &p.Article, &p.Name, &p.Description, &p.Price, &oldPrice, &p.Discount,
		&p.Category, &p.Subcategory, &p.Brand, &p.Size, &p.Color, &p.Material, &p.Country,
		&p.Season, &p.ImageURL, &images, &p.Stock,
		&p.IsNew, &p.IsHit, &p.IsExclusive, &p.IsLimited, &p.IsActive,
		&p.CreatedAt, &p.UpdatedAt, &e.LastSynced,
	)
	if err != nil {
		return nil, err
	}
	if oldPrice.Valid {
		p.OldPrice = &oldPrice.Int64
	}
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*ProductEntry, error) {
	e, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products_cache WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

// ListProducts returns active cached products, optionally within a category.
func (s *Store) ListProducts(ctx context.Context, category string, offset, limit int) ([]ProductEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products_cache
		WHERE is_active = 1 AND (? = '' OR category = ?)
		ORDER BY id
		LIMIT ? OFFSET ?
	`, category, category, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := []ProductEntry{}
	for rows.Next() {
		e, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// MarkMissingInactive deactivates every active cached product whose id is not
// in seen. Callers pass the complete upstream active set.
func (s *Store) MarkMissingInactive(ctx context.Context, seen []int64) (int64, error) {
	if seen == nil {
		seen = []int64{}
	}
	ids, err := json.Marshal(seen)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products_cache SET is_active = 0
		WHERE is_active = 1 AND id NOT IN (SELECT value FROM json_each(?))
	`, string(ids))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
