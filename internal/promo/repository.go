package promo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

const promoColumns = `
	id, code, description, discount_percent, discount_amount, min_order_amount,
	usage_limit, used_count, valid_from, valid_until, is_active`

type Repository struct {
	db storage.DBTX
}

func NewRepository(db storage.DBTX) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *sql.Tx) *Repository {
	return &Repository{db: tx}
}

func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *Repository) GetByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	return r.get(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1`, code)
}

// LockByCode reads the promo and holds its row lock until the transaction ends.
func (r *Repository) LockByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	return r.get(ctx, `SELECT `+promoColumns+` FROM promo_codes WHERE code = $1 FOR UPDATE`, code)
}

func (r *Repository) get(ctx context.Context, query, code string) (*domain.PromoCode, error) {
	p := &domain.PromoCode{}
	var limit sql.NullInt32
	var from, until sql.NullTime

	err := r.db.QueryRowContext(ctx, query, Normalize(code)).Scan(
		&p.ID, &p.Code, &p.Description, &p.DiscountPercent, &p.DiscountAmount, &p.MinOrderAmount,
		&limit, &p.UsedCount, &from, &until, &p.IsActive,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	if limit.Valid {
		n := int(limit.Int32)
		p.UsageLimit = &n
	}
	if from.Valid {
		p.ValidFrom = &from.Time
	}
	if until.Valid {
		p.ValidUntil = &until.Time
	}
	return p, nil
}

// IncrementUsage applies one use of the promo. It reports false when the
// usage limit has already been reached.
func (r *Repository) IncrementUsage(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE promo_codes SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR used_count < usage_limit)
	`, id)
	if err != nil {
		return false, err
	}
	return storage.RowsChanged(res)
}
