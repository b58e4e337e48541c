package profile

import (
	"context"
	"database/sql"
	"errors"

	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/storage"
)

const (
	userColumns = `id, external_id, username, first_name, last_name, total_orders, total_spent, is_vip, referral_code, created_at`

	referralConstraint   = "users_referral_code_key"
	externalIDConstraint = "users_external_id_key"
)

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

func scanUser(row rowScanner) (*domain.User, error) {
	u := &domain.User{}
	var ext sql.NullInt64
	err := row.Scan(&u.ID, &ext, &u.Username, &u.FirstName, &u.LastName,
		&u.TotalOrders, &u.TotalSpent, &u.IsVIP, &u.ReferralCode, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if ext.Valid {
		u.ExternalID = &ext.Int64
	}
	return u, nil
}

func (r *Repository) Insert(ctx context.Context, nu NewUser, referralCode string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		INSERT INTO users (external_id, username, first_name, last_name, referral_code)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		nu.ExternalID, nu.Username, nu.FirstName, nu.LastName, referralCode,
	))
}

func (r *Repository) GetByExternalID(ctx context.Context, externalID int64) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// UpdateDisplay refreshes the display attributes and the activity timestamp.
func (r *Repository) UpdateDisplay(ctx context.Context, id int64, nu NewUser) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `
		UPDATE users SET username = $2, first_name = $3, last_name = $4, last_activity = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		id, nu.Username, nu.FirstName, nu.LastName,
	))
}

// AddPurchase adds one order of amount to the user's totals. wasVIP is the
// flag as it stood before this purchase.
func (r *Repository) AddPurchase(ctx context.Context, userID, amount, vipThreshold int64) (user domain.User, wasVIP bool, err error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET total_orders = total_orders + 1,
		    total_spent = total_spent + $2,
		    is_vip = is_vip OR total_spent + $2 >= $3,
		    last_activity = NOW()
		FROM (SELECT id AS prev_id, is_vip AS was_vip FROM users WHERE id = $1 FOR UPDATE) prev
		WHERE id = prev.prev_id
		RETURNING `+userColumns+`, prev.was_vip`,
		userID, amount, vipThreshold,
	)
	u, err := scanUser(trailingScan{row: row, extra: []any{&wasVIP}})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, false, domain.ErrUserNotFound
		}
		return domain.User{}, false, err
	}
	return *u, wasVIP, nil
}

// trailingScan scans columns that follow the user columns into extra.
type trailingScan struct {
	row   rowScanner
	extra []any
}

func (s trailingScan) Scan(dest ...any) error {
	return s.row.Scan(append(dest, s.extra...)...)
}

func (r *Repository) ListExternal(ctx context.Context, offset, limit int) ([]domain.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE external_id IS NOT NULL`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE external_id IS NOT NULL
		ORDER BY id
		OFFSET $1 LIMIT $2
	`, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = rows.Close() }()

	users := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return users, total, nil
}
