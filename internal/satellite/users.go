package satellite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/mattn/go-sqlite3"
)

const maxReferralAttempts = 10

const chatUserColumns = `
	telegram_id, username, first_name, last_name, canonical_id, referral_code,
	is_vip, total_orders, total_spent, created_at, last_activity`

type ChatUser struct {
	TelegramID   int64     `json:"telegram_id"`
	Username     string    `json:"username"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CanonicalID  *int64    `json:"canonical_id"`
	ReferralCode string    `json:"referral_code"`
	IsVIP        bool      `json:"is_vip"`
	TotalOrders  int       `json:"total_orders"`
	TotalSpent   int64     `json:"total_spent"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}

// ProfileUpdate carries the authoritative tier and stats for a chat user.
type ProfileUpdate struct {
	TelegramID  int64
	CanonicalID int64
	IsVIP       bool
	TotalOrders int
	TotalSpent  int64
}

type Target string

const (
	TargetAll Target = "all"
	TargetVIP Target = "vip"
)

func (t Target) Valid() bool {
	return t == TargetAll || t == TargetVIP
}

func randomReferral() int {
	return 100000 + rand.IntN(900000)
}

func scanChatUser(row rowScanner) (*ChatUser, error) {
	u := &ChatUser{}
	var canonical sql.NullInt64
	err := row.Scan(&u.TelegramID, &u.Username, &u.FirstName, &u.LastName, &canonical, &u.ReferralCode,
		&u.IsVIP, &u.TotalOrders, &u.TotalSpent, &u.CreatedAt, &u.LastActivity)
	if err != nil {
		return nil, err
	}
	if canonical.Valid {
		u.CanonicalID = &canonical.Int64
	}
	return u, nil
}

func (s *Store) GetChatUser(ctx context.Context, telegramID int64) (*ChatUser, error) {
	u, err := scanChatUser(s.db.QueryRowContext(ctx, `SELECT `+chatUserColumns+` FROM chat_users WHERE telegram_id = ?`, telegramID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// RegisterChatUser records a chat user seen for the first time, or refreshes
// the display attributes of a known one. New users get a unique referral code
// and no canonical id until reconciliation pushes them upstream.
func (s *Store) RegisterChatUser(ctx context.Context, telegramID int64, username, firstName, lastName string) (*ChatUser, error) {
	now := s.now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_users SET username = ?, first_name = ?, last_name = ?, last_activity = ?
		WHERE telegram_id = ?
	`, username, firstName, lastName, now, telegramID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n > 0 {
		return s.GetChatUser(ctx, telegramID)
	}

	for range maxReferralAttempts {
		code := fmt.Sprintf("VIP%06d", s.randInt())
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO chat_users (telegram_id, username, first_name, last_name, referral_code, created_at, last_activity)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, telegramID, username, firstName, lastName, code, now, now)
		if err == nil {
			return s.GetChatUser(ctx, telegramID)
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		if existing, gerr := s.GetChatUser(ctx, telegramID); gerr == nil && existing != nil {
			return existing, nil
		}
	}

	return nil, fmt.Errorf("no unique referral code after %d attempts", maxReferralAttempts)
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// PendingIdentities lists chat users that have no canonical id yet.
func (s *Store) PendingIdentities(ctx context.Context, limit int) ([]ChatUser, error) {
	return s.queryChatUsers(ctx, `
		SELECT `+chatUserColumns+`
		FROM chat_users
		WHERE canonical_id IS NULL
		ORDER BY telegram_id
		LIMIT ?
	`, limit)
}

func (s *Store) SetCanonicalID(ctx context.Context, telegramID, canonicalID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE chat_users SET canonical_id = ? WHERE telegram_id = ?
	`, canonicalID, telegramID)
	return err
}

// ApplyProfile overwrites tier and stats with the authoritative values and
// fills a missing canonical id. It reports whether the chat user exists.
func (s *Store) ApplyProfile(ctx context.Context, u ProfileUpdate) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE chat_users
		SET is_vip = ?, total_orders = ?, total_spent = ?, canonical_id = COALESCE(canonical_id, ?)
		WHERE telegram_id = ?
	`, u.IsVIP, u.TotalOrders, u.TotalSpent, u.CanonicalID, u.TelegramID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Recipients returns the chat ids a broadcast to target reaches.
func (s *Store) Recipients(ctx context.Context, target Target) ([]int64, error) {
	query := `SELECT telegram_id FROM chat_users ORDER BY telegram_id`
	if target == TargetVIP {
		query = `SELECT telegram_id FROM chat_users WHERE is_vip = 1 ORDER BY telegram_id`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) queryChatUsers(ctx context.Context, query string, args ...any) ([]ChatUser, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	users := []ChatUser{}
	for rows.Next() {
		u, err := scanChatUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return users, nil
}
