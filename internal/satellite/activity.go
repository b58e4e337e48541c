package satellite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ChatState is where a chat user currently is in the bot's menu flow.
type ChatState struct {
	TelegramID int64     `json:"telegram_id"`
	State      string    `json:"state"`
	Payload    string    `json:"payload"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetChatState returns nil when the user has no live state.
func (s *Store) GetChatState(ctx context.Context, telegramID int64) (*ChatState, error) {
	st := &ChatState{}
	err := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, state, payload, updated_at FROM chat_states WHERE telegram_id = ?
	`, telegramID).Scan(&st.TelegramID, &st.State, &st.Payload, &st.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return st, nil
}

func (s *Store) SaveChatState(ctx context.Context, telegramID int64, state, payload string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chat_states (telegram_id, state, payload, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET
			state = excluded.state, payload = excluded.payload, updated_at = excluded.updated_at
	`, telegramID, state, payload, s.now().UTC())
	return err
}

func (s *Store) RecordView(ctx context.Context, telegramID, productID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO view_history (telegram_id, product_id, viewed_at) VALUES (?, ?, ?)
	`, telegramID, productID, s.now().UTC())
	return err
}

func (s *Store) LogAction(ctx context.Context, telegramID int64, action, details string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_actions (telegram_id, action, details, created_at) VALUES (?, ?, ?, ?)
	`, telegramID, action, details, s.now().UTC())
	return err
}

func (s *Store) DeleteChatStatesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, `DELETE FROM chat_states WHERE updated_at < ?`, cutoff)
}

func (s *Store) DeleteViewsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, `DELETE FROM view_history WHERE viewed_at < ?`, cutoff)
}

func (s *Store) DeleteActionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteBefore(ctx, `DELETE FROM user_actions WHERE created_at < ?`, cutoff)
}

func (s *Store) deleteBefore(ctx context.Context, query string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, query, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
