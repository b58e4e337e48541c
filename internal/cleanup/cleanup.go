package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Retention windows for chat-side activity data.
const (
	ChatStateRetention = 24 * time.Hour
	ViewRetention      = 90 * 24 * time.Hour
	ActionRetention    = 180 * 24 * time.Hour
)

type Store interface {
	DeleteChatStatesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteViewsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteActionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type Result struct {
	ChatStates int64 `json:"chat_states"`
	Views      int64 `json:"views"`
	Actions    int64 `json:"actions"`
}

type Service struct {
	store  Store
	now    func() time.Time
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

// RunOnce prunes expired activity data. Each table is pruned even when an
// earlier one fails.
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	var res Result
	var errs []error
	now := s.now()

	n, err := s.store.DeleteChatStatesBefore(ctx, now.Add(-ChatStateRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("delete chat states: %w", err))
	}
	res.ChatStates = n

	n, err = s.store.DeleteViewsBefore(ctx, now.Add(-ViewRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("delete view history: %w", err))
	}
	res.Views = n

	n, err = s.store.DeleteActionsBefore(ctx, now.Add(-ActionRetention))
	if err != nil {
		errs = append(errs, fmt.Errorf("delete user actions: %w", err))
	}
	res.Actions = n

	if res.ChatStates+res.Views+res.Actions > 0 {
		s.logger.Info("expired data removed",
			"chat_states", res.ChatStates,
			"views", res.Views,
			"actions", res.Actions,
		)
	}

	return res, errors.Join(errs...)
}

type Scheduler struct {
	svc      *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(svc *Service, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Scheduler{
		svc:      svc,
		interval: interval,
		logger:   logger,
	}
}

// Start prunes once right away and then every interval until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("cleanup loop started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runSafely(ctx)

		select {
		case <-ctx.Done():
			s.logger.Info("cleanup loop stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runSafely(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("cleanup panicked", "panic", fmt.Sprint(r))
		}
	}()

	if _, err := s.svc.RunOnce(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cleanup failed", "error", err)
	}
}
