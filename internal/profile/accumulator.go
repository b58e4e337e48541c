package profile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

// Tx is the slice of a checkout transaction the accumulator writes through.
type Tx interface {
	AddPurchase(ctx context.Context, userID, amount, vipThreshold int64) (user domain.User, wasVIP bool, err error)
}

// Accumulator keeps per-user purchase totals. VIP status is one-way: once the
// lifetime spend reaches the threshold it is never cleared.
type Accumulator struct {
	vipThreshold int64
	logger       *slog.Logger
}

func NewAccumulator(vipThreshold int64, logger *slog.Logger) *Accumulator {
	return &Accumulator{
		vipThreshold: vipThreshold,
		logger:       logger,
	}
}

func (a *Accumulator) Record(ctx context.Context, tx Tx, userID, amount int64) (domain.User, error) {
	if amount < 0 {
		return domain.User{}, fmt.Errorf("negative purchase amount %d", amount)
	}

	user, wasVIP, err := tx.AddPurchase(ctx, userID, amount, a.vipThreshold)
	if err != nil {
		return domain.User{}, fmt.Errorf("record purchase: %w", err)
	}

	if user.IsVIP && !wasVIP {
		a.logger.Info("user reached vip", "user_id", userID, "total_spent", user.TotalSpent)
	}
	return user, nil
}
