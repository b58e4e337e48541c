package promo

import (
	"context"
	"time"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

type Finder interface {
	GetByCode(ctx context.Context, code string) (*domain.PromoCode, error)
}

type Quote struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Discount    int64  `json:"discount"`
	Total       int64  `json:"total"`
}

// Service previews promo codes. It never records usage.
type Service struct {
	repo Finder
	now  func() time.Time
}

func NewService(repo Finder) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Check(ctx context.Context, code string, amount int64) (Quote, error) {
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Quote{}, err
	}
	if p == nil {
		return Quote{}, domain.ErrPromoNotFound
	}
	if !IsValid(*p, amount, s.now()) {
		return Quote{}, domain.ErrInvalidPromo
	}

	discount := ComputeDiscount(*p, amount)
	return Quote{
		Code:        p.Code,
		Description: p.Description,
		Amount:      amount,
		Discount:    discount,
		Total:       amount - discount,
	}, nil
}
