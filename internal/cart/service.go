package cart

import (
	"context"
	"log/slog"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

type Store interface {
	Product(ctx context.Context, id int64) (*domain.Product, error)
	FindLine(ctx context.Context, userID, productID int64, size, color string) (*domain.CartLine, error)
	Item(ctx context.Context, userID, lineID int64) (*domain.CartItem, error)
	AddLine(ctx context.Context, line domain.CartLine) (domain.CartLine, error)
	UpdateQuantity(ctx context.Context, userID, lineID int64, qty int) error
	DeleteLine(ctx context.Context, userID, lineID int64) (bool, error)
	Items(ctx context.Context, userID int64) ([]domain.CartItem, error)
	DeleteLines(ctx context.Context, userID int64, lineIDs []int64) error
}

// View is the cart as the customer should see it after stale lines were evicted.
type View struct {
	Lines    []Line            `json:"lines"`
	Evicted  []domain.CartItem `json:"evicted"`
	Subtotal int64             `json:"subtotal"`
}

type Line struct {
	domain.CartItem
	LineTotal    int64 `json:"line_total"`
	PriceChanged bool  `json:"price_changed"`
}

type Summary struct {
	Subtotal           int64 `json:"subtotal"`
	DeliveryFee        int64 `json:"delivery_fee"`
	Total              int64 `json:"total"`
	ItemCount          int   `json:"item_count"`
	FreeDeliveryNeeded int64 `json:"free_delivery_needed"`
}

type Service struct {
	store  Store
	policy domain.PricingPolicy
	logger *slog.Logger
}

func NewService(store Store, policy domain.PricingPolicy, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		policy: policy,
		logger: logger,
	}
}

// DeliveryFee is the fee checkout will charge for subtotal.
func DeliveryFee(subtotal int64, policy domain.PricingPolicy) int64 {
	return policy.DeliveryFeeFor(subtotal)
}

// Add merges qty into the user's line for the same product, size and color.
// The price is captured on first add only.
func (s *Service) Add(ctx context.Context, userID, productID int64, qty int, size, color string) (domain.CartLine, error) {
	if qty < 1 {
		return domain.CartLine{}, domain.ErrInvalidQuantity
	}

	product, err := s.store.Product(ctx, productID)
	if err != nil {
		return domain.CartLine{}, err
	}
	if product == nil || !product.IsActive {
		return domain.CartLine{}, domain.ErrProductUnavailable
	}

	existing, err := s.store.FindLine(ctx, userID, productID, size, color)
	if err != nil {
		return domain.CartLine{}, err
	}
	want := qty
	if existing != nil {
		want += existing.Quantity
	}
	if !product.Sellable(want) {
		return domain.CartLine{}, domain.ErrProductUnavailable
	}

	line, err := s.store.AddLine(ctx, domain.CartLine{
		UserID:          userID,
		ProductID:       productID,
		Quantity:        qty,
		Size:            size,
		Color:           color,
		PriceAtAddition: product.Price,
	})
	if err != nil {
		return domain.CartLine{}, err
	}

	s.logger.Info("cart line added", "user_id", userID, "product_id", productID, "line_id", line.ID, "quantity", line.Quantity)
	return line, nil
}

// SetQuantity replaces a line's quantity. Zero or less removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, lineID int64, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, userID, lineID)
	}

	item, err := s.store.Item(ctx, userID, lineID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrLineNotFound
	}
	if !item.IsActive {
		return domain.ErrProductUnavailable
	}
	if qty > item.Stock {
		return domain.ErrInsufficientStock
	}

	if err := s.store.UpdateQuantity(ctx, userID, lineID, qty); err != nil {
		return err
	}

	s.logger.Info("cart line updated", "user_id", userID, "line_id", lineID, "quantity", qty)
	return nil
}

func (s *Service) Remove(ctx context.Context, userID, lineID int64) error {
	ok, err := s.store.DeleteLine(ctx, userID, lineID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrLineNotFound
	}

	s.logger.Info("cart line removed", "user_id", userID, "line_id", lineID)
	return nil
}

// List returns the cart priced at live prices. Lines whose product went
// inactive or no longer has enough stock are deleted and reported as evicted.
func (s *Service) List(ctx context.Context, userID int64) (View, error) {
	items, err := s.store.Items(ctx, userID)
	if err != nil {
		return View{}, err
	}

	view := View{Lines: []Line{}, Evicted: []domain.CartItem{}}
	var evictedIDs []int64
	for _, it := range items {
		if !it.Available() {
			view.Evicted = append(view.Evicted, it)
			evictedIDs = append(evictedIDs, it.ID)
			continue
		}
		view.Lines = append(view.Lines, Line{
			CartItem:     it,
			LineTotal:    it.LineTotal(),
			PriceChanged: it.PriceChanged(),
		})
		view.Subtotal += it.LineTotal()
	}

	if len(evictedIDs) > 0 {
		if err := s.store.DeleteLines(ctx, userID, evictedIDs); err != nil {
			return View{}, err
		}
		s.logger.Info("stale cart lines evicted", "user_id", userID, "count", len(evictedIDs))
	}

	return view, nil
}

func (s *Service) Totals(ctx context.Context, userID int64) (Summary, error) {
	view, err := s.List(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Subtotal: view.Subtotal, ItemCount: len(view.Lines)}
	if sum.ItemCount > 0 {
		sum.DeliveryFee = DeliveryFee(sum.Subtotal, s.policy)
	}
	sum.Total = sum.Subtotal + sum.DeliveryFee
	if sum.Subtotal < s.policy.FreeDeliveryThreshold {
		sum.FreeDeliveryNeeded = s.policy.FreeDeliveryThreshold - sum.Subtotal
	}
	return sum, nil
}
