package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/joao-fontenele/storefront-core/internal/cart"
	"github.com/joao-fontenele/storefront-core/internal/domain"
	"github.com/joao-fontenele/storefront-core/internal/profile"
	"github.com/joao-fontenele/storefront-core/internal/promo"
)

var tracer = otel.Tracer("orders")

type State string

const (
	StatePending   State = "pending"
	StateValidated State = "validated"
	StateCommitted State = "committed"
	StateFailed    State = "failed"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

type Idempotency interface {
	Lookup(ctx context.Context, userID int64, key string) (string, error)
	Remember(ctx context.Context, userID int64, key, orderID string) error
}

type CheckoutRequest struct {
	UserID             int64
	PromoCode          string
	DeliveryAddress    string
	CustomerNotes      string
	AcceptPriceChanges bool
	IdempotencyKey     string
}

type Receipt struct {
	Order    domain.Order `json:"order"`
	State    State        `json:"state"`
	Replayed bool         `json:"replayed"`
}

// Workflow turns a cart into an order. Validation and every mutation of a
// checkout happen inside one store transaction.
type Workflow struct {
	store       Store
	accumulator *profile.Accumulator
	policy      domain.PricingPolicy
	publisher   Publisher
	idem        Idempotency
	metrics     *checkoutMetrics
	logger      *slog.Logger
	now         func() time.Time
}

// NewWorkflow builds a Workflow. publisher and idem may be nil.
func NewWorkflow(store Store, accumulator *profile.Accumulator, policy domain.PricingPolicy, publisher Publisher, idem Idempotency, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:       store,
		accumulator: accumulator,
		policy:      policy,
		publisher:   publisher,
		idem:        idem,
		metrics:     newCheckoutMetrics(),
		logger:      logger,
		now:         time.Now,
	}
}

func (w *Workflow) Checkout(ctx context.Context, req CheckoutRequest) (*Receipt, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "orders.Checkout")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", req.UserID))

	if receipt := w.replay(ctx, req); receipt != nil {
		return receipt, nil
	}

	state := StatePending
	var order domain.Order
	err := w.store.WithinTx(ctx, func(tx Tx) error {
		items, err := tx.LockCart(ctx, req.UserID)
		if err != nil {
			return fmt.Errorf("lock cart: %w", err)
		}
		if err := w.validate(items, req.AcceptPriceChanges); err != nil {
			return err
		}
		state = StateValidated

		order, err = w.commit(ctx, tx, req, items)
		return err
	})
	if err != nil {
		err = classify(err)
		reason := failureReason(err)
		w.metrics.record(ctx, start, reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)

		level := slog.LevelInfo
		if reason == "commit_failed" {
			level = slog.LevelError
		}
		w.logger.Log(ctx, level, "checkout failed",
			"user_id", req.UserID, "state", StateFailed, "reached", state, "reason", reason, "error", err)
		return nil, err
	}

	w.metrics.record(ctx, start, "")
	w.logger.Info("checkout committed",
		"order_id", order.ID, "order_number", order.Number, "user_id", order.UserID,
		"total", order.Total, "state", StateCommitted)

	w.remember(ctx, req, order.ID)
	w.publish(ctx, domain.TopicOrderCommitted, order.ID, domain.OrderCommittedEvent{
		OrderID:   order.ID,
		Number:    order.Number,
		UserID:    order.UserID,
		Items:     order.Items,
		Total:     order.Total,
		Timestamp: order.CreatedAt,
	})

	return &Receipt{Order: order, State: StateCommitted}, nil
}

// validate rejects the whole cart when any line cannot be fulfilled. Lines of
// the same product are checked against its stock together.
func (w *Workflow) validate(items []domain.CartItem, acceptPriceChanges bool) error {
	if len(items) == 0 {
		return domain.ErrEmptyCart
	}

	wanted := make(map[int64]int, len(items))
	for _, it := range items {
		wanted[it.ProductID] += it.Quantity
	}

	var unavailable []string
	var changes []domain.PriceChange
	for _, it := range items {
		if !it.IsActive || it.Stock < wanted[it.ProductID] {
			unavailable = append(unavailable, it.Name)
			continue
		}
		if !acceptPriceChanges && !w.policy.WithinTolerance(it.PriceAtAddition, it.LivePrice) {
			changes = append(changes, domain.PriceChange{
				LineID:   it.ID,
				Name:     it.Name,
				Captured: it.PriceAtAddition,
				Live:     it.LivePrice,
			})
		}
	}

	if len(unavailable) > 0 {
		return &domain.ItemsUnavailableError{Names: unavailable}
	}
	if len(changes) > 0 {
		return &domain.PriceChangedError{Changes: changes}
	}
	return nil
}

func (w *Workflow) commit(ctx context.Context, tx Tx, req CheckoutRequest, items []domain.CartItem) (domain.Order, error) {
	lines := domain.SnapshotLines(items)

	var subtotal int64
	for _, l := range lines {
		subtotal += l.LineTotal
	}
	delivery := cart.DeliveryFee(subtotal, w.policy)

	var applied *domain.PromoCode
	var discount int64
	if req.PromoCode != "" {
		p, err := tx.LockPromo(ctx, promo.Normalize(req.PromoCode))
		if err != nil {
			return domain.Order{}, fmt.Errorf("lock promo: %w", err)
		}
		if p == nil || !promo.IsValid(*p, subtotal, w.now()) {
			return domain.Order{}, domain.ErrInvalidPromo
		}
		applied = p
		discount = promo.ComputeDiscount(*p, subtotal)
	}

	id := uuid.NewString()
	order := domain.Order{
		ID:              id,
		Number:          w.policy.OrderPrefix + "-" + id,
		UserID:          req.UserID,
		Items:           lines,
		Subtotal:        subtotal,
		Discount:        discount,
		DeliveryFee:     delivery,
		Total:           subtotal + delivery - discount,
		Status:          domain.OrderStatusNew,
		DeliveryAddress: req.DeliveryAddress,
		CustomerNotes:   req.CustomerNotes,
	}
	if applied != nil {
		order.PromoCode = &applied.Code
	}

	if err := tx.InsertOrder(ctx, &order); err != nil {
		return domain.Order{}, fmt.Errorf("insert order: %w", err)
	}

	for _, it := range items {
		ok, err := tx.Reserve(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return domain.Order{}, fmt.Errorf("reserve product %d: %w", it.ProductID, err)
		}
		if !ok {
			return domain.Order{}, &domain.ItemsUnavailableError{Names: []string{it.Name}}
		}
	}

	lineIDs := make([]int64, 0, len(items))
	for _, it := range items {
		lineIDs = append(lineIDs, it.ID)
	}
	// Only the ordered lines go; anything added after the snapshot stays.
	if err := tx.ClearLines(ctx, req.UserID, lineIDs); err != nil {
		return domain.Order{}, fmt.Errorf("clear cart: %w", err)
	}

	if applied != nil {
		ok, err := tx.ApplyPromo(ctx, applied.ID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("apply promo: %w", err)
		}
		if !ok {
			return domain.Order{}, domain.ErrInvalidPromo
		}
	}

	if _, err := w.accumulator.Record(ctx, tx, req.UserID, order.Total); err != nil {
		return domain.Order{}, err
	}

	return order, nil
}

// UpdateStatus moves an order along its lifecycle. Cancelling returns the
// reserved units to stock and delivering consumes them.
func (w *Workflow) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTransition, status)
	}

	var from domain.OrderStatus
	var updated *domain.Order
	err := w.store.WithinTx(ctx, func(tx Tx) error {
		current, err := tx.LockOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if current == nil {
			return domain.ErrOrderNotFound
		}
		from = current.Status
		if from == status {
			updated = current
			return nil
		}
		if from.Terminal() {
			return fmt.Errorf("%w: %s is final", domain.ErrInvalidTransition, from)
		}

		for _, l := range current.Items {
			switch status {
			case domain.OrderStatusCancelled:
				err = tx.Release(ctx, l.ProductID, l.Quantity)
			case domain.OrderStatusDelivered:
				err = tx.Settle(ctx, l.ProductID, l.Quantity)
			}
			if err != nil {
				return fmt.Errorf("settle reservation for product %d: %w", l.ProductID, err)
			}
		}

		updated, err = tx.SetStatus(ctx, id, status)
		if err != nil {
			return fmt.Errorf("set status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if from != status {
		w.logger.Info("order status updated", "order_id", id, "from", from, "to", status)
		w.publish(ctx, domain.TopicOrderStatusChanged, id, domain.OrderStatusChangedEvent{
			OrderID:   id,
			From:      from,
			To:        status,
			Items:     updated.Items,
			Timestamp: updated.UpdatedAt,
		})
	}
	return updated, nil
}

func (w *Workflow) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (w *Workflow) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	return w.store.ListByUser(ctx, userID)
}

func (w *Workflow) replay(ctx context.Context, req CheckoutRequest) *Receipt {
	if w.idem == nil || req.IdempotencyKey == "" {
		return nil
	}

	orderID, err := w.idem.Lookup(ctx, req.UserID, req.IdempotencyKey)
	if err != nil {
		w.logger.Warn("idempotency lookup failed", "error", err, "user_id", req.UserID)
		return nil
	}
	if orderID == "" {
		return nil
	}

	o, err := w.store.Get(ctx, orderID)
	if err != nil || o == nil || o.UserID != req.UserID {
		w.logger.Warn("idempotent order not readable", "error", err, "order_id", orderID)
		return nil
	}

	w.logger.Info("checkout replayed", "order_id", o.ID, "user_id", req.UserID)
	return &Receipt{Order: *o, State: StateCommitted, Replayed: true}
}

func (w *Workflow) remember(ctx context.Context, req CheckoutRequest, orderID string) {
	if w.idem == nil || req.IdempotencyKey == "" {
		return
	}
	if err := w.idem.Remember(ctx, req.UserID, req.IdempotencyKey, orderID); err != nil {
		w.logger.Warn("failed to store idempotency key", "error", err, "order_id", orderID)
	}
}

func (w *Workflow) publish(ctx context.Context, topic, key string, event any) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, topic, key, event); err != nil {
		w.logger.Error("failed to publish event", "error", err, "topic", topic, "order_id", key)
	}
}

var businessErrors = []error{
	domain.ErrEmptyCart,
	domain.ErrItemsUnavailable,
	domain.ErrInvalidPromo,
	domain.ErrPriceChanged,
	domain.ErrOrderNotFound,
	domain.ErrInvalidTransition,
	domain.ErrCommitFailed,
}

// classify marks everything that is not a business rejection as a commit
// failure. The transaction has already been rolled back.
func classify(err error) error {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrCommitFailed, err)
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrItemsUnavailable):
		return "items_unavailable"
	case errors.Is(err, domain.ErrInvalidPromo):
		return "invalid_promo"
	case errors.Is(err, domain.ErrPriceChanged):
		return "price_changed"
	default:
		return "commit_failed"
	}
}
