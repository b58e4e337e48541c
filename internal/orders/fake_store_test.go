package orders

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joao-fontenele/storefront-core/internal/domain"
)

var errInjected = errors.New("injected storage failure")

type memState struct {
	products map[int64]domain.Product
	lines    []domain.CartLine
	promos   map[string]domain.PromoCode
	users    map[int64]domain.User
	orders   map[string]domain.Order
}

func (s memState) clone() memState {
	orders := make(map[string]domain.Order, len(s.orders))
	for id, o := range s.orders {
		o.Items = slices.Clone(o.Items)
		orders[id] = o
	}
	return memState{
		products: maps.Clone(s.products),
		lines:    slices.Clone(s.lines),
		promos:   maps.Clone(s.promos),
		users:    maps.Clone(s.users),
		orders:   orders,
	}
}

// memStore serialises transactions and discards a transaction's writes
// unless fn succeeds.
type memStore struct {
	mu        sync.Mutex
	state     memState
	failOn    string
	afterLock func(*memState)
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		products: map[int64]domain.Product{},
		promos:   map[string]domain.PromoCode{},
		users:    map[int64]domain.User{},
		orders:   map[string]domain.Order{},
	}}
}

func (s *memStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{state: &work, failOn: s.failOn, afterLock: s.afterLock}); err != nil {
		return err
	}
	s.state = work
	return nil
}

// checkUUID mirrors Postgres rejecting a malformed uuid literal.
func checkUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid input syntax for type uuid: %q", id)
	}
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*domain.Order, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (s *memStore) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Order
	for _, o := range s.state.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

type memTx struct {
	state     *memState
	failOn    string
	afterLock func(*memState)
}

func (t *memTx) fail(step string) error {
	if t.failOn == step {
		return errInjected
	}
	return nil
}

func (t *memTx) LockCart(_ context.Context, userID int64) ([]domain.CartItem, error) {
	if err := t.fail("lock_cart"); err != nil {
		return nil, err
	}
	var items []domain.CartItem
	for _, l := range t.state.lines {
		if l.UserID != userID {
			continue
		}
		p := t.state.products[l.ProductID]
		items = append(items, domain.CartItem{
			CartLine:  l,
			Name:      p.Name,
			Article:   p.Article,
			LivePrice: p.Price,
			Stock:     p.Stock,
			IsActive:  p.IsActive,
		})
	}
	if t.afterLock != nil {
		t.afterLock(t.state)
	}
	return items, nil
}

func (t *memTx) LockPromo(_ context.Context, code string) (*domain.PromoCode, error) {
	p, ok := t.state.promos[code]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (t *memTx) InsertOrder(_ context.Context, o *domain.Order) error {
	if err := t.fail("insert_order"); err != nil {
		return err
	}
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	t.state.orders[o.ID] = *o
	return nil
}

func (t *memTx) Reserve(_ context.Context, productID int64, qty int) (bool, error) {
	p := t.state.products[productID]
	if p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	p.Reserved += qty
	t.state.products[productID] = p
	return true, nil
}

func (t *memTx) ClearLines(_ context.Context, userID int64, lineIDs []int64) error {
	t.state.lines = slices.DeleteFunc(t.state.lines, func(l domain.CartLine) bool {
		return l.UserID == userID && slices.Contains(lineIDs, l.ID)
	})
	return nil
}

func (t *memTx) ApplyPromo(_ context.Context, promoID int64) (bool, error) {
	for code, p := range t.state.promos {
		if p.ID != promoID {
			continue
		}
		if p.UsageLimit != nil && p.UsedCount >= *p.UsageLimit {
			return false, nil
		}
		p.UsedCount++
		t.state.promos[code] = p
		return true, nil
	}
	return false, nil
}

func (t *memTx) AddPurchase(_ context.Context, userID, amount, vipThreshold int64) (domain.User, bool, error) {
	if err := t.fail("add_purchase"); err != nil {
		return domain.User{}, false, err
	}
	u, ok := t.state.users[userID]
	if !ok {
		return domain.User{}, false, domain.ErrUserNotFound
	}
	wasVIP := u.IsVIP
	u.TotalOrders++
	u.TotalSpent += amount
	u.IsVIP = u.IsVIP || u.TotalSpent >= vipThreshold
	t.state.users[userID] = u
	return u, wasVIP, nil
}

func (t *memTx) LockOrder(_ context.Context, id string) (*domain.Order, error) {
	if err := checkUUID(id); err != nil {
		return nil, err
	}
	o, ok := t.state.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (t *memTx) SetStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	o := t.state.orders[id]
	o.Status = status
	o.UpdatedAt = time.Now()
	t.state.orders[id] = o
	return &o, nil
}

func (t *memTx) Release(_ context.Context, productID int64, qty int) error {
	p := t.state.products[productID]
	n := min(qty, p.Reserved)
	p.Reserved -= n
	p.Stock += n
	t.state.products[productID] = p
	return nil
}

func (t *memTx) Settle(_ context.Context, productID int64, qty int) error {
	p := t.state.products[productID]
	p.Reserved -= min(qty, p.Reserved)
	t.state.products[productID] = p
	return nil
}
