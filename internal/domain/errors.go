package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrProductUnavailable = errors.New("product unavailable")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrInvalidQuantity    = errors.New("invalid quantity")
	ErrLineNotFound       = errors.New("cart line not found")

	ErrEmptyCart        = errors.New("cart is empty")
	ErrItemsUnavailable = errors.New("items unavailable")
	ErrInvalidPromo     = errors.New("invalid promo code")
	ErrPromoNotFound    = errors.New("promo code not found")
	ErrPriceChanged     = errors.New("prices changed since items were added")
	ErrCommitFailed     = errors.New("commit failed")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidIdentity   = errors.New("external id and first name are required")
)

// ItemsUnavailableError names every cart line that failed validation.
type ItemsUnavailableError struct {
	Names []string
}

func (e *ItemsUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s", ErrItemsUnavailable, strings.Join(e.Names, ", "))
}

func (e *ItemsUnavailableError) Is(target error) bool {
	return target == ErrItemsUnavailable
}

type PriceChange struct {
	LineID   int64  `json:"line_id"`
	Name     string `json:"name"`
	Captured int64  `json:"captured"`
	Live     int64  `json:"live"`
}

type PriceChangedError struct {
	Changes []PriceChange
}

func (e *PriceChangedError) Error() string {
	return fmt.Sprintf("%s: %d line(s)", ErrPriceChanged, len(e.Changes))
}

func (e *PriceChangedError) Is(target error) bool {
	return target == ErrPriceChanged
}
