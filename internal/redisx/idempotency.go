package redisx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyCheckout    = "idem:checkout:%d:%s"
	TTLIdempotency  = 24 * time.Hour
)

// Idempotency remembers which order a client-supplied checkout key produced.
type Idempotency struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: TTLIdempotency}
}

func CheckoutKey(userID int64, key string) string {
	return fmt.Sprintf(keyCheckout, userID, key)
}

// Lookup returns the order id stored for the key, or "" when there is none.
func (i *Idempotency) Lookup(ctx context.Context, userID int64, key string) (string, error) {
	id, err := i.rdb.Get(ctx, CheckoutKey(userID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

// Remember keeps the first order id written for the key.
func (i *Idempotency) Remember(ctx context.Context, userID int64, key, orderID string) error {
	return i.rdb.SetNX(ctx, CheckoutKey(userID, key), orderID, i.ttl).Err()
}
