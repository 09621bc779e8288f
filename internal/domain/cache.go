package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest market prices.
type PriceCache interface {
	SetPrice(ctx context.Context, key PriceKey, price float64, ts time.Time) error
	GetPrice(ctx context.Context, key PriceKey) (float64, time.Time, error)
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of wizard and price events.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan BusMessage, error)
}

// BusMessage is a payload received from a bus subscription together with the
// concrete channel it was published on.
type BusMessage struct {
	Channel string
	Payload []byte
}

// RateLimiter enforces a request budget per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
