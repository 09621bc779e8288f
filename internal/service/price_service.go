package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/marketprice"
)

// PriceService answers one-off market price lookups. Recent prices written
// by the pollers are served from the cache; older or missing ones are
// fetched from the feed and written back.
type PriceService struct {
	feed       domain.PriceFeed
	priceCache domain.PriceCache
	bus        domain.SignalBus
	maxAge     time.Duration
	logger     *slog.Logger
}

// NewPriceService creates a PriceService. priceCache and bus may be nil.
func NewPriceService(
	feed domain.PriceFeed,
	priceCache domain.PriceCache,
	bus domain.SignalBus,
	maxAge time.Duration,
	logger *slog.Logger,
) *PriceService {
	if maxAge <= 0 {
		maxAge = marketprice.DefaultInterval
	}
	return &PriceService{
		feed:       feed,
		priceCache: priceCache,
		bus:        bus,
		maxAge:     maxAge,
		logger:     logger.With(slog.String("component", "price_service")),
	}
}

// Quote is a price together with the time it was observed.
type Quote struct {
	Currency   string            `json:"currency"`
	WalletType domain.WalletType `json:"walletType"`
	Price      float64           `json:"price"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Cached     bool              `json:"cached"`
}

// GetPrice returns the latest price for key.
func (s *PriceService) GetPrice(ctx context.Context, key domain.PriceKey) (Quote, error) {
	if !key.Valid() {
		return Quote{}, fmt.Errorf("price_service: get price: %w: currency and wallet type are required", domain.ErrInvalidInput)
	}
	q := Quote{Currency: key.Currency, WalletType: key.WalletType}

	if s.priceCache != nil {
		price, ts, err := s.priceCache.GetPrice(ctx, key)
		if err == nil && time.Since(ts) <= s.maxAge {
			q.Price, q.UpdatedAt, q.Cached = price, ts, true
			return q, nil
		}
	}

	quote, err := s.feed.GetMarketPrice(ctx, key.Currency, key.WalletType)
	if err != nil {
		return Quote{}, fmt.Errorf("price_service: get price for %s: %w", key, err)
	}
	q.Price, q.UpdatedAt = quote.Price, time.Now().UTC()

	if s.priceCache != nil {
		if err := s.priceCache.SetPrice(ctx, key, q.Price, q.UpdatedAt); err != nil {
			s.logger.WarnContext(ctx, "price_service: cache write failed",
				slog.String("key", key.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	if s.bus != nil {
		evt, _ := json.Marshal(q)
		if err := s.bus.Publish(ctx, marketprice.ChannelPrefix+key.String(), evt); err != nil {
			s.logger.WarnContext(ctx, "price_service: publish price failed",
				slog.String("key", key.String()),
				slog.String("error", err.Error()),
			)
		}
	}
	return q, nil
}
