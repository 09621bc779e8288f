// Package marketprice polls the exchange price feed for one (currency,
// wallet type) key at a time and hands each result to a callback.
package marketprice

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// DefaultInterval is the poll period used when none is configured.
const DefaultInterval = 30 * time.Second

// ChannelPrefix prefixes the bus channel a key's prices are published on.
const ChannelPrefix = "p2p:price:"

// Snapshot is the last known state of a feed.
type Snapshot struct {
	Key       domain.PriceKey
	Price     float64
	Loading   bool
	UpdatedAt time.Time
	Err       error
}

// Update is called with every completed poll. h identifies the handle that
// produced it, so receivers can drop results from a handle they replaced.
type Update func(h *Handle, snap Snapshot)

// Source starts pollers against a price feed.
type Source struct {
	feed     domain.PriceFeed
	cache    domain.PriceCache
	bus      domain.SignalBus
	interval time.Duration
	logger   *slog.Logger
	nextGen  atomic.Uint64
}

// Option configures a Source.
type Option func(*Source)

// WithCache writes every successful price through to c.
func WithCache(c domain.PriceCache) Option {
	return func(s *Source) { s.cache = c }
}

// WithBus publishes every successful price on the key's channel.
func WithBus(b domain.SignalBus) Option {
	return func(s *Source) { s.bus = b }
}

// NewSource creates a Source polling feed every interval. A non-positive
// interval selects DefaultInterval.
func NewSource(feed domain.PriceFeed, interval time.Duration, logger *slog.Logger, opts ...Option) *Source {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Source{
		feed:     feed,
		interval: interval,
		logger:   logger.With(slog.String("component", "market_price")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Handle is a running poller. Stop it exactly when its key is no longer
// wanted; a stopped handle never delivers another update.
type Handle struct {
	src      *Source
	key      domain.PriceKey
	gen      uint64
	onUpdate Update
	cancel   context.CancelFunc
	done     chan struct{}
	stopped  atomic.Bool

	mu   sync.Mutex
	snap Snapshot
}

// Start fetches the price for key immediately and then on every tick until
// the handle is stopped or ctx is cancelled.
func (s *Source) Start(ctx context.Context, key domain.PriceKey, onUpdate Update) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		src:      s,
		key:      key,
		gen:      s.nextGen.Add(1),
		onUpdate: onUpdate,
		cancel:   cancel,
		done:     make(chan struct{}),
		snap:     Snapshot{Key: key, Loading: true},
	}
	go h.run(ctx)
	s.logger.Debug("price polling started", slog.String("key", key.String()), slog.Uint64("gen", h.gen))
	return h
}

// Key returns the key the handle polls.
func (h *Handle) Key() domain.PriceKey { return h.key }

// Generation is unique per Start call and increases monotonically.
func (h *Handle) Generation() uint64 { return h.gen }

// Snapshot returns the latest state.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snap
}

// Stop cancels the poller. It does not wait for an in-flight fetch; that
// fetch's result is discarded. Stop is safe to call more than once.
func (h *Handle) Stop() {
	if h.stopped.CompareAndSwap(false, true) {
		h.cancel()
		h.src.logger.Debug("price polling stopped", slog.String("key", h.key.String()), slog.Uint64("gen", h.gen))
	}
}

// Done is closed once the polling goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

func (h *Handle) run(ctx context.Context) {
	defer close(h.done)

	h.poll(ctx)

	ticker := time.NewTicker(h.src.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.poll(ctx)
		}
	}
}

func (h *Handle) poll(ctx context.Context) {
	h.mu.Lock()
	h.snap.Loading = true
	h.mu.Unlock()

	quote, err := h.src.feed.GetMarketPrice(ctx, h.key.Currency, h.key.WalletType)
	if ctx.Err() != nil || h.stopped.Load() {
		return
	}

	now := time.Now().UTC()
	h.mu.Lock()
	h.snap.Loading = false
	if err != nil {
		h.snap.Err = err
	} else {
		h.snap.Price = quote.Price
		h.snap.UpdatedAt = now
		h.snap.Err = nil
	}
	snap := h.snap
	h.mu.Unlock()

	if err != nil {
		h.src.logger.Warn("market price fetch failed",
			slog.String("key", h.key.String()),
			slog.String("error", err.Error()),
		)
	} else {
		h.src.record(ctx, h.key, quote.Price, now)
	}

	if h.onUpdate != nil && !h.stopped.Load() {
		h.onUpdate(h, snap)
	}
}

type priceEvent struct {
	Currency   string            `json:"currency"`
	WalletType domain.WalletType `json:"walletType"`
	Price      float64           `json:"price"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

func (s *Source) record(ctx context.Context, key domain.PriceKey, price float64, ts time.Time) {
	if s.cache != nil {
		if err := s.cache.SetPrice(ctx, key, price, ts); err != nil {
			s.logger.Warn("price cache write failed", slog.String("key", key.String()), slog.String("error", err.Error()))
		}
	}
	if s.bus != nil {
		payload, err := json.Marshal(priceEvent{Currency: key.Currency, WalletType: key.WalletType, Price: price, UpdatedAt: ts})
		if err != nil {
			return
		}
		if err := s.bus.Publish(ctx, ChannelPrefix+key.String(), payload); err != nil {
			s.logger.Warn("price publish failed", slog.String("key", key.String()), slog.String("error", err.Error()))
		}
	}
}
