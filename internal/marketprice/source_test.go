package marketprice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var btcSpot = domain.PriceKey{Currency: "BTC", WalletType: domain.WalletTypeSpot}

type fakeFeed struct {
	calls atomic.Int32
	price float64
	err   error
	gate  chan struct{}
}

func (f *fakeFeed) GetMarketPrice(ctx context.Context, currency string, wt domain.WalletType) (domain.MarketQuote, error) {
	n := f.calls.Add(1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return domain.MarketQuote{}, ctx.Err()
		}
	}
	if f.err != nil {
		return domain.MarketQuote{}, f.err
	}
	return domain.MarketQuote{Price: f.price + float64(n-1)}, nil
}

type fakeCache struct {
	mu     sync.Mutex
	prices map[domain.PriceKey]float64
}

func (c *fakeCache) SetPrice(_ context.Context, key domain.PriceKey, price float64, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.prices == nil {
		c.prices = make(map[domain.PriceKey]float64)
	}
	c.prices[key] = price
	return nil
}

func (c *fakeCache) GetPrice(_ context.Context, key domain.PriceKey) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[key]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, time.Now(), nil
}

type fakeBus struct {
	mu       sync.Mutex
	channels []string
}

func (b *fakeBus) Publish(_ context.Context, channel string, _ []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels = append(b.channels, channel)
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan domain.BusMessage, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBus) published() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.channels...)
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	ch    chan Snapshot
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan Snapshot, 64)}
}

func (r *recorder) update(_ *Handle, s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
	r.ch <- s
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func (r *recorder) next(t *testing.T) Snapshot {
	t.Helper()
	select {
	case s := <-r.ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no price update received")
		return Snapshot{}
	}
}

func TestStart_FetchesImmediatelyThenPolls(t *testing.T) {
	feed := &fakeFeed{price: 50000}
	src := NewSource(feed, 10*time.Millisecond, discardLogger())
	rec := newRecorder()

	h := src.Start(context.Background(), btcSpot, rec.update)
	defer h.Stop()

	first := rec.next(t)
	assert.Equal(t, 50000.0, first.Price)
	assert.False(t, first.Loading)
	assert.False(t, first.UpdatedAt.IsZero())
	assert.Equal(t, btcSpot, first.Key)

	second := rec.next(t)
	assert.Equal(t, 50001.0, second.Price)
	assert.Equal(t, btcSpot, h.Key())
}

func TestStop_NoFurtherUpdates(t *testing.T) {
	feed := &fakeFeed{price: 1}
	src := NewSource(feed, 5*time.Millisecond, discardLogger())
	rec := newRecorder()

	h := src.Start(context.Background(), btcSpot, rec.update)
	rec.next(t)
	h.Stop()
	h.Stop()

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not exit")
	}
	n := rec.count()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, rec.count())
}

func TestStop_DiscardsInFlightResult(t *testing.T) {
	feed := &fakeFeed{price: 1, gate: make(chan struct{})}
	src := NewSource(feed, time.Hour, discardLogger())
	rec := newRecorder()

	h := src.Start(context.Background(), btcSpot, rec.update)
	require.Eventually(t, func() bool { return feed.calls.Load() == 1 }, 2*time.Second, time.Millisecond)
	assert.True(t, h.Snapshot().Loading)

	h.Stop()
	close(feed.gate)
	<-h.Done()
	assert.Zero(t, rec.count())
}

func TestFetchError_KeepsLastPrice(t *testing.T) {
	feed := &fakeFeed{err: errors.New("unavailable")}
	src := NewSource(feed, time.Hour, discardLogger())
	rec := newRecorder()

	h := src.Start(context.Background(), btcSpot, rec.update)
	defer h.Stop()

	snap := rec.next(t)
	assert.Error(t, snap.Err)
	assert.Zero(t, snap.Price)
	assert.False(t, snap.Loading)
	assert.True(t, snap.UpdatedAt.IsZero())
}

func TestGenerationsAreUnique(t *testing.T) {
	src := NewSource(&fakeFeed{price: 1}, time.Hour, discardLogger())
	a := src.Start(context.Background(), btcSpot, nil)
	b := src.Start(context.Background(), btcSpot, nil)
	defer a.Stop()
	defer b.Stop()
	assert.Less(t, a.Generation(), b.Generation())
}

func TestWriteThroughCacheAndBus(t *testing.T) {
	cache := &fakeCache{}
	bus := &fakeBus{}
	src := NewSource(&fakeFeed{price: 42000}, time.Hour, discardLogger(), WithCache(cache), WithBus(bus))
	rec := newRecorder()

	h := src.Start(context.Background(), btcSpot, rec.update)
	defer h.Stop()
	rec.next(t)

	price, _, err := cache.GetPrice(context.Background(), btcSpot)
	require.NoError(t, err)
	assert.Equal(t, 42000.0, price)
	assert.Equal(t, []string{"p2p:price:BTC:SPOT"}, bus.published())
}

func TestDefaultInterval(t *testing.T) {
	src := NewSource(&fakeFeed{}, 0, discardLogger())
	assert.Equal(t, DefaultInterval, src.interval)
}
