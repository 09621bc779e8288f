package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGateway struct {
	mu          sync.Mutex
	prices      map[string]float64
	priceCalls  map[string]int
	balance     domain.WalletBalance
	balanceErr  error
	balanceHits int
	balanceGate chan struct{}
	methods     []domain.PaymentMethod
	listCalls   int
	createErr   error
	offers      []domain.OfferPayload
	deleted     []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		prices:     map[string]float64{"BTC": 50000, "ETH": 3000},
		priceCalls: make(map[string]int),
		methods: []domain.PaymentMethod{
			{ID: "pm-bank", Name: "Bank transfer"},
			{ID: "pm-mine", Name: "My wallet", Custom: true},
		},
	}
}

func (g *fakeGateway) GetMarketPrice(_ context.Context, currency string, _ domain.WalletType) (domain.MarketQuote, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.priceCalls[currency]++
	p, ok := g.prices[currency]
	if !ok {
		return domain.MarketQuote{}, domain.ErrNotFound
	}
	return domain.MarketQuote{Price: p}, nil
}

func (g *fakeGateway) GetWalletBalance(context.Context, domain.WalletType, string) (domain.WalletBalance, error) {
	g.mu.Lock()
	g.balanceHits++
	bal, err, gate := g.balance, g.balanceErr, g.balanceGate
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return bal, err
}

func (g *fakeGateway) ListPaymentMethods(context.Context) ([]domain.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls++
	return append([]domain.PaymentMethod(nil), g.methods...), nil
}

func (g *fakeGateway) CreatePaymentMethod(_ context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	pm.ID = "pm-new"
	g.methods = append(g.methods, pm)
	return pm, nil
}

func (g *fakeGateway) UpdatePaymentMethod(_ context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	return pm, nil
}

func (g *fakeGateway) DeletePaymentMethod(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, id)
	return nil
}

func (g *fakeGateway) CreateOffer(_ context.Context, payload domain.OfferPayload) (domain.OfferResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.offers = append(g.offers, payload)
	if g.createErr != nil {
		return domain.OfferResult{}, g.createErr
	}
	return domain.OfferResult{Offer: map[string]any{"id": "offer-1"}}, nil
}

func (g *fakeGateway) calls(currency string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.priceCalls[currency]
}

func (g *fakeGateway) stats() (balanceHits, listCalls, offers int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balanceHits, g.listCalls, len(g.offers)
}

type fakeAudit struct {
	mu     sync.Mutex
	events []string
}

func (a *fakeAudit) Log(_ context.Context, event string, _ map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, event)
	return nil
}

func (a *fakeAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *fakeAudit) ListBefore(context.Context, time.Time) ([]domain.AuditEntry, error) {
	return nil, nil
}

func (a *fakeAudit) logged() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.events...)
}

type fakeBus struct {
	mu       sync.Mutex
	messages []domain.BusMessage
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, domain.BusMessage{Channel: channel, Payload: payload})
	return nil
}

func (b *fakeBus) Subscribe(context.Context, string) (<-chan domain.BusMessage, error) {
	return nil, errors.New("not implemented")
}

func (b *fakeBus) channels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.messages))
	for _, m := range b.messages {
		out = append(out, m.Channel)
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

type fakeCache struct {
	mu     sync.Mutex
	prices map[domain.PriceKey]float64
	times  map[domain.PriceKey]time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		prices: make(map[domain.PriceKey]float64),
		times:  make(map[domain.PriceKey]time.Time),
	}
}

func (c *fakeCache) SetPrice(_ context.Context, key domain.PriceKey, price float64, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[key] = price
	c.times[key] = ts
	return nil
}

func (c *fakeCache) GetPrice(_ context.Context, key domain.PriceKey) (float64, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[key]
	if !ok {
		return 0, time.Time{}, domain.ErrNotFound
	}
	return p, c.times[key], nil
}

type fakeOffers struct {
	mu   sync.Mutex
	recs []domain.OfferRecord
}

func (o *fakeOffers) Save(_ context.Context, rec domain.OfferRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recs = append(o.recs, rec)
	return nil
}

func (o *fakeOffers) ListByUser(_ context.Context, userID string, _ domain.ListOpts) ([]domain.OfferRecord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []domain.OfferRecord
	for _, r := range o.recs {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}
