package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func TestPaymentMethodService(t *testing.T) {
	gw := newFakeGateway()
	audit := &fakeAudit{}
	svc := NewPaymentMethodService(gw, audit, discardLogger())
	ctx := context.Background()

	methods, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, methods, 2)

	_, err = svc.Create(ctx, domain.PaymentMethod{Name: "   "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	created, err := svc.Create(ctx, domain.PaymentMethod{ID: "ignored", Name: " Cash "})
	require.NoError(t, err)
	assert.Equal(t, "pm-new", created.ID)
	assert.Equal(t, "Cash", created.Name)
	assert.True(t, created.Custom)

	_, err = svc.Update(ctx, domain.PaymentMethod{ID: "pm-bank", Name: "Hijack"})
	assert.ErrorIs(t, err, domain.ErrNotCustom)
	_, err = svc.Update(ctx, domain.PaymentMethod{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	updated, err := svc.Update(ctx, domain.PaymentMethod{ID: "pm-mine", Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)

	assert.ErrorIs(t, svc.Delete(ctx, "pm-bank"), domain.ErrNotCustom)
	require.NoError(t, svc.Delete(ctx, "pm-mine"))
	assert.Equal(t, []string{"pm-mine"}, gw.deleted)

	assert.Equal(t, []string{
		"payment_method.created",
		"payment_method.updated",
		"payment_method.deleted",
	}, audit.logged())
}

func TestPriceService(t *testing.T) {
	gw := newFakeGateway()
	cache := newFakeCache()
	bus := &fakeBus{}
	svc := NewPriceService(gw, cache, bus, time.Minute, discardLogger())
	ctx := context.Background()
	key := domain.PriceKey{Currency: "BTC", WalletType: domain.WalletTypeSpot}

	_, err := svc.GetPrice(ctx, domain.PriceKey{Currency: "BTC"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	q, err := svc.GetPrice(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 50000.0, q.Price)
	assert.False(t, q.Cached)
	assert.Equal(t, []string{"p2p:price:BTC:SPOT"}, bus.channels())

	q, err = svc.GetPrice(ctx, key)
	require.NoError(t, err)
	assert.True(t, q.Cached)
	assert.Equal(t, 1, gw.calls("BTC"))

	require.NoError(t, cache.SetPrice(ctx, key, 1, time.Now().Add(-time.Hour)))
	q, err = svc.GetPrice(ctx, key)
	require.NoError(t, err)
	assert.False(t, q.Cached)
	assert.Equal(t, 50000.0, q.Price)

	_, err = svc.GetPrice(ctx, domain.PriceKey{Currency: "DOGE", WalletType: domain.WalletTypeSpot})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
