package exchange

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
}

func TestGetMarketPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/p2p/market/price", r.URL.Path)
		assert.Equal(t, "BTC", r.URL.Query().Get("currency"))
		assert.Equal(t, "SPOT", r.URL.Query().Get("walletType"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"price": 50123.5}`))
	})

	q, err := c.GetMarketPrice(context.Background(), "BTC", domain.WalletTypeSpot)
	require.NoError(t, err)
	assert.Equal(t, 50123.5, q.Price)
}

func TestGetWalletBalance(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/finance/wallet/SPOT/BTC", r.URL.Path)
		_, _ = w.Write([]byte(`{"balance": 2, "inOrder": 0.5}`))
	})

	b, err := c.GetWalletBalance(context.Background(), domain.WalletTypeSpot, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 1.5, b.Available())
}

func TestPaymentMethods(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/p2p/payment-method":
			_, _ = w.Write([]byte(`[
				{"id":"pm-1","name":"SEPA","processingTime":"1-2 days"},
				{"id":"pm-2","name":"My bank","userId":"u1","metadata":{"iban":"DE00"}}
			]`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/p2p/payment-method":
			var in APIPaymentMethod
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, "Cash", in.Name)
			in.ID = "pm-3"
			in.UserID = "u1"
			_ = json.NewEncoder(w).Encode(in)
		case r.Method == http.MethodPut && r.URL.Path == "/api/p2p/payment-method/pm-3":
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write(body)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/p2p/payment-method/pm-3":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	methods, err := c.ListPaymentMethods(ctx)
	require.NoError(t, err)
	require.Len(t, methods, 2)
	assert.False(t, methods[0].Custom)
	assert.True(t, methods[1].Custom)
	assert.Equal(t, "DE00", methods[1].Details["iban"])

	created, err := c.CreatePaymentMethod(ctx, domain.PaymentMethod{Name: "Cash"})
	require.NoError(t, err)
	assert.Equal(t, "pm-3", created.ID)
	assert.True(t, created.Custom)

	created.Instructions = "Meet in person"
	updated, err := c.UpdatePaymentMethod(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, "Meet in person", updated.Instructions)

	require.NoError(t, c.DeletePaymentMethod(ctx, "pm-3"))
}

func TestCreateOffer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/p2p/offer", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var p domain.OfferPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, domain.TradeTypeSell, p.Type)
		assert.JSONEq(t, `{"total":1,"min":10,"max":20}`, p.AmountConfig)
		_, _ = w.Write([]byte(`{"offer":{"id":"offer-77"}}`))
	})

	res, err := c.CreateOffer(context.Background(), domain.OfferPayload{
		Type:         domain.TradeTypeSell,
		Currency:     "BTC",
		WalletType:   domain.WalletTypeSpot,
		AmountConfig: `{"total":1,"min":10,"max":20}`,
	})
	require.NoError(t, err)
	assert.Equal(t, "offer-77", res.OfferID())
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
		{http.StatusTooManyRequests, domain.ErrRateLimited},
		{http.StatusBadRequest, domain.ErrInvalidInput},
		{http.StatusBadGateway, domain.ErrUpstream},
	}
	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"message":"nope"}`))
			})
			_, err := c.GetMarketPrice(context.Background(), "BTC", domain.WalletTypeSpot)
			require.ErrorIs(t, err, tc.want)
			assert.Contains(t, err.Error(), "nope")
		})
	}
}

func TestRateLimiterHonoursContext(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://127.0.0.1:0", RequestsPerSecond: 0.001})
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetMarketPrice(ctx, "BTC", domain.WalletTypeSpot)
	assert.Error(t, err)
}
