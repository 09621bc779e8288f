package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/service"
	"github.com/alanyoungcy/p2poffer/internal/wizard"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeWizards struct {
	user  domain.UserSnapshot
	patch wizard.Patch
	step  int
	view  wizard.View
	err   error
	calls []string
}

func (f *fakeWizards) result(op string) (wizard.View, error) {
	f.calls = append(f.calls, op)
	return f.view, f.err
}

func (f *fakeWizards) Create(_ context.Context, u domain.UserSnapshot) (wizard.View, error) {
	f.user = u
	return f.result("create")
}
func (f *fakeWizards) Get(context.Context, string) (wizard.View, error) { return f.result("get") }
func (f *fakeWizards) Apply(_ context.Context, _ string, p wizard.Patch) (wizard.View, error) {
	f.patch = p
	return f.result("apply")
}
func (f *fakeWizards) Next(context.Context, string) (wizard.View, error) { return f.result("next") }
func (f *fakeWizards) Prev(context.Context, string) (wizard.View, error) { return f.result("prev") }
func (f *fakeWizards) GoTo(_ context.Context, _ string, n int) (wizard.View, error) {
	f.step = n
	return f.result("goto")
}
func (f *fakeWizards) AutoAdjust(context.Context, string) (wizard.View, error) {
	return f.result("auto-adjust")
}
func (f *fakeWizards) Submit(context.Context, string) (wizard.View, error) { return f.result("submit") }
func (f *fakeWizards) Cancel(context.Context, string) error {
	f.calls = append(f.calls, "cancel")
	return f.err
}

func request(method, target, body string, pathValues map[string]string) *http.Request {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestErrorStatus(t *testing.T) {
	cases := map[error]int{
		domain.ErrNotFound:           http.StatusNotFound,
		domain.ErrInvalidInput:       http.StatusBadRequest,
		domain.ErrInvalidStep:        http.StatusBadRequest,
		domain.ErrStepIncomplete:     http.StatusUnprocessableEntity,
		domain.ErrValidation:         http.StatusUnprocessableEntity,
		domain.ErrSubmissionInFlight: http.StatusConflict,
		domain.ErrNotCustom:          http.StatusForbidden,
		domain.ErrRateLimited:        http.StatusTooManyRequests,
		domain.ErrUpstream:           http.StatusBadGateway,
		errors.New("boom"):           http.StatusInternalServerError,
	}
	for err, want := range cases {
		wrapped := fmt.Errorf("service: op: %w", err)
		assert.Equal(t, want, errorStatus(wrapped), err.Error())
	}
}

func TestWizardCreate(t *testing.T) {
	f := &fakeWizards{view: wizard.View{ID: "s1", CurrentStep: 1}}
	h := NewWizardHandler(f, discard())

	rec := serve(h.Create, request(http.MethodPost, "/api/wizard", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.calls)

	req := request(http.MethodPost, "/api/wizard", "", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Country", " de ")
	req.Header.Set("X-User-KYC-Level", "2")
	rec = serve(h.Create, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.UserSnapshot{ID: "u1", Country: "DE", KYCLevel: 2}, f.user)

	var view wizard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "s1", view.ID)

	rec = serve(h.Create, request(http.MethodPost, "/api/wizard", `{"user":{"id":"u2","country":"fr","kycLevel":1}}`, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, domain.UserSnapshot{ID: "u2", Country: "FR", KYCLevel: 1}, f.user)
}

func TestWizardPatch(t *testing.T) {
	f := &fakeWizards{view: wizard.View{ID: "s1", CurrentStep: 4}}
	h := NewWizardHandler(f, discard())
	ids := map[string]string{"id": "s1"}

	rec := serve(h.Patch, request(http.MethodPatch, "/api/wizard/s1", `{"kind":"amount","data":{"value":0.5}}`, ids))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wizard.SetAmount{Value: 0.5}, f.patch)

	rec = serve(h.Patch, request(http.MethodPatch, "/api/wizard/s1", `{"kind":"priceModel","data":{"model":"margin"}}`, ids))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, wizard.SetPriceModel{Model: domain.PriceModelMargin}, f.patch)

	rec = serve(h.Patch, request(http.MethodPatch, "/api/wizard/s1", `{"kind":"marketPrice","data":{}}`, ids))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.Patch, request(http.MethodPatch, "/api/wizard/s1", `{"kind":`, ids))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWizardTransitionErrorsCarryView(t *testing.T) {
	f := &fakeWizards{
		view: wizard.View{ID: "s1", CurrentStep: 4},
		err:  fmt.Errorf("wizard: next: %w", domain.ErrStepIncomplete),
	}
	h := NewWizardHandler(f, discard())
	ids := map[string]string{"id": "s1"}

	rec := serve(h.Next, request(http.MethodPost, "/api/wizard/s1/next", "", ids))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body viewErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "step incomplete")
	assert.Equal(t, 4, body.View.CurrentStep)

	f.err = fmt.Errorf("exchange: create offer: %w", domain.ErrUpstream)
	rec = serve(h.Submit, request(http.MethodPost, "/api/wizard/s1/submit", "", ids))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), `"view"`)
}

func TestWizardGoToAndNotFound(t *testing.T) {
	f := &fakeWizards{view: wizard.View{ID: "s1", CurrentStep: 3}}
	h := NewWizardHandler(f, discard())

	rec := serve(h.GoTo, request(http.MethodPost, "/api/wizard/s1/step/x", "", map[string]string{"id": "s1", "n": "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h.GoTo, request(http.MethodPost, "/api/wizard/s1/step/3", "", map[string]string{"id": "s1", "n": "3"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, f.step)

	f.view, f.err = wizard.View{}, fmt.Errorf("service: session s9: %w", domain.ErrNotFound)
	rec = serve(h.Get, request(http.MethodGet, "/api/wizard/s9", "", map[string]string{"id": "s9"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"view"`)

	rec = serve(h.Cancel, request(http.MethodDelete, "/api/wizard/s9", "", map[string]string{"id": "s9"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.err = nil
	rec = serve(h.Cancel, request(http.MethodDelete, "/api/wizard/s1", "", map[string]string{"id": "s1"}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeMethods struct {
	updated domain.PaymentMethod
	err     error
}

func (f *fakeMethods) List(context.Context) ([]domain.PaymentMethod, error) { return nil, f.err }
func (f *fakeMethods) Create(_ context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	pm.ID = "pm-new"
	return pm, f.err
}
func (f *fakeMethods) Update(_ context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	f.updated = pm
	return pm, f.err
}
func (f *fakeMethods) Delete(context.Context, string) error { return f.err }

func TestPaymentMethodHandler(t *testing.T) {
	f := &fakeMethods{}
	h := NewPaymentMethodHandler(f, discard())

	rec := serve(h.List, request(http.MethodGet, "/api/payment-methods", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"paymentMethods":[]}`, rec.Body.String())

	rec = serve(h.Create, request(http.MethodPost, "/api/payment-methods", `{"name":"Revolut"}`, nil))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"pm-new"`)

	rec = serve(h.Update, request(http.MethodPut, "/api/payment-methods/pm-1", `{"id":"other","name":"Wise"}`, map[string]string{"id": "pm-1"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pm-1", f.updated.ID)

	f.err = fmt.Errorf("payment_method_service: delete pm-bank: %w", domain.ErrNotCustom)
	rec = serve(h.Delete, request(http.MethodDelete, "/api/payment-methods/pm-bank", "", map[string]string{"id": "pm-bank"}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.err = errors.New("connection reset")
	rec = serve(h.List, request(http.MethodGet, "/api/payment-methods", "", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

type fakePrices struct {
	key domain.PriceKey
	err error
}

func (f *fakePrices) GetPrice(_ context.Context, key domain.PriceKey) (service.Quote, error) {
	f.key = key
	if f.err != nil {
		return service.Quote{}, f.err
	}
	return service.Quote{Currency: key.Currency, WalletType: key.WalletType, Price: 50000}, nil
}

func TestMarketHandler(t *testing.T) {
	f := &fakePrices{}
	h := NewMarketHandler(f, discard())

	rec := serve(h.GetPrice, request(http.MethodGet, "/api/market/price?currency=btc&walletType=spot", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.PriceKey{Currency: "BTC", WalletType: domain.WalletType("SPOT")}, f.key)
	assert.Contains(t, rec.Body.String(), `"price":50000`)

	f.err = fmt.Errorf("price_service: get price: %w", domain.ErrInvalidInput)
	rec = serve(h.GetPrice, request(http.MethodGet, "/api/market/price", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeHistory struct {
	user string
	opts domain.ListOpts
}

func (f *fakeHistory) History(_ context.Context, userID string, opts domain.ListOpts) ([]domain.OfferRecord, error) {
	f.user, f.opts = userID, opts
	return nil, nil
}

func TestOfferHandler(t *testing.T) {
	f := &fakeHistory{}
	h := NewOfferHandler(f, discard())

	rec := serve(h.List, request(http.MethodGet, "/api/offers", "", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := request(http.MethodGet, "/api/offers?limit=900&offset=10&since=2025-01-01T00:00:00Z", "", nil)
	req.Header.Set("X-User-ID", "u1")
	rec = serve(h.List, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"offers":[]}`, rec.Body.String())
	assert.Equal(t, "u1", f.user)
	assert.Equal(t, 500, f.opts.Limit)
	assert.Equal(t, 10, f.opts.Offset)
	require.NotNil(t, f.opts.Since)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), f.opts.Since.UTC())
}

type pingFunc func(ctx context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

type sessionCount int

func (n sessionCount) Active() int { return int(n) }

func TestHealthCheck(t *testing.T) {
	okPing := pingFunc(func(context.Context) error { return nil })
	h := NewHealthHandler(map[string]Pinger{"redis": okPing, "postgres": nil}, sessionCount(3), discard())

	rec := serve(h.HealthCheck, request(http.MethodGet, "/api/health", "", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 3, body["active_sessions"])

	bad := pingFunc(func(context.Context) error { return errors.New("dial tcp: refused") })
	h = NewHealthHandler(map[string]Pinger{"redis": bad}, nil, discard())
	rec = serve(h.HealthCheck, request(http.MethodGet, "/api/health", "", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
