// Package exchange is the REST client for the exchange endpoints the offer
// wizard consumes: market prices, wallet balances, payment methods and offer
// creation.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

const (
	pricePath         = "/api/p2p/market/price"
	walletPath        = "/api/finance/wallet"
	paymentMethodPath = "/api/p2p/payment-method"
	offerPath         = "/api/p2p/offer"
)

// Client talks to the exchange REST API. Requests are throttled client-side
// so a burst of wizard sessions cannot exceed the configured request rate.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// Config holds the client settings.
type Config struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewClient creates a Client. A non-positive RequestsPerSecond disables the
// throttle.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		burst = max(1, int(cfg.RequestsPerSecond))
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// GetMarketPrice returns the current price of one unit of currency in USD.
func (c *Client) GetMarketPrice(ctx context.Context, currency string, walletType domain.WalletType) (domain.MarketQuote, error) {
	params := url.Values{}
	params.Set("currency", currency)
	params.Set("walletType", string(walletType))

	body, err := c.do(ctx, http.MethodGet, pricePath+"?"+params.Encode(), nil)
	if err != nil {
		return domain.MarketQuote{}, fmt.Errorf("exchange: get market price %s/%s: %w", currency, walletType, err)
	}

	var q domain.MarketQuote
	if err := json.Unmarshal(body, &q); err != nil {
		return domain.MarketQuote{}, fmt.Errorf("exchange: decode market price: %w", err)
	}
	return q, nil
}

// GetWalletBalance returns the balance of the user's wallet for currency.
func (c *Client) GetWalletBalance(ctx context.Context, walletType domain.WalletType, currency string) (domain.WalletBalance, error) {
	path := fmt.Sprintf("%s/%s/%s", walletPath, url.PathEscape(string(walletType)), url.PathEscape(currency))

	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return domain.WalletBalance{}, fmt.Errorf("exchange: get wallet %s/%s: %w", walletType, currency, err)
	}

	var b domain.WalletBalance
	if err := json.Unmarshal(body, &b); err != nil {
		return domain.WalletBalance{}, fmt.Errorf("exchange: decode wallet: %w", err)
	}
	return b, nil
}

// ListPaymentMethods returns the payment methods available to the user.
func (c *Client) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	body, err := c.do(ctx, http.MethodGet, paymentMethodPath, nil)
	if err != nil {
		return nil, fmt.Errorf("exchange: list payment methods: %w", err)
	}

	var methods []APIPaymentMethod
	if err := json.Unmarshal(body, &methods); err != nil {
		return nil, fmt.Errorf("exchange: decode payment methods: %w", err)
	}
	out := make([]domain.PaymentMethod, 0, len(methods))
	for i := range methods {
		out = append(out, methods[i].ToDomain())
	}
	return out, nil
}

// CreatePaymentMethod creates a custom payment method.
func (c *Client) CreatePaymentMethod(ctx context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	body, err := c.do(ctx, http.MethodPost, paymentMethodPath, FromDomain(pm))
	if err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("exchange: create payment method: %w", err)
	}
	return decodePaymentMethod(body)
}

// UpdatePaymentMethod updates a custom payment method.
func (c *Client) UpdatePaymentMethod(ctx context.Context, pm domain.PaymentMethod) (domain.PaymentMethod, error) {
	path := paymentMethodPath + "/" + url.PathEscape(pm.ID)
	body, err := c.do(ctx, http.MethodPut, path, FromDomain(pm))
	if err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("exchange: update payment method %s: %w", pm.ID, err)
	}
	return decodePaymentMethod(body)
}

// DeletePaymentMethod deletes a custom payment method.
func (c *Client) DeletePaymentMethod(ctx context.Context, id string) error {
	if _, err := c.do(ctx, http.MethodDelete, paymentMethodPath+"/"+url.PathEscape(id), nil); err != nil {
		return fmt.Errorf("exchange: delete payment method %s: %w", id, err)
	}
	return nil
}

// CreateOffer submits a finished offer.
func (c *Client) CreateOffer(ctx context.Context, payload domain.OfferPayload) (domain.OfferResult, error) {
	body, err := c.do(ctx, http.MethodPost, offerPath, payload)
	if err != nil {
		return domain.OfferResult{}, fmt.Errorf("exchange: create offer: %w", err)
	}

	var res domain.OfferResult
	if len(bytes.TrimSpace(body)) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return domain.OfferResult{}, fmt.Errorf("exchange: decode offer: %w", err)
	}
	return res, nil
}

func decodePaymentMethod(body []byte) (domain.PaymentMethod, error) {
	var m APIPaymentMethod
	if err := json.Unmarshal(body, &m); err != nil {
		return domain.PaymentMethod{}, fmt.Errorf("exchange: decode payment method: %w", err)
	}
	return m.ToDomain(), nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := errorMessage(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrUpstream, statusCode, msg)
	}
}

// errorMessage extracts {"message": ...} from an error body, falling back to
// the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return string(body)
}

// Compile-time interface check.
var _ domain.ExchangeGateway = (*Client)(nil)
