package domain

import (
	"context"
	"time"
)

// PriceKey identifies a market price feed.
type PriceKey struct {
	Currency   string
	WalletType WalletType
}

// String renders the key as "{currency}:{wallet}", which is also the suffix of
// the cache key and bus channel for the feed.
func (k PriceKey) String() string {
	return k.Currency + ":" + string(k.WalletType)
}

// Valid reports whether both halves of the key are set.
func (k PriceKey) Valid() bool {
	return k.Currency != "" && k.WalletType != ""
}

// MarketQuote is the response of the market price endpoint.
type MarketQuote struct {
	Price float64 `json:"price"`
}

// WalletBalance is the response of the wallet endpoint.
type WalletBalance struct {
	Balance float64 `json:"balance"`
	InOrder float64 `json:"inOrder"`
}

// Available returns the spendable part of the balance.
func (b WalletBalance) Available() float64 {
	return b.Balance - b.InOrder
}

// OfferPayload is the request body of the offer creation endpoint. Nested
// configuration objects travel as JSON-encoded strings.
type OfferPayload struct {
	Type             TradeType  `json:"type"`
	Currency         string     `json:"currency"`
	WalletType       WalletType `json:"walletType"`
	AmountConfig     string     `json:"amountConfig"`
	PriceConfig      string     `json:"priceConfig"`
	TradeSettings    string     `json:"tradeSettings"`
	LocationSettings string     `json:"locationSettings"`
	UserRequirements string     `json:"userRequirements"`
	PaymentMethods   string     `json:"paymentMethods"`
}

// OfferResult is the response of the offer creation endpoint.
type OfferResult struct {
	Trade map[string]any `json:"trade,omitempty"`
	Offer map[string]any `json:"offer,omitempty"`
}

// OfferID extracts the created offer's id when the endpoint returned one.
func (r OfferResult) OfferID() string {
	for _, m := range []map[string]any{r.Offer, r.Trade} {
		if id, ok := m["id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// PriceFeed fetches the current market price for a key.
type PriceFeed interface {
	GetMarketPrice(ctx context.Context, currency string, walletType WalletType) (MarketQuote, error)
}

// WalletReader fetches wallet balances.
type WalletReader interface {
	GetWalletBalance(ctx context.Context, walletType WalletType, currency string) (WalletBalance, error)
}

// PaymentMethodGateway manages payment methods on the exchange.
type PaymentMethodGateway interface {
	ListPaymentMethods(ctx context.Context) ([]PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, pm PaymentMethod) (PaymentMethod, error)
	UpdatePaymentMethod(ctx context.Context, pm PaymentMethod) (PaymentMethod, error)
	DeletePaymentMethod(ctx context.Context, id string) error
}

// OfferCreator submits a finished offer.
type OfferCreator interface {
	CreateOffer(ctx context.Context, payload OfferPayload) (OfferResult, error)
}

// ExchangeGateway bundles every exchange contract the wizard consumes.
type ExchangeGateway interface {
	PriceFeed
	WalletReader
	PaymentMethodGateway
	OfferCreator
}

// UserSnapshot is a read-only view of the current user, captured when the
// wizard session is created.
type UserSnapshot struct {
	ID       string `json:"id"`
	Country  string `json:"country,omitempty"`
	KYCLevel int    `json:"kycLevel"`
}

// PlatformSettings is a read-only view of the platform configuration relevant
// to offer creation.
type PlatformSettings struct {
	DefaultAutoCancel  int
	DefaultVisibility  Visibility
	KYCRequiredDefault bool
	PricePollInterval  time.Duration
}
