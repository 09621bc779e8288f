package domain

import (
	"fmt"
	"strings"
)

// TradeType indicates which side of the trade the offer maker takes.
type TradeType string

const (
	TradeTypeBuy  TradeType = "BUY"
	TradeTypeSell TradeType = "SELL"
)

// ParseTradeType normalises user input into a TradeType.
func ParseTradeType(s string) (TradeType, error) {
	switch TradeType(strings.ToUpper(strings.TrimSpace(s))) {
	case TradeTypeBuy:
		return TradeTypeBuy, nil
	case TradeTypeSell:
		return TradeTypeSell, nil
	default:
		return "", fmt.Errorf("%w: trade type %q", ErrInvalidInput, s)
	}
}

// WalletType selects the balance pool an offer draws from.
type WalletType string

const (
	WalletTypeFiat WalletType = "FIAT"
	WalletTypeSpot WalletType = "SPOT"
	WalletTypeEco  WalletType = "ECO"
)

// ParseWalletType normalises user input into a WalletType. FUNDING is
// accepted as an alias of ECO.
func ParseWalletType(s string) (WalletType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FIAT":
		return WalletTypeFiat, nil
	case "SPOT":
		return WalletTypeSpot, nil
	case "ECO", "FUNDING":
		return WalletTypeEco, nil
	default:
		return "", fmt.Errorf("%w: wallet type %q", ErrInvalidInput, s)
	}
}

// PriceModel selects how the effective unit price is derived.
type PriceModel string

const (
	PriceModelFixed  PriceModel = "FIXED"
	PriceModelMarket PriceModel = "MARKET"
	PriceModelMargin PriceModel = "MARGIN"
)

// MarginType selects whether a margin is a percentage or an absolute offset.
type MarginType string

const (
	MarginPercentage MarginType = "percentage"
	MarginFixed      MarginType = "fixed"
)

// Visibility controls who can see a published offer.
type Visibility string

const (
	VisibilityPublic  Visibility = "PUBLIC"
	VisibilityPrivate Visibility = "PRIVATE"
)

// AmountConfig holds the tradable quantity and the trade limits. Total is in
// currency units; Min and Max are always USD-equivalent settlement units.
type AmountConfig struct {
	Total            float64  `json:"total"`
	Min              float64  `json:"min"`
	Max              float64  `json:"max"`
	AvailableBalance *float64 `json:"availableBalance,omitempty"`
}

// PriceConfig holds the pricing model inputs and the derived FinalPrice, which
// is the price of one unit of the offer currency in USD. FixedValue and
// MarginValue are kept apart so switching models never reinterprets the
// other model's parameter.
type PriceConfig struct {
	Model       PriceModel `json:"model"`
	FixedValue  float64    `json:"fixedValue"`
	MarginValue float64    `json:"marginValue"`
	MarketPrice float64    `json:"marketPrice"`
	FinalPrice  float64    `json:"finalPrice"`
	MarginType  MarginType `json:"marginType,omitempty"`
}

// Value returns the parameter of the active model: the fixed price under
// FIXED, the margin under MARGIN and zero under MARKET.
func (pc PriceConfig) Value() float64 {
	switch pc.Model {
	case PriceModelFixed:
		return pc.FixedValue
	case PriceModelMargin:
		return pc.MarginValue
	default:
		return 0
	}
}

// PaymentMethod is a way for the counterparty to settle the fiat leg.
type PaymentMethod struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	ProcessingTime string            `json:"processingTime,omitempty"`
	Instructions   string            `json:"instructions,omitempty"`
	Details        map[string]string `json:"details,omitempty"`
	Custom         bool              `json:"custom,omitempty"`
}

// TradeSettings holds offer-level trading terms.
type TradeSettings struct {
	AutoCancel      int        `json:"autoCancel"`
	Visibility      Visibility `json:"visibility"`
	TermsOfTrade    string     `json:"termsOfTrade"`
	AdditionalNotes string     `json:"additionalNotes,omitempty"`
	KYCRequired     bool       `json:"kycRequired"`
}

// LocationSettings restricts where the offer is tradable. Restrictions is a
// set of excluded country codes kept sorted and deduplicated.
type LocationSettings struct {
	Country      string   `json:"country"`
	Region       string   `json:"region,omitempty"`
	City         string   `json:"city,omitempty"`
	Restrictions []string `json:"restrictions"`
}

// UserRequirements are counterparty filters. None of them block completion.
type UserRequirements struct {
	MinCompletedTrades int     `json:"minCompletedTrades"`
	MinSuccessRate     float64 `json:"minSuccessRate"`
	MinAccountAge      int     `json:"minAccountAge"`
	TrustedOnly        bool    `json:"trustedOnly"`
}

// AmountField names one half of the amount/total input pair.
type AmountField string

const (
	AmountFieldAmount AmountField = "amount"
	AmountFieldTotal  AmountField = "total"
)

// AmountInput records which of the amount/total pair the user edited last and
// the value they typed. The other field is always derived from it.
type AmountInput struct {
	Source AmountField `json:"source"`
	Value  float64     `json:"value"`
}

// TradeDraft is the in-memory aggregate of every wizard step's output.
type TradeDraft struct {
	TradeType        TradeType        `json:"tradeType,omitempty"`
	WalletType       WalletType       `json:"walletType,omitempty"`
	Currency         Currency         `json:"currency"`
	AmountConfig     AmountConfig     `json:"amountConfig"`
	AmountInput      AmountInput      `json:"amountInput"`
	PriceConfig      PriceConfig      `json:"priceConfig"`
	PaymentMethods   []PaymentMethod  `json:"paymentMethods"`
	TradeSettings    TradeSettings    `json:"tradeSettings"`
	LocationSettings LocationSettings `json:"locationSettings"`
	UserRequirements UserRequirements `json:"userRequirements"`
	TotalValue       string           `json:"totalValue"`
}

// AvailableBalance returns the balance ceiling and whether one is known.
func (d TradeDraft) AvailableBalance() (float64, bool) {
	if d.AmountConfig.AvailableBalance == nil {
		return 0, false
	}
	return *d.AmountConfig.AvailableBalance, true
}

// PriceKey returns the market price key for the draft's currency and wallet.
func (d TradeDraft) PriceKey() PriceKey {
	return PriceKey{Currency: d.Currency.Code(), WalletType: d.WalletType}
}

// Clone returns a deep copy of the draft so callers can mutate it freely.
func (d TradeDraft) Clone() TradeDraft {
	out := d
	if d.AmountConfig.AvailableBalance != nil {
		v := *d.AmountConfig.AvailableBalance
		out.AmountConfig.AvailableBalance = &v
	}
	if d.PaymentMethods != nil {
		out.PaymentMethods = make([]PaymentMethod, len(d.PaymentMethods))
		for i, pm := range d.PaymentMethods {
			out.PaymentMethods[i] = pm.clone()
		}
	}
	if d.LocationSettings.Restrictions != nil {
		out.LocationSettings.Restrictions = append([]string(nil), d.LocationSettings.Restrictions...)
	}
	return out
}

func (pm PaymentMethod) clone() PaymentMethod {
	out := pm
	if pm.Details != nil {
		out.Details = make(map[string]string, len(pm.Details))
		for k, v := range pm.Details {
			out.Details[k] = v
		}
	}
	return out
}
