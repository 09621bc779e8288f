package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/p2poffer/internal/amount"
	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func cryptoDraft(qty, price, min, max float64) domain.TradeDraft {
	return domain.TradeDraft{
		TradeType:    domain.TradeTypeBuy,
		WalletType:   domain.WalletTypeSpot,
		Currency:     domain.Crypto("BTC"),
		AmountConfig: domain.AmountConfig{Total: qty, Min: min, Max: max},
		PriceConfig:  domain.PriceConfig{Model: domain.PriceModelFixed, FixedValue: price, FinalPrice: price},
	}
}

func codes(vs []Violation) []Code {
	out := make([]Code, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Code)
	}
	return out
}

func TestAmountStep_Valid(t *testing.T) {
	assert.Empty(t, AmountStep(cryptoDraft(0.01, 50000, 100, 5000)))
}

func TestAmountStep_BelowMinimum(t *testing.T) {
	d := cryptoDraft(0.001, 50000, 100, 5000)

	vs := AmountStep(d)
	require.Len(t, vs, 1)
	assert.Equal(t, CodeBelowMinimum, vs[0].Code)
	assert.Equal(t, "Total value (50.00 USD) is less than minimum limit (100 USD)", vs[0].Message)
	assert.InDelta(t, 50.0, vs[0].Delta, 1e-9)
	assert.True(t, CanAutoAdjust(vs))

	d.AmountConfig.Total = amount.New(d).CalculateMinimumAmount()
	assert.Empty(t, AmountStep(d))
}

func TestAmountStep_AboveMaximum(t *testing.T) {
	vs := AmountStep(cryptoDraft(0.2, 50000, 100, 5000))
	require.Len(t, vs, 1)
	assert.Equal(t, CodeAboveMaximum, vs[0].Code)
	assert.Equal(t, "Total value (10000.00 USD) exceeds maximum limit (5000 USD)", vs[0].Message)
	assert.InDelta(t, 5000.0, vs[0].Delta, 1e-9)
	assert.False(t, CanAutoAdjust(vs))
}

func TestAmountStep_SellBalanceExceeded(t *testing.T) {
	d := cryptoDraft(1.5, 1000, 100, 5000)
	d.TradeType = domain.TradeTypeSell
	balance := 1.0
	d.AmountConfig.AvailableBalance = &balance

	vs := AmountStep(d)
	require.Len(t, vs, 1)
	assert.Equal(t, CodeInsufficientBalance, vs[0].Code)
	assert.Equal(t, "Amount (1.5 BTC) exceeds available balance (1 BTC)", vs[0].Message)
}

func TestAmountStep_SellWithoutKnownBalance(t *testing.T) {
	d := cryptoDraft(1.5, 1000, 100, 5000)
	d.TradeType = domain.TradeTypeSell
	assert.Empty(t, AmountStep(d))
}

func TestAmountStep_BuyIgnoresBalance(t *testing.T) {
	d := cryptoDraft(1.5, 1000, 100, 5000)
	balance := 1.0
	d.AmountConfig.AvailableBalance = &balance
	assert.Empty(t, AmountStep(d))
}

func TestAmountStep_RuleOrder(t *testing.T) {
	d := cryptoDraft(0, 0, 0, 0)
	assert.Equal(t, []Code{CodeAmountRequired, CodePriceRequired, CodeLimitsRequired}, codes(AmountStep(d)))

	d = cryptoDraft(2, -5, 500, 100)
	d.TradeType = domain.TradeTypeSell
	balance := 1.0
	d.AmountConfig.AvailableBalance = &balance
	assert.Equal(t, []Code{CodeInsufficientBalance, CodePriceRequired, CodeLimitsInverted}, codes(AmountStep(d)))
}

func TestAmountStep_FiatOffer(t *testing.T) {
	d := domain.TradeDraft{
		TradeType:    domain.TradeTypeBuy,
		Currency:     domain.Fiat("USD"),
		AmountConfig: domain.AmountConfig{Total: 50, Min: 100, Max: 5000},
		PriceConfig:  domain.PriceConfig{Model: domain.PriceModelMarket, MarketPrice: 1, FinalPrice: 1},
	}
	vs := AmountStep(d)
	require.Len(t, vs, 1)
	assert.Equal(t, "Total value (50.00 USD) is less than minimum limit (100 USD)", vs[0].Message)

	d.AmountConfig.Total = 100
	assert.Empty(t, AmountStep(d))
}

func TestRequiredFieldSteps(t *testing.T) {
	var d domain.TradeDraft
	assert.Equal(t, []Code{CodeTradeTypeRequired}, codes(TradeTypeStep(d)))
	assert.Equal(t, []Code{CodeWalletRequired}, codes(WalletStep(d)))
	assert.Equal(t, []Code{CodeCurrencyRequired}, codes(CurrencyStep(d)))
	assert.Equal(t, []Code{CodePaymentRequired}, codes(PaymentStep(d)))
	assert.Equal(t, []Code{CodeTermsRequired}, codes(SettingsStep(d)))
	assert.Equal(t, []Code{CodeCountryRequired}, codes(LocationStep(d)))

	d.TradeSettings.TermsOfTrade = "   "
	assert.NotEmpty(t, SettingsStep(d))

	d.TradeType = domain.TradeTypeBuy
	d.WalletType = domain.WalletTypeFiat
	d.Currency = domain.Fiat("USD")
	d.PaymentMethods = []domain.PaymentMethod{{ID: "pm-1", Name: "SEPA"}}
	d.TradeSettings.TermsOfTrade = "Pay within 15 minutes"
	d.LocationSettings.Country = "DE"
	assert.Empty(t, TradeTypeStep(d))
	assert.Empty(t, WalletStep(d))
	assert.Empty(t, CurrencyStep(d))
	assert.Empty(t, PaymentStep(d))
	assert.Empty(t, SettingsStep(d))
	assert.Empty(t, LocationStep(d))
}

func TestDraft_CollectsInStepOrder(t *testing.T) {
	d := cryptoDraft(0.001, 50000, 100, 5000)
	d.TradeType = ""

	assert.Equal(t, []Code{
		CodeTradeTypeRequired,
		CodeBelowMinimum,
		CodePaymentRequired,
		CodeTermsRequired,
		CodeCountryRequired,
	}, codes(Draft(d)))
}

func TestMessages(t *testing.T) {
	vs := []Violation{{Message: "a"}, {Message: "b"}}
	assert.Equal(t, []string{"a", "b"}, Messages(vs))
	assert.Empty(t, Messages(nil))
}
