// Package validation checks a trade draft and reports human-readable
// violations. Violations are values, not errors: they block step completion
// but never abort the wizard.
package validation

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/p2poffer/internal/amount"
	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// Code identifies a rule so callers can react to specific violations.
type Code string

const (
	CodeAmountRequired      Code = "amount_required"
	CodeInsufficientBalance Code = "insufficient_balance"
	CodePriceRequired       Code = "price_required"
	CodeLimitsRequired      Code = "limits_required"
	CodeLimitsInverted      Code = "limits_inverted"
	CodeBelowMinimum        Code = "below_minimum"
	CodeAboveMaximum        Code = "above_maximum"
	CodeTradeTypeRequired   Code = "trade_type_required"
	CodeWalletRequired      Code = "wallet_type_required"
	CodeCurrencyRequired    Code = "currency_required"
	CodePaymentRequired     Code = "payment_method_required"
	CodeTermsRequired       Code = "terms_required"
	CodeCountryRequired     Code = "country_required"
)

// Violation is one failed rule. Delta carries the exact shortfall or excess
// in settlement units for the limit rules and is zero otherwise.
type Violation struct {
	Code    Code    `json:"code"`
	Message string  `json:"message"`
	Delta   float64 `json:"delta,omitempty"`
}

// AmountStep runs the numeric rules of the amount & price step, in order:
// positive amount, balance ceiling (SELL only), positive price, sane limits,
// and the minimum and maximum trade limits.
func AmountStep(d domain.TradeDraft) []Violation {
	var out []Violation
	qty := d.AmountConfig.Total
	conv := amount.New(d)

	amountOK := qty > 0
	if !amountOK {
		out = append(out, Violation{Code: CodeAmountRequired, Message: "Amount must be greater than 0"})
	}

	if d.TradeType == domain.TradeTypeSell {
		if balance, ok := d.AvailableBalance(); ok && qty > balance {
			out = append(out, Violation{
				Code: CodeInsufficientBalance,
				Message: fmt.Sprintf("Amount (%s %s) exceeds available balance (%s %s)",
					amount.FormatLimit(qty), d.Currency.Code(), amount.FormatLimit(balance), d.Currency.Code()),
				Delta: qty - balance,
			})
		}
	}

	priceOK := conv.PriceAvailable()
	if !priceOK {
		out = append(out, Violation{Code: CodePriceRequired, Message: "Price must be greater than 0"})
	}

	minLimit, maxLimit := d.AmountConfig.Min, d.AmountConfig.Max
	limitsOK := true
	switch {
	case !(minLimit > 0) || !(maxLimit > 0):
		limitsOK = false
		out = append(out, Violation{Code: CodeLimitsRequired, Message: "Minimum and maximum limits must be greater than 0"})
	case maxLimit < minLimit:
		limitsOK = false
		out = append(out, Violation{Code: CodeLimitsInverted, Message: "Maximum limit must be greater than or equal to minimum limit"})
	}

	if !amountOK || !priceOK || !limitsOK {
		return out
	}

	value := conv.SettlementValue(qty)
	if conv.BelowMinimum(qty) {
		out = append(out, Violation{
			Code: CodeBelowMinimum,
			Message: fmt.Sprintf("Total value (%s USD) is less than minimum limit (%s USD)",
				amount.FormatUSD(value), amount.FormatLimit(minLimit)),
			Delta: minLimit - value,
		})
	}
	if conv.AboveMaximum(qty) {
		out = append(out, Violation{
			Code: CodeAboveMaximum,
			Message: fmt.Sprintf("Total value (%s USD) exceeds maximum limit (%s USD)",
				amount.FormatUSD(value), amount.FormatLimit(maxLimit)),
			Delta: value - maxLimit,
		})
	}
	return out
}

// TradeTypeStep requires a trade side.
func TradeTypeStep(d domain.TradeDraft) []Violation {
	if d.TradeType == "" {
		return []Violation{{Code: CodeTradeTypeRequired, Message: "Select whether you want to buy or sell"}}
	}
	return nil
}

// WalletStep requires a wallet type.
func WalletStep(d domain.TradeDraft) []Violation {
	if d.WalletType == "" {
		return []Violation{{Code: CodeWalletRequired, Message: "Select a wallet type"}}
	}
	return nil
}

// CurrencyStep requires a currency.
func CurrencyStep(d domain.TradeDraft) []Violation {
	if d.Currency.IsZero() {
		return []Violation{{Code: CodeCurrencyRequired, Message: "Select a currency"}}
	}
	return nil
}

// PaymentStep requires at least one payment method.
func PaymentStep(d domain.TradeDraft) []Violation {
	if len(d.PaymentMethods) == 0 {
		return []Violation{{Code: CodePaymentRequired, Message: "Select at least one payment method"}}
	}
	return nil
}

// SettingsStep requires terms of trade.
func SettingsStep(d domain.TradeDraft) []Violation {
	if strings.TrimSpace(d.TradeSettings.TermsOfTrade) == "" {
		return []Violation{{Code: CodeTermsRequired, Message: "Terms of trade are required"}}
	}
	return nil
}

// LocationStep requires a country.
func LocationStep(d domain.TradeDraft) []Violation {
	if strings.TrimSpace(d.LocationSettings.Country) == "" {
		return []Violation{{Code: CodeCountryRequired, Message: "Country is required"}}
	}
	return nil
}

// Draft runs every step's checks in step order. It is the gate applied at
// the submission boundary.
func Draft(d domain.TradeDraft) []Violation {
	var out []Violation
	for _, check := range []func(domain.TradeDraft) []Violation{
		TradeTypeStep, WalletStep, CurrencyStep, AmountStep, PaymentStep, SettingsStep, LocationStep,
	} {
		out = append(out, check(d)...)
	}
	return out
}

// Messages flattens violations into their user-facing strings.
func Messages(vs []Violation) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		out = append(out, v.Message)
	}
	return out
}

// CanAutoAdjust reports whether the auto-adjust-to-minimum remediation
// applies. It is offered only for the below-minimum case.
func CanAutoAdjust(vs []Violation) bool {
	for _, v := range vs {
		if v.Code == CodeBelowMinimum {
			return true
		}
	}
	return false
}
