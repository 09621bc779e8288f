// Package amount converts between an offer's quantity and its monetary total
// and derives tradable bounds from USD-denominated trade limits.
//
// Two unit regimes exist. A fiat-denominated offer already states its amount
// in settlement units, so limits apply to it directly. A crypto-denominated
// offer states its amount in coins, so the USD limits are divided by the final
// price before comparison.
package amount

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

const (
	// MinimumBuffer is applied by the auto-adjust remediation so the adjusted
	// amount lands safely above the strict minimum.
	MinimumBuffer = 1.05

	// limitEpsilon is the relative tolerance for amount-vs-limit comparisons.
	limitEpsilon = 0.0001

	usdPlaces    = 2
	cryptoPlaces = 8
)

// Converter performs unit conversions for one currency at one final price.
type Converter struct {
	Currency   domain.Currency
	FinalPrice float64
	Min        float64
	Max        float64
}

// New builds a Converter from a draft.
func New(d domain.TradeDraft) Converter {
	return Converter{
		Currency:   d.Currency,
		FinalPrice: d.PriceConfig.FinalPrice,
		Min:        d.AmountConfig.Min,
		Max:        d.AmountConfig.Max,
	}
}

// PriceAvailable reports whether derived amounts can be computed at all.
func (c Converter) PriceAvailable() bool {
	return c.FinalPrice > 0 && !math.IsInf(c.FinalPrice, 0) && !math.IsNaN(c.FinalPrice)
}

// AmountToTotal returns amount × finalPrice, or 0 when no price is available.
func (c Converter) AmountToTotal(amount float64) float64 {
	if !c.PriceAvailable() {
		return 0
	}
	return amount * c.FinalPrice
}

// TotalToAmount returns total / finalPrice, or 0 when no price is available.
func (c Converter) TotalToAmount(total float64) float64 {
	if !c.PriceAvailable() {
		return 0
	}
	return total / c.FinalPrice
}

// Resolve derives both halves of the amount/total pair from the last-edited
// field. The edited value is returned untouched; only the other side is
// computed, so the pair never feeds back into itself.
func (c Converter) Resolve(in domain.AmountInput) (amount, total float64) {
	if in.Source == domain.AmountFieldTotal {
		return c.TotalToAmount(in.Value), in.Value
	}
	return in.Value, c.AmountToTotal(in.Value)
}

// TotalValue is the secondary display value of an amount: the crypto
// equivalent of a fiat amount, or the USD value of a crypto amount.
func (c Converter) TotalValue(amount float64) float64 {
	if !c.PriceAvailable() {
		return 0
	}
	if c.Currency.IsFiat() {
		return amount / c.FinalPrice
	}
	return amount * c.FinalPrice
}

// SettlementValue is the USD-equivalent value of an amount, the unit the trade
// limits are expressed in. For fiat offers that is the amount itself.
func (c Converter) SettlementValue(amount float64) float64 {
	if c.Currency.IsFiat() {
		return amount
	}
	if !c.PriceAvailable() {
		return 0
	}
	return amount * c.FinalPrice
}

// MinAmount is the smallest tradable amount in currency units.
func (c Converter) MinAmount() float64 {
	return c.limitAmount(c.Min)
}

// MaxAmount is the largest tradable amount in currency units.
func (c Converter) MaxAmount() float64 {
	return c.limitAmount(c.Max)
}

func (c Converter) limitAmount(limit float64) float64 {
	if c.Currency.IsFiat() {
		return limit
	}
	if !c.PriceAvailable() {
		return 0
	}
	return limit / c.FinalPrice
}

// CalculateMinimumAmount returns the amount the auto-adjust action sets: the
// converted minimum plus a 5% buffer. It is never applied implicitly.
func (c Converter) CalculateMinimumAmount() float64 {
	if !c.PriceAvailable() {
		return 0
	}
	if c.Currency.IsFiat() {
		return (c.Min * c.FinalPrice) * MinimumBuffer
	}
	return (c.Min / c.FinalPrice) * MinimumBuffer
}

// Epsilon is the comparison tolerance for a limit expressed in amount units.
func Epsilon(limitAmount float64) float64 {
	return math.Abs(limitAmount) * limitEpsilon
}

// BelowMinimum reports whether amount is under the minimum beyond tolerance.
func (c Converter) BelowMinimum(amount float64) bool {
	minAmount := c.MinAmount()
	return amount+Epsilon(minAmount) < minAmount
}

// AboveMaximum reports whether amount is over the maximum beyond tolerance.
func (c Converter) AboveMaximum(amount float64) bool {
	maxAmount := c.MaxAmount()
	return amount-Epsilon(maxAmount) > maxAmount
}

// FormatTotalValue renders TotalValue for display: USD with two decimals for
// crypto offers, the crypto equivalent with eight decimals for fiat offers.
// An unavailable price renders as an empty string.
func (c Converter) FormatTotalValue(amount float64) string {
	if !c.PriceAvailable() || c.Currency.IsZero() {
		return ""
	}
	places := int32(usdPlaces)
	if c.Currency.IsFiat() {
		places = cryptoPlaces
	}
	return decimal.NewFromFloat(c.TotalValue(amount)).StringFixed(places)
}

// FormatUSD renders a settlement value with two decimals.
func FormatUSD(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(usdPlaces)
}

// FormatLimit renders a limit the way the user typed it: no trailing zeros.
func FormatLimit(v float64) string {
	return decimal.NewFromFloat(v).String()
}
