// Package pricing derives the effective unit price of an offer from its
// pricing model.
package pricing

import "github.com/alanyoungcy/p2poffer/internal/domain"

// Input is everything the final price depends on. Any change to any field
// requires a new call to FinalPrice; results are never cached across models.
type Input struct {
	Model       domain.PriceModel
	MarketPrice float64
	FixedValue  float64
	MarginValue float64
	MarginType  domain.MarginType
	TradeType   domain.TradeType
}

// FromConfig builds an Input from a draft's price configuration.
func FromConfig(pc domain.PriceConfig, tradeType domain.TradeType) Input {
	return Input{
		Model:       pc.Model,
		MarketPrice: pc.MarketPrice,
		FixedValue:  pc.FixedValue,
		MarginValue: pc.MarginValue,
		MarginType:  pc.MarginType,
		TradeType:   tradeType,
	}
}

// FinalPrice returns the price of one unit of the offer currency in USD.
//
// BUY offers add the margin on top of the market price and SELL offers
// subtract it. MARKET and MARGIN prices are 0 until a market price is known.
// A zero or negative result is returned as-is; rejecting it is the
// validator's job.
func FinalPrice(in Input) float64 {
	switch in.Model {
	case domain.PriceModelFixed:
		return in.FixedValue
	case domain.PriceModelMarket:
		if in.MarketPrice <= 0 {
			return 0
		}
		return in.MarketPrice
	case domain.PriceModelMargin:
		if in.MarketPrice <= 0 {
			return 0
		}
		if in.MarginType == domain.MarginFixed {
			if in.TradeType == domain.TradeTypeSell {
				return in.MarketPrice - in.MarginValue
			}
			return in.MarketPrice + in.MarginValue
		}
		multiplier := 1 + in.MarginValue/100
		if in.TradeType == domain.TradeTypeSell {
			multiplier = 1 - in.MarginValue/100
		}
		return in.MarketPrice * multiplier
	default:
		return 0
	}
}

// Recompute returns pc with FinalPrice re-derived for the given trade type.
func Recompute(pc domain.PriceConfig, tradeType domain.TradeType) domain.PriceConfig {
	pc.FinalPrice = FinalPrice(FromConfig(pc, tradeType))
	return pc
}
