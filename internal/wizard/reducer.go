package wizard

import (
	"github.com/alanyoungcy/p2poffer/internal/amount"
	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/pricing"
)

// Apply returns the draft that results from applying p to d. The input draft
// is never mutated. Derived fields (final price, amount from the last-edited
// input, total value) are recomputed after every patch, so re-applying the
// same patch yields the same draft.
func Apply(d domain.TradeDraft, p Patch) domain.TradeDraft {
	out := d.Clone()
	p.apply(&out)
	derive(&out)
	return out
}

// ApplyAll folds patches over d in order.
func ApplyAll(d domain.TradeDraft, patches ...Patch) domain.TradeDraft {
	for _, p := range patches {
		d = Apply(d, p)
	}
	return d
}

func derive(d *domain.TradeDraft) {
	d.PriceConfig = pricing.Recompute(d.PriceConfig, d.TradeType)

	conv := amount.New(*d)
	if d.AmountInput.Source != "" {
		qty, _ := conv.Resolve(d.AmountInput)
		d.AmountConfig.Total = qty
	}
	d.TotalValue = conv.FormatTotalValue(d.AmountConfig.Total)
}

// Derived holds the numbers the UI shows next to the draft. Values that need
// a price are zero while the price is unavailable.
type Derived struct {
	PriceAvailable bool    `json:"priceAvailable"`
	Amount         float64 `json:"amount"`
	Total          float64 `json:"total"`
	MinAmount      float64 `json:"minAmount"`
	MaxAmount      float64 `json:"maxAmount"`
	MinimumAmount  float64 `json:"minimumAmount"`
	SettlementUSD  string  `json:"settlementUsd"`
}

// Derive computes the display numbers of d.
func Derive(d domain.TradeDraft) Derived {
	conv := amount.New(d)
	qty := d.AmountConfig.Total
	total := conv.AmountToTotal(qty)
	if d.AmountInput.Source == domain.AmountFieldTotal {
		total = d.AmountInput.Value
	}
	out := Derived{
		PriceAvailable: conv.PriceAvailable(),
		Amount:         qty,
		Total:          total,
		MinAmount:      conv.MinAmount(),
		MaxAmount:      conv.MaxAmount(),
		MinimumAmount:  conv.CalculateMinimumAmount(),
	}
	if out.PriceAvailable || d.Currency.IsFiat() {
		out.SettlementUSD = amount.FormatUSD(conv.SettlementValue(qty))
	}
	return out
}
