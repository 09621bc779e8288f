package submission

import (
	"encoding/json"
	"fmt"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// BuildPayload serialises a draft into the offer creation request. Nested
// configuration objects are sent as JSON strings.
func BuildPayload(d domain.TradeDraft) (domain.OfferPayload, error) {
	amountCfg := d.AmountConfig
	if d.TradeType != domain.TradeTypeSell {
		amountCfg.AvailableBalance = nil
	}
	methods := d.PaymentMethods
	if methods == nil {
		methods = []domain.PaymentMethod{}
	}
	loc := d.LocationSettings
	if loc.Restrictions == nil {
		loc.Restrictions = []string{}
	}

	p := domain.OfferPayload{
		Type:       d.TradeType,
		Currency:   d.Currency.Code(),
		WalletType: d.WalletType,
	}
	var err error
	if p.AmountConfig, err = encode("amountConfig", amountCfg); err != nil {
		return domain.OfferPayload{}, err
	}
	if p.PriceConfig, err = encode("priceConfig", newPriceWire(d.PriceConfig)); err != nil {
		return domain.OfferPayload{}, err
	}
	if p.TradeSettings, err = encode("tradeSettings", d.TradeSettings); err != nil {
		return domain.OfferPayload{}, err
	}
	if p.LocationSettings, err = encode("locationSettings", loc); err != nil {
		return domain.OfferPayload{}, err
	}
	if p.UserRequirements, err = encode("userRequirements", d.UserRequirements); err != nil {
		return domain.OfferPayload{}, err
	}
	if p.PaymentMethods, err = encode("paymentMethods", methods); err != nil {
		return domain.OfferPayload{}, err
	}
	return p, nil
}

// priceWire is the exchange's priceConfig shape: one value, read as the
// fixed price or the margin depending on the model.
type priceWire struct {
	Model       domain.PriceModel `json:"model"`
	Value       float64           `json:"value"`
	MarketPrice float64           `json:"marketPrice"`
	FinalPrice  float64           `json:"finalPrice"`
	MarginType  domain.MarginType `json:"marginType,omitempty"`
}

func newPriceWire(pc domain.PriceConfig) priceWire {
	w := priceWire{
		Model:       pc.Model,
		Value:       pc.Value(),
		MarketPrice: pc.MarketPrice,
		FinalPrice:  pc.FinalPrice,
	}
	if pc.Model == domain.PriceModelMargin {
		w.MarginType = pc.MarginType
	}
	return w
}

func encode(name string, v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("submission: encode %s: %w", name, err)
	}
	return string(b), nil
}
