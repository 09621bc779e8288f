package wizard

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

// Patch is a typed change emitted by one wizard step. Patches only write the
// fields they own; derived fields are recomputed by the reducer afterwards.
// Every patch is idempotent.
type Patch interface {
	Kind() string
	apply(d *domain.TradeDraft)
}

// SetTradeType selects the trade side.
type SetTradeType struct {
	TradeType domain.TradeType `json:"tradeType"`
}

func (SetTradeType) Kind() string { return "tradeType" }

func (p SetTradeType) apply(d *domain.TradeDraft) {
	if d.TradeType != p.TradeType {
		d.AmountConfig.AvailableBalance = nil
	}
	d.TradeType = p.TradeType
}

func (p SetTradeType) check() (Patch, error) {
	tt, err := domain.ParseTradeType(string(p.TradeType))
	if err != nil {
		return nil, err
	}
	return SetTradeType{TradeType: tt}, nil
}

// SetWalletType selects the balance pool. Changing it invalidates the market
// price and balance fetched for the previous key.
type SetWalletType struct {
	WalletType domain.WalletType `json:"walletType"`
}

func (SetWalletType) Kind() string { return "walletType" }

func (p SetWalletType) apply(d *domain.TradeDraft) {
	if d.WalletType != p.WalletType {
		resetKeyed(d)
	}
	d.WalletType = p.WalletType
}

func (p SetWalletType) check() (Patch, error) {
	wt, err := domain.ParseWalletType(string(p.WalletType))
	if err != nil {
		return nil, err
	}
	return SetWalletType{WalletType: wt}, nil
}

// SetCurrency selects the offer currency. Changing it invalidates the market
// price and balance fetched for the previous key.
type SetCurrency struct {
	Currency domain.Currency `json:"currency"`
}

func (SetCurrency) Kind() string { return "currency" }

func (p SetCurrency) apply(d *domain.TradeDraft) {
	if d.Currency != p.Currency {
		resetKeyed(d)
	}
	d.Currency = p.Currency
}

func (p SetCurrency) check() (Patch, error) {
	if p.Currency.IsZero() {
		return nil, fmt.Errorf("%w: currency is required", domain.ErrInvalidInput)
	}
	return p, nil
}

func resetKeyed(d *domain.TradeDraft) {
	d.PriceConfig.MarketPrice = 0
	d.AmountConfig.AvailableBalance = nil
}

// SetAmount records an edit of the amount field. The total is derived.
type SetAmount struct {
	Value float64 `json:"value"`
}

func (SetAmount) Kind() string { return "amount" }

func (p SetAmount) apply(d *domain.TradeDraft) {
	d.AmountInput = domain.AmountInput{Source: domain.AmountFieldAmount, Value: p.Value}
}

func (p SetAmount) check() (Patch, error) {
	if err := finite("amount", p.Value); err != nil {
		return nil, err
	}
	return p, nil
}

// SetTotal records an edit of the total field. The amount is derived.
type SetTotal struct {
	Value float64 `json:"value"`
}

func (SetTotal) Kind() string { return "total" }

func (p SetTotal) apply(d *domain.TradeDraft) {
	d.AmountInput = domain.AmountInput{Source: domain.AmountFieldTotal, Value: p.Value}
}

func (p SetTotal) check() (Patch, error) {
	if err := finite("total", p.Value); err != nil {
		return nil, err
	}
	return p, nil
}

// SetLimits sets the USD-denominated trade limits.
type SetLimits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (SetLimits) Kind() string { return "limits" }

func (p SetLimits) apply(d *domain.TradeDraft) {
	d.AmountConfig.Min = p.Min
	d.AmountConfig.Max = p.Max
}

func (p SetLimits) check() (Patch, error) {
	if err := finite("min", p.Min); err != nil {
		return nil, err
	}
	if err := finite("max", p.Max); err != nil {
		return nil, err
	}
	return p, nil
}

// SetPriceModel switches the pricing model.
type SetPriceModel struct {
	Model domain.PriceModel `json:"model"`
}

func (SetPriceModel) Kind() string { return "priceModel" }

func (p SetPriceModel) apply(d *domain.TradeDraft) {
	d.PriceConfig.Model = p.Model
}

func (p SetPriceModel) check() (Patch, error) {
	m := domain.PriceModel(strings.ToUpper(strings.TrimSpace(string(p.Model))))
	switch m {
	case domain.PriceModelFixed, domain.PriceModelMarket, domain.PriceModelMargin:
		return SetPriceModel{Model: m}, nil
	}
	return nil, fmt.Errorf("%w: price model %q", domain.ErrInvalidInput, p.Model)
}

// SetPriceValue sets the parameter of the active model: the fixed price under
// FIXED, the margin under MARGIN. Under MARKET there is no parameter and the
// patch is a no-op. The other model's parameter is left untouched.
type SetPriceValue struct {
	Value float64 `json:"value"`
}

func (SetPriceValue) Kind() string { return "priceValue" }

func (p SetPriceValue) apply(d *domain.TradeDraft) {
	switch d.PriceConfig.Model {
	case domain.PriceModelFixed:
		d.PriceConfig.FixedValue = p.Value
	case domain.PriceModelMargin:
		d.PriceConfig.MarginValue = p.Value
	}
}

func (p SetPriceValue) check() (Patch, error) {
	if err := finite("price value", p.Value); err != nil {
		return nil, err
	}
	return p, nil
}

// SetMarginType selects percentage or fixed-offset margins.
type SetMarginType struct {
	MarginType domain.MarginType `json:"marginType"`
}

func (SetMarginType) Kind() string { return "marginType" }

func (p SetMarginType) apply(d *domain.TradeDraft) {
	d.PriceConfig.MarginType = p.MarginType
}

func (p SetMarginType) check() (Patch, error) {
	switch mt := domain.MarginType(strings.ToLower(strings.TrimSpace(string(p.MarginType)))); mt {
	case domain.MarginPercentage, domain.MarginFixed:
		return SetMarginType{MarginType: mt}, nil
	}
	return nil, fmt.Errorf("%w: margin type %q", domain.ErrInvalidInput, p.MarginType)
}

// SetMarketPrice is emitted by the price poller. It is dropped when Key no
// longer matches the draft, so a poll for a superseded key cannot overwrite
// the price of the current one.
type SetMarketPrice struct {
	Key   domain.PriceKey
	Price float64
}

func (SetMarketPrice) Kind() string { return "marketPrice" }

func (p SetMarketPrice) apply(d *domain.TradeDraft) {
	if d.PriceKey() != p.Key {
		return
	}
	d.PriceConfig.MarketPrice = p.Price
}

// SetAvailableBalance is emitted by the balance fetch. Like SetMarketPrice it
// is dropped for a superseded key. A nil Balance marks the balance unknown.
type SetAvailableBalance struct {
	Key     domain.PriceKey
	Balance *float64
}

func (SetAvailableBalance) Kind() string { return "availableBalance" }

func (p SetAvailableBalance) apply(d *domain.TradeDraft) {
	if d.PriceKey() != p.Key {
		return
	}
	if p.Balance == nil {
		d.AmountConfig.AvailableBalance = nil
		return
	}
	v := *p.Balance
	d.AmountConfig.AvailableBalance = &v
}

// SetPaymentMethods replaces the selection. Order is preserved and duplicate
// ids keep their first occurrence.
type SetPaymentMethods struct {
	Methods []domain.PaymentMethod `json:"methods"`
}

func (SetPaymentMethods) Kind() string { return "paymentMethods" }

func (p SetPaymentMethods) apply(d *domain.TradeDraft) {
	seen := make(map[string]bool, len(p.Methods))
	out := make([]domain.PaymentMethod, 0, len(p.Methods))
	for _, pm := range p.Methods {
		if seen[pm.ID] {
			continue
		}
		seen[pm.ID] = true
		out = append(out, pm)
	}
	d.PaymentMethods = out
}

func (p SetPaymentMethods) check() (Patch, error) {
	for _, pm := range p.Methods {
		if pm.ID == "" {
			return nil, fmt.Errorf("%w: payment method id is required", domain.ErrInvalidInput)
		}
	}
	return p, nil
}

// AddPaymentMethod appends a method unless one with the same id is selected.
type AddPaymentMethod struct {
	Method domain.PaymentMethod `json:"method"`
}

func (AddPaymentMethod) Kind() string { return "addPaymentMethod" }

func (p AddPaymentMethod) apply(d *domain.TradeDraft) {
	for _, pm := range d.PaymentMethods {
		if pm.ID == p.Method.ID {
			return
		}
	}
	d.PaymentMethods = append(d.PaymentMethods, p.Method)
}

func (p AddPaymentMethod) check() (Patch, error) {
	if p.Method.ID == "" {
		return nil, fmt.Errorf("%w: payment method id is required", domain.ErrInvalidInput)
	}
	return p, nil
}

// RemovePaymentMethod drops a method from the selection.
type RemovePaymentMethod struct {
	ID string `json:"id"`
}

func (RemovePaymentMethod) Kind() string { return "removePaymentMethod" }

func (p RemovePaymentMethod) apply(d *domain.TradeDraft) {
	out := d.PaymentMethods[:0:0]
	for _, pm := range d.PaymentMethods {
		if pm.ID != p.ID {
			out = append(out, pm)
		}
	}
	d.PaymentMethods = out
}

// SetTradeSettings replaces the trade settings.
type SetTradeSettings struct {
	Settings domain.TradeSettings `json:"settings"`
}

func (SetTradeSettings) Kind() string { return "tradeSettings" }

func (p SetTradeSettings) apply(d *domain.TradeDraft) {
	d.TradeSettings = p.Settings
}

func (p SetTradeSettings) check() (Patch, error) {
	s := p.Settings
	switch v := domain.Visibility(strings.ToUpper(strings.TrimSpace(string(s.Visibility)))); v {
	case "":
		s.Visibility = domain.VisibilityPublic
	case domain.VisibilityPublic, domain.VisibilityPrivate:
		s.Visibility = v
	default:
		return nil, fmt.Errorf("%w: visibility %q", domain.ErrInvalidInput, s.Visibility)
	}
	if s.AutoCancel < 0 {
		return nil, fmt.Errorf("%w: auto cancel must not be negative", domain.ErrInvalidInput)
	}
	return SetTradeSettings{Settings: s}, nil
}

// SetLocation replaces the location settings. Restrictions are normalised to
// an upper-case, sorted, duplicate-free set.
type SetLocation struct {
	Location domain.LocationSettings `json:"location"`
}

func (SetLocation) Kind() string { return "location" }

func (p SetLocation) apply(d *domain.TradeDraft) {
	loc := p.Location
	loc.Country = strings.TrimSpace(loc.Country)
	loc.Restrictions = normalizeRestrictions(loc.Restrictions)
	d.LocationSettings = loc
}

func normalizeRestrictions(in []string) []string {
	set := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c == "" || set[c] {
			continue
		}
		set[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// SetUserRequirements replaces the counterparty filters. Out-of-range values
// are clamped; requirements never block completion.
type SetUserRequirements struct {
	Requirements domain.UserRequirements `json:"requirements"`
}

func (SetUserRequirements) Kind() string { return "userRequirements" }

func (p SetUserRequirements) apply(d *domain.TradeDraft) {
	r := p.Requirements
	r.MinCompletedTrades = max(r.MinCompletedTrades, 0)
	r.MinAccountAge = max(r.MinAccountAge, 0)
	if math.IsNaN(r.MinSuccessRate) {
		r.MinSuccessRate = 0
	}
	r.MinSuccessRate = math.Min(math.Max(r.MinSuccessRate, 0), 100)
	d.UserRequirements = r
}

func finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", domain.ErrInvalidInput, field)
	}
	return nil
}

// checker is implemented by patches that normalise or reject decoded input.
type checker interface {
	check() (Patch, error)
}

func decodeAs[T Patch](data json.RawMessage) (Patch, error) {
	var p T
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrInvalidInput, err.Error())
		}
	}
	if c, ok := any(p).(checker); ok {
		return c.check()
	}
	return p, nil
}

// decoders lists the patches a client may send. Market price and balance
// patches are produced internally and cannot be decoded.
var decoders = map[string]func(json.RawMessage) (Patch, error){
	SetTradeType{}.Kind():        decodeAs[SetTradeType],
	SetWalletType{}.Kind():       decodeAs[SetWalletType],
	SetCurrency{}.Kind():         decodeAs[SetCurrency],
	SetAmount{}.Kind():           decodeAs[SetAmount],
	SetTotal{}.Kind():            decodeAs[SetTotal],
	SetLimits{}.Kind():           decodeAs[SetLimits],
	SetPriceModel{}.Kind():       decodeAs[SetPriceModel],
	SetPriceValue{}.Kind():       decodeAs[SetPriceValue],
	SetMarginType{}.Kind():       decodeAs[SetMarginType],
	SetPaymentMethods{}.Kind():   decodeAs[SetPaymentMethods],
	AddPaymentMethod{}.Kind():    decodeAs[AddPaymentMethod],
	RemovePaymentMethod{}.Kind(): decodeAs[RemovePaymentMethod],
	SetTradeSettings{}.Kind():    decodeAs[SetTradeSettings],
	SetLocation{}.Kind():         decodeAs[SetLocation],
	SetUserRequirements{}.Kind(): decodeAs[SetUserRequirements],
}

// DecodePatch builds a patch from its wire form {"kind": ..., "data": ...}.
func DecodePatch(kind string, data json.RawMessage) (Patch, error) {
	dec, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown patch kind %q", domain.ErrInvalidInput, kind)
	}
	return dec(data)
}
