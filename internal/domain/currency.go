package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// CurrencyKind tells whether an offer is denominated in fiat or crypto units.
type CurrencyKind string

const (
	CurrencyFiat   CurrencyKind = "fiat"
	CurrencyCrypto CurrencyKind = "crypto"
)

// Currency is the tagged variant Fiat(code) | Crypto(symbol). It is
// classified once when the user picks a currency; every unit conversion
// downstream switches on Kind instead of inspecting the code again.
type Currency struct {
	kind CurrencyKind
	code string
}

// Fiat builds a fiat-denominated currency.
func Fiat(code string) Currency {
	return Currency{kind: CurrencyFiat, code: strings.ToUpper(strings.TrimSpace(code))}
}

// Crypto builds a crypto-denominated currency.
func Crypto(symbol string) Currency {
	return Currency{kind: CurrencyCrypto, code: strings.ToUpper(strings.TrimSpace(symbol))}
}

// fiatCodes is the ISO-4217 subset the exchange settles P2P trades in.
var fiatCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true, "CNY": true, "AUD": true,
	"CAD": true, "CHF": true, "HKD": true, "SGD": true, "SEK": true, "NOK": true,
	"DKK": true, "NZD": true, "KRW": true, "INR": true, "BRL": true, "MXN": true,
	"RUB": true, "TRY": true, "ZAR": true, "PLN": true, "THB": true, "IDR": true,
	"MYR": true, "PHP": true, "VND": true, "AED": true, "SAR": true, "ILS": true,
	"CZK": true, "HUF": true, "RON": true, "UAH": true, "NGN": true, "KES": true,
	"EGP": true, "PKR": true, "BDT": true, "ARS": true, "CLP": true, "COP": true,
	"PEN": true, "TWD": true, "IRR": true, "GHS": true, "MAD": true, "QAR": true,
	"KWD": true, "BHD": true, "OMR": true, "JOD": true, "LKR": true, "NPR": true,
}

// IsFiatCode reports whether code is a three-letter fiat code.
func IsFiatCode(code string) bool {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return fiatCodes[c]
}

// ParseCurrency classifies a currency code into the Fiat or Crypto variant.
func ParseCurrency(code string) (Currency, error) {
	c := strings.TrimSpace(code)
	if c == "" {
		return Currency{}, fmt.Errorf("%w: empty currency", ErrInvalidInput)
	}
	if IsFiatCode(c) {
		return Fiat(c), nil
	}
	return Crypto(c), nil
}

// Kind returns the variant tag. The zero Currency has an empty kind.
func (c Currency) Kind() CurrencyKind { return c.kind }

// Code returns the currency code or asset symbol.
func (c Currency) Code() string { return c.code }

// IsFiat reports whether the currency is fiat-denominated.
func (c Currency) IsFiat() bool { return c.kind == CurrencyFiat }

// IsZero reports whether no currency has been selected yet.
func (c Currency) IsZero() bool { return c.code == "" }

func (c Currency) String() string { return c.code }

type currencyJSON struct {
	Code string       `json:"code"`
	Kind CurrencyKind `json:"kind"`
}

// MarshalJSON encodes the currency as {"code": ..., "kind": ...}.
func (c Currency) MarshalJSON() ([]byte, error) {
	if c.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(currencyJSON{Code: c.code, Kind: c.kind})
}

// UnmarshalJSON accepts either a bare code string or the object form. The
// kind is always re-derived from the code.
func (c *Currency) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = Currency{}
		return nil
	}
	var code string
	if err := json.Unmarshal(data, &code); err != nil {
		var obj currencyJSON
		if objErr := json.Unmarshal(data, &obj); objErr != nil {
			return fmt.Errorf("currency: %w", objErr)
		}
		code = obj.Code
	}
	parsed, err := ParseCurrency(code)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
