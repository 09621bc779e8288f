package amount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/p2poffer/internal/domain"
)

func cryptoConv(price, min, max float64) Converter {
	return Converter{Currency: domain.Crypto("BTC"), FinalPrice: price, Min: min, Max: max}
}

func fiatConv(price, min, max float64) Converter {
	return Converter{Currency: domain.Fiat("EUR"), FinalPrice: price, Min: min, Max: max}
}

func TestCryptoBounds(t *testing.T) {
	c := cryptoConv(50000, 100, 5000)

	assert.InDelta(t, 0.002, c.MinAmount(), 1e-12)
	assert.InDelta(t, 0.1, c.MaxAmount(), 1e-12)
	assert.InDelta(t, 0.0021, c.CalculateMinimumAmount(), 1e-12)
}

func TestFiatBoundsApplyDirectly(t *testing.T) {
	c := fiatConv(0.5, 100, 5000)

	assert.Equal(t, 100.0, c.MinAmount())
	assert.Equal(t, 5000.0, c.MaxAmount())
	assert.InDelta(t, 52.5, c.CalculateMinimumAmount(), 1e-9)
	assert.Equal(t, 250.0, c.SettlementValue(250))
	assert.InDelta(t, 500.0, c.TotalValue(250), 1e-9)
}

func TestCryptoTotalValue(t *testing.T) {
	c := cryptoConv(50000, 100, 5000)

	assert.InDelta(t, 50.0, c.TotalValue(0.001), 1e-9)
	assert.InDelta(t, 50.0, c.SettlementValue(0.001), 1e-9)
	assert.Equal(t, "50.00", c.FormatTotalValue(0.001))
}

func TestFormatTotalValue_Fiat(t *testing.T) {
	c := fiatConv(40000, 10, 1000)
	assert.Equal(t, "0.00250000", c.FormatTotalValue(100))
}

func TestRoundTrip_AmountTotalAmount(t *testing.T) {
	prices := []float64{0.0001, 0.37, 1, 3.3333, 42000, 50000, 1e7}
	amounts := []float64{0.00000001, 0.002, 1, 12.5, 987654.321}

	for _, p := range prices {
		c := cryptoConv(p, 100, 5000)
		for _, a := range amounts {
			back := c.TotalToAmount(c.AmountToTotal(a))
			assert.LessOrEqual(t, math.Abs(back-a), Epsilon(a), "price=%v amount=%v", p, a)
		}
	}
}

func TestResolve_NoFeedback(t *testing.T) {
	c := cryptoConv(50000, 100, 5000)

	amt, total := c.Resolve(domain.AmountInput{Source: domain.AmountFieldAmount, Value: 0.01})
	assert.Equal(t, 0.01, amt)
	assert.InDelta(t, 500.0, total, 1e-9)

	amt, total = c.Resolve(domain.AmountInput{Source: domain.AmountFieldTotal, Value: 250})
	assert.Equal(t, 250.0, total)
	assert.InDelta(t, 0.005, amt, 1e-12)
}

func TestUnavailablePrice(t *testing.T) {
	for _, p := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		c := cryptoConv(p, 100, 5000)
		assert.False(t, c.PriceAvailable())
		assert.Zero(t, c.MinAmount())
		assert.Zero(t, c.MaxAmount())
		assert.Zero(t, c.TotalValue(1))
		assert.Zero(t, c.AmountToTotal(1))
		assert.Zero(t, c.TotalToAmount(1))
		assert.Zero(t, c.CalculateMinimumAmount())
		assert.Empty(t, c.FormatTotalValue(1))
	}
}

func TestEpsilonBoundaries(t *testing.T) {
	c := cryptoConv(3, 100, 200)
	minAmount := c.MinAmount()

	assert.False(t, c.BelowMinimum(minAmount))
	assert.False(t, c.BelowMinimum(minAmount*(1-limitEpsilon/2)))
	assert.True(t, c.BelowMinimum(minAmount*(1-limitEpsilon*2)))

	maxAmount := c.MaxAmount()
	assert.False(t, c.AboveMaximum(maxAmount))
	assert.False(t, c.AboveMaximum(maxAmount*(1+limitEpsilon/2)))
	assert.True(t, c.AboveMaximum(maxAmount*(1+limitEpsilon*2)))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "100", FormatLimit(100))
	assert.Equal(t, "99.5", FormatLimit(99.5))
	assert.Equal(t, "50.00", FormatUSD(50))
	assert.Equal(t, "12.35", FormatUSD(12.345))
}
