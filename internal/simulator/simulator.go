// Package simulator derives reproducible pseudo-prices from an identifier and
// a calendar date. Values are stable for a whole day and change once per day.
package simulator

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf16"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format mixed into every seed.
const DateLayout = "2006-01-02"

// Moduli and bands per instrument class.
const (
	BondModulus = 1000
	BondBand    = 0.005
	BondPar     = 1.0

	ForexModulus  = 100
	ForexBand     = 0.05
	ForexFallback = 1.0

	DerivativeModulus = 100
	DerivativeBand    = 1.0
	DerivativeDefault = 100.0
)

// DefaultForexRates is the base table for simulated currency pairs. Pairs not
// listed here use ForexFallback.
var DefaultForexRates = map[string]float64{
	"USDINR": 83.0,
	"EURUSD": 1.08,
	"GBPUSD": 1.27,
	"USDJPY": 150.0,
	"EURINR": 90.0,
	"GBPINR": 105.0,
	"AUDUSD": 0.66,
	"USDCAD": 1.36,
	"USDCHF": 0.88,
	"USDSGD": 1.35,
	"JPYINR": 0.55,
}

// Hash is the 31-multiplier polynomial string hash with 32-bit signed
// wraparound: h = c + (h<<5 - h) for every UTF-16 code unit c. Characters
// outside the BMP count as their two surrogates.
func Hash(s string) int32 {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = int32(c) + ((h << 5) - h)
	}
	return h
}

// Seed joins an identifier and the ISO calendar date of asOf.
func Seed(id string, asOf time.Time) string {
	return id + asOf.Format(DateLayout)
}

// Fluctuation maps the seed hash into (-1, 1). Go's % keeps the sign of the
// dividend, so the range is symmetric around zero.
func Fluctuation(id string, asOf time.Time, modulus int32) float64 {
	return float64(Hash(Seed(id, asOf))%modulus) / float64(modulus)
}

// BondMultiplier is the par multiplier for a bond, within [1-BondBand, 1+BondBand].
func BondMultiplier(id string, asOf time.Time) float64 {
	return 1 + Fluctuation(id, asOf, BondModulus)*BondBand
}

// Bond returns the simulated bond price on a par value of 1.0.
func Bond(id string, asOf time.Time) decimal.Decimal {
	return decimal.NewFromFloat(BondPar * BondMultiplier(id, asOf)).Round(6)
}

// Forex returns the simulated rate for pair using rates as the base table.
func Forex(pair string, asOf time.Time, rates map[string]float64) decimal.Decimal {
	base, ok := rates[pair]
	if !ok || base <= 0 {
		base = ForexFallback
	}
	return decimal.NewFromFloat(base + Fluctuation(pair, asOf, ForexModulus)*ForexBand).Round(4)
}

var numericToken = regexp.MustCompile(`\d+(?:\.\d+)?`)

// DerivativeBase is the last numeric token embedded in the identifier (the
// strike of "NIFTY24JUN22000CE" is 22000), or DerivativeDefault when none is
// positive.
func DerivativeBase(id string) float64 {
	tokens := numericToken.FindAllString(id, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		v, err := decimal.NewFromString(tokens[i])
		if err != nil {
			continue
		}
		if f, _ := v.Float64(); f > 0 {
			return f
		}
	}
	return DerivativeDefault
}

// Derivative returns the simulated derivative price.
func Derivative(id string, asOf time.Time) decimal.Decimal {
	return decimal.NewFromFloat(DerivativeBase(id) + Fluctuation(id, asOf, DerivativeModulus)*DerivativeBand).Round(2)
}

// NormalizePair strips separators and a Yahoo "=X" suffix from a currency pair.
func NormalizePair(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.TrimSuffix(s, "=X")
	return strings.NewReplacer("/", "", "-", "", "_", "", " ", "").Replace(s)
}
