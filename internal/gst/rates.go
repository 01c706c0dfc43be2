package gst

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// StandardRates are the GST slabs in percent.
var StandardRates = []decimal.Decimal{
	decimal.Zero,
	decimal.NewFromInt(5),
	decimal.NewFromInt(12),
	decimal.NewFromInt(18),
	decimal.NewFromInt(28),
}

// IsStandardRate reports whether rate is one of StandardRates.
func IsStandardRate(rate decimal.Decimal) bool {
	for _, r := range StandardRates {
		if r.Equal(rate) {
			return true
		}
	}
	return false
}

// CheckRate validates a rate chosen for itemID. Strict mode also requires a
// standard slab.
func CheckRate(itemID string, rate decimal.Decimal, strict bool) error {
	if rate.IsNegative() || rate.GreaterThan(hundred) {
		return &RateError{ItemID: itemID, Rate: rate, Err: ErrInvalidRate}
	}
	if strict && !IsStandardRate(rate) {
		return &RateError{ItemID: itemID, Rate: rate, Err: ErrNonStandardRate}
	}
	return nil
}
