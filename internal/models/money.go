package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Category selects the revenue split applied to a gross amount.
type Category string

const (
	CategorySession     Category = "session"
	CategoryPromotional Category = "promotional"
	CategoryGift        Category = "gift"
	CategoryTip         Category = "tip"
	CategoryProduct     Category = "product"
	CategoryNone        Category = ""
)

// MinorUnits is the number of decimal places in the settlement currency.
const MinorUnits = 2

// FormatAmount renders minor units as a major-unit string, e.g. 1120 -> "11.20".
func FormatAmount(minor int64) string {
	return decimal.New(minor, -MinorUnits).StringFixed(MinorUnits)
}

// ParseAmount converts a major-unit decimal string from the gateway into minor units.
// Amounts with more precision than the currency supports are rejected.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	scaled := d.Shift(MinorUnits)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("invalid amount %q: too many decimal places", s)
	}
	return scaled.IntPart(), nil
}
