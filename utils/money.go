package utils

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatAmount renders an amount with two decimal places
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FormatRupees renders an amount for display, e.g. ₹970.00
func FormatRupees(d decimal.Decimal) string {
	return "₹" + d.StringFixed(2)
}

// ToMinorUnits converts a rupee amount to paise, rounding to the nearest paisa
func ToMinorUnits(d decimal.Decimal) int64 {
	return d.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts paise to a rupee amount
func FromMinorUnits(paise int64) decimal.Decimal {
	return decimal.New(paise, -2)
}
