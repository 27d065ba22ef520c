package utils

import (
	"github.com/shopspring/decimal"
)

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int32) float64 {
	return decimal.NewFromFloat(quantity).RoundFloor(decimalPrecision).InexactFloat64()
}

// FormatDecimal renders v with exactly decimalPrecision decimals, rounding down, the way exchange
// endpoints expect quantities and trigger prices.
func FormatDecimal(v float64, decimalPrecision int32) string {
	return decimal.NewFromFloat(v).RoundFloor(decimalPrecision).StringFixed(decimalPrecision)
}

// ParseDecimal parses an exchange number string. Empty strings are zero.
func ParseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}

	return d.InexactFloat64(), nil
}
