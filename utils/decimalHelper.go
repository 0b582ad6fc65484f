package utils

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Intermediate tax/ratio arithmetic keeps eight fractional digits; only
// aggregation boundaries collapse to cents.
const IntermediatePrecision = 8

var decimalOneHundred = decimal.NewFromInt(100)

// RoundMoney rounds to 2 decimal places, half up.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// PercentOf returns base * percent / 100 at intermediate precision.
func PercentOf(base decimal.Decimal, percent decimal.Decimal) decimal.Decimal {
	return base.Mul(percent).DivRound(decimalOneHundred, IntermediatePrecision)
}

// CalculateDiscountAmount resolves a discount (fixed amount or percentage of
// subTotal) to a currency amount. Percentage discounts are computed against
// the subtotal the caller passes in; for sales that is the post-line-discount
// subtotal.
func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {
	if !discount.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	if discountType == "P" {
		return PercentOf(subTotal, discount)
	}
	return discount
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	dec, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, err
	}
	return dec, nil
}
