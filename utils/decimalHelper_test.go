package utils_test

import (
	"testing"

	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	v, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return v
}

func TestRoundMoneyHalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":  "1.01",
		"1.004":  "1.00",
		"18.181": "18.18",
		"18.185": "18.19",
		"-1.005": "-1.01",
	}
	for input, want := range cases {
		got := utils.RoundMoney(d(t, input))
		assert.True(t, got.Equal(d(t, want)), "RoundMoney(%s) = %s, want %s", input, got, want)
	}
}

func TestPercentOfKeepsIntermediatePrecision(t *testing.T) {
	// 33.33% of 0.01 must not collapse to zero before the money boundary
	got := utils.PercentOf(d(t, "0.01"), d(t, "33.33"))
	assert.True(t, got.Equal(d(t, "0.00003333")), "got %s", got)
}

func TestCalculateDiscountAmount(t *testing.T) {
	subTotal := d(t, "80")

	assert.True(t, utils.CalculateDiscountAmount(subTotal, d(t, "10"), "P").Equal(d(t, "8")))
	assert.True(t, utils.CalculateDiscountAmount(subTotal, d(t, "10"), "A").Equal(d(t, "10")))
	assert.True(t, utils.CalculateDiscountAmount(subTotal, decimal.Zero, "P").IsZero())
	assert.True(t, utils.CalculateDiscountAmount(subTotal, d(t, "-5"), "A").IsZero())
}

func TestParseDecimal(t *testing.T) {
	got, err := utils.ParseDecimal(" 12.3400 ")
	require.NoError(t, err)
	assert.True(t, got.Equal(d(t, "12.34")))

	_, err = utils.ParseDecimal("")
	assert.Error(t, err)
	_, err = utils.ParseDecimal("abc")
	assert.Error(t, err)
}
