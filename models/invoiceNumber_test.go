package models_test

import (
	"testing"

	"github.com/mmretail/pos_backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumberPadsToThreeDigits(t *testing.T) {
	assert.Equal(t, "INV-001", models.FormatInvoiceNumber(1))
	assert.Equal(t, "INV-042", models.FormatInvoiceNumber(42))
	assert.Equal(t, "INV-999", models.FormatInvoiceNumber(999))
	assert.Equal(t, "INV-1000", models.FormatInvoiceNumber(1000))
}

func TestParseInvoiceSequenceRoundTrip(t *testing.T) {
	for _, seq := range []int64{1, 99, 999, 1000, 123456} {
		parsed, err := models.ParseInvoiceSequence(models.FormatInvoiceNumber(seq))
		require.NoError(t, err)
		assert.Equal(t, seq, parsed)
	}
}

func TestParseInvoiceSequenceRejectsMalformed(t *testing.T) {
	for _, bad := range []string{"", "INV-", "INV-x1", "042", "inv-042"} {
		_, err := models.ParseInvoiceSequence(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
