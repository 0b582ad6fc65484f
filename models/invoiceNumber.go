package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mmretail/pos_backend/utils"
	"gorm.io/gorm"
)

const invoiceNumberPrefix = "INV-"

// FormatInvoiceNumber renders a sequence number as an invoice identifier,
// zero-padded to at least three digits and growing naturally past that.
func FormatInvoiceNumber(seq int64) string {
	return fmt.Sprintf("%s%03d", invoiceNumberPrefix, seq)
}

// ParseInvoiceSequence extracts the numeric suffix from an invoice number.
func ParseInvoiceSequence(invoiceNumber string) (int64, error) {
	suffix := strings.TrimPrefix(invoiceNumber, invoiceNumberPrefix)
	if suffix == invoiceNumber || suffix == "" {
		return 0, utils.NewValidationError("malformed invoice number %q", invoiceNumber)
	}
	seq, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, utils.NewValidationError("malformed invoice number %q", invoiceNumber)
	}
	return seq, nil
}

// nextInvoiceNumber issues the number following the last one on record. Must
// run inside the sale's transaction; the unique index on invoice_number is
// the final arbiter between two transactions issuing concurrently.
func nextInvoiceNumber(tx *gorm.DB) (string, error) {
	var last string
	// Length-first ordering keeps the comparison numeric once the suffix
	// outgrows its padding.
	err := tx.Model(&Sale{}).
		Select("invoice_number").
		Order("LENGTH(invoice_number) DESC, invoice_number DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return "", utils.WrapInternal(err)
	}

	var seq int64
	if last != "" {
		lastSeq, err := ParseInvoiceSequence(last)
		if err != nil {
			return "", err
		}
		seq = lastSeq
	}
	return FormatInvoiceNumber(seq + 1), nil
}
