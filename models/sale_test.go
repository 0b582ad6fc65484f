package models_test

import (
	"fmt"
	"testing"

	"github.com/mmretail/pos_backend/models"
	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSaleExclusiveTotals(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)

	profile := seedProfile(t, db, models.PricingModeExclusive)
	_, err := models.CreateTaxRule(ctx, db, &models.NewTaxRule{
		TaxProfileId: profile.ID,
		Name:         "VAT",
		Scope:        models.TaxRuleScopeGlobal,
		RatePercent:  dec(t, "10"),
	})
	require.NoError(t, err)

	variant := seedVariant(t, db, "SKU-1", "100", "10", 0)
	method := seedPaymentMethod(t, db)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{
			{VariantId: variant.ID, Quantity: dec(t, "2")},
		},
		Payments: []models.NewSalePayment{
			{Amount: dec(t, "220"), PaymentMethodId: method.ID},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-001", sale.InvoiceNumber)
	assert.True(t, sale.Subtotal.Equal(dec(t, "200")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.TotalTax.Equal(dec(t, "20.00")), "tax %s", sale.TotalTax)
	assert.True(t, sale.TotalAmount.Equal(dec(t, "220.00")), "total %s", sale.TotalAmount)
	assert.True(t, sale.PaidAmount.Equal(dec(t, "220")))
	assert.Equal(t, models.SaleStatusCompleted, sale.Status)

	// stock reserved and flow recorded
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "8")))
	var flows []models.StockFlow
	require.NoError(t, db.Where("variant_id = ?", variant.ID).Find(&flows).Error)
	require.Len(t, flows, 1)
	assert.Equal(t, models.StockFlowTypeReservation, flows[0].FlowType)
	assert.True(t, flows[0].Qty.Equal(dec(t, "-2")))
}

func TestCreateSaleInclusiveTotalEqualsDiscountedSubtotal(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)

	profile := seedProfile(t, db, models.PricingModeInclusive)
	_, err := models.CreateTaxRule(ctx, db, &models.NewTaxRule{
		TaxProfileId: profile.ID,
		Name:         "VAT",
		Scope:        models.TaxRuleScopeGlobal,
		RatePercent:  dec(t, "10"),
	})
	require.NoError(t, err)

	variant := seedVariant(t, db, "SKU-1", "100", "10", 0)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{
			{VariantId: variant.ID, Quantity: dec(t, "2")},
		},
	})
	require.NoError(t, err)

	// gross prices already carry the tax
	assert.True(t, sale.TotalTax.Equal(dec(t, "18.18")), "tax %s", sale.TotalTax)
	assert.True(t, sale.TotalAmount.Equal(dec(t, "200.00")), "total %s", sale.TotalAmount)
}

func TestCreateSaleGlobalDiscountOnPostLineDiscountSubtotal(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)

	variant := seedVariant(t, db, "SKU-1", "50", "10", 0)

	discountType := models.DiscountTypePercent
	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{
			// 2 x 50 with a 20 line discount leaves a line subtotal of 80
			{VariantId: variant.ID, Quantity: dec(t, "2"), DiscountAmount: dec(t, "20")},
		},
		DiscountType: &discountType,
		Discount:     dec(t, "10"),
	})
	require.NoError(t, err)

	assert.True(t, sale.Subtotal.Equal(dec(t, "80")), "subtotal %s", sale.Subtotal)
	assert.True(t, sale.DiscountAmount.Equal(dec(t, "8.00")), "discount %s", sale.DiscountAmount)
	assert.True(t, sale.TotalAmount.Equal(dec(t, "72.00")), "total %s", sale.TotalAmount)
}

func TestCreateSaleInsufficientStockLeavesNoTrace(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)

	inStock := seedVariant(t, db, "SKU-1", "10", "5", 0)
	outOfStock := seedVariant(t, db, "SKU-2", "10", "1", 0)

	_, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{
			{VariantId: inStock.ID, Quantity: dec(t, "3")},
			{VariantId: outOfStock.ID, Quantity: dec(t, "2")},
		},
	})
	var stockErr *utils.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, outOfStock.ID, stockErr.VariantId)

	// nothing persisted, nothing decremented, not even for the valid line
	assert.True(t, variantStockQty(t, db, inStock.ID).Equal(dec(t, "5")))
	var saleCount, flowCount int64
	require.NoError(t, db.Model(&models.Sale{}).Count(&saleCount).Error)
	require.NoError(t, db.Model(&models.StockFlow{}).Count(&flowCount).Error)
	assert.Zero(t, saleCount)
	assert.Zero(t, flowCount)
}

func TestCreateSaleRejectsUnknownVariant(t *testing.T) {
	db := openTestDB(t)
	sales, _ := newSaleService(t, db)

	_, err := sales.CreateSale(t.Context(), 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: 999, Quantity: dec(t, "1")}},
	})
	var notFound *utils.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCreateSaleRejectsNonPositiveQuantityAndMissingActor(t *testing.T) {
	db := openTestDB(t)
	sales, _ := newSaleService(t, db)
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	_, err := sales.CreateSale(t.Context(), 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "0")}},
	})
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = sales.CreateSale(t.Context(), 0, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestInvoiceNumbersAreSequentialAndGrowPastPadding(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)
	variant := seedVariant(t, db, "SKU-1", "10", "1000", 0)

	for i := 1; i <= 3; i++ {
		sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
			Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
		})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV-%03d", i), sale.InvoiceNumber)
	}

	// a pre-existing four digit invoice keeps the sequence monotonic
	require.NoError(t, db.Model(&models.Sale{}).
		Where("invoice_number = ?", "INV-003").
		Update("invoice_number", "INV-1041").Error)
	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "INV-1042", sale.InvoiceNumber)
}

func TestCancelSaleRestoresStockOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "3")}},
	})
	require.NoError(t, err)
	require.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "2")))

	cancelled, err := sales.CancelSale(ctx, 1, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCancelled, cancelled.Status)
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "5")))

	// cancelling again must not restore stock twice
	_, err = sales.CancelSale(ctx, 1, sale.ID)
	var conflict *utils.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "5")))
}

func TestCancelSaleAfterFullReturnConflictsWithoutRestocking(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, ledger := newSaleService(t, db)
	returns := models.NewReturnService(db, ledger, models.NopAuditor{}, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "10", 0)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "2")}},
	})
	require.NoError(t, err)
	require.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "8")))

	_, err = returns.CreateReturn(ctx, 1, &models.NewReturn{
		SaleId: sale.ID,
		Items:  []models.NewReturnItem{{SaleItemId: sale.Items[0].ID, Quantity: dec(t, "2")}},
	})
	require.NoError(t, err)
	require.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "10")))

	// the return already put both units back; cancelling now must not
	// restore them again
	_, err = sales.CancelSale(ctx, 1, sale.ID)
	var conflict *utils.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "10")))
}

func TestCancelSaleAfterPartialReturnRestoresOnlyRemaining(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, ledger := newSaleService(t, db)
	returns := models.NewReturnService(db, ledger, models.NopAuditor{}, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "10", 0)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "3")}},
	})
	require.NoError(t, err)
	require.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "7")))

	_, err = returns.CreateReturn(ctx, 1, &models.NewReturn{
		SaleId: sale.ID,
		Items:  []models.NewReturnItem{{SaleItemId: sale.Items[0].ID, Quantity: dec(t, "1")}},
	})
	require.NoError(t, err)
	require.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "8")))

	cancelled, err := sales.CancelSale(ctx, 1, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SaleStatusCancelled, cancelled.Status)
	// 1 of 3 came back via the return, the cancel restores the other 2
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "10")))
}

func TestAddPaymentAccumulatesPaidAmount(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)
	variant := seedVariant(t, db, "SKU-1", "40", "5", 0)
	method := seedPaymentMethod(t, db)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
		Payments: []models.NewSalePayment{
			{Amount: dec(t, "15"), PaymentMethodId: method.ID},
		},
	})
	require.NoError(t, err)

	after, err := sales.AddPayment(ctx, 1, sale.ID, dec(t, "25"), method.ID)
	require.NoError(t, err)
	assert.True(t, after.PaidAmount.Equal(dec(t, "40")), "paid %s", after.PaidAmount)

	var txns []models.Transaction
	require.NoError(t, db.Where("sale_id = ?", sale.ID).Find(&txns).Error)
	assert.Len(t, txns, 2)

	_, err = sales.AddPayment(ctx, 1, sale.ID, decimal.Zero, method.ID)
	var validationErr *utils.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestFulfillSaleTransitions(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
	})
	require.NoError(t, err)

	fulfilled, err := sales.FulfillSale(ctx, 1, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FulfillmentStatusFulfilled, fulfilled.FulfillmentStatus)

	var conflict *utils.ConflictError
	_, err = sales.FulfillSale(ctx, 1, sale.ID)
	require.ErrorAs(t, err, &conflict)

	// cancelled sales cannot be fulfilled
	other, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
	})
	require.NoError(t, err)
	_, err = sales.CancelSale(ctx, 1, other.ID)
	require.NoError(t, err)
	_, err = sales.FulfillSale(ctx, 1, other.ID)
	require.ErrorAs(t, err, &conflict)
}

func TestCreateSaleWritesHistory(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	sales, _ := newSaleService(t, db)
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	sale, err := sales.CreateSale(ctx, 7, &models.NewSale{
		Items: []models.NewSaleItem{{VariantId: variant.ID, Quantity: dec(t, "1")}},
	})
	require.NoError(t, err)

	var histories []models.History
	require.NoError(t, db.Where("reference_type = ?", "sales").Find(&histories).Error)
	require.Len(t, histories, 1)
	assert.Equal(t, 7, histories[0].UserId)
	assert.Equal(t, sale.ID, histories[0].ReferenceID)
}
