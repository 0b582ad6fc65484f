package models_test

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmretail/pos_backend/models"
	"github.com/mmretail/pos_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestReserveStockDecrementsAndRecordsFlow(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	require.NoError(t, ledger.ReserveStock(ctx, variant.ID, dec(t, "2")))
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "3")))

	var flows []models.StockFlow
	require.NoError(t, db.Where("variant_id = ?", variant.ID).Find(&flows).Error)
	require.Len(t, flows, 1)
	assert.Equal(t, models.StockFlowTypeReservation, flows[0].FlowType)
	assert.True(t, flows[0].Qty.Equal(dec(t, "-2")))
}

func TestReserveStockLastUnitWinsExactlyOnce(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "1", 0)

	require.NoError(t, ledger.ReserveStock(ctx, variant.ID, dec(t, "1")))

	// a second reservation for the same unit loses the conditional update
	err := ledger.ReserveStock(ctx, variant.ID, dec(t, "1"))
	var stockErr *utils.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.True(t, stockErr.Available.IsZero())
	assert.True(t, variantStockQty(t, db, variant.ID).IsZero())
}

func TestReserveStockConcurrentReservationsWinExactlyOnce(t *testing.T) {
	// The shared-cache in-memory database cannot hold two write
	// transactions in flight, so this test runs against a file-backed
	// database where the busy timeout lets the losing writer wait its turn.
	dsn := fmt.Sprintf("file:%s/stock.db?_pragma=busy_timeout(10000)", t.TempDir())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.MigrateTable(db))

	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "1", 0)

	ctx := t.Context()
	one := dec(t, "1")
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			results <- ledger.ReserveStock(ctx, variant.ID, one)
		}()
	}

	var successes, shortfalls int
	for i := 0; i < 2; i++ {
		err := <-results
		if err == nil {
			successes++
			continue
		}
		var stockErr *utils.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		shortfalls++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, shortfalls)
	assert.True(t, variantStockQty(t, db, variant.ID).IsZero())

	var flowCount int64
	require.NoError(t, db.Model(&models.StockFlow{}).Where("variant_id = ?", variant.ID).Count(&flowCount).Error)
	assert.Equal(t, int64(1), flowCount)
}

func TestReserveStockRejectsNonPositiveQuantity(t *testing.T) {
	db := openTestDB(t)
	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	var validationErr *utils.ValidationError
	err := ledger.ReserveStock(t.Context(), variant.ID, dec(t, "0"))
	require.ErrorAs(t, err, &validationErr)
	err = ledger.ReserveStock(t.Context(), variant.ID, dec(t, "-1"))
	require.ErrorAs(t, err, &validationErr)
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "5")))
}

func TestReserveStockUnknownVariant(t *testing.T) {
	db := openTestDB(t)
	ledger := models.NewInventoryLedger(db, nil, testLogger())

	var notFound *utils.NotFoundError
	err := ledger.ReserveStock(t.Context(), 999, dec(t, "1"))
	require.ErrorAs(t, err, &notFound)
}

func TestRestoreStockIncrementsWithReason(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "5", 0)

	require.NoError(t, ledger.RestoreStock(ctx, variant.ID, dec(t, "3"), "sale cancelled"))
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "8")))

	var flow models.StockFlow
	require.NoError(t, db.Where("variant_id = ?", variant.ID).First(&flow).Error)
	assert.Equal(t, models.StockFlowTypeRestock, flow.FlowType)
	assert.Equal(t, "sale cancelled", flow.Reason)
	assert.True(t, flow.Qty.Equal(dec(t, "3")))
}

func TestReceiveStockCreatesLotAndFlow(t *testing.T) {
	db := openTestDB(t)
	ctx := t.Context()
	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "0", 0)

	require.NoError(t, ledger.ReceiveStock(ctx, variant.ID, dec(t, "12"), dec(t, "4.25"), "LOT-7"))
	assert.True(t, variantStockQty(t, db, variant.ID).Equal(dec(t, "12")))

	var lot models.StockLot
	require.NoError(t, db.Where("variant_id = ?", variant.ID).First(&lot).Error)
	assert.Equal(t, "LOT-7", lot.LotNumber)
	assert.True(t, lot.UnitCost.Equal(dec(t, "4.25")))

	var flow models.StockFlow
	require.NoError(t, db.Where("variant_id = ? AND flow_type = ?", variant.ID, models.StockFlowTypeReceipt).First(&flow).Error)
	assert.True(t, flow.Qty.Equal(dec(t, "12")))
}

func TestReceiveStockGeneratesLotNumberWhenBlank(t *testing.T) {
	db := openTestDB(t)
	ledger := models.NewInventoryLedger(db, nil, testLogger())
	variant := seedVariant(t, db, "SKU-1", "10", "0", 0)

	require.NoError(t, ledger.ReceiveStock(t.Context(), variant.ID, dec(t, "1"), dec(t, "1"), ""))

	var lot models.StockLot
	require.NoError(t, db.Where("variant_id = ?", variant.ID).First(&lot).Error)
	assert.NotEmpty(t, lot.LotNumber)
}
