package models_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/mmretail/pos_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openTestDB gives each test its own shared-cache in-memory database so the
// gorm connection pool sees one schema.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, models.MigrateTable(db))
	return db
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func seedVariant(t *testing.T, db *gorm.DB, sku string, price string, stock string, taxCategoryId int) *models.ProductVariant {
	t.Helper()
	variant := models.ProductVariant{
		Sku:           sku,
		Name:          "Variant " + sku,
		Price:         dec(t, price),
		StockQty:      dec(t, stock),
		TaxCategoryId: taxCategoryId,
	}
	require.NoError(t, db.Create(&variant).Error)
	return &variant
}

func seedPaymentMethod(t *testing.T, db *gorm.DB) *models.PaymentMethod {
	t.Helper()
	method := models.PaymentMethod{Name: "Cash"}
	require.NoError(t, db.Create(&method).Error)
	return &method
}

func seedSupplier(t *testing.T, db *gorm.DB) *models.Supplier {
	t.Helper()
	supplier := models.Supplier{Name: "Acme Wholesale"}
	require.NoError(t, db.Create(&supplier).Error)
	return &supplier
}

func seedCustomer(t *testing.T, db *gorm.DB, customerType string) *models.Customer {
	t.Helper()
	customer := models.Customer{Name: "Test Customer", CustomerType: customerType}
	require.NoError(t, db.Create(&customer).Error)
	return &customer
}

func seedProfile(t *testing.T, db *gorm.DB, mode models.PricingMode) *models.TaxProfile {
	t.Helper()
	profile := models.TaxProfile{
		Name:        "Test Profile",
		CountryCode: "SG",
		PricingMode: mode,
	}
	require.NoError(t, db.Create(&profile).Error)
	return &profile
}

func newSaleService(t *testing.T, db *gorm.DB) (*models.SaleService, *models.InventoryLedger) {
	t.Helper()
	logger := testLogger()
	ledger := models.NewInventoryLedger(db, nil, logger)
	resolver := models.NewTaxRuleResolver(db)
	auditor := models.NewHistoryAuditor(db, logger)
	return models.NewSaleService(db, resolver, ledger, auditor, logger), ledger
}

func variantStockQty(t *testing.T, db *gorm.DB, variantId int) decimal.Decimal {
	t.Helper()
	var variant models.ProductVariant
	require.NoError(t, db.First(&variant, variantId).Error)
	return variant.StockQty
}
