// pos-demo seeds a minimal catalog and runs one checkout end to end:
// tax profile + rule, two variants with stock, a sale with a global discount,
// then a partial return against the first line.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/pos-demo
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mmretail/pos_backend/config"
	"github.com/mmretail/pos_backend/models"
	"github.com/shopspring/decimal"
)

func main() {
	ctx := context.Background()
	config.LoadEnv()
	logger := config.NewLogger()

	db, err := config.OpenDatabase()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	// redis is optional; without it stock updates still serialize through
	// conditional decrements
	var ledger *models.InventoryLedger
	if _, locker, err := config.OpenRedis(ctx); err == nil {
		ledger = models.NewInventoryLedger(db, locker, logger)
	} else {
		logger.WithField("error", err).Warn("redis unavailable, continuing without distributed locks")
		ledger = models.NewInventoryLedger(db, nil, logger)
	}

	auditor := models.NewHistoryAuditor(db, logger)
	resolver := models.NewTaxRuleResolver(db)
	sales := models.NewSaleService(db, resolver, ledger, auditor, logger)
	returns := models.NewReturnService(db, ledger, auditor, logger)

	profile, err := models.CreateTaxProfile(ctx, db, &models.NewTaxProfile{
		Name:        "Demo GST",
		CountryCode: "SG",
		PricingMode: models.PricingModeExclusive,
	})
	if err != nil {
		fail("create tax profile", err)
	}
	if _, err := models.CreateTaxRule(ctx, db, &models.NewTaxRule{
		TaxProfileId: profile.ID,
		Name:         "GST 9%",
		Scope:        models.TaxRuleScopeGlobal,
		RatePercent:  decimal.NewFromInt(9),
	}); err != nil {
		fail("create tax rule", err)
	}

	method := models.PaymentMethod{Name: "Cash"}
	if err := db.WithContext(ctx).Create(&method).Error; err != nil {
		fail("create payment method", err)
	}

	coffee := models.ProductVariant{Sku: "COF-250", Name: "Coffee 250g", Price: decimal.NewFromInt(12), StockQty: decimal.NewFromInt(20)}
	filter := models.ProductVariant{Sku: "FLT-100", Name: "Paper filters", Price: decimal.NewFromInt(4), StockQty: decimal.NewFromInt(50)}
	if err := db.WithContext(ctx).Create(&coffee).Error; err != nil {
		fail("create variant", err)
	}
	if err := db.WithContext(ctx).Create(&filter).Error; err != nil {
		fail("create variant", err)
	}

	discountType := models.DiscountTypeAmount
	sale, err := sales.CreateSale(ctx, 1, &models.NewSale{
		Items: []models.NewSaleItem{
			{VariantId: coffee.ID, Quantity: decimal.NewFromInt(2)},
			{VariantId: filter.ID, Quantity: decimal.NewFromInt(1)},
		},
		DiscountType: &discountType,
		Discount:     decimal.NewFromInt(3),
		Payments: []models.NewSalePayment{
			{Amount: decimal.NewFromInt(30), PaymentMethodId: method.ID},
		},
	})
	if err != nil {
		fail("create sale", err)
	}
	fmt.Printf("sale %s: subtotal %s, discount %s, tax %s, total %s, paid %s\n",
		sale.InvoiceNumber, sale.Subtotal, sale.DiscountAmount, sale.TotalTax, sale.TotalAmount, sale.PaidAmount)

	ret, err := returns.CreateReturn(ctx, 1, &models.NewReturn{
		SaleId: sale.ID,
		Reason: "customer changed mind",
		Items: []models.NewReturnItem{
			{SaleItemId: sale.Items[0].ID, Quantity: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		fail("create return", err)
	}
	fmt.Printf("return %d: refund %s\n", ret.ID, ret.RefundAmount)
}

func fail(step string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", step, err)
	os.Exit(1)
}
