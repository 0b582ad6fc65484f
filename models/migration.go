package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or updates every table the module owns.
func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&Customer{}, &Supplier{}, &PaymentMethod{},
		&TaxCategory{}, &TaxProfile{}, &TaxRule{},
		&ProductVariant{}, &StockFlow{}, &StockLot{},
		&Sale{}, &SaleItem{},
		&Return{}, &ReturnItem{},
		&PurchaseOrder{}, &PurchaseOrderItem{},
		&Transaction{},
		&History{},
	)
}
