package models

import (
	"time"

	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
)

// Transaction is a money ledger entry linked to exactly one of a sale or a
// purchase order.
type Transaction struct {
	ID              int               `gorm:"primary_key" json:"id"`
	TransactionType TransactionType   `gorm:"size:20;not null" json:"transaction_type"`
	Amount          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaymentMethodId int               `gorm:"index;default:null" json:"payment_method_id"`
	Status          TransactionStatus `gorm:"size:20;not null;default:'Completed'" json:"status"`
	SaleId          int               `gorm:"index;default:null" json:"sale_id"`
	PurchaseOrderId int               `gorm:"index;default:null" json:"purchase_order_id"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (t *Transaction) checkLink() error {
	if (t.SaleId > 0) == (t.PurchaseOrderId > 0) {
		return utils.NewValidationError("transaction must reference exactly one of sale or purchase order")
	}
	return nil
}
