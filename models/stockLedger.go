package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmretail/pos_backend/config"
	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockFlow is an immutable record of one stock movement on a variant.
// Outgoing movements carry negative qty.
type StockFlow struct {
	ID            int             `gorm:"primary_key" json:"id"`
	VariantId     int             `gorm:"index;not null" json:"variant_id"`
	FlowType      StockFlowType   `gorm:"size:20;not null" json:"flow_type"`
	Qty           decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	Reason        string          `gorm:"size:255;default:null" json:"reason"`
	ReferenceType string          `gorm:"size:20;default:null" json:"reference_type"`
	ReferenceId   int             `gorm:"index;default:null" json:"reference_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// StockLot is a traceable batch created when stock is received against a
// purchase order.
type StockLot struct {
	ID              int             `gorm:"primary_key" json:"id"`
	VariantId       int             `gorm:"index;not null" json:"variant_id"`
	LotNumber       string          `gorm:"size:100;index;not null" json:"lot_number"`
	Qty             decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"qty"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	PurchaseOrderId int             `gorm:"index;default:null" json:"purchase_order_id"`
	ReceivedAt      time.Time       `gorm:"not null" json:"received_at"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// InventoryLedger owns all stock mutations. Every write happens through a
// conditional UPDATE whose row count is checked inside the caller's
// transaction, so concurrent reservations cannot observe a lost update. The
// optional lock client additionally serializes multi-line reservations per
// variant across processes.
type InventoryLedger struct {
	db     *gorm.DB
	locker *redislock.Client
	logger *logrus.Logger
}

func NewInventoryLedger(db *gorm.DB, locker *redislock.Client, logger *logrus.Logger) *InventoryLedger {
	return &InventoryLedger{db: db, locker: locker, logger: logger}
}

// lockVariant obtains the per-variant stock lock. With no lock client the
// conditional updates alone carry the serialization.
func (l *InventoryLedger) lockVariant(ctx context.Context, variantId int) (func(), error) {
	if l.locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("stockLock:%d", variantId)
	lock, err := l.locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(l.logger, "stockLedger.go", "lockVariant", "Could not obtain stock lock", variantId, err)
		return nil, utils.NewConflictError("could not obtain stock lock for variant %d", variantId)
	} else if err != nil {
		config.LogError(l.logger, "stockLedger.go", "lockVariant", "Error obtaining stock lock", variantId, err)
		return nil, utils.WrapInternal(err)
	}
	return func() { _ = lock.Release(ctx) }, nil
}

// variantStock reads the current stock level inside the transaction.
func variantStock(tx *gorm.DB, variantId int) (decimal.Decimal, error) {
	var variant ProductVariant
	err := tx.Select("id", "stock_qty").First(&variant, variantId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, utils.NewNotFoundError("variant", variantId)
	}
	if err != nil {
		return decimal.Zero, utils.WrapInternal(err)
	}
	return variant.StockQty, nil
}

// reserveStockTx decrements stock for one variant inside tx. The decrement is
// conditional on sufficient stock; zero rows affected means another
// transaction won the race or the stock was short all along.
func (l *InventoryLedger) reserveStockTx(tx *gorm.DB, variantId int, qty decimal.Decimal, referenceType string, referenceId int) error {
	if !qty.GreaterThan(decimal.Zero) {
		return utils.NewValidationError("reserve quantity must be positive")
	}

	res := tx.Model(&ProductVariant{}).
		Where("id = ? AND stock_qty >= ?", variantId, qty).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty - ?", qty))
	if res.Error != nil {
		return utils.WrapInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		available, err := variantStock(tx, variantId)
		if err != nil {
			return err
		}
		return &utils.InsufficientStockError{VariantId: variantId, Requested: qty, Available: available}
	}

	flow := StockFlow{
		VariantId:     variantId,
		FlowType:      StockFlowTypeReservation,
		Qty:           qty.Neg(),
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
	}
	if err := tx.Create(&flow).Error; err != nil {
		return utils.WrapInternal(err)
	}
	return nil
}

// reserveAllTx reserves stock for a whole cart: every line is validated for
// availability before any line is decremented, so a partial reservation is
// never observable even inside the transaction.
func (l *InventoryLedger) reserveAllTx(tx *gorm.DB, lines []SaleItem, referenceType string, referenceId int) error {
	for _, line := range lines {
		available, err := variantStock(tx, line.VariantId)
		if err != nil {
			return err
		}
		if available.LessThan(line.Quantity) {
			return &utils.InsufficientStockError{VariantId: line.VariantId, Requested: line.Quantity, Available: available}
		}
	}
	for _, line := range lines {
		if err := l.reserveStockTx(tx, line.VariantId, line.Quantity, referenceType, referenceId); err != nil {
			return err
		}
	}
	return nil
}

// restoreStockTx puts quantity back on a variant. Used by cancellation and
// return paths; fails only when the variant no longer exists.
func (l *InventoryLedger) restoreStockTx(tx *gorm.DB, variantId int, qty decimal.Decimal, reason string, referenceType string, referenceId int) error {
	if !qty.GreaterThan(decimal.Zero) {
		return utils.NewValidationError("restore quantity must be positive")
	}

	res := tx.Model(&ProductVariant{}).
		Where("id = ?", variantId).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty + ?", qty))
	if res.Error != nil {
		return utils.WrapInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("variant", variantId)
	}

	flow := StockFlow{
		VariantId:     variantId,
		FlowType:      StockFlowTypeRestock,
		Qty:           qty,
		Reason:        reason,
		ReferenceType: referenceType,
		ReferenceId:   referenceId,
	}
	if err := tx.Create(&flow).Error; err != nil {
		return utils.WrapInternal(err)
	}
	return nil
}

// receiveStockTx increases stock and creates the lot entry consumed by
// purchase-order receipt. A blank lot number gets a generated one.
func (l *InventoryLedger) receiveStockTx(tx *gorm.DB, variantId int, qty decimal.Decimal, unitCost decimal.Decimal, lotNumber string, purchaseOrderId int) error {
	if !qty.GreaterThan(decimal.Zero) {
		return utils.NewValidationError("receive quantity must be positive")
	}
	if unitCost.IsNegative() {
		return utils.NewValidationError("unit cost must not be negative")
	}

	res := tx.Model(&ProductVariant{}).
		Where("id = ?", variantId).
		UpdateColumn("stock_qty", gorm.Expr("stock_qty + ?", qty))
	if res.Error != nil {
		return utils.WrapInternal(res.Error)
	}
	if res.RowsAffected == 0 {
		return utils.NewNotFoundError("variant", variantId)
	}

	if lotNumber == "" {
		lotNumber = uuid.NewString()
	}
	lot := StockLot{
		VariantId:       variantId,
		LotNumber:       lotNumber,
		Qty:             qty,
		UnitCost:        unitCost,
		PurchaseOrderId: purchaseOrderId,
		ReceivedAt:      time.Now(),
	}
	if err := tx.Create(&lot).Error; err != nil {
		return utils.WrapInternal(err)
	}

	flow := StockFlow{
		VariantId:     variantId,
		FlowType:      StockFlowTypeReceipt,
		Qty:           qty,
		Reason:        "purchase receipt",
		ReferenceType: "PO",
		ReferenceId:   purchaseOrderId,
	}
	if err := tx.Create(&flow).Error; err != nil {
		return utils.WrapInternal(err)
	}
	return nil
}

// ReserveStock is the standalone form of the reservation operation running in
// its own transaction.
func (l *InventoryLedger) ReserveStock(ctx context.Context, variantId int, qty decimal.Decimal) error {
	release, err := l.lockVariant(ctx, variantId)
	if err != nil {
		return err
	}
	defer release()

	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.reserveStockTx(tx, variantId, qty, "", 0)
	})
}

// RestoreStock is the standalone form of the restore operation.
func (l *InventoryLedger) RestoreStock(ctx context.Context, variantId int, qty decimal.Decimal, reason string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.restoreStockTx(tx, variantId, qty, reason, "", 0)
	})
}

// ReceiveStock is the standalone form of the receipt operation.
func (l *InventoryLedger) ReceiveStock(ctx context.Context, variantId int, qty decimal.Decimal, unitCost decimal.Decimal, lotNumber string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return l.receiveStockTx(tx, variantId, qty, unitCost, lotNumber, 0)
	})
}
