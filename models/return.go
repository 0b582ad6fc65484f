package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmretail/pos_backend/config"
	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Return struct {
	ID           int             `gorm:"primary_key" json:"id"`
	SaleId       int             `gorm:"index;not null" json:"sale_id"`
	Reason       string          `gorm:"size:255" json:"reason"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"refund_amount"`
	Items        []ReturnItem    `gorm:"foreignKey:ReturnId" json:"items"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type ReturnItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	ReturnId     int             `gorm:"index;not null" json:"return_id"`
	SaleItemId   int             `gorm:"index;not null" json:"sale_item_id"`
	VariantId    int             `gorm:"index;not null" json:"variant_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	RefundAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"refund_amount"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewReturnItem struct {
	SaleItemId int             `json:"sale_item_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity" binding:"required"`
}

type NewReturn struct {
	SaleId int             `json:"sale_id" binding:"required"`
	Reason string          `json:"reason"`
	Items  []NewReturnItem `json:"items" binding:"required,min=1,dive"`
}

// RefundLine is the computed refund for one returned line.
type RefundLine struct {
	SaleItemId int
	Quantity   decimal.Decimal
	Refund     decimal.Decimal
}

// CalculateRefunds pro-rates the sale's global discount across lines by their
// share of the items subtotal, then refunds the per-unit net paid price times
// the returned quantity, rounded half-up to cents per line.
//
// Pure function: callers pass the original sale items so partial returns over
// several calls always price against the full original lines.
func CalculateRefunds(returnItems []NewReturnItem, saleItems []SaleItem, globalDiscount decimal.Decimal) ([]RefundLine, error) {
	byId := make(map[int]*SaleItem, len(saleItems))
	billItemsSubtotal := decimal.Zero
	for i := range saleItems {
		byId[saleItems[i].ID] = &saleItems[i]
		billItemsSubtotal = billItemsSubtotal.Add(saleItems[i].lineSubtotal())
	}

	refunds := make([]RefundLine, 0, len(returnItems))
	for _, item := range returnItems {
		saleItem, ok := byId[item.SaleItemId]
		if !ok {
			return nil, utils.NewNotFoundError("sale item", item.SaleItemId)
		}
		if !item.Quantity.GreaterThan(decimal.Zero) {
			return nil, utils.NewValidationError("return quantity must be positive for sale item %d", item.SaleItemId)
		}

		lineSubtotal := saleItem.lineSubtotal()
		lineGlobalDiscount := decimal.Zero
		if billItemsSubtotal.GreaterThan(decimal.Zero) {
			lineGlobalDiscount = globalDiscount.Mul(lineSubtotal).
				DivRound(billItemsSubtotal, utils.IntermediatePrecision)
		}
		lineNetPaid := lineSubtotal.Sub(lineGlobalDiscount)

		perUnit := lineNetPaid.DivRound(saleItem.Quantity, utils.IntermediatePrecision)
		refund := utils.RoundMoney(perUnit.Mul(item.Quantity))

		refunds = append(refunds, RefundLine{
			SaleItemId: item.SaleItemId,
			Quantity:   item.Quantity,
			Refund:     refund,
		})
	}
	return refunds, nil
}

// CalculateTotalRefund sums already-rounded per-line refunds without
// re-rounding.
func CalculateTotalRefund(refunds []RefundLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range refunds {
		total = total.Add(line.Refund)
	}
	return total
}

// returnedQuantities sums previously returned quantity per sale item across
// every prior return of the sale.
func returnedQuantities(tx *gorm.DB, saleId int) (map[int]decimal.Decimal, error) {
	var prior []ReturnItem
	err := tx.
		Joins("JOIN returns ON returns.id = return_items.return_id").
		Where("returns.sale_id = ?", saleId).
		Find(&prior).Error
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	qty := make(map[int]decimal.Decimal, len(prior))
	for _, item := range prior {
		qty[item.SaleItemId] = qty[item.SaleItemId].Add(item.Quantity)
	}
	return qty, nil
}

// ReturnService records returns against completed sales: restock, refund
// transaction and sale status update happen in one transaction.
type ReturnService struct {
	db      *gorm.DB
	stock   *InventoryLedger
	auditor Auditor
	logger  *logrus.Logger
}

func NewReturnService(db *gorm.DB, stock *InventoryLedger, auditor Auditor, logger *logrus.Logger) *ReturnService {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &ReturnService{db: db, stock: stock, auditor: auditor, logger: logger}
}

// CreateReturn rejects returns that would exceed the originally sold quantity
// for any line, counting quantities already returned by earlier returns.
func (s *ReturnService) CreateReturn(ctx context.Context, userId int, input *NewReturn) (*Return, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	var ret *Return
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale Sale
		err := tx.Preload("Items").First(&sale, input.SaleId).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("sale", input.SaleId)
		}
		if err != nil {
			return utils.WrapInternal(err)
		}
		if sale.Status == SaleStatusCancelled {
			return utils.NewConflictError("sale %d is cancelled", sale.ID)
		}

		saleItemById := make(map[int]*SaleItem, len(sale.Items))
		for i := range sale.Items {
			saleItemById[sale.Items[i].ID] = &sale.Items[i]
		}

		returnedQty, err := returnedQuantities(tx, sale.ID)
		if err != nil {
			return err
		}

		for _, item := range input.Items {
			saleItem, ok := saleItemById[item.SaleItemId]
			if !ok {
				return utils.NewNotFoundError("sale item", item.SaleItemId)
			}
			remaining := saleItem.Quantity.Sub(returnedQty[saleItem.ID])
			if item.Quantity.GreaterThan(remaining) {
				return utils.NewConflictError(
					"return of %s exceeds remaining quantity %s for sale item %d",
					item.Quantity.String(), remaining.String(), saleItem.ID)
			}
		}

		refunds, err := CalculateRefunds(input.Items, sale.Items, sale.DiscountAmount)
		if err != nil {
			return err
		}
		totalRefund := CalculateTotalRefund(refunds)

		newReturn := Return{
			SaleId:       sale.ID,
			Reason:       input.Reason,
			RefundAmount: totalRefund,
		}
		for i, line := range refunds {
			newReturn.Items = append(newReturn.Items, ReturnItem{
				SaleItemId:   line.SaleItemId,
				VariantId:    saleItemById[input.Items[i].SaleItemId].VariantId,
				Quantity:     line.Quantity,
				RefundAmount: line.Refund,
			})
		}
		if err := tx.Create(&newReturn).Error; err != nil {
			return utils.WrapInternal(err)
		}

		for _, item := range newReturn.Items {
			if err := s.stock.restoreStockTx(tx, item.VariantId, item.Quantity, "sale return", "RETURN", newReturn.ID); err != nil {
				return err
			}
			returnedQty[item.SaleItemId] = returnedQty[item.SaleItemId].Add(item.Quantity)
		}

		if totalRefund.GreaterThan(decimal.Zero) {
			txn := Transaction{
				TransactionType: TransactionTypeRefund,
				Amount:          totalRefund,
				Status:          TransactionStatusCompleted,
				SaleId:          sale.ID,
			}
			if err := txn.checkLink(); err != nil {
				return err
			}
			if err := tx.Create(&txn).Error; err != nil {
				return utils.WrapInternal(err)
			}
		}

		fullyReturned := true
		for _, saleItem := range sale.Items {
			if returnedQty[saleItem.ID].LessThan(saleItem.Quantity) {
				fullyReturned = false
				break
			}
		}
		if fullyReturned {
			if err := tx.Model(&sale).UpdateColumn("Status", SaleStatusRefunded).Error; err != nil {
				return utils.WrapInternal(err)
			}
		}

		ret = &newReturn
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "return.go", "CreateReturn", "return failed", input, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Create", ret.ID, "returns", nil, ret)
	return ret, nil
}

func (s *ReturnService) GetReturn(ctx context.Context, id int) (*Return, error) {
	var ret Return
	err := s.db.WithContext(ctx).Preload("Items").First(&ret, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("return", id)
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &ret, nil
}
