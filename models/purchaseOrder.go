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

type PurchaseOrder struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	SupplierId    int                 `gorm:"index;not null" json:"supplier_id"`
	CurrentStatus PurchaseOrderStatus `gorm:"size:20;not null;default:'Pending'" json:"current_status"`
	TotalAmount   decimal.Decimal     `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	Items         []PurchaseOrderItem `gorm:"foreignKey:PurchaseOrderId" json:"items"`
	ReceivedAt    *time.Time          `gorm:"default:null" json:"received_at"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseOrderItem struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PurchaseOrderId int             `gorm:"index;not null;uniqueIndex:idx_po_variant" json:"purchase_order_id"`
	VariantId       int             `gorm:"not null;uniqueIndex:idx_po_variant" json:"variant_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	UnitCost        decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewPurchaseOrderItem struct {
	VariantId int             `json:"variant_id" binding:"required"`
	Quantity  decimal.Decimal `json:"quantity" binding:"required"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

type NewPurchaseOrder struct {
	SupplierId int                    `json:"supplier_id" binding:"required"`
	Items      []NewPurchaseOrderItem `json:"items" binding:"required,min=1,dive"`
}

func (input *NewPurchaseOrder) validate(ctx context.Context, db *gorm.DB) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	seen := make(map[int]bool, len(input.Items))
	for _, item := range input.Items {
		if !item.Quantity.GreaterThan(decimal.Zero) {
			return utils.NewValidationError("quantity must be positive for variant %d", item.VariantId)
		}
		if item.UnitCost.IsNegative() {
			return utils.NewValidationError("unit cost must not be negative for variant %d", item.VariantId)
		}
		if seen[item.VariantId] {
			return utils.NewValidationError("variant %d appears more than once", item.VariantId)
		}
		seen[item.VariantId] = true
		var count int64
		if err := db.WithContext(ctx).Model(&ProductVariant{}).Where("id = ?", item.VariantId).Count(&count).Error; err != nil {
			return utils.WrapInternal(err)
		}
		if count <= 0 {
			return utils.NewNotFoundError("variant", item.VariantId)
		}
	}
	var count int64
	if err := db.WithContext(ctx).Model(&Supplier{}).Where("id = ?", input.SupplierId).Count(&count).Error; err != nil {
		return utils.WrapInternal(err)
	}
	if count <= 0 {
		return utils.NewNotFoundError("supplier", input.SupplierId)
	}
	return nil
}

// PurchaseOrderService covers the inbound side of the ledger: ordered goods
// become stock lots and on-hand quantity only on receipt.
type PurchaseOrderService struct {
	db      *gorm.DB
	stock   *InventoryLedger
	auditor Auditor
	logger  *logrus.Logger
}

func NewPurchaseOrderService(db *gorm.DB, stock *InventoryLedger, auditor Auditor, logger *logrus.Logger) *PurchaseOrderService {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &PurchaseOrderService{db: db, stock: stock, auditor: auditor, logger: logger}
}

func (s *PurchaseOrderService) CreatePurchaseOrder(ctx context.Context, userId int, input *NewPurchaseOrder) (*PurchaseOrder, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}
	if err := input.validate(ctx, s.db); err != nil {
		return nil, err
	}

	order := PurchaseOrder{
		SupplierId:    input.SupplierId,
		CurrentStatus: PurchaseOrderStatusPending,
	}
	total := decimal.Zero
	for _, item := range input.Items {
		order.Items = append(order.Items, PurchaseOrderItem{
			VariantId: item.VariantId,
			Quantity:  item.Quantity,
			UnitCost:  item.UnitCost,
		})
		total = total.Add(item.UnitCost.Mul(item.Quantity))
	}
	order.TotalAmount = utils.RoundMoney(total)

	if err := s.db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Create", order.ID, "purchase_orders", nil, &order)
	return &order, nil
}

// ReceivePurchaseOrder transitions the order from pending to received exactly
// once; a concurrent or repeated receive loses the rows-affected race and gets
// a conflict, with no stock movement.
func (s *PurchaseOrderService) ReceivePurchaseOrder(ctx context.Context, userId int, id int) (*PurchaseOrder, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}

	var after PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order PurchaseOrder
		err := tx.Preload("Items").First(&order, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("purchase order", id)
		}
		if err != nil {
			return utils.WrapInternal(err)
		}

		now := time.Now()
		res := tx.Model(&PurchaseOrder{}).
			Where("id = ? AND current_status = ?", id, PurchaseOrderStatusPending).
			Updates(map[string]interface{}{
				"current_status": PurchaseOrderStatusReceived,
				"received_at":    now,
			})
		if res.Error != nil {
			return utils.WrapInternal(res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("purchase order %d is not pending", id)
		}

		for _, item := range order.Items {
			if err := s.stock.receiveStockTx(tx, item.VariantId, item.Quantity, item.UnitCost, "", order.ID); err != nil {
				return err
			}
		}

		order.CurrentStatus = PurchaseOrderStatusReceived
		order.ReceivedAt = &now
		after = order
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "purchaseOrder.go", "ReceivePurchaseOrder", "receive failed", id, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Receive", after.ID, "purchase_orders", nil, &after)
	return &after, nil
}

// CancelPurchaseOrder cancels a pending order; received orders stay received.
func (s *PurchaseOrderService) CancelPurchaseOrder(ctx context.Context, userId int, id int) (*PurchaseOrder, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}

	var after PurchaseOrder
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order PurchaseOrder
		err := tx.Preload("Items").First(&order, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("purchase order", id)
		}
		if err != nil {
			return utils.WrapInternal(err)
		}

		res := tx.Model(&PurchaseOrder{}).
			Where("id = ? AND current_status = ?", id, PurchaseOrderStatusPending).
			Update("current_status", PurchaseOrderStatusCancelled)
		if res.Error != nil {
			return utils.WrapInternal(res.Error)
		}
		if res.RowsAffected == 0 {
			return utils.NewConflictError("purchase order %d is not pending", id)
		}

		order.CurrentStatus = PurchaseOrderStatusCancelled
		after = order
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "purchaseOrder.go", "CancelPurchaseOrder", "cancel failed", id, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Cancel", after.ID, "purchase_orders", nil, &after)
	return &after, nil
}

func (s *PurchaseOrderService) GetPurchaseOrder(ctx context.Context, id int) (*PurchaseOrder, error) {
	var order PurchaseOrder
	err := s.db.WithContext(ctx).Preload("Items").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("purchase order", id)
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &order, nil
}
