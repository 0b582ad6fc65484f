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

// Sale is the aggregate created by a checkout. It owns its items and payment
// transactions; status and fulfillment are independent axes.
type Sale struct {
	ID                int               `gorm:"primary_key" json:"id"`
	InvoiceNumber     string            `gorm:"size:100;uniqueIndex;not null" json:"invoice_number"`
	CustomerId        int               `gorm:"index;default:null" json:"customer_id"`
	Status            SaleStatus        `gorm:"size:20;not null;default:'Pending'" json:"status"`
	FulfillmentStatus FulfillmentStatus `gorm:"size:20;not null;default:'Unfulfilled'" json:"fulfillment_status"`
	DiscountType      *DiscountType     `gorm:"type:varchar(1);default:null" json:"discount_type"`
	Discount          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"discount"`
	DiscountAmount    decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	Subtotal          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"subtotal"`
	TotalTax          decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_tax"`
	TotalAmount       decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	PaidAmount        decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Items             []SaleItem        `gorm:"foreignKey:SaleId" json:"items"`
	Transactions      []Transaction     `gorm:"foreignKey:SaleId" json:"transactions"`
	CreatedAt         time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// SaleItem is immutable once the owning sale is completed; only returns may
// reference it afterwards.
type SaleItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	SaleId         int             `gorm:"index;not null" json:"sale_id"`
	VariantId      int             `gorm:"index;not null" json:"variant_id"`
	PricePerUnit   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price_per_unit"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"discount_amount"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"tax_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// lineSubtotal is the post-line-discount value of the original full line.
func (item *SaleItem) lineSubtotal() decimal.Decimal {
	return item.PricePerUnit.Mul(item.Quantity).Sub(item.DiscountAmount)
}

type NewSaleItem struct {
	VariantId      int              `json:"variant_id" binding:"required"`
	Quantity       decimal.Decimal  `json:"quantity" binding:"required"`
	PricePerUnit   *decimal.Decimal `json:"price_per_unit"`
	DiscountAmount decimal.Decimal  `json:"discount_amount"`
}

type NewSalePayment struct {
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	PaymentMethodId int             `json:"payment_method_id" binding:"required"`
}

type NewSale struct {
	CustomerId        int               `json:"customer_id"`
	Items             []NewSaleItem     `json:"items" binding:"required,min=1,dive"`
	DiscountType      *DiscountType     `json:"discount_type"`
	Discount          decimal.Decimal   `json:"discount"`
	Payments          []NewSalePayment  `json:"payments" binding:"dive"`
	TaxProfileId      int               `json:"tax_profile_id"`
	Status            SaleStatus        `json:"status"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status"`
}

// SaleService coordinates cart validation, tax computation, stock decrement,
// payment recording and persistence as one atomic unit.
type SaleService struct {
	db      *gorm.DB
	taxes   *TaxRuleResolver
	stock   *InventoryLedger
	auditor Auditor
	logger  *logrus.Logger
}

func NewSaleService(db *gorm.DB, taxes *TaxRuleResolver, stock *InventoryLedger, auditor Auditor, logger *logrus.Logger) *SaleService {
	if auditor == nil {
		auditor = NopAuditor{}
	}
	return &SaleService{db: db, taxes: taxes, stock: stock, auditor: auditor, logger: logger}
}

func (input *NewSale) validate(ctx context.Context, db *gorm.DB) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	switch input.Status {
	case "", SaleStatusDraft, SaleStatusPending, SaleStatusCompleted:
	default:
		return utils.NewValidationError("sale cannot be created with status %q", input.Status)
	}
	if input.Discount.IsNegative() {
		return utils.NewValidationError("discount must not be negative")
	}
	if input.DiscountType != nil && *input.DiscountType != DiscountTypePercent && *input.DiscountType != DiscountTypeAmount {
		return utils.NewValidationError("invalid discount type")
	}
	for _, item := range input.Items {
		if !item.Quantity.GreaterThan(decimal.Zero) {
			return utils.NewValidationError("quantity must be positive for variant %d", item.VariantId)
		}
		if item.DiscountAmount.IsNegative() {
			return utils.NewValidationError("line discount must not be negative for variant %d", item.VariantId)
		}
	}
	for _, payment := range input.Payments {
		if !payment.Amount.GreaterThan(decimal.Zero) {
			return utils.NewValidationError("payment amount must be positive")
		}
	}
	// exists customer
	if input.CustomerId > 0 {
		var count int64
		if err := db.WithContext(ctx).Model(&Customer{}).Where("id = ?", input.CustomerId).Count(&count).Error; err != nil {
			return utils.WrapInternal(err)
		}
		if count <= 0 {
			return utils.NewNotFoundError("customer", input.CustomerId)
		}
	}
	// exists payment methods
	for _, payment := range input.Payments {
		var count int64
		if err := db.WithContext(ctx).Model(&PaymentMethod{}).Where("id = ?", payment.PaymentMethodId).Count(&count).Error; err != nil {
			return utils.WrapInternal(err)
		}
		if count <= 0 {
			return utils.NewNotFoundError("payment method", payment.PaymentMethodId)
		}
	}
	return nil
}

// CreateSale runs the whole checkout inside one transaction: any failure
// rolls back stock reservations and leaves no partial sale behind.
func (s *SaleService) CreateSale(ctx context.Context, userId int, input *NewSale) (*Sale, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}
	if err := input.validate(ctx, s.db); err != nil {
		return nil, err
	}

	var sale *Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// resolve variants and build the cart
		saleItems := make([]SaleItem, 0, len(input.Items))
		cartLines := make([]CartLine, 0, len(input.Items))
		subtotal := decimal.Zero
		for _, item := range input.Items {
			var variant ProductVariant
			err := tx.First(&variant, item.VariantId).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewNotFoundError("variant", item.VariantId)
			}
			if err != nil {
				return utils.WrapInternal(err)
			}

			price := variant.Price
			if item.PricePerUnit != nil {
				price = *item.PricePerUnit
			}
			if price.IsNegative() {
				return utils.NewValidationError("price must not be negative for variant %d", item.VariantId)
			}
			grossLine := price.Mul(item.Quantity)
			if item.DiscountAmount.GreaterThan(grossLine) {
				return utils.NewValidationError("line discount exceeds line value for variant %d", item.VariantId)
			}

			saleItem := SaleItem{
				VariantId:      item.VariantId,
				PricePerUnit:   price,
				Quantity:       item.Quantity,
				DiscountAmount: item.DiscountAmount,
			}
			saleItem.TotalAmount = saleItem.lineSubtotal()
			subtotal = subtotal.Add(saleItem.TotalAmount)

			saleItems = append(saleItems, saleItem)
			cartLines = append(cartLines, CartLine{
				VariantId:     variant.ID,
				TaxCategoryId: variant.TaxCategoryId,
				UnitPrice:     price,
				Quantity:      item.Quantity,
				Subtotal:      saleItem.TotalAmount,
			})
		}

		customerType := ""
		if input.CustomerId > 0 {
			var customer Customer
			if err := tx.First(&customer, input.CustomerId).Error; err != nil {
				return utils.WrapInternal(err)
			}
			customerType = customer.CustomerType
		}

		// resolve tax against the active profile, or against an explicit
		// per-bill override, reading through this transaction
		cart := CartContext{
			InvoiceTotal: subtotal,
			CustomerType: customerType,
			Now:          time.Now(),
		}
		breakdown, err := s.taxes.resolveWithStore(ctx, tx, input.TaxProfileId, cartLines, cart)
		if err != nil {
			return err
		}
		for i := range saleItems {
			saleItems[i].TaxAmount = breakdown.Lines[i].Total
		}

		// global discount on the post-line-discount subtotal
		discountAmount := decimal.Zero
		if input.DiscountType != nil {
			discountAmount = utils.RoundMoney(
				utils.CalculateDiscountAmount(subtotal, input.Discount, string(*input.DiscountType)))
			if discountAmount.GreaterThan(subtotal) {
				return utils.NewValidationError("global discount exceeds subtotal")
			}
		}

		// Inclusive prices already contain tax, so the cart total is the
		// discounted subtotal; exclusive mode adds tax on top.
		totalAmount := utils.RoundMoney(subtotal.Sub(discountAmount))
		if !breakdown.Inclusive {
			totalAmount = totalAmount.Add(breakdown.TotalTax)
		}

		paidAmount := decimal.Zero
		for _, payment := range input.Payments {
			paidAmount = paidAmount.Add(payment.Amount)
		}

		invoiceNumber, err := nextInvoiceNumber(tx)
		if err != nil {
			return err
		}

		status := input.Status
		if status == "" {
			status = SaleStatusCompleted
		}
		fulfillment := input.FulfillmentStatus
		if fulfillment == "" {
			fulfillment = FulfillmentStatusUnfulfilled
		}

		newSale := Sale{
			InvoiceNumber:     invoiceNumber,
			CustomerId:        input.CustomerId,
			Status:            status,
			FulfillmentStatus: fulfillment,
			DiscountType:      input.DiscountType,
			Discount:          input.Discount,
			DiscountAmount:    discountAmount,
			Subtotal:          subtotal,
			TotalTax:          breakdown.TotalTax,
			TotalAmount:       totalAmount,
			PaidAmount:        paidAmount,
			Items:             saleItems,
		}
		if err := tx.Create(&newSale).Error; err != nil {
			return utils.WrapInternal(err)
		}

		// all-or-nothing reservation, now that flows can carry the sale id
		if err := s.stock.reserveAllTx(tx, newSale.Items, "SALE", newSale.ID); err != nil {
			return err
		}

		for _, payment := range input.Payments {
			txn := Transaction{
				TransactionType: TransactionTypePayment,
				Amount:          payment.Amount,
				PaymentMethodId: payment.PaymentMethodId,
				Status:          TransactionStatusCompleted,
				SaleId:          newSale.ID,
			}
			if err := txn.checkLink(); err != nil {
				return err
			}
			if err := tx.Create(&txn).Error; err != nil {
				return utils.WrapInternal(err)
			}
			newSale.Transactions = append(newSale.Transactions, txn)
		}

		sale = &newSale
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "sale.go", "CreateSale", "checkout failed", input, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Create", sale.ID, "sales", nil, sale)
	return sale, nil
}

// CancelSale restores stock for every line and marks the sale cancelled, all
// in one transaction. Double cancellation is a conflict.
func (s *SaleService) CancelSale(ctx context.Context, userId int, id int) (*Sale, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}

	var before, after Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale Sale
		err := tx.Preload("Items").First(&sale, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("sale", id)
		}
		if err != nil {
			return utils.WrapInternal(err)
		}
		switch sale.Status {
		case SaleStatusCancelled:
			return utils.NewConflictError("sale %d is already cancelled", id)
		case SaleStatusRefunded:
			return utils.NewConflictError("sale %d is fully returned", id)
		}
		before = sale

		// Returned lines already went back on the shelf; restore only what
		// is still out.
		returned, err := returnedQuantities(tx, sale.ID)
		if err != nil {
			return err
		}
		for _, item := range sale.Items {
			remaining := item.Quantity.Sub(returned[item.ID])
			if !remaining.GreaterThan(decimal.Zero) {
				continue
			}
			if err := s.stock.restoreStockTx(tx, item.VariantId, remaining, "sale cancelled", "SALE", sale.ID); err != nil {
				return err
			}
		}

		if err := tx.Model(&sale).UpdateColumn("Status", SaleStatusCancelled).Error; err != nil {
			return utils.WrapInternal(err)
		}
		sale.Status = SaleStatusCancelled
		after = sale
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "sale.go", "CancelSale", "cancel failed", id, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Cancel", after.ID, "sales", &before, &after)
	return &after, nil
}

// AddPayment appends a payment transaction and bumps paid_amount.
func (s *SaleService) AddPayment(ctx context.Context, userId int, saleId int, amount decimal.Decimal, paymentMethodId int) (*Sale, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}
	if !amount.GreaterThan(decimal.Zero) {
		return nil, utils.NewValidationError("payment amount must be positive")
	}

	var after Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale Sale
		err := tx.First(&sale, saleId).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("sale", saleId)
		}
		if err != nil {
			return utils.WrapInternal(err)
		}
		if sale.Status == SaleStatusCancelled {
			return utils.NewConflictError("sale %d is cancelled", saleId)
		}

		var count int64
		if err := tx.Model(&PaymentMethod{}).Where("id = ?", paymentMethodId).Count(&count).Error; err != nil {
			return utils.WrapInternal(err)
		}
		if count <= 0 {
			return utils.NewNotFoundError("payment method", paymentMethodId)
		}

		txn := Transaction{
			TransactionType: TransactionTypePayment,
			Amount:          amount,
			PaymentMethodId: paymentMethodId,
			Status:          TransactionStatusCompleted,
			SaleId:          sale.ID,
		}
		if err := txn.checkLink(); err != nil {
			return err
		}
		if err := tx.Create(&txn).Error; err != nil {
			return utils.WrapInternal(err)
		}

		sale.PaidAmount = sale.PaidAmount.Add(amount)
		if err := tx.Model(&sale).UpdateColumn("PaidAmount", sale.PaidAmount).Error; err != nil {
			return utils.WrapInternal(err)
		}
		after = sale
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "sale.go", "AddPayment", "payment failed", saleId, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "AddPayment", after.ID, "sales", nil, &after)
	return &after, nil
}

// FulfillSale moves fulfillment from unfulfilled to fulfilled. Cancelled
// sales cannot be fulfilled; neither can an already fulfilled one transition
// again.
func (s *SaleService) FulfillSale(ctx context.Context, userId int, id int) (*Sale, error) {
	if userId <= 0 {
		return nil, utils.NewValidationError("actor id is required")
	}

	var after Sale
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale Sale
		err := tx.First(&sale, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NewNotFoundError("sale", id)
		}
		if err != nil {
			return utils.WrapInternal(err)
		}
		if sale.Status == SaleStatusCancelled {
			return utils.NewConflictError("sale %d is cancelled", id)
		}
		if sale.FulfillmentStatus == FulfillmentStatusFulfilled {
			return utils.NewConflictError("sale %d is already fulfilled", id)
		}

		if err := tx.Model(&sale).UpdateColumn("FulfillmentStatus", FulfillmentStatusFulfilled).Error; err != nil {
			return utils.WrapInternal(err)
		}
		sale.FulfillmentStatus = FulfillmentStatusFulfilled
		after = sale
		return nil
	})
	if err != nil {
		config.LogError(s.logger, "sale.go", "FulfillSale", "fulfillment failed", id, err)
		return nil, utils.WrapInternal(err)
	}

	s.auditor.Record(ctx, userId, "Fulfill", after.ID, "sales", nil, &after)
	return &after, nil
}

func (s *SaleService) GetSale(ctx context.Context, id int) (*Sale, error) {
	var sale Sale
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Transactions").
		First(&sale, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("sale", id)
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &sale, nil
}
