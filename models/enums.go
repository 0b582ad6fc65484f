package models

import "errors"

type SaleStatus string

const (
	SaleStatusDraft     SaleStatus = "Draft"
	SaleStatusPending   SaleStatus = "Pending"
	SaleStatusCompleted SaleStatus = "Completed"
	SaleStatusCancelled SaleStatus = "Cancelled"
	SaleStatusRefunded  SaleStatus = "Refunded"
)

func (s *SaleStatus) UnmarshalText(b []byte) error {
	saleStatus := map[string]SaleStatus{
		"Draft":     SaleStatusDraft,
		"Pending":   SaleStatusPending,
		"Completed": SaleStatusCompleted,
		"Cancelled": SaleStatusCancelled,
		"Refunded":  SaleStatusRefunded,
	}
	v, ok := saleStatus[string(b)]
	if !ok {
		return errors.New("invalid sale status")
	}
	*s = v
	return nil
}

// FulfillmentStatus is independent from SaleStatus: a completed sale may still
// be waiting for hand-over.
type FulfillmentStatus string

const (
	FulfillmentStatusUnfulfilled FulfillmentStatus = "Unfulfilled"
	FulfillmentStatusFulfilled   FulfillmentStatus = "Fulfilled"
)

func (s *FulfillmentStatus) UnmarshalText(b []byte) error {
	switch string(b) {
	case "Unfulfilled":
		*s = FulfillmentStatusUnfulfilled
	case "Fulfilled":
		*s = FulfillmentStatusFulfilled
	default:
		return errors.New("invalid fulfillment status")
	}
	return nil
}

type PurchaseOrderStatus string

const (
	PurchaseOrderStatusPending   PurchaseOrderStatus = "Pending"
	PurchaseOrderStatusReceived  PurchaseOrderStatus = "Received"
	PurchaseOrderStatusCancelled PurchaseOrderStatus = "Cancelled"
)

func (s *PurchaseOrderStatus) UnmarshalText(b []byte) error {
	purchaseOrderStatus := map[string]PurchaseOrderStatus{
		"Pending":   PurchaseOrderStatusPending,
		"Received":  PurchaseOrderStatusReceived,
		"Cancelled": PurchaseOrderStatusCancelled,
	}
	v, ok := purchaseOrderStatus[string(b)]
	if !ok {
		return errors.New("invalid purchase order status")
	}
	*s = v
	return nil
}

type TransactionType string

const (
	TransactionTypePayment        TransactionType = "Payment"
	TransactionTypeRefund         TransactionType = "Refund"
	TransactionTypePurchase       TransactionType = "Purchase"
	TransactionTypePurchaseRefund TransactionType = "PurchaseRefund"
)

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "Completed"
	TransactionStatusVoided    TransactionStatus = "Voided"
)

type DiscountType string

const (
	DiscountTypePercent DiscountType = "P"
	DiscountTypeAmount  DiscountType = "A"
)

func (t *DiscountType) UnmarshalText(b []byte) error {
	switch string(b) {
	case "P":
		*t = DiscountTypePercent
	case "A":
		*t = DiscountTypeAmount
	default:
		return errors.New("invalid discount type")
	}
	return nil
}

// PricingMode states whether listed unit prices already contain tax.
type PricingMode string

const (
	PricingModeInclusive PricingMode = "I"
	PricingModeExclusive PricingMode = "E"
)

func (m *PricingMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "I":
		*m = PricingModeInclusive
	case "E":
		*m = PricingModeExclusive
	default:
		return errors.New("invalid pricing mode")
	}
	return nil
}

type TaxRuleScope string

const (
	TaxRuleScopeGlobal   TaxRuleScope = "G"
	TaxRuleScopeCategory TaxRuleScope = "C"
	TaxRuleScopeProduct  TaxRuleScope = "P"
)

func (s *TaxRuleScope) UnmarshalText(b []byte) error {
	switch string(b) {
	case "G":
		*s = TaxRuleScopeGlobal
	case "C":
		*s = TaxRuleScopeCategory
	case "P":
		*s = TaxRuleScopeProduct
	default:
		return errors.New("invalid tax rule scope")
	}
	return nil
}

// StockFlowType classifies one stock movement on a variant.
type StockFlowType string

const (
	StockFlowTypeReservation StockFlowType = "Reservation"
	StockFlowTypeRestock     StockFlowType = "Restock"
	StockFlowTypeReceipt     StockFlowType = "Receipt"
)
