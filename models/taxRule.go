package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmretail/pos_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TaxRule is one applicability rule inside a profile. Nil band bounds and nil
// validity bounds mean unbounded.
type TaxRule struct {
	ID            int              `gorm:"primary_key" json:"id"`
	TaxProfileId  int              `gorm:"index;not null" json:"tax_profile_id" binding:"required"`
	Name          string           `gorm:"size:100;not null" json:"name" binding:"required"`
	Scope         TaxRuleScope     `gorm:"type:varchar(1);not null" json:"scope" binding:"required"`
	TaxCategoryId int              `gorm:"index;default:null" json:"tax_category_id"`
	VariantId     int              `gorm:"index;default:null" json:"variant_id"`
	PriceMin      *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"price_min"`
	PriceMax      *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"price_max"`
	InvoiceMin    *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"invoice_min"`
	InvoiceMax    *decimal.Decimal `gorm:"type:decimal(20,4);default:null" json:"invoice_max"`
	CustomerType  string           `gorm:"size:50;default:null" json:"customer_type"`
	RatePercent   decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"rate_percent"`
	IsCompound    *bool            `gorm:"not null;default:false" json:"is_compound"`
	Priority      int              `gorm:"not null;default:0" json:"priority"`
	ValidFrom     *time.Time       `gorm:"default:null" json:"valid_from"`
	ValidTo       *time.Time       `gorm:"default:null" json:"valid_to"`
	CreatedAt     time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaxRule struct {
	TaxProfileId  int              `json:"tax_profile_id" binding:"required"`
	Name          string           `json:"name" binding:"required"`
	Scope         TaxRuleScope     `json:"scope" binding:"required"`
	TaxCategoryId int              `json:"tax_category_id"`
	VariantId     int              `json:"variant_id"`
	PriceMin      *decimal.Decimal `json:"price_min"`
	PriceMax      *decimal.Decimal `json:"price_max"`
	InvoiceMin    *decimal.Decimal `json:"invoice_min"`
	InvoiceMax    *decimal.Decimal `json:"invoice_max"`
	CustomerType  string           `json:"customer_type"`
	RatePercent   decimal.Decimal  `json:"rate_percent"`
	IsCompound    *bool            `json:"is_compound"`
	Priority      int              `json:"priority"`
	ValidFrom     *time.Time       `json:"valid_from"`
	ValidTo       *time.Time       `json:"valid_to"`
}

// checkConfig holds the invariants a stored rule must satisfy before it may
// participate in resolution. A persisted rule that fails these is a
// configuration error the resolver reports instead of skipping.
func (rule *TaxRule) checkConfig() error {
	if rule.RatePercent.IsNegative() {
		return utils.NewValidationError("tax rule %d: rate_percent must not be negative", rule.ID)
	}
	switch rule.Scope {
	case TaxRuleScopeGlobal:
	case TaxRuleScopeCategory:
		if rule.TaxCategoryId <= 0 {
			return utils.NewValidationError("tax rule %d: category scope requires tax_category_id", rule.ID)
		}
	case TaxRuleScopeProduct:
		if rule.VariantId <= 0 {
			return utils.NewValidationError("tax rule %d: product scope requires variant_id", rule.ID)
		}
	default:
		return utils.NewValidationError("tax rule %d: invalid scope %q", rule.ID, rule.Scope)
	}
	if rule.PriceMin != nil && rule.PriceMax != nil && rule.PriceMin.GreaterThan(*rule.PriceMax) {
		return utils.NewValidationError("tax rule %d: price band min exceeds max", rule.ID)
	}
	if rule.InvoiceMin != nil && rule.InvoiceMax != nil && rule.InvoiceMin.GreaterThan(*rule.InvoiceMax) {
		return utils.NewValidationError("tax rule %d: invoice band min exceeds max", rule.ID)
	}
	if rule.ValidFrom != nil && rule.ValidTo != nil && rule.ValidFrom.After(*rule.ValidTo) {
		return utils.NewValidationError("tax rule %d: valid_from is after valid_to", rule.ID)
	}
	return nil
}

func (input *NewTaxRule) validate(ctx context.Context, db *gorm.DB) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}

	candidate := TaxRule{
		TaxProfileId:  input.TaxProfileId,
		Scope:         input.Scope,
		TaxCategoryId: input.TaxCategoryId,
		VariantId:     input.VariantId,
		PriceMin:      input.PriceMin,
		PriceMax:      input.PriceMax,
		InvoiceMin:    input.InvoiceMin,
		InvoiceMax:    input.InvoiceMax,
		RatePercent:   input.RatePercent,
		ValidFrom:     input.ValidFrom,
		ValidTo:       input.ValidTo,
	}
	if err := candidate.checkConfig(); err != nil {
		return err
	}

	// exists profile
	if _, err := GetTaxProfile(ctx, db, input.TaxProfileId); err != nil {
		return err
	}
	// exists category
	if input.Scope == TaxRuleScopeCategory {
		if _, err := GetTaxCategory(ctx, db, input.TaxCategoryId); err != nil {
			return err
		}
	}
	return nil
}

func CreateTaxRule(ctx context.Context, db *gorm.DB, input *NewTaxRule) (*TaxRule, error) {
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}

	isCompound := input.IsCompound
	if isCompound == nil {
		f := false
		isCompound = &f
	}

	rule := TaxRule{
		TaxProfileId:  input.TaxProfileId,
		Name:          input.Name,
		Scope:         input.Scope,
		TaxCategoryId: input.TaxCategoryId,
		VariantId:     input.VariantId,
		PriceMin:      input.PriceMin,
		PriceMax:      input.PriceMax,
		InvoiceMin:    input.InvoiceMin,
		InvoiceMax:    input.InvoiceMax,
		CustomerType:  input.CustomerType,
		RatePercent:   input.RatePercent,
		IsCompound:    isCompound,
		Priority:      input.Priority,
		ValidFrom:     input.ValidFrom,
		ValidTo:       input.ValidTo,
	}

	// db action
	if err := db.WithContext(ctx).Create(&rule).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &rule, nil
}

func GetTaxRule(ctx context.Context, db *gorm.DB, id int) (*TaxRule, error) {
	var rule TaxRule
	err := db.WithContext(ctx).First(&rule, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("tax rule", id)
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &rule, nil
}

func DeleteTaxRule(ctx context.Context, db *gorm.DB, id int) (*TaxRule, error) {
	rule, err := GetTaxRule(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Delete(rule).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	return rule, nil
}
