package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmretail/pos_backend/utils"
	"gorm.io/gorm"
)

// TaxProfile describes a jurisdiction's tax regime and whether listed prices
// already contain tax. Uniqueness of the active profile is a collaborator
// responsibility; queries here just take the first active row and tolerate
// absence.
type TaxProfile struct {
	ID          int         `gorm:"primary_key" json:"id"`
	Name        string      `gorm:"size:100;not null" json:"name" binding:"required"`
	CountryCode string      `gorm:"size:2;not null" json:"country_code" binding:"required"`
	RegionCode  string      `gorm:"size:10;default:null" json:"region_code"`
	PricingMode PricingMode `gorm:"type:varchar(1);not null;default:'E'" json:"pricing_mode"`
	IsActive    *bool       `gorm:"not null;default:true" json:"is_active"`
	Rules       []TaxRule   `gorm:"foreignKey:TaxProfileId" json:"rules"`
	CreatedAt   time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaxProfile struct {
	Name        string      `json:"name" binding:"required"`
	CountryCode string      `json:"country_code" binding:"required"`
	RegionCode  string      `json:"region_code"`
	PricingMode PricingMode `json:"pricing_mode" binding:"required"`
	IsActive    *bool       `json:"is_active"`
}

func (input *NewTaxProfile) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.PricingMode != PricingModeInclusive && input.PricingMode != PricingModeExclusive {
		return utils.NewValidationError("pricing mode must be I or E")
	}
	return nil
}

func CreateTaxProfile(ctx context.Context, db *gorm.DB, input *NewTaxProfile) (*TaxProfile, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	profile := TaxProfile{
		Name:        input.Name,
		CountryCode: input.CountryCode,
		RegionCode:  input.RegionCode,
		PricingMode: input.PricingMode,
		IsActive:    input.IsActive,
	}

	// db action
	if err := db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &profile, nil
}

// ActiveTaxProfile returns the active profile with its rules, or nil when no
// profile is active. No active profile means the cart is untaxed.
func ActiveTaxProfile(ctx context.Context, db *gorm.DB) (*TaxProfile, error) {
	var profile TaxProfile
	err := db.WithContext(ctx).
		Preload("Rules").
		Where("is_active = ?", true).
		Order("id").
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &profile, nil
}

func GetTaxProfile(ctx context.Context, db *gorm.DB, id int) (*TaxProfile, error) {
	var profile TaxProfile
	err := db.WithContext(ctx).Preload("Rules").First(&profile, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("tax profile", id)
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &profile, nil
}
