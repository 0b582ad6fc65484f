package models

import (
	"context"
	"errors"
	"time"

	"github.com/mmretail/pos_backend/utils"
	"gorm.io/gorm"
)

// TaxCategory groups products for category-scoped tax rules. Its lifecycle is
// independent from products; a variant references at most one category.
type TaxCategory struct {
	ID          int       `gorm:"primary_key" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string    `gorm:"type:text;default:null" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTaxCategory struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func CreateTaxCategory(ctx context.Context, db *gorm.DB, input *NewTaxCategory) (*TaxCategory, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	category := TaxCategory{
		Name:        input.Name,
		Description: input.Description,
	}
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &category, nil
}

func GetTaxCategory(ctx context.Context, db *gorm.DB, id int) (*TaxCategory, error) {
	var category TaxCategory
	err := db.WithContext(ctx).First(&category, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("tax category", id)
	}
	if err != nil {
		return nil, utils.WrapInternal(err)
	}
	return &category, nil
}

func DeleteTaxCategory(ctx context.Context, db *gorm.DB, id int) (*TaxCategory, error) {
	category, err := GetTaxCategory(ctx, db, id)
	if err != nil {
		return nil, err
	}

	// check if category is used
	var count int64
	if err := db.WithContext(ctx).Model(&TaxRule{}).Where("tax_category_id = ?", id).Count(&count).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	if count > 0 {
		return nil, utils.NewConflictError("tax category %d is used by tax rules", id)
	}
	if err := db.WithContext(ctx).Model(&ProductVariant{}).Where("tax_category_id = ?", id).Count(&count).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	if count > 0 {
		return nil, utils.NewConflictError("tax category %d is used by product variants", id)
	}

	if err := db.WithContext(ctx).Delete(category).Error; err != nil {
		return nil, utils.WrapInternal(err)
	}
	return category, nil
}
