package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductVariant is the sellable unit. The wider catalog (products, options,
// images) lives outside this core; the variant row carries just what sale and
// stock paths need.
type ProductVariant struct {
	ID            int             `gorm:"primary_key" json:"id"`
	Sku           string          `gorm:"size:100;index;not null" json:"sku" binding:"required"`
	Name          string          `gorm:"size:255;not null" json:"name" binding:"required"`
	Price         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"price"`
	TaxCategoryId int             `gorm:"index;default:null" json:"tax_category_id"`
	StockQty      decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"stock_qty"`
	IsActive      *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type Customer struct {
	ID           int       `gorm:"primary_key" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name" binding:"required"`
	CustomerType string    `gorm:"size:50;default:null" json:"customer_type"`
	Email        string    `gorm:"size:255;default:null" json:"email"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type Supplier struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name" binding:"required"`
	Email     string    `gorm:"size:255;default:null" json:"email"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type PaymentMethod struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name" binding:"required"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
