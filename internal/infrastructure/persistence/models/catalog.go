package models

import (
	"time"

	"github.com/retail/backend/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for catalog products, keyed by code
type ProductModel struct {
	Code      string          `gorm:"type:varchar(50);primaryKey"`
	Name      string          `gorm:"type:varchar(200);not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		Code:      m.Code,
		Name:      m.Name,
		UnitPrice: m.UnitPrice,
		Active:    m.Active,
	}
}

// ProductModelFromDomain creates a persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	return &ProductModel{
		Code:      p.Code,
		Name:      p.Name,
		UnitPrice: p.UnitPrice,
		Active:    p.Active,
	}
}
