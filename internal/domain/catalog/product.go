package catalog

import (
	"strings"

	"github.com/retail/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product is the read-only catalog entry a sale line is priced from.
// Catalog management lives elsewhere; this package only looks products up.
type Product struct {
	Code      string
	Name      string
	UnitPrice decimal.Decimal
	Active    bool
}

// NewProduct creates an active product
func NewProduct(code, name string, unitPrice decimal.Decimal) (*Product, error) {
	verr := shared.NewValidationError()
	code = strings.TrimSpace(code)
	if code == "" {
		verr.Add("product_code", "Product code is required")
	}
	if strings.TrimSpace(name) == "" {
		verr.Add("name", "Product name is required")
	}
	if unitPrice.IsNegative() {
		verr.Add("unit_price", "Unit price cannot be negative")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	return &Product{
		Code:      code,
		Name:      strings.TrimSpace(name),
		UnitPrice: unitPrice.Round(2),
		Active:    true,
	}, nil
}

// IsSellable reports whether the product may be put on a bill
func (p *Product) IsSellable() bool {
	return p != nil && p.Active
}
