package catalog

import (
	"context"
)

// ProductRepository defines the product lookups the sales and inventory
// services depend on.
type ProductRepository interface {
	// FindByCode returns the product or a NotFound error
	FindByCode(ctx context.Context, code string) (*Product, error)

	// FindByCodes returns the products that exist, keyed by code
	FindByCodes(ctx context.Context, codes []string) (map[string]*Product, error)

	// ExistsByCode checks whether a product with the code exists
	ExistsByCode(ctx context.Context, code string) (bool, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error
}
