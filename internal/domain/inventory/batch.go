package inventory

import (
	"strings"
	"time"

	"github.com/retail/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Batch is a single supplier delivery of a product.
// QuantityReceived never changes; QuantityRemaining stays within [0, QuantityReceived].
// Batches are never deleted, depleted ones are kept for the audit trail.
type Batch struct {
	shared.BaseEntity
	ProductCode       string
	QuantityReceived  int
	QuantityRemaining int
	PurchaseDate      time.Time
	ExpiryDate        *time.Time // nil means the product does not expire
	SupplierName      string
	UnitCost          decimal.Decimal
}

// NewBatch validates a supplier receipt and creates the batch.
// A zero purchaseDate defaults to today.
func NewBatch(
	productCode string,
	quantity int,
	unitCost decimal.Decimal,
	purchaseDate time.Time,
	expiryDate *time.Time,
	supplier string,
) (*Batch, error) {
	if purchaseDate.IsZero() {
		purchaseDate = time.Now()
	}
	purchaseDate = DateOf(purchaseDate)
	if expiryDate != nil {
		d := DateOf(*expiryDate)
		expiryDate = &d
	}

	verr := shared.NewValidationError()
	if strings.TrimSpace(productCode) == "" {
		verr.Add("product_code", "Product code is required")
	}
	if quantity <= 0 {
		verr.Add("quantity", "Quantity must be greater than zero")
	}
	if unitCost.IsNegative() {
		verr.Add("unit_cost", "Unit cost cannot be negative")
	}
	if strings.TrimSpace(supplier) == "" {
		verr.Add("supplier_name", "Supplier name is required")
	}
	if expiryDate != nil && expiryDate.Before(purchaseDate) {
		verr.Add("expiry_date", "Expiry date cannot be before purchase date")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	return &Batch{
		BaseEntity:        shared.NewBaseEntity(),
		ProductCode:       strings.TrimSpace(productCode),
		QuantityReceived:  quantity,
		QuantityRemaining: quantity,
		PurchaseDate:      purchaseDate,
		ExpiryDate:        expiryDate,
		SupplierName:      strings.TrimSpace(supplier),
		UnitCost:          unitCost,
	}, nil
}

// HasRemaining returns true while units are left in the batch
func (b *Batch) HasRemaining() bool {
	return b.QuantityRemaining > 0
}

// IsExpired returns true if the expiry date lies before the day of now
func (b *Batch) IsExpired(now time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(DateOf(now))
}

// WillExpireWithin returns true if the batch expires between today and today+days (inclusive)
func (b *Batch) WillExpireWithin(days int, now time.Time) bool {
	if b.ExpiryDate == nil || b.IsExpired(now) {
		return false
	}
	limit := DateOf(now).AddDate(0, 0, days)
	return !b.ExpiryDate.After(limit)
}

// DaysUntilExpiry returns the whole days until expiry, -1 if there is no expiry date
func (b *Batch) DaysUntilExpiry(now time.Time) int {
	if b.ExpiryDate == nil {
		return -1
	}
	return int(b.ExpiryDate.Sub(DateOf(now)).Hours() / 24)
}

// DateOf truncates t to midnight UTC of its calendar day
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
