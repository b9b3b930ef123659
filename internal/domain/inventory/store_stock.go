package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/shared"
)

// StoreStockEntry is the quantity of one batch held by one channel.
// Identity is (ProductCode, BatchID, Channel). CreatedAt records the first
// restock and serves as the FIFO tie-breaker. Rows that reach zero are kept.
type StoreStockEntry struct {
	shared.BaseEntity
	ProductCode string
	BatchID     uuid.UUID
	Channel     Channel
	Quantity    int
	ExpiryDate  *time.Time
}

// NewStoreStockEntry creates the channel row for a batch on its first restock
func NewStoreStockEntry(productCode string, batchID uuid.UUID, channel Channel, expiry *time.Time, quantity int) *StoreStockEntry {
	return &StoreStockEntry{
		BaseEntity:  shared.NewBaseEntity(),
		ProductCode: productCode,
		BatchID:     batchID,
		Channel:     channel,
		Quantity:    quantity,
		ExpiryDate:  expiry,
	}
}

// TotalQuantity sums the quantity of the given rows
func TotalQuantity(entries []StoreStockEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Quantity
	}
	return total
}

// ProductQuantity is a per-product aggregate over one channel's rows
type ProductQuantity struct {
	ProductCode string
	Quantity    int
	BatchCount  int
}

// ProductStockSummary is a per-product aggregate over the batch ledger
type ProductStockSummary struct {
	ProductCode    string
	TotalRemaining int
	BatchCount     int
	EarliestExpiry *time.Time
}
