package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BatchRepository defines the interface for batch ledger persistence.
// Quantity changes only go through the conditional Decrease/Increase methods.
type BatchRepository interface {
	// Create inserts a new batch
	Create(ctx context.Context, batch *Batch) error

	// FindByID finds a batch by its ID, NotFound if missing
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// Exists checks whether a batch with the ID exists
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// DecreaseRemaining subtracts amount only if at least amount remains.
	// Returns false when not enough remains, NotFound when the batch is missing.
	DecreaseRemaining(ctx context.Context, id uuid.UUID, amount int) (bool, error)

	// IncreaseRemaining adds amount only if the result stays within quantity received.
	IncreaseRemaining(ctx context.Context, id uuid.UUID, amount int) (bool, error)

	// FindAvailableByProduct returns batches with remaining > 0 in FIFO order
	FindAvailableByProduct(ctx context.Context, productCode string) ([]Batch, error)

	// FindExpiringBetween returns batches with stock whose expiry lies in [from, to]
	FindExpiringBetween(ctx context.Context, from, to time.Time) ([]Batch, error)

	// FindExpired returns batches with stock whose expiry lies before asOf
	FindExpired(ctx context.Context, asOf time.Time) ([]Batch, error)

	// FindBySupplier returns all batches delivered by a supplier
	FindBySupplier(ctx context.Context, supplier string) ([]Batch, error)

	// FindByPurchaseDateRange returns batches purchased in [from, to]
	FindByPurchaseDateRange(ctx context.Context, from, to time.Time) ([]Batch, error)

	// TotalRemaining sums remaining quantity for a product
	TotalRemaining(ctx context.Context, productCode string) (int, error)

	// CountByProduct counts all batches of a product, depleted ones included
	CountByProduct(ctx context.Context, productCode string) (int64, error)

	// Summary aggregates remaining stock per product
	Summary(ctx context.Context) ([]ProductStockSummary, error)
}

// StoreStockRepository defines persistence for one channel's stock rows
type StoreStockRepository interface {
	// Channel returns the channel this repository is scoped to
	Channel() Channel

	// Find returns the row for (product, batch), NotFound if missing
	Find(ctx context.Context, productCode string, batchID uuid.UUID) (*StoreStockEntry, error)

	// FindByProduct returns every row of the product, zero rows included, in FIFO order
	FindByProduct(ctx context.Context, productCode string) ([]StoreStockEntry, error)

	// FindAvailableByProduct returns rows with quantity > 0 in FIFO order
	FindAvailableByProduct(ctx context.Context, productCode string) ([]StoreStockEntry, error)

	// AddQuantity creates the row on first restock or adds to it
	AddQuantity(ctx context.Context, productCode string, batchID uuid.UUID, expiry *time.Time, amount int) error

	// DecreaseQuantity subtracts amount only if the row holds at least amount.
	// Returns false when not enough is held, NotFound when the row is missing.
	DecreaseQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error)

	// IncreaseQuantity adds amount back to an existing row
	IncreaseQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error)

	// TotalQuantity sums the product's rows
	TotalQuantity(ctx context.Context, productCode string) (int, error)

	// FindLowStock returns products whose total is below threshold
	FindLowStock(ctx context.Context, threshold int) ([]ProductQuantity, error)

	// Summary aggregates every product held by the channel
	Summary(ctx context.Context) ([]ProductQuantity, error)
}

// TransactionLog is the append-only audit ledger. There is no update or delete.
type TransactionLog interface {
	// Append writes records
	Append(ctx context.Context, records ...*TransactionRecord) error

	// FindByProduct returns the most recent records for a product
	FindByProduct(ctx context.Context, productCode string, limit int) ([]TransactionRecord, error)

	// FindByBatch returns every record touching a batch, oldest first
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]TransactionRecord, error)

	// FindByBill returns the records written for a bill
	FindByBill(ctx context.Context, billID uuid.UUID) ([]TransactionRecord, error)
}
