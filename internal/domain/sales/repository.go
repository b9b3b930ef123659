package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// SalesSummary aggregates finalized bills over a period
type SalesSummary struct {
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// BillRepository defines the interface for persisted bills.
// Only finalized and cancelled bills are stored; in-progress bills live in a SessionStore.
type BillRepository interface {
	// Create inserts the bill header and its lines
	Create(ctx context.Context, bill *Bill) error

	// FindByID finds a bill by its ID, NotFound if missing
	FindByID(ctx context.Context, id uuid.UUID) (*Bill, error)

	// Exists checks whether a bill with the ID was persisted
	Exists(ctx context.Context, id uuid.UUID) (bool, error)

	// FindBySerialNumber finds a bill by its serial number, NotFound if missing
	FindBySerialNumber(ctx context.Context, serial string) (*Bill, error)

	// FindByDateRange returns finalized bills dated in [from, to), newest first
	FindByDateRange(ctx context.Context, from, to time.Time) ([]Bill, error)

	// FindByCustomer returns the finalized bills of a customer, newest first
	FindByCustomer(ctx context.Context, customerRef string) ([]Bill, error)

	// FindRecent returns the latest finalized bills
	FindRecent(ctx context.Context, limit int) ([]Bill, error)

	// NextSerialNumber reserves the next serial number of the channel for day
	NextSerialNumber(ctx context.Context, channel inventory.Channel, day time.Time) (string, error)

	// SummaryBetween counts and sums finalized bills dated in [from, to)
	SummaryBetween(ctx context.Context, from, to time.Time) (SalesSummary, error)
}
