package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// AddBatchRequest represents a supplier receipt into the batch ledger
type AddBatchRequest struct {
	ProductCode  string          `json:"product_code" binding:"required,max=50"`
	Quantity     int             `json:"quantity" binding:"required,gt=0"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
	PurchaseDate *time.Time      `json:"purchase_date"`
	ExpiryDate   *time.Time      `json:"expiry_date"`
	SupplierName string          `json:"supplier_name" binding:"required,max=100"`
}

// AdjustQuantityRequest represents a manual correction of a batch's remaining quantity
type AdjustQuantityRequest struct {
	Delta    int    `json:"delta" binding:"required"`
	Remark   string `json:"remark" binding:"max=255"`
	WriteOff bool   `json:"write_off"` // negative delta written off as expired stock
}

// RestockRequest moves stock from the batch ledger into a channel.
// With BatchID set only that batch is used; otherwise batches are taken in FIFO order.
type RestockRequest struct {
	ProductCode string     `json:"product_code" binding:"required_without=BatchID,max=50"`
	Quantity    int        `json:"quantity" binding:"required,gt=0"`
	BatchID     *uuid.UUID `json:"batch_id"`
}

// RestockOutcome reports how much of a restock request was fulfilled.
// A partial restock is a success with QuantityRestocked below the request.
type RestockOutcome struct {
	Success           bool   `json:"success"`
	QuantityRestocked int    `json:"quantity_restocked"`
	BatchesUsed       int    `json:"batches_used"`
	Message           string `json:"message"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID                uuid.UUID       `json:"id"`
	ProductCode       string          `json:"product_code"`
	QuantityReceived  int             `json:"quantity_received"`
	QuantityRemaining int             `json:"quantity_remaining"`
	PurchaseDate      time.Time       `json:"purchase_date"`
	ExpiryDate        *time.Time      `json:"expiry_date,omitempty"`
	DaysUntilExpiry   *int            `json:"days_until_expiry,omitempty"`
	Expired           bool            `json:"expired"`
	SupplierName      string          `json:"supplier_name"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	CreatedAt         time.Time       `json:"created_at"`
}

// ToBatchResponse converts a batch, computing expiry fields relative to now
func ToBatchResponse(b *inventory.Batch, now time.Time) BatchResponse {
	resp := BatchResponse{
		ID:                b.ID,
		ProductCode:       b.ProductCode,
		QuantityReceived:  b.QuantityReceived,
		QuantityRemaining: b.QuantityRemaining,
		PurchaseDate:      b.PurchaseDate,
		ExpiryDate:        b.ExpiryDate,
		Expired:           b.IsExpired(now),
		SupplierName:      b.SupplierName,
		UnitCost:          b.UnitCost,
		CreatedAt:         b.CreatedAt,
	}
	if b.ExpiryDate != nil {
		days := b.DaysUntilExpiry(now)
		resp.DaysUntilExpiry = &days
	}
	return resp
}

// ToBatchResponses converts a slice of batches
func ToBatchResponses(batches []inventory.Batch, now time.Time) []BatchResponse {
	out := make([]BatchResponse, len(batches))
	for i := range batches {
		out[i] = ToBatchResponse(&batches[i], now)
	}
	return out
}

// StockSummaryResponse is one product's line in the ledger summary
type StockSummaryResponse struct {
	ProductCode    string     `json:"product_code"`
	TotalRemaining int        `json:"total_remaining"`
	BatchCount     int        `json:"batch_count"`
	EarliestExpiry *time.Time `json:"earliest_expiry,omitempty"`
}

// TransactionRecordResponse represents an audit record in API responses
type TransactionRecordResponse struct {
	ID            uuid.UUID  `json:"id"`
	ProductCode   string     `json:"product_code"`
	BatchID       uuid.UUID  `json:"batch_id"`
	Kind          string     `json:"kind"`
	Channel       string     `json:"channel,omitempty"`
	QuantityDelta int        `json:"quantity_delta"`
	BillID        *uuid.UUID `json:"bill_id,omitempty"`
	Remark        string     `json:"remark,omitempty"`
	OccurredAt    time.Time  `json:"occurred_at"`
}

// ToTransactionRecordResponses converts audit records
func ToTransactionRecordResponses(records []inventory.TransactionRecord) []TransactionRecordResponse {
	out := make([]TransactionRecordResponse, len(records))
	for i, r := range records {
		out[i] = TransactionRecordResponse{
			ID:            r.ID,
			ProductCode:   r.ProductCode,
			BatchID:       r.BatchID,
			Kind:          string(r.Kind),
			Channel:       string(r.Channel),
			QuantityDelta: r.QuantityDelta,
			BillID:        r.BillID,
			Remark:        r.Remark,
			OccurredAt:    r.OccurredAt,
		}
	}
	return out
}

// AvailabilityResponse reports the sellable quantity of a product on a channel
type AvailabilityResponse struct {
	ProductCode string `json:"product_code"`
	Channel     string `json:"channel"`
	Available   int    `json:"available"`
	InStock     bool   `json:"in_stock"`
}

// ChannelStockResponse is one product's quantity on a channel
type ChannelStockResponse struct {
	ProductCode string `json:"product_code"`
	Quantity    int    `json:"quantity"`
	BatchCount  int    `json:"batch_count"`
}

// ToChannelStockResponses converts per-product channel quantities
func ToChannelStockResponses(rows []inventory.ProductQuantity) []ChannelStockResponse {
	out := make([]ChannelStockResponse, len(rows))
	for i, r := range rows {
		out[i] = ChannelStockResponse{ProductCode: r.ProductCode, Quantity: r.Quantity, BatchCount: r.BatchCount}
	}
	return out
}
