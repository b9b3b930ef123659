package sales

import (
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// CreateBillRequest opens an in-progress bill
type CreateBillRequest struct {
	Channel     string `json:"channel" binding:"required,oneof=PHYSICAL ONLINE physical online"`
	PaymentKind string `json:"payment_kind" binding:"required,oneof=CASH ONLINE cash online"`
	CustomerRef string `json:"customer_ref" binding:"max=100"`
	CreatedBy   string `json:"created_by" binding:"max=100"`
}

// AddItemRequest adds units of a product to a bill
type AddItemRequest struct {
	ProductCode string `json:"product_code" binding:"required,max=50"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
}

// UpdateItemRequest sets a product's quantity on a bill; zero removes it
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// AmountRequest carries a discount or tax amount
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CashPaymentRequest carries the cash tendered by the customer
type CashPaymentRequest struct {
	Tendered decimal.Decimal `json:"tendered"`
}

// CheckoutItem is one requested line of an atomic checkout
type CheckoutItem struct {
	ProductCode string `json:"product_code" binding:"required,max=50"`
	Quantity    int    `json:"quantity" binding:"required,gt=0"`
}

// CheckoutRequest completes a sale in one call
type CheckoutRequest struct {
	Channel     string          `json:"channel" binding:"required,oneof=PHYSICAL ONLINE physical online"`
	PaymentKind string          `json:"payment_kind" binding:"required,oneof=CASH ONLINE cash online"`
	CustomerRef string          `json:"customer_ref" binding:"max=100"`
	CreatedBy   string          `json:"created_by" binding:"max=100"`
	Items       []CheckoutItem  `json:"items" binding:"required,min=1,dive"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Tendered    decimal.Decimal `json:"tendered"`
}

// StockCheckRequest asks whether items can be sold on a channel
type StockCheckRequest struct {
	Channel string         `json:"channel" binding:"required,oneof=PHYSICAL ONLINE physical online"`
	Items   []CheckoutItem `json:"items" binding:"required,min=1,dive"`
}

// Stock check statuses
const (
	StockAvailable   = "available"
	StockUnavailable = "unavailable"
	StockNotFound    = "not_found"
)

// StockCheckResult reports the availability of one requested product
type StockCheckResult struct {
	ProductCode string `json:"product_code"`
	Requested   int    `json:"requested"`
	Available   int    `json:"available"`
	Status      string `json:"status"`
}

// BatchUsage is the part of a sold line taken from one batch
type BatchUsage struct {
	BatchID    uuid.UUID  `json:"batch_id"`
	Quantity   int        `json:"quantity"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

// CheckoutLine is one product of a completed checkout with the batches it used
type CheckoutLine struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
	Batches     []BatchUsage    `json:"batches"`
}

// CheckoutResult is the outcome of an atomic checkout.
// On failure only Errors is set and nothing was changed.
type CheckoutResult struct {
	Success      bool            `json:"success"`
	Errors       []string        `json:"errors,omitempty"`
	BillID       uuid.UUID       `json:"bill_id,omitempty"`
	SerialNumber string          `json:"serial_number,omitempty"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Discount     decimal.Decimal `json:"discount"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
	Tendered     decimal.Decimal `json:"tendered"`
	Change       decimal.Decimal `json:"change"`
	BillDate     *time.Time      `json:"bill_date,omitempty"`
	Lines        []CheckoutLine  `json:"lines,omitempty"`

	// Failures holds the typed errors behind Errors
	Failures []error `json:"-"`
}

func failedCheckout(errs ...error) *CheckoutResult {
	r := &CheckoutResult{Failures: errs}
	for _, err := range errs {
		r.Errors = append(r.Errors, err.Error())
	}
	return r
}

func succeededCheckout(b *sales.Bill) *CheckoutResult {
	date := b.BillDate
	r := &CheckoutResult{
		Success:      true,
		BillID:       b.ID,
		SerialNumber: b.SerialNumber,
		Subtotal:     b.Subtotal,
		Discount:     b.Discount,
		Tax:          b.Tax,
		Total:        b.Total,
		Tendered:     b.Tendered,
		Change:       b.Change,
		BillDate:     &date,
	}
	index := make(map[string]int)
	for _, l := range b.Lines {
		i, ok := index[l.ProductCode]
		if !ok {
			i = len(r.Lines)
			index[l.ProductCode] = i
			r.Lines = append(r.Lines, CheckoutLine{
				ProductCode: l.ProductCode,
				ProductName: l.ProductName,
				UnitPrice:   l.UnitPrice,
				LineTotal:   decimal.Zero,
			})
		}
		line := &r.Lines[i]
		line.Quantity += l.Quantity
		line.LineTotal = line.LineTotal.Add(l.LineTotal)
		line.Batches = append(line.Batches, BatchUsage{BatchID: l.BatchID, Quantity: l.Quantity, ExpiryDate: l.ExpiryDate})
	}
	return r
}

// BillLineResponse represents a bill line in API responses
type BillLineResponse struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	BatchID     uuid.UUID       `json:"batch_id"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// BillResponse represents a bill in API responses
type BillResponse struct {
	ID               uuid.UUID          `json:"id"`
	SerialNumber     string             `json:"serial_number,omitempty"`
	Channel          string             `json:"channel"`
	PaymentKind      string             `json:"payment_kind"`
	CustomerRef      string             `json:"customer_ref,omitempty"`
	Status           string             `json:"status"`
	Lines            []BillLineResponse `json:"lines"`
	ItemCount        int                `json:"item_count"`
	Subtotal         decimal.Decimal    `json:"subtotal"`
	Discount         decimal.Decimal    `json:"discount"`
	Tax              decimal.Decimal    `json:"tax"`
	Total            decimal.Decimal    `json:"total"`
	Tendered         decimal.Decimal    `json:"tendered"`
	Change           decimal.Decimal    `json:"change"`
	PaymentCompleted bool               `json:"payment_completed"`
	BillDate         time.Time          `json:"bill_date"`
	CreatedBy        string             `json:"created_by,omitempty"`
	FinalizedAt      *time.Time         `json:"finalized_at,omitempty"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`
}

// ToBillResponse converts a bill
func ToBillResponse(b *sales.Bill) BillResponse {
	lines := make([]BillLineResponse, len(b.Lines))
	for i, l := range b.Lines {
		lines[i] = BillLineResponse{
			ProductCode: l.ProductCode,
			ProductName: l.ProductName,
			BatchID:     l.BatchID,
			ExpiryDate:  l.ExpiryDate,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
		}
	}
	return BillResponse{
		ID:               b.ID,
		SerialNumber:     b.SerialNumber,
		Channel:          b.Channel.String(),
		PaymentKind:      string(b.PaymentKind),
		CustomerRef:      b.CustomerRef,
		Status:           string(b.Status),
		Lines:            lines,
		ItemCount:        b.ItemCount(),
		Subtotal:         b.Subtotal,
		Discount:         b.Discount,
		Tax:              b.Tax,
		Total:            b.Total,
		Tendered:         b.Tendered,
		Change:           b.Change,
		PaymentCompleted: b.PaymentCompleted,
		BillDate:         b.BillDate,
		CreatedBy:        b.CreatedBy,
		FinalizedAt:      b.FinalizedAt,
		CancelledAt:      b.CancelledAt,
	}
}

// ToBillResponses converts a slice of bills
func ToBillResponses(bills []sales.Bill) []BillResponse {
	out := make([]BillResponse, len(bills))
	for i := range bills {
		out[i] = ToBillResponse(&bills[i])
	}
	return out
}

// ValidationResult lists why a bill cannot be finalized yet
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// SalesSummaryResponse counts and sums the finalized bills of a day
type SalesSummaryResponse struct {
	Date  string          `json:"date"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}
