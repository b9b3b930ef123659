package inventory

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies an audit record
type TransactionKind string

const (
	TransactionKindSale            TransactionKind = "SALE"
	TransactionKindRestockPhysical TransactionKind = "RESTOCK_PHYSICAL"
	TransactionKindRestockOnline   TransactionKind = "RESTOCK_ONLINE"
	TransactionKindAdjustment      TransactionKind = "ADJUSTMENT"
	TransactionKindReturn          TransactionKind = "RETURN"
	TransactionKindExpired         TransactionKind = "EXPIRED"
	TransactionKindPurchase        TransactionKind = "PURCHASE"
)

// IsValid checks if the kind is known
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindSale, TransactionKindRestockPhysical, TransactionKindRestockOnline,
		TransactionKindAdjustment, TransactionKindReturn, TransactionKindExpired, TransactionKindPurchase:
		return true
	}
	return false
}

// TransactionRecord is an immutable entry in the audit ledger.
// Channel is empty for records about the batch ledger itself.
type TransactionRecord struct {
	ID            uuid.UUID
	ProductCode   string
	BatchID       uuid.UUID
	Kind          TransactionKind
	Channel       Channel
	QuantityDelta int
	BillID        *uuid.UUID
	Remark        string
	OccurredAt    time.Time
}

func newRecord(kind TransactionKind, productCode string, batchID uuid.UUID, channel Channel, delta int, remark string) *TransactionRecord {
	return &TransactionRecord{
		ID:            uuid.New(),
		ProductCode:   productCode,
		BatchID:       batchID,
		Kind:          kind,
		Channel:       channel,
		QuantityDelta: delta,
		Remark:        remark,
		OccurredAt:    time.Now(),
	}
}

// NewSaleRecord records units leaving a channel for a bill
func NewSaleRecord(productCode string, batchID uuid.UUID, channel Channel, quantity int, billID uuid.UUID, remark string) *TransactionRecord {
	r := newRecord(TransactionKindSale, productCode, batchID, channel, -quantity, remark)
	r.BillID = &billID
	return r
}

// NewRestockRecord records units moving from the ledger into a channel
func NewRestockRecord(productCode string, batchID uuid.UUID, channel Channel, quantity int) *TransactionRecord {
	return newRecord(channel.RestockKind(), productCode, batchID, channel, quantity, "Restocked from batch")
}

// NewPurchaseRecord records a supplier receipt on the ledger
func NewPurchaseRecord(batch *Batch) *TransactionRecord {
	return newRecord(TransactionKindPurchase, batch.ProductCode, batch.ID, "", batch.QuantityReceived,
		"Received from "+batch.SupplierName)
}

// NewAdjustmentRecord records a manual correction on the ledger
func NewAdjustmentRecord(productCode string, batchID uuid.UUID, delta int, remark string) *TransactionRecord {
	return newRecord(TransactionKindAdjustment, productCode, batchID, "", delta, remark)
}

// NewWithdrawalRecord records units taken off a channel outside a sale
func NewWithdrawalRecord(productCode string, batchID uuid.UUID, channel Channel, quantity int, remark string) *TransactionRecord {
	return newRecord(TransactionKindAdjustment, productCode, batchID, channel, -quantity, remark)
}

// NewExpiredRecord records an expiry write-off on the ledger
func NewExpiredRecord(productCode string, batchID uuid.UUID, quantity int, remark string) *TransactionRecord {
	return newRecord(TransactionKindExpired, productCode, batchID, "", -quantity, remark)
}

// NewReturnRecord records units coming back into a channel
func NewReturnRecord(productCode string, batchID uuid.UUID, channel Channel, quantity int, billID *uuid.UUID, remark string) *TransactionRecord {
	r := newRecord(TransactionKindReturn, productCode, batchID, channel, quantity, remark)
	r.BillID = billID
	return r
}
