package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// BatchModel is the persistence model for the batch ledger
type BatchModel struct {
	BaseModel
	ProductCode       string          `gorm:"type:varchar(50);not null;index"`
	QuantityReceived  int             `gorm:"not null"`
	QuantityRemaining int             `gorm:"not null"`
	PurchaseDate      time.Time       `gorm:"type:date;not null;index"`
	ExpiryDate        *time.Time      `gorm:"type:date;index"`
	SupplierName      string          `gorm:"type:varchar(200);not null;index"`
	UnitCost          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch
func (m *BatchModel) ToDomain() inventory.Batch {
	return inventory.Batch{
		BaseEntity:        m.BaseModel.ToDomain(),
		ProductCode:       m.ProductCode,
		QuantityReceived:  m.QuantityReceived,
		QuantityRemaining: m.QuantityRemaining,
		PurchaseDate:      m.PurchaseDate,
		ExpiryDate:        m.ExpiryDate,
		SupplierName:      m.SupplierName,
		UnitCost:          m.UnitCost,
	}
}

// BatchModelFromDomain creates a persistence model from a domain Batch
func BatchModelFromDomain(b *inventory.Batch) *BatchModel {
	m := &BatchModel{
		ProductCode:       b.ProductCode,
		QuantityReceived:  b.QuantityReceived,
		QuantityRemaining: b.QuantityRemaining,
		PurchaseDate:      b.PurchaseDate,
		ExpiryDate:        b.ExpiryDate,
		SupplierName:      b.SupplierName,
		UnitCost:          b.UnitCost,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	return m
}

// StoreStockModel is one channel's holding of one batch.
// CreatedAt is the first restock and drives FIFO among equal expiries.
type StoreStockModel struct {
	BaseModel
	Channel     string     `gorm:"type:varchar(20);not null;uniqueIndex:idx_store_stock_row,priority:1"`
	ProductCode string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_store_stock_row,priority:2"`
	BatchID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_store_stock_row,priority:3"`
	Quantity    int        `gorm:"not null;default:0"`
	ExpiryDate  *time.Time `gorm:"type:date"`
}

// TableName returns the table name for GORM
func (StoreStockModel) TableName() string {
	return "store_stock"
}

// ToDomain converts the persistence model to a domain StoreStockEntry
func (m *StoreStockModel) ToDomain() inventory.StoreStockEntry {
	return inventory.StoreStockEntry{
		BaseEntity:  m.BaseModel.ToDomain(),
		ProductCode: m.ProductCode,
		BatchID:     m.BatchID,
		Channel:     inventory.Channel(m.Channel),
		Quantity:    m.Quantity,
		ExpiryDate:  m.ExpiryDate,
	}
}

// TransactionRecordModel is one row of the append-only audit log
type TransactionRecordModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey"`
	ProductCode   string     `gorm:"type:varchar(50);not null;index"`
	BatchID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Kind          string     `gorm:"type:varchar(30);not null"`
	Channel       string     `gorm:"type:varchar(20)"`
	QuantityDelta int        `gorm:"not null"`
	BillID        *uuid.UUID `gorm:"type:uuid;index"`
	Remark        string     `gorm:"type:varchar(500)"`
	OccurredAt    time.Time  `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TransactionRecordModel) TableName() string {
	return "inventory_transactions"
}

// ToDomain converts the persistence model to a domain TransactionRecord
func (m *TransactionRecordModel) ToDomain() inventory.TransactionRecord {
	return inventory.TransactionRecord{
		ID:            m.ID,
		ProductCode:   m.ProductCode,
		BatchID:       m.BatchID,
		Kind:          inventory.TransactionKind(m.Kind),
		Channel:       inventory.Channel(m.Channel),
		QuantityDelta: m.QuantityDelta,
		BillID:        m.BillID,
		Remark:        m.Remark,
		OccurredAt:    m.OccurredAt,
	}
}

// TransactionRecordModelFromDomain creates a persistence model from a domain TransactionRecord
func TransactionRecordModelFromDomain(r *inventory.TransactionRecord) *TransactionRecordModel {
	return &TransactionRecordModel{
		ID:            r.ID,
		ProductCode:   r.ProductCode,
		BatchID:       r.BatchID,
		Kind:          string(r.Kind),
		Channel:       string(r.Channel),
		QuantityDelta: r.QuantityDelta,
		BillID:        r.BillID,
		Remark:        r.Remark,
		OccurredAt:    r.OccurredAt.UTC(),
	}
}
