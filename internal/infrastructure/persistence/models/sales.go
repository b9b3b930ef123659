package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/shopspring/decimal"
)

// BillModel is the persistence model for finalized and cancelled bills.
// Cancelled bills keep no serial number and no lines.
type BillModel struct {
	BaseModel
	SerialNumber     *string         `gorm:"type:varchar(30);uniqueIndex"`
	Channel          string          `gorm:"type:varchar(20);not null"`
	PaymentKind      string          `gorm:"type:varchar(20);not null"`
	CustomerRef      string          `gorm:"type:varchar(100);index"`
	Subtotal         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Discount         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Tax              decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Total            decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Tendered         decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Change           decimal.Decimal `gorm:"column:change_due;type:decimal(18,2);not null"`
	PaymentCompleted bool            `gorm:"not null;default:false"`
	Status           string          `gorm:"type:varchar(20);not null;index"`
	BillDate         time.Time       `gorm:"not null;index"`
	CreatedBy        string          `gorm:"type:varchar(100)"`
	FinalizedAt      *time.Time
	CancelledAt      *time.Time
	Lines            []BillLineModel `gorm:"foreignKey:BillID;references:ID"`
}

// TableName returns the table name for GORM
func (BillModel) TableName() string {
	return "bills"
}

// ToDomain converts the persistence model to a domain Bill
func (m *BillModel) ToDomain() *sales.Bill {
	b := &sales.Bill{
		BaseEntity:       m.BaseModel.ToDomain(),
		Channel:          inventory.Channel(m.Channel),
		PaymentKind:      sales.PaymentKind(m.PaymentKind),
		CustomerRef:      m.CustomerRef,
		Lines:            make([]sales.BillLine, len(m.Lines)),
		Subtotal:         m.Subtotal,
		Discount:         m.Discount,
		Tax:              m.Tax,
		Total:            m.Total,
		Tendered:         m.Tendered,
		Change:           m.Change,
		PaymentCompleted: m.PaymentCompleted,
		Status:           sales.BillStatus(m.Status),
		BillDate:         m.BillDate,
		CreatedBy:        m.CreatedBy,
		FinalizedAt:      m.FinalizedAt,
		CancelledAt:      m.CancelledAt,
	}
	if m.SerialNumber != nil {
		b.SerialNumber = *m.SerialNumber
	}
	for i := range m.Lines {
		b.Lines[i] = m.Lines[i].ToDomain()
	}
	return b
}

// BillModelFromDomain creates a persistence model, lines included, from a domain Bill
func BillModelFromDomain(b *sales.Bill) *BillModel {
	m := &BillModel{
		Channel:          string(b.Channel),
		PaymentKind:      string(b.PaymentKind),
		CustomerRef:      b.CustomerRef,
		Subtotal:         b.Subtotal,
		Discount:         b.Discount,
		Tax:              b.Tax,
		Total:            b.Total,
		Tendered:         b.Tendered,
		Change:           b.Change,
		PaymentCompleted: b.PaymentCompleted,
		Status:           string(b.Status),
		BillDate:         b.BillDate.UTC(),
		CreatedBy:        b.CreatedBy,
		FinalizedAt:      b.FinalizedAt,
		CancelledAt:      b.CancelledAt,
	}
	m.FromDomainBaseEntity(b.BaseEntity)
	if b.SerialNumber != "" {
		serial := b.SerialNumber
		m.SerialNumber = &serial
	}
	m.Lines = make([]BillLineModel, len(b.Lines))
	for i, l := range b.Lines {
		m.Lines[i] = BillLineModel{
			ID:          l.ID,
			BillID:      b.ID,
			Position:    i,
			ProductCode: l.ProductCode,
			ProductName: l.ProductName,
			BatchID:     l.BatchID,
			ExpiryDate:  l.ExpiryDate,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
		}
	}
	return m
}

// BillLineModel is one (product, batch) line of a persisted bill
type BillLineModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BillID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Position    int             `gorm:"not null"`
	ProductCode string          `gorm:"type:varchar(50);not null;index"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	BatchID     uuid.UUID       `gorm:"type:uuid;not null"`
	ExpiryDate  *time.Time      `gorm:"type:date"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	LineTotal   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (BillLineModel) TableName() string {
	return "bill_lines"
}

// ToDomain converts the persistence model to a domain BillLine
func (m *BillLineModel) ToDomain() sales.BillLine {
	return sales.BillLine{
		ID:          m.ID,
		ProductCode: m.ProductCode,
		ProductName: m.ProductName,
		BatchID:     m.BatchID,
		ExpiryDate:  m.ExpiryDate,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		LineTotal:   m.LineTotal,
	}
}

// BillSerialCounterModel holds the last issued sequence per serial prefix and day
type BillSerialCounterModel struct {
	Prefix  string    `gorm:"type:varchar(10);primaryKey"`
	Day     time.Time `gorm:"type:date;primaryKey"`
	LastSeq int       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BillSerialCounterModel) TableName() string {
	return "bill_serial_counters"
}
