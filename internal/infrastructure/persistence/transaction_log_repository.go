package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTransactionLog implements the append-only TransactionLog using GORM.
// There is no update or delete path.
type GormTransactionLog struct {
	db *gorm.DB
}

// NewGormTransactionLog creates a new GormTransactionLog
func NewGormTransactionLog(db *gorm.DB) *GormTransactionLog {
	return &GormTransactionLog{db: db}
}

// Append writes records in one INSERT
func (r *GormTransactionLog) Append(ctx context.Context, records ...*inventory.TransactionRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]*models.TransactionRecordModel, len(records))
	for i, rec := range records {
		rows[i] = models.TransactionRecordModelFromDomain(rec)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

func (r *GormTransactionLog) find(query *gorm.DB) ([]inventory.TransactionRecord, error) {
	var rows []models.TransactionRecordModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.TransactionRecord, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// FindByProduct returns the most recent records for a product, newest first
func (r *GormTransactionLog) FindByProduct(ctx context.Context, productCode string, limit int) ([]inventory.TransactionRecord, error) {
	query := r.db.WithContext(ctx).
		Where("product_code = ?", productCode).
		Order("occurred_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.find(query)
}

// FindByBatch returns every record touching a batch, oldest first
func (r *GormTransactionLog) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]inventory.TransactionRecord, error) {
	return r.find(r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("occurred_at ASC"))
}

// FindByBill returns the records written for a bill
func (r *GormTransactionLog) FindByBill(ctx context.Context, billID uuid.UUID) ([]inventory.TransactionRecord, error) {
	return r.find(r.db.WithContext(ctx).
		Where("bill_id = ?", billID).
		Order("occurred_at ASC"))
}

// Ensure GormTransactionLog implements TransactionLog
var _ inventory.TransactionLog = (*GormTransactionLog)(nil)
