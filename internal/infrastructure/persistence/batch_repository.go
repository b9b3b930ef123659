package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// fifoBatchOrder puts batches without expiry last
const fifoBatchOrder = "expiry_date IS NULL, expiry_date ASC, purchase_date ASC, id ASC"

// GormBatchRepository implements BatchRepository using GORM.
// Remaining quantities only change through conditional UPDATE statements.
type GormBatchRepository struct {
	db *gorm.DB
}

// NewGormBatchRepository creates a new GormBatchRepository
func NewGormBatchRepository(db *gorm.DB) *GormBatchRepository {
	return &GormBatchRepository{db: db}
}

// Create inserts a new batch
func (r *GormBatchRepository) Create(ctx context.Context, batch *inventory.Batch) error {
	return r.db.WithContext(ctx).Create(models.BatchModelFromDomain(batch)).Error
}

// FindByID finds a batch by its ID
func (r *GormBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Batch, error) {
	var model models.BatchModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Batch", id)
		}
		return nil, err
	}
	b := model.ToDomain()
	return &b, nil
}

// Exists checks whether a batch with the ID exists
func (r *GormBatchRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// DecreaseRemaining subtracts amount only if at least amount remains
func (r *GormBatchRepository) DecreaseRemaining(ctx context.Context, id uuid.UUID, amount int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND quantity_remaining >= ?", id, amount).
		Updates(map[string]any{
			"quantity_remaining": gorm.Expr("quantity_remaining - ?", amount),
			"updated_at":         time.Now(),
		})
	return r.conditionalResult(ctx, id, result)
}

// IncreaseRemaining adds amount only if the result stays within quantity received
func (r *GormBatchRepository) IncreaseRemaining(ctx context.Context, id uuid.UUID, amount int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("id = ? AND quantity_remaining + ? <= quantity_received", id, amount).
		Updates(map[string]any{
			"quantity_remaining": gorm.Expr("quantity_remaining + ?", amount),
			"updated_at":         time.Now(),
		})
	return r.conditionalResult(ctx, id, result)
}

// conditionalResult tells a failed condition apart from a missing batch
func (r *GormBatchRepository) conditionalResult(ctx context.Context, id uuid.UUID, result *gorm.DB) (bool, error) {
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	exists, err := r.Exists(ctx, id)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, shared.NewNotFoundError("Batch", id)
	}
	return false, nil
}

func (r *GormBatchRepository) find(query *gorm.DB) ([]inventory.Batch, error) {
	var rows []models.BatchModel
	if err := query.Order(fifoBatchOrder).Find(&rows).Error; err != nil {
		return nil, err
	}
	batches := make([]inventory.Batch, len(rows))
	for i := range rows {
		batches[i] = rows[i].ToDomain()
	}
	inventory.SortBatchesFIFO(batches)
	return batches, nil
}

// FindAvailableByProduct returns batches with remaining > 0 in FIFO order
func (r *GormBatchRepository) FindAvailableByProduct(ctx context.Context, productCode string) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("product_code = ? AND quantity_remaining > 0", productCode))
}

// FindExpiringBetween returns batches with stock whose expiry lies in [from, to]
func (r *GormBatchRepository) FindExpiringBetween(ctx context.Context, from, to time.Time) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("quantity_remaining > 0 AND expiry_date IS NOT NULL").
		Where("expiry_date >= ? AND expiry_date <= ?", from.UTC(), to.UTC()))
}

// FindExpired returns batches with stock whose expiry lies before asOf
func (r *GormBatchRepository) FindExpired(ctx context.Context, asOf time.Time) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("quantity_remaining > 0 AND expiry_date IS NOT NULL AND expiry_date < ?", asOf.UTC()))
}

// FindBySupplier returns all batches delivered by a supplier
func (r *GormBatchRepository) FindBySupplier(ctx context.Context, supplier string) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).Where("supplier_name = ?", supplier))
}

// FindByPurchaseDateRange returns batches purchased in [from, to]
func (r *GormBatchRepository) FindByPurchaseDateRange(ctx context.Context, from, to time.Time) ([]inventory.Batch, error) {
	return r.find(r.db.WithContext(ctx).
		Where("purchase_date >= ? AND purchase_date <= ?", from.UTC(), to.UTC()))
}

// TotalRemaining sums remaining quantity for a product
func (r *GormBatchRepository) TotalRemaining(ctx context.Context, productCode string) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("product_code = ?", productCode).
		Select("COALESCE(SUM(quantity_remaining), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

// CountByProduct counts all batches of a product, depleted ones included
func (r *GormBatchRepository) CountByProduct(ctx context.Context, productCode string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BatchModel{}).
		Where("product_code = ?", productCode).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Summary aggregates remaining stock per product, ordered by product code
func (r *GormBatchRepository) Summary(ctx context.Context) ([]inventory.ProductStockSummary, error) {
	var rows []models.BatchModel
	if err := r.db.WithContext(ctx).
		Select("product_code", "quantity_remaining", "expiry_date").
		Where("quantity_remaining > 0").
		Order("product_code ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}

	var out []inventory.ProductStockSummary
	for _, row := range rows {
		if len(out) == 0 || out[len(out)-1].ProductCode != row.ProductCode {
			out = append(out, inventory.ProductStockSummary{ProductCode: row.ProductCode})
		}
		s := &out[len(out)-1]
		s.TotalRemaining += row.QuantityRemaining
		s.BatchCount++
		if row.ExpiryDate != nil && (s.EarliestExpiry == nil || row.ExpiryDate.Before(*s.EarliestExpiry)) {
			s.EarliestExpiry = row.ExpiryDate
		}
	}
	return out, nil
}

// Ensure GormBatchRepository implements BatchRepository
var _ inventory.BatchRepository = (*GormBatchRepository)(nil)
