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
	"gorm.io/gorm/clause"
)

// fifoEntryOrder puts rows without expiry last; created_at is the first restock
const fifoEntryOrder = "expiry_date IS NULL, expiry_date ASC, created_at ASC, batch_id ASC"

// GormStoreStockRepository implements StoreStockRepository for one channel
type GormStoreStockRepository struct {
	db      *gorm.DB
	channel inventory.Channel
}

// NewGormStoreStockRepository creates the store stock repository of a channel
func NewGormStoreStockRepository(db *gorm.DB, channel inventory.Channel) *GormStoreStockRepository {
	return &GormStoreStockRepository{db: db, channel: channel}
}

// Channel returns the channel this repository is scoped to
func (r *GormStoreStockRepository) Channel() inventory.Channel {
	return r.channel
}

func (r *GormStoreStockRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.StoreStockModel{}).
		Where("channel = ?", string(r.channel))
}

func (r *GormStoreStockRepository) notFound(productCode string, batchID uuid.UUID) error {
	return shared.NewNotFoundError("Store stock", productCode+"/"+batchID.String())
}

// Find returns the row for (product, batch)
func (r *GormStoreStockRepository) Find(ctx context.Context, productCode string, batchID uuid.UUID) (*inventory.StoreStockEntry, error) {
	var model models.StoreStockModel
	if err := r.scoped(ctx).
		Where("product_code = ? AND batch_id = ?", productCode, batchID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, r.notFound(productCode, batchID)
		}
		return nil, err
	}
	e := model.ToDomain()
	return &e, nil
}

func (r *GormStoreStockRepository) find(query *gorm.DB) ([]inventory.StoreStockEntry, error) {
	var rows []models.StoreStockModel
	if err := query.Order(fifoEntryOrder).Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]inventory.StoreStockEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	inventory.SortEntriesFIFO(entries)
	return entries, nil
}

// FindByProduct returns every row of the product, zero rows included, in FIFO order
func (r *GormStoreStockRepository) FindByProduct(ctx context.Context, productCode string) ([]inventory.StoreStockEntry, error) {
	return r.find(r.scoped(ctx).Where("product_code = ?", productCode))
}

// FindAvailableByProduct returns rows with quantity > 0 in FIFO order
func (r *GormStoreStockRepository) FindAvailableByProduct(ctx context.Context, productCode string) ([]inventory.StoreStockEntry, error) {
	return r.find(r.scoped(ctx).Where("product_code = ? AND quantity > 0", productCode))
}

// AddQuantity creates the row on first restock or adds to it.
// An existing row keeps its created_at and expiry.
func (r *GormStoreStockRepository) AddQuantity(ctx context.Context, productCode string, batchID uuid.UUID, expiry *time.Time, amount int) error {
	now := time.Now()
	row := &models.StoreStockModel{
		BaseModel: models.BaseModel{
			ID:        uuid.New(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		Channel:     string(r.channel),
		ProductCode: productCode,
		BatchID:     batchID,
		Quantity:    amount,
		ExpiryDate:  expiry,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "channel"}, {Name: "product_code"}, {Name: "batch_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"quantity":   gorm.Expr("store_stock.quantity + excluded.quantity"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(row).Error
}

// DecreaseQuantity subtracts amount only if the row holds at least amount
func (r *GormStoreStockRepository) DecreaseQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error) {
	result := r.scoped(ctx).
		Where("product_code = ? AND batch_id = ? AND quantity >= ?", productCode, batchID, amount).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := r.scoped(ctx).
		Where("product_code = ? AND batch_id = ?", productCode, batchID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, r.notFound(productCode, batchID)
	}
	return false, nil
}

// IncreaseQuantity adds amount back to an existing row, false if the row is missing
func (r *GormStoreStockRepository) IncreaseQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error) {
	result := r.scoped(ctx).
		Where("product_code = ? AND batch_id = ?", productCode, batchID).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", amount),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// TotalQuantity sums the product's rows
func (r *GormStoreStockRepository) TotalQuantity(ctx context.Context, productCode string) (int, error) {
	var total int64
	if err := r.scoped(ctx).
		Where("product_code = ?", productCode).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

type productQuantityRow struct {
	ProductCode string
	Quantity    int64
	BatchCount  int64
}

func (r *GormStoreStockRepository) aggregate(query *gorm.DB) ([]inventory.ProductQuantity, error) {
	var rows []productQuantityRow
	if err := query.
		Select("product_code, COALESCE(SUM(quantity), 0) AS quantity, " +
			"SUM(CASE WHEN quantity > 0 THEN 1 ELSE 0 END) AS batch_count").
		Group("product_code").
		Order("product_code ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]inventory.ProductQuantity, len(rows))
	for i, row := range rows {
		out[i] = inventory.ProductQuantity{
			ProductCode: row.ProductCode,
			Quantity:    int(row.Quantity),
			BatchCount:  int(row.BatchCount),
		}
	}
	return out, nil
}

// FindLowStock returns products whose total is below threshold
func (r *GormStoreStockRepository) FindLowStock(ctx context.Context, threshold int) ([]inventory.ProductQuantity, error) {
	return r.aggregate(r.scoped(ctx).Having("SUM(quantity) < ?", threshold))
}

// Summary aggregates every product held by the channel
func (r *GormStoreStockRepository) Summary(ctx context.Context) ([]inventory.ProductQuantity, error) {
	return r.aggregate(r.scoped(ctx))
}

// Ensure GormStoreStockRepository implements StoreStockRepository
var _ inventory.StoreStockRepository = (*GormStoreStockRepository)(nil)
