package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// pgUniqueViolation is the SQLSTATE of a unique constraint violation
const pgUniqueViolation = "23505"

// GormBillRepository implements BillRepository using GORM
type GormBillRepository struct {
	db *gorm.DB
}

// NewGormBillRepository creates a new GormBillRepository
func NewGormBillRepository(db *gorm.DB) *GormBillRepository {
	return &GormBillRepository{db: db}
}

// Create inserts the bill header and its lines
func (r *GormBillRepository) Create(ctx context.Context, bill *sales.Bill) error {
	return r.db.WithContext(ctx).Create(models.BillModelFromDomain(bill)).Error
}

func (r *GormBillRepository) withLines(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}

// FindByID finds a bill by its ID
func (r *GormBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*sales.Bill, error) {
	var model models.BillModel
	if err := r.withLines(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Bill", id)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Exists checks whether a bill with the ID was persisted
func (r *GormBillRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.BillModel{}).
		Where("id = ?", id).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindBySerialNumber finds a bill by its serial number
func (r *GormBillRepository) FindBySerialNumber(ctx context.Context, serial string) (*sales.Bill, error) {
	var model models.BillModel
	if err := r.withLines(ctx).First(&model, "serial_number = ?", serial).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("Bill", serial)
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormBillRepository) finalized(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.BillModel{}).
		Where("status = ?", string(sales.BillStatusFinalized))
}

func (r *GormBillRepository) findFinalized(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]sales.Bill, error) {
	var rows []models.BillModel
	query := r.withLines(ctx).
		Where("status = ?", string(sales.BillStatusFinalized)).
		Order("bill_date DESC, serial_number DESC")
	if err := scope(query).Find(&rows).Error; err != nil {
		return nil, err
	}
	bills := make([]sales.Bill, len(rows))
	for i := range rows {
		bills[i] = *rows[i].ToDomain()
	}
	return bills, nil
}

// FindByDateRange returns finalized bills dated in [from, to), newest first
func (r *GormBillRepository) FindByDateRange(ctx context.Context, from, to time.Time) ([]sales.Bill, error) {
	return r.findFinalized(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("bill_date >= ? AND bill_date < ?", from.UTC(), to.UTC())
	})
}

// FindByCustomer returns the finalized bills of a customer, newest first
func (r *GormBillRepository) FindByCustomer(ctx context.Context, customerRef string) ([]sales.Bill, error) {
	return r.findFinalized(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("customer_ref = ?", customerRef)
	})
}

// FindRecent returns the latest finalized bills
func (r *GormBillRepository) FindRecent(ctx context.Context, limit int) ([]sales.Bill, error) {
	return r.findFinalized(ctx, func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			return db.Limit(limit)
		}
		return db
	})
}

// NextSerialNumber reserves the next serial number of the channel for day.
// The counter row is bumped in place; the first bill of a day inserts it.
// Two first bills racing on postgres collide on the primary key, and the
// loser retries once through the update path.
func (r *GormBillRepository) NextSerialNumber(ctx context.Context, channel inventory.Channel, day time.Time) (string, error) {
	prefix := sales.SerialPrefix(channel)
	day = inventory.DateOf(day)

	var (
		seq int
		err error
	)
	for attempt := 0; attempt < 2; attempt++ {
		seq, err = r.bumpCounter(ctx, prefix, day)
		if err == nil || !isUniqueViolation(err) {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("failed to bump %s serial counter: %w", prefix, err)
	}
	return sales.FormatSerialNumber(channel, day, seq), nil
}

func (r *GormBillRepository) bumpCounter(ctx context.Context, prefix string, day time.Time) (int, error) {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.BillSerialCounterModel{}).
		Where("prefix = ? AND day = ?", prefix, day).
		Update("last_seq", gorm.Expr("last_seq + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		// Nested transaction: a savepoint when already inside one, so a
		// unique violation does not abort the caller's transaction.
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Create(&models.BillSerialCounterModel{Prefix: prefix, Day: day, LastSeq: 1}).Error
		})
		if err != nil {
			return 0, err
		}
		return 1, nil
	}

	var counter models.BillSerialCounterModel
	if err := db.First(&counter, "prefix = ? AND day = ?", prefix, day).Error; err != nil {
		return 0, err
	}
	return counter.LastSeq, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// SummaryBetween counts and sums finalized bills dated in [from, to)
func (r *GormBillRepository) SummaryBetween(ctx context.Context, from, to time.Time) (sales.SalesSummary, error) {
	var row struct {
		Count int64
		Total decimal.NullDecimal
	}
	if err := r.finalized(ctx).
		Where("bill_date >= ? AND bill_date < ?", from.UTC(), to.UTC()).
		Select("COUNT(*) AS count, SUM(total) AS total").
		Scan(&row).Error; err != nil {
		return sales.SalesSummary{}, err
	}
	sum := sales.SalesSummary{Count: row.Count, Total: decimal.Zero}
	if row.Total.Valid {
		sum.Total = row.Total.Decimal
	}
	return sum, nil
}

// Ensure GormBillRepository implements BillRepository
var _ sales.BillRepository = (*GormBillRepository)(nil)
