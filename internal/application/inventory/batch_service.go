package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/catalog"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BatchLedgerService handles supplier batches and their remaining quantities
type BatchLedgerService struct {
	batches  inventory.BatchRepository
	products catalog.ProductRepository
	txLog    inventory.TransactionLog
	scope    TransactionScope
	logger   *zap.Logger
	now      func() time.Time
}

// NewBatchLedgerService creates a new BatchLedgerService
func NewBatchLedgerService(
	batches inventory.BatchRepository,
	products catalog.ProductRepository,
	txLog inventory.TransactionLog,
	scope TransactionScope,
	logger *zap.Logger,
) *BatchLedgerService {
	return &BatchLedgerService{
		batches:  batches,
		products: products,
		txLog:    txLog,
		scope:    scope,
		logger:   logger,
		now:      time.Now,
	}
}

// AddBatch records a supplier receipt and its PURCHASE audit record
func (s *BatchLedgerService) AddBatch(ctx context.Context, req AddBatchRequest) (*BatchResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "batch_ledger", "add_batch",
		telemetry.SpanAttrProductCode, req.ProductCode,
		telemetry.SpanAttrQuantity, req.Quantity,
	)
	defer span.End()

	var purchaseDate time.Time
	if req.PurchaseDate != nil {
		purchaseDate = *req.PurchaseDate
	}
	batch, err := inventory.NewBatch(req.ProductCode, req.Quantity, req.UnitCost, purchaseDate, req.ExpiryDate, req.SupplierName)
	if err != nil {
		return nil, err
	}

	exists, err := s.products.ExistsByCode(ctx, batch.ProductCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("Product", batch.ProductCode)
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Batches().Create(ctx, batch); err != nil {
			return fmt.Errorf("failed to save batch: %w", err)
		}
		return repos.TransactionLog().Append(ctx, inventory.NewPurchaseRecord(batch))
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("Batch received",
		zap.String("batch_id", batch.ID.String()),
		zap.String("product_code", batch.ProductCode),
		zap.Int("quantity", batch.QuantityReceived),
		zap.String("supplier", batch.SupplierName),
	)
	resp := ToBatchResponse(batch, s.now())
	return &resp, nil
}

// ReduceQuantity takes amount out of a batch only if enough remains.
// Returns false when not enough remains.
func (s *BatchLedgerService) ReduceQuantity(ctx context.Context, batchID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return false, shared.FieldError("amount", "Amount must be greater than zero")
	}
	return s.batches.DecreaseRemaining(ctx, batchID, amount)
}

// IncreaseQuantity puts amount back into a batch only if it stays within the quantity received
func (s *BatchLedgerService) IncreaseQuantity(ctx context.Context, batchID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return false, shared.FieldError("amount", "Amount must be greater than zero")
	}
	return s.batches.IncreaseRemaining(ctx, batchID, amount)
}

// AdjustQuantity corrects a batch by delta and writes an ADJUSTMENT record,
// or an EXPIRED record for a write-off.
func (s *BatchLedgerService) AdjustQuantity(ctx context.Context, batchID uuid.UUID, req AdjustQuantityRequest) (*BatchResponse, error) {
	if req.Delta == 0 {
		return nil, shared.FieldError("delta", "Delta must not be zero")
	}
	if req.WriteOff && req.Delta > 0 {
		return nil, shared.FieldError("delta", "A write-off must reduce the batch")
	}

	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var (
			ok     bool
			err    error
			record *inventory.TransactionRecord
		)
		switch {
		case req.Delta < 0:
			ok, err = repos.Batches().DecreaseRemaining(ctx, batchID, -req.Delta)
		default:
			ok, err = repos.Batches().IncreaseRemaining(ctx, batchID, req.Delta)
		}
		if err != nil {
			return err
		}
		if !ok {
			if req.Delta < 0 {
				return shared.NewInsufficientStockError(batch.ProductCode, batch.QuantityRemaining, -req.Delta)
			}
			return shared.FieldError("delta", "Adjustment would exceed the quantity received")
		}

		if req.WriteOff {
			record = inventory.NewExpiredRecord(batch.ProductCode, batchID, -req.Delta, req.Remark)
		} else {
			record = inventory.NewAdjustmentRecord(batch.ProductCode, batchID, req.Delta, req.Remark)
		}
		return repos.TransactionLog().Append(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Batch adjusted",
		zap.String("batch_id", batchID.String()),
		zap.Int("delta", req.Delta),
		zap.Bool("write_off", req.WriteOff),
	)
	return s.GetBatch(ctx, batchID)
}

// GetBatch retrieves a batch by ID
func (s *BatchLedgerService) GetBatch(ctx context.Context, batchID uuid.UUID) (*BatchResponse, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	resp := ToBatchResponse(batch, s.now())
	return &resp, nil
}

// FindAvailableBatches returns the product's batches with stock, in FIFO order
func (s *BatchLedgerService) FindAvailableBatches(ctx context.Context, productCode string) ([]BatchResponse, error) {
	if strings.TrimSpace(productCode) == "" {
		return nil, shared.FieldError("product_code", "Product code is required")
	}
	batches, err := s.batches.FindAvailableByProduct(ctx, productCode)
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches, s.now()), nil
}

// FindExpiring returns batches with stock that expire within days from today
func (s *BatchLedgerService) FindExpiring(ctx context.Context, days int) ([]BatchResponse, error) {
	if days < 0 {
		return nil, shared.FieldError("days", "Days cannot be negative")
	}
	today := inventory.DateOf(s.now())
	batches, err := s.batches.FindExpiringBetween(ctx, today, today.AddDate(0, 0, days))
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches, s.now()), nil
}

// FindExpired returns batches with stock whose expiry date has passed
func (s *BatchLedgerService) FindExpired(ctx context.Context) ([]BatchResponse, error) {
	batches, err := s.batches.FindExpired(ctx, inventory.DateOf(s.now()))
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches, s.now()), nil
}

// FindBySupplier returns every batch delivered by a supplier
func (s *BatchLedgerService) FindBySupplier(ctx context.Context, supplier string) ([]BatchResponse, error) {
	supplier = strings.TrimSpace(supplier)
	if supplier == "" {
		return nil, shared.FieldError("supplier_name", "Supplier name is required")
	}
	batches, err := s.batches.FindBySupplier(ctx, supplier)
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches, s.now()), nil
}

// FindByPurchaseDateRange returns batches purchased between from and to inclusive
func (s *BatchLedgerService) FindByPurchaseDateRange(ctx context.Context, from, to time.Time) ([]BatchResponse, error) {
	from, to = inventory.DateOf(from), inventory.DateOf(to)
	if from.After(to) {
		return nil, shared.FieldError("from", "Start date must not be after end date")
	}
	batches, err := s.batches.FindByPurchaseDateRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	return ToBatchResponses(batches, s.now()), nil
}

// TotalRemaining sums the product's remaining quantity across batches
func (s *BatchLedgerService) TotalRemaining(ctx context.Context, productCode string) (int, error) {
	return s.batches.TotalRemaining(ctx, productCode)
}

// InventoryValue returns the purchase cost of everything still in the ledger for a product
func (s *BatchLedgerService) InventoryValue(ctx context.Context, productCode string) (decimal.Decimal, error) {
	batches, err := s.batches.FindAvailableByProduct(ctx, productCode)
	if err != nil {
		return decimal.Zero, err
	}
	value := decimal.Zero
	for _, b := range batches {
		value = value.Add(b.UnitCost.Mul(decimal.NewFromInt(int64(b.QuantityRemaining))))
	}
	return value.Round(2), nil
}

// Summary aggregates remaining stock per product
func (s *BatchLedgerService) Summary(ctx context.Context) ([]StockSummaryResponse, error) {
	rows, err := s.batches.Summary(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]StockSummaryResponse, len(rows))
	for i, r := range rows {
		out[i] = StockSummaryResponse{
			ProductCode:    r.ProductCode,
			TotalRemaining: r.TotalRemaining,
			BatchCount:     r.BatchCount,
			EarliestExpiry: r.EarliestExpiry,
		}
	}
	return out, nil
}

// BatchHistory returns every audit record touching a batch, oldest first
func (s *BatchLedgerService) BatchHistory(ctx context.Context, batchID uuid.UUID) ([]TransactionRecordResponse, error) {
	if _, err := s.batches.FindByID(ctx, batchID); err != nil {
		return nil, err
	}
	records, err := s.txLog.FindByBatch(ctx, batchID)
	if err != nil {
		return nil, err
	}
	return ToTransactionRecordResponses(records), nil
}

// ProductHistory returns the latest audit records of a product
func (s *BatchLedgerService) ProductHistory(ctx context.Context, productCode string, limit int) ([]TransactionRecordResponse, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	records, err := s.txLog.FindByProduct(ctx, productCode, limit)
	if err != nil {
		return nil, err
	}
	return ToTransactionRecordResponses(records), nil
}
