package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/catalog"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ChannelStock is the sellable stock of one sales channel
type ChannelStock interface {
	// Channel returns the channel this stock belongs to
	Channel() inventory.Channel

	// Restock moves qty units of a product from the batch ledger in FIFO order
	Restock(ctx context.Context, productCode string, qty int) (*RestockOutcome, error)
	// RestockFromBatch moves qty units out of one named batch
	RestockFromBatch(ctx context.Context, batchID uuid.UUID, qty int) (*RestockOutcome, error)

	// ReduceQuantity takes amount from one row only if the row holds enough and records an adjustment
	ReduceQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error)
	// IncreaseQuantity returns amount to one row and records a return
	IncreaseQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error)

	// GetAvailableQuantity sums the product's rows
	GetAvailableQuantity(ctx context.Context, productCode string) (int, error)
	// HasAvailableStock reports whether at least qty units are on hand
	HasAvailableStock(ctx context.Context, productCode string, qty int) (bool, error)

	// AllocateFIFO plans qty units against current rows without changing them
	AllocateFIFO(ctx context.Context, productCode string, qty int) (inventory.AllocationPlan, error)
	// CommitPlan applies a plan; any lost race undoes the rows already taken
	CommitPlan(ctx context.Context, plan inventory.AllocationPlan) error
	// ReleasePlan gives a committed plan back
	ReleasePlan(ctx context.Context, plan inventory.AllocationPlan) error
	// AllocateForSale plans a sale against current rows; the sale commits the plan with its bill
	AllocateForSale(ctx context.Context, productCode string, qty int) (inventory.AllocationPlan, error)

	// LowStock lists products whose total is below threshold
	LowStock(ctx context.Context, threshold int) ([]inventory.ProductQuantity, error)
	// Summary lists every product on the channel
	Summary(ctx context.Context) ([]inventory.ProductQuantity, error)
	// Entries lists the product's rows in FIFO order
	Entries(ctx context.Context, productCode string) ([]inventory.StoreStockEntry, error)
}

// ChannelStockService implements ChannelStock for one channel
type ChannelStockService struct {
	channel  inventory.Channel
	store    inventory.StoreStockRepository
	batches  inventory.BatchRepository
	products catalog.ProductRepository
	scope    TransactionScope
	logger   *zap.Logger
	metrics  *telemetry.RetailMetrics
}

// NewChannelStockService creates the stock service of the store repository's channel
func NewChannelStockService(
	store inventory.StoreStockRepository,
	batches inventory.BatchRepository,
	products catalog.ProductRepository,
	scope TransactionScope,
	logger *zap.Logger,
) *ChannelStockService {
	ch := store.Channel()
	return &ChannelStockService{
		channel:  ch,
		store:    store,
		batches:  batches,
		products: products,
		scope:    scope,
		logger:   logger.With(zap.String("channel", ch.String())),
	}
}

// SetRetailMetrics sets the metrics recorder (optional)
func (s *ChannelStockService) SetRetailMetrics(m *telemetry.RetailMetrics) {
	s.metrics = m
}

// Channel returns the channel this stock belongs to
func (s *ChannelStockService) Channel() inventory.Channel {
	return s.channel
}

// Restock walks the product's ledger batches in FIFO order. Each batch is
// decremented with a conditional update; a batch lost to a concurrent restock
// is skipped. The channel row and its audit record are written in one
// transaction, and the batch decrement is undone if that transaction fails.
func (s *ChannelStockService) Restock(ctx context.Context, productCode string, qty int) (*RestockOutcome, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "channel_stock", "restock",
		telemetry.SpanAttrChannel, s.channel.String(),
		telemetry.SpanAttrProductCode, productCode,
		telemetry.SpanAttrQuantity, qty,
	)
	defer span.End()

	if qty <= 0 {
		return nil, shared.FieldError("quantity", "Quantity must be greater than zero")
	}
	exists, err := s.products.ExistsByCode(ctx, productCode)
	if err != nil {
		return nil, fmt.Errorf("failed to look up product: %w", err)
	}
	if !exists {
		return nil, shared.NewNotFoundError("Product", productCode)
	}

	batches, err := s.batches.FindAvailableByProduct(ctx, productCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(batches) == 0 {
		return &RestockOutcome{
			Message: fmt.Sprintf("No stock available in the batch ledger for product %s", productCode),
		}, nil
	}

	outcome := &RestockOutcome{}
	need := qty
	for _, b := range batches {
		if need == 0 {
			break
		}
		take := min(b.QuantityRemaining, need)
		moved, err := s.moveFromBatch(ctx, &b, take)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if !moved {
			s.logger.Debug("Batch taken concurrently, skipping",
				zap.String("batch_id", b.ID.String()))
			continue
		}
		need -= take
		outcome.QuantityRestocked += take
		outcome.BatchesUsed++
	}

	s.finishRestock(ctx, productCode, qty, outcome)
	return outcome, nil
}

// RestockFromBatch moves qty units out of one batch
func (s *ChannelStockService) RestockFromBatch(ctx context.Context, batchID uuid.UUID, qty int) (*RestockOutcome, error) {
	if qty <= 0 {
		return nil, shared.FieldError("quantity", "Quantity must be greater than zero")
	}
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}

	moved, err := s.moveFromBatch(ctx, batch, qty)
	if err != nil {
		return nil, err
	}
	outcome := &RestockOutcome{}
	if moved {
		outcome.QuantityRestocked = qty
		outcome.BatchesUsed = 1
	}
	s.finishRestock(ctx, batch.ProductCode, qty, outcome)
	if !moved {
		outcome.Message = fmt.Sprintf("Batch %s does not hold %d units", batchID, qty)
	}
	return outcome, nil
}

// moveFromBatch takes qty from the batch and puts it on the channel.
// Returns false when the batch no longer holds qty.
func (s *ChannelStockService) moveFromBatch(ctx context.Context, b *inventory.Batch, qty int) (bool, error) {
	ok, err := s.batches.DecreaseRemaining(ctx, b.ID, qty)
	if err != nil || !ok {
		return false, err
	}

	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.StoreStock(s.channel).AddQuantity(ctx, b.ProductCode, b.ID, b.ExpiryDate, qty); err != nil {
			return fmt.Errorf("failed to add store stock: %w", err)
		}
		return repos.TransactionLog().Append(ctx,
			inventory.NewRestockRecord(b.ProductCode, b.ID, s.channel, qty))
	})
	if err == nil {
		return true, nil
	}

	if _, cerr := s.batches.IncreaseRemaining(ctx, b.ID, qty); cerr != nil {
		s.logger.Error("Failed to return restock quantity to batch",
			zap.String("batch_id", b.ID.String()),
			zap.Int("quantity", qty),
			zap.Error(cerr),
		)
		return false, fmt.Errorf("restock failed: %w (batch compensation failed: %v)", err, cerr)
	}
	return false, err
}

func (s *ChannelStockService) finishRestock(ctx context.Context, productCode string, requested int, outcome *RestockOutcome) {
	switch {
	case outcome.QuantityRestocked == 0:
		outcome.Success = false
		outcome.Message = fmt.Sprintf("Nothing restocked for product %s", productCode)
	case outcome.QuantityRestocked < requested:
		outcome.Success = true
		outcome.Message = fmt.Sprintf("Partially restocked %d of %d units from %d batch(es)",
			outcome.QuantityRestocked, requested, outcome.BatchesUsed)
	default:
		outcome.Success = true
		outcome.Message = fmt.Sprintf("Restocked %d units from %d batch(es)",
			outcome.QuantityRestocked, outcome.BatchesUsed)
	}

	if outcome.QuantityRestocked > 0 {
		if s.metrics != nil {
			s.metrics.RecordRestock(ctx, s.channel.String(), outcome.QuantityRestocked)
		}
		s.logger.Info("Restocked",
			zap.String("product_code", productCode),
			zap.Int("requested", requested),
			zap.Int("restocked", outcome.QuantityRestocked),
			zap.Int("batches_used", outcome.BatchesUsed),
		)
	}
}

// ReduceQuantity takes amount from one row only if the row holds enough.
// The decrement and its adjustment record are written together.
func (s *ChannelStockService) ReduceQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return false, shared.FieldError("amount", "Amount must be greater than zero")
	}
	return s.adjustRow(ctx, productCode, batchID, -amount,
		inventory.NewWithdrawalRecord(productCode, batchID, s.channel, amount, "Withdrawn from channel"))
}

// IncreaseQuantity returns amount to one row and records it as a return
func (s *ChannelStockService) IncreaseQuantity(ctx context.Context, productCode string, batchID uuid.UUID, amount int) (bool, error) {
	if amount <= 0 {
		return false, shared.FieldError("amount", "Amount must be greater than zero")
	}
	return s.adjustRow(ctx, productCode, batchID, amount,
		inventory.NewReturnRecord(productCode, batchID, s.channel, amount, nil, "Returned to channel"))
}

// adjustRow applies delta to one row and appends rec in the same transaction.
// Returns false, with nothing recorded, when the row cannot take the change.
func (s *ChannelStockService) adjustRow(ctx context.Context, productCode string, batchID uuid.UUID, delta int, rec *inventory.TransactionRecord) (bool, error) {
	var applied bool
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		store := repos.StoreStock(s.channel)
		var err error
		if delta < 0 {
			applied, err = store.DecreaseQuantity(ctx, productCode, batchID, -delta)
		} else {
			applied, err = store.IncreaseQuantity(ctx, productCode, batchID, delta)
		}
		if err != nil || !applied {
			return err
		}
		return repos.TransactionLog().Append(ctx, rec)
	})
	if err != nil {
		return false, fmt.Errorf("failed to adjust store stock: %w", err)
	}
	return applied, nil
}

// GetAvailableQuantity sums the product's rows
func (s *ChannelStockService) GetAvailableQuantity(ctx context.Context, productCode string) (int, error) {
	return s.store.TotalQuantity(ctx, productCode)
}

// HasAvailableStock reports whether at least qty units are on hand
func (s *ChannelStockService) HasAvailableStock(ctx context.Context, productCode string, qty int) (bool, error) {
	if strings.TrimSpace(productCode) == "" {
		return false, shared.FieldError("product_code", "Product code is required")
	}
	if qty <= 0 {
		return false, shared.FieldError("quantity", "Quantity must be greater than zero")
	}
	available, err := s.store.TotalQuantity(ctx, productCode)
	if err != nil {
		return false, err
	}
	return available >= qty, nil
}

// AllocateFIFO reads the product's rows and plans qty units against them
func (s *ChannelStockService) AllocateFIFO(ctx context.Context, productCode string, qty int) (inventory.AllocationPlan, error) {
	if qty <= 0 {
		return inventory.AllocationPlan{}, shared.FieldError("quantity", "Quantity must be greater than zero")
	}
	rows, err := s.store.FindAvailableByProduct(ctx, productCode)
	if err != nil {
		return inventory.AllocationPlan{}, err
	}
	return inventory.PlanFIFO(productCode, s.channel, qty, rows)
}

// CommitPlan decrements each allocated row. If a row no longer holds its
// allocation, the rows already decremented are given back and an
// InsufficientStockError is returned.
func (s *ChannelStockService) CommitPlan(ctx context.Context, plan inventory.AllocationPlan) error {
	if plan.Channel != "" && plan.Channel != s.channel {
		return shared.FieldError("channel", "Plan belongs to channel "+plan.Channel.String())
	}
	for i, a := range plan.Allocations {
		ok, err := s.store.DecreaseQuantity(ctx, plan.ProductCode, a.BatchID, a.Quantity)
		if err == nil && ok {
			continue
		}

		applied := inventory.AllocationPlan{
			ProductCode: plan.ProductCode,
			Channel:     s.channel,
			Allocations: plan.Allocations[:i],
		}
		if rerr := s.ReleasePlan(ctx, applied); rerr != nil {
			if err == nil {
				err = shared.NewInsufficientStockError(plan.ProductCode, 0, plan.Total())
			}
			return errors.Join(err, fmt.Errorf("compensation failed: %w", rerr))
		}
		if err != nil {
			return fmt.Errorf("failed to decrement store stock: %w", err)
		}

		available, aerr := s.store.TotalQuantity(ctx, plan.ProductCode)
		if aerr != nil {
			available = 0
		}
		s.logger.Info("Allocation lost to a concurrent sale",
			zap.String("product_code", plan.ProductCode),
			zap.String("batch_id", a.BatchID.String()),
			zap.Int("requested", plan.Total()),
		)
		return shared.NewInsufficientStockError(plan.ProductCode, available, plan.Total())
	}
	return nil
}

// ReleasePlan gives every allocation of a committed plan back, newest first.
// All allocations are attempted; failures are joined.
func (s *ChannelStockService) ReleasePlan(ctx context.Context, plan inventory.AllocationPlan) error {
	if plan.IsEmpty() {
		return nil
	}
	var errs []error
	for _, a := range plan.Reversed() {
		ok, err := s.store.IncreaseQuantity(ctx, plan.ProductCode, a.BatchID, a.Quantity)
		if err == nil && !ok {
			err = fmt.Errorf("store stock row %s/%s missing", plan.ProductCode, a.BatchID)
		}
		if err != nil {
			s.logger.Error("Failed to release allocation",
				zap.String("product_code", plan.ProductCode),
				zap.String("batch_id", a.BatchID.String()),
				zap.Int("quantity", a.Quantity),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if s.metrics != nil {
		s.metrics.RecordCompensation(ctx, s.channel.String(), 1)
	}
	return errors.Join(errs...)
}

// AllocateForSale plans qty units of a product for a sale. Nothing is
// deducted: the checkout commits the plan together with the bill and its
// SALE records.
func (s *ChannelStockService) AllocateForSale(ctx context.Context, productCode string, qty int) (inventory.AllocationPlan, error) {
	return s.AllocateFIFO(ctx, productCode, qty)
}

// LowStock lists products whose total is below threshold
func (s *ChannelStockService) LowStock(ctx context.Context, threshold int) ([]inventory.ProductQuantity, error) {
	if threshold < 0 {
		return nil, shared.FieldError("threshold", "Threshold cannot be negative")
	}
	return s.store.FindLowStock(ctx, threshold)
}

// Summary lists every product on the channel
func (s *ChannelStockService) Summary(ctx context.Context) ([]inventory.ProductQuantity, error) {
	return s.store.Summary(ctx)
}

// Entries lists the product's rows in FIFO order
func (s *ChannelStockService) Entries(ctx context.Context, productCode string) ([]inventory.StoreStockEntry, error) {
	return s.store.FindByProduct(ctx, productCode)
}

// ChannelStocks holds the stock service of each channel
type ChannelStocks struct {
	byChannel map[inventory.Channel]ChannelStock
}

// NewChannelStocks gathers channel stock services by their channel
func NewChannelStocks(stocks ...ChannelStock) *ChannelStocks {
	c := &ChannelStocks{byChannel: make(map[inventory.Channel]ChannelStock, len(stocks))}
	for _, s := range stocks {
		c.byChannel[s.Channel()] = s
	}
	return c
}

// For returns the stock of a channel
func (c *ChannelStocks) For(channel inventory.Channel) (ChannelStock, error) {
	s, ok := c.byChannel[channel]
	if !ok {
		return nil, shared.FieldError("channel", "Unknown channel "+channel.String())
	}
	return s, nil
}

// All returns every channel's stock in channel order
func (c *ChannelStocks) All() []ChannelStock {
	out := make([]ChannelStock, 0, len(c.byChannel))
	for _, ch := range inventory.Channels() {
		if s, ok := c.byChannel[ch]; ok {
			out = append(out, s)
		}
	}
	return out
}

var _ ChannelStock = (*ChannelStockService)(nil)
