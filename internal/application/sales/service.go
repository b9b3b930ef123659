package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	"github.com/retail/backend/internal/domain/catalog"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Checkout modes, used as the metrics label
const (
	modeIncremental = "incremental"
	modeAtomic      = "atomic"
)

// Service coordinates bills from creation to finalization.
//
// In-progress bills live in the session store and never touch stock.
// Stock is only deducted when a bill is finalized or an atomic checkout
// commits, both through commitSale.
type Service struct {
	products catalog.ProductRepository
	bills    sales.BillRepository
	sessions sales.SessionStore
	stocks   *inventoryapp.ChannelStocks
	scope    TransactionScope
	logger   *zap.Logger
	metrics  *telemetry.RetailMetrics
	locks    *billLocks
	now      func() time.Time

	archive     BillArchive
	archivePool *scheduler.WorkerPool
}

// NewService creates a new checkout Service
func NewService(
	products catalog.ProductRepository,
	bills sales.BillRepository,
	sessions sales.SessionStore,
	stocks *inventoryapp.ChannelStocks,
	scope TransactionScope,
	logger *zap.Logger,
) *Service {
	return &Service{
		products: products,
		bills:    bills,
		sessions: sessions,
		stocks:   stocks,
		scope:    scope,
		logger:   logger.Named("checkout"),
		locks:    newBillLocks(),
		now:      time.Now,
	}
}

// SetRetailMetrics sets the metrics recorder (optional)
func (s *Service) SetRetailMetrics(m *telemetry.RetailMetrics) {
	s.metrics = m
}

// CreateBill opens an in-progress bill
func (s *Service) CreateBill(ctx context.Context, req CreateBillRequest) (*BillResponse, error) {
	channel, err := inventory.ParseChannel(req.Channel)
	if err != nil {
		return nil, err
	}
	kind, err := sales.ParsePaymentKind(req.PaymentKind)
	if err != nil {
		return nil, err
	}
	bill, err := sales.NewBill(channel, kind, req.CustomerRef, req.CreatedBy)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to store bill session: %w", err)
	}

	s.logger.Info("Bill opened",
		zap.String("bill_id", bill.ID.String()),
		zap.String("channel", channel.String()),
		zap.String("payment_kind", string(kind)),
	)
	resp := ToBillResponse(bill)
	return &resp, nil
}

// GetBill returns an in-progress bill from its session, or a persisted one
func (s *Service) GetBill(ctx context.Context, id uuid.UUID) (*BillResponse, error) {
	bill, err := s.loadBill(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToBillResponse(bill)
	return &resp, nil
}

// loadBill returns the persisted bill when there is one, else the session
// bill. A session left behind by a failed delete never shadows a finalized
// or cancelled bill; mutating a persisted bill fails in the aggregate with
// IllegalStateTransition.
func (s *Service) loadBill(ctx context.Context, id uuid.UUID) (*sales.Bill, error) {
	session, inSession, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill session: %w", err)
	}

	persisted, err := s.bills.FindByID(ctx, id)
	switch {
	case err == nil:
		if inSession {
			s.dropSession(ctx, id, "stale")
		}
		return persisted, nil
	case errors.Is(err, shared.ErrNotFound) && inSession:
		return session, nil
	default:
		return nil, err
	}
}

// dropSession removes a bill's session; a failure only leaves a stale
// entry behind, which loadBill ignores and the idle TTL expires.
func (s *Service) dropSession(ctx context.Context, id uuid.UUID, reason string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to drop bill session",
			zap.String("bill_id", id.String()),
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// mutate applies fn to the bill under its lock and stores the result
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*sales.Bill) error) (*BillResponse, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	bill, err := s.loadBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(bill); err != nil {
		return nil, err
	}
	if err := s.sessions.Put(ctx, bill); err != nil {
		return nil, fmt.Errorf("failed to store bill session: %w", err)
	}
	resp := ToBillResponse(bill)
	return &resp, nil
}

// sellableProduct looks up a product that may be put on a bill
func (s *Service) sellableProduct(ctx context.Context, code string) (sales.PricedProduct, error) {
	product, err := s.products.FindByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return sales.PricedProduct{}, err
	}
	if !product.IsSellable() {
		return sales.PricedProduct{}, shared.FieldError("product_code", "Product "+product.Code+" is not for sale")
	}
	return sales.PricedProduct{Code: product.Code, Name: product.Name, UnitPrice: product.UnitPrice}, nil
}

// planLines plans qty units of the product on the bill's channel and replaces its lines
func (s *Service) planLines(ctx context.Context, bill *sales.Bill, product sales.PricedProduct, qty int) error {
	stock, err := s.stocks.For(bill.Channel)
	if err != nil {
		return err
	}
	plan, err := stock.AllocateFIFO(ctx, product.Code, qty)
	if err != nil {
		return err
	}
	return bill.SetProductLines(product, plan)
}

// AddItem adds units of a product. The product's lines are re-planned for
// its new total quantity; nothing is deducted yet.
func (s *Service) AddItem(ctx context.Context, id uuid.UUID, req AddItemRequest) (*BillResponse, error) {
	if req.Quantity <= 0 {
		return nil, shared.FieldError("quantity", "Quantity must be greater than zero")
	}
	product, err := s.sellableProduct(ctx, req.ProductCode)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		if !b.IsInProgress() {
			return shared.NewIllegalStateError("bill", string(b.Status), "modify")
		}
		return s.planLines(ctx, b, product, b.QuantityOf(product.Code)+req.Quantity)
	})
}

// UpdateItemQuantity sets the quantity of a product already on the bill. Zero removes it.
func (s *Service) UpdateItemQuantity(ctx context.Context, id uuid.UUID, productCode string, qty int) (*BillResponse, error) {
	if qty < 0 {
		return nil, shared.FieldError("quantity", "Quantity cannot be negative")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, id, productCode)
	}
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		if !b.IsInProgress() {
			return shared.NewIllegalStateError("bill", string(b.Status), "modify")
		}
		for _, t := range b.ProductTotals() {
			if t.Code == productCode {
				return s.planLines(ctx, b, t.PricedProduct, qty)
			}
		}
		return shared.NewNotFoundError("Bill item", productCode)
	})
}

// RemoveItem drops a product from the bill
func (s *Service) RemoveItem(ctx context.Context, id uuid.UUID, productCode string) (*BillResponse, error) {
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		return b.RemoveProduct(productCode)
	})
}

// ClearItems empties the bill
func (s *Service) ClearItems(ctx context.Context, id uuid.UUID) (*BillResponse, error) {
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		return b.ClearItems()
	})
}

// ApplyDiscount sets an absolute discount
func (s *Service) ApplyDiscount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*BillResponse, error) {
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		return b.ApplyDiscount(amount)
	})
}

// SetTax sets the tax amount
func (s *Service) SetTax(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*BillResponse, error) {
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		return b.SetTax(amount)
	})
}

// ProcessCashPayment records the cash tendered and the change due
func (s *Service) ProcessCashPayment(ctx context.Context, id uuid.UUID, tendered decimal.Decimal) (*BillResponse, error) {
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		return b.ProcessCashPayment(tendered)
	})
}

// ProcessOnlinePayment marks the bill as paid online
func (s *Service) ProcessOnlinePayment(ctx context.Context, id uuid.UUID) (*BillResponse, error) {
	return s.mutate(ctx, id, func(b *sales.Bill) error {
		return b.ProcessOnlinePayment()
	})
}

// ValidateForFinalization lists every reason the bill cannot be finalized,
// including products that no longer have enough stock.
func (s *Service) ValidateForFinalization(ctx context.Context, id uuid.UUID) (*ValidationResult, error) {
	bill, err := s.loadBill(ctx, id)
	if err != nil {
		return nil, err
	}
	errs := bill.ValidationErrors()

	if bill.IsInProgress() {
		stock, err := s.stocks.For(bill.Channel)
		if err != nil {
			return nil, err
		}
		for _, t := range bill.ProductTotals() {
			available, err := stock.GetAvailableQuantity(ctx, t.Code)
			if err != nil {
				return nil, err
			}
			if available < t.Quantity {
				errs = append(errs, shared.NewInsufficientStockError(t.Code, available, t.Quantity).Error())
			}
		}
	}
	return &ValidationResult{Valid: len(errs) == 0, Errors: errs}, nil
}

// FinalizeBill re-plans every product against current stock, commits the
// sale and persists the bill under a new serial number.
func (s *Service) FinalizeBill(ctx context.Context, id uuid.UUID) (*BillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "finalize",
		telemetry.SpanAttrBillID, id.String())
	defer span.End()
	start := s.now()

	unlock := s.locks.lock(id)
	defer unlock()

	bill, err := s.loadBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bill.IsInProgress() {
		return nil, shared.NewIllegalStateError("bill", string(bill.Status), "finalize")
	}
	if errs := bill.ValidationErrors(); len(errs) > 0 {
		return nil, shared.FieldError("bill", strings.Join(errs, "; "))
	}

	stock, err := s.stocks.For(bill.Channel)
	if err != nil {
		return nil, err
	}
	totals := bill.ProductTotals()
	plans := make([]inventory.AllocationPlan, 0, len(totals))
	for _, t := range totals {
		plan, err := stock.AllocateFIFO(ctx, t.Code, t.Quantity)
		if err != nil {
			s.recordFailure(ctx, bill.Channel, modeIncremental, err)
			return nil, err
		}
		plans = append(plans, plan)
	}

	final, err := s.commitSale(ctx, bill, stock, plans)
	if err != nil {
		telemetry.RecordError(span, err)
		s.recordFailure(ctx, bill.Channel, modeIncremental, err)
		return nil, err
	}
	s.dropSession(ctx, id, "finalized")

	s.finished(ctx, final, modeIncremental, start)
	telemetry.SetAttributes(span, telemetry.SpanAttrSerialNumber, final.SerialNumber)
	resp := ToBillResponse(final)
	return &resp, nil
}

// CancelBill discards an in-progress bill. The header is kept so that the
// bill cannot be cancelled or finalized again. Stock is never touched.
func (s *Service) CancelBill(ctx context.Context, id uuid.UUID) (*BillResponse, error) {
	unlock := s.locks.lock(id)
	defer unlock()

	bill, err := s.loadBill(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := bill.Cancel(s.now()); err != nil {
		return nil, err
	}

	header := bill.Clone()
	header.Lines = nil
	if err := s.bills.Create(ctx, header); err != nil {
		return nil, fmt.Errorf("failed to save cancelled bill: %w", err)
	}
	s.dropSession(ctx, id, "cancelled")

	s.logger.Info("Bill cancelled", zap.String("bill_id", id.String()))
	resp := ToBillResponse(bill)
	return &resp, nil
}

// OpenBills lists the in-progress bills
func (s *Service) OpenBills(ctx context.Context) ([]BillResponse, error) {
	bills, err := s.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bill sessions: %w", err)
	}
	out := make([]BillResponse, 0, len(bills))
	for _, b := range bills {
		persisted, err := s.bills.Exists(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check bill %s: %w", b.ID, err)
		}
		if persisted {
			s.dropSession(ctx, b.ID, "stale")
			continue
		}
		out = append(out, ToBillResponse(b))
	}
	return out, nil
}

func (s *Service) finished(ctx context.Context, bill *sales.Bill, mode string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSale(ctx, bill.Channel.String(), mode, bill.Total, s.now().Sub(start))
	}
	s.logger.Info("Sale completed",
		zap.String("bill_id", bill.ID.String()),
		zap.String("serial_number", bill.SerialNumber),
		zap.String("mode", mode),
		zap.String("total", bill.Total.StringFixed(2)),
		zap.Int("items", bill.ItemCount()),
	)
	s.archiveAsync(bill)
}

func (s *Service) recordFailure(ctx context.Context, channel inventory.Channel, mode string, err error) {
	if s.metrics == nil {
		return
	}
	reason := shared.ErrorCode(err)
	if reason == "" {
		reason = "INTERNAL"
	}
	s.metrics.RecordCheckoutFailure(ctx, channel.String(), mode, reason)
}
