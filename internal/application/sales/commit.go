package sales

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"go.uber.org/zap"
)

// CompensationError reports stock that could not be given back after a
// sale was aborted. The stock stays deducted without a bill.
type CompensationError struct {
	BillID uuid.UUID
	Err    error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("stock compensation failed for bill %s: %v", e.BillID, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}

// commitSale turns planned allocations into a finalized sale in two phases.
//
// Phase one commits each plan with per-row conditional decrements. When a
// product loses a race, the products already committed for this bill are
// released and the InsufficientStockError is returned.
//
// Phase two runs in one transaction: next serial number, bill and lines,
// SALE records. When it fails, every plan is released.
//
// bill is not modified; the finalized copy is returned.
func (s *Service) commitSale(
	ctx context.Context,
	bill *sales.Bill,
	stock inventoryapp.ChannelStock,
	plans []inventory.AllocationPlan,
) (*sales.Bill, error) {
	committed := make([]inventory.AllocationPlan, 0, len(plans))
	for _, plan := range plans {
		if err := stock.CommitPlan(ctx, plan); err != nil {
			return nil, s.abortSale(ctx, bill, stock, committed, err)
		}
		committed = append(committed, plan)
	}

	final := bill.Clone()
	if err := final.RebindAllocations(plans); err != nil {
		return nil, s.abortSale(ctx, bill, stock, committed, err)
	}

	now := s.now()
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		serial, err := repos.Bills().NextSerialNumber(ctx, final.Channel, inventory.DateOf(now))
		if err != nil {
			return fmt.Errorf("failed to reserve serial number: %w", err)
		}
		if err := final.Finalize(serial, now); err != nil {
			return err
		}
		if err := repos.Bills().Create(ctx, final); err != nil {
			return fmt.Errorf("failed to save bill: %w", err)
		}

		records := make([]*inventory.TransactionRecord, 0, len(final.Lines))
		for _, l := range final.Lines {
			records = append(records, inventory.NewSaleRecord(
				l.ProductCode, l.BatchID, final.Channel, l.Quantity, final.ID, "Sale "+serial))
		}
		if err := repos.TransactionLog().Append(ctx, records...); err != nil {
			return fmt.Errorf("failed to record sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.abortSale(ctx, bill, stock, committed, err)
	}
	return final, nil
}

// abortSale releases the committed plans, newest first, and returns cause.
// A failed release leaves stock deducted without a bill; it is logged at
// error level and joined to cause.
func (s *Service) abortSale(
	ctx context.Context,
	bill *sales.Bill,
	stock inventoryapp.ChannelStock,
	committed []inventory.AllocationPlan,
	cause error,
) error {
	if len(committed) == 0 {
		return cause
	}

	var errs []error
	for _, plan := range slices.Backward(committed) {
		if err := stock.ReleasePlan(ctx, plan); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		s.logger.Error("Stock compensation failed, stock deducted without a bill",
			zap.String("bill_id", bill.ID.String()),
			zap.String("channel", bill.Channel.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return errors.Join(cause, &CompensationError{BillID: bill.ID, Err: err})
	}

	s.logger.Info("Sale aborted, stock released",
		zap.String("bill_id", bill.ID.String()),
		zap.Int("products", len(committed)),
		zap.Error(cause),
	)
	return cause
}
