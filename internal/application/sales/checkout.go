package sales

import (
	"context"
	"errors"
	"strings"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentPlans bounds the planning goroutines of one checkout
const maxConcurrentPlans = 8

// Checkout sells every requested item in one call, or nothing.
//
// All checks run before any mutation: request shape, products, stock for
// every product (planned concurrently, read-only), discount and payment.
// Business failures come back as an unsuccessful result; only
// infrastructure failures are returned as errors.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "checkout", "checkout",
		telemetry.SpanAttrChannel, req.Channel,
		telemetry.SpanAttrItemCount, len(req.Items),
	)
	defer span.End()
	start := s.now()

	bill, items, err := s.openCheckoutBill(req)
	if err != nil {
		return s.checkoutFailed(ctx, req.Channel, err)
	}

	codes := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.ProductCode
	}
	products, err := s.products.FindByCodes(ctx, codes)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	var failures []error
	for _, code := range codes {
		p, ok := products[code]
		switch {
		case !ok:
			failures = append(failures, shared.NewNotFoundError("Product", code))
		case !p.IsSellable():
			failures = append(failures, shared.FieldError("product_code", "Product "+code+" is not for sale"))
		}
	}
	if len(failures) > 0 {
		return s.checkoutFailed(ctx, req.Channel, failures...)
	}

	stock, err := s.stocks.For(bill.Channel)
	if err != nil {
		return s.checkoutFailed(ctx, req.Channel, err)
	}
	plans := make([]inventory.AllocationPlan, len(items))
	planErrs := make([]error, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentPlans)
	for i, it := range items {
		g.Go(func() error {
			plan, err := stock.AllocateFIFO(gctx, it.ProductCode, it.Quantity)
			if err != nil {
				if shared.ErrorCode(err) == "" {
					return err
				}
				planErrs[i] = err
				return nil
			}
			plans[i] = plan
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, err := range planErrs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return s.checkoutFailed(ctx, req.Channel, failures...)
	}

	for i, it := range items {
		p := products[it.ProductCode]
		priced := sales.PricedProduct{Code: p.Code, Name: p.Name, UnitPrice: p.UnitPrice}
		if err := bill.SetProductLines(priced, plans[i]); err != nil {
			return s.checkoutFailed(ctx, req.Channel, err)
		}
	}
	if err := s.priceCheckoutBill(bill, req); err != nil {
		return s.checkoutFailed(ctx, req.Channel, err)
	}

	final, err := s.commitSale(ctx, bill, stock, plans)
	if err != nil {
		if shared.ErrorCode(err) != "" && !isCompensationFailure(err) {
			return s.checkoutFailed(ctx, req.Channel, err)
		}
		telemetry.RecordError(span, err)
		s.recordFailure(ctx, bill.Channel, modeAtomic, err)
		return nil, err
	}

	s.finished(ctx, final, modeAtomic, start)
	telemetry.SetAttributes(span, telemetry.SpanAttrBillID, final.ID.String(),
		telemetry.SpanAttrSerialNumber, final.SerialNumber)
	return succeededCheckout(final), nil
}

// openCheckoutBill validates the request and opens the bill it will become.
// Duplicate lines of one product are merged, keeping first-seen order.
func (s *Service) openCheckoutBill(req CheckoutRequest) (*sales.Bill, []CheckoutItem, error) {
	verr := shared.NewValidationError()
	channel, err := inventory.ParseChannel(req.Channel)
	if err != nil {
		verr.Add("channel", "Channel must be PHYSICAL or ONLINE")
	}
	kind, err := sales.ParsePaymentKind(req.PaymentKind)
	if err != nil {
		verr.Add("payment_kind", "Payment kind must be CASH or ONLINE")
	}
	if len(req.Items) == 0 {
		verr.Add("items", "At least one item is required")
	}
	if req.Discount.IsNegative() {
		verr.Add("discount", "Discount cannot be negative")
	}
	if req.Tax.IsNegative() {
		verr.Add("tax", "Tax cannot be negative")
	}

	items := mergeItems(req.Items, verr)
	if err := verr.OrNil(); err != nil {
		return nil, nil, err
	}

	bill, err := sales.NewBill(channel, kind, req.CustomerRef, req.CreatedBy)
	if err != nil {
		return nil, nil, err
	}
	return bill, items, nil
}

// mergeItems trims product codes and sums duplicate lines. Invalid lines
// are reported on verr and skipped.
func mergeItems(in []CheckoutItem, verr *shared.ValidationError) []CheckoutItem {
	var items []CheckoutItem
	index := make(map[string]int)
	for _, it := range in {
		code := strings.TrimSpace(it.ProductCode)
		if code == "" {
			verr.Add("items.product_code", "Product code is required")
			continue
		}
		if it.Quantity <= 0 {
			verr.Add("items.quantity", "Quantity must be greater than zero")
			continue
		}
		if i, ok := index[code]; ok {
			items[i].Quantity += it.Quantity
			continue
		}
		index[code] = len(items)
		items = append(items, CheckoutItem{ProductCode: code, Quantity: it.Quantity})
	}
	return items
}

// priceCheckoutBill applies discount, tax and payment to a bill whose lines are set
func (s *Service) priceCheckoutBill(bill *sales.Bill, req CheckoutRequest) error {
	if !req.Discount.IsZero() {
		if err := bill.ApplyDiscount(req.Discount); err != nil {
			return err
		}
	}
	if !req.Tax.IsZero() {
		if err := bill.SetTax(req.Tax); err != nil {
			return err
		}
	}
	if bill.PaymentKind == sales.PaymentCash {
		return bill.ProcessCashPayment(req.Tendered)
	}
	return bill.ProcessOnlinePayment()
}

func (s *Service) checkoutFailed(ctx context.Context, channel string, errs ...error) (*CheckoutResult, error) {
	s.recordFailure(ctx, inventory.Channel(strings.ToUpper(channel)), modeAtomic, errs[0])
	s.logger.Info("Checkout rejected",
		zap.String("channel", channel),
		zap.Error(errors.Join(errs...)),
	)
	return failedCheckout(errs...), nil
}

// isCompensationFailure reports whether a commit error also failed to give stock back
func isCompensationFailure(err error) bool {
	var cerr *CompensationError
	return errors.As(err, &cerr)
}
