package sales

import (
	"context"
	"strings"
	"time"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
)

const (
	defaultRecentBills = 20
	maxRecentBills     = 100
)

// FindBySerialNumber returns the bill with the serial number
func (s *Service) FindBySerialNumber(ctx context.Context, serial string) (*BillResponse, error) {
	serial = strings.ToUpper(strings.TrimSpace(serial))
	if _, _, _, err := sales.ParseSerialNumber(serial); err != nil {
		return nil, err
	}
	bill, err := s.bills.FindBySerialNumber(ctx, serial)
	if err != nil {
		return nil, err
	}
	resp := ToBillResponse(bill)
	return &resp, nil
}

// FindByDate returns the finalized bills of a calendar day, newest first
func (s *Service) FindByDate(ctx context.Context, day time.Time) ([]BillResponse, error) {
	from := inventory.DateOf(day)
	bills, err := s.bills.FindByDateRange(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return ToBillResponses(bills), nil
}

// FindByCustomer returns a customer's finalized bills, newest first
func (s *Service) FindByCustomer(ctx context.Context, customerRef string) ([]BillResponse, error) {
	customerRef = strings.TrimSpace(customerRef)
	if customerRef == "" {
		return nil, shared.FieldError("customer_ref", "Customer reference is required")
	}
	bills, err := s.bills.FindByCustomer(ctx, customerRef)
	if err != nil {
		return nil, err
	}
	return ToBillResponses(bills), nil
}

// FindRecent returns the latest finalized bills
func (s *Service) FindRecent(ctx context.Context, limit int) ([]BillResponse, error) {
	if limit <= 0 {
		limit = defaultRecentBills
	}
	limit = min(limit, maxRecentBills)
	bills, err := s.bills.FindRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	return ToBillResponses(bills), nil
}

// TodaysSales counts and sums today's finalized bills
func (s *Service) TodaysSales(ctx context.Context) (*SalesSummaryResponse, error) {
	today := inventory.DateOf(s.now())
	sum, err := s.bills.SummaryBetween(ctx, today, today.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	return &SalesSummaryResponse{
		Date:  today.Format(time.DateOnly),
		Count: sum.Count,
		Total: sum.Total.Round(2),
	}, nil
}

// CheckStock reports for each requested product whether the channel can sell it.
// Duplicate lines are merged first; an empty code or a non-positive quantity
// fails validation.
func (s *Service) CheckStock(ctx context.Context, req StockCheckRequest) ([]StockCheckResult, error) {
	channel, err := inventory.ParseChannel(req.Channel)
	if err != nil {
		return nil, err
	}
	stock, err := s.stocks.For(channel)
	if err != nil {
		return nil, err
	}

	verr := shared.NewValidationError()
	if len(req.Items) == 0 {
		verr.Add("items", "At least one item is required")
	}
	items := mergeItems(req.Items, verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	codes := make([]string, len(items))
	for i, it := range items {
		codes[i] = it.ProductCode
	}
	products, err := s.products.FindByCodes(ctx, codes)
	if err != nil {
		return nil, err
	}

	results := make([]StockCheckResult, len(items))
	for i, it := range items {
		r := StockCheckResult{ProductCode: it.ProductCode, Requested: it.Quantity}
		if _, ok := products[it.ProductCode]; !ok {
			r.Status = StockNotFound
			results[i] = r
			continue
		}
		r.Available, err = stock.GetAvailableQuantity(ctx, it.ProductCode)
		if err != nil {
			return nil, err
		}
		r.Status = StockUnavailable
		if r.Available >= it.Quantity {
			r.Status = StockAvailable
		}
		results[i] = r
	}
	return results, nil
}

// GetAvailableQuantity returns the sellable quantity of a product on a channel
func (s *Service) GetAvailableQuantity(ctx context.Context, channel inventory.Channel, productCode string) (int, error) {
	stock, err := s.stocks.For(channel)
	if err != nil {
		return 0, err
	}
	return stock.GetAvailableQuantity(ctx, productCode)
}

// HasAvailableStock reports whether the channel holds at least qty units of a product
func (s *Service) HasAvailableStock(ctx context.Context, channel inventory.Channel, productCode string, qty int) (bool, error) {
	stock, err := s.stocks.For(channel)
	if err != nil {
		return false, err
	}
	return stock.HasAvailableStock(ctx, productCode, qty)
}
