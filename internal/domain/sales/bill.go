package sales

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// BillStatus represents the lifecycle state of a bill
type BillStatus string

const (
	BillStatusInProgress BillStatus = "IN_PROGRESS"
	BillStatusFinalized  BillStatus = "FINALIZED"
	BillStatusCancelled  BillStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible
func (s BillStatus) IsTerminal() bool {
	return s == BillStatusFinalized || s == BillStatusCancelled
}

// PaymentKind is how the customer pays
type PaymentKind string

const (
	PaymentCash   PaymentKind = "CASH"
	PaymentOnline PaymentKind = "ONLINE"
)

// IsValid checks if the payment kind is known
func (k PaymentKind) IsValid() bool {
	return k == PaymentCash || k == PaymentOnline
}

// ParsePaymentKind accepts "cash"/"online" in any case
func ParsePaymentKind(s string) (PaymentKind, error) {
	k := PaymentKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", shared.FieldError("payment_kind", "Payment kind must be CASH or ONLINE")
	}
	return k, nil
}

// BillLine is one (product, batch) allocation on a bill
type BillLine struct {
	ID          uuid.UUID       `json:"id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	BatchID     uuid.UUID       `json:"batch_id"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// PricedProduct is what a bill needs to know about a product to price its lines
type PricedProduct struct {
	Code      string
	Name      string
	UnitPrice decimal.Decimal
}

// ProductTotal is the quantity of one product on a bill across all its batches
type ProductTotal struct {
	PricedProduct
	Quantity int
}

// Bill is the sale aggregate root.
// total = subtotal - discount + tax holds after every mutation.
type Bill struct {
	shared.BaseEntity
	SerialNumber     string            `json:"serial_number,omitempty"`
	Channel          inventory.Channel `json:"channel"`
	PaymentKind      PaymentKind       `json:"payment_kind"`
	CustomerRef      string            `json:"customer_ref,omitempty"`
	Lines            []BillLine        `json:"lines"`
	Subtotal         decimal.Decimal   `json:"subtotal"`
	Discount         decimal.Decimal   `json:"discount"`
	Tax              decimal.Decimal   `json:"tax"`
	Total            decimal.Decimal   `json:"total"`
	Tendered         decimal.Decimal   `json:"tendered"`
	Change           decimal.Decimal   `json:"change"`
	PaymentCompleted bool              `json:"payment_completed"`
	Status           BillStatus        `json:"status"`
	BillDate         time.Time         `json:"bill_date"`
	CreatedBy        string            `json:"created_by,omitempty"`
	FinalizedAt      *time.Time        `json:"finalized_at,omitempty"`
	CancelledAt      *time.Time        `json:"cancelled_at,omitempty"`
}

// NewBill creates an in-progress bill.
// Cash cannot be taken on the online channel, and online bills need a customer.
func NewBill(channel inventory.Channel, kind PaymentKind, customerRef, createdBy string) (*Bill, error) {
	verr := shared.NewValidationError()
	if !channel.IsValid() {
		verr.Add("channel", "Channel must be PHYSICAL or ONLINE")
	}
	if !kind.IsValid() {
		verr.Add("payment_kind", "Payment kind must be CASH or ONLINE")
	}
	customerRef = strings.TrimSpace(customerRef)
	if channel == inventory.ChannelOnline && customerRef == "" {
		verr.Add("customer_ref", "Customer is required for online bills")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}
	if channel == inventory.ChannelOnline && kind == PaymentCash {
		return nil, shared.NewInvalidPaymentError("Cash payment is not accepted for online bills")
	}

	now := time.Now()
	return &Bill{
		BaseEntity:  shared.NewBaseEntityAt(now),
		Channel:     channel,
		PaymentKind: kind,
		CustomerRef: customerRef,
		Lines:       []BillLine{},
		Subtotal:    decimal.Zero,
		Discount:    decimal.Zero,
		Tax:         decimal.Zero,
		Total:       decimal.Zero,
		Tendered:    decimal.Zero,
		Change:      decimal.Zero,
		Status:      BillStatusInProgress,
		BillDate:    now,
		CreatedBy:   strings.TrimSpace(createdBy),
	}, nil
}

// IsInProgress returns true while the bill can be modified
func (b *Bill) IsInProgress() bool {
	return b.Status == BillStatusInProgress
}

func (b *Bill) ensureInProgress(action string) error {
	if !b.IsInProgress() {
		return shared.NewIllegalStateError("bill", string(b.Status), action)
	}
	return nil
}

// SetProductLines replaces every line of the product with the plan's allocations.
// An empty plan removes the product. Payment must be taken again afterwards,
// and the discount is capped at the new subtotal.
func (b *Bill) SetProductLines(product PricedProduct, plan inventory.AllocationPlan) error {
	if err := b.ensureInProgress("modify"); err != nil {
		return err
	}
	price := product.UnitPrice.Round(2)

	b.Lines = slices.DeleteFunc(b.Lines, func(l BillLine) bool {
		return l.ProductCode == product.Code
	})
	for _, a := range plan.Allocations {
		b.Lines = append(b.Lines, BillLine{
			ID:          uuid.New(),
			ProductCode: product.Code,
			ProductName: product.Name,
			BatchID:     a.BatchID,
			ExpiryDate:  a.ExpiryDate,
			Quantity:    a.Quantity,
			UnitPrice:   price,
			LineTotal:   price.Mul(decimal.NewFromInt(int64(a.Quantity))).Round(2),
		})
	}
	b.itemsChanged()
	return nil
}

// RebindAllocations swaps the batches behind each product's lines for a fresh plan.
// Quantities and prices must match, so totals and payment stay valid.
func (b *Bill) RebindAllocations(plans []inventory.AllocationPlan) error {
	if err := b.ensureInProgress("modify"); err != nil {
		return err
	}
	totals := b.ProductTotals()
	byCode := make(map[string]ProductTotal, len(totals))
	for _, t := range totals {
		byCode[t.Code] = t
	}

	lines := make([]BillLine, 0, len(b.Lines))
	for _, plan := range plans {
		t, ok := byCode[plan.ProductCode]
		if !ok || plan.Total() != t.Quantity {
			return shared.FieldError("items", "Allocation does not match bill item "+plan.ProductCode)
		}
		delete(byCode, plan.ProductCode)
		for _, a := range plan.Allocations {
			lines = append(lines, BillLine{
				ID:          uuid.New(),
				ProductCode: t.Code,
				ProductName: t.Name,
				BatchID:     a.BatchID,
				ExpiryDate:  a.ExpiryDate,
				Quantity:    a.Quantity,
				UnitPrice:   t.UnitPrice,
				LineTotal:   t.UnitPrice.Mul(decimal.NewFromInt(int64(a.Quantity))).Round(2),
			})
		}
	}
	if len(byCode) > 0 {
		return shared.FieldError("items", "Missing allocation for bill items")
	}
	b.Lines = lines
	return nil
}

// RemoveProduct drops every line of the product. A discount above the
// remaining subtotal is lowered to it.
func (b *Bill) RemoveProduct(code string) error {
	if err := b.ensureInProgress("modify"); err != nil {
		return err
	}
	if b.QuantityOf(code) == 0 {
		return shared.NewNotFoundError("Bill item", code)
	}
	b.Lines = slices.DeleteFunc(b.Lines, func(l BillLine) bool {
		return l.ProductCode == code
	})
	b.itemsChanged()
	return nil
}

// ClearItems removes all lines and the discount
func (b *Bill) ClearItems() error {
	if err := b.ensureInProgress("modify"); err != nil {
		return err
	}
	b.Lines = []BillLine{}
	b.Discount = decimal.Zero
	b.itemsChanged()
	return nil
}

// QuantityOf returns the quantity of a product across all its lines
func (b *Bill) QuantityOf(code string) int {
	qty := 0
	for _, l := range b.Lines {
		if l.ProductCode == code {
			qty += l.Quantity
		}
	}
	return qty
}

// ProductTotals groups the lines per product, in order of first appearance
func (b *Bill) ProductTotals() []ProductTotal {
	var totals []ProductTotal
	index := make(map[string]int)
	for _, l := range b.Lines {
		i, ok := index[l.ProductCode]
		if !ok {
			index[l.ProductCode] = len(totals)
			totals = append(totals, ProductTotal{
				PricedProduct: PricedProduct{Code: l.ProductCode, Name: l.ProductName, UnitPrice: l.UnitPrice},
			})
			i = len(totals) - 1
		}
		totals[i].Quantity += l.Quantity
	}
	return totals
}

// ItemCount returns the number of units on the bill
func (b *Bill) ItemCount() int {
	n := 0
	for _, l := range b.Lines {
		n += l.Quantity
	}
	return n
}

// ApplyDiscount sets an absolute discount, which may not exceed the subtotal
func (b *Bill) ApplyDiscount(amount decimal.Decimal) error {
	if err := b.ensureInProgress("discount"); err != nil {
		return err
	}
	amount = amount.Round(2)
	if amount.IsNegative() {
		return shared.FieldError("discount", "Discount cannot be negative")
	}
	if amount.GreaterThan(b.Subtotal) {
		return shared.FieldError("discount", "Discount cannot exceed subtotal")
	}
	b.Discount = amount
	b.amountsChanged()
	return nil
}

// SetTax sets the externally computed tax amount
func (b *Bill) SetTax(amount decimal.Decimal) error {
	if err := b.ensureInProgress("tax"); err != nil {
		return err
	}
	amount = amount.Round(2)
	if amount.IsNegative() {
		return shared.FieldError("tax", "Tax cannot be negative")
	}
	b.Tax = amount
	b.amountsChanged()
	return nil
}

// ProcessCashPayment records the tendered cash and computes change
func (b *Bill) ProcessCashPayment(tendered decimal.Decimal) error {
	if err := b.ensureInProgress("pay"); err != nil {
		return err
	}
	if b.PaymentKind != PaymentCash {
		return shared.NewInvalidPaymentError("Bill is not a cash bill")
	}
	if len(b.Lines) == 0 {
		return shared.FieldError("items", "Bill has no items")
	}
	tendered = tendered.Round(2)
	if !tendered.IsPositive() {
		return shared.NewInvalidPaymentError("Tendered amount must be greater than zero")
	}
	if tendered.LessThan(b.Total) {
		return shared.NewInvalidPaymentError("Tendered amount " + tendered.StringFixed(2) +
			" is less than total " + b.Total.StringFixed(2))
	}
	b.Tendered = tendered
	b.Change = tendered.Sub(b.Total)
	b.PaymentCompleted = true
	b.Touch(time.Now())
	return nil
}

// ProcessOnlinePayment marks the bill as paid in full by an external payment
func (b *Bill) ProcessOnlinePayment() error {
	if err := b.ensureInProgress("pay"); err != nil {
		return err
	}
	if b.PaymentKind != PaymentOnline {
		return shared.NewInvalidPaymentError("Bill is not an online-payment bill")
	}
	if len(b.Lines) == 0 {
		return shared.FieldError("items", "Bill has no items")
	}
	b.Tendered = b.Total
	b.Change = decimal.Zero
	b.PaymentCompleted = true
	b.Touch(time.Now())
	return nil
}

// ValidationErrors lists the reasons the bill cannot be finalized yet.
// Stock is checked separately by the coordinator.
func (b *Bill) ValidationErrors() []string {
	var errs []string
	if !b.IsInProgress() {
		errs = append(errs, "Bill is "+string(b.Status))
	}
	if len(b.Lines) == 0 {
		errs = append(errs, "Bill has no items")
	}
	if b.Discount.GreaterThan(b.Subtotal) {
		errs = append(errs, "Discount exceeds subtotal")
	}
	if !b.PaymentCompleted {
		if b.PaymentKind == PaymentCash {
			errs = append(errs, "Cash payment not completed")
		} else {
			errs = append(errs, "Online payment not completed")
		}
	}
	return errs
}

// Finalize marks the bill as a committed sale under the given serial number
func (b *Bill) Finalize(serial string, now time.Time) error {
	if err := b.ensureInProgress("finalize"); err != nil {
		return err
	}
	b.SerialNumber = serial
	b.Status = BillStatusFinalized
	b.BillDate = now
	b.FinalizedAt = &now
	b.Touch(now)
	return nil
}

// Cancel discards an in-progress bill. It never touches stock.
func (b *Bill) Cancel(now time.Time) error {
	if err := b.ensureInProgress("cancel"); err != nil {
		return err
	}
	b.Status = BillStatusCancelled
	b.CancelledAt = &now
	b.Touch(now)
	return nil
}

// Clone returns a deep copy
func (b *Bill) Clone() *Bill {
	c := *b
	c.Lines = slices.Clone(b.Lines)
	return &c
}

// itemsChanged recomputes the subtotal; any earlier payment no longer matches the total
func (b *Bill) itemsChanged() {
	subtotal := decimal.Zero
	for _, l := range b.Lines {
		subtotal = subtotal.Add(l.LineTotal)
	}
	b.Subtotal = subtotal.Round(2)
	// a discount never outlives the items it was given on
	if b.Discount.GreaterThan(b.Subtotal) {
		b.Discount = b.Subtotal
	}
	b.amountsChanged()
}

func (b *Bill) amountsChanged() {
	b.Total = b.Subtotal.Sub(b.Discount).Add(b.Tax).Round(2)
	b.Tendered = decimal.Zero
	b.Change = decimal.Zero
	b.PaymentCompleted = false
	b.Touch(time.Now())
}
