package inventory

import (
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/shared"
)

// Allocation takes Quantity units of one batch from a channel
type Allocation struct {
	BatchID    uuid.UUID  `json:"batch_id"`
	Quantity   int        `json:"quantity"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

// AllocationPlan is the result of FIFO planning. It has no effect on stock
// until a channel commits it.
type AllocationPlan struct {
	ProductCode string       `json:"product_code"`
	Channel     Channel      `json:"channel"`
	Requested   int          `json:"requested"`
	Allocations []Allocation `json:"allocations"`
}

// Total returns the number of units the plan takes
func (p AllocationPlan) Total() int {
	total := 0
	for _, a := range p.Allocations {
		total += a.Quantity
	}
	return total
}

// IsEmpty reports whether the plan allocates nothing
func (p AllocationPlan) IsEmpty() bool {
	return len(p.Allocations) == 0
}

// PlanFIFO selects the rows needed to satisfy required units, earliest expiry first.
//
// rows are the channel's rows for the product; they are not modified.
// When the rows cannot cover required, the plan is discarded and an
// *shared.InsufficientStockError reports how much was available.
func PlanFIFO(productCode string, channel Channel, required int, rows []StoreStockEntry) (AllocationPlan, error) {
	if required <= 0 {
		return AllocationPlan{}, shared.FieldError("quantity", "Quantity must be greater than zero")
	}

	ordered := make([]StoreStockEntry, 0, len(rows))
	for _, r := range rows {
		if r.Quantity > 0 && r.ProductCode == productCode {
			ordered = append(ordered, r)
		}
	}
	SortEntriesFIFO(ordered)

	plan := AllocationPlan{
		ProductCode: productCode,
		Channel:     channel,
		Requested:   required,
	}
	need := required
	for _, r := range ordered {
		if need == 0 {
			break
		}
		take := min(r.Quantity, need)
		plan.Allocations = append(plan.Allocations, Allocation{
			BatchID:    r.BatchID,
			Quantity:   take,
			ExpiryDate: r.ExpiryDate,
		})
		need -= take
	}

	if need > 0 {
		return AllocationPlan{}, shared.NewInsufficientStockError(productCode, required-need, required)
	}
	return plan, nil
}

// Reversed returns the plan's allocations in reverse order, used when undoing a commit
func (p AllocationPlan) Reversed() []Allocation {
	out := slices.Clone(p.Allocations)
	slices.Reverse(out)
	return out
}
