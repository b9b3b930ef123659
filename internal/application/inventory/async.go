package inventory

import (
	"context"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/scheduler"
)

// AsyncStock runs channel stock operations on the inventory worker pool.
// A full queue fails the returned future with scheduler.ErrPoolQueueFull.
type AsyncStock struct {
	stock ChannelStock
	pool  *scheduler.WorkerPool
}

// NewAsyncStock creates an AsyncStock dispatching to pool
func NewAsyncStock(stock ChannelStock, pool *scheduler.WorkerPool) *AsyncStock {
	return &AsyncStock{stock: stock, pool: pool}
}

// Channel returns the wrapped stock's channel
func (a *AsyncStock) Channel() inventory.Channel {
	return a.stock.Channel()
}

// RestockAsync restocks on the pool
func (a *AsyncStock) RestockAsync(productCode string, qty int) *scheduler.Future[*RestockOutcome] {
	return scheduler.SubmitValue(a.pool, func(ctx context.Context) (*RestockOutcome, error) {
		return a.stock.Restock(ctx, productCode, qty)
	})
}

// AllocateForSaleAsync plans a sale allocation on the pool
func (a *AsyncStock) AllocateForSaleAsync(productCode string, qty int) *scheduler.Future[inventory.AllocationPlan] {
	return scheduler.SubmitValue(a.pool, func(ctx context.Context) (inventory.AllocationPlan, error) {
		return a.stock.AllocateForSale(ctx, productCode, qty)
	})
}

// AvailableQuantityAsync reads the available quantity on the pool
func (a *AsyncStock) AvailableQuantityAsync(productCode string) *scheduler.Future[int] {
	return scheduler.SubmitValue(a.pool, func(ctx context.Context) (int, error) {
		return a.stock.GetAvailableQuantity(ctx, productCode)
	})
}
