package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockBillArchive is a mock implementation of BillArchive
type MockBillArchive struct {
	mock.Mock
}

func (m *MockBillArchive) Store(ctx context.Context, bill *sales.Bill) error {
	args := m.Called(ctx, bill)
	return args.Error(0)
}

// expectStore registers a Store call and returns a channel receiving the archived bill
func (m *MockBillArchive) expectStore(err error) <-chan *sales.Bill {
	got := make(chan *sales.Bill, 1)
	m.On("Store", mock.Anything, mock.AnythingOfType("*sales.Bill")).
		Run(func(args mock.Arguments) { got <- args.Get(1).(*sales.Bill) }).
		Return(err).
		Once()
	return got
}

func awaitArchived(t *testing.T, got <-chan *sales.Bill) *sales.Bill {
	t.Helper()
	select {
	case b := <-got:
		return b
	case <-time.After(2 * time.Second):
		require.FailNow(t, "bill was not archived")
		return nil
	}
}

func startPool(t *testing.T) *scheduler.WorkerPool {
	t.Helper()
	pool, err := scheduler.NewWorkerPool(scheduler.PoolConfig{Name: "background", Workers: 1, QueueSize: 4}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(context.Background()) })
	return pool
}

func TestService_ArchivesFinalizedBills(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "LAMP", "30.00", 3, nil)
	archive := &MockBillArchive{}
	archived := archive.expectStore(nil)
	f.svc.SetArchive(archive, startPool(t))

	result, err := f.svc.Checkout(ctx, cashCheckout("30.00", CheckoutItem{ProductCode: "LAMP", Quantity: 1}))
	require.NoError(t, err)
	require.True(t, result.Success)

	got := awaitArchived(t, archived)
	archive.AssertExpectations(t)
	assert.Equal(t, result.BillID, got.ID)
	assert.Equal(t, result.SerialNumber, got.SerialNumber)
	assert.Equal(t, sales.BillStatusFinalized, got.Status)
}

func TestService_ArchiveFailureDoesNotAffectSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "LAMP", "30.00", 3, nil)
	archive := &MockBillArchive{}
	archived := archive.expectStore(errors.New("bucket gone"))
	f.svc.SetArchive(archive, startPool(t))

	result, err := f.svc.Checkout(ctx, cashCheckout("30.00", CheckoutItem{ProductCode: "LAMP", Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	awaitArchived(t, archived)
	assert.Equal(t, 2, f.ledger.ChannelTotal(inventory.ChannelPhysical, "LAMP"))
}

func TestService_ArchiveSkippedWhenPoolStopped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "LAMP", "30.00", 3, nil)
	pool, err := scheduler.NewWorkerPool(scheduler.PoolConfig{Name: "background", Workers: 1, QueueSize: 1}, zap.NewNop())
	require.NoError(t, err)
	archive := &MockBillArchive{}
	f.svc.SetArchive(archive, pool)

	result, err := f.svc.Checkout(ctx, cashCheckout("30.00", CheckoutItem{ProductCode: "LAMP", Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, result.Success)
	archive.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
}
