package sales

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/sales"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/retail/backend/internal/infrastructure/cache"
	"github.com/retail/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	ledger   *testutil.Ledger
	sessions *cache.InMemorySessionStore
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := testutil.NewLedger()
	logger := zap.NewNop()
	invScope := inventoryapp.NewNoOpTransactionScope(l.Batches(), l.Log(),
		l.Store(inventory.ChannelPhysical), l.Store(inventory.ChannelOnline))
	stocks := inventoryapp.NewChannelStocks(
		inventoryapp.NewChannelStockService(l.Store(inventory.ChannelPhysical), l.Batches(), l.Products(), invScope, logger),
		inventoryapp.NewChannelStockService(l.Store(inventory.ChannelOnline), l.Batches(), l.Products(), invScope, logger),
	)
	sessions := cache.NewInMemorySessionStore()
	t.Cleanup(func() { _ = sessions.Close() })

	return &fixture{
		ledger:   l,
		sessions: sessions,
		svc:      NewService(l.Products(), l.Bills(), sessions, stocks, NewNoOpTransactionScope(l.Bills(), l.Log()), logger),
	}
}

// stocked registers a product and places one batch of qty units on the channel
func (f *fixture) stocked(channel inventory.Channel, code, price string, qty int, expiry *time.Time) *inventory.Batch {
	f.ledger.AddProduct(code, code+" item", price)
	b := f.ledger.AddBatch(code, qty, expiry)
	f.ledger.PutStock(channel, code, b, qty)
	return b
}

func (f *fixture) openCashBill(t *testing.T) *BillResponse {
	t.Helper()
	bill, err := f.svc.CreateBill(context.Background(), CreateBillRequest{
		Channel:     "PHYSICAL",
		PaymentKind: "cash",
		CreatedBy:   "cashier-1",
	})
	require.NoError(t, err)
	return bill
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func todaySerial(seq string) string {
	return "POS-" + inventory.DateOf(time.Now()).Format("20060102") + "-" + seq
}

func TestService_CashierScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.ledger.AddProduct("BREAD", "Bread", "25.00")
	batchA := f.ledger.AddBatch("BREAD", 2, testutil.Day(3))
	batchB := f.ledger.AddBatch("BREAD", 10, testutil.Day(20))
	f.ledger.PutStock(inventory.ChannelPhysical, "BREAD", batchA, 2)
	f.ledger.PutStock(inventory.ChannelPhysical, "BREAD", batchB, 10)

	bill := f.openCashBill(t)
	assert.Equal(t, string(sales.BillStatusInProgress), bill.Status)

	bill, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "BREAD", Quantity: 3})
	require.NoError(t, err)
	require.Len(t, bill.Lines, 2)
	assert.Equal(t, batchA.ID, bill.Lines[0].BatchID)
	assert.Equal(t, 2, bill.Lines[0].Quantity)
	assert.Equal(t, batchB.ID, bill.Lines[1].BatchID)
	assert.Equal(t, 1, bill.Lines[1].Quantity)
	assert.True(t, money("75.00").Equal(bill.Subtotal))
	assert.Equal(t, 3, bill.ItemCount)

	// nothing is deducted before finalization
	assert.Equal(t, 12, f.ledger.ChannelTotal(inventory.ChannelPhysical, "BREAD"))

	bill, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("100.00"))
	require.NoError(t, err)
	assert.True(t, money("25.00").Equal(bill.Change))

	final, err := f.svc.FinalizeBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, string(sales.BillStatusFinalized), final.Status)
	assert.Equal(t, todaySerial("0001"), final.SerialNumber)
	assert.NotNil(t, final.FinalizedAt)
	assert.True(t, money("75.00").Equal(final.Total))
	assert.True(t, money("25.00").Equal(final.Change))

	assert.Equal(t, 0, f.ledger.StockQuantity(inventory.ChannelPhysical, "BREAD", batchA.ID))
	assert.Equal(t, 9, f.ledger.StockQuantity(inventory.ChannelPhysical, "BREAD", batchB.ID))

	saleRecords := f.ledger.RecordsOfKind(inventory.TransactionKindSale)
	require.Len(t, saleRecords, 2)
	for _, rec := range saleRecords {
		require.NotNil(t, rec.BillID)
		assert.Equal(t, final.ID, *rec.BillID)
		assert.Equal(t, "Sale "+final.SerialNumber, rec.Remark)
	}
	assert.Equal(t, -3, saleRecords[0].QuantityDelta+saleRecords[1].QuantityDelta)

	_, ok, err := f.sessions.Get(ctx, final.ID)
	require.NoError(t, err)
	assert.False(t, ok, "finalized bill leaves the session store")

	got, err := f.svc.GetBill(ctx, final.ID)
	require.NoError(t, err)
	assert.Equal(t, final.SerialNumber, got.SerialNumber)
}

func TestService_CashChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "WINE", "123.45", 5, nil)

	bill := f.openCashBill(t)
	_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "WINE", Quantity: 1})
	require.NoError(t, err)

	_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("100.00"))
	assert.ErrorIs(t, err, shared.ErrInvalidPayment)

	paid, err := f.svc.ProcessCashPayment(ctx, bill.ID, money("150.00"))
	require.NoError(t, err)
	assert.Equal(t, "26.55", paid.Change.StringFixed(2))
	assert.True(t, paid.PaymentCompleted)
}

func TestService_CreateBill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	t.Run("online bill needs a customer", func(t *testing.T) {
		_, err := f.svc.CreateBill(ctx, CreateBillRequest{Channel: "ONLINE", PaymentKind: "ONLINE"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("cash is not accepted online", func(t *testing.T) {
		_, err := f.svc.CreateBill(ctx, CreateBillRequest{Channel: "ONLINE", PaymentKind: "CASH", CustomerRef: "cust-1"})
		assert.ErrorIs(t, err, shared.ErrInvalidPayment)
	})

	t.Run("unknown channel", func(t *testing.T) {
		_, err := f.svc.CreateBill(ctx, CreateBillRequest{Channel: "KIOSK", PaymentKind: "CASH"})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("open bills are listed", func(t *testing.T) {
		bill := f.openCashBill(t)
		open, err := f.svc.OpenBills(ctx)
		require.NoError(t, err)
		var ids []string
		for _, b := range open {
			ids = append(ids, b.ID.String())
		}
		assert.Contains(t, ids, bill.ID.String())
	})
}

func TestService_Items(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "SOAP", "3.00", 10, nil)
	f.stocked(inventory.ChannelPhysical, "TOWEL", "7.50", 4, nil)
	f.ledger.AddProduct("GHOST", "Not stocked", "1.00")

	bill := f.openCashBill(t)

	t.Run("adding again re-plans the total quantity", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "SOAP", Quantity: 2})
		require.NoError(t, err)
		resp, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "SOAP", Quantity: 3})
		require.NoError(t, err)
		require.Len(t, resp.Lines, 1)
		assert.Equal(t, 5, resp.Lines[0].Quantity)
		assert.True(t, money("15.00").Equal(resp.Subtotal))
	})

	t.Run("more than the channel holds is rejected and the bill is unchanged", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "TOWEL", Quantity: 5})
		var stockErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 4, stockErr.Available)
		assert.Equal(t, 5, stockErr.Requested)

		got, err := f.svc.GetBill(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, got.ItemCount)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "NOPE", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("product without stock", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "GHOST", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrInsufficientStock)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "SOAP", Quantity: 0})
		assert.ErrorIs(t, err, shared.ErrValidation)
	})

	t.Run("update sets the quantity", func(t *testing.T) {
		resp, err := f.svc.UpdateItemQuantity(ctx, bill.ID, "SOAP", 8)
		require.NoError(t, err)
		assert.Equal(t, 8, resp.ItemCount)
		assert.True(t, money("24.00").Equal(resp.Subtotal))
	})

	t.Run("update of a product not on the bill", func(t *testing.T) {
		_, err := f.svc.UpdateItemQuantity(ctx, bill.ID, "TOWEL", 1)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("update to zero removes the product", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "TOWEL", Quantity: 1})
		require.NoError(t, err)
		resp, err := f.svc.UpdateItemQuantity(ctx, bill.ID, "TOWEL", 0)
		require.NoError(t, err)
		for _, l := range resp.Lines {
			assert.NotEqual(t, "TOWEL", l.ProductCode)
		}
	})

	t.Run("clear empties the bill", func(t *testing.T) {
		resp, err := f.svc.ClearItems(ctx, bill.ID)
		require.NoError(t, err)
		assert.Empty(t, resp.Lines)
		assert.True(t, resp.Total.IsZero())
	})

	t.Run("unknown bill", func(t *testing.T) {
		_, err := f.svc.AddItem(ctx, uuid.New(), AddItemRequest{ProductCode: "SOAP", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	assert.Equal(t, 10, f.ledger.ChannelTotal(inventory.ChannelPhysical, "SOAP"), "bill edits never touch stock")
}

func TestService_AmountChangesResetPayment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "CAKE", "20.00", 5, nil)

	bill := f.openCashBill(t)
	_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "CAKE", Quantity: 2})
	require.NoError(t, err)
	_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("50.00"))
	require.NoError(t, err)

	resp, err := f.svc.ApplyDiscount(ctx, bill.ID, money("5.00"))
	require.NoError(t, err)
	assert.False(t, resp.PaymentCompleted)
	assert.True(t, money("35.00").Equal(resp.Total))

	resp, err = f.svc.SetTax(ctx, bill.ID, money("2.10"))
	require.NoError(t, err)
	assert.True(t, money("37.10").Equal(resp.Total))

	_, err = f.svc.ApplyDiscount(ctx, bill.ID, money("41.00"))
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.ProcessOnlinePayment(ctx, bill.ID)
	assert.ErrorIs(t, err, shared.ErrInvalidPayment)
}

func TestService_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid bill is rejected", func(t *testing.T) {
		f := newFixture(t)
		f.stocked(inventory.ChannelPhysical, "PEN", "1.50", 5, nil)
		bill := f.openCashBill(t)
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "PEN", Quantity: 1})
		require.NoError(t, err)

		result, err := f.svc.ValidateForFinalization(ctx, bill.ID)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Errors, "Cash payment not completed")

		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		assert.ErrorIs(t, err, shared.ErrValidation)
		assert.Equal(t, 5, f.ledger.ChannelTotal(inventory.ChannelPhysical, "PEN"))
	})

	t.Run("stock sold elsewhere since the item was added", func(t *testing.T) {
		f := newFixture(t)
		b := f.stocked(inventory.ChannelPhysical, "PEN", "1.50", 5, nil)
		bill := f.openCashBill(t)
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "PEN", Quantity: 4})
		require.NoError(t, err)
		_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("10.00"))
		require.NoError(t, err)

		ok, err := f.ledger.Store(inventory.ChannelPhysical).DecreaseQuantity(ctx, "PEN", b.ID, 3)
		require.NoError(t, err)
		require.True(t, ok)

		result, err := f.svc.ValidateForFinalization(ctx, bill.ID)
		require.NoError(t, err)
		assert.False(t, result.Valid)

		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		var stockErr *shared.InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
		assert.Equal(t, 2, stockErr.Available)

		got, err := f.svc.GetBill(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, string(sales.BillStatusInProgress), got.Status, "bill stays open")
		assert.Equal(t, 2, f.ledger.ChannelTotal(inventory.ChannelPhysical, "PEN"))
	})

	t.Run("failed bill write releases the stock", func(t *testing.T) {
		f := newFixture(t)
		f.stocked(inventory.ChannelPhysical, "PEN", "1.50", 5, nil)
		bill := f.openCashBill(t)
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "PEN", Quantity: 3})
		require.NoError(t, err)
		_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("5.00"))
		require.NoError(t, err)

		f.ledger.FailBillCreate(errors.New("db down"))
		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
		assert.Empty(t, shared.ErrorCode(err))

		assert.Equal(t, 5, f.ledger.ChannelTotal(inventory.ChannelPhysical, "PEN"))
		assert.Empty(t, f.ledger.RecordsOfKind(inventory.TransactionKindSale))
		assert.Equal(t, 0, f.ledger.BillCount())

		f.ledger.FailBillCreate(nil)
		final, err := f.svc.FinalizeBill(ctx, bill.ID)
		require.NoError(t, err, "the bill can be retried")
		assert.Equal(t, 2, f.ledger.ChannelTotal(inventory.ChannelPhysical, "PEN"))
		assert.Equal(t, todaySerial("0002"), final.SerialNumber)
	})

	t.Run("finalized bill cannot be changed", func(t *testing.T) {
		f := newFixture(t)
		f.stocked(inventory.ChannelPhysical, "PEN", "1.50", 5, nil)
		bill := f.openCashBill(t)
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "PEN", Quantity: 1})
		require.NoError(t, err)
		_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("2.00"))
		require.NoError(t, err)
		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		require.NoError(t, err)

		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)
		_, err = f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "PEN", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)
		_, err = f.svc.CancelBill(ctx, bill.ID)
		assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)
		assert.Equal(t, 4, f.ledger.ChannelTotal(inventory.ChannelPhysical, "PEN"))
	})

	t.Run("serial numbers increase per channel and day", func(t *testing.T) {
		f := newFixture(t)
		f.stocked(inventory.ChannelPhysical, "PEN", "1.50", 5, nil)
		var serials []string
		for range 2 {
			bill := f.openCashBill(t)
			_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "PEN", Quantity: 1})
			require.NoError(t, err)
			_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("2.00"))
			require.NoError(t, err)
			final, err := f.svc.FinalizeBill(ctx, bill.ID)
			require.NoError(t, err)
			serials = append(serials, final.SerialNumber)
		}
		assert.Equal(t, []string{todaySerial("0001"), todaySerial("0002")}, serials)
	})
}

func TestService_CancelBill(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "JAM", "4.00", 6, nil)

	bill := f.openCashBill(t)
	_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "JAM", Quantity: 2})
	require.NoError(t, err)

	cancelled, err := f.svc.CancelBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, string(sales.BillStatusCancelled), cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Empty(t, cancelled.SerialNumber)

	_, err = f.svc.CancelBill(ctx, bill.ID)
	assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)

	assert.Equal(t, 6, f.ledger.ChannelTotal(inventory.ChannelPhysical, "JAM"), "cancel never touches stock")
	assert.Empty(t, f.ledger.Records())

	got, err := f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, string(sales.BillStatusCancelled), got.Status)
	assert.Empty(t, got.Lines, "only the header is kept")

	_, err = f.svc.CancelBill(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

// stickySessions keeps every session because Delete always fails
type stickySessions struct {
	sales.SessionStore
}

func (stickySessions) Delete(context.Context, uuid.UUID) error {
	return errors.New("redis: connection refused")
}

func TestService_StaleSessionAfterFailedDelete(t *testing.T) {
	ctx := context.Background()

	newStickyFixture := func(t *testing.T) *fixture {
		t.Helper()
		f := newFixture(t)
		f.svc.sessions = stickySessions{SessionStore: f.sessions}
		return f
	}

	t.Run("finalized bill stays finalized", func(t *testing.T) {
		f := newStickyFixture(t)
		f.stocked(inventory.ChannelPhysical, "TEA", "3.00", 10, nil)
		bill := f.openCashBill(t)
		_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "TEA", Quantity: 3})
		require.NoError(t, err)
		_, err = f.svc.ProcessCashPayment(ctx, bill.ID, money("10.00"))
		require.NoError(t, err)
		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		require.NoError(t, err)

		_, ok, err := f.sessions.Get(ctx, bill.ID)
		require.NoError(t, err)
		require.True(t, ok, "session survives the failed delete")

		_, err = f.svc.FinalizeBill(ctx, bill.ID)
		assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)
		_, err = f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "TEA", Quantity: 1})
		assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)

		got, err := f.svc.GetBill(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, string(sales.BillStatusFinalized), got.Status)

		assert.Equal(t, 7, f.ledger.ChannelTotal(inventory.ChannelPhysical, "TEA"))
		sold := 0
		for _, rec := range f.ledger.RecordsOfKind(inventory.TransactionKindSale) {
			sold -= rec.QuantityDelta
		}
		assert.Equal(t, 3, sold)
		assert.Equal(t, 1, f.ledger.BillCount())

		open, err := f.svc.OpenBills(ctx)
		require.NoError(t, err)
		assert.Empty(t, open)
	})

	t.Run("cancelled bill stays cancelled", func(t *testing.T) {
		f := newStickyFixture(t)
		bill := f.openCashBill(t)
		_, err := f.svc.CancelBill(ctx, bill.ID)
		require.NoError(t, err)

		_, err = f.svc.CancelBill(ctx, bill.ID)
		assert.ErrorIs(t, err, shared.ErrIllegalStateTransition)

		got, err := f.svc.GetBill(ctx, bill.ID)
		require.NoError(t, err)
		assert.Equal(t, string(sales.BillStatusCancelled), got.Status)
		assert.Equal(t, 1, f.ledger.BillCount())
	})

	t.Run("bill ids are written once", func(t *testing.T) {
		f := newFixture(t)
		bill, err := sales.NewBill(inventory.ChannelPhysical, sales.PaymentCash, "", "cashier-1")
		require.NoError(t, err)
		require.NoError(t, f.ledger.Bills().Create(ctx, bill))
		assert.ErrorIs(t, f.ledger.Bills().Create(ctx, bill), testutil.ErrDuplicateKey)
	})
}

func TestService_ConcurrentItemUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.stocked(inventory.ChannelPhysical, "NUT", "0.10", 100, nil)
	bill := f.openCashBill(t)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AddItem(ctx, bill.ID, AddItemRequest{ProductCode: "NUT", Quantity: 1})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := f.svc.GetBill(ctx, bill.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, got.ItemCount, "no update is lost")
	assert.Equal(t, 0, f.svc.locks.size())
}
