package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatch(t *testing.T) {
	purchased := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	expiry := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid receipt", func(t *testing.T) {
		b, err := NewBatch("MILK", 24, decimal.RequireFromString("0.80"), purchased, &expiry, "Dairy Co")
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, b.ID)
		assert.Equal(t, 24, b.QuantityReceived)
		assert.Equal(t, 24, b.QuantityRemaining)
		assert.Equal(t, DateOf(purchased), b.PurchaseDate)
		assert.True(t, b.HasRemaining())
	})

	t.Run("defaults purchase date to today", func(t *testing.T) {
		b, err := NewBatch("RICE", 5, decimal.Zero, time.Time{}, nil, "Farm")
		require.NoError(t, err)
		assert.Equal(t, DateOf(time.Now()), b.PurchaseDate)
		assert.Nil(t, b.ExpiryDate)
	})

	t.Run("collects every invalid field", func(t *testing.T) {
		before := purchased.AddDate(0, 0, -1)
		_, err := NewBatch("", 0, decimal.NewFromInt(-1), purchased, &before, " ")
		require.Error(t, err)

		var verr *shared.ValidationError
		require.True(t, errors.As(err, &verr))
		assert.Contains(t, verr.Fields, "product_code")
		assert.Contains(t, verr.Fields, "quantity")
		assert.Contains(t, verr.Fields, "unit_cost")
		assert.Contains(t, verr.Fields, "supplier_name")
		assert.Contains(t, verr.Fields, "expiry_date")
	})

	t.Run("expiry on purchase day is allowed", func(t *testing.T) {
		same := purchased
		_, err := NewBatch("BREAD", 1, decimal.Zero, purchased, &same, "Bakery")
		assert.NoError(t, err)
	})
}

func TestBatch_Expiry(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

	b := &Batch{ExpiryDate: day(0)}
	*b.ExpiryDate = time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	assert.False(t, b.IsExpired(now))
	assert.True(t, b.WillExpireWithin(7, now))
	assert.False(t, b.WillExpireWithin(3, now))
	assert.Equal(t, 5, b.DaysUntilExpiry(now))

	expired := &Batch{ExpiryDate: day(0)}
	*expired.ExpiryDate = time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)
	assert.True(t, expired.IsExpired(now))
	assert.False(t, expired.WillExpireWithin(7, now))

	today := &Batch{ExpiryDate: day(0)}
	*today.ExpiryDate = time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	assert.False(t, today.IsExpired(now))

	never := &Batch{}
	assert.False(t, never.IsExpired(now))
	assert.Equal(t, -1, never.DaysUntilExpiry(now))
}

func TestSortBatchesFIFO(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	noExpiry := Batch{BaseEntity: shared.BaseEntity{ID: uuid.New()}, PurchaseDate: base}
	late := Batch{BaseEntity: shared.BaseEntity{ID: uuid.New()}, PurchaseDate: base, ExpiryDate: day(20)}
	earlyNew := Batch{BaseEntity: shared.BaseEntity{ID: uuid.New()}, PurchaseDate: base.AddDate(0, 0, 2), ExpiryDate: day(10)}
	earlyOld := Batch{BaseEntity: shared.BaseEntity{ID: uuid.New()}, PurchaseDate: base, ExpiryDate: day(10)}

	batches := []Batch{noExpiry, late, earlyNew, earlyOld}
	SortBatchesFIFO(batches)

	assert.Equal(t, earlyOld.ID, batches[0].ID)
	assert.Equal(t, earlyNew.ID, batches[1].ID)
	assert.Equal(t, late.ID, batches[2].ID)
	assert.Equal(t, noExpiry.ID, batches[3].ID)
}

func TestParseChannel(t *testing.T) {
	c, err := ParseChannel("online")
	require.NoError(t, err)
	assert.Equal(t, ChannelOnline, c)
	assert.Equal(t, TransactionKindRestockOnline, c.RestockKind())
	assert.Equal(t, TransactionKindRestockPhysical, ChannelPhysical.RestockKind())

	_, err = ParseChannel("warehouse")
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestTransactionRecords(t *testing.T) {
	billID := uuid.New()
	batchID := uuid.New()

	sale := NewSaleRecord("P", batchID, ChannelPhysical, 3, billID, "")
	assert.Equal(t, -3, sale.QuantityDelta)
	assert.Equal(t, TransactionKindSale, sale.Kind)
	require.NotNil(t, sale.BillID)
	assert.Equal(t, billID, *sale.BillID)

	restock := NewRestockRecord("P", batchID, ChannelOnline, 4)
	assert.Equal(t, 4, restock.QuantityDelta)
	assert.Equal(t, TransactionKindRestockOnline, restock.Kind)

	expired := NewExpiredRecord("P", batchID, 2, "write-off")
	assert.Equal(t, -2, expired.QuantityDelta)
	assert.Empty(t, expired.Channel)
}
