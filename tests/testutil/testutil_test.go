package testutil

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMockDB(t *testing.T) {
	mockDB := NewMockDB(t)
	defer mockDB.Close()

	assert.NotNil(t, mockDB.DB)
	assert.NotNil(t, mockDB.Mock)
	mockDB.ExpectationsWereMet(t)
}

func TestTestContext(t *testing.T) {
	tc := NewTestContext(t)
	tc.SetRequestID("req-123")
	tc.SetOperator("cashier-1")

	val, exists := tc.Context.Get("request_id")
	assert.True(t, exists)
	assert.Equal(t, "req-123", val)
	assert.Equal(t, "cashier-1", tc.Context.Request.Header.Get("X-Operator"))

	tc.Recorder.WriteHeader(http.StatusCreated)
	assert.Equal(t, http.StatusCreated, tc.ResponseCode())
}

func TestNewTestUUID(t *testing.T) {
	assert.Equal(t, NewTestUUID("seed"), NewTestUUID("seed"))
	assert.NotEqual(t, NewTestUUID("seed"), NewTestUUID("other"))
	assert.NotEqual(t, NewRandomUUID(), NewRandomUUID())
}

func TestAssertEventually(t *testing.T) {
	var counter atomic.Int32
	go func() {
		time.Sleep(20 * time.Millisecond)
		counter.Store(1)
	}()

	AssertEventually(t, func() bool {
		return counter.Load() == 1
	}, 500*time.Millisecond, 5*time.Millisecond)
}

func TestRunHTTPTestCase(t *testing.T) {
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"success": true})
	}

	RunHTTPTestCases(t, handler, []HTTPTestCase{
		{Name: "get", Method: http.MethodGet, Path: "/test", ExpectedStatus: http.StatusOK,
			ExpectedBody: map[string]any{"success": true}},
		{Name: "post", Method: http.MethodPost, Body: map[string]int{"n": 1}, ExpectedStatus: http.StatusOK},
	})

	failing := func(c *gin.Context) {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{
			"code":       "VALIDATION_ERROR",
			"message":    "Validation failed",
			"details":    gin.H{"quantity": "Quantity must be greater than zero"},
			"request_id": c.GetString("request_id"),
		}})
	}
	RunHTTPTestCase(t, failing, HTTPTestCase{
		Name:           "error envelope",
		RequestID:      "req-7",
		ExpectedStatus: http.StatusBadRequest,
		ExpectedCode:   "VALIDATION_ERROR",
		ExpectedFields: []string{"quantity"},
	})
}

func TestLedger_ConditionalUpdates(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	l.AddProduct("A", "Apple", "1.00")
	b := l.AddBatch("A", 10, Day(5))

	ok, err := l.Batches().DecreaseRemaining(ctx, b.ID, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = l.Batches().DecreaseRemaining(ctx, b.ID, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 6, l.BatchRemaining(b.ID))

	ok, err = l.Batches().IncreaseRemaining(ctx, b.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok, "cannot exceed quantity received")

	_, err = l.Batches().DecreaseRemaining(ctx, NewRandomUUID(), 1)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestLedger_StoreRowsInFIFOOrder(t *testing.T) {
	ctx := context.Background()
	l := NewLedger()
	late := l.AddBatch("A", 10, Day(9))
	early := l.AddBatch("A", 10, Day(2))
	l.PutStock(inventory.ChannelPhysical, "A", late, 3)
	l.PutStock(inventory.ChannelPhysical, "A", early, 4)
	l.PutStock(inventory.ChannelOnline, "A", early, 1)

	rows, err := l.Store(inventory.ChannelPhysical).FindAvailableByProduct(ctx, "A")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, early.ID, rows[0].BatchID)
	assert.Equal(t, 7, l.ChannelTotal(inventory.ChannelPhysical, "A"))
	assert.Equal(t, 1, l.ChannelTotal(inventory.ChannelOnline, "A"))
}
