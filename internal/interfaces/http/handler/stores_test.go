package handler

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/scheduler"
	"github.com/retail/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStoreHandler_RestockAndQuery(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.AddProduct("SOAP", "Soap", "3.00")
	first := api.ledger.AddBatch("SOAP", 4, testutil.Day(20))
	second := api.ledger.AddBatch("SOAP", 10, testutil.Day(60))

	w, env := api.do(t, http.MethodPost, "/api/v1/stores/physical/restock", map[string]any{"product_code": "SOAP", "quantity": 6})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	outcome := decode[inventoryapp.RestockOutcome](t, env)
	assert.True(t, outcome.Success)
	assert.Equal(t, 6, outcome.QuantityRestocked)
	assert.Equal(t, 2, outcome.BatchesUsed)
	assert.Zero(t, api.ledger.BatchRemaining(first.ID))
	assert.Equal(t, 8, api.ledger.BatchRemaining(second.ID))

	w, env = api.do(t, http.MethodPost, "/api/v1/stores/ONLINE/restock", map[string]any{"batch_id": second.ID, "quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 1, decode[inventoryapp.RestockOutcome](t, env).BatchesUsed)
	assert.Equal(t, 5, api.ledger.BatchRemaining(second.ID))

	_, env = api.do(t, http.MethodGet, "/api/v1/stores/physical/products/SOAP/availability", nil)
	assert.Equal(t, inventoryapp.AvailabilityResponse{ProductCode: "SOAP", Channel: "PHYSICAL", Available: 6, InStock: true},
		decode[inventoryapp.AvailabilityResponse](t, env))

	_, env = api.do(t, http.MethodGet, "/api/v1/stores/physical/products/SOAP/entries", nil)
	entries := decode[[]StockEntryResponse](t, env)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].BatchID)

	_, env = api.do(t, http.MethodGet, "/api/v1/stores/online/low-stock", nil)
	low := decode[[]inventoryapp.ChannelStockResponse](t, env)
	require.Len(t, low, 1)
	assert.Equal(t, 3, low[0].Quantity)

	_, env = api.do(t, http.MethodGet, "/api/v1/stores/online/low-stock?threshold=2", nil)
	assert.Empty(t, decode[[]inventoryapp.ChannelStockResponse](t, env))

	_, env = api.do(t, http.MethodGet, "/api/v1/stores/physical/summary", nil)
	summary := decode[[]inventoryapp.ChannelStockResponse](t, env)
	require.Len(t, summary, 1)
	assert.Equal(t, 6, summary[0].Quantity)
}

func TestStoreHandler_RestockFailures(t *testing.T) {
	api := newTestAPI(t)
	api.ledger.AddProduct("CANDLE", "Candle", "5.00")

	w, env := api.do(t, http.MethodPost, "/api/v1/stores/physical/restock", map[string]any{"product_code": "CANDLE", "quantity": 2})
	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "INSUFFICIENT_STOCK", env.Error.Code)
	assert.Equal(t, false, details(t, env)["success"])

	w, env = api.do(t, http.MethodPost, "/api/v1/stores/warehouse/restock", map[string]any{"product_code": "CANDLE", "quantity": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, details(t, env), "channel")

	w, env = api.do(t, http.MethodPost, "/api/v1/stores/physical/restock", map[string]any{"quantity": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, details(t, env), "product_code")

	w, _ = api.do(t, http.MethodPost, "/api/v1/stores/physical/restock", map[string]any{"product_code": "NOPE", "quantity": 2})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStoreHandler_RestockOnPool(t *testing.T) {
	l := testutil.NewLedger()
	l.AddProduct("LAMP", "Lamp", "20.00")
	l.AddBatch("LAMP", 3, nil)
	scope := inventoryapp.NewNoOpTransactionScope(l.Batches(), l.Log(), l.Store(inventory.ChannelPhysical))
	stocks := inventoryapp.NewChannelStocks(
		inventoryapp.NewChannelStockService(l.Store(inventory.ChannelPhysical), l.Batches(), l.Products(), scope, zap.NewNop()),
	)

	pool, err := scheduler.NewWorkerPool(scheduler.PoolConfig{Name: scheduler.PoolInventory, Workers: 1, QueueSize: 1}, zap.NewNop())
	require.NoError(t, err)
	h := NewStoreHandler(stocks, pool, 10)
	engine := gin.New()
	h.Routes().RegisterRoutes(engine.Group("/api/v1"))
	api := &testAPI{ledger: l, engine: engine}

	t.Run("stopped pool answers 503", func(t *testing.T) {
		w, env := api.do(t, http.MethodPost, "/api/v1/stores/physical/restock", map[string]any{"product_code": "LAMP", "quantity": 1})
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	})

	require.NoError(t, pool.Start(t.Context()))
	t.Cleanup(func() { _ = pool.Stop(t.Context()) })

	t.Run("running pool restocks", func(t *testing.T) {
		w, env := api.do(t, http.MethodPost, "/api/v1/stores/physical/restock", map[string]any{"product_code": "LAMP", "quantity": 2})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, 2, decode[inventoryapp.RestockOutcome](t, env).QuantityRestocked)
		assert.Equal(t, 2, l.ChannelTotal(inventory.ChannelPhysical, "LAMP"))
	})
}
