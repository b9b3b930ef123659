package handler

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	inventoryapp "github.com/retail/backend/internal/application/inventory"
	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/retail/backend/internal/infrastructure/cache"
	"github.com/retail/backend/internal/infrastructure/config"
	"github.com/retail/backend/internal/infrastructure/validation"
	"github.com/retail/backend/internal/interfaces/http/dto"
	"github.com/retail/backend/internal/interfaces/http/router"
	"github.com/retail/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	validation.Setup()
}

type fakeDB struct{ err error }

func (f *fakeDB) Ping() error { return f.err }

// testAPI is the full route table backed by real services over an in-memory ledger
type testAPI struct {
	ledger *testutil.Ledger
	db     *fakeDB
	engine *gin.Engine
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	l := testutil.NewLedger()
	log := zap.NewNop()

	invScope := inventoryapp.NewNoOpTransactionScope(l.Batches(), l.Log(),
		l.Store(inventory.ChannelPhysical), l.Store(inventory.ChannelOnline))
	ledger := inventoryapp.NewBatchLedgerService(l.Batches(), l.Products(), l.Log(), invScope, log)
	stocks := inventoryapp.NewChannelStocks(
		inventoryapp.NewChannelStockService(l.Store(inventory.ChannelPhysical), l.Batches(), l.Products(), invScope, log),
		inventoryapp.NewChannelStockService(l.Store(inventory.ChannelOnline), l.Batches(), l.Products(), invScope, log),
	)
	sessions := cache.NewInMemorySessionStore()
	t.Cleanup(func() { _ = sessions.Close() })
	sales := salesapp.NewService(l.Products(), l.Bills(), sessions, stocks,
		salesapp.NewNoOpTransactionScope(l.Bills(), l.Log()), log)

	engine, err := router.NewEngine(router.EngineConfig{ServiceName: "retail-test", HTTP: config.HTTPConfig{}, Logger: log})
	require.NoError(t, err)

	db := &fakeDB{}
	system := NewSystemHandler("retail-test", "test", db)
	bills := NewBillHandler(sales)
	engine.GET("/health", system.Health)
	router.NewRouter(engine).Register(
		system.Routes(),
		NewInventoryHandler(ledger, 7).Routes(),
		NewStoreHandler(stocks, nil, 10).Routes(),
		bills.Routes(),
		bills.SalesRoutes(),
		NewCheckoutHandler(sales, nil).Routes(),
	).Setup()

	return &testAPI{ledger: l, db: db, engine: engine}
}

// envelope is the decoded API response
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

// decode unmarshals the envelope data into T
func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out), string(env.Data))
	return out
}

// details returns the error details as a JSON object
func details(t *testing.T, env envelope) map[string]any {
	t.Helper()
	require.NotNil(t, env.Error)
	m, ok := env.Error.Details.(map[string]any)
	require.True(t, ok, "details: %#v", env.Error.Details)
	return m
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// stocked registers a product and places one batch of qty units on the channel
func (a *testAPI) stocked(channel inventory.Channel, code, price string, qty int) *inventory.Batch {
	a.ledger.AddProduct(code, code+" item", price)
	b := a.ledger.AddBatch(code, qty, testutil.Day(10))
	a.ledger.PutStock(channel, code, b, qty)
	return b
}
