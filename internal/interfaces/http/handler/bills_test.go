package handler

import (
	"net/http"
	"strings"
	"testing"

	salesapp "github.com/retail/backend/internal/application/sales"
	"github.com/retail/backend/internal/domain/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBillHandler_CashierFlow(t *testing.T) {
	api := newTestAPI(t)
	api.stocked(inventory.ChannelPhysical, "BREAD", "25.00", 5)

	w, env := api.do(t, http.MethodPost, "/api/v1/bills",
		map[string]any{"channel": "physical", "payment_kind": "cash"},
		"X-Operator", "cashier-7")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bill := decode[salesapp.BillResponse](t, env)
	assert.Equal(t, "IN_PROGRESS", bill.Status)
	assert.Equal(t, "cashier-7", bill.CreatedBy)
	base := "/api/v1/bills/" + bill.ID.String()

	w, env = api.do(t, http.MethodPost, base+"/items", map[string]any{"product_code": "BREAD", "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bill = decode[salesapp.BillResponse](t, env)
	assert.True(t, money("50").Equal(bill.Total), bill.Total.String())
	assert.Equal(t, 2, bill.ItemCount)

	w, env = api.do(t, http.MethodPut, base+"/items/BREAD", map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, money("75").Equal(decode[salesapp.BillResponse](t, env).Total))

	w, _ = api.do(t, http.MethodPost, base+"/discount", map[string]any{"amount": "5.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	_, env = api.do(t, http.MethodGet, base+"/validation", nil)
	result := decode[salesapp.ValidationResult](t, env)
	assert.False(t, result.Valid)
	assert.Contains(t, result.Errors, "Cash payment not completed")

	w, env = api.do(t, http.MethodPost, base+"/payments/cash", map[string]any{"tendered": "100"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bill = decode[salesapp.BillResponse](t, env)
	assert.True(t, money("30").Equal(bill.Change), bill.Change.String())

	_, env = api.do(t, http.MethodGet, base+"/validation", nil)
	assert.True(t, decode[salesapp.ValidationResult](t, env).Valid)

	w, env = api.do(t, http.MethodPost, base+"/finalize", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	bill = decode[salesapp.BillResponse](t, env)
	assert.Equal(t, "FINALIZED", bill.Status)
	assert.True(t, strings.HasPrefix(bill.SerialNumber, "POS-"), bill.SerialNumber)
	assert.Equal(t, 2, api.ledger.ChannelTotal(inventory.ChannelPhysical, "BREAD"))

	w, env = api.do(t, http.MethodGet, "/api/v1/bills/serial/"+strings.ToLower(bill.SerialNumber), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, bill.ID, decode[salesapp.BillResponse](t, env).ID)

	w, env = api.do(t, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ILLEGAL_STATE_TRANSITION", env.Error.Code)

	_, env = api.do(t, http.MethodGet, "/api/v1/bills?limit=5", nil)
	recent := decode[[]salesapp.BillResponse](t, env)
	require.Len(t, recent, 1)
	assert.Equal(t, bill.ID, recent[0].ID)

	_, env = api.do(t, http.MethodGet, "/api/v1/sales/today", nil)
	summary := decode[salesapp.SalesSummaryResponse](t, env)
	assert.Equal(t, int64(1), summary.Count)
	assert.True(t, money("70").Equal(summary.Total), summary.Total.String())
}

func TestBillHandler_OpenItemsAndCancel(t *testing.T) {
	api := newTestAPI(t)
	api.stocked(inventory.ChannelOnline, "TEA", "4.50", 10)
	api.stocked(inventory.ChannelOnline, "MUG", "12.00", 10)

	_, env := api.do(t, http.MethodPost, "/api/v1/bills",
		map[string]any{"channel": "ONLINE", "payment_kind": "ONLINE", "customer_ref": "cust-9"})
	bill := decode[salesapp.BillResponse](t, env)
	base := "/api/v1/bills/" + bill.ID.String()

	api.do(t, http.MethodPost, base+"/items", map[string]any{"product_code": "TEA", "quantity": 2})
	_, env = api.do(t, http.MethodPost, base+"/items", map[string]any{"product_code": "MUG", "quantity": 1})
	assert.Len(t, decode[salesapp.BillResponse](t, env).Lines, 2)

	_, env = api.do(t, http.MethodDelete, base+"/items/TEA", nil)
	assert.Len(t, decode[salesapp.BillResponse](t, env).Lines, 1)

	_, env = api.do(t, http.MethodDelete, base+"/items", nil)
	assert.Empty(t, decode[salesapp.BillResponse](t, env).Lines)

	_, env = api.do(t, http.MethodGet, "/api/v1/bills/open", nil)
	require.Len(t, decode[[]salesapp.BillResponse](t, env), 1)

	w, env := api.do(t, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CANCELLED", decode[salesapp.BillResponse](t, env).Status)

	_, env = api.do(t, http.MethodGet, "/api/v1/bills/open", nil)
	assert.Empty(t, decode[[]salesapp.BillResponse](t, env))
	assert.Equal(t, 10, api.ledger.ChannelTotal(inventory.ChannelOnline, "TEA"))

	w, env = api.do(t, http.MethodPost, base+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ILLEGAL_STATE_TRANSITION", env.Error.Code)
}

func TestBillHandler_Errors(t *testing.T) {
	api := newTestAPI(t)
	api.stocked(inventory.ChannelPhysical, "MILK", "1.20", 3)

	_, env := api.do(t, http.MethodPost, "/api/v1/bills", map[string]any{"channel": "PHYSICAL", "payment_kind": "CASH"})
	billPath := "/api/v1/bills/" + decode[salesapp.BillResponse](t, env).ID.String()

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
		wantField  string
	}{
		{"malformed id", http.MethodGet, "/api/v1/bills/not-a-uuid", nil, http.StatusBadRequest, "VALIDATION_ERROR", "id"},
		{"unknown bill", http.MethodGet, "/api/v1/bills/7b0c8a9e-1111-4222-8333-944455556666", nil, http.StatusNotFound, "NOT_FOUND", ""},
		{"missing fields", http.MethodPost, "/api/v1/bills", map[string]any{"channel": "PHYSICAL"}, http.StatusBadRequest, "VALIDATION_ERROR", "payment_kind"},
		{"unknown channel", http.MethodPost, "/api/v1/bills", map[string]any{"channel": "KIOSK", "payment_kind": "CASH"}, http.StatusBadRequest, "VALIDATION_ERROR", "channel"},
		{"malformed json", http.MethodPost, "/api/v1/bills", `{"channel":`, http.StatusBadRequest, "VALIDATION_ERROR", "body"},
		{"cash on online channel", http.MethodPost, "/api/v1/bills", map[string]any{"channel": "ONLINE", "payment_kind": "CASH", "customer_ref": "c1"}, http.StatusUnprocessableEntity, "INVALID_PAYMENT", ""},
		{"zero quantity", http.MethodPost, billPath + "/items", map[string]any{"product_code": "MILK", "quantity": 0}, http.StatusBadRequest, "VALIDATION_ERROR", "quantity"},
		{"unknown product", http.MethodPost, billPath + "/items", map[string]any{"product_code": "NOPE", "quantity": 1}, http.StatusNotFound, "NOT_FOUND", ""},
		{"more than stocked", http.MethodPost, billPath + "/items", map[string]any{"product_code": "MILK", "quantity": 4}, http.StatusConflict, "INSUFFICIENT_STOCK", ""},
		{"pay empty bill", http.MethodPost, billPath + "/payments/cash", map[string]any{"tendered": "10"}, http.StatusBadRequest, "VALIDATION_ERROR", "items"},
		{"online payment on cash bill", http.MethodPost, billPath + "/payments/online", nil, http.StatusUnprocessableEntity, "INVALID_PAYMENT", ""},
		{"bad date", http.MethodGet, "/api/v1/bills?date=yesterday", nil, http.StatusBadRequest, "VALIDATION_ERROR", "date"},
		{"bad serial", http.MethodGet, "/api/v1/bills/serial/XYZ", nil, http.StatusBadRequest, "VALIDATION_ERROR", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := api.do(t, tt.method, tt.path, tt.body, "X-Request-ID", "req-"+tt.name)
			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantCode, env.Error.Code)
			assert.Equal(t, "req-"+tt.name, env.Error.RequestID)
			if tt.wantField != "" {
				assert.Contains(t, details(t, env), tt.wantField)
			}
		})
	}
}

func TestBillHandler_InsufficientStockDetails(t *testing.T) {
	api := newTestAPI(t)
	api.stocked(inventory.ChannelPhysical, "EGGS", "3.00", 2)

	_, env := api.do(t, http.MethodPost, "/api/v1/bills", map[string]any{"channel": "PHYSICAL", "payment_kind": "CASH"})
	path := "/api/v1/bills/" + decode[salesapp.BillResponse](t, env).ID.String() + "/items"

	w, env := api.do(t, http.MethodPost, path, map[string]any{"product_code": "EGGS", "quantity": 5})
	require.Equal(t, http.StatusConflict, w.Code)
	d := details(t, env)
	assert.Equal(t, "EGGS", d["product_code"])
	assert.EqualValues(t, 2, d["available"])
	assert.EqualValues(t, 5, d["requested"])
}
