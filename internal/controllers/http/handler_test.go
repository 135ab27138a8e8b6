package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dinesync/internal/domain"
	"dinesync/internal/mocks"
	"dinesync/internal/services"
)

func newRouter() (*gin.Engine, *mocks.MockSessionRepository, *mocks.MockOrderRepository) {
	gin.SetMode(gin.TestMode)

	orders := new(mocks.MockOrderRepository)
	sessions := new(mocks.MockSessionRepository)
	tables := new(mocks.MockTableRepository)
	events := new(mocks.MockEventPublisher)
	backend := new(mocks.MockPublisher)
	events.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	backend.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := services.NewOrderService(orders, sessions, tables, events, backend, zerolog.Nop())
	h := NewHandler(svc, zerolog.Nop())

	r := gin.New()
	h.RegisterRoutes(r)
	return r, sessions, orders
}

func TestSubmitOrderDeviceLockedWireShape(t *testing.T) {
	r, sessions, _ := newRouter()

	sessions.On("FindByID", uint64(5)).Return(&domain.Session{
		ID: 5, Status: domain.SessionActive, DeviceID: "tablet-1",
	}, nil)

	body, _ := json.Marshal(map[string]any{
		"session_id": 5,
		"device_id":  "tablet-2",
		"items":      []map[string]any{{"product_id": 1, "quantity": 1, "unit_price": 1000}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)

	var resp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "DEVICE_LOCKED", resp.Code, "takeover must be distinguishable from a generic 403")
	assert.NotEmpty(t, resp.Message)
}

func TestUpdateOrderStatusEcho(t *testing.T) {
	r, _, orders := newRouter()

	orders.On("FindByID", uint64(501)).Return(&domain.Order{ID: 501, Status: domain.OrderPending}, nil)
	orders.On("UpdateStatus", uint64(501), domain.OrderPreparing).Return(nil)

	body, _ := json.Marshal(map[string]any{"status": "preparing"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/orders/501/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data StatusEchoResponse `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "pending", resp.Data.OldStatus)
	assert.Equal(t, "preparing", resp.Data.NewStatus)
}

func TestUpdateOrderStatusInvalidTransition(t *testing.T) {
	r, _, orders := newRouter()

	orders.On("FindByID", uint64(501)).Return(&domain.Order{ID: 501, Status: domain.OrderReady}, nil)

	body, _ := json.Marshal(map[string]any{"status": "pending"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/orders/501/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TRANSITION")
}

func TestAmendItemLockedWireShape(t *testing.T) {
	r, _, orders := newRouter()

	orders.On("FindByID", uint64(501)).Return(&domain.Order{
		ID: 501, Status: domain.OrderPreparing,
		Items: []domain.OrderItem{
			{ID: 9001, ProductID: 1, Quantity: 2, UnitPrice: 1000, Status: domain.ItemCooking},
		},
	}, nil)

	body, _ := json.Marshal(map[string]any{"quantity": 3, "device_id": "tablet-1"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPatch, "/orders/501/items/9001", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ITEM_LOCKED")
}

func TestListOrdersWrappedInData(t *testing.T) {
	r, _, orders := newRouter()

	orders.On("FindActive").Return([]domain.Order{{ID: 501, Status: domain.OrderPending}}, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []domain.Order `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
}
