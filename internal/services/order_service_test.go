package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"dinesync/internal/domain"
	"dinesync/internal/mocks"
)

type gatewayMocks struct {
	orders   *mocks.MockOrderRepository
	sessions *mocks.MockSessionRepository
	tables   *mocks.MockTableRepository
	events   *mocks.MockEventPublisher
	backend  *mocks.MockPublisher
}

func newGateway() (*OrderService, gatewayMocks) {
	m := gatewayMocks{
		orders:   new(mocks.MockOrderRepository),
		sessions: new(mocks.MockSessionRepository),
		tables:   new(mocks.MockTableRepository),
		events:   new(mocks.MockEventPublisher),
		backend:  new(mocks.MockPublisher),
	}
	svc := NewOrderService(m.orders, m.sessions, m.tables, m.events, m.backend, zerolog.Nop())
	return svc, m
}

func (m gatewayMocks) allowPublishes() {
	m.events.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	m.backend.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestSubmitCreatesSessionOnFirstOrder(t *testing.T) {
	svc, m := newGateway()
	m.allowPublishes()

	m.sessions.On("Create", mock.AnythingOfType("*domain.Session")).Return(nil).Run(func(args mock.Arguments) {
		args.Get(0).(*domain.Session).ID = testSessionID
	})
	m.orders.On("Save", mock.AnythingOfType("*domain.Order")).Return(nil).Run(func(args mock.Arguments) {
		order := args.Get(0).(*domain.Order)
		order.ID = 501
		for i := range order.Items {
			order.Items[i].ID = 9001 + uint64(i)
		}
	})
	m.orders.On("FindBySession", testSessionID).Return([]domain.Order{}, nil)
	m.sessions.On("Save", mock.AnythingOfType("*domain.Session")).Return(nil)

	order, session, err := svc.Submit(context.Background(), SubmitOrder{
		DeviceID: testDeviceID,
		Lines: []domain.CartItem{
			{ProductID: 1, Name: "Burger", Quantity: 2, UnitPrice: 1000},
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, uint64(501), order.ID)
	assert.Equal(t, testSessionID, session.ID)
	assert.Equal(t, testDeviceID, session.DeviceID)
	assert.Equal(t, int64(2000), order.Subtotal)
	assert.Equal(t, int64(200), order.Tax)
	assert.Equal(t, int64(2200), order.Total)
	assert.Equal(t, domain.ItemPending, order.Items[0].Status)

	time.Sleep(50 * time.Millisecond)
	m.sessions.AssertExpectations(t)
	m.orders.AssertExpectations(t)
}

func TestSubmitRejectsOtherDevice(t *testing.T) {
	svc, m := newGateway()

	sid := testSessionID
	m.sessions.On("FindByID", sid).Return(&domain.Session{
		ID: sid, Status: domain.SessionActive, DeviceID: "tablet-1",
	}, nil)

	_, _, err := svc.Submit(context.Background(), SubmitOrder{
		SessionID: &sid,
		DeviceID:  "tablet-2",
		Lines:     []domain.CartItem{{ProductID: 1, Quantity: 1}},
	})

	assert.ErrorIs(t, err, ErrDeviceLocked)
	m.orders.AssertNotCalled(t, "Save", mock.Anything)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name    string
		req     SubmitOrder
		wantErr error
	}{
		{
			name:    "empty cart",
			req:     SubmitOrder{DeviceID: testDeviceID},
			wantErr: ErrEmptyOrder,
		},
		{
			name: "closed session",
			req: func() SubmitOrder {
				sid := testSessionID
				return SubmitOrder{SessionID: &sid, DeviceID: testDeviceID,
					Lines: []domain.CartItem{{ProductID: 1, Quantity: 1}}}
			}(),
			wantErr: ErrSessionClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newGateway()
			m.sessions.On("FindByID", testSessionID).Return(&domain.Session{
				ID: testSessionID, Status: domain.SessionClosed,
			}, nil).Maybe()

			_, _, err := svc.Submit(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUpdateOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		current domain.OrderStatus
		next    domain.OrderStatus
		wantErr error
	}{
		{"advance", domain.OrderPending, domain.OrderPreparing, nil},
		{"cancel", domain.OrderPreparing, domain.OrderCancelled, nil},
		{"regress", domain.OrderReady, domain.OrderPending, ErrInvalidTransition},
		{"terminal", domain.OrderCompleted, domain.OrderCancelled, ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newGateway()
			m.allowPublishes()
			m.orders.On("FindByID", uint64(501)).Return(buildOrder(501, tt.current), nil)
			m.orders.On("UpdateStatus", uint64(501), tt.next).Return(nil).Maybe()

			old, err := svc.UpdateOrderStatus(context.Background(), 501, tt.next)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				m.orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.current, old)
		})
	}
}

func TestUpdateItemStatusHonorsOrderCeiling(t *testing.T) {
	svc, m := newGateway()
	m.allowPublishes()

	// Item would run ahead of its pending parent order.
	order := buildOrder(501, domain.OrderPending,
		buildItem(9001, 1, "Burger", 1, 1000, domain.ItemPending))
	m.orders.On("FindByID", uint64(501)).Return(order, nil)

	_, err := svc.UpdateItemStatus(context.Background(), 501, 9001, domain.ItemReady)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	m.orders.AssertNotCalled(t, "UpdateItemStatus", mock.Anything, mock.Anything)
}

func TestUpdateItemStatusOK(t *testing.T) {
	svc, m := newGateway()
	m.allowPublishes()

	order := buildOrder(501, domain.OrderPreparing,
		buildItem(9001, 1, "Burger", 1, 1000, domain.ItemPending))
	m.orders.On("FindByID", uint64(501)).Return(order, nil)
	m.orders.On("UpdateItemStatus", uint64(9001), domain.ItemCooking).Return(nil)

	old, err := svc.UpdateItemStatus(context.Background(), 501, 9001, domain.ItemCooking)
	assert.NoError(t, err)
	assert.Equal(t, domain.ItemPending, old)

	time.Sleep(50 * time.Millisecond)
	m.orders.AssertExpectations(t)
}

func TestAmendItemRepricesOrder(t *testing.T) {
	svc, m := newGateway()
	m.allowPublishes()

	sid := testSessionID
	order := buildOrder(501, domain.OrderPreparing,
		buildItem(9001, 1, "Burger", 2, 1000, domain.ItemPending),
		buildItem(9002, 2, "Fries", 1, 500, domain.ItemCooking))
	order.SessionID = &sid
	m.orders.On("FindByID", uint64(501)).Return(order, nil)
	m.sessions.On("FindByID", sid).Return(&domain.Session{
		ID: sid, Status: domain.SessionActive, DeviceID: testDeviceID,
	}, nil)
	m.orders.On("UpdateItemDetails", uint64(9001), 3, "extra cheese").Return(nil)
	m.orders.On("UpdateTotals", uint64(501), int64(3500), int64(350), int64(3850)).Return(nil)
	m.orders.On("FindBySession", sid).Return([]domain.Order{}, nil)
	m.sessions.On("Save", mock.AnythingOfType("*domain.Session")).Return(nil)

	amended, err := svc.AmendItem(context.Background(), 501, 9001, 3, "extra cheese", testDeviceID)
	assert.NoError(t, err)
	assert.Equal(t, 3, amended.Items[0].Quantity)
	assert.Equal(t, "extra cheese", amended.Items[0].Notes)
	assert.Equal(t, int64(3500), amended.Subtotal)
	assert.Equal(t, int64(3850), amended.Total)

	time.Sleep(50 * time.Millisecond)
	m.orders.AssertExpectations(t)
}

func TestAmendItemLockedRejected(t *testing.T) {
	svc, m := newGateway()

	order := buildOrder(501, domain.OrderPreparing,
		buildItem(9001, 1, "Burger", 2, 1000, domain.ItemCooking))
	m.orders.On("FindByID", uint64(501)).Return(order, nil)

	_, err := svc.AmendItem(context.Background(), 501, 9001, 3, "", testDeviceID)
	assert.ErrorIs(t, err, ErrItemLocked)
	m.orders.AssertNotCalled(t, "UpdateItemDetails", mock.Anything, mock.Anything, mock.Anything)
}

func TestAmendItemWrongDevice(t *testing.T) {
	svc, m := newGateway()

	sid := testSessionID
	order := buildOrder(501, domain.OrderPending,
		buildItem(9001, 1, "Burger", 2, 1000, domain.ItemPending))
	order.SessionID = &sid
	m.orders.On("FindByID", uint64(501)).Return(order, nil)
	m.sessions.On("FindByID", sid).Return(&domain.Session{
		ID: sid, Status: domain.SessionActive, DeviceID: "tablet-1",
	}, nil)

	_, err := svc.AmendItem(context.Background(), 501, 9001, 3, "", "tablet-2")
	assert.ErrorIs(t, err, ErrDeviceLocked)
	m.orders.AssertNotCalled(t, "UpdateItemDetails", mock.Anything, mock.Anything, mock.Anything)
}

func TestCloseSessionRecomputesDue(t *testing.T) {
	svc, m := newGateway()

	session := &domain.Session{ID: testSessionID, Status: domain.SessionActive, DeviceID: testDeviceID}
	m.sessions.On("FindByID", testSessionID).Return(session, nil)
	m.orders.On("FindBySession", testSessionID).Return([]domain.Order{
		{ID: 501, Status: domain.OrderServed, Total: 2200},
		{ID: 502, Status: domain.OrderCancelled, Total: 900},
	}, nil)
	m.sessions.On("Save", mock.AnythingOfType("*domain.Session")).Return(nil)

	closed, err := svc.CloseSession(context.Background(), testSessionID, testDeviceID)
	assert.NoError(t, err)
	assert.Equal(t, domain.SessionClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)
	assert.Equal(t, int64(2200), closed.TotalDue, "cancelled orders excluded from total_due")
}

func TestCloseSessionWrongDevice(t *testing.T) {
	svc, m := newGateway()
	m.sessions.On("FindByID", testSessionID).Return(&domain.Session{
		ID: testSessionID, Status: domain.SessionActive, DeviceID: "tablet-1",
	}, nil)

	_, err := svc.CloseSession(context.Background(), testSessionID, "tablet-2")
	assert.ErrorIs(t, err, ErrDeviceLocked)
}

func TestListTablesDerivesOccupancy(t *testing.T) {
	svc, m := newGateway()

	m.tables.On("List").Return([]domain.Table{
		{ID: 1, Number: "T1", ManualStatus: domain.TableFree},
		{ID: 2, Number: "T2", ManualStatus: domain.TableOccupied},
		{ID: 3, Number: "T3", ManualStatus: domain.TableOccupied},
	}, nil)
	m.orders.On("CountActiveByTable").Return(map[uint64]int{1: 2, 2: 1}, nil)

	views, err := svc.ListTables(context.Background())
	assert.NoError(t, err)
	assert.Len(t, views, 3)
	assert.Equal(t, domain.TableOccupied, views[0].Occupancy)
	assert.Equal(t, domain.TableOccupied, views[1].Occupancy)
	assert.Equal(t, domain.TableMismatch, views[2].Occupancy, "manual occupied with zero orders is detectable")
}

func TestResetTableIsManualOnly(t *testing.T) {
	svc, m := newGateway()

	m.tables.On("FindByID", uint64(3)).Return(&domain.Table{ID: 3, ManualStatus: domain.TableOccupied}, nil)
	m.tables.On("Save", mock.AnythingOfType("*domain.Table")).Return(nil)

	table, err := svc.ResetTable(context.Background(), 3)
	assert.NoError(t, err)
	assert.Equal(t, domain.TableFree, table.ManualStatus)
}

func TestGetOrderNotFound(t *testing.T) {
	svc, m := newGateway()
	m.orders.On("FindByID", uint64(999)).Return(nil, nil)

	_, err := svc.GetOrder(context.Background(), 999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestGetOrderRepoError(t *testing.T) {
	svc, m := newGateway()
	m.orders.On("FindByID", uint64(1)).Return(nil, errors.New("connection refused"))

	_, err := svc.GetOrder(context.Background(), 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrOrderNotFound)
}
