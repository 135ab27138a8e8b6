package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"dinesync/internal/domain"
	"dinesync/internal/infra"
	"dinesync/internal/infra/rabbitmq"
	"dinesync/internal/repository"
)

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrItemNotFound      = errors.New("order item not found")
	ErrSessionNotFound   = errors.New("session not found")
	ErrTableNotFound     = errors.New("table not found")
	ErrSessionClosed     = errors.New("session is closed")
	ErrDeviceLocked      = errors.New("session is controlled by another device")
	ErrItemLocked        = errors.New("item is already in preparation")
	ErrEmptyOrder        = errors.New("order has no items")
	ErrInvalidTransition = errors.New("illegal status transition")
)

// taxPermille is the service tax applied to the subtotal after discount.
const taxPermille = 100

// SubmitOrder is the full current cart plus session/table/device identity.
type SubmitOrder struct {
	SessionID *uint64
	TableID   *uint64
	WaiterID  *uint64
	DeviceID  string
	Discount  int64
	Lines     []domain.CartItem
}

// OrderService is the authoritative side: it owns persistence, enforces
// the device lock and both status machines, and fans every accepted
// mutation out to the realtime channels and the backend exchange.
type OrderService struct {
	orders   repository.OrderRepository
	sessions repository.SessionRepository
	tables   repository.TableRepository
	events   infra.EventPublisherInterface
	backend  rabbitmq.PublisherInterface
	log      zerolog.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	sessions repository.SessionRepository,
	tables repository.TableRepository,
	events infra.EventPublisherInterface,
	backend rabbitmq.PublisherInterface,
	log zerolog.Logger,
) *OrderService {
	return &OrderService{
		orders:   orders,
		sessions: sessions,
		tables:   tables,
		events:   events,
		backend:  backend,
		log:      log.With().Str("component", "order_service").Logger(),
	}
}

// Submit turns a cart into a persisted order inside its session, creating
// the session on first submission. The caller's device must own the
// session; a takeover attempt fails with ErrDeviceLocked before anything
// is written.
func (s *OrderService) Submit(ctx context.Context, req SubmitOrder) (*domain.Order, *domain.Session, error) {
	if len(req.Lines) == 0 {
		return nil, nil, ErrEmptyOrder
	}
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, nil, errors.New("line quantity must be positive")
		}
	}

	session, err := s.resolveSession(req)
	if err != nil {
		return nil, nil, err
	}

	order := &domain.Order{
		SessionID:     &session.ID,
		TableID:       session.TableID,
		WaiterID:      req.WaiterID,
		Status:        domain.OrderPending,
		PaymentStatus: "unpaid",
		Discount:      req.Discount,
		OpenedAt:      time.Now().UTC(),
	}
	for _, line := range req.Lines {
		order.Subtotal += line.UnitPrice * int64(line.Quantity)
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Notes:     line.Notes,
			Status:    domain.ItemPending,
		})
	}
	order.Tax = (order.Subtotal - order.Discount) * taxPermille / 1000
	order.Total = order.Subtotal - order.Discount + order.Tax

	if err := s.orders.Save(order); err != nil {
		return nil, nil, err
	}

	if err := s.recomputeSessionDue(session); err != nil {
		s.log.Warn().Err(err).Uint64("session_id", session.ID).Msg("total_due recompute failed")
	}

	go s.publishOrderCreated(context.Background(), session.ID, *order)
	return order, session, nil
}

func (s *OrderService) resolveSession(req SubmitOrder) (*domain.Session, error) {
	if req.SessionID == nil {
		session := &domain.Session{
			TableID:  req.TableID,
			Status:   domain.SessionActive,
			DeviceID: req.DeviceID,
			OpenedAt: time.Now().UTC(),
		}
		if err := s.sessions.Create(session); err != nil {
			return nil, err
		}
		return session, nil
	}

	session, err := s.sessions.FindByID(*req.SessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.Active() {
		return nil, ErrSessionClosed
	}
	if session.DeviceID != "" && session.DeviceID != req.DeviceID {
		return nil, ErrDeviceLocked
	}
	return session, nil
}

func (s *OrderService) recomputeSessionDue(session *domain.Session) error {
	orders, err := s.orders.FindBySession(session.ID)
	if err != nil {
		return err
	}
	session.TotalDue = domain.SessionTotalDue(orders)
	return s.sessions.Save(session)
}

// UpdateOrderStatus applies one transition on the order machine and
// returns the previous status for the caller's {old_status,new_status}
// echo.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, id uint64, status domain.OrderStatus) (domain.OrderStatus, error) {
	order, err := s.orders.FindByID(id)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", ErrOrderNotFound
	}
	if !order.Status.CanTransition(status) {
		return "", ErrInvalidTransition
	}
	if err := s.orders.UpdateStatus(id, status); err != nil {
		return "", err
	}

	old := order.Status
	if order.SessionID != nil && (status == domain.OrderCancelled || status == domain.OrderCompleted) {
		if session, err := s.sessions.FindByID(*order.SessionID); err == nil && session != nil {
			if err := s.recomputeSessionDue(session); err != nil {
				s.log.Warn().Err(err).Uint64("session_id", session.ID).Msg("total_due recompute failed")
			}
		}
	}

	go s.publishOrderStatus(context.Background(), order, status)
	return old, nil
}

// UpdateItemStatus applies one transition on the item machine, also
// enforcing that an item never runs ahead of its parent order.
func (s *OrderService) UpdateItemStatus(ctx context.Context, orderID, itemID uint64, status domain.ItemStatus) (domain.ItemStatus, error) {
	order, err := s.orders.FindByID(orderID)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", ErrOrderNotFound
	}

	var item *domain.OrderItem
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return "", ErrItemNotFound
	}
	if !item.Status.CanTransition(status) || !domain.ItemFitsOrder(status, order.Status) {
		return "", ErrInvalidTransition
	}
	if err := s.orders.UpdateItemStatus(itemID, status); err != nil {
		return "", err
	}

	old := item.Status
	go s.publishItemStatus(context.Background(), order, itemID, status)
	return old, nil
}

// AmendItem changes quantity and notes on a still-pending item and
// reprices its order. The kitchen picking the item up closes the window;
// the full updated order is re-announced so clients converge without a
// dedicated amendment event.
func (s *OrderService) AmendItem(ctx context.Context, orderID, itemID uint64, quantity int, notes, deviceID string) (*domain.Order, error) {
	if quantity <= 0 {
		return nil, errors.New("quantity must be positive")
	}
	order, err := s.orders.FindByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status.Terminal() {
		return nil, ErrInvalidTransition
	}

	var session *domain.Session
	if order.SessionID != nil {
		session, err = s.sessions.FindByID(*order.SessionID)
		if err != nil {
			return nil, err
		}
		if session != nil {
			if !session.Active() {
				return nil, ErrSessionClosed
			}
			if session.DeviceID != "" && session.DeviceID != deviceID {
				return nil, ErrDeviceLocked
			}
		}
	}

	var item *domain.OrderItem
	for i := range order.Items {
		if order.Items[i].ID == itemID {
			item = &order.Items[i]
			break
		}
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	if item.Status.Locked() {
		return nil, ErrItemLocked
	}

	item.Quantity = quantity
	item.Notes = notes
	if err := s.orders.UpdateItemDetails(itemID, quantity, notes); err != nil {
		return nil, err
	}

	order.Subtotal = 0
	for _, it := range order.Items {
		order.Subtotal += it.UnitPrice * int64(it.Quantity)
	}
	order.Tax = (order.Subtotal - order.Discount) * taxPermille / 1000
	order.Total = order.Subtotal - order.Discount + order.Tax
	if err := s.orders.UpdateTotals(order.ID, order.Subtotal, order.Tax, order.Total); err != nil {
		return nil, err
	}

	if session != nil {
		if err := s.recomputeSessionDue(session); err != nil {
			s.log.Warn().Err(err).Uint64("session_id", session.ID).Msg("total_due recompute failed")
		}
	}

	sessionID := uint64(0)
	if order.SessionID != nil {
		sessionID = *order.SessionID
	}
	go s.publishOrderCreated(context.Background(), sessionID, *order)
	return order, nil
}

// CloseSession is terminal: further submissions and edits are refused.
func (s *OrderService) CloseSession(ctx context.Context, id uint64, deviceID string) (*domain.Session, error) {
	session, err := s.sessions.FindByID(id)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if !session.Active() {
		return nil, ErrSessionClosed
	}
	if session.DeviceID != "" && session.DeviceID != deviceID {
		return nil, ErrDeviceLocked
	}

	if err := s.recomputeSessionDue(session); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	session.Status = domain.SessionClosed
	session.ClosedAt = &now
	if err := s.sessions.Save(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *OrderService) OrdersBySession(ctx context.Context, sessionID uint64) ([]domain.Order, *domain.Session, error) {
	session, err := s.sessions.FindByID(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, ErrSessionNotFound
	}
	orders, err := s.orders.FindBySession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return orders, session, nil
}

func (s *OrderService) ActiveOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.FindActive()
}

func (s *OrderService) GetOrder(ctx context.Context, id uint64) (*domain.Order, error) {
	order, err := s.orders.FindByID(id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// TableView is a table with its derived occupancy.
type TableView struct {
	domain.Table
	ActiveOrders int    `json:"active_orders"`
	Occupancy    string `json:"occupancy"`
}

func (s *OrderService) ListTables(ctx context.Context) ([]TableView, error) {
	tables, err := s.tables.List()
	if err != nil {
		return nil, err
	}
	counts, err := s.orders.CountActiveByTable()
	if err != nil {
		return nil, err
	}
	out := make([]TableView, 0, len(tables))
	for _, t := range tables {
		n := counts[t.ID]
		out = append(out, TableView{Table: t, ActiveOrders: n, Occupancy: t.Occupancy(n)})
	}
	return out, nil
}

// ResetTable is the staff action resolving the occupied-with-zero-orders
// mismatch (or finishing the cleaning workflow). Nothing resets tables
// automatically.
func (s *OrderService) ResetTable(ctx context.Context, id uint64) (*domain.Table, error) {
	table, err := s.tables.FindByID(id)
	if err != nil {
		return nil, err
	}
	if table == nil {
		return nil, ErrTableNotFound
	}
	table.ManualStatus = domain.TableFree
	if err := s.tables.Save(table); err != nil {
		return nil, err
	}
	return table, nil
}

func (s *OrderService) publishOrderCreated(ctx context.Context, sessionID uint64, order domain.Order) {
	ev := domain.OrderCreatedEvent{Order: order}
	s.publish(ctx, sessionID, domain.EventOrderCreated, ev)
}

func (s *OrderService) publishOrderStatus(ctx context.Context, order *domain.Order, status domain.OrderStatus) {
	ev := domain.OrderStatusUpdatedEvent{OrderID: order.ID, NewStatus: status, TableID: order.TableID}
	sessionID := uint64(0)
	if order.SessionID != nil {
		sessionID = *order.SessionID
	}
	s.publish(ctx, sessionID, domain.EventOrderStatusUpdated, ev)
}

func (s *OrderService) publishItemStatus(ctx context.Context, order *domain.Order, itemID uint64, status domain.ItemStatus) {
	ev := domain.OrderItemStatusUpdatedEvent{OrderID: order.ID, ItemID: itemID, NewStatus: status}
	sessionID := uint64(0)
	if order.SessionID != nil {
		sessionID = *order.SessionID
	}
	s.publish(ctx, sessionID, domain.EventOrderItemStatusUpdated, ev)
}

// publish fans one event out to the kitchen feed, the session channel and
// the backend exchange. Failures are logged, never surfaced: delivery is
// at-least-once with polling as the backstop, not exactly-once.
func (s *OrderService) publish(ctx context.Context, sessionID uint64, event string, payload any) {
	if err := s.events.Publish(ctx, domain.KitchenChannel, event, payload); err != nil {
		s.log.Warn().Err(err).Str("event", event).Msg("kitchen publish failed")
	}
	if sessionID != 0 {
		if err := s.events.Publish(ctx, domain.SessionChannel(sessionID), event, payload); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("session publish failed")
		}
	}
	if s.backend != nil {
		if err := s.backend.Publish(ctx, event, payload); err != nil {
			s.log.Warn().Err(err).Str("event", event).Msg("exchange publish failed")
		}
	}
}
