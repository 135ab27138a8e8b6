package store

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"dinesync/internal/domain"
	"dinesync/internal/reconcile"
)

var (
	// ErrItemLocked rejects a local edit against an item the kitchen
	// already picked up.
	ErrItemLocked = errors.New("store: item is locked")
	// ErrBlocked rejects edits while another device owns the session.
	ErrBlocked = errors.New("store: blocked, another device is active")
	// ErrSessionClosed rejects edits after the session closed.
	ErrSessionClosed = errors.New("store: session is closed")
	// ErrStaleResult marks a fetch result that resolved after the view
	// switched subjects; applying it is a no-op.
	ErrStaleResult = errors.New("store: stale result for previous subject")
	// ErrUnknownLine reports an edit addressing a line the store does
	// not hold.
	ErrUnknownLine = errors.New("store: unknown line")
)

// FetchPayload is one authoritative server snapshot fed through
// ApplyServerFetch by both the polling scheduler and manual refresh.
type FetchPayload struct {
	Orders  []domain.Order
	Session *domain.Session
}

// Snapshot is the merged read-only view handed to the UI.
type Snapshot struct {
	Epoch           uint64
	Subject         string
	Orders          []domain.Order
	Cart            []domain.CartItem
	Session         *domain.Session
	Blocked         bool
	TotalDue        int64
	PreviewSubtotal int64
}

// Store is the per-view source of truth: the confirmed layer (orders as
// last merged from the server), the pending-local cart, and derived flags.
// It performs no I/O; producers push into it and the mutex serializes them
// the way the source's event loop did.
type Store struct {
	log zerolog.Logger

	mu      sync.Mutex
	subject string
	epoch   uint64
	orders  []domain.Order
	cart    []domain.CartItem
	session *domain.Session
	blocked bool

	// seen holds every server item id already offered to promotion, so a
	// cart line added after its twin was confirmed is never consumed by
	// that old item on a later fetch of the same snapshot.
	seen map[uint64]struct{}
	// missed tracks locally held orders absent from the last fetch of
	// this subject. One miss is the grace window for a create racing the
	// fetch; a second consecutive miss means the server no longer
	// reports the order and it is dropped.
	missed map[uint64]bool
}

func New(log zerolog.Logger) *Store {
	return &Store{
		log:    log.With().Str("component", "store").Logger(),
		seen:   make(map[uint64]struct{}),
		missed: make(map[uint64]bool),
	}
}

// SetSubject switches the view to a new session/order/feed identity. All
// state from the previous subject is discarded and the epoch advances so
// in-flight fetches for the old subject land as no-ops.
func (s *Store) SetSubject(subject string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subject = subject
	s.epoch++
	s.orders = nil
	s.cart = nil
	s.session = nil
	s.blocked = false
	s.seen = make(map[uint64]struct{})
	s.missed = make(map[uint64]bool)
	return s.epoch
}

func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Epoch:           s.epoch,
		Subject:         s.subject,
		Orders:          append([]domain.Order(nil), s.orders...),
		Cart:            append([]domain.CartItem(nil), s.cart...),
		Blocked:         s.blocked,
		TotalDue:        domain.SessionTotalDue(s.orders),
		PreviewSubtotal: domain.PreviewSubtotal(s.cart),
	}
	if s.session != nil {
		sess := *s.session
		snap.Session = &sess
	}
	return snap
}

func (s *Store) Blocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocked
}

// Block flips the store read-only after a DEVICE_LOCKED response. Only a
// subject reset clears it; the server's word on ownership is final.
func (s *Store) Block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked = true
	s.log.Warn().Str("subject", s.subject).Msg("device locked, store is now read-only")
}

func (s *Store) editable() error {
	if s.blocked {
		return ErrBlocked
	}
	if s.session != nil && !s.session.Active() {
		return ErrSessionClosed
	}
	return nil
}

// AddCartItem appends a new pending-local line and returns it with its
// temp id assigned.
func (s *Store) AddCartItem(item domain.CartItem) (domain.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return domain.CartItem{}, err
	}
	if item.TempID == "" {
		item.TempID = domain.NextTempID()
	}
	item.Status = domain.ItemPending
	s.cart = append(s.cart, item)
	return item, nil
}

// SetCartQuantity mutates a pending-local line. Locked lines reject the
// edit and the store is left untouched.
func (s *Store) SetCartQuantity(tempID string, quantity int) error {
	if quantity <= 0 {
		return errors.New("store: quantity must be positive")
	}
	return s.editCartLine(tempID, func(it *domain.CartItem) {
		it.Quantity = quantity
	})
}

func (s *Store) SetCartNotes(tempID, notes string) error {
	return s.editCartLine(tempID, func(it *domain.CartItem) {
		it.Notes = notes
	})
}

func (s *Store) editCartLine(tempID string, edit func(*domain.CartItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	for i := range s.cart {
		if s.cart[i].TempID != tempID {
			continue
		}
		if s.cart[i].Status.Locked() {
			return ErrItemLocked
		}
		edit(&s.cart[i])
		return nil
	}
	return ErrUnknownLine
}

func (s *Store) RemoveCartItem(tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	for i := range s.cart {
		if s.cart[i].TempID != tempID {
			continue
		}
		if s.cart[i].Status.Locked() {
			return ErrItemLocked
		}
		s.cart = append(s.cart[:i], s.cart[i+1:]...)
		return nil
	}
	return ErrUnknownLine
}

// StageItemEdit stages a quantity/notes change against a confirmed item.
// Items the kitchen already picked up (cooking and beyond) reject the edit
// at this boundary rather than being dropped later.
func (s *Store) StageItemEdit(itemID uint64, quantity int, notes string) error {
	if quantity <= 0 {
		return errors.New("store: quantity must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}

	orderID, item, ok := s.findConfirmedItem(itemID)
	if !ok {
		return ErrUnknownLine
	}
	if item.Status.Locked() {
		return ErrItemLocked
	}

	for i := range s.cart {
		if s.cart[i].ItemID == itemID {
			s.cart[i].Quantity = quantity
			s.cart[i].Notes = notes
			return nil
		}
	}
	s.cart = append(s.cart, domain.CartItem{
		TempID:    domain.NextTempID(),
		ItemID:    item.ID,
		OrderID:   orderID,
		ProductID: item.ProductID,
		Name:      item.Name,
		Quantity:  quantity,
		UnitPrice: item.UnitPrice,
		Notes:     notes,
		Status:    item.Status,
	})
	return nil
}

func (s *Store) findConfirmedItem(itemID uint64) (uint64, domain.OrderItem, bool) {
	for i := range s.orders {
		for _, it := range s.orders[i].Items {
			if it.ID == itemID {
				return s.orders[i].ID, it, true
			}
		}
	}
	return 0, domain.OrderItem{}, false
}

// PendingCart returns a copy of the pending-local lines for submission.
// The cart itself is untouched: it only shrinks when a server response
// confirms lines, so a failed submission leaves it exactly as edited.
func (s *Store) PendingCart() []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CartItem(nil), s.cart...)
}

// ApplyServerFetch replaces the confirmed layer with a server snapshot,
// reconciling statuses monotonically and promoting any pending lines the
// snapshot confirms. A result from a previous subject is a no-op.
func (s *Store) ApplyServerFetch(epoch uint64, payload FetchPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		s.log.Debug().Uint64("epoch", epoch).Uint64("current", s.epoch).Msg("discarding stale fetch result")
		return ErrStaleResult
	}

	merged := reconcile.MergeFetch(s.orders, payload.Orders)
	present := make(map[uint64]struct{}, len(payload.Orders))
	for i := range payload.Orders {
		present[payload.Orders[i].ID] = struct{}{}
	}

	kept := make([]domain.Order, 0, len(merged))
	for _, o := range merged {
		if _, ok := present[o.ID]; ok {
			delete(s.missed, o.ID)
			kept = append(kept, o)
			continue
		}
		if s.missed[o.ID] {
			delete(s.missed, o.ID)
			s.log.Debug().Uint64("order_id", o.ID).Msg("dropping order absent from two consecutive fetches")
			continue
		}
		s.missed[o.ID] = true
		kept = append(kept, o)
	}
	s.orders = kept

	for i := range s.orders {
		s.promote(s.orders[i])
	}
	if payload.Session != nil {
		sess := *payload.Session
		s.session = &sess
	}
	return nil
}

// promote offers a confirmed order's items to the pending cart. Each item
// participates exactly once across the store's lifetime on this subject;
// items already merged earlier are skipped.
func (s *Store) promote(order domain.Order) {
	var fresh []domain.OrderItem
	for _, it := range order.Items {
		if _, ok := s.seen[it.ID]; ok {
			continue
		}
		s.seen[it.ID] = struct{}{}
		fresh = append(fresh, it)
	}
	if len(fresh) == 0 {
		return
	}
	s.cart = reconcile.PromotePending(s.cart, domain.Order{Items: fresh})
}

// SeedCart restores pending lines carried across a subject switch, such as
// the retarget after a first submission reveals the session id.
func (s *Store) SeedCart(epoch uint64, lines []domain.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return ErrStaleResult
	}
	s.cart = append([]domain.CartItem(nil), lines...)
	return nil
}

// DropCartLine settles one cart line after the server confirmed the
// mutation it carried. Unlike user-driven removal it ignores locks.
func (s *Store) DropCartLine(epoch uint64, tempID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return ErrStaleResult
	}
	for i := range s.cart {
		if s.cart[i].TempID == tempID {
			s.cart = append(s.cart[:i], s.cart[i+1:]...)
			return nil
		}
	}
	return ErrUnknownLine
}

// ApplySubmitResponse merges the authoritative order returned by a cart
// submission and promotes the lines it confirms.
func (s *Store) ApplySubmitResponse(epoch uint64, order domain.Order, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		s.log.Debug().Uint64("order_id", order.ID).Msg("discarding submit response for previous subject")
		return ErrStaleResult
	}

	s.orders, _ = reconcile.UpsertOrder(s.orders, order)
	s.promote(order)
	if session != nil {
		sess := *session
		s.session = &sess
	}
	return nil
}

// ApplyRealtimeEvent applies one named push event. It is idempotent and
// order-insensitive; malformed payloads are dropped with a log line so one
// bad frame can never take down the subscription loop.
func (s *Store) ApplyRealtimeEvent(event string, payload json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch event {
	case domain.EventOrderCreated:
		var ev domain.OrderCreatedEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.Order.ID == 0 {
			s.dropEvent(event, err)
			return
		}
		s.orders, _ = reconcile.UpsertOrder(s.orders, ev.Order)
		delete(s.missed, ev.Order.ID)
		s.promote(ev.Order)

	case domain.EventOrderStatusUpdated:
		var ev domain.OrderStatusUpdatedEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.OrderID == 0 || ev.NewStatus == "" {
			s.dropEvent(event, err)
			return
		}
		var applied bool
		s.orders, applied = reconcile.ApplyOrderStatus(s.orders, ev.OrderID, ev.NewStatus)
		if !applied {
			s.log.Debug().Uint64("order_id", ev.OrderID).Str("status", string(ev.NewStatus)).Msg("stale or duplicate order status event ignored")
		}

	case domain.EventOrderItemStatusUpdated:
		var ev domain.OrderItemStatusUpdatedEvent
		if err := json.Unmarshal(payload, &ev); err != nil || ev.OrderID == 0 || ev.ItemID == 0 || ev.NewStatus == "" {
			s.dropEvent(event, err)
			return
		}
		var applied bool
		s.orders, applied = reconcile.ApplyItemStatus(s.orders, ev.OrderID, ev.ItemID, ev.NewStatus)
		if !applied {
			s.log.Debug().Uint64("item_id", ev.ItemID).Str("status", string(ev.NewStatus)).Msg("stale or duplicate item status event ignored")
		}

	default:
		s.log.Debug().Str("event", event).Msg("unknown event ignored")
	}
}

func (s *Store) dropEvent(event string, err error) {
	s.log.Warn().Err(err).Str("event", event).Msg("dropping malformed event payload")
}

// SetOrderStatusOptimistic advances an order's status locally before the
// server confirms. It returns the previous status for revert-on-failure.
func (s *Store) SetOrderStatusOptimistic(orderID uint64, status domain.OrderStatus) (domain.OrderStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != orderID {
			continue
		}
		prev := s.orders[i].Status
		next, applied := domain.MergeOrderStatus(prev, status)
		s.orders[i].Status = next
		return prev, applied
	}
	return "", false
}

// RevertOrderStatus undoes an optimistic change after the server rejected
// it. This is the one path allowed to move a status backward, because it
// restores a state the server confirmed.
func (s *Store) RevertOrderStatus(orderID uint64, prev domain.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == orderID {
			s.orders[i].Status = prev
			return
		}
	}
}

func (s *Store) SetItemStatusOptimistic(orderID, itemID uint64, status domain.ItemStatus) (domain.ItemStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != orderID {
			continue
		}
		for j := range s.orders[i].Items {
			if s.orders[i].Items[j].ID != itemID {
				continue
			}
			prev := s.orders[i].Items[j].Status
			next, applied := domain.MergeItemStatus(prev, status)
			s.orders[i].Items[j].Status = next
			return prev, applied
		}
	}
	return "", false
}

func (s *Store) RevertItemStatus(orderID, itemID uint64, prev domain.ItemStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID != orderID {
			continue
		}
		for j := range s.orders[i].Items {
			if s.orders[i].Items[j].ID == itemID {
				s.orders[i].Items[j].Status = prev
				return
			}
		}
	}
}
