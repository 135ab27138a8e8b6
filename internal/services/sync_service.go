package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dinesync/internal/domain"
	"dinesync/internal/polling"
	"dinesync/internal/resource"
	"dinesync/internal/store"
	"dinesync/internal/subscription"
)

var ErrEmptyCart = errors.New("cart is empty")

// API is the slice of the resource client the sync engine consumes.
type API interface {
	Get(ctx context.Context, path string) (*resource.Response, error)
	Post(ctx context.Context, path string, body any) (*resource.Response, error)
	Patch(ctx context.Context, path string, body any) (*resource.Response, error)
}

var _ API = (*resource.Client)(nil)

// Subject is the identity a view is currently interested in: one session
// (table portal, waiter console) or the whole kitchen feed (KDS board).
type Subject struct {
	SessionID uint64
	TableID   *uint64
	Kitchen   bool
}

func (s Subject) key() string {
	if s.Kitchen {
		return "kitchen"
	}
	if s.SessionID == 0 {
		return "cart"
	}
	return fmt.Sprintf("session.%d", s.SessionID)
}

func (s Subject) channels() []subscription.Spec {
	if s.Kitchen {
		return []subscription.Spec{{Name: domain.KitchenChannel}}
	}
	if s.SessionID == 0 {
		// No session yet: nothing to subscribe to until the first
		// submission assigns one.
		return nil
	}
	return []subscription.Spec{{Name: domain.SessionChannel(s.SessionID), Private: true}}
}

func (s Subject) fetchPath() string {
	if s.Kitchen {
		return "/orders?active=1"
	}
	if s.SessionID == 0 {
		return ""
	}
	return fmt.Sprintf("/orders?session_id=%d", s.SessionID)
}

var subscribedEvents = []string{
	domain.EventOrderCreated,
	domain.EventOrderStatusUpdated,
	domain.EventOrderItemStatusUpdated,
}

type submitResponse struct {
	Order   domain.Order    `json:"order"`
	Session *domain.Session `json:"session"`
}

type statusEcho struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// SyncService wires one view's store to the server: submissions and
// status changes out, fetches and push events in, all funneled through
// the store's reconciliation paths.
type SyncService struct {
	api    API
	store  *store.Store
	subs   *subscription.Manager
	poller *polling.Scheduler
	log    zerolog.Logger

	mu      sync.Mutex
	subject Subject
}

func NewSyncService(api API, st *store.Store, subs *subscription.Manager, pollInterval time.Duration, log zerolog.Logger) *SyncService {
	s := &SyncService{
		api:   api,
		store: st,
		subs:  subs,
		log:   log.With().Str("component", "sync").Logger(),
	}
	s.poller = polling.NewScheduler(pollInterval, s.pollTick, log)
	return s
}

// Start begins background polling. Realtime events flow as soon as
// SetSubject opens a channel.
func (s *SyncService) Start(ctx context.Context) {
	s.poller.Start(ctx)
}

// Close tears the view down: polling halts, channels are left. Safe to
// call exactly once on unmount.
func (s *SyncService) Close() {
	s.poller.Stop()
	s.subs.Close()
}

// SetSubject retargets the view. The old subject's channels are dropped
// and its in-flight fetches are invalidated by the epoch bump. Callers
// follow up with Refresh to load the new subject; the poller backstops
// either way.
func (s *SyncService) SetSubject(ctx context.Context, subject Subject) error {
	s.mu.Lock()
	s.subject = subject
	s.mu.Unlock()

	s.store.SetSubject(subject.key())
	return s.subs.Set(ctx, subject.channels(), subscribedEvents, s.handleEvent)
}

func (s *SyncService) Snapshot() store.Snapshot {
	return s.store.Snapshot()
}

func (s *SyncService) handleEvent(event string, payload json.RawMessage) {
	s.store.ApplyRealtimeEvent(event, payload)
}

// pollTick is the backstop fetch. Errors here are background noise: the
// scheduler logs them and the view keeps its last good state.
func (s *SyncService) pollTick(ctx context.Context) error {
	s.mu.Lock()
	subject := s.subject
	s.mu.Unlock()

	path := subject.fetchPath()
	if path == "" {
		return nil
	}
	epoch := s.store.Epoch()

	resp, err := s.api.Get(ctx, path)
	if err != nil {
		return err
	}
	var orders []domain.Order
	if err := resource.DecodeList(resp.Data, &orders); err != nil {
		return err
	}

	payload := store.FetchPayload{Orders: orders}
	if !subject.Kitchen && subject.SessionID != 0 {
		payload.Session = s.fetchSession(ctx, subject.SessionID)
	}

	if err := s.store.ApplyServerFetch(epoch, payload); err != nil {
		if errors.Is(err, store.ErrStaleResult) {
			return nil
		}
		return err
	}
	return nil
}

func (s *SyncService) fetchSession(ctx context.Context, id uint64) *domain.Session {
	resp, err := s.api.Get(ctx, fmt.Sprintf("/sessions/%d", id))
	if err != nil {
		s.log.Debug().Err(err).Uint64("session_id", id).Msg("session fetch failed")
		return nil
	}
	var session domain.Session
	if err := resource.DecodeObject(resp.Data, &session); err != nil {
		s.log.Debug().Err(err).Msg("session decode failed")
		return nil
	}
	return &session
}

// Refresh forces one fetch through the same path a poll tick uses.
func (s *SyncService) Refresh(ctx context.Context) error {
	return s.poller.Refresh(ctx)
}

// SubmitCart sends the full pending cart. On success the server's
// authoritative snapshot promotes the pending lines; on failure the cart
// is exactly as the user last edited it so the submission can be retried.
// A DEVICE_LOCKED response additionally flips the store read-only.
func (s *SyncService) SubmitCart(ctx context.Context, deviceID string) (*domain.Order, error) {
	if s.store.Blocked() {
		return nil, store.ErrBlocked
	}
	cart := s.store.PendingCart()
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}

	var lines, edits []domain.CartItem
	for _, line := range cart {
		if line.ItemID != 0 {
			edits = append(edits, line)
			continue
		}
		lines = append(lines, line)
	}

	amended, err := s.submitEdits(ctx, deviceID, edits)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return amended, nil
	}

	s.mu.Lock()
	subject := s.subject
	s.mu.Unlock()
	epoch := s.store.Epoch()

	req := submitRequest{DeviceID: deviceID, TableID: subject.TableID}
	if subject.SessionID != 0 {
		req.SessionID = &subject.SessionID
	}
	for _, line := range lines {
		req.Lines = append(req.Lines, submitLine{
			ProductID: line.ProductID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Notes:     line.Notes,
		})
	}

	resp, err := s.api.Post(ctx, "/orders", req)
	if err != nil {
		if resource.IsDeviceLocked(err) {
			s.store.Block()
		}
		return nil, err
	}

	var out submitResponse
	if err := resource.DecodeObject(resp.Data, &out); err != nil {
		return nil, err
	}

	if out.Session != nil && subject.SessionID == 0 && !subject.Kitchen {
		// First submission revealed the session id; retarget so the
		// private channel opens. The pending cart is carried across the
		// switch: lines added while the submission was in flight, and
		// submitted lines the response fails to confirm, must stay
		// editable. The submit response is applied under the new epoch.
		carried := s.store.PendingCart()
		subject.SessionID = out.Session.ID
		if err := s.SetSubject(ctx, subject); err != nil {
			s.log.Warn().Err(err).Msg("retarget after first submission failed")
		}
		epoch = s.store.Epoch()
		if err := s.store.SeedCart(epoch, carried); err != nil && !errors.Is(err, store.ErrStaleResult) {
			return nil, err
		}
	}

	if err := s.store.ApplySubmitResponse(epoch, out.Order, out.Session); err != nil && !errors.Is(err, store.ErrStaleResult) {
		return nil, err
	}
	return &out.Order, nil
}

// submitEdits pushes staged amendments of confirmed items, one per line.
// A confirmed amendment settles its cart line explicitly; a failed one
// leaves the line staged for retry. Returns the last amended order so a
// cart holding only edits still yields a result.
func (s *SyncService) submitEdits(ctx context.Context, deviceID string, edits []domain.CartItem) (*domain.Order, error) {
	var last *domain.Order
	for _, edit := range edits {
		epoch := s.store.Epoch()
		path := fmt.Sprintf("/orders/%d/items/%d", edit.OrderID, edit.ItemID)
		resp, err := s.api.Patch(ctx, path, map[string]any{
			"quantity":  edit.Quantity,
			"notes":     edit.Notes,
			"device_id": deviceID,
		})
		if err != nil {
			if resource.IsDeviceLocked(err) {
				s.store.Block()
			}
			return nil, err
		}

		var updated domain.Order
		if err := resource.DecodeObject(resp.Data, &updated); err != nil {
			return nil, err
		}
		if err := s.store.ApplySubmitResponse(epoch, updated, nil); err != nil && !errors.Is(err, store.ErrStaleResult) {
			return nil, err
		}
		if err := s.store.DropCartLine(epoch, edit.TempID); err != nil && !errors.Is(err, store.ErrStaleResult) && !errors.Is(err, store.ErrUnknownLine) {
			return nil, err
		}
		last = &updated
	}
	return last, nil
}

type submitRequest struct {
	SessionID *uint64      `json:"session_id,omitempty"`
	TableID   *uint64      `json:"table_id,omitempty"`
	DeviceID  string       `json:"device_id"`
	Lines     []submitLine `json:"items"`
}

type submitLine struct {
	ProductID uint64 `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Notes     string `json:"notes"`
}

// UpdateOrderStatus applies the change optimistically, then confirms with
// the server. A rejection reverts to the last server-confirmed status.
func (s *SyncService) UpdateOrderStatus(ctx context.Context, orderID uint64, status domain.OrderStatus) error {
	if s.store.Blocked() {
		return store.ErrBlocked
	}
	prev, applied := s.store.SetOrderStatusOptimistic(orderID, status)

	resp, err := s.api.Patch(ctx, fmt.Sprintf("/orders/%d/status", orderID), map[string]any{"status": status})
	if err != nil {
		if applied {
			s.store.RevertOrderStatus(orderID, prev)
		}
		if resource.IsDeviceLocked(err) {
			s.store.Block()
		}
		return err
	}

	var echo statusEcho
	if err := resource.DecodeObject(resp.Data, &echo); err == nil {
		s.log.Debug().Uint64("order_id", orderID).
			Str("old", echo.OldStatus).Str("new", echo.NewStatus).
			Msg("order status confirmed")
	}
	return nil
}

func (s *SyncService) UpdateItemStatus(ctx context.Context, orderID, itemID uint64, status domain.ItemStatus) error {
	if s.store.Blocked() {
		return store.ErrBlocked
	}
	prev, applied := s.store.SetItemStatusOptimistic(orderID, itemID, status)

	resp, err := s.api.Patch(ctx, fmt.Sprintf("/orders/%d/items/%d/status", orderID, itemID), map[string]any{"status": status})
	if err != nil {
		if applied {
			s.store.RevertItemStatus(orderID, itemID, prev)
		}
		if resource.IsDeviceLocked(err) {
			s.store.Block()
		}
		return err
	}

	var echo statusEcho
	if err := resource.DecodeObject(resp.Data, &echo); err == nil {
		s.log.Debug().Uint64("item_id", itemID).
			Str("old", echo.OldStatus).Str("new", echo.NewStatus).
			Msg("item status confirmed")
	}
	return nil
}

// CloseSession ends the visit; the store refuses edits afterwards once
// the closed session lands via fetch.
func (s *SyncService) CloseSession(ctx context.Context, deviceID string) error {
	s.mu.Lock()
	subject := s.subject
	s.mu.Unlock()
	if subject.SessionID == 0 {
		return ErrSessionNotFound
	}
	_, err := s.api.Post(ctx, fmt.Sprintf("/sessions/%d/close", subject.SessionID), map[string]any{"device_id": deviceID})
	if err != nil {
		if resource.IsDeviceLocked(err) {
			s.store.Block()
		}
		return err
	}
	return s.Refresh(ctx)
}
