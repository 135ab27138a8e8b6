package domain

import "fmt"

// Named events carried by the realtime channel and the backend exchange.
// Delivery is at-least-once and unordered; consumers must apply them
// idempotently.
const (
	EventOrderCreated           = "order.created"
	EventOrderStatusUpdated     = "order.status.updated"
	EventOrderItemStatusUpdated = "order.item.status.updated"
)

// Channel naming. A session channel is private (bearer-authorized), the
// kitchen feed is shared by all KDS boards.
const KitchenChannel = "kitchen.orders"

func SessionChannel(sessionID uint64) string {
	return fmt.Sprintf("session.%d", sessionID)
}

type OrderCreatedEvent struct {
	Order Order `json:"order"`
}

type OrderStatusUpdatedEvent struct {
	OrderID   uint64      `json:"order_id"`
	NewStatus OrderStatus `json:"new_status"`
	TableID   *uint64     `json:"table_id,omitempty"`
}

type OrderItemStatusUpdatedEvent struct {
	OrderID   uint64     `json:"order_id"`
	ItemID    uint64     `json:"item_id"`
	NewStatus ItemStatus `json:"new_status"`
}
